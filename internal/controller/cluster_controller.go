/*
Copyright The MySQL Operator Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package controller implements the Cluster Controller (spec.md §4.4):
// the reconciliation state machine driving an InnoDB Cluster from first
// pod to a converged, self-healing group replication cluster.
package controller

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	mysqlv1 "github.com/22ndtech/mysql-operator/api/v1"
	"github.com/22ndtech/mysql-operator/internal/configuration"
	"github.com/22ndtech/mysql-operator/pkg/adminapi"
	"github.com/22ndtech/mysql-operator/pkg/clustermutex"
	"github.com/22ndtech/mysql-operator/pkg/ctlresult"
	"github.com/22ndtech/mysql-operator/pkg/diagnose"
	"github.com/22ndtech/mysql-operator/pkg/k8sobjects"
	"github.com/22ndtech/mysql-operator/pkg/log"
	"github.com/22ndtech/mysql-operator/pkg/metrics"
)

// ClusterReconciler reconciles Cluster objects: ensuring the cluster
// finalizer is present, refreshing the published status, and tearing
// down once every pod is gone.
type ClusterReconciler struct {
	client.Client

	Scheme      *runtime.Scheme
	Recorder    record.EventRecorder
	AdminClient adminapi.Client
	Mutex       *clustermutex.Registry
}

// NewClusterReconciler builds a ClusterReconciler wired to mgr.
func NewClusterReconciler(mgr ctrl.Manager, adminClient adminapi.Client, mutex *clustermutex.Registry) *ClusterReconciler {
	return &ClusterReconciler{
		Client:      mgr.GetClient(),
		Scheme:      mgr.GetScheme(),
		Recorder:    mgr.GetEventRecorderFor("mysql-operator"),
		AdminClient: adminClient,
		Mutex:       mutex,
	}
}

// SetupWithManager registers the reconciler with mgr.
func (r *ClusterReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&mysqlv1.Cluster{}).
		Owns(&corev1.Pod{}).
		Complete(r)
}

// Reconcile is the Cluster-object reconcile loop: it does not itself run
// the per-pod state machine (that is PodReconciler's job, triggered by
// pod events the way on_pod_created/on_pod_restarted/on_pod_deleted do in
// the original source) but keeps the cluster's finalizer and published
// status in sync with what the pods report.
func (r *ClusterReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	contextLogger, ctx := log.SetupLogger(ctx)
	contextLogger.Debug(fmt.Sprintf("reconciling cluster %q", req.NamespacedName))

	var cluster mysqlv1.Cluster
	if err := r.Get(ctx, req.NamespacedName, &cluster); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	lock, err := r.Mutex.TryAcquire(req.NamespacedName.String(), cluster.Name)
	if err != nil {
		if busy, ok := err.(*clustermutex.BusyError); ok {
			return ctrl.Result{RequeueAfter: busy.RetryAfter()}, nil
		}
		return ctrl.Result{}, err
	}
	defer lock.Release()

	start := time.Now()
	result, rerr := r.reconcile(ctx, &cluster)
	outcome := "success"
	if rerr != nil {
		outcome = "error"
	}
	metrics.ReconcileDuration.WithLabelValues("cluster", outcome).Observe(time.Since(start).Seconds())

	return ctlresult.AdaptReconcileError(result, rerr)
}

func (r *ClusterReconciler) reconcile(ctx context.Context, cluster *mysqlv1.Cluster) (ctrl.Result, error) {
	contextLogger := log.FromContext(ctx)

	if cluster.Deleting() {
		pods, err := listClusterPods(ctx, r.Client, cluster)
		if err != nil {
			return ctrl.Result{}, err
		}
		if len(pods) > 0 {
			return ctrl.Result{RequeueAfter: configuration.Current.PodNotReadyRetryDelay}, nil
		}
		if err := k8sobjects.RemoveClusterFinalizer(ctx, r.Client, cluster); err != nil {
			return ctrl.Result{}, err
		}
		return ctrl.Result{}, nil
	}

	if err := k8sobjects.EnsureClusterFinalizer(ctx, r.Client, cluster); err != nil {
		return ctrl.Result{}, err
	}

	pods, err := listClusterPods(ctx, r.Client, cluster)
	if err != nil {
		return ctrl.Result{}, err
	}

	diag, _, err := diagnose.DiagnoseCluster(ctx, r.AdminClient, clusterInputFor(cluster, pods))
	if err != nil {
		return ctrl.Result{}, err
	}

	if err := r.publishStatus(ctx, cluster, diag); err != nil {
		return ctrl.Result{}, err
	}

	contextLogger.Info("cluster probe",
		"status", diag.Status, "online", len(diag.OnlineMembers))

	if diag.VersionMismatch {
		contextLogger.Warning("cluster members report inconsistent MySQL server versions")
	}

	return ctrl.Result{}, nil
}

func (r *ClusterReconciler) publishStatus(ctx context.Context, cluster *mysqlv1.Cluster, diag diagnose.ClusterDiagnostic) error {
	metrics.ObserveClusterState(cluster.Namespace, cluster.Name, string(diag.Status), len(diag.OnlineMembers))

	return k8sobjects.UpdateClusterStatus(ctx, r.Client, cluster, func(status *mysqlv1.ClusterStatus) {
		status.Status = string(diag.Status)
		status.OnlineInstances = int32(len(diag.OnlineMembers))
		k8sobjects.StampLastProbeTime(status)
		if diag.Status != diagnose.Initializing {
			k8sobjects.StampCreateTimeOnce(status)
		}
	})
}
