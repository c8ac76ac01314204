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

package controller

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
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

// clusterPodLabel is the label every pod belonging to a Cluster carries,
// pointing back at its owning cluster by name.
const clusterPodLabel = "mysql.oracle.com/cluster"

// PodReconciler drives the per-pod side of the Cluster Controller's state
// machine (spec.md §4.4): on_pod_created, on_pod_restarted and
// on_pod_deleted, plus the steady-state convergence that keeps a pod's
// group-replication membership matching its diagnostic.
type PodReconciler struct {
	client.Client

	Scheme      *runtime.Scheme
	Recorder    record.EventRecorder
	AdminClient adminapi.Client
	Mutex       *clustermutex.Registry
}

// NewPodReconciler builds a PodReconciler wired to mgr.
func NewPodReconciler(mgr ctrl.Manager, adminClient adminapi.Client, mutex *clustermutex.Registry) *PodReconciler {
	return &PodReconciler{
		Client:      mgr.GetClient(),
		Scheme:      mgr.GetScheme(),
		Recorder:    mgr.GetEventRecorderFor("mysql-operator"),
		AdminClient: adminClient,
		Mutex:       mutex,
	}
}

// SetupWithManager registers the reconciler with mgr, watching every Pod;
// Reconcile returns early for pods without the cluster label.
func (r *PodReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&corev1.Pod{}).
		Complete(r)
}

func (r *PodReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	contextLogger, ctx := log.SetupLogger(ctx)

	var pod corev1.Pod
	if err := r.Get(ctx, req.NamespacedName, &pod); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	clusterName, ok := pod.Labels[clusterPodLabel]
	if !ok {
		return ctrl.Result{}, nil
	}

	var cluster mysqlv1.Cluster
	if err := r.Get(ctx, types.NamespacedName{Namespace: pod.Namespace, Name: clusterName}, &cluster); err != nil {
		if apierrors.IsNotFound(err) {
			return ctrl.Result{}, nil
		}
		return ctrl.Result{}, err
	}

	lock, err := r.Mutex.TryAcquire(types.NamespacedName{Namespace: pod.Namespace, Name: clusterName}.String(), pod.Name)
	if err != nil {
		if busy, ok := err.(*clustermutex.BusyError); ok {
			return ctrl.Result{RequeueAfter: busy.RetryAfter()}, nil
		}
		return ctrl.Result{}, err
	}
	defer lock.Release()

	contextLogger.Debug("reconciling pod", "pod", pod.Name, "cluster", clusterName)

	start := time.Now()
	var outcome ctlresult.Outcome
	switch {
	case !pod.DeletionTimestamp.IsZero():
		outcome = r.onPodDeleted(ctx, &cluster, &pod)
	case !k8sobjects.HadPriorMembership(&pod) && isPodReady(&pod):
		outcome = r.onPodCreated(ctx, &cluster, &pod)
	case restarted(&pod):
		outcome = r.onPodRestarted(ctx, &cluster, &pod)
	default:
		outcome = r.steadyState(ctx, &cluster, &pod)
	}

	result, rerr := outcome.ToReconcileResult()
	label := "success"
	if rerr != nil {
		label = "error"
	}
	metrics.ReconcileDuration.WithLabelValues("pod", label).Observe(time.Since(start).Seconds())

	return result, rerr
}

// onPodCreated implements on_pod_created (spec.md §4.4): probe, then seed
// the cluster from pod-0 or, for any other index, wait for it to exist.
func (r *PodReconciler) onPodCreated(ctx context.Context, cluster *mysqlv1.Cluster, pod *corev1.Pod) ctlresult.Outcome {
	contextLogger := log.FromContext(ctx)

	diag, candidates, err := r.probe(ctx, cluster)
	if err != nil {
		return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)
	}

	index := k8sobjects.PodIndex(pod.Name)

	switch {
	case diag.Status == diagnose.Initializing && index == 0:
		contextLogger.Info("seeding new cluster", "pod", pod.Name)
		if err := runRetryLoop(ctx, func(ctx context.Context) error {
			return r.createCluster(ctx, cluster, pod)
		}); err != nil {
			if adminapi.IsTransient(err) {
				return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)
			}
			return ctlresult.Permanent(fmt.Errorf("create_cluster failed on %s: %w", pod.Name, err))
		}
		return ctlresult.Continue

	case diag.Status == diagnose.Initializing:
		return ctlresult.RetryAfter(configuration.Current.PodNotReadyRetryDelay)

	case diag.Status.IsOnlineFamily():
		primary, err := r.connectToPrimary(ctx, cluster, diag, candidates)
		if err != nil {
			return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)
		}
		defer primary.Close()
		if err := r.reconcilePod(ctx, cluster, pod, primary, diag); err != nil {
			return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)
		}
		return ctlresult.Continue

	default:
		return r.repairCluster(ctx, cluster, pod, diag)
	}
}

// onPodRestarted implements on_pod_restarted: repair first if the cluster
// isn't healthy, then reconcile this pod's own membership.
func (r *PodReconciler) onPodRestarted(ctx context.Context, cluster *mysqlv1.Cluster, pod *corev1.Pod) ctlresult.Outcome {
	diag, candidates, err := r.probe(ctx, cluster)
	if err != nil {
		return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)
	}

	if !diag.Status.IsOnlineFamily() {
		if outcome := r.repairCluster(ctx, cluster, pod, diag); outcome.IsPermanent() {
			return outcome
		}
	}

	primary, err := r.connectToPrimary(ctx, cluster, diag, candidates)
	if err != nil {
		return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)
	}
	defer primary.Close()

	if err := r.reconcilePod(ctx, cluster, pod, primary, diag); err != nil {
		return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)
	}
	return ctlresult.Continue
}

// onPodDeleted implements on_pod_deleted: destroy the cluster when pod-0
// leaves during deletion, otherwise remove the departing member or repair
// the cluster. The finalizer is dropped last, after a destroy or a remove;
// a failed remove_instance outside cluster deletion, and the repair
// branch, return a retry with the finalizer still in place.
func (r *PodReconciler) onPodDeleted(ctx context.Context, cluster *mysqlv1.Cluster, pod *corev1.Pod) ctlresult.Outcome {
	contextLogger := log.FromContext(ctx)
	diag, _, err := r.probe(ctx, cluster)
	if err != nil {
		diag.Status = diagnose.Unknown
	}

	index := k8sobjects.PodIndex(pod.Name)
	deleting := cluster.Deleting()

	switch {
	case deleting && index == 0:
		if err := r.destroyCluster(ctx, cluster, pod); err != nil {
			contextLogger.Warning("destroy_cluster failed, continuing with pod deletion", "error", err)
		}

	case deleting || diag.Status.IsOnlineFamily() || diag.Status == diagnose.Finalizing:
		removeErr := runRetryLoop(ctx, func(ctx context.Context) error {
			return r.removeInstance(ctx, cluster, pod, diag)
		})
		// Best effort once the cluster itself is being torn down; otherwise
		// the pod must keep its finalizer until remove_instance succeeds.
		if err := ctlresult.IgnoreIfDeleting(deleting, func() error { return removeErr }); err != nil {
			if adminapi.IsReadOnlyGrace(err) {
				return ctlresult.RetryAfter(configuration.Current.PrimaryReadOnlyGraceDelay)
			}
			contextLogger.Warning("remove_instance failed", "pod", pod.Name, "error", err)
			return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)
		} else if removeErr != nil {
			contextLogger.Warning("remove_instance failed, continuing with pod deletion", "pod", pod.Name, "error", removeErr)
		}

	default:
		if outcome := r.repairCluster(ctx, cluster, pod, diag); outcome.IsPermanent() {
			return outcome
		}
		return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)
	}

	if err := k8sobjects.RemoveMemberFinalizer(ctx, r.Client, pod); err != nil {
		return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)
	}
	return ctlresult.Continue
}

// steadyState keeps an already-known pod converged with the cluster's
// current diagnosis, covering the level-triggered case where nothing
// edge-worthy happened but the pod's membership still needs attention
// (e.g. after a controller restart).
func (r *PodReconciler) steadyState(ctx context.Context, cluster *mysqlv1.Cluster, pod *corev1.Pod) ctlresult.Outcome {
	diag, candidates, err := r.probe(ctx, cluster)
	if err != nil {
		return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)
	}

	if !diag.Status.IsOnlineFamily() {
		return r.repairCluster(ctx, cluster, pod, diag)
	}

	primary, err := r.connectToPrimary(ctx, cluster, diag, candidates)
	if err != nil {
		return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)
	}
	defer primary.Close()

	if err := r.reconcilePod(ctx, cluster, pod, primary, diag); err != nil {
		return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)
	}
	return ctlresult.Continue
}

func isPodReady(pod *corev1.Pod) bool {
	for _, c := range pod.Status.Conditions {
		if c.Type == corev1.PodReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}

// restarted reports whether any container in pod has ever restarted (a
// non-zero RestartCount), whatever its last recorded membership
// transition. A full accounting of the
// instance-manager-driven restart tracking the original Python used is out
// of scope; container restart counts are a reasonable proxy available
// from the Pod status alone.
func restarted(pod *corev1.Pod) bool {
	for _, cs := range pod.Status.ContainerStatuses {
		if cs.RestartCount > 0 {
			return true
		}
	}
	return false
}
