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
	apierrs "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	mysqlv1 "github.com/22ndtech/mysql-operator/api/v1"
	"github.com/22ndtech/mysql-operator/internal/configuration"
	reconcilers "github.com/22ndtech/mysql-operator/internal/controller"
	"github.com/22ndtech/mysql-operator/pkg/adminapi"
	"github.com/22ndtech/mysql-operator/pkg/clustermutex"
	"github.com/22ndtech/mysql-operator/pkg/groupmonitor"
	"github.com/22ndtech/mysql-operator/pkg/k8sobjects"
	"github.com/22ndtech/mysql-operator/pkg/log"
)

var scheme = runtime.NewScheme()

func init() {
	_ = clientgoscheme.AddToScheme(scheme)
	_ = mysqlv1.AddToScheme(scheme)
}

// clusterPodLabel mirrors internal/controller's clusterPodLabel; it is
// duplicated here (rather than exported) because it is this package, not
// internal/controller, that lists every cluster's pods for the Group
// Monitor's PodSource.
const clusterPodLabel = "mysql.oracle.com/cluster"

// LeaderElectionID identifies this operator's leader election lease.
const LeaderElectionID = "mysql-operator-lock.mysql.oracle.com"

// leaderElectionConfiguration holds the leader-election parameters parsed
// from cobra flags, passed down to ctrl.Options.
type leaderElectionConfiguration struct {
	enable        bool
	leaseDuration time.Duration
	renewDeadline time.Duration
}

// RunController is the main procedure of the operator: it builds the
// controller-runtime manager, wires the Cluster Controller's two
// reconcilers and the Group Monitor's background poll loop, then blocks
// until the process is asked to stop.
func RunController(
	metricsAddr string,
	configMapName string,
	secretName string,
	adminCredentialsSecretName string,
	leaderConfig leaderElectionConfiguration,
) error {
	ctx := context.Background()
	setupLog := log.GetLogger().WithName("setup")

	setupLog.Info("starting mysql-operator")

	managerOptions := ctrl.Options{
		Scheme:                        scheme,
		MetricsBindAddress:            metricsAddr,
		LeaderElection:                leaderConfig.enable,
		LeaseDuration:                 &leaderConfig.leaseDuration,
		RenewDeadline:                 &leaderConfig.renewDeadline,
		LeaderElectionID:              LeaderElectionID,
		LeaderElectionReleaseOnCancel: true,
	}

	mgr, err := ctrl.NewManager(ctrl.GetConfigOrDie(), managerOptions)
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		return err
	}

	kubeClient, err := client.New(mgr.GetConfig(), client.Options{Scheme: scheme})
	if err != nil {
		setupLog.Error(err, "unable to create Kubernetes client")
		return err
	}

	if err := loadConfiguration(ctx, kubeClient, configMapName, secretName); err != nil {
		return err
	}
	setupLog.Info("operator configuration loaded", "namespace", configuration.Current.OperatorNamespace)

	credentials, err := loadAdminCredentials(ctx, kubeClient, adminCredentialsSecretName)
	if err != nil {
		setupLog.Error(err, "unable to load admin credentials")
		return err
	}

	adminClient := adminapi.NewMySQLClient(credentials)
	mutex := clustermutex.NewRegistry()

	if err = reconcilers.NewClusterReconciler(mgr, adminClient, mutex).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "Cluster")
		return err
	}

	if err = reconcilers.NewPodReconciler(mgr, adminClient, mutex).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "Pod")
		return err
	}

	if err := mgr.Add(groupMonitorRunnable{mgr: mgr, adminClient: adminClient}); err != nil {
		setupLog.Error(err, "unable to register group monitor")
		return err
	}

	setupLog.Info("starting manager")
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		return err
	}

	return nil
}

// groupMonitorRunnable adapts the Group Monitor to manager.Runnable, so it
// starts after the manager's cache is synced and stops when the manager
// does, the same lifecycle webhook servers and leader-election-gated
// controllers get.
type groupMonitorRunnable struct {
	mgr         ctrl.Manager
	adminClient adminapi.Client
}

func (g groupMonitorRunnable) Start(ctx context.Context) error {
	gm := groupmonitor.New(g.adminClient)

	var clusterList mysqlv1.ClusterList
	if err := g.mgr.GetClient().List(ctx, &clusterList); err != nil {
		return err
	}
	for i := range clusterList.Items {
		cluster := &clusterList.Items[i]
		key := types.NamespacedName{Namespace: cluster.Namespace, Name: cluster.Name}
		gm.Monitor(key, podSourceFor(g.mgr.GetClient(), key), handlerFor(g.mgr.GetClient(), key))
	}

	gm.Run(ctx)
	return nil
}

func podSourceFor(c client.Client, cluster types.NamespacedName) groupmonitor.PodSource {
	return func(ctx context.Context) ([]groupmonitor.PodMembership, error) {
		var pods corev1.PodList
		if err := c.List(ctx, &pods,
			client.InNamespace(cluster.Namespace),
			client.MatchingLabels{clusterPodLabel: cluster.Name}); err != nil {
			return nil, err
		}

		out := make([]groupmonitor.PodMembership, 0, len(pods.Items))
		for i := range pods.Items {
			pod := &pods.Items[i]
			membership := k8sobjects.GetMembershipInfo(pod)
			out = append(out, groupmonitor.PodMembership{
				Name:     pod.Name,
				Endpoint: k8sobjects.PodEndpoint(pod.Namespace, cluster.Name, pod.Name),
				Role:     membership.Role,
			})
		}
		return out, nil
	}
}

// handlerFor builds the Group Monitor callback for cluster: it stamps the
// observed membership view back onto each pod, the same record the
// Diagnostic Engine reads on the next reconcile, so a view change noticed
// between reconciles is not lost.
func handlerFor(c client.Client, cluster types.NamespacedName) groupmonitor.Handler {
	return func(_ types.NamespacedName, members []adminapi.MemberInfo, viewChanged bool) {
		if !viewChanged {
			return
		}
		ctx := context.Background()
		contextLogger := log.GetLogger().WithName("group-monitor")

		var pods corev1.PodList
		if err := c.List(ctx, &pods,
			client.InNamespace(cluster.Namespace),
			client.MatchingLabels{clusterPodLabel: cluster.Name}); err != nil {
			contextLogger.Debug("unable to list pods for membership update", "cluster", cluster, "error", err)
			return
		}

		byUUID := make(map[string]adminapi.MemberInfo, len(members))
		for _, m := range members {
			byUUID[m.MemberID] = m
		}

		for i := range pods.Items {
			pod := &pods.Items[i]
			existing := k8sobjects.GetMembershipInfo(pod)
			member, ok := byUUID[existing.MemberID]
			if !ok {
				continue
			}

			lastTransition := existing.LastTransitionTime
			if string(member.Role) != existing.Role || string(member.Status) != existing.Status {
				lastTransition = time.Now()
			}

			if err := k8sobjects.SetMembershipInfo(ctx, c, pod, k8sobjects.MembershipInfo{
				MemberID:           existing.MemberID,
				Role:               string(member.Role),
				Status:             string(member.Status),
				ViewID:             member.ViewID,
				ServerVersion:      existing.ServerVersion,
				LastTransitionTime: lastTransition,
			}); err != nil {
				contextLogger.Debug("unable to stamp membership", "pod", pod.Name, "error", err)
			}
		}
	}
}

// loadConfiguration layers env-derived defaults, an optional ConfigMap and
// an optional Secret into configuration.Current, mirroring the teacher's
// precedence (Secret overrides ConfigMap, which overrides the defaults).
func loadConfiguration(ctx context.Context, kubeClient client.Client, configMapName, secretName string) error {
	*configuration.Current = *configuration.FromEnvironment()

	configData := make(map[string]string)

	if configMapName != "" {
		data, err := readConfigMap(ctx, kubeClient, configuration.Current.OperatorNamespace, configMapName)
		if err != nil {
			return fmt.Errorf("unable to read ConfigMap %s/%s: %w", configuration.Current.OperatorNamespace, configMapName, err)
		}
		for k, v := range data {
			configData[k] = v
		}
	}

	if secretName != "" {
		data, err := readSecret(ctx, kubeClient, configuration.Current.OperatorNamespace, secretName)
		if err != nil {
			return fmt.Errorf("unable to read Secret %s/%s: %w", configuration.Current.OperatorNamespace, secretName, err)
		}
		for k, v := range data {
			configData[k] = v
		}
	}

	if len(configData) > 0 {
		configuration.Current.ReadConfigMap(configData)
	}

	return nil
}

func readConfigMap(ctx context.Context, kubeClient client.Client, namespace, name string) (map[string]string, error) {
	configMap := &corev1.ConfigMap{}
	err := kubeClient.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, configMap)
	if apierrs.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return configMap.Data, nil
}

func readSecret(ctx context.Context, kubeClient client.Client, namespace, name string) (map[string]string, error) {
	secret := &corev1.Secret{}
	err := kubeClient.Get(ctx, types.NamespacedName{Namespace: namespace, Name: name}, secret)
	if apierrs.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	data := make(map[string]string, len(secret.Data))
	for k, v := range secret.Data {
		data[k] = string(v)
	}
	return data, nil
}

// loadAdminCredentials reads the "username"/"password" keys the operator
// uses to open Admin Client Interface connections. A missing username
// falls back to configuration.Current.ClusterAdminUserName; a missing
// password is an error, since there is no sane default administrative
// password to fall back on.
func loadAdminCredentials(ctx context.Context, kubeClient client.Client, secretName string) (adminapi.Credentials, error) {
	data, err := readSecret(ctx, kubeClient, configuration.Current.OperatorNamespace, secretName)
	if err != nil {
		return adminapi.Credentials{}, err
	}

	username := data["username"]
	if username == "" {
		username = configuration.Current.ClusterAdminUserName
	}
	password := data["password"]
	if password == "" {
		return adminapi.Credentials{}, fmt.Errorf(
			"secret %s/%s must contain a non-empty %q key",
			configuration.Current.OperatorNamespace, secretName, "password")
	}

	return adminapi.Credentials{User: username, Password: password}, nil
}
