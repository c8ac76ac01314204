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

	"github.com/sethvargo/go-password/password"
	corev1 "k8s.io/api/core/v1"

	mysqlv1 "github.com/22ndtech/mysql-operator/api/v1"
	"github.com/22ndtech/mysql-operator/internal/configuration"
	"github.com/22ndtech/mysql-operator/pkg/adminapi"
	"github.com/22ndtech/mysql-operator/pkg/diagnose"
	"github.com/22ndtech/mysql-operator/pkg/k8sobjects"
	"github.com/22ndtech/mysql-operator/pkg/log"
)

// createCluster implements create_cluster (spec.md §4.4.1): seed is
// always pod-0.
func (r *PodReconciler) createCluster(ctx context.Context, cluster *mysqlv1.Cluster, seed *corev1.Pod) error {
	contextLogger := log.FromContext(ctx)

	if err := k8sobjects.EnsureMemberFinalizer(ctx, r.Client, seed); err != nil {
		return err
	}

	ep := k8sobjects.PodEndpoint(seed.Namespace, cluster.Name, seed.Name)
	sess, err := r.AdminClient.Connect(ctx, ep)
	if err != nil {
		return err
	}
	defer sess.Close()

	info, err := r.AdminClient.ServerInfo(ctx, sess)
	if err == nil {
		contextLogger.Debug("seed server info",
			"serverId", info.ServerID, "serverUuid", info.ServerUUID, "gtidExecuted", info.GTIDExecuted)
	}

	gtidSetIsComplete := cluster.Spec.InitDB == nil || cluster.Spec.InitDB.Clone == nil

	opts := adminapi.CreateClusterOptions{
		GTIDSetIsComplete: gtidSetIsComplete,
		StartOnBoot:       false,
		MemberSSLMode:     "REQUIRED",
		ExitStateAction:   adminapi.CommonGRExitStateAction,
	}

	err = r.AdminClient.CreateCluster(ctx, sess, cluster.Name, opts)
	if err != nil && adminapi.IsAlreadyInGroup(err) {
		if stopErr := r.AdminClient.StopGroupReplication(ctx, sess); stopErr != nil {
			return fmt.Errorf("recovering from already-in-group: %w", stopErr)
		}
		err = r.AdminClient.CreateCluster(ctx, sess, cluster.Name, opts)
	}
	if err != nil {
		return err
	}

	if err := r.provisionServiceAccounts(ctx, cluster, sess); err != nil {
		contextLogger.Warning("account provisioning failed", "error", err)
	}

	return k8sobjects.SetMembershipInfo(ctx, r.Client, seed, k8sobjects.MembershipInfo{
		MemberID:           info.ServerUUID,
		Role:               string(adminapi.RolePrimary),
		Status:             string(adminapi.StatusOnline),
		LastTransitionTime: timeNow(),
	})
}

// provisionServiceAccounts creates or refreshes the router and backup
// accounts after a successful create_cluster (SPEC_FULL.md §4 item 1:
// a feature the distillation dropped but the original source performs
// right after bootstrapping).
func (r *PodReconciler) provisionServiceAccounts(ctx context.Context, cluster *mysqlv1.Cluster, sess adminapi.Session) error {
	routerPassword, err := password.Generate(24, 6, 0, false, true)
	if err != nil {
		return err
	}
	if err := r.AdminClient.EnsureRouterAccount(ctx, sess, configuration.Current.RouterUserName, routerPassword); err != nil {
		return err
	}

	backupPassword, err := password.Generate(24, 6, 0, false, true)
	if err != nil {
		return err
	}
	return r.AdminClient.EnsureBackupAccount(ctx, sess, configuration.Current.BackupUserName, backupPassword)
}

// reconcilePod implements reconcile_pod (spec.md §4.4.1): classify pod
// against primary's view and drive it towards MEMBER.
func (r *PodReconciler) reconcilePod(ctx context.Context, cluster *mysqlv1.Cluster, pod *corev1.Pod, primary adminapi.Session, diag diagnose.ClusterDiagnostic) error {
	contextLogger := log.FromContext(ctx)

	members, err := r.AdminClient.QueryMembers(ctx, primary)
	if err != nil {
		return err
	}
	byUUID := make(map[string]adminapi.MemberInfo, len(members))
	for _, m := range members {
		byUUID[m.MemberID] = m
	}

	membership := k8sobjects.GetMembershipInfo(pod)
	candidate := diagnose.DiagnoseCandidate(diagnose.PodInfo{
		Name:               pod.Name,
		ServerUUID:         membership.MemberID,
		HadPriorMembership: k8sobjects.HadPriorMembership(pod),
	}, byUUID, true)

	switch candidate.Status {
	case diagnose.Joinable:
		return r.joinInstance(ctx, cluster, pod, primary)

	case diagnose.Rejoinable:
		return r.rejoinInstance(ctx, cluster, pod, primary)

	case diagnose.Member:
		return nil

	case diagnose.Unreachable:
		contextLogger.Debug("pod unreachable, waiting for next event", "pod", pod.Name)
		return nil

	case diagnose.Broken:
		contextLogger.Error(nil, "pod has errant membership state, refusing to auto-repair", "pod", pod.Name)
		return nil

	default:
		return nil
	}
}

// joinInstance implements the JOINABLE branch: recoveryMethod is clone
// unless incremental recovery was explicitly allowed by prior cluster
// state (api/v1.ClusterStatus.IncrementalRecoveryAllowed).
func (r *PodReconciler) joinInstance(ctx context.Context, cluster *mysqlv1.Cluster, pod *corev1.Pod, primary adminapi.Session) error {
	if err := k8sobjects.EnsureMemberFinalizer(ctx, r.Client, pod); err != nil {
		return err
	}

	recoveryMethod := "clone"
	if cluster.Status.IncrementalRecoveryAllowed {
		recoveryMethod = "incremental"
	}

	ep := k8sobjects.PodEndpoint(pod.Namespace, cluster.Name, pod.Name)
	if err := r.AdminClient.AddInstance(ctx, primary, ep, adminapi.AddInstanceOptions{
		RecoveryMethod:  recoveryMethod,
		ExitStateAction: adminapi.CommonGRExitStateAction,
	}); err != nil {
		return err
	}

	joinSess, err := r.AdminClient.Connect(ctx, ep)
	var serverUUID string
	if err == nil {
		defer joinSess.Close()
		if info, err := r.AdminClient.ServerInfo(ctx, joinSess); err == nil {
			serverUUID = info.ServerUUID
		}
	}

	return k8sobjects.SetMembershipInfo(ctx, r.Client, pod, k8sobjects.MembershipInfo{
		MemberID:           serverUUID,
		Role:               string(adminapi.RoleSecondary),
		Status:             string(adminapi.StatusOnline),
		LastTransitionTime: timeNow(),
	})
}

// rejoinInstance implements the REJOINABLE branch.
func (r *PodReconciler) rejoinInstance(ctx context.Context, cluster *mysqlv1.Cluster, pod *corev1.Pod, primary adminapi.Session) error {
	ep := k8sobjects.PodEndpoint(pod.Namespace, cluster.Name, pod.Name)
	if err := r.AdminClient.RejoinInstance(ctx, primary, ep, adminapi.RejoinInstanceOptions{}); err != nil {
		return err
	}

	membership := k8sobjects.GetMembershipInfo(pod)
	membership.Role = string(adminapi.RoleSecondary)
	membership.Status = string(adminapi.StatusOnline)
	membership.LastTransitionTime = timeNow()
	return k8sobjects.SetMembershipInfo(ctx, r.Client, pod, membership)
}

// removeInstance implements remove_instance (spec.md §4.4.1): graceful
// first, then forced, tolerating the read-only grace window and an
// already-removed member.
func (r *PodReconciler) removeInstance(ctx context.Context, cluster *mysqlv1.Cluster, pod *corev1.Pod, _ diagnose.ClusterDiagnostic) error {
	ep := k8sobjects.PodEndpoint(pod.Namespace, cluster.Name, pod.Name)

	pods, err := listClusterPods(ctx, r.Client, cluster)
	if err != nil {
		return err
	}
	if len(pods) <= 1 {
		return nil
	}

	diag, candidates, err := r.probe(ctx, cluster)
	if err != nil {
		return err
	}

	primary, err := r.connectToPrimary(ctx, cluster, diag, candidates)
	if err != nil {
		return err
	}
	defer primary.Close()

	err = r.AdminClient.RemoveInstance(ctx, primary, ep, adminapi.RemoveInstanceOptions{})
	switch {
	case err == nil:
		return nil
	case adminapi.IsReadOnlyGrace(err):
		// Returned unwrapped: adminapi.AsAdminError is a plain type
		// assertion, so wrapping here would hide the *adminapi.Error from
		// the caller's adminapi.IsReadOnlyGrace check.
		return err
	case adminapi.IsMemberMetadataMissing(err):
		return nil
	default:
		return r.AdminClient.RemoveInstance(ctx, primary, ep, adminapi.RemoveInstanceOptions{Force: true})
	}
}

// rebootCluster implements reboot_cluster: only ever from pod-0.
func (r *PodReconciler) rebootCluster(ctx context.Context, cluster *mysqlv1.Cluster, seed *corev1.Pod) error {
	ep := k8sobjects.PodEndpoint(seed.Namespace, cluster.Name, seed.Name)
	sess, err := r.AdminClient.Connect(ctx, ep)
	if err != nil {
		return err
	}
	defer sess.Close()
	return r.AdminClient.RebootClusterFromCompleteOutage(ctx, sess)
}

// forceQuorum implements force_quorum(seed_pod).
func (r *PodReconciler) forceQuorum(ctx context.Context, cluster *mysqlv1.Cluster, seedPodName string) error {
	ep := k8sobjects.PodEndpoint(cluster.Namespace, cluster.Name, seedPodName)
	sess, err := r.AdminClient.Connect(ctx, ep)
	if err != nil {
		return err
	}
	defer sess.Close()
	return r.AdminClient.ForceQuorumUsingPartitionOf(ctx, sess, ep)
}

// destroyCluster implements destroy_cluster(last_pod): best effort, bounded
// by a short timeout, regardless of outcome the finalizer still comes off.
func (r *PodReconciler) destroyCluster(ctx context.Context, cluster *mysqlv1.Cluster, last *corev1.Pod) error {
	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ep := k8sobjects.PodEndpoint(last.Namespace, cluster.Name, last.Name)
	sess, err := r.AdminClient.Connect(stopCtx, ep)
	if err != nil {
		return err
	}
	defer sess.Close()
	return r.AdminClient.StopGroupReplication(stopCtx, sess)
}

func timeNow() time.Time {
	return time.Now()
}
