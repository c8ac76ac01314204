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

	corev1 "k8s.io/api/core/v1"

	mysqlv1 "github.com/22ndtech/mysql-operator/api/v1"
	"github.com/22ndtech/mysql-operator/internal/configuration"
	"github.com/22ndtech/mysql-operator/pkg/ctlresult"
	"github.com/22ndtech/mysql-operator/pkg/diagnose"
	"github.com/22ndtech/mysql-operator/pkg/k8sobjects"
	"github.com/22ndtech/mysql-operator/pkg/log"
)

// repairCluster implements the repair dispatch table (spec.md §4.4.2): it
// decides what, if anything, to do about a cluster diagnosed as anything
// other than healthy and ONLINE. SPLIT_BRAIN, SPLIT_BRAIN_UNCERTAIN and
// INVALID are unrecoverable by automation and raise a permanent outcome
// (spec.md §7 kind 6); every other branch is best effort and asks for a
// retry.
func (r *PodReconciler) repairCluster(ctx context.Context, cluster *mysqlv1.Cluster, pod *corev1.Pod, diag diagnose.ClusterDiagnostic) ctlresult.Outcome {
	contextLogger := log.FromContext(ctx)

	switch {
	case diag.Status.IsOnlineFamily():
		return ctlresult.Continue

	case diag.Status == diagnose.Finalizing:
		// cluster is tearing down, no repair is owed
		return ctlresult.Continue

	case diag.Status == diagnose.Offline && k8sobjects.PodIndex(pod.Name) == 0:
		contextLogger.Info("rebooting cluster from complete outage", "seed", pod.Name)
		if err := r.rebootCluster(ctx, cluster, pod); err != nil {
			contextLogger.Error(err, "reboot_cluster failed", "seed", pod.Name)
		}
		return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)

	case diag.Status == diagnose.Offline:
		contextLogger.Debug("cluster offline, waiting for pod-0 to attempt reboot", "pod", pod.Name)
		return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)

	case diag.Status == diagnose.OfflineUncertain:
		contextLogger.Debug("cluster offline state uncertain, retrying", "pod", pod.Name)
		return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)

	case diag.Status == diagnose.NoQuorum:
		seed := firstQuorumCandidate(diag)
		if seed == "" {
			contextLogger.Error(nil, "no_quorum but no quorum candidate available", "cluster", cluster.Name)
			return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)
		}
		contextLogger.Info("forcing quorum", "seed", seed)
		if err := r.forceQuorum(ctx, cluster, seed); err != nil {
			contextLogger.Error(err, "force_quorum failed", "seed", seed)
		}
		return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)

	case diag.Status == diagnose.NoQuorumUncertain:
		contextLogger.Debug("quorum loss uncertain, retrying", "cluster", cluster.Name)
		return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)

	case diag.Status == diagnose.SplitBrain, diag.Status == diagnose.SplitBrainUncertain:
		contextLogger.Error(nil, "split-brain detected, refusing automatic repair", "cluster", cluster.Name)
		return ctlresult.Permanent(fmt.Errorf("cluster %s is split-brained: refusing automatic repair", cluster.Name))

	case diag.Status == diagnose.Unknown:
		contextLogger.Debug("cluster state unknown, retrying", "cluster", cluster.Name)
		return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)

	case diag.Status == diagnose.Invalid:
		contextLogger.Error(nil, "cluster reports an invalid combination of members, refusing automatic repair", "cluster", cluster.Name)
		return ctlresult.Permanent(fmt.Errorf("cluster %s reports an invalid combination of members", cluster.Name))

	default:
		contextLogger.Debug("no repair action defined for status", "status", diag.Status)
		return ctlresult.RetryAfter(configuration.Current.RepairRetryDelay)
	}
}

func firstQuorumCandidate(diag diagnose.ClusterDiagnostic) string {
	if len(diag.QuorumCandidates) == 0 {
		return ""
	}
	return diag.QuorumCandidates[0]
}
