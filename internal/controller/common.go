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
	"sigs.k8s.io/controller-runtime/pkg/client"

	mysqlv1 "github.com/22ndtech/mysql-operator/api/v1"
	"github.com/22ndtech/mysql-operator/pkg/adminapi"
	"github.com/22ndtech/mysql-operator/pkg/diagnose"
	"github.com/22ndtech/mysql-operator/pkg/k8sobjects"
)

func listClusterPods(ctx context.Context, c client.Client, cluster *mysqlv1.Cluster) ([]corev1.Pod, error) {
	var pods corev1.PodList
	if err := c.List(ctx, &pods,
		client.InNamespace(cluster.Namespace),
		client.MatchingLabels{clusterPodLabel: cluster.Name}); err != nil {
		return nil, err
	}
	return pods.Items, nil
}

func clusterInputFor(cluster *mysqlv1.Cluster, pods []corev1.Pod) diagnose.ClusterInput {
	in := diagnose.ClusterInput{
		HasCreateTime: cluster.Status.CreateTime != nil,
		Deleting:      cluster.Deleting(),
	}
	for i := range pods {
		pod := &pods[i]
		membership := k8sobjects.GetMembershipInfo(pod)
		in.Pods = append(in.Pods, diagnose.PodInfo{
			Name:               pod.Name,
			Index:              k8sobjects.PodIndex(pod.Name),
			Endpoint:           k8sobjects.PodEndpoint(pod.Namespace, cluster.Name, pod.Name),
			ServerUUID:         membership.MemberID,
			HadPriorMembership: k8sobjects.HadPriorMembership(pod),
		})
	}
	return in
}

// probe runs the Diagnostic Engine over cluster's current pods, the
// shared entry point behind probe_status/probe_status_if_needed in the
// original source.
func (r *PodReconciler) probe(ctx context.Context, cluster *mysqlv1.Cluster) (diagnose.ClusterDiagnostic, map[string]diagnose.CandidateDiagnostic, error) {
	pods, err := listClusterPods(ctx, r.Client, cluster)
	if err != nil {
		return diagnose.ClusterDiagnostic{}, nil, err
	}
	return diagnose.DiagnoseCluster(ctx, r.AdminClient, clusterInputFor(cluster, pods))
}

// connectToPrimary opens a session to any pod the diagnostic engine
// reports as a current MEMBER and jumps to whichever instance is the
// PRIMARY of that view, the Go equivalent of shellutils.connect_dba +
// jump_to_primary used throughout the original source's event sinks.
func (r *PodReconciler) connectToPrimary(
	ctx context.Context,
	cluster *mysqlv1.Cluster,
	diag diagnose.ClusterDiagnostic,
	candidates map[string]diagnose.CandidateDiagnostic,
) (adminapi.Session, error) {
	pods, err := listClusterPods(ctx, r.Client, cluster)
	if err != nil {
		return nil, err
	}

	for i := range pods {
		pod := &pods[i]
		if candidates[pod.Name].Status != diagnose.Member {
			continue
		}
		ep := k8sobjects.PodEndpoint(pod.Namespace, cluster.Name, pod.Name)
		sess, err := r.AdminClient.Connect(ctx, ep)
		if err != nil {
			continue
		}
		primary, err := r.AdminClient.JumpToPrimary(ctx, sess)
		if err != nil {
			_ = sess.Close()
			continue
		}
		if primary == nil {
			_ = sess.Close()
			continue
		}
		if primary != sess {
			_ = sess.Close()
		}
		return primary, nil
	}
	return nil, fmt.Errorf("internal/controller: no reachable PRIMARY for cluster %s/%s", cluster.Namespace, cluster.Name)
}
