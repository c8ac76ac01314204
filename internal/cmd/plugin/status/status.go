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

package status

import (
	"context"
	"fmt"
	"os"

	"github.com/cheynewallace/tabby"
	corev1 "k8s.io/api/core/v1"
	apierrs "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"

	mysqlv1 "github.com/22ndtech/mysql-operator/api/v1"
	"github.com/22ndtech/mysql-operator/internal/cmd/plugin"
	"github.com/22ndtech/mysql-operator/pkg/adminapi"
	"github.com/22ndtech/mysql-operator/pkg/diagnose"
	"github.com/22ndtech/mysql-operator/pkg/k8sobjects"
)

const clusterPodLabel = "mysql.oracle.com/cluster"

// ClusterStatus is everything the status command knows about one
// cluster: the Cluster object itself and its current group-replication
// diagnosis.
type ClusterStatus struct {
	Cluster *mysqlv1.Cluster `json:"cluster" yaml:"cluster"`

	Diagnostic diagnose.ClusterDiagnostic              `json:"diagnostic" yaml:"diagnostic"`
	Candidates map[string]diagnose.CandidateDiagnostic `json:"candidates" yaml:"candidates"`
	Pods       []corev1.Pod                            `json:"pods" yaml:"pods"`
}

// Status implements the "status" subcommand: it connects directly to the
// cluster's instances the same way the operator does, using the
// Admin Client Interface, rather than shelling out to a sidecar.
func Status(ctx context.Context, clusterName, adminCredentialsSecretName string, format plugin.OutputFormat) error {
	status, err := ExtractClusterStatus(ctx, clusterName, adminCredentialsSecretName)
	if err != nil {
		return err
	}

	if err := plugin.Print(status, format, os.Stdout); err != nil {
		return err
	}
	if format != plugin.OutputFormatText {
		return nil
	}

	status.printBasicInfo()
	status.printInstancesTable()
	return nil
}

// ExtractClusterStatus gathers the Cluster object, its pods and a fresh
// Diagnostic Engine pass over them.
func ExtractClusterStatus(ctx context.Context, clusterName, adminCredentialsSecretName string) (*ClusterStatus, error) {
	var cluster mysqlv1.Cluster
	if err := plugin.Client.Get(ctx, client.ObjectKey{Namespace: plugin.Namespace, Name: clusterName}, &cluster); err != nil {
		return nil, fmt.Errorf("unable to get cluster %s/%s: %w", plugin.Namespace, clusterName, err)
	}

	var podList corev1.PodList
	if err := plugin.Client.List(ctx, &podList,
		client.InNamespace(plugin.Namespace),
		client.MatchingLabels{clusterPodLabel: clusterName}); err != nil {
		return nil, fmt.Errorf("unable to list pods for cluster %s/%s: %w", plugin.Namespace, clusterName, err)
	}

	credentials, err := loadAdminCredentials(ctx, adminCredentialsSecretName)
	if err != nil {
		return nil, err
	}
	adminClient := adminapi.NewMySQLClient(credentials)

	in := diagnose.ClusterInput{
		HasCreateTime: cluster.Status.CreateTime != nil,
		Deleting:      cluster.Deleting(),
	}
	for i := range podList.Items {
		pod := &podList.Items[i]
		membership := k8sobjects.GetMembershipInfo(pod)
		in.Pods = append(in.Pods, diagnose.PodInfo{
			Name:               pod.Name,
			Index:              k8sobjects.PodIndex(pod.Name),
			Endpoint:           k8sobjects.PodEndpoint(pod.Namespace, clusterName, pod.Name),
			ServerUUID:         membership.MemberID,
			HadPriorMembership: k8sobjects.HadPriorMembership(pod),
		})
	}

	diag, candidates, err := diagnose.DiagnoseCluster(ctx, adminClient, in)
	if err != nil {
		return nil, fmt.Errorf("unable to diagnose cluster %s/%s: %w", plugin.Namespace, clusterName, err)
	}

	return &ClusterStatus{
		Cluster:    &cluster,
		Diagnostic: diag,
		Candidates: candidates,
		Pods:       podList.Items,
	}, nil
}

func loadAdminCredentials(ctx context.Context, secretName string) (adminapi.Credentials, error) {
	var secret corev1.Secret
	err := plugin.Client.Get(ctx, client.ObjectKey{Namespace: plugin.Namespace, Name: secretName}, &secret)
	if apierrs.IsNotFound(err) {
		return adminapi.Credentials{}, fmt.Errorf("secret %s/%s not found", plugin.Namespace, secretName)
	}
	if err != nil {
		return adminapi.Credentials{}, err
	}

	password := string(secret.Data["password"])
	if password == "" {
		return adminapi.Credentials{}, fmt.Errorf("secret %s/%s has no \"password\" key", plugin.Namespace, secretName)
	}
	username := string(secret.Data["username"])
	if username == "" {
		username = "mysqladmin"
	}

	return adminapi.Credentials{User: username, Password: password}, nil
}

func (s *ClusterStatus) printBasicInfo() {
	fmt.Printf("Cluster %s/%s\n", s.Cluster.Namespace, s.Cluster.Name)
	fmt.Printf("Status: %s\n", plugin.ColorizeStatus(string(s.Diagnostic.Status)))
	fmt.Printf("Online instances: %d/%d\n\n", len(s.Diagnostic.OnlineMembers), len(s.Pods))
}

func (s *ClusterStatus) printInstancesTable() {
	t := tabby.New()
	t.AddHeader("POD", "ROLE", "STATUS", "VIEW ID", "CANDIDATE")

	for i := range s.Pods {
		pod := &s.Pods[i]
		membership := k8sobjects.GetMembershipInfo(pod)
		candidate := s.Candidates[pod.Name]

		t.AddLine(
			pod.Name,
			plugin.ColorizeRole(membership.Role),
			plugin.ColorizeStatus(membership.Status),
			membership.ViewID,
			string(candidate.Status),
		)
	}

	t.Print()
}
