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

package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// ClusterKind is the Kind string used in owner references to a Cluster.
	ClusterKind = "InnoDBCluster"

	// MemberFinalizerName blocks Pod garbage collection until the instance
	// has left the group (spec.md §3 "member finalizer").
	MemberFinalizerName = "mysql.oracle.com/member"

	// ClusterFinalizerName blocks Cluster garbage collection until its last
	// Pod has been removed (spec.md §3 "Lifecycles").
	ClusterFinalizerName = "mysql.oracle.com/cluster"

	// ReadinessGateName is the Pod readiness gate condition that
	// k8sobjects.SetReadinessGate writes. No reconciler calls
	// SetReadinessGate, so the operator does not flip this condition.
	ReadinessGateName = "mysql.oracle.com/ready"
)

// InitDBCloneSource describes seeding a new cluster's data directory from a
// clone donor, rather than starting from scratch.
type InitDBCloneSource struct {
	// URI is the donor instance MySQL connects to perform the clone from.
	URI string `json:"uri"`
}

// InitDBSpec describes how a brand-new cluster should be seeded.
// A nil InitDBSpec means "start from scratch" (gtidSetIsComplete=true).
type InitDBSpec struct {
	// Clone, when set, seeds the cluster from an existing instance instead
	// of starting from a blank data directory.
	Clone *InitDBCloneSource `json:"clone,omitempty"`
}

// ClusterSpec is the declared, user-facing desired state of a cluster.
type ClusterSpec struct {
	// Instances is the declared number of database Pods (0..N-1 ordinals).
	Instances int32 `json:"instances"`

	// Image is the MySQL server container image.
	Image string `json:"image,omitempty"`

	// Routers is the number of MySQL Router replicas to maintain, or zero
	// to not deploy a router Deployment at all.
	Routers int32 `json:"routers,omitempty"`

	// InitDB configures how the cluster is seeded on first creation.
	InitDB *InitDBSpec `json:"initDB,omitempty"`

	// Configuration carries optional free-form my.cnf overrides. The core
	// never parses or validates these; it only passes them through to the
	// out-of-scope manifest generator.
	Configuration map[string]string `json:"configuration,omitempty"`
}

// ClusterStatus is the observed state of a cluster, as last computed by the
// Diagnostic Engine and written back by the Cluster Controller.
type ClusterStatus struct {
	// Status mirrors the Cluster Diagnostic's tag (spec.md §3).
	Status string `json:"status,omitempty"`

	// OnlineInstances is the count of members last observed ONLINE.
	OnlineInstances int32 `json:"onlineInstances,omitempty"`

	// LastProbeTime is when the Diagnostic Engine last ran for real.
	LastProbeTime *metav1.Time `json:"lastProbeTime,omitempty"`

	// CreateTime is set once create_cluster has been issued for pod-0, and
	// is never cleared; its presence distinguishes a cluster that is still
	// INITIALIZING from one that is INVALID (spec.md §4.2).
	CreateTime *metav1.Time `json:"createTime,omitempty"`

	// InitialDataSource records how the cluster was seeded: "blank" or
	// "clone=<uri>" (SPEC_FULL.md §4 item 1 / spec.md §4.4.1).
	InitialDataSource string `json:"initialDataSource,omitempty"`

	// IncrementalRecoveryAllowed is false when the cluster was seeded from
	// a clone donor, forcing new joiners to also use clone recovery until
	// this flag is explicitly allowed.
	IncrementalRecoveryAllowed bool `json:"incrementalRecoveryAllowed,omitempty"`
}

// Cluster is the Schema for the innodbclusters API.
// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
type Cluster struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ClusterSpec   `json:"spec,omitempty"`
	Status ClusterStatus `json:"status,omitempty"`
}

// ClusterList contains a list of Cluster.
// +kubebuilder:object:root=true
type ClusterList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Cluster `json:"items"`
}

// Deleting reports whether the Cluster is marked for deletion.
func (c *Cluster) Deleting() bool {
	return !c.DeletionTimestamp.IsZero()
}

// HasRouters reports whether the spec declares a router deployment.
func (c *Cluster) HasRouters() bool {
	return c.Spec.Routers > 0
}
