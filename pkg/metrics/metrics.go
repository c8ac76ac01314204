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

// Package metrics registers the operator's custom Prometheus collectors
// against controller-runtime's metrics registry, the same registry the
// manager already exposes on its metrics-bind-address.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	// ClusterState reports, as a 1/0 gauge per cluster/state pair, the
	// Diagnostic Engine's current classification of each cluster: exactly
	// one state is 1 for a given cluster at any time.
	ClusterState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mysql_operator_cluster_state",
		Help: "Current diagnosed state of a Cluster (1 for the active state, 0 otherwise).",
	}, []string{"namespace", "cluster", "state"})

	// ClusterOnlineInstances reports the number of group members the
	// Diagnostic Engine currently sees as ONLINE for a cluster.
	ClusterOnlineInstances = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mysql_operator_cluster_online_instances",
		Help: "Number of instances currently reporting ONLINE in a cluster's group view.",
	}, []string{"namespace", "cluster"})

	// ReconcileDuration times the Cluster Controller's and Pod
	// Controller's per-object reconcile passes.
	ReconcileDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mysql_operator_reconcile_duration_seconds",
		Help:    "Duration of a single reconcile pass, by controller and outcome.",
		Buckets: prometheus.DefBuckets,
	}, []string{"controller", "result"})
)

func init() {
	ctrlmetrics.Registry.MustRegister(ClusterState, ClusterOnlineInstances, ReconcileDuration)
}

// clusterStates lists every value diagnose.ClusterState can take, in the
// fixed order ObserveClusterState zeroes them in.
var clusterStates = []string{
	"INITIALIZING", "ONLINE", "ONLINE_PARTIAL", "ONLINE_UNCERTAIN",
	"OFFLINE", "OFFLINE_UNCERTAIN", "NO_QUORUM", "NO_QUORUM_UNCERTAIN",
	"SPLIT_BRAIN", "SPLIT_BRAIN_UNCERTAIN", "UNKNOWN", "INVALID", "FINALIZING",
}

// ObserveClusterState sets the ClusterState gauge for namespace/cluster so
// that exactly the current state reads 1 and every other known state reads
// 0, and records the online-instance count alongside it.
func ObserveClusterState(namespace, cluster, state string, onlineInstances int) {
	for _, s := range clusterStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		ClusterState.WithLabelValues(namespace, cluster, s).Set(value)
	}
	ClusterOnlineInstances.WithLabelValues(namespace, cluster).Set(float64(onlineInstances))
}
