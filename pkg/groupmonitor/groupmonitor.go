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

// Package groupmonitor is the Group Monitor (spec.md §4.3): a background
// watcher, independent of the Cluster Controller's reconcile loop, that
// keeps one connection open per monitored cluster and invokes a handler
// whenever the group's membership view changes. It is grounded on
// group_monitor.py's MonitoredCluster/GroupMonitor, with the mysqlx
// asynchronous "GRViewChanged" notice it relies on replaced by periodic
// polling: the Admin Client Interface is database/sql-backed and has no
// socket-level notice channel to block on, so PollInterval stands in for
// mysqlsh's poll_sessions() wakeups.
package groupmonitor

import (
	"context"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/types"

	"github.com/22ndtech/mysql-operator/pkg/adminapi"
	"github.com/22ndtech/mysql-operator/pkg/log"
)

// connectRetryInterval bounds how often a disconnected cluster retries
// finding a new PRIMARY, mirroring k_connect_retry_interval.
const connectRetryInterval = 10 * time.Second

// defaultPollInterval is how often a connected cluster's membership is
// re-queried in the absence of a push notification channel.
const defaultPollInterval = 2 * time.Second

// PodMembership is the Group Monitor's view of one cluster pod, supplied
// by the caller (internal/controller, via k8sobjects) so this package
// never has to depend on corev1 or the Cluster CRD directly.
type PodMembership struct {
	Name     string
	Endpoint adminapi.Endpoint
	Role     string
}

// PodSource lists a monitored cluster's current pods and their last known
// membership role, the Go equivalent of cluster.get_pods() in the
// original source.
type PodSource func(ctx context.Context) ([]PodMembership, error)

// Handler is invoked after every successful refresh of a monitored
// cluster's membership view; a refresh whose query fails drops the session
// without invoking it. viewChanged is true when the group's view_id differs
// from the last one observed.
type Handler func(cluster types.NamespacedName, members []adminapi.MemberInfo, viewChanged bool)

// GroupMonitor owns a background poll loop over every cluster handed to
// Monitor, the Go equivalent of the original's daemon thread.
type GroupMonitor struct {
	AdminClient  adminapi.Client
	PollInterval time.Duration

	mu       sync.Mutex
	clusters map[types.NamespacedName]*MonitoredCluster
}

// New builds a GroupMonitor backed by adminClient.
func New(adminClient adminapi.Client) *GroupMonitor {
	return &GroupMonitor{
		AdminClient:  adminClient,
		PollInterval: defaultPollInterval,
		clusters:     make(map[types.NamespacedName]*MonitoredCluster),
	}
}

// Monitor registers cluster for monitoring, or is a no-op if it is already
// registered (monitor_cluster in the original source).
func (g *GroupMonitor) Monitor(cluster types.NamespacedName, pods PodSource, handler Handler) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.clusters[cluster]; ok {
		return
	}
	g.clusters[cluster] = newMonitoredCluster(cluster, g.AdminClient, pods, handler)
}

// Remove stops monitoring cluster, closing its connection if one is open.
func (g *GroupMonitor) Remove(cluster types.NamespacedName) {
	g.mu.Lock()
	mc, ok := g.clusters[cluster]
	delete(g.clusters, cluster)
	g.mu.Unlock()

	if ok {
		mc.close()
	}
}

// snapshot returns the currently monitored clusters, safe to iterate
// without holding GroupMonitor's lock.
func (g *GroupMonitor) snapshot() []*MonitoredCluster {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*MonitoredCluster, 0, len(g.clusters))
	for _, mc := range g.clusters {
		out = append(out, mc)
	}
	return out
}

// Run blocks, ticking every PollInterval and giving each monitored cluster
// a chance to (re)connect and refresh its membership view. It returns when
// ctx is cancelled.
func (g *GroupMonitor) Run(ctx context.Context) {
	interval := g.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	contextLogger := log.FromContext(ctx)
	contextLogger.Info("group monitor starting", "pollInterval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			contextLogger.Info("group monitor stopping")
			return
		case <-ticker.C:
			for _, mc := range g.snapshot() {
				mc.tick(ctx)
			}
		}
	}
}
