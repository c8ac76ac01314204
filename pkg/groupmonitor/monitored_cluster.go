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

package groupmonitor

import (
	"context"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/types"

	"github.com/22ndtech/mysql-operator/pkg/adminapi"
	"github.com/22ndtech/mysql-operator/pkg/log"
)

// MonitoredCluster holds the one connection the Group Monitor keeps open
// for a single cluster, mirroring group_monitor.py's MonitoredCluster.
type MonitoredCluster struct {
	cluster     types.NamespacedName
	adminClient adminapi.Client
	pods        PodSource
	handler     Handler

	mu                 sync.Mutex
	session            adminapi.Session
	targetNotPrimary   bool
	lastConnectAttempt time.Time
	lastPrimaryID      string
	lastViewID         string
}

func newMonitoredCluster(cluster types.NamespacedName, adminClient adminapi.Client, pods PodSource, handler Handler) *MonitoredCluster {
	return &MonitoredCluster{
		cluster:     cluster,
		adminClient: adminClient,
		pods:        pods,
		handler:     handler,
	}
}

// tick gives the monitored cluster one chance to (re)connect and, if
// connected, to refresh its membership view. It is the per-cluster body
// of GroupMonitor.Run's poll loop.
func (mc *MonitoredCluster) tick(ctx context.Context) {
	mc.ensureConnected(ctx)

	mc.mu.Lock()
	session := mc.session
	mc.mu.Unlock()

	if session != nil {
		mc.refresh(ctx)
	}
}

// ensureConnected implements MonitoredCluster.ensure_connected: it only
// attempts a new connection if there isn't one already and the retry
// interval has elapsed.
func (mc *MonitoredCluster) ensureConnected(ctx context.Context) {
	mc.mu.Lock()
	hasSession := mc.session != nil
	dueForRetry := mc.lastConnectAttempt.IsZero() || time.Since(mc.lastConnectAttempt) > connectRetryInterval
	mc.mu.Unlock()

	if hasSession || !dueForRetry {
		return
	}

	contextLogger := log.FromContext(ctx)
	contextLogger.Debug("group monitor trying to connect", "cluster", mc.cluster)

	mc.mu.Lock()
	mc.lastConnectAttempt = time.Now()
	mc.mu.Unlock()

	session, notPrimary, err := mc.connectToPrimary(ctx)
	if err != nil {
		contextLogger.Debug("group monitor connect failed", "cluster", mc.cluster, "error", err)
		return
	}

	mc.mu.Lock()
	mc.session = session
	mc.targetNotPrimary = notPrimary
	mc.mu.Unlock()

	if session != nil {
		contextLogger.Debug("group monitor connected", "cluster", mc.cluster, "endpoint", session.Endpoint())
		// force an immediate refresh so nothing that happened while
		// disconnected is missed.
		mc.refresh(ctx)
	}
}

// connectToPrimary implements find_primary: it first tries any pod last
// known to be PRIMARY, then falls back to trying every pod and jumping
// to whichever instance answers as PRIMARY.
func (mc *MonitoredCluster) connectToPrimary(ctx context.Context) (adminapi.Session, bool, error) {
	pods, err := mc.pods(ctx)
	if err != nil {
		return nil, false, err
	}

	var fallback adminapi.Session

	tryPod := func(p PodMembership) (adminapi.Session, bool) {
		session, err := mc.adminClient.Connect(ctx, p.Endpoint)
		if err != nil {
			return nil, false
		}
		primary, err := mc.adminClient.JumpToPrimary(ctx, session)
		if err != nil || primary == nil {
			if fallback == nil {
				fallback = session
			} else {
				_ = session.Close()
			}
			return nil, false
		}
		if primary != session {
			_ = session.Close()
		}
		return primary, true
	}

	for _, p := range pods {
		if p.Role != "PRIMARY" {
			continue
		}
		if session, ok := tryPod(p); ok {
			return session, false, nil
		}
	}

	for _, p := range pods {
		if session, ok := tryPod(p); ok {
			return session, false, nil
		}
	}

	return fallback, true, nil
}

// refresh implements on_view_change: it re-queries the group's members,
// invokes the handler, and decides whether the underlying session needs
// to be dropped so the next tick reconnects to the (possibly new) PRIMARY.
func (mc *MonitoredCluster) refresh(ctx context.Context) {
	mc.mu.Lock()
	session := mc.session
	mc.mu.Unlock()
	if session == nil {
		return
	}

	members, err := mc.adminClient.QueryMembers(ctx, session)
	if err != nil {
		log.FromContext(ctx).Debug("group monitor lost connection", "cluster", mc.cluster, "error", err)
		_ = session.Close()
		mc.mu.Lock()
		mc.session = nil
		mc.mu.Unlock()
		return
	}

	viewID := ""
	if len(members) > 0 {
		viewID = members[0].ViewID
	}

	mc.mu.Lock()
	viewChanged := viewID != mc.lastViewID
	mc.lastViewID = viewID
	mc.mu.Unlock()

	mc.handler(mc.cluster, members, viewChanged)

	var primary string
	forceReconnect := false
	for _, m := range members {
		if mc.lastPrimaryID != "" && mc.lastPrimaryID == m.MemberID && m.Role != adminapi.RolePrimary {
			forceReconnect = true
		}
		if m.Role == adminapi.RolePrimary && primary == "" {
			primary = m.MemberID
		}
	}

	mc.mu.Lock()
	mc.lastPrimaryID = primary
	notPrimary := mc.targetNotPrimary
	mc.mu.Unlock()

	if notPrimary || forceReconnect {
		log.FromContext(ctx).Debug("group monitor PRIMARY changed, reconnecting", "cluster", mc.cluster)
		_ = session.Close()
		mc.mu.Lock()
		mc.session = nil
		mc.mu.Unlock()
	}
}

func (mc *MonitoredCluster) close() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.session != nil {
		_ = mc.session.Close()
		mc.session = nil
	}
}
