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

package diagnose

import (
	"context"
	"sort"

	"github.com/blang/semver"
	"github.com/thoas/go-funk"

	"github.com/22ndtech/mysql-operator/pkg/adminapi"
)

// PodInfo is the diagnostic engine's view of one cluster pod: enough to
// attempt a connection and to cross-reference it against a group view.
type PodInfo struct {
	Name     string
	Index    int32
	Endpoint adminapi.Endpoint

	// ServerUUID is the pod's own server_uuid, set once known (empty
	// before the pod has ever come up).
	ServerUUID string

	// HadPriorMembership is true once the pod has ever been recorded as
	// a group member, distinguishing a fresh JOINABLE pod from a BROKEN
	// one whose metadata has simply gone missing.
	HadPriorMembership bool
}

// ClusterInput is everything DiagnoseCluster needs about the cluster
// besides its pods.
type ClusterInput struct {
	HasCreateTime bool
	Deleting      bool
	Pods          []PodInfo
}

// DiagnoseCluster implements the Diagnostic Engine's cluster-wide
// classification (spec.md §4.2): it connects to each pod, gathers the
// group view from whichever pods answer, and applies the ordered rules to
// produce a ClusterDiagnostic plus a CandidateDiagnostic per pod.
func DiagnoseCluster(ctx context.Context, client adminapi.Client, in ClusterInput) (ClusterDiagnostic, map[string]CandidateDiagnostic, error) {
	if len(in.Pods) == 0 {
		if !in.HasCreateTime {
			return ClusterDiagnostic{Status: Initializing}, nil, nil
		}
		return ClusterDiagnostic{Status: Invalid}, nil, nil
	}

	if in.Deleting {
		return ClusterDiagnostic{Status: Finalizing}, nil, nil
	}

	sessions := make(map[string]adminapi.Session)
	var unreachable []string
	for _, pod := range in.Pods {
		sess, err := client.Connect(ctx, pod.Endpoint)
		if err != nil {
			unreachable = append(unreachable, pod.Name)
			continue
		}
		sessions[pod.Name] = sess
	}
	defer func() {
		for _, sess := range sessions {
			_ = sess.Close()
		}
	}()

	if len(sessions) == 0 {
		return ClusterDiagnostic{Status: Unknown, UnreachablePods: unreachable},
			candidatesAllUnreachable(in.Pods), nil
	}

	views := make(map[string][]adminapi.MemberInfo)
	for name, sess := range sessions {
		members, err := client.QueryMembers(ctx, sess)
		if err != nil {
			unreachable = append(unreachable, name)
			delete(sessions, name)
			continue
		}
		views[name] = members
	}

	diag := classify(in.Pods, views, unreachable)
	diag.VersionMismatch = !versionsConsistent(views)
	candidates := diagnoseCandidates(in.Pods, views, sessions)
	return diag, candidates, nil
}

// versionsConsistent reports whether every reachable member reports the
// same MySQL server version, the Group Replication analogue of
// checkPodsArchitecture in the teacher: unparseable version strings are
// skipped rather than treated as a mismatch, since a once-off malformed
// SELECT VERSION() result shouldn't flap the cluster's reported state.
func versionsConsistent(views map[string][]adminapi.MemberInfo) bool {
	var first *semver.Version
	for _, members := range views {
		for _, m := range members {
			v, err := semver.ParseTolerant(m.Version)
			if err != nil {
				continue
			}
			if first == nil {
				first = &v
				continue
			}
			if !v.EQ(*first) {
				return false
			}
		}
	}
	return true
}

// quorate reports whether members, as seen from one pod's view, has a
// strict majority of that view's own members reporting ONLINE.
func quorate(members []adminapi.MemberInfo) bool {
	online := 0
	for _, m := range members {
		if m.Status == adminapi.StatusOnline {
			online++
		}
	}
	return len(members) > 0 && online*2 > len(members)
}

// onlineSet returns the set of member ids reporting ONLINE in members.
func onlineSet(members []adminapi.MemberInfo) map[string]bool {
	online := funk.Filter(members, func(m adminapi.MemberInfo) bool {
		return m.Status == adminapi.StatusOnline
	}).([]adminapi.MemberInfo)

	set := make(map[string]bool, len(online))
	for _, m := range online {
		set[m.MemberID] = true
	}
	return set
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// highestViewID returns the lexicographically highest ViewID among
// members, and whether two distinct members report it. quorumCandidateOrder
// ranks pods by this value; the tie flag is not used, so equal view_ids do
// not make a diagnosis UNCERTAIN.
func highestViewID(members []adminapi.MemberInfo) (string, bool) {
	tied := false
	var best *adminapi.MemberInfo
	for i := range members {
		m := &members[i]
		switch {
		case best == nil || m.ViewID > best.ViewID:
			best = m
			tied = false
		case m.ViewID == best.ViewID && m.MemberID != best.MemberID:
			tied = true
		}
	}
	if best == nil {
		return "", false
	}
	return best.ViewID, tied
}

func classify(pods []PodInfo, views map[string][]adminapi.MemberInfo, unreachable []string) ClusterDiagnostic {
	expected := len(pods)
	uncertain := len(unreachable) > 0

	var quorateSets []map[string]bool
	var allMembers []adminapi.MemberInfo
	for _, members := range views {
		allMembers = append(allMembers, members...)
		if quorate(members) {
			quorateSets = append(quorateSets, onlineSet(members))
		}
	}

	if len(quorateSets) == 0 {
		if len(allMembers) == 0 {
			if uncertain {
				return ClusterDiagnostic{Status: OfflineUncertain, UnreachablePods: unreachable}
			}
			return ClusterDiagnostic{Status: Offline}
		}
		if uncertain {
			return ClusterDiagnostic{Status: NoQuorumUncertain, UnreachablePods: unreachable}
		}
		return ClusterDiagnostic{Status: NoQuorum, QuorumCandidates: quorumCandidateOrder(pods, views)}
	}

	disjoint := false
	for i := 1; i < len(quorateSets); i++ {
		if !sameSet(quorateSets[0], quorateSets[i]) {
			disjoint = true
			break
		}
	}
	if disjoint {
		if uncertain {
			return ClusterDiagnostic{Status: SplitBrainUncertain, UnreachablePods: unreachable}
		}
		return ClusterDiagnostic{Status: SplitBrain}
	}

	union := make(map[string]bool)
	anyNonOnline := false
	for _, members := range views {
		for _, m := range members {
			if m.Status == adminapi.StatusOnline {
				union[m.MemberID] = true
			} else {
				anyNonOnline = true
			}
		}
	}

	onlineMembers := funk.Keys(union).([]string)
	sort.Strings(onlineMembers)

	status := Online
	switch {
	case uncertain:
		status = OnlineUncertain
	case len(union) == expected && !anyNonOnline:
		status = Online
	case anyNonOnline || len(union) < expected:
		status = OnlinePartial
	}

	return ClusterDiagnostic{
		Status:           status,
		OnlineMembers:    onlineMembers,
		QuorumCandidates: quorumCandidateOrder(pods, views),
		UnreachablePods:  unreachable,
	}
}

// quorumCandidateOrder ranks reachable pods by the highest view_id they
// report, for force_quorum's "first quorum candidate" (spec.md §4.4.1/§4.4.2).
func quorumCandidateOrder(pods []PodInfo, views map[string][]adminapi.MemberInfo) []string {
	type scored struct {
		name   string
		viewID string
	}
	var ranked []scored
	for name, members := range views {
		best, _ := highestViewID(members)
		ranked = append(ranked, scored{name: name, viewID: best})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].viewID != ranked[j].viewID {
			return ranked[i].viewID > ranked[j].viewID
		}
		return ranked[i].name < ranked[j].name
	})
	names := make([]string, 0, len(ranked))
	for _, r := range ranked {
		names = append(names, r.name)
	}
	return names
}

func candidatesAllUnreachable(pods []PodInfo) map[string]CandidateDiagnostic {
	return funk.Map(pods, func(p PodInfo) (string, CandidateDiagnostic) {
		return p.Name, CandidateDiagnostic{Status: Unreachable}
	}).(map[string]CandidateDiagnostic)
}

func diagnoseCandidates(pods []PodInfo, views map[string][]adminapi.MemberInfo, sessions map[string]adminapi.Session) map[string]CandidateDiagnostic {
	// A pod's own membership record may be visible from any reachable
	// view; merge them all so a pod whose record is missing from its own
	// view can still be found in a peer's. A pod without a live session
	// is UNREACHABLE regardless (see DiagnoseCandidate).
	var allMembers []adminapi.MemberInfo
	for _, members := range views {
		allMembers = append(allMembers, members...)
	}
	byUUID := funk.Map(allMembers, func(m adminapi.MemberInfo) (string, adminapi.MemberInfo) {
		return m.MemberID, m
	}).(map[string]adminapi.MemberInfo)

	out := make(map[string]CandidateDiagnostic, len(pods))
	for _, pod := range pods {
		_, reachable := sessions[pod.Name]
		out[pod.Name] = DiagnoseCandidate(pod, byUUID, reachable)
	}
	return out
}

// DiagnoseCandidate implements diagnose_cluster_candidate (spec.md §4.2,
// item 5) for a single pod, given the merged group view keyed by
// server_uuid/MEMBER_ID.
func DiagnoseCandidate(pod PodInfo, byUUID map[string]adminapi.MemberInfo, reachable bool) CandidateDiagnostic {
	if !reachable {
		return CandidateDiagnostic{Status: Unreachable}
	}

	if pod.ServerUUID != "" {
		if m, ok := byUUID[pod.ServerUUID]; ok {
			if m.Status == adminapi.StatusOnline {
				return CandidateDiagnostic{Status: Member, MemberID: m.MemberID}
			}
			if m.Status == adminapi.StatusOffline || m.Status == adminapi.StatusError {
				return CandidateDiagnostic{Status: Rejoinable, MemberID: m.MemberID}
			}
			return CandidateDiagnostic{Status: Broken, MemberID: m.MemberID}
		}
	}

	if !pod.HadPriorMembership {
		return CandidateDiagnostic{Status: Joinable}
	}
	return CandidateDiagnostic{Status: Broken}
}
