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

// Package diagnose is the Diagnostic Engine (spec.md §4.2): given a
// cluster's pod inventory and a reachability map of admin sessions, it
// classifies the cluster as a whole (ClusterDiagnostic) and each pod
// individually (CandidateDiagnostic), so internal/controller never has to
// re-derive that classification from raw member rows itself.
package diagnose

// ClusterState is the overall diagnosis of a cluster.
type ClusterState string

const (
	Initializing      ClusterState = "INITIALIZING"
	Online            ClusterState = "ONLINE"
	OnlinePartial     ClusterState = "ONLINE_PARTIAL"
	OnlineUncertain   ClusterState = "ONLINE_UNCERTAIN"
	Offline           ClusterState = "OFFLINE"
	OfflineUncertain  ClusterState = "OFFLINE_UNCERTAIN"
	NoQuorum          ClusterState = "NO_QUORUM"
	NoQuorumUncertain ClusterState = "NO_QUORUM_UNCERTAIN"
	SplitBrain        ClusterState = "SPLIT_BRAIN"
	SplitBrainUncertain ClusterState = "SPLIT_BRAIN_UNCERTAIN"
	Unknown           ClusterState = "UNKNOWN"
	Invalid           ClusterState = "INVALID"
	Finalizing        ClusterState = "FINALIZING"
)

// IsOnlineFamily reports whether s is one of the three ONLINE variants,
// used pervasively by the Cluster Controller's sinks (spec.md §4.4).
func (s ClusterState) IsOnlineFamily() bool {
	return s == Online || s == OnlinePartial || s == OnlineUncertain
}

// IsUncertain reports whether s carries the "_UNCERTAIN" suffix, meaning
// one or more pods could not be reached and the diagnosis is not
// definitive.
func (s ClusterState) IsUncertain() bool {
	switch s {
	case OnlineUncertain, OfflineUncertain, NoQuorumUncertain, SplitBrainUncertain:
		return true
	default:
		return false
	}
}

// CandidateState is the per-pod decision used when deciding what to do
// with one particular instance.
type CandidateState string

const (
	Joinable   CandidateState = "JOINABLE"
	Rejoinable CandidateState = "REJOINABLE"
	Member     CandidateState = "MEMBER"
	Unreachable CandidateState = "UNREACHABLE"
	Broken     CandidateState = "BROKEN"
)

// ClusterDiagnostic is the result of diagnosing an entire cluster.
type ClusterDiagnostic struct {
	Status ClusterState

	// OnlineMembers lists the member ids currently reporting ONLINE.
	OnlineMembers []string

	// QuorumCandidates lists, in preference order, the pod names that
	// could be used to force a quorum (spec.md §4.4.1 force_quorum); the
	// pod reporting the highest view_id comes first.
	QuorumCandidates []string

	// UnreachablePods lists pod names that could not be connected to.
	UnreachablePods []string

	// VersionMismatch is true when two or more reachable members report
	// different MySQL server versions, the Group Replication analogue of
	// the teacher's pod-architecture consistency check: it never gates a
	// decision on its own, it only gives the Cluster Controller something
	// to log so a partially-upgraded cluster is visible in its status.
	VersionMismatch bool
}

// CandidateDiagnostic is the result of diagnosing one pod's relationship
// to the cluster's group view.
type CandidateDiagnostic struct {
	Status CandidateState

	// MemberID is the pod's own server_uuid/MEMBER_ID, when known.
	MemberID string
}
