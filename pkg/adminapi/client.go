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

package adminapi

import "context"

// Session is an open, authenticated admin connection to one instance.
// Implementations may be backed by any I/O model; every method here is
// synchronous and blocking from the caller's perspective (spec.md §4.1).
type Session interface {
	// Endpoint is the instance this session is connected to.
	Endpoint() Endpoint

	// Close releases the underlying connection. Safe to call more than
	// once.
	Close() error
}

// Client is the Admin Client Interface (spec.md §4.1): every database
// administration operation the Cluster Controller and Group Monitor need
// is exposed here, so nothing else in the operator issues SQL directly.
type Client interface {
	// Connect opens an authenticated admin connection to endpoint.
	Connect(ctx context.Context, endpoint Endpoint) (Session, error)

	// JumpToPrimary returns a session to the current PRIMARY of the group
	// session belongs to. If session is already on the PRIMARY it may be
	// returned unchanged. Returns (nil, nil) when no PRIMARY is reachable
	// from the given view, which is not itself an error.
	JumpToPrimary(ctx context.Context, session Session) (Session, error)

	// QueryMembership returns the local instance's own membership record.
	QueryMembership(ctx context.Context, session Session) (LocalMembership, error)

	// QueryMembers returns every member visible from session's point of
	// view.
	QueryMembers(ctx context.Context, session Session) ([]MemberInfo, error)

	// ServerInfo returns the low level server identity of the instance
	// session is connected to (SPEC_FULL.md §4 item 2).
	ServerInfo(ctx context.Context, session Session) (ServerInfo, error)

	// CreateCluster bootstraps a brand-new group at seedSession.
	CreateCluster(ctx context.Context, seedSession Session, name string, opts CreateClusterOptions) error

	// StopGroupReplication issues STOP GROUP_REPLICATION on session. Used
	// by create_cluster's already-in-group retry path and by
	// destroy_cluster.
	StopGroupReplication(ctx context.Context, session Session) error

	// AddInstance admits a new member, joining through clusterSession.
	AddInstance(ctx context.Context, clusterSession Session, join Endpoint, opts AddInstanceOptions) error

	// RejoinInstance rejoins a departed-but-still-a-member instance.
	RejoinInstance(ctx context.Context, clusterSession Session, member Endpoint, opts RejoinInstanceOptions) error

	// RemoveInstance removes a member from the group.
	RemoveInstance(ctx context.Context, clusterSession Session, member Endpoint, opts RemoveInstanceOptions) error

	// RebootClusterFromCompleteOutage restarts group replication on a
	// cluster that has no quorum at all, from session's point of view.
	RebootClusterFromCompleteOutage(ctx context.Context, session Session) error

	// ForceQuorumUsingPartitionOf declares session's partition to be the
	// only surviving one, dropping any other member from the view.
	ForceQuorumUsingPartitionOf(ctx context.Context, session Session, of Endpoint) error

	// Status returns a free-form status summary, used only for logging.
	Status(ctx context.Context, session Session) (ClusterStatusReport, error)

	// EnsureRouterAccount creates or updates (idempotently) the account
	// MySQL Router uses to connect (SPEC_FULL.md §4 item 1).
	EnsureRouterAccount(ctx context.Context, session Session, user, password string) error

	// EnsureBackupAccount creates the account backup tooling uses
	// (SPEC_FULL.md §4 item 1).
	EnsureBackupAccount(ctx context.Context, session Session, user, password string) error
}
