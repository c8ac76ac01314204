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

// Package adminapi is the Admin Client Interface (spec.md §4.1): it
// abstracts every database-administration operation the Cluster Controller
// and the Group Monitor need, so the rest of the operator never issues SQL
// or parses a connection URI itself.
package adminapi

import (
	"fmt"
	"strconv"
	"strings"
)

// Role is the replication role reported by a group member.
type Role string

const (
	RolePrimary   Role = "PRIMARY"
	RoleSecondary Role = "SECONDARY"
	RoleUnknown   Role = "UNKNOWN"
)

// MemberStatus is the replication status reported by a group member.
type MemberStatus string

const (
	StatusOnline      MemberStatus = "ONLINE"
	StatusRecovering  MemberStatus = "RECOVERING"
	StatusOffline     MemberStatus = "OFFLINE"
	StatusError       MemberStatus = "ERROR"
	StatusUnreachable MemberStatus = "UNREACHABLE"
)

// Endpoint is a host:port pair for either the admin or the
// group-replication port of an instance.
type Endpoint struct {
	Host string
	Port int
}

// String renders the endpoint as host:port.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// ParseURI extracts host and port from a MySQL connection URI of the shape
// user@host:port or host:port, the way shellutils.parse_uri does in the
// original source.
func ParseURI(uri string) (Endpoint, error) {
	s := uri
	if at := strings.LastIndex(s, "@"); at >= 0 {
		s = s[at+1:]
	}
	host, portStr, found := strings.Cut(s, ":")
	if !found || host == "" || portStr == "" {
		return Endpoint{}, fmt.Errorf("adminapi: cannot parse endpoint from uri %q", uri)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("adminapi: invalid port in uri %q: %w", uri, err)
	}
	return Endpoint{Host: host, Port: port}, nil
}

// MemberInfo describes one member as visible from a group view.
type MemberInfo struct {
	MemberID string
	Endpoint Endpoint
	Role     Role
	Status   MemberStatus
	ViewID   string
	Version  string
}

// LocalMembership is the local instance's own membership record, as
// returned by QueryMembership.
type LocalMembership struct {
	MemberID string
	Role     Role
	Status   MemberStatus
	ViewID   string
	Version  string
}

// ServerInfo is the low-level server identity returned by
// Client.ServerInfo. internal/controller logs it for the seed before
// create_cluster and reads the joiner's server_uuid from it after
// add_instance (SPEC_FULL.md §4 item 2).
type ServerInfo struct {
	ServerID     int64
	ServerUUID   string
	ReportHost   string
	GTIDExecuted string
	GTIDPurged   string
}

// ClusterStatusReport is the result of Client.Status: a free-form summary
// used only for logging, mirroring dba_cluster.status() in the original.
type ClusterStatusReport struct {
	Summary string
}

// CreateClusterOptions mirrors the options passed to create_cluster
// (spec.md §4.4.1).
type CreateClusterOptions struct {
	GTIDSetIsComplete bool
	StartOnBoot       bool
	MemberSSLMode     string
	ExitStateAction   string
}

// AddInstanceOptions mirrors the options passed to add_instance.
type AddInstanceOptions struct {
	RecoveryMethod  string
	ExitStateAction string
}

// RejoinInstanceOptions mirrors the options passed to rejoin_instance.
type RejoinInstanceOptions struct{}

// RemoveInstanceOptions mirrors the options passed to remove_instance.
type RemoveInstanceOptions struct {
	Force bool
}

// CommonGRExitStateAction is the group-replication exit-state action applied on every
// create_cluster/add_instance call, so a kicked-out member dies and is
// restarted by the orchestrator (spec.md §4.4.1).
const CommonGRExitStateAction = "ABORT_SERVER"
