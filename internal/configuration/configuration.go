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

// Package configuration contains the process-wide tunables of the operator,
// populated from the environment the same way the teacher's
// internal/configuration.Current is populated.
package configuration

import (
	"os"
	"strconv"
	"time"
)

// Data is the configuration of the operator process.
type Data struct {
	// OperatorNamespace is the namespace the operator itself is deployed in.
	OperatorNamespace string

	// MutexBusyRetryDelay is populated like the other fields, but the
	// reconcilers do not consult it: when a cluster mutex acquisition fails
	// because another reconciliation is in flight, they requeue after
	// clustermutex.BusyRetryDelay (10s).
	MutexBusyRetryDelay time.Duration

	// PodNotReadyRetryDelay is the delay used when on_pod_created observes
	// a non-seed pod arriving before the cluster exists yet.
	PodNotReadyRetryDelay time.Duration

	// RepairRetryDelay is the delay used after repair_cluster has been
	// attempted, to let the next probe verify the outcome.
	RepairRetryDelay time.Duration

	// PrimaryReadOnlyGraceDelay is the delay used when remove_instance hits
	// ER_OPTION_PREVENTS_STATEMENT because the primary is still read-only.
	PrimaryReadOnlyGraceDelay time.Duration

	// GroupMonitorConnectRetryInterval is populated like the other fields,
	// but pkg/groupmonitor does not consult it: a disconnected Monitored
	// Cluster retries after that package's own fixed 10s interval.
	GroupMonitorConnectRetryInterval time.Duration

	// GroupMonitorPollTimeout is populated like the other fields, but
	// pkg/groupmonitor does not consult it: the Group Monitor has no
	// multiplexed wait and polls every GroupMonitor.PollInterval (2s by
	// default).
	GroupMonitorPollTimeout time.Duration

	// ClusterAdminUserName is the account the operator uses for cluster
	// administration.
	ClusterAdminUserName string

	// RouterUserName/BackupUserName are the accounts provisioned right
	// after create_cluster succeeds (SPEC_FULL.md §4.1).
	RouterUserName string
	BackupUserName string
}

// Current is the live configuration of this operator process.
var Current = newDefaultConfiguration()

func newDefaultConfiguration() *Data {
	return &Data{
		OperatorNamespace:                "mysql-operator",
		MutexBusyRetryDelay:              10 * time.Second,
		PodNotReadyRetryDelay:            15 * time.Second,
		RepairRetryDelay:                 3 * time.Second,
		PrimaryReadOnlyGraceDelay:        5 * time.Second,
		GroupMonitorConnectRetryInterval: 10 * time.Second,
		GroupMonitorPollTimeout:          1 * time.Second,
		ClusterAdminUserName:             "mysqladmin",
		RouterUserName:                   "mysqlrouter",
		BackupUserName:                   "mysqlbackup",
	}
}

// FromEnvironment builds a Data by overriding the defaults with any of the
// recognized environment variables that are set, the way the teacher reads
// its operator ConfigMap/Secret values.
func FromEnvironment() *Data {
	data := newDefaultConfiguration()

	if v, ok := os.LookupEnv("OPERATOR_NAMESPACE"); ok && v != "" {
		data.OperatorNamespace = v
	}
	if v, ok := durationFromEnv("MUTEX_BUSY_RETRY_DELAY"); ok {
		data.MutexBusyRetryDelay = v
	}
	if v, ok := durationFromEnv("POD_NOT_READY_RETRY_DELAY"); ok {
		data.PodNotReadyRetryDelay = v
	}
	if v, ok := durationFromEnv("REPAIR_RETRY_DELAY"); ok {
		data.RepairRetryDelay = v
	}
	if v, ok := durationFromEnv("PRIMARY_READ_ONLY_GRACE_DELAY"); ok {
		data.PrimaryReadOnlyGraceDelay = v
	}
	if v, ok := durationFromEnv("GROUP_MONITOR_CONNECT_RETRY_INTERVAL"); ok {
		data.GroupMonitorConnectRetryInterval = v
	}
	if v, ok := durationFromEnv("GROUP_MONITOR_POLL_TIMEOUT"); ok {
		data.GroupMonitorPollTimeout = v
	}
	if v, ok := os.LookupEnv("CLUSTER_ADMIN_USER_NAME"); ok && v != "" {
		data.ClusterAdminUserName = v
	}
	if v, ok := os.LookupEnv("ROUTER_USER_NAME"); ok && v != "" {
		data.RouterUserName = v
	}
	if v, ok := os.LookupEnv("BACKUP_USER_NAME"); ok && v != "" {
		data.BackupUserName = v
	}

	return data
}

// ReadConfigMap merges configMap/Secret-sourced data into the current
// configuration, the way the teacher's RunController layers a ConfigMap
// and then a Secret on top of the environment-derived defaults. Unknown
// keys and values that fail to parse are ignored rather than rejected, so
// a typo in one field never blocks the rest of the configuration.
func (d *Data) ReadConfigMap(data map[string]string) {
	if v, ok := data["OPERATOR_NAMESPACE"]; ok && v != "" {
		d.OperatorNamespace = v
	}
	if v, ok := data["CLUSTER_ADMIN_USER_NAME"]; ok && v != "" {
		d.ClusterAdminUserName = v
	}
	if v, ok := data["ROUTER_USER_NAME"]; ok && v != "" {
		d.RouterUserName = v
	}
	if v, ok := data["BACKUP_USER_NAME"]; ok && v != "" {
		d.BackupUserName = v
	}
	if v, ok := durationFromMap(data, "MUTEX_BUSY_RETRY_DELAY"); ok {
		d.MutexBusyRetryDelay = v
	}
	if v, ok := durationFromMap(data, "POD_NOT_READY_RETRY_DELAY"); ok {
		d.PodNotReadyRetryDelay = v
	}
	if v, ok := durationFromMap(data, "REPAIR_RETRY_DELAY"); ok {
		d.RepairRetryDelay = v
	}
	if v, ok := durationFromMap(data, "PRIMARY_READ_ONLY_GRACE_DELAY"); ok {
		d.PrimaryReadOnlyGraceDelay = v
	}
	if v, ok := durationFromMap(data, "GROUP_MONITOR_CONNECT_RETRY_INTERVAL"); ok {
		d.GroupMonitorConnectRetryInterval = v
	}
	if v, ok := durationFromMap(data, "GROUP_MONITOR_POLL_TIMEOUT"); ok {
		d.GroupMonitorPollTimeout = v
	}
}

func durationFromMap(data map[string]string, key string) (time.Duration, bool) {
	v, ok := data[key]
	if !ok || v == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

func durationFromEnv(key string) (time.Duration, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false
	}
	seconds, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}
