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

package k8sobjects

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	mysqlv1 "github.com/22ndtech/mysql-operator/api/v1"
	"github.com/22ndtech/mysql-operator/pkg/adminapi"
)

// MySQLPort is the classic MySQL client port every instance listens on
// inside its headless service.
const MySQLPort = 3306

// InstancesServiceName derives the headless service name the operator
// creates to give every pod a stable DNS entry, following the
// <cluster>-instances convention used across the teacher's service
// builders.
func InstancesServiceName(clusterName string) string {
	return clusterName + "-instances"
}

// PodEndpoint builds the admin endpoint for a pod via its stable headless
// service DNS name, avoiding any dependency on the pod's (possibly
// not-yet-assigned) IP address.
func PodEndpoint(namespace, clusterName, podName string) adminapi.Endpoint {
	host := fmt.Sprintf("%s.%s.%s.svc", podName, InstancesServiceName(clusterName), namespace)
	return adminapi.Endpoint{Host: host, Port: MySQLPort}
}

// PodIndex extracts the StatefulSet ordinal from a pod name of the shape
// <cluster>-<index>, returning -1 if it cannot be parsed.
func PodIndex(podName string) int32 {
	i := strings.LastIndex(podName, "-")
	if i < 0 {
		return -1
	}
	n, err := strconv.ParseInt(podName[i+1:], 10, 32)
	if err != nil {
		return -1
	}
	return int32(n)
}

// EnsureClusterFinalizer adds the cluster finalizer if absent.
func EnsureClusterFinalizer(ctx context.Context, c client.Client, cluster *mysqlv1.Cluster) error {
	if controllerutil.ContainsFinalizer(cluster, mysqlv1.ClusterFinalizerName) {
		return nil
	}
	before := cluster.DeepCopy()
	controllerutil.AddFinalizer(cluster, mysqlv1.ClusterFinalizerName)
	return c.Patch(ctx, cluster, client.MergeFrom(before))
}

// RemoveClusterFinalizer removes the cluster finalizer if present.
func RemoveClusterFinalizer(ctx context.Context, c client.Client, cluster *mysqlv1.Cluster) error {
	if !controllerutil.ContainsFinalizer(cluster, mysqlv1.ClusterFinalizerName) {
		return nil
	}
	before := cluster.DeepCopy()
	controllerutil.RemoveFinalizer(cluster, mysqlv1.ClusterFinalizerName)
	if err := c.Patch(ctx, cluster, client.MergeFrom(before)); err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	return nil
}

// UpdateClusterStatus refetches cluster, applies mutate to its status, and
// patches the status subresource, retrying on conflict. This is the single
// choke point every status-publishing call in internal/controller goes
// through, the Go equivalent of set_cluster_status in the original source.
func UpdateClusterStatus(
	ctx context.Context,
	c client.Client,
	cluster *mysqlv1.Cluster,
	mutate func(*mysqlv1.ClusterStatus),
) error {
	key := client.ObjectKeyFromObject(cluster)
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		var latest mysqlv1.Cluster
		if err := c.Get(ctx, key, &latest); err != nil {
			return err
		}
		mutate(&latest.Status)
		err := c.Status().Update(ctx, &latest)
		if err == nil {
			*cluster = latest
		}
		return err
	})
}

// StampLastProbeTime sets status.LastProbeTime to now.
func StampLastProbeTime(status *mysqlv1.ClusterStatus) {
	now := metav1.Now()
	status.LastProbeTime = &now
}

// StampCreateTimeOnce sets status.CreateTime the first time it is called.
func StampCreateTimeOnce(status *mysqlv1.ClusterStatus) {
	if status.CreateTime == nil {
		now := metav1.Now()
		status.CreateTime = &now
	}
}
