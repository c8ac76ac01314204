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

// Package k8sobjects wraps the annotation, finalizer and readiness-gate
// bookkeeping the Cluster Controller performs on Pods and Clusters, so
// internal/controller deals in typed membership records instead of raw
// annotation strings.
package k8sobjects

import (
	"context"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	mysqlv1 "github.com/22ndtech/mysql-operator/api/v1"
)

const (
	annotationMemberID       = "mysql.oracle.com/member-id"
	annotationRole           = "mysql.oracle.com/role"
	annotationStatus         = "mysql.oracle.com/status"
	annotationViewID         = "mysql.oracle.com/view-id"
	annotationServerVersion  = "mysql.oracle.com/server-version"
	annotationLastTransition = "mysql.oracle.com/last-transition-time"
)

// MembershipInfo is the set of group-replication facts recorded on a Pod,
// read back by the Diagnostic Engine and the Group Monitor between
// reconciles.
type MembershipInfo struct {
	MemberID           string
	Role               string
	Status             string
	ViewID             string
	ServerVersion      string
	LastTransitionTime time.Time
}

// GetMembershipInfo reads back the membership annotations set by
// SetMembershipInfo. A pod with no annotations yields a zero MembershipInfo.
func GetMembershipInfo(pod *corev1.Pod) MembershipInfo {
	a := pod.Annotations
	info := MembershipInfo{
		MemberID:      a[annotationMemberID],
		Role:          a[annotationRole],
		Status:        a[annotationStatus],
		ViewID:        a[annotationViewID],
		ServerVersion: a[annotationServerVersion],
	}
	if ts := a[annotationLastTransition]; ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			info.LastTransitionTime = t
		}
	}
	return info
}

// SetMembershipInfo patches pod's annotations to record info, retrying on
// conflict the way a concurrently-updated object is expected to be
// refetched and retried (client-go's retry.RetryOnConflict).
func SetMembershipInfo(ctx context.Context, c client.Client, pod *corev1.Pod, info MembershipInfo) error {
	key := client.ObjectKeyFromObject(pod)
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		var latest corev1.Pod
		if err := c.Get(ctx, key, &latest); err != nil {
			return err
		}

		before := latest.DeepCopy()
		if latest.Annotations == nil {
			latest.Annotations = map[string]string{}
		}
		latest.Annotations[annotationMemberID] = info.MemberID
		latest.Annotations[annotationRole] = info.Role
		latest.Annotations[annotationStatus] = info.Status
		latest.Annotations[annotationViewID] = info.ViewID
		latest.Annotations[annotationServerVersion] = info.ServerVersion
		latest.Annotations[annotationLastTransition] = info.LastTransitionTime.Format(time.RFC3339Nano)

		err := c.Patch(ctx, &latest, client.MergeFrom(before))
		if err == nil {
			*pod = latest
		}
		return err
	})
}

// HadPriorMembership reports whether pod has ever recorded a member id,
// distinguishing a never-joined pod from one whose metadata went missing
// (spec.md §4.2 item 5, JOINABLE vs BROKEN).
func HadPriorMembership(pod *corev1.Pod) bool {
	return pod.Annotations[annotationMemberID] != ""
}

// EnsureMemberFinalizer adds the member finalizer to pod if absent,
// matching controllerutil.AddFinalizer usage across the teacher's
// finalizer-handling files.
func EnsureMemberFinalizer(ctx context.Context, c client.Client, pod *corev1.Pod) error {
	if controllerutil.ContainsFinalizer(pod, mysqlv1.MemberFinalizerName) {
		return nil
	}
	before := pod.DeepCopy()
	controllerutil.AddFinalizer(pod, mysqlv1.MemberFinalizerName)
	return c.Patch(ctx, pod, client.MergeFrom(before))
}

// RemoveMemberFinalizer removes the member finalizer from pod if present,
// tolerating the pod already being gone (it is being garbage collected).
func RemoveMemberFinalizer(ctx context.Context, c client.Client, pod *corev1.Pod) error {
	if !controllerutil.ContainsFinalizer(pod, mysqlv1.MemberFinalizerName) {
		return nil
	}
	before := pod.DeepCopy()
	controllerutil.RemoveFinalizer(pod, mysqlv1.MemberFinalizerName)
	if err := c.Patch(ctx, pod, client.MergeFrom(before)); err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	return nil
}

// SetReadinessGate sets the mysql.oracle.com/ready condition used to back
// the cluster's readiness gate (api/v1.ReadinessGateName) to ready or not
// ready. internal/controller does not call it.
func SetReadinessGate(ctx context.Context, c client.Client, pod *corev1.Pod, ready bool) error {
	status := corev1.ConditionFalse
	if ready {
		status = corev1.ConditionTrue
	}

	for i := range pod.Status.Conditions {
		if string(pod.Status.Conditions[i].Type) == mysqlv1.ReadinessGateName {
			if pod.Status.Conditions[i].Status == status {
				return nil
			}
			pod.Status.Conditions[i].Status = status
			pod.Status.Conditions[i].LastTransitionTime = metav1Now()
			return c.Status().Update(ctx, pod)
		}
	}

	pod.Status.Conditions = append(pod.Status.Conditions, corev1.PodCondition{
		Type:               corev1.PodConditionType(mysqlv1.ReadinessGateName),
		Status:             status,
		LastTransitionTime: metav1Now(),
	})
	return c.Status().Update(ctx, pod)
}
