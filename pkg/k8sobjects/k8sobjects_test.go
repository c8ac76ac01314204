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

package k8sobjects_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	mysqlv1 "github.com/22ndtech/mysql-operator/api/v1"
	"github.com/22ndtech/mysql-operator/pkg/k8sobjects"
)

func TestK8sObjects(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "k8sobjects suite")
}

func newScheme() *fake.ClientBuilder {
	scheme := runtimeScheme()
	return fake.NewClientBuilder().WithScheme(scheme)
}

var _ = Describe("pod membership annotations", func() {
	ctx := context.Background()

	It("round-trips membership info through annotations", func() {
		pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "mycluster-0", Namespace: "default"}}
		c := newScheme().WithObjects(pod).Build()

		err := k8sobjects.SetMembershipInfo(ctx, c, pod, k8sobjects.MembershipInfo{
			MemberID: "uuid-0", Role: "PRIMARY", Status: "ONLINE", ViewID: "1",
		})
		Expect(err).NotTo(HaveOccurred())

		info := k8sobjects.GetMembershipInfo(pod)
		Expect(info.MemberID).To(Equal("uuid-0"))
		Expect(info.Role).To(Equal("PRIMARY"))
		Expect(k8sobjects.HadPriorMembership(pod)).To(BeTrue())
	})

	It("reports no prior membership on a pod with no annotations", func() {
		pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "mycluster-1", Namespace: "default"}}
		Expect(k8sobjects.HadPriorMembership(pod)).To(BeFalse())
	})
})

var _ = Describe("member finalizer", func() {
	ctx := context.Background()

	It("adds and removes the member finalizer idempotently", func() {
		pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "mycluster-0", Namespace: "default"}}
		c := newScheme().WithObjects(pod).Build()

		Expect(k8sobjects.EnsureMemberFinalizer(ctx, c, pod)).To(Succeed())
		Expect(pod.Finalizers).To(ContainElement(mysqlv1.MemberFinalizerName))

		Expect(k8sobjects.EnsureMemberFinalizer(ctx, c, pod)).To(Succeed())
		Expect(pod.Finalizers).To(HaveLen(1))

		Expect(k8sobjects.RemoveMemberFinalizer(ctx, c, pod)).To(Succeed())
		Expect(pod.Finalizers).NotTo(ContainElement(mysqlv1.MemberFinalizerName))
	})
})

var _ = Describe("cluster status updates", func() {
	ctx := context.Background()

	It("applies a mutation through UpdateClusterStatus", func() {
		cluster := &mysqlv1.Cluster{ObjectMeta: metav1.ObjectMeta{Name: "mycluster", Namespace: "default"}}
		c := newScheme().WithObjects(cluster).WithStatusSubresource(cluster).Build()

		err := k8sobjects.UpdateClusterStatus(ctx, c, cluster, func(status *mysqlv1.ClusterStatus) {
			status.Status = "ONLINE"
			status.OnlineInstances = 3
			k8sobjects.StampLastProbeTime(status)
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(cluster.Status.Status).To(Equal("ONLINE"))
		Expect(cluster.Status.OnlineInstances).To(Equal(int32(3)))
		Expect(cluster.Status.LastProbeTime).NotTo(BeNil())
	})

	It("stamps create time only once", func() {
		status := &mysqlv1.ClusterStatus{}
		k8sobjects.StampCreateTimeOnce(status)
		first := status.CreateTime
		Expect(first).NotTo(BeNil())

		k8sobjects.StampCreateTimeOnce(status)
		Expect(status.CreateTime).To(Equal(first))
	})
})

var _ = Describe("endpoint and index helpers", func() {
	It("builds a pod endpoint from the headless service DNS name", func() {
		ep := k8sobjects.PodEndpoint("default", "mycluster", "mycluster-0")
		Expect(ep.Host).To(Equal("mycluster-0.mycluster-instances.default.svc"))
		Expect(ep.Port).To(Equal(k8sobjects.MySQLPort))
	})

	It("extracts the statefulset ordinal from a pod name", func() {
		Expect(k8sobjects.PodIndex("mycluster-0")).To(Equal(int32(0)))
		Expect(k8sobjects.PodIndex("mycluster-12")).To(Equal(int32(12)))
		Expect(k8sobjects.PodIndex("no-ordinal-here-x")).To(Equal(int32(-1)))
	})
})
