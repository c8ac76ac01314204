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

package diagnose_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/22ndtech/mysql-operator/pkg/adminapi"
	"github.com/22ndtech/mysql-operator/pkg/diagnose"
)

func TestDiagnose(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "diagnose suite")
}

// fakeSession is a no-op Session identified only by its endpoint.
type fakeSession struct {
	endpoint adminapi.Endpoint
}

func (s *fakeSession) Endpoint() adminapi.Endpoint { return s.endpoint }
func (s *fakeSession) Close() error                { return nil }

// fakeClient answers Connect/QueryMembers from pre-seeded tables keyed by
// host, so each test can script exactly what every pod "sees".
type fakeClient struct {
	adminapi.Client
	unreachableHosts map[string]bool
	viewsByHost      map[string][]adminapi.MemberInfo
	queryErrHosts    map[string]bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		unreachableHosts: map[string]bool{},
		viewsByHost:      map[string][]adminapi.MemberInfo{},
		queryErrHosts:    map[string]bool{},
	}
}

func (c *fakeClient) Connect(_ context.Context, ep adminapi.Endpoint) (adminapi.Session, error) {
	if c.unreachableHosts[ep.Host] {
		return nil, adminapi.WrapError(adminapi.CRMinError, "connection refused", errors.New("refused"))
	}
	return &fakeSession{endpoint: ep}, nil
}

func (c *fakeClient) QueryMembers(_ context.Context, session adminapi.Session) ([]adminapi.MemberInfo, error) {
	host := session.Endpoint().Host
	if c.queryErrHosts[host] {
		return nil, adminapi.NewError(adminapi.CRMinError, "query failed")
	}
	return c.viewsByHost[host], nil
}

func pod(name string, index int32) diagnose.PodInfo {
	return diagnose.PodInfo{
		Name:       name,
		Index:      index,
		Endpoint:   adminapi.Endpoint{Host: name, Port: 3306},
		ServerUUID: name + "-uuid",
	}
}

var _ = Describe("DiagnoseCluster", func() {
	ctx := context.Background()

	It("reports INITIALIZING when there are no pods and no create time", func() {
		diag, _, err := diagnose.DiagnoseCluster(ctx, newFakeClient(), diagnose.ClusterInput{})
		Expect(err).NotTo(HaveOccurred())
		Expect(diag.Status).To(Equal(diagnose.Initializing))
	})

	It("reports INVALID when there are no pods but a create time exists", func() {
		diag, _, err := diagnose.DiagnoseCluster(ctx, newFakeClient(), diagnose.ClusterInput{HasCreateTime: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(diag.Status).To(Equal(diagnose.Invalid))
	})

	It("reports FINALIZING when the cluster is deleting, regardless of pods", func() {
		diag, _, err := diagnose.DiagnoseCluster(ctx, newFakeClient(), diagnose.ClusterInput{
			Deleting: true,
			Pods:     []diagnose.PodInfo{pod("pod-0", 0)},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(diag.Status).To(Equal(diagnose.Finalizing))
	})

	It("reports UNKNOWN when no pod is reachable", func() {
		c := newFakeClient()
		c.unreachableHosts["pod-0"] = true
		diag, candidates, err := diagnose.DiagnoseCluster(ctx, c, diagnose.ClusterInput{
			Pods: []diagnose.PodInfo{pod("pod-0", 0)},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(diag.Status).To(Equal(diagnose.Unknown))
		Expect(candidates["pod-0"].Status).To(Equal(diagnose.Unreachable))
	})

	It("reports ONLINE when quorum is present and every expected member is ONLINE", func() {
		pods := []diagnose.PodInfo{pod("pod-0", 0), pod("pod-1", 1), pod("pod-2", 2)}
		view := []adminapi.MemberInfo{
			{MemberID: "pod-0-uuid", Role: adminapi.RolePrimary, Status: adminapi.StatusOnline, ViewID: "3"},
			{MemberID: "pod-1-uuid", Role: adminapi.RoleSecondary, Status: adminapi.StatusOnline, ViewID: "3"},
			{MemberID: "pod-2-uuid", Role: adminapi.RoleSecondary, Status: adminapi.StatusOnline, ViewID: "3"},
		}
		c := newFakeClient()
		for _, p := range pods {
			c.viewsByHost[p.Endpoint.Host] = view
		}

		diag, candidates, err := diagnose.DiagnoseCluster(ctx, c, diagnose.ClusterInput{Pods: pods})
		Expect(err).NotTo(HaveOccurred())
		Expect(diag.Status).To(Equal(diagnose.Online))
		Expect(candidates["pod-1"].Status).To(Equal(diagnose.Member))
	})

	It("flags VersionMismatch when reachable members report different MySQL versions", func() {
		pods := []diagnose.PodInfo{pod("pod-0", 0), pod("pod-1", 1), pod("pod-2", 2)}
		view := []adminapi.MemberInfo{
			{MemberID: "pod-0-uuid", Role: adminapi.RolePrimary, Status: adminapi.StatusOnline, ViewID: "3", Version: "8.0.34"},
			{MemberID: "pod-1-uuid", Role: adminapi.RoleSecondary, Status: adminapi.StatusOnline, ViewID: "3", Version: "8.0.34"},
			{MemberID: "pod-2-uuid", Role: adminapi.RoleSecondary, Status: adminapi.StatusOnline, ViewID: "3", Version: "8.0.35"},
		}
		c := newFakeClient()
		for _, p := range pods {
			c.viewsByHost[p.Endpoint.Host] = view
		}

		diag, _, err := diagnose.DiagnoseCluster(ctx, c, diagnose.ClusterInput{Pods: pods})
		Expect(err).NotTo(HaveOccurred())
		Expect(diag.VersionMismatch).To(BeTrue())
	})

	It("does not flag VersionMismatch when every reachable member agrees", func() {
		pods := []diagnose.PodInfo{pod("pod-0", 0), pod("pod-1", 1), pod("pod-2", 2)}
		view := []adminapi.MemberInfo{
			{MemberID: "pod-0-uuid", Role: adminapi.RolePrimary, Status: adminapi.StatusOnline, ViewID: "3", Version: "8.0.34"},
			{MemberID: "pod-1-uuid", Role: adminapi.RoleSecondary, Status: adminapi.StatusOnline, ViewID: "3", Version: "8.0.34"},
			{MemberID: "pod-2-uuid", Role: adminapi.RoleSecondary, Status: adminapi.StatusOnline, ViewID: "3", Version: "8.0.34"},
		}
		c := newFakeClient()
		for _, p := range pods {
			c.viewsByHost[p.Endpoint.Host] = view
		}

		diag, _, err := diagnose.DiagnoseCluster(ctx, c, diagnose.ClusterInput{Pods: pods})
		Expect(err).NotTo(HaveOccurred())
		Expect(diag.VersionMismatch).To(BeFalse())
	})

	It("reports ONLINE_PARTIAL when quorum holds but a member is OFFLINE", func() {
		pods := []diagnose.PodInfo{pod("pod-0", 0), pod("pod-1", 1), pod("pod-2", 2)}
		view := []adminapi.MemberInfo{
			{MemberID: "pod-0-uuid", Role: adminapi.RolePrimary, Status: adminapi.StatusOnline, ViewID: "4"},
			{MemberID: "pod-1-uuid", Role: adminapi.RoleSecondary, Status: adminapi.StatusOnline, ViewID: "4"},
			{MemberID: "pod-2-uuid", Role: adminapi.RoleSecondary, Status: adminapi.StatusOffline, ViewID: "4"},
		}
		c := newFakeClient()
		for _, p := range pods {
			c.viewsByHost[p.Endpoint.Host] = view
		}

		diag, candidates, err := diagnose.DiagnoseCluster(ctx, c, diagnose.ClusterInput{Pods: pods})
		Expect(err).NotTo(HaveOccurred())
		Expect(diag.Status).To(Equal(diagnose.OnlinePartial))
		Expect(candidates["pod-2"].Status).To(Equal(diagnose.Rejoinable))
	})

	It("reports NO_QUORUM when no reachable view has a majority ONLINE", func() {
		pods := []diagnose.PodInfo{pod("pod-0", 0), pod("pod-1", 1), pod("pod-2", 2)}
		view := []adminapi.MemberInfo{
			{MemberID: "pod-0-uuid", Role: adminapi.RolePrimary, Status: adminapi.StatusOnline, ViewID: "5"},
			{MemberID: "pod-1-uuid", Role: adminapi.RoleSecondary, Status: adminapi.StatusOffline, ViewID: "5"},
			{MemberID: "pod-2-uuid", Role: adminapi.RoleSecondary, Status: adminapi.StatusOffline, ViewID: "5"},
		}
		c := newFakeClient()
		for _, p := range pods {
			c.viewsByHost[p.Endpoint.Host] = view
		}

		diag, _, err := diagnose.DiagnoseCluster(ctx, c, diagnose.ClusterInput{Pods: pods})
		Expect(err).NotTo(HaveOccurred())
		Expect(diag.Status).To(Equal(diagnose.NoQuorum))
		Expect(diag.QuorumCandidates).To(ContainElement("pod-0"))
	})

	It("reports SPLIT_BRAIN when two disjoint quorate views are seen", func() {
		pods := []diagnose.PodInfo{pod("pod-0", 0), pod("pod-1", 1), pod("pod-2", 2)}
		viewA := []adminapi.MemberInfo{
			{MemberID: "pod-0-uuid", Role: adminapi.RolePrimary, Status: adminapi.StatusOnline, ViewID: "6"},
			{MemberID: "pod-1-uuid", Role: adminapi.RoleSecondary, Status: adminapi.StatusOnline, ViewID: "6"},
		}
		viewB := []adminapi.MemberInfo{
			{MemberID: "pod-2-uuid", Role: adminapi.RolePrimary, Status: adminapi.StatusOnline, ViewID: "7"},
		}
		c := newFakeClient()
		c.viewsByHost["pod-0"] = viewA
		c.viewsByHost["pod-1"] = viewA
		c.viewsByHost["pod-2"] = viewB

		diag, _, err := diagnose.DiagnoseCluster(ctx, c, diagnose.ClusterInput{Pods: pods})
		Expect(err).NotTo(HaveOccurred())
		Expect(diag.Status).To(Equal(diagnose.SplitBrain))
	})

	It("reports JOINABLE for a fresh pod with no prior membership and no record", func() {
		pods := []diagnose.PodInfo{pod("pod-0", 0), pod("pod-1", 1)}
		view := []adminapi.MemberInfo{
			{MemberID: "pod-0-uuid", Role: adminapi.RolePrimary, Status: adminapi.StatusOnline, ViewID: "8"},
		}
		c := newFakeClient()
		c.viewsByHost["pod-0"] = view
		c.viewsByHost["pod-1"] = view

		_, candidates, err := diagnose.DiagnoseCluster(ctx, c, diagnose.ClusterInput{Pods: pods})
		Expect(err).NotTo(HaveOccurred())
		Expect(candidates["pod-1"].Status).To(Equal(diagnose.Joinable))
	})

	It("reports BROKEN for a pod with prior membership but no current record", func() {
		p1 := pod("pod-1", 1)
		p1.HadPriorMembership = true
		pods := []diagnose.PodInfo{pod("pod-0", 0), p1}
		view := []adminapi.MemberInfo{
			{MemberID: "pod-0-uuid", Role: adminapi.RolePrimary, Status: adminapi.StatusOnline, ViewID: "9"},
		}
		c := newFakeClient()
		c.viewsByHost["pod-0"] = view
		c.viewsByHost["pod-1"] = view

		_, candidates, err := diagnose.DiagnoseCluster(ctx, c, diagnose.ClusterInput{Pods: pods})
		Expect(err).NotTo(HaveOccurred())
		Expect(candidates["pod-1"].Status).To(Equal(diagnose.Broken))
	})
})

var _ = Describe("ClusterState helpers", func() {
	It("classifies the ONLINE family", func() {
		Expect(diagnose.Online.IsOnlineFamily()).To(BeTrue())
		Expect(diagnose.OnlinePartial.IsOnlineFamily()).To(BeTrue())
		Expect(diagnose.OnlineUncertain.IsOnlineFamily()).To(BeTrue())
		Expect(diagnose.Offline.IsOnlineFamily()).To(BeFalse())
	})

	It("classifies uncertain variants", func() {
		Expect(diagnose.SplitBrainUncertain.IsUncertain()).To(BeTrue())
		Expect(diagnose.SplitBrain.IsUncertain()).To(BeFalse())
	})
})
