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

package groupmonitor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"k8s.io/apimachinery/pkg/types"

	"github.com/22ndtech/mysql-operator/pkg/adminapi"
	"github.com/22ndtech/mysql-operator/pkg/groupmonitor"
)

func TestGroupMonitor(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "groupmonitor suite")
}

type fakeSession struct {
	endpoint adminapi.Endpoint
	closed   bool
}

func (s *fakeSession) Endpoint() adminapi.Endpoint { return s.endpoint }
func (s *fakeSession) Close() error                { s.closed = true; return nil }

// fakeClient answers Connect/JumpToPrimary/QueryMembers from a script that
// a test can mutate between ticks, to exercise reconnection.
type fakeClient struct {
	adminapi.Client

	mu            sync.Mutex
	unreachable   map[string]bool
	primaryHost   string
	members       []adminapi.MemberInfo
	queryErrHosts map[string]bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		unreachable:   map[string]bool{},
		queryErrHosts: map[string]bool{},
	}
}

func (c *fakeClient) Connect(_ context.Context, ep adminapi.Endpoint) (adminapi.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unreachable[ep.Host] {
		return nil, adminapi.NewError(adminapi.CRMinError, "unreachable")
	}
	return &fakeSession{endpoint: ep}, nil
}

func (c *fakeClient) JumpToPrimary(_ context.Context, session adminapi.Session) (adminapi.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if session.Endpoint().Host == c.primaryHost {
		return session, nil
	}
	return nil, nil
}

func (c *fakeClient) QueryMembers(_ context.Context, session adminapi.Session) ([]adminapi.MemberInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queryErrHosts[session.Endpoint().Host] {
		return nil, adminapi.NewError(adminapi.CRMinError, "query failed")
	}
	out := make([]adminapi.MemberInfo, len(c.members))
	copy(out, c.members)
	return out, nil
}

func pods(names ...string) groupmonitor.PodSource {
	return func(_ context.Context) ([]groupmonitor.PodMembership, error) {
		out := make([]groupmonitor.PodMembership, len(names))
		for i, n := range names {
			out[i] = groupmonitor.PodMembership{Name: n, Endpoint: adminapi.Endpoint{Host: n, Port: 3306}}
		}
		return out, nil
	}
}

var _ = Describe("MonitoredCluster via GroupMonitor", func() {
	ctx := context.Background()
	key := types.NamespacedName{Namespace: "default", Name: "db"}

	It("connects to the PRIMARY and delivers the initial membership view", func() {
		client := newFakeClient()
		client.primaryHost = "db-0"
		client.members = []adminapi.MemberInfo{
			{MemberID: "db-0-uuid", Role: adminapi.RolePrimary, Status: adminapi.StatusOnline, ViewID: "1"},
		}

		gm := groupmonitor.New(client)
		gm.PollInterval = 10 * time.Millisecond

		var mu sync.Mutex
		var calls int
		var firstViewChanged bool
		gm.Monitor(key, pods("db-0", "db-1"), func(_ types.NamespacedName, members []adminapi.MemberInfo, viewChanged bool) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls == 1 {
				firstViewChanged = viewChanged
			}
			Expect(members).To(HaveLen(1))
		})

		runCtx, cancel := context.WithTimeout(ctx, 60*time.Millisecond)
		defer cancel()
		gm.Run(runCtx)

		mu.Lock()
		defer mu.Unlock()
		Expect(calls).To(BeNumerically(">=", 1))
		Expect(firstViewChanged).To(BeTrue())
	})

	It("stops delivering callbacks once removed", func() {
		client := newFakeClient()
		client.primaryHost = "db-0"
		client.members = []adminapi.MemberInfo{
			{MemberID: "db-0-uuid", Role: adminapi.RolePrimary, Status: adminapi.StatusOnline, ViewID: "1"},
		}

		gm := groupmonitor.New(client)
		gm.PollInterval = 10 * time.Millisecond

		var mu sync.Mutex
		calls := 0
		gm.Monitor(key, pods("db-0"), func(types.NamespacedName, []adminapi.MemberInfo, bool) {
			mu.Lock()
			calls++
			mu.Unlock()
		})

		runCtx, cancel := context.WithTimeout(ctx, 25*time.Millisecond)
		gm.Run(runCtx)
		cancel()

		gm.Remove(key)

		mu.Lock()
		afterRemove := calls
		mu.Unlock()

		runCtx2, cancel2 := context.WithTimeout(ctx, 25*time.Millisecond)
		defer cancel2()
		gm.Run(runCtx2)

		mu.Lock()
		defer mu.Unlock()
		Expect(calls).To(Equal(afterRemove))
	})

	It("ignores a second Monitor call for an already-registered cluster", func() {
		client := newFakeClient()
		gm := groupmonitor.New(client)

		gm.Monitor(key, pods("db-0"), func(types.NamespacedName, []adminapi.MemberInfo, bool) {})
		gm.Monitor(key, pods("db-0"), func(types.NamespacedName, []adminapi.MemberInfo, bool) {
			Fail("second handler must not replace the first")
		})
	})
})
