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

package adminapi_test

import (
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/22ndtech/mysql-operator/pkg/adminapi"
)

func TestAdminAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "adminapi suite")
}

var _ = Describe("ParseURI", func() {
	It("parses a bare host:port", func() {
		ep, err := adminapi.ParseURI("mysql-0.mysql-instances.default.svc:3306")
		Expect(err).NotTo(HaveOccurred())
		Expect(ep.Host).To(Equal("mysql-0.mysql-instances.default.svc"))
		Expect(ep.Port).To(Equal(3306))
	})

	It("strips a user@ prefix", func() {
		ep, err := adminapi.ParseURI("mysqladmin@mysql-1.mysql-instances.default.svc:3306")
		Expect(err).NotTo(HaveOccurred())
		Expect(ep.Host).To(Equal("mysql-1.mysql-instances.default.svc"))
		Expect(ep.Port).To(Equal(3306))
	})

	It("rejects a URI with no port", func() {
		_, err := adminapi.ParseURI("mysql-0.mysql-instances.default.svc")
		Expect(err).To(HaveOccurred())
	})

	It("round-trips through Endpoint.String", func() {
		ep := adminapi.Endpoint{Host: "mysql-2.mysql-instances.default.svc", Port: 3306}
		Expect(ep.String()).To(Equal("mysql-2.mysql-instances.default.svc:3306"))
	})
})

var _ = Describe("error classification", func() {
	It("recognizes transport errors by code range", func() {
		err := adminapi.WrapError(adminapi.CRMinError+5, "connection reset", errors.New("eof"))
		Expect(adminapi.IsTransient(err)).To(BeTrue())
	})

	It("does not classify an access-denied error as transient", func() {
		err := adminapi.NewError(adminapi.ErAccessDeniedError, "access denied")
		Expect(adminapi.IsTransient(err)).To(BeFalse())
		Expect(adminapi.IsAccessDenied(err)).To(BeTrue())
	})

	It("recognizes already-in-group", func() {
		err := adminapi.NewError(adminapi.SherrBadArgInstanceAlreadyInGR, "already a member")
		Expect(adminapi.IsAlreadyInGroup(err)).To(BeTrue())
	})

	It("recognizes missing member metadata", func() {
		err := adminapi.NewError(adminapi.SherrMemberMetadataMissing, "not in metadata")
		Expect(adminapi.IsMemberMetadataMissing(err)).To(BeTrue())
	})

	It("recognizes the read-only grace window", func() {
		err := adminapi.NewError(adminapi.ErOptionPreventsStmt, "--read-only")
		Expect(adminapi.IsReadOnlyGrace(err)).To(BeTrue())
	})

	It("unwraps to the underlying cause", func() {
		cause := errors.New("connection refused")
		err := adminapi.WrapError(adminapi.CRMinError, "cannot connect", cause)
		Expect(errors.Unwrap(err)).To(Equal(cause))
	})

	It("does not classify a plain error as an admin error", func() {
		_, ok := adminapi.AsAdminError(errors.New("boom"))
		Expect(ok).To(BeFalse())
	})
})
