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

package ctlresult_test

import (
	"errors"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/22ndtech/mysql-operator/pkg/ctlresult"
)

func TestCtlResult(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "ctlresult suite")
}

var _ = Describe("Outcome", func() {
	It("Continue carries no error and requeues nothing", func() {
		Expect(ctlresult.Continue.IsContinue()).To(BeTrue())
		result, err := ctlresult.Continue.ToReconcileResult()
		Expect(err).NotTo(HaveOccurred())
		Expect(result.RequeueAfter).To(BeZero())
	})

	It("RetryAfter requeues without surfacing an error", func() {
		o := ctlresult.RetryAfter(5 * time.Second)
		Expect(o.IsContinue()).To(BeFalse())
		Expect(errors.Is(o.Err(), ctlresult.ErrNextLoop)).To(BeTrue())

		result, err := o.ToReconcileResult()
		Expect(err).NotTo(HaveOccurred())
		Expect(result.RequeueAfter).To(Equal(5 * time.Second))
	})

	It("RetryAfter defaults a non-positive delay to one second", func() {
		o := ctlresult.RetryAfter(0)
		result, _ := o.ToReconcileResult()
		Expect(result.RequeueAfter).To(Equal(time.Second))
	})

	It("Permanent surfaces the wrapped error", func() {
		cause := errors.New("split brain")
		o := ctlresult.Permanent(cause)
		Expect(o.IsPermanent()).To(BeTrue())
		Expect(o.Err()).To(Equal(cause))

		_, err := o.ToReconcileResult()
		Expect(err).To(Equal(cause))
	})
})

var _ = Describe("AdaptReconcileError", func() {
	It("swallows ErrNextLoop returned directly by an inner step", func() {
		result, err := ctlresult.AdaptReconcileError(
			ctrl.Result{RequeueAfter: time.Second}, ctlresult.ErrNextLoop)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.RequeueAfter).To(Equal(time.Second))
	})

	It("propagates any other error unchanged", func() {
		cause := errors.New("boom")
		_, err := ctlresult.AdaptReconcileError(ctrl.Result{}, cause)
		Expect(err).To(Equal(cause))
	})
})

var _ = Describe("IgnoreIfDeleting", func() {
	It("swallows errors while the cluster is being deleted", func() {
		err := ctlresult.IgnoreIfDeleting(true, func() error {
			return errors.New("instance already gone")
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("propagates errors when the cluster is not being deleted", func() {
		err := ctlresult.IgnoreIfDeleting(false, func() error {
			return errors.New("instance already gone")
		})
		Expect(err).To(HaveOccurred())
	})
})
