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

package log

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestLog(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "log suite")
}

var _ = Describe("context propagation", func() {
	It("returns the root logger when none was attached", func() {
		Expect(FromContext(context.Background())).To(Equal(root))
	})

	It("round-trips a logger through the context", func() {
		logger := GetLogger().WithValues("cluster", "demo")
		ctx := IntoContext(context.Background(), logger)
		Expect(FromContext(ctx)).To(Equal(logger))
	})

	It("gives every SetupLogger call its own correlation id", func() {
		_, ctx1 := SetupLogger(context.Background())
		_, ctx2 := SetupLogger(context.Background())
		Expect(FromContext(ctx1)).NotTo(Equal(FromContext(ctx2)))
	})
})
