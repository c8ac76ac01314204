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

package controller

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/22ndtech/mysql-operator/pkg/adminapi"
)

// adminRetryBackoff bounds how many times a public sink retries a
// transient admin-client error before giving up and surfacing
// retry-later to the reconciliation framework (spec.md §4.4: "a
// RetryLoop that catches retriable admin-client errors and retries with
// backoff").
var adminRetryBackoff = wait.Backoff{
	Steps:    5,
	Duration: 200 * time.Millisecond,
	Factor:   3.0,
	Jitter:   0.1,
}

// runRetryLoop runs fn, retrying with adminRetryBackoff while fn's error
// is a transient adminapi error. It returns nil on eventual success, the
// last transient error if every attempt was exhausted, or fn's error
// immediately if it is not transient.
func runRetryLoop(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	err := wait.ExponentialBackoffWithContext(ctx, adminRetryBackoff, func(ctx context.Context) (bool, error) {
		err := fn(ctx)
		if err == nil {
			return true, nil
		}
		if !adminapi.IsTransient(err) {
			return false, err
		}
		lastErr = err
		return false, nil
	})
	if err == wait.ErrWaitTimeout {
		return lastErr
	}
	return err
}
