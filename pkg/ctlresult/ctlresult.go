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

// Package ctlresult gives the Cluster Controller a typed alternative to
// raising and catching exceptions for control flow, the way the Python
// original used kopf.TemporaryError and kopf.PermanentError. An Outcome is
// returned up the call stack explicitly and translated to a ctrl.Result at
// the Reconcile boundary, the same shape the teacher uses for ErrNextLoop.
package ctlresult

import (
	"errors"
	"fmt"
	"time"

	ctrl "sigs.k8s.io/controller-runtime"
)

// ErrNextLoop is returned by an inner reconcile step to mean "stop this
// pass, requeue, and don't treat it as an error" — see the errors.Is
// check in AdaptReconcileError.
var ErrNextLoop = errors.New("ctlresult: next loop")

// Outcome is the result of one reconciliation step: either continue to the
// next step, retry the whole pass after a delay, or fail permanently.
type Outcome struct {
	// retryAfter is nonzero when the step wants to be retried after a
	// delay rather than immediately (spec.md §7 kind 1: retriable).
	retryAfter time.Duration
	// permanent holds the error when the step has decided this cluster
	// cannot proceed and should stop being retried (spec.md §7 kind 6).
	permanent error
}

// Continue signals the step succeeded and reconciliation should proceed.
var Continue = Outcome{}

// IsContinue reports whether o carries no retry or failure.
func (o Outcome) IsContinue() bool {
	return o.retryAfter == 0 && o.permanent == nil
}

// RetryAfter builds an Outcome asking for the pass to be requeued after d.
func RetryAfter(d time.Duration) Outcome {
	if d <= 0 {
		d = time.Second
	}
	return Outcome{retryAfter: d}
}

// Permanent builds an Outcome that stops retrying this cluster until its
// spec or status changes, the PermanentError analogue.
func Permanent(err error) Outcome {
	return Outcome{permanent: err}
}

// Err renders o as an error suitable for propagating up a call chain that
// returns (T, error), using ErrNextLoop as the retry sentinel so callers can
// keep using errors.Is the way the teacher does.
func (o Outcome) Err() error {
	switch {
	case o.permanent != nil:
		return o.permanent
	case o.retryAfter > 0:
		return ErrNextLoop
	default:
		return nil
	}
}

// IsPermanent reports whether o represents a permanent failure.
func (o Outcome) IsPermanent() bool {
	return o.permanent != nil
}

// ToReconcileResult translates o into the (ctrl.Result, error) pair
// Reconcile must return, swallowing ErrNextLoop the same way
// ClusterReconciler.Reconcile does for its inner ErrNextLoop.
func (o Outcome) ToReconcileResult() (ctrl.Result, error) {
	switch {
	case o.permanent != nil:
		return ctrl.Result{}, o.permanent
	case o.retryAfter > 0:
		return ctrl.Result{RequeueAfter: o.retryAfter}, nil
	default:
		return ctrl.Result{}, nil
	}
}

func (o Outcome) String() string {
	switch {
	case o.permanent != nil:
		return fmt.Sprintf("permanent(%v)", o.permanent)
	case o.retryAfter > 0:
		return fmt.Sprintf("retryAfter(%s)", o.retryAfter)
	default:
		return "continue"
	}
}

// AdaptReconcileError translates a (ctrl.Result, error) pair returned by an
// inner reconcile function into the errorless pair Reconcile must return,
// as ClusterReconciler.Reconcile does at its boundary:
// `if errors.Is(err, ErrNextLoop) { return result, nil }`.
func AdaptReconcileError(result ctrl.Result, err error) (ctrl.Result, error) {
	if errors.Is(err, ErrNextLoop) {
		return result, nil
	}
	return result, err
}

// IgnoreIfDeleting runs fn and swallows its error if deleting is true,
// centralizing the "best effort, cluster is going away anyway" pattern used
// throughout destroy_cluster / on_pod_deleted in the original source.
func IgnoreIfDeleting(deleting bool, fn func() error) error {
	err := fn()
	if err != nil && deleting {
		return nil
	}
	return err
}
