// Copyright 2026 OSIsoft, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/engine"
)

var _ = Describe("Runner", func() {

	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("reports a clean completion when cancelled", func() {
		runner := engine.NewRunner(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})

		Expect(runner.Start(ctx)).To(Succeed())

		// Give the loop a moment to be running before cancelling.
		Consistently(runner.Done(), 100*time.Millisecond).ShouldNot(BeClosed())

		runner.Cancel()
		Eventually(runner.Done(), 2*time.Second).Should(BeClosed())

		waitCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		Expect(runner.Wait(waitCtx)).To(Succeed())
	})

	It("treats a nil return after cancellation as success", func() {
		runner := engine.NewRunner(func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		})

		Expect(runner.Start(ctx)).To(Succeed())
		runner.Cancel()

		waitCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		Expect(runner.Wait(waitCtx)).To(Succeed())
	})

	It("reports a fault when the loop fails on its own", func() {
		boom := errors.New("calculation failed")
		runner := engine.NewRunner(func(ctx context.Context) error {
			return boom
		})

		Expect(runner.Start(ctx)).To(Succeed())
		Eventually(runner.Done(), 2*time.Second).Should(BeClosed())

		waitCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		Expect(runner.Wait(waitCtx)).To(MatchError(boom))
	})

	It("refuses to start twice", func() {
		runner := engine.NewRunner(func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		})

		Expect(runner.Start(ctx)).To(Succeed())
		Expect(runner.Start(ctx)).To(MatchError(ContainSubstring("already started")))

		runner.Cancel()
		Eventually(runner.Done(), 2*time.Second).Should(BeClosed())
	})

	It("times out waiting for a loop that ignores cancellation", func() {
		release := make(chan struct{})
		runner := engine.NewRunner(func(ctx context.Context) error {
			<-release
			return nil
		})

		Expect(runner.Start(ctx)).To(Succeed())
		runner.Cancel()

		waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		err := runner.Wait(waitCtx)
		Expect(err).To(MatchError(ContainSubstring("timed out waiting for engine completion")))

		close(release)
		Eventually(runner.Done(), 2*time.Second).Should(BeClosed())
	})
})
