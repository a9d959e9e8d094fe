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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/engine"
)

var _ = Describe("Command", func() {

	It("reports a clean completion when the process is interrupted mid-run", func() {
		runner := engine.NewRunner(engine.Command("sleep", "30"))
		Expect(runner.Start(context.Background())).To(Succeed())

		// Give the process a moment to come up before interrupting it.
		time.Sleep(100 * time.Millisecond)
		runner.Cancel()
		Eventually(runner.Done(), 5*time.Second).Should(BeClosed())

		waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		Expect(runner.Wait(waitCtx)).To(Succeed(), "an interrupt-induced exit is not a fault")
	})

	It("returns nil when the process exits cleanly on its own", func() {
		loop := engine.Command("true")
		Expect(loop(context.Background())).To(Succeed())
	})

	It("surfaces the exit code of a failing process", func() {
		loop := engine.Command("sh", "-c", "exit 3")
		err := loop(context.Background())
		Expect(err).To(MatchError(ContainSubstring("exit status 3")))
	})

	It("fails when the executable cannot be started", func() {
		loop := engine.Command("/no/such/engine")
		Expect(loop(context.Background())).To(HaveOccurred())
	})
})
