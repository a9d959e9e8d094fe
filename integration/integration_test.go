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

package integration_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/archive"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/archive/archivetest"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/config"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/engine"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/harness"
)

// Pacing for the hermetic archive; a real archive run uses harness.DefaultOptions.
func integrationOptions() harness.Options {
	return harness.Options{
		ValueCount:        3,
		WriteInterval:     50 * time.Millisecond,
		SettleDelay:       300 * time.Millisecond,
		Tolerance:         time.Millisecond,
		VerifyTimeout:     5 * time.Second,
		EngineWaitTimeout: 5 * time.Second,
	}
}

var _ = Describe("Event-triggered calculation", Ordered, Label("integration"), func() {

	var (
		server *archivetest.Server
		client *archive.DataArchive
		cfg    config.AppConfig
		ctx    context.Context
	)

	BeforeAll(func() {
		ctx = context.Background()

		By("starting an in-memory Data Archive")
		server = archivetest.NewServer()
		Expect(server.Start()).To(Succeed())

		By("writing the configuration file and loading it back")
		raw := NewBuilder().
			SetDataArchive(server.URL()).
			AddContext("event.calc.input1", "event.calc.output1").
			AddContext("event.calc.input2", "event.calc.output2").
			BuildJSON()

		path := filepath.Join(GinkgoT().TempDir(), "config.json")
		Expect(os.WriteFile(path, []byte(raw), 0o644)).To(Succeed())

		var err error
		cfg, err = config.Load(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(cfg.Contexts).To(HaveLen(2))

		client = archive.NewDataArchive(cfg.DataArchiveAddress)
	})

	AfterAll(func() {
		Expect(server.Stop()).To(Succeed())
	})

	Context("end-to-end scenario", Ordered, func() {

		var (
			h           *harness.Harness
			provisioned []harness.ProvisionedContext
			written     [][]harness.WriteRecord
			runner      *engine.Runner
		)

		BeforeAll(func() {
			h = harness.New(cfg, client, integrationOptions())
		})

		It("provisions the input and output tags of every context", func() {
			var err error
			provisioned, err = h.Provision(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(provisioned).To(HaveLen(2))

			for _, cc := range cfg.Contexts {
				Expect(server.HasPoint(cc.InputTag)).To(BeTrue())
				Expect(server.HasPoint(cc.OutputTag)).To(BeTrue())
			}
		})

		It("starts the calculation engine", func() {
			runner = engine.NewRunner(archivetest.MirrorEngine(client, cfg.Contexts))
			Expect(runner.Start(ctx)).To(Succeed())
		})

		It("injects timestamped values into each input tag", func() {
			written = make([][]harness.WriteRecord, len(provisioned))
			for i, pc := range provisioned {
				records, err := h.InjectValues(ctx, pc)
				Expect(err).ToNot(HaveOccurred())
				Expect(records).To(HaveLen(3))
				written[i] = records
			}
		})

		It("reports a clean completion when the engine is cancelled", func() {
			// Let the engine process the last snapshot first.
			time.Sleep(integrationOptions().SettleDelay)

			runner.Cancel()
			Eventually(runner.Done(), 5*time.Second).Should(BeClosed())

			waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			Expect(runner.Wait(waitCtx)).To(Succeed(), "cancellation must not be reported as a fault")
		})

		It("recorded exactly the expected values on every output tag", func() {
			for i, pc := range provisioned {
				Expect(h.VerifyOutputs(ctx, pc, written[i])).To(Succeed())
			}
		})

		It("tears the tags down, leaving the archive in its prior state", func() {
			Expect(h.Teardown(ctx, provisioned)).To(Succeed())
			Expect(server.PointCount()).To(BeZero())

			for _, cc := range cfg.Contexts {
				_, err := client.FindPoint(ctx, cc.InputTag)
				Expect(errors.Is(err, archive.ErrPointNotFound)).To(BeTrue())
				_, err = client.FindPoint(ctx, cc.OutputTag)
				Expect(errors.Is(err, archive.ErrPointNotFound)).To(BeTrue())
			}
		})
	})

	Context("with a pre-existing tag", func() {
		It("fails fast before modifying the archive", func() {
			leftover, err := client.CreatePoint(ctx, "event.calc.input1", nil)
			Expect(err).ToNot(HaveOccurred())
			defer func() {
				Expect(client.DeletePoint(ctx, leftover)).To(Succeed())
			}()

			h := harness.New(cfg, client, integrationOptions())
			runErr := h.Run(ctx, archivetest.MirrorEngine(client, cfg.Contexts))
			Expect(runErr).To(MatchError(ContainSubstring("already exists")))

			// Only the pre-existing tag remains.
			Expect(server.PointCount()).To(Equal(1))
		})
	})

	Context("single-shot harness run", func() {
		It("passes end to end", func() {
			h := harness.New(cfg, client, integrationOptions())
			Expect(h.Run(ctx, archivetest.MirrorEngine(client, cfg.Contexts))).To(Succeed())
			Expect(server.PointCount()).To(BeZero())
		})
	})
})
