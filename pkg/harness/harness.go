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

// Package harness orchestrates the end-to-end validation of an
// event-triggered calculation engine against a Data Archive:
// provision tags, run the engine, inject values, verify the outputs,
// tear the tags down again.
package harness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/archive"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/config"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/engine"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/env"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/logger"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/metrics"
)

// pointSource marks every tag the harness provisions so they are easy to
// find on a shared archive.
const pointSource = "CALC"

// Options tune the pacing and tolerances of a harness run.
type Options struct {
	// ValueCount is the number of values injected per context.
	ValueCount int
	// WriteInterval is the fixed delay between two injected values.
	WriteInterval time.Duration
	// SettleDelay is how long the engine gets after the last write before it
	// is cancelled.
	SettleDelay time.Duration
	// Tolerance is the accepted drift between an input write time and the
	// matching output timestamp. Sub-millisecond clock skew is expected.
	Tolerance time.Duration
	// VerifyTimeout bounds the polling for output values before the final
	// read is asserted.
	VerifyTimeout time.Duration
	// EngineWaitTimeout bounds waiting for the cancelled engine to report.
	EngineWaitTimeout time.Duration
	// KeepTags skips teardown at the end of Run so the provisioned tags and
	// their values can be inspected after a failure.
	KeepTags bool
}

// DefaultOptions returns the pacing used against a real archive.
func DefaultOptions() Options {
	return Options{
		ValueCount:        3,
		WriteInterval:     time.Second,
		SettleDelay:       2 * time.Second,
		Tolerance:         time.Millisecond,
		VerifyTimeout:     15 * time.Second,
		EngineWaitTimeout: 10 * time.Second,
	}
}

// OptionsFromEnv returns DefaultOptions with any overrides taken from the
// environment, so a run against a real archive can be re-paced without a
// rebuild.
func OptionsFromEnv() (Options, error) {
	opts := DefaultOptions()

	var err error
	if opts.ValueCount, err = env.GetAsInt("VALUE_COUNT", false, opts.ValueCount); err != nil {
		return Options{}, err
	}
	if opts.WriteInterval, err = env.GetAsDuration("WRITE_INTERVAL", false, opts.WriteInterval); err != nil {
		return Options{}, err
	}
	if opts.SettleDelay, err = env.GetAsDuration("SETTLE_DELAY", false, opts.SettleDelay); err != nil {
		return Options{}, err
	}
	if opts.VerifyTimeout, err = env.GetAsDuration("VERIFY_TIMEOUT", false, opts.VerifyTimeout); err != nil {
		return Options{}, err
	}
	if opts.KeepTags, err = env.GetAsBool("KEEP_TAGS", false, false); err != nil {
		return Options{}, err
	}

	return opts, nil
}

// ProvisionedContext holds the tag handles of one provisioned calculation
// context.
type ProvisionedContext struct {
	Input  *archive.Point
	Output *archive.Point
}

// WriteRecord remembers one injected value and its wall-clock write time.
type WriteRecord struct {
	Timestamp time.Time
	Value     float64
}

// Harness sequences the end-to-end scenario for every configured context.
type Harness struct {
	cfg    config.AppConfig
	client archive.Client
	opts   Options
	log    *zap.SugaredLogger
}

// New creates a harness over the given archive client. Zero option fields are
// filled in from DefaultOptions.
func New(cfg config.AppConfig, client archive.Client, opts Options) *Harness {
	defaults := DefaultOptions()
	if opts.ValueCount == 0 {
		opts.ValueCount = defaults.ValueCount
	}
	if opts.WriteInterval == 0 {
		opts.WriteInterval = defaults.WriteInterval
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = defaults.SettleDelay
	}
	if opts.Tolerance == 0 {
		opts.Tolerance = defaults.Tolerance
	}
	if opts.VerifyTimeout == 0 {
		opts.VerifyTimeout = defaults.VerifyTimeout
	}
	if opts.EngineWaitTimeout == 0 {
		opts.EngineWaitTimeout = defaults.EngineWaitTimeout
	}

	return &Harness{
		cfg:    cfg,
		client: client,
		opts:   opts,
		log:    logger.For(logger.ComponentHarness),
	}
}

// Provision creates the input and output tags of every configured context.
// A tag that already exists fails the run before anything is modified on the
// archive. On error the already-provisioned contexts are returned so the
// caller can tear them down.
func (h *Harness) Provision(ctx context.Context) ([]ProvisionedContext, error) {
	// Fail fast before creating anything.
	for _, cc := range h.cfg.Contexts {
		for _, tag := range []string{cc.InputTag, cc.OutputTag} {
			if err := h.confirmAbsent(ctx, tag); err != nil {
				return nil, err
			}
		}
	}

	provisioned := make([]ProvisionedContext, 0, len(h.cfg.Contexts))
	for _, cc := range h.cfg.Contexts {
		input, err := h.createTag(ctx, cc.InputTag)
		if err != nil {
			return provisioned, err
		}
		pc := ProvisionedContext{Input: input}

		output, err := h.createTag(ctx, cc.OutputTag)
		if err != nil {
			// Keep the half-provisioned context so teardown removes the input.
			provisioned = append(provisioned, pc)
			return provisioned, err
		}
		pc.Output = output
		provisioned = append(provisioned, pc)

		h.log.Infow("Provisioned context", "inputTag", cc.InputTag, "outputTag", cc.OutputTag)
	}

	return provisioned, nil
}

// confirmAbsent verifies a tag does not pre-exist. Point-not-found is the
// success path here.
func (h *Harness) confirmAbsent(ctx context.Context, tag string) error {
	_, err := h.client.FindPoint(ctx, tag)
	if err == nil {
		return fmt.Errorf("tag %q already exists on the archive, refusing to run", tag)
	}
	if !errors.Is(err, archive.ErrPointNotFound) {
		return fmt.Errorf("failed to confirm tag %q is absent: %w", tag, err)
	}
	return nil
}

// createTag creates a point, stamps the harness point source, turns
// compression and exception reporting off so every written value is recorded,
// and saves it.
func (h *Harness) createTag(ctx context.Context, tag string) (*archive.Point, error) {
	point, err := h.client.CreatePoint(ctx, tag, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create tag %q: %w", tag, err)
	}

	point.SetAttribute(archive.AttrPointSource, pointSource)
	point.SetAttribute(archive.AttrCompressing, 0)
	point.SetAttribute(archive.AttrExceptionDeviation, 0)
	if err := h.client.SavePoint(ctx, point); err != nil {
		return nil, fmt.Errorf("failed to save attributes of tag %q: %w", tag, err)
	}

	return point, nil
}

// InjectValues writes the configured number of timestamped values to the
// context's input tag with a fixed delay in between, and returns what was
// written together with the write times.
func (h *Harness) InjectValues(ctx context.Context, pc ProvisionedContext) ([]WriteRecord, error) {
	records := make([]WriteRecord, 0, h.opts.ValueCount)

	for i := 0; i < h.opts.ValueCount; i++ {
		if i > 0 {
			select {
			case <-time.After(h.opts.WriteInterval):
			case <-ctx.Done():
				return records, ctx.Err()
			}
		}

		record := WriteRecord{
			Timestamp: time.Now().UTC(),
			Value:     math.Round(rand.Float64()*10000) / 100,
		}
		err := h.client.WriteValue(ctx, pc.Input, archive.Value{
			Timestamp: record.Timestamp,
			Value:     record.Value,
			Good:      true,
		})
		if err != nil {
			return records, fmt.Errorf("failed to inject value %d into %q: %w", i, pc.Input.Name, err)
		}

		records = append(records, record)
		h.log.Debugw("Injected value", "tag", pc.Input.Name, "value", record.Value,
			"timestamp", record.Timestamp)
	}

	metrics.AddValuesWritten(pc.Input.Name, len(records))
	return records, nil
}

// VerifyOutputs checks that the output tag received exactly one good value
// per injected input, with matching content and a timestamp within tolerance.
func (h *Harness) VerifyOutputs(ctx context.Context, pc ProvisionedContext, want []WriteRecord) error {
	// Give the engine time to catch up before the asserting read. Timing
	// coordination is approximate, so poll rather than sleep once.
	deadline := time.Now().Add(h.opts.VerifyTimeout)
	for {
		values, err := h.client.RecordedValuesDescending(ctx, pc.Output, len(want))
		if err == nil && len(values) >= len(want) {
			break
		}
		if time.Now().After(deadline) {
			break
		}
		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Read one extra value so a surplus write is detected.
	values, err := h.client.RecordedValuesDescending(ctx, pc.Output, len(want)+1)
	if err != nil {
		return fmt.Errorf("failed to read output tag %q: %w", pc.Output.Name, err)
	}
	if len(values) != len(want) {
		return fmt.Errorf("output tag %q recorded %d values, expected %d",
			pc.Output.Name, len(values), len(want))
	}

	// The archive returns most recent first; compare in write order.
	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}

	for i, got := range values {
		if !got.Good {
			return fmt.Errorf("output tag %q value %d is not good quality", pc.Output.Name, i)
		}
		if got.Value != want[i].Value {
			return fmt.Errorf("output tag %q value %d is %v, expected %v",
				pc.Output.Name, i, got.Value, want[i].Value)
		}
		drift := got.Timestamp.Sub(want[i].Timestamp)
		if drift < 0 {
			drift = -drift
		}
		if drift > h.opts.Tolerance {
			return fmt.Errorf("output tag %q value %d drifted %v from its write time, tolerance is %v",
				pc.Output.Name, i, drift, h.opts.Tolerance)
		}
	}

	metrics.AddValuesVerified(pc.Output.Name, len(values))
	h.log.Infow("Verified output tag", "tag", pc.Output.Name, "values", len(values))
	return nil
}

// Teardown deletes every provisioned tag, leaving the archive in its prior
// state. All deletions are attempted; errors are aggregated.
func (h *Harness) Teardown(ctx context.Context, provisioned []ProvisionedContext) error {
	var errs []error
	for _, pc := range provisioned {
		for _, point := range []*archive.Point{pc.Input, pc.Output} {
			if point == nil {
				continue
			}
			if err := h.client.DeletePoint(ctx, point); err != nil {
				errs = append(errs, fmt.Errorf("failed to delete tag %q: %w", point.Name, err))
			}
		}
	}

	return errors.Join(errs...)
}

// Run executes the whole scenario: provision, start the engine, inject,
// settle, cancel, check the engine completed cleanly, verify, tear down.
// Teardown is always attempted for whatever was provisioned, unless KeepTags
// is set.
func (h *Harness) Run(ctx context.Context, loop engine.MainLoop) (runErr error) {
	provisioned, err := h.Provision(ctx)
	defer func() {
		if h.opts.KeepTags {
			h.log.Warnw("Keeping provisioned tags for inspection", "contexts", len(provisioned))
			return
		}
		// Teardown must run even when ctx is already cancelled.
		teardownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := h.Teardown(teardownCtx, provisioned); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("teardown: %w", err))
		}
	}()
	if err != nil {
		return fmt.Errorf("provisioning: %w", err)
	}

	runner := engine.NewRunner(loop)
	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("engine start: %w", err)
	}
	defer runner.Cancel()

	written := make([][]WriteRecord, len(provisioned))
	for i, pc := range provisioned {
		records, err := h.InjectValues(ctx, pc)
		if err != nil {
			return fmt.Errorf("value injection: %w", err)
		}
		written[i] = records
	}

	// Let the engine process the last snapshot before cancelling it.
	select {
	case <-time.After(h.opts.SettleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	runner.Cancel()
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.opts.EngineWaitTimeout)
	defer cancel()
	if err := runner.Wait(waitCtx); err != nil {
		return fmt.Errorf("engine completion: %w", err)
	}

	for i, pc := range provisioned {
		if err := h.VerifyOutputs(ctx, pc, written[i]); err != nil {
			return fmt.Errorf("verification: %w", err)
		}
	}

	return nil
}
