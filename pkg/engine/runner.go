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

// Package engine drives the external event-triggered calculation program.
// The program itself is a black box: it accepts a cancellation signal, runs
// until cancelled, and reports success or failure asynchronously.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/logger"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/metrics"
)

// MainLoop is the contract of the calculation engine: it runs until the
// context is cancelled and returns nil (or context.Canceled) on a clean stop.
type MainLoop func(ctx context.Context) error

// Runner runs a MainLoop on its own goroutine and reports its result.
type Runner struct {
	loop MainLoop
	log  *zap.SugaredLogger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// NewRunner creates a runner for the given engine loop.
func NewRunner(loop MainLoop) *Runner {
	return &Runner{
		loop: loop,
		log:  logger.For(logger.ComponentEngineRunner),
		done: make(chan struct{}),
	}
}

// Start launches the engine. It returns immediately; the result is reported
// through Done and Wait. Starting twice is an error.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return errors.New("engine already started")
	}
	r.started = true

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.log.Info("Starting engine")
	go func() {
		defer close(r.done)

		err := r.loop(runCtx)
		// A cancellation-induced return is a clean, successful completion.
		if err != nil && errors.Is(err, context.Canceled) {
			err = nil
		}

		r.mu.Lock()
		r.err = err
		r.mu.Unlock()

		if err != nil {
			metrics.IncErrorCount(metrics.ComponentEngineRunner, "main_loop")
			r.log.Errorw("Engine faulted", "error", err)
			return
		}
		r.log.Info("Engine completed")
	}()

	return nil
}

// Cancel signals the engine to stop. Safe to call more than once.
func (r *Runner) Cancel() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		r.log.Info("Cancelling engine")
		cancel()
	}
}

// Done is closed once the engine has reported its result.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the engine has completed or ctx expires, then returns the
// engine's result. A non-nil result is a fault.
func (r *Runner) Wait(ctx context.Context) error {
	select {
	case <-r.done:
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for engine completion: %w", ctx.Err())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
