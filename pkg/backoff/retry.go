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

package backoff

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/logger"
)

const (
	// defaultMaxRetries bounds the number of attempts for a retried operation.
	defaultMaxRetries = 5
	// defaultInitialInterval is the first wait between attempts.
	defaultInitialInterval = 100 * time.Millisecond
	// defaultMaxInterval caps the wait between attempts.
	defaultMaxInterval = 2 * time.Second
)

// Retry runs op, retrying transient errors on an exponential schedule until it
// succeeds, a permanent or ignored error is returned, the retry budget is
// exhausted, or ctx is cancelled. The last error is returned unmodified so
// callers can still inspect its category. A nil log falls back to the global
// logger.
func Retry(ctx context.Context, op func() error, log *zap.SugaredLogger) error {
	if log == nil {
		log = logger.GetSugaredLogger()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaultInitialInterval
	b.MaxInterval = defaultMaxInterval

	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}

		// Only transient errors are worth another attempt.
		if !IsTransientError(CategorizeError(err)) {
			return backoff.Permanent(err)
		}

		log.Debugf("Attempt %d failed, retrying: %v", attempt, err)
		return err
	}

	// backoff.Retry unwraps Permanent errors before returning them.
	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(b, defaultMaxRetries), ctx))
}
