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

package archivetest

import (
	"context"
	"time"

	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/archive"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/config"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/engine"
)

// MirrorEngine stands in for the external event-triggered calculation
// program in tests. It resolves the configured tag pairs, then copies every
// new input snapshot to the matching output tag until it is cancelled. The
// real engine is a black box with the same contract: run until cancelled,
// report the result.
func MirrorEngine(client archive.Client, contexts []config.CalculationContext) engine.MainLoop {
	return func(ctx context.Context) error {
		type tagPair struct {
			in, out *archive.Point
			seen    int
		}

		pairs := make([]*tagPair, 0, len(contexts))
		for _, cc := range contexts {
			in, err := client.FindPoint(ctx, cc.InputTag)
			if err != nil {
				return err
			}
			out, err := client.FindPoint(ctx, cc.OutputTag)
			if err != nil {
				return err
			}
			pairs = append(pairs, &tagPair{in: in, out: out})
		}

		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				for _, p := range pairs {
					values, err := client.RecordedValuesDescending(ctx, p.in, 1000)
					if err != nil {
						return err
					}
					// Oldest first so outputs land in write order.
					for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
						values[i], values[j] = values[j], values[i]
					}
					for _, v := range values[p.seen:] {
						if err := client.WriteValue(ctx, p.out, v); err != nil {
							return err
						}
					}
					p.seen = len(values)
				}
			}
		}
	}
}
