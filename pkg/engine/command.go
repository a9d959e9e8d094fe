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

package engine

import (
	"context"
	"os"
	"os/exec"
	"time"
)

// commandWaitDelay is how long a cancelled engine process gets to exit
// gracefully before it is killed.
const commandWaitDelay = 10 * time.Second

// Command adapts an external engine executable to the MainLoop contract.
// On cancellation the process receives an interrupt signal; its exit is then
// reported as a clean completion.
func Command(name string, args ...string) MainLoop {
	return func(ctx context.Context) error {
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Cancel = func() error {
			return cmd.Process.Signal(os.Interrupt)
		}
		cmd.WaitDelay = commandWaitDelay

		err := cmd.Run()
		if ctx.Err() != nil {
			// The exit was cancellation-induced, not a fault.
			return context.Canceled
		}
		return err
	}
}
