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

package archive

import "time"

// Well-known point attribute names.
const (
	// AttrCompressing toggles compression; the harness turns it off so every
	// written value is recorded.
	AttrCompressing = "compressing"
	// AttrExceptionDeviation is the exception reporting dead band.
	AttrExceptionDeviation = "excdev"
	// AttrPointSource identifies the writer of a point.
	AttrPointSource = "pointsource"
)

// Point is a handle to a named time-series tag on the Data Archive.
// Attribute writes are staged locally until SavePoint flushes them.
type Point struct {
	WebID string `json:"webId"`
	Name  string `json:"name"`

	pending map[string]any
}

// SetAttribute stages an attribute change on the point handle.
// Nothing is sent to the archive until SavePoint is called.
func (p *Point) SetAttribute(name string, value any) {
	if p.pending == nil {
		p.pending = make(map[string]any)
	}
	p.pending[name] = value
}

// PendingAttributes returns the staged, unsaved attribute changes.
func (p *Point) PendingAttributes() map[string]any {
	return p.pending
}

func (p *Point) clearPending() {
	p.pending = nil
}

// Value is a single recorded (timestamp, value) pair with its quality flag.
// The most recent value of a tag is its snapshot.
type Value struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Good      bool      `json:"good"`
}
