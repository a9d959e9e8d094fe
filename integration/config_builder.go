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
	"github.com/goccy/go-json"

	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/config"
)

type Builder struct {
	full config.AppConfig
}

func NewBuilder() *Builder {
	return &Builder{
		full: config.AppConfig{
			Contexts: []config.CalculationContext{},
		},
	}
}

func (b *Builder) SetDataArchive(address string) *Builder {
	b.full.DataArchiveAddress = address
	return b
}

func (b *Builder) AddContext(inputTag, outputTag string) *Builder {
	b.full.Contexts = append(b.full.Contexts, config.CalculationContext{
		InputTag:  inputTag,
		OutputTag: outputTag,
	})
	return b
}

func (b *Builder) Build() config.AppConfig {
	return b.full
}

func (b *Builder) BuildJSON() string {
	out, _ := json.MarshalIndent(b.full, "", "  ")
	return string(out)
}
