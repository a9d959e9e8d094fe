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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/env"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/logger"
)

// DefaultPath is used when CONFIG_PATH is not set.
const DefaultPath = "config.json"

// CalculationContext pairs one input tag with the output tag the calculation
// writes its result to.
type CalculationContext struct {
	InputTag  string `json:"inputTag"  yaml:"inputTag"`
	OutputTag string `json:"outputTag" yaml:"outputTag"`
}

// AppConfig names the Data Archive and the calculation contexts the harness
// provisions and verifies.
type AppConfig struct {
	// DataArchiveAddress is the base URL of the Data Archive web API,
	// e.g. "https://piserver.example.com/archive".
	DataArchiveAddress string `json:"dataArchiveAddress" yaml:"dataArchiveAddress"`

	Contexts []CalculationContext `json:"contexts" yaml:"contexts"`
}

// Load reads and validates a configuration file. JSON is the canonical format;
// files with a .yaml or .yml extension are decoded as YAML.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return AppConfig{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	logger.For(logger.ComponentConfig).Debugw("Loaded config",
		"path", path, "archive", cfg.DataArchiveAddress, "contexts", len(cfg.Contexts))
	return cfg, nil
}

// LoadFromEnv loads the configuration file named by the CONFIG_PATH
// environment variable, falling back to DefaultPath.
func LoadFromEnv() (AppConfig, error) {
	path, err := env.GetAsString("CONFIG_PATH", false, DefaultPath)
	if err != nil {
		return AppConfig{}, err
	}

	return Load(path)
}

// Validate checks the configuration for the invariants the harness relies on.
func (c AppConfig) Validate() error {
	if c.DataArchiveAddress == "" {
		return fmt.Errorf("dataArchiveAddress must not be empty")
	}

	if len(c.Contexts) == 0 {
		return fmt.Errorf("at least one calculation context is required")
	}

	seen := make(map[string]int, len(c.Contexts)*2)
	for i, cc := range c.Contexts {
		if cc.InputTag == "" {
			return fmt.Errorf("context %d: inputTag must not be empty", i)
		}
		if cc.OutputTag == "" {
			return fmt.Errorf("context %d: outputTag must not be empty", i)
		}
		if cc.InputTag == cc.OutputTag {
			return fmt.Errorf("context %d: inputTag and outputTag must differ", i)
		}
		for _, tag := range []string{cc.InputTag, cc.OutputTag} {
			if prev, ok := seen[tag]; ok {
				return fmt.Errorf("context %d: tag %q already used by context %d", i, tag, prev)
			}
			seen[tag] = i
		}
	}

	return nil
}
