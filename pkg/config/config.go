// Copyright 2026 The Benchkit Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrEmptyConfig = errors.New("empty config")

// Config holds the file-based defaults for the profiler CLI. Command-line
// flags override anything set here.
type Config struct {
	// ProfilerOptions is the semicolon-separated option string handed to
	// the profiler, e.g. "counters=INST_ALL;samplingRateMs=5".
	ProfilerOptions string `yaml:"profiler_options,omitempty"`
	// Label names the benchmark in result artifacts.
	Label string `yaml:"label,omitempty"`
	// ResultDir receives preserved traces and other per-run artifacts.
	ResultDir string `yaml:"result_dir,omitempty"`
	// DeveloperDir overrides the toolchain directory instrumentbuilder is
	// looked up in.
	DeveloperDir string `yaml:"developer_dir,omitempty"`
}

func (c Config) String() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("<error creating config string: %s>", err)
	}
	return string(b)
}

// Load parses the YAML input b into a Config.
func Load(b []byte) (*Config, error) {
	if len(b) == 0 {
		return nil, ErrEmptyConfig
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling YAML: %w", err)
	}

	return cfg, nil
}

// LoadFile parses the given YAML file into a Config.
func LoadFile(filename string) (*Config, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	cfg, err := Load(content)
	if err != nil {
		return nil, fmt.Errorf("parsing YAML file %s: %w", filename, err)
	}
	return cfg, nil
}
