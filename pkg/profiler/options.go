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

package profiler

import (
	"strconv"
	"strings"
)

const (
	// DefaultTemplate is recorded when the user picks no mode at all.
	DefaultTemplate = "CPU Profiler"

	defaultSamplingRateMs = 10
)

// Options is the profiler's configuration contract with the harness,
// parsed from a semicolon-separated key=value option string.
type Options struct {
	// Template names a built-in trace template. Mutually exclusive with
	// Instrument and Counters.
	Template string
	// Instrument names an installed trace instrument. Mutually exclusive
	// with Template and Counters.
	Instrument string
	// Counters selects explicit pmc events, triggering construction of a
	// custom instrument. Mutually exclusive with the two above.
	Counters       []string
	SamplingRateMs int64
	// SavePerfBin preserves the raw run directory after the session.
	SavePerfBin bool
	// SavePerfBinPath is the preserved run's destination; it must not
	// exist at copy time. Empty means a harness-assigned default.
	SavePerfBinPath string
}

// ParseOptions parses and validates an option string. All violations are
// configuration errors: they surface before any process is spawned.
func ParseOptions(line string) (Options, error) {
	opts := Options{SamplingRateMs: defaultSamplingRateMs}

	for _, pair := range strings.Split(line, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return Options{}, configErrorf("malformed option %q, expected key=value", pair)
		}
		switch key {
		case "template":
			opts.Template = value
		case "instrument":
			opts.Instrument = value
		case "counters":
			opts.Counters = splitNonEmpty(value, ",")
			if len(opts.Counters) == 0 {
				return Options{}, configErrorf("counters option is empty")
			}
		case "samplingRateMs":
			rate, err := strconv.ParseInt(value, 10, 64)
			if err != nil || rate <= 0 {
				return Options{}, configErrorf("samplingRateMs must be a positive integer, got %q", value)
			}
			opts.SamplingRateMs = rate
		case "savePerfBin":
			save, err := strconv.ParseBool(value)
			if err != nil {
				return Options{}, configErrorf("savePerfBin must be a boolean, got %q", value)
			}
			opts.SavePerfBin = save
		case "savePerfBinToFile":
			opts.SavePerfBinPath = value
		default:
			return Options{}, configErrorf("unknown option %q", key)
		}
	}

	modes := 0
	for _, set := range []bool{opts.Template != "", opts.Instrument != "", len(opts.Counters) > 0} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		return Options{}, configErrorf("template, instrument and counters options are mutually exclusive")
	}
	if modes == 0 {
		opts.Template = DefaultTemplate
	}
	return opts, nil
}

func splitNonEmpty(s, sep string) []string {
	var parts []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
