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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Options
		wantErr bool
	}{
		{
			name: "empty line applies defaults",
			line: "",
			want: Options{Template: DefaultTemplate, SamplingRateMs: 10},
		},
		{
			name: "template",
			line: "template=Time Profiler",
			want: Options{Template: "Time Profiler", SamplingRateMs: 10},
		},
		{
			name: "instrument",
			line: "instrument=CPU Counters",
			want: Options{Instrument: "CPU Counters", SamplingRateMs: 10},
		},
		{
			name: "counters with rate",
			line: "counters=INST_ALL,CORE_ACTIVE_CYCLE;samplingRateMs=5",
			want: Options{Counters: []string{"INST_ALL", "CORE_ACTIVE_CYCLE"}, SamplingRateMs: 5},
		},
		{
			name: "save options",
			line: "savePerfBin=true;savePerfBinToFile=/tmp/out.trace",
			want: Options{
				Template:        DefaultTemplate,
				SamplingRateMs:  10,
				SavePerfBin:     true,
				SavePerfBinPath: "/tmp/out.trace",
			},
		},
		{
			name: "stray semicolons and spaces tolerated",
			line: " template=Time Profiler ; ",
			want: Options{Template: "Time Profiler", SamplingRateMs: 10},
		},
		{name: "template and instrument conflict", line: "template=t;instrument=i", wantErr: true},
		{name: "template and counters conflict", line: "template=t;counters=INST_ALL", wantErr: true},
		{name: "instrument and counters conflict", line: "instrument=i;counters=INST_ALL", wantErr: true},
		{name: "empty counters", line: "counters=", wantErr: true},
		{name: "zero sampling rate", line: "counters=INST_ALL;samplingRateMs=0", wantErr: true},
		{name: "negative sampling rate", line: "counters=INST_ALL;samplingRateMs=-5", wantErr: true},
		{name: "non-numeric sampling rate", line: "counters=INST_ALL;samplingRateMs=fast", wantErr: true},
		{name: "bad boolean", line: "savePerfBin=yep", wantErr: true},
		{name: "unknown option", line: "turbo=on", wantErr: true},
		{name: "missing equals", line: "template", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOptions(tt.line)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, IsKind(err, KindConfig), "want a config error, got %v", err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestErrorKindStrings(t *testing.T) {
	require.Equal(t, "config", KindConfig.String())
	require.Equal(t, "tool-unavailable", KindToolUnavailable.String())
	require.Equal(t, "recording", KindRecording.String())
	require.Equal(t, "unsupported-counters", KindUnsupportedCounters.String())
	require.Equal(t, "parse", KindParse.String())
}

func TestIsKindOnForeignError(t *testing.T) {
	require.False(t, IsKind(assertAnError{}, KindConfig))
}

type assertAnError struct{}

func (assertAnError) Error() string { return "boom" }
