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

package xctrace

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTableCountersProfile(t *testing.T) {
	f, err := os.Open("testdata/counters-profile.xml")
	require.NoError(t, err)
	defer f.Close()

	samples, err := ParseTable(f)
	require.NoError(t, err)
	require.Len(t, samples, 3)

	first := samples[0]
	require.Equal(t, int64(244123456), first.TimeNanos)
	require.Equal(t, int64(1000000), first.Weight)
	require.Equal(t, []Frame{
		{Name: "hotLoop", Address: 0x1045f3a00, Binary: "bench"},
		{Name: "main", Address: 0x1045f3800, Binary: "bench"},
	}, first.Frames)

	// Second row is built entirely from interned references.
	second := samples[1]
	require.Equal(t, int64(245123456), second.TimeNanos)
	require.Equal(t, int64(1000000), second.Weight)
	require.Equal(t, first.Frames, second.Frames)

	// Third row: multi-counter pmc-events takes the first value, and the
	// ref'd frame resolves with its binary.
	third := samples[2]
	require.Equal(t, int64(2000000), third.Weight)
	top, ok := third.Top()
	require.True(t, ok)
	require.Equal(t, Frame{Name: "main", Address: 0x1045f3800, Binary: "bench"}, top)
}

func TestParseTableTimeProfileUsesWeight(t *testing.T) {
	f, err := os.Open("testdata/time-profile.xml")
	require.NoError(t, err)
	defer f.Close()

	samples, err := ParseTable(f)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.Equal(t, int64(1000000), samples[0].Weight)
	top, ok := samples[0].Top()
	require.True(t, ok)
	require.Equal(t, "spin", top.Name)
}

func TestParseTableUnknownBacktraceRef(t *testing.T) {
	doc := `<?xml version="1.0"?>
<trace-query-result>
<node>
<row>
 <weight id="1">5</weight>
 <backtrace ref="99"/>
</row>
</node>
</trace-query-result>`
	_, err := ParseTable(strings.NewReader(doc))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown backtrace id")
}

func TestParseTableNotAQueryResult(t *testing.T) {
	_, err := ParseTable(strings.NewReader(`<?xml version="1.0"?><something-else/>`))
	require.Error(t, err)
}

func TestParseTableTruncated(t *testing.T) {
	_, err := ParseTable(strings.NewReader(`<?xml version="1.0"?><trace-query-result><row><weight id="1">`))
	require.Error(t, err)
}

func TestParseTableBadWeight(t *testing.T) {
	doc := `<trace-query-result><row><weight id="1">lots</weight></row></trace-query-result>`
	_, err := ParseTable(strings.NewReader(doc))
	require.Error(t, err)
}

func TestParseTableEmptySample(t *testing.T) {
	samples, err := ParseTable(strings.NewReader(`<trace-query-result></trace-query-result>`))
	require.NoError(t, err)
	require.Empty(t, samples)

	var s Sample
	_, ok := s.Top()
	require.False(t, ok)
}

func TestParseTOC(t *testing.T) {
	f, err := os.Open("testdata/toc.xml")
	require.NoError(t, err)
	defer f.Close()

	schemas, err := ParseTOC(f)
	require.NoError(t, err)
	require.Equal(t, []string{"kdebug", "counters-time-profile", "counters-profile"}, schemas)
}

func TestParseTOCMalformed(t *testing.T) {
	_, err := ParseTOC(strings.NewReader("not xml at all"))
	require.Error(t, err)
}

func TestSelectTable(t *testing.T) {
	table, ok := SelectTable([]string{"kdebug", "counters-time-profile", "counters-profile"})
	require.True(t, ok)
	require.Equal(t, TableCountersProfile, table)

	table, ok = SelectTable([]string{"kdebug", "time-profile"})
	require.True(t, ok)
	require.Equal(t, TableTimeProfile, table)

	_, ok = SelectTable([]string{"kdebug"})
	require.False(t, ok)
}
