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
	"fmt"
	"sort"
	"strings"

	"github.com/benchkit/xctrace-profiler/pkg/xctrace"
)

// ResultLabel is the key the harness registers the disassembly result
// under.
const ResultLabel = "asm"

// SecondaryResult is the harness-facing contract for per-fork auxiliary
// results.
type SecondaryResult interface {
	Label() string
	ExtendedInfo() string
}

// TextResult is a renderable text block attached to one fork's result.
type TextResult struct {
	label string
	text  string
}

func NewTextResult(label, text string) *TextResult {
	return &TextResult{label: label, text: text}
}

func (r *TextResult) Label() string { return r.label }

func (r *TextResult) ExtendedInfo() string { return r.text }

type symbolHotness struct {
	frame  xctrace.Frame
	weight int64
	hits   int64
}

// renderAssembly turns exported samples into the harness's textual "asm"
// secondary result: per-symbol hotness with the sampled addresses, hottest
// first. The downstream correlation engine consumes the addresses; humans
// read the rest.
func renderAssembly(samples []xctrace.Sample, table xctrace.TableType) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hottest symbols from the %s table:\n\n", table)

	if len(samples) == 0 {
		sb.WriteString("  <no samples recorded>\n")
		return sb.String()
	}

	var total int64
	bySymbol := make(map[string]*symbolHotness)
	for _, sample := range samples {
		weight := sample.Weight
		if weight == 0 {
			weight = 1
		}
		total += weight
		top, ok := sample.Top()
		if !ok {
			continue
		}
		key := top.Binary + "`" + top.Name
		hot, ok := bySymbol[key]
		if !ok {
			hot = &symbolHotness{frame: top}
			bySymbol[key] = hot
		}
		hot.weight += weight
		hot.hits++
	}

	hottest := make([]*symbolHotness, 0, len(bySymbol))
	for _, hot := range bySymbol {
		hottest = append(hottest, hot)
	}
	sort.Slice(hottest, func(i, j int) bool {
		if hottest[i].weight != hottest[j].weight {
			return hottest[i].weight > hottest[j].weight
		}
		return hottest[i].frame.Name < hottest[j].frame.Name
	})

	fmt.Fprintf(&sb, "  %10s  %6s  %-18s  %s\n", "WEIGHT", "PCT", "ADDRESS", "SYMBOL")
	for _, hot := range hottest {
		pct := float64(hot.weight) / float64(total) * 100
		fmt.Fprintf(&sb, "  %10d  %5.1f%%  0x%-16x  %s (%s)\n",
			hot.weight, pct, hot.frame.Address, hot.frame.Name, hot.frame.Binary)
	}
	fmt.Fprintf(&sb, "\n%d samples, total weight %d\n", len(samples), total)
	return sb.String()
}
