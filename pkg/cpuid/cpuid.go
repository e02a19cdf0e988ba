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

// Package cpuid identifies the host CPU by the (type, subtype, family)
// triple the kernel reports. The triple keys the vendor's performance
// monitoring event database and cannot change while the process runs.
package cpuid

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/benchkit/xctrace-profiler/pkg/cmdutil"
)

// Identity is the host CPU identification triple.
type Identity struct {
	Type    uint32
	Subtype uint32
	Family  uint32
}

// String renders the triple the way the event database names its files:
// lowercase hex, underscore separated.
func (id Identity) String() string {
	return fmt.Sprintf("%x_%x_%x", id.Type, id.Subtype, id.Family)
}

const (
	cpuTypePrefix    = "hw.cputype: "
	cpuSubtypePrefix = "hw.cpusubtype: "
	cpuFamilyPrefix  = "hw.cpufamily: "
)

// Detect returns the host identity. It prefers the platform's direct sysctl
// interface and falls back to parsing `sysctl hw` output. ok is false when
// any of the three values is unavailable; callers must treat that as
// "unsupported host", not as an error.
func Detect(ctx context.Context, r cmdutil.Runner) (Identity, bool) {
	if id, ok := sysctlIdentity(); ok {
		return id, true
	}
	return FromSysctlOutput(cmdutil.RunWith(ctx, r, "sysctl", "hw"))
}

// FromSysctlOutput extracts the identity triple from `sysctl hw` lines.
func FromSysctlOutput(lines []string) (Identity, bool) {
	var (
		id   Identity
		seen int
	)
	assign := func(dst *uint32, raw string) {
		v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return
		}
		*dst = uint32(v)
		seen++
	}
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, cpuTypePrefix):
			assign(&id.Type, line[len(cpuTypePrefix):])
		case strings.HasPrefix(line, cpuSubtypePrefix):
			assign(&id.Subtype, line[len(cpuSubtypePrefix):])
		case strings.HasPrefix(line, cpuFamilyPrefix):
			assign(&id.Family, line[len(cpuFamilyPrefix):])
		}
	}
	return id, seen == 3
}
