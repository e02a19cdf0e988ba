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

// Package xctrace drives the external trace tool: building its record and
// export command lines and decoding the XML documents its export mode
// produces. Recording and symbolication themselves stay inside the tool;
// this package only has to invoke it correctly and read what comes back.
package xctrace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benchkit/xctrace-profiler/pkg/cmdutil"
)

// Tool is the trace tool binary, expected on PATH.
const Tool = "xctrace"

// TableType names an exportable table schema.
type TableType string

const (
	TableCountersProfile     TableType = "counters-profile"
	TableCountersTimeProfile TableType = "counters-time-profile"
	TableCPUProfile          TableType = "cpu-profile"
	TableTimeProfile         TableType = "time-profile"
)

// ProfilingTables lists the table schemas carrying per-sample backtraces,
// in the order we prefer to export them from a run.
func ProfilingTables() []TableType {
	return []TableType{
		TableCountersProfile,
		TableCountersTimeProfile,
		TableCPUProfile,
		TableTimeProfile,
	}
}

var ErrInstrumentXorTemplate = errors.New("xctrace: exactly one of instrument or template must be set")

// RecordCommand builds the argv that records launchArgv under the trace
// tool, writing the run into runFile. The benchmark process is exec'd as
// the trailing command of this argv; the recorder owns its lifetime.
// Exactly one of instrument/template must be non-empty. The caller is
// expected to have enforced that already: a violation here is a programming
// error, not a user configuration error.
func RecordCommand(runFile, instrument, template string, launchArgv []string) ([]string, error) {
	if (instrument == "") == (template == "") {
		return nil, ErrInstrumentXorTemplate
	}
	args := make([]string, 0, 10+len(launchArgv))
	args = append(args, Tool, "record")
	if instrument != "" {
		args = append(args, "--instrument", instrument)
	} else {
		args = append(args, "--template", template)
	}
	args = append(args, "--output", runFile, "--target-stdout", "-", "--launch", "--")
	args = append(args, launchArgv...)
	return args, nil
}

// ExportTable exports one table schema from a recorded run into outputFile.
// Any diagnostic output from the tool is a fatal export failure.
func ExportTable(ctx context.Context, r cmdutil.Runner, runFile, outputFile string, table TableType) error {
	out := cmdutil.TryWith(ctx, r, Tool, "export",
		"--input", runFile,
		"--output", outputFile,
		"--xpath", fmt.Sprintf(`/trace-toc/run/data/table[@schema="%s"]`, table),
	)
	if len(out) > 0 {
		return fmt.Errorf("xctrace: exporting table %s from %s: %s", table, runFile, strings.Join(out, "\n"))
	}
	return nil
}

// ExportTOC exports the run's table of contents into outputFile.
func ExportTOC(ctx context.Context, r cmdutil.Runner, runFile, outputFile string) error {
	out := cmdutil.TryWith(ctx, r, Tool, "export",
		"--input", runFile,
		"--output", outputFile,
		"--toc",
	)
	if len(out) > 0 {
		return fmt.Errorf("xctrace: exporting table of contents from %s: %s", runFile, strings.Join(out, "\n"))
	}
	return nil
}

// CheckWorks probes that the trace tool is installed and responsive.
func CheckWorks(ctx context.Context, r cmdutil.Runner) error {
	out := cmdutil.TryWith(ctx, r, Tool, "version")
	if len(out) > 0 {
		return fmt.Errorf("xctrace: tool probe failed: %s", strings.Join(out, "\n"))
	}
	return nil
}
