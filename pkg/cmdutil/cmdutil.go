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

// Package cmdutil runs external host tools and captures their combined
// output. It is the only place in this module that spawns processes.
package cmdutil

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/armon/circbuf"
)

// maxCapturedOutput caps the combined stdout+stderr kept per invocation.
// Trace tools can be chatty; only the tail is useful for diagnostics.
const maxCapturedOutput = 1 << 20

var ErrEmptyArgv = errors.New("cmdutil: empty argument vector")

// Runner runs one external command to completion and returns its combined
// stdout+stderr as lines in process order. Implementations must not retry.
type Runner interface {
	Run(ctx context.Context, argv ...string) ([]string, error)
}

// ExecRunner is the os/exec backed Runner. No shell is involved; argv[0] is
// resolved through PATH by the exec package.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, argv ...string) ([]string, error) {
	if len(argv) == 0 {
		return nil, ErrEmptyArgv
	}

	buf, err := circbuf.NewBuffer(maxCapturedOutput)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = buf
	cmd.Stderr = buf

	if err := cmd.Run(); err != nil {
		return splitLines(buf.String()), fmt.Errorf("cmdutil: running %s: %w", argv[0], err)
	}
	return splitLines(buf.String()), nil
}

// TryWith runs argv and reduces the outcome to diagnostic lines: an empty
// result means the command started and exited zero, whatever it printed.
// On start failure or a non-zero exit the captured output is returned with
// the error appended, so the caller sees one uniform failure signal.
func TryWith(ctx context.Context, r Runner, argv ...string) []string {
	out, err := r.Run(ctx, argv...)
	if err != nil {
		return append(out, err.Error())
	}
	return nil
}

// RunWith runs argv and returns whatever it printed, regardless of the exit
// status. Used for tools whose output is the payload rather than a
// diagnostic, such as sysctl and plutil.
func RunWith(ctx context.Context, r Runner, argv ...string) []string {
	out, _ := r.Run(ctx, argv...)
	return out
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
