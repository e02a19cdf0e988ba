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

// Package profiler wraps one benchmark fork in a trace recording and turns
// the exported profiling table into the harness's "asm" secondary result.
// It validates configuration before anything is spawned, sequences the
// record/export/parse protocol, and guarantees the temporary workspace is
// removed exactly once however the session ends.
package profiler

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/benchkit/xctrace-profiler/pkg/cmdutil"
	"github.com/benchkit/xctrace-profiler/pkg/instruments"
	"github.com/benchkit/xctrace-profiler/pkg/kpep"
	"github.com/benchkit/xctrace-profiler/pkg/workspace"
	"github.com/benchkit/xctrace-profiler/pkg/xctrace"
)

// CatalogSource yields the host's counter catalog. *kpep.Cache is the
// production implementation.
type CatalogSource interface {
	Get(ctx context.Context) (*kpep.Catalog, error)
}

// Fork describes one benchmark process launch. The recorder execs Argv as
// the trailing command of its record invocation; the profiler never spawns
// the benchmark separately and never alters its lifecycle.
type Fork struct {
	Argv []string
	// Label names the fork in artifacts the session leaves behind.
	Label string
	// ResultDir receives harness-assigned artifacts such as a preserved
	// raw trace with no explicit destination.
	ResultDir string
}

// State tracks a session through the capture protocol.
type State int

const (
	StateUnconfigured State = iota
	StateValidated
	StateRecording
	StateExported
	StateParsed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateValidated:
		return "validated"
	case StateRecording:
		return "recording"
	case StateExported:
		return "exported"
	case StateParsed:
		return "parsed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Profiler validates one option string and runs sessions against it.
type Profiler struct {
	logger       log.Logger
	runner       cmdutil.Runner
	catalog      CatalogSource
	opts         Options
	metrics      *metrics
	developerDir string
}

type Option func(*Profiler)

// WithDeveloperDir overrides the toolchain directory instrumentbuilder is
// looked up in.
func WithDeveloperDir(dir string) Option {
	return func(p *Profiler) { p.developerDir = dir }
}

// New parses and validates the option string. A configuration error here
// is terminal: no process has been spawned yet and none will be.
func New(logger log.Logger, reg prometheus.Registerer, runner cmdutil.Runner, catalog CatalogSource, optionLine string, options ...Option) (*Profiler, error) {
	opts, err := ParseOptions(optionLine)
	if err != nil {
		return nil, err
	}
	p := &Profiler{
		logger:       logger,
		runner:       runner,
		catalog:      catalog,
		opts:         opts,
		metrics:      newMetrics(reg),
		developerDir: instruments.DefaultDeveloperDir,
	}
	for _, option := range options {
		option(p)
	}
	return p, nil
}

// Options returns the validated configuration.
func (p *Profiler) Options() Options { return p.opts }

// CheckSupported probes the trace tool. Meant to run once per harness
// invocation, before any fork is launched.
func (p *Profiler) CheckSupported(ctx context.Context) error {
	if err := xctrace.CheckWorks(ctx, p.runner); err != nil {
		return newError(KindToolUnavailable, err, "trace tool not usable")
	}
	return nil
}

// Profile runs a whole session for one fork.
func (p *Profiler) Profile(ctx context.Context, fork Fork) (*TextResult, error) {
	return p.NewSession(fork).Run(ctx)
}

// Session is the per-fork aggregate: configuration, instrument, run
// directory and the final result or failure. Sessions never share a
// workspace; each gets an independently generated name.
type Session struct {
	profiler *Profiler
	fork     Fork
	state    State

	workspace      string
	instrumentPath string
	runFile        string
	result         *TextResult
}

// NewSession prepares a session in the validated state. The instrument
// definition is fixed from here on; nothing mutates it once recording
// starts.
func (p *Profiler) NewSession(fork Fork) *Session {
	return &Session{profiler: p, fork: fork, state: StateValidated}
}

func (s *Session) State() State { return s.state }

// Result returns the parsed secondary result, if the session reached it.
func (s *Session) Result() *TextResult { return s.result }

// Run drives the session to a terminal state. The temporary workspace is
// deleted on every exit path, exactly once.
func (s *Session) Run(ctx context.Context) (result *TextResult, err error) {
	p := s.profiler
	p.metrics.sessionsStarted.Inc()

	defer func() {
		if err != nil {
			s.state = StateFailed
			p.metrics.sessionFailures.WithLabelValues(failureKind(err)).Inc()
		}
	}()

	ws, err := workspace.TempDirName()
	if err != nil {
		return nil, newError(KindRecording, err, "allocating session workspace")
	}
	s.workspace = ws
	defer workspace.Cleanup(p.logger, ws)

	instrument, template := p.opts.Instrument, p.opts.Template
	if len(p.opts.Counters) > 0 {
		instrument, err = s.buildCustomInstrument(ctx)
		if err != nil {
			return nil, err
		}
		defer workspace.Cleanup(p.logger, s.instrumentPath)
	}

	s.state = StateRecording
	argv, err := xctrace.RecordCommand(ws, instrument, template, s.fork.Argv)
	if err != nil {
		// Contract violation between façade and recorder, not a user
		// configuration problem.
		return nil, fmt.Errorf("internal: %w", err)
	}

	level.Debug(p.logger).Log("msg", "recording benchmark fork", "fork", s.fork.Label, "workspace", ws)
	start := time.Now()
	if out, runErr := p.runner.Run(ctx, argv...); runErr != nil {
		return nil, newError(KindRecording, runErr, "recording failed: %s", lastLine(out))
	}
	p.metrics.stageDuration.WithLabelValues("record").Observe(time.Since(start).Seconds())

	if _, statErr := os.Stat(ws); statErr != nil {
		return nil, newError(KindRecording, statErr, "run directory missing after recording")
	}
	runFile, err := workspace.FindLaunchFile(ws)
	if err != nil {
		return nil, newError(KindRecording, err, "locating run artifact")
	}
	s.runFile = runFile

	table, tablePath, err := s.exportProfilingTable(ctx)
	if err != nil {
		return nil, err
	}

	if p.opts.SavePerfBin {
		if err := s.preserveRawTrace(); err != nil {
			return nil, err
		}
	}
	s.state = StateExported

	samples, err := s.parseTable(tablePath)
	if err != nil {
		return nil, err
	}

	s.result = NewTextResult(ResultLabel, renderAssembly(samples, table))
	s.state = StateParsed
	return s.result, nil
}

func (s *Session) buildCustomInstrument(ctx context.Context) (string, error) {
	p := s.profiler

	catalog, err := p.catalog.Get(ctx)
	if err != nil {
		return "", newError(KindUnsupportedCounters, err, "loading counter catalog")
	}

	s.instrumentPath = s.workspace + ".instrdst"
	builder := instruments.NewBuilder(p.logger, p.runner, catalog).WithDeveloperDir(p.developerDir)
	if err := builder.Build(ctx, p.opts.SamplingRateMs, p.opts.Counters, s.instrumentPath); err != nil {
		var unsupported *instruments.UnsupportedCountersError
		switch {
		case errors.As(err, &unsupported):
			return "", newError(KindUnsupportedCounters, err, "requested events not supported on this host")
		case errors.Is(err, instruments.ErrNoCounters), errors.Is(err, instruments.ErrInvalidSamplingRate):
			return "", newError(KindConfig, err, "invalid counter configuration")
		default:
			return "", newError(KindRecording, err, "building custom instrument")
		}
	}
	return s.instrumentPath, nil
}

func (s *Session) exportProfilingTable(ctx context.Context) (xctrace.TableType, string, error) {
	p := s.profiler

	tocPath := filepath.Join(s.workspace, "table-of-contents.xml")
	if err := xctrace.ExportTOC(ctx, p.runner, s.runFile, tocPath); err != nil {
		return "", "", newError(KindRecording, err, "exporting table of contents")
	}
	tocFile, err := os.Open(tocPath)
	if err != nil {
		return "", "", newError(KindRecording, err, "reading table of contents")
	}
	schemas, err := xctrace.ParseTOC(tocFile)
	tocFile.Close()
	if err != nil {
		return "", "", newError(KindParse, err, "parsing table of contents")
	}

	table, ok := xctrace.SelectTable(schemas)
	if !ok {
		return "", "", newError(KindRecording, nil, "run contains no profiling table, only %v", schemas)
	}

	tablePath := filepath.Join(s.workspace, "profiling-table.xml")
	start := time.Now()
	if err := xctrace.ExportTable(ctx, p.runner, s.runFile, tablePath, table); err != nil {
		return "", "", newError(KindRecording, err, "exporting %s table", table)
	}
	p.metrics.stageDuration.WithLabelValues("export").Observe(time.Since(start).Seconds())
	return table, tablePath, nil
}

// preserveRawTrace copies the run directory to its destination. It runs
// before workspace deletion by construction: the deferred cleanup in Run
// fires last.
func (s *Session) preserveRawTrace() error {
	p := s.profiler

	dest := p.opts.SavePerfBinPath
	if dest == "" {
		dir := s.fork.ResultDir
		if dir == "" {
			dir = "."
		}
		label := s.fork.Label
		if label == "" {
			label = "benchmark"
		}
		dest = filepath.Join(dir, label+"-xctrace.trace")
	}

	if err := workspace.CopyDir(s.workspace, dest); err != nil {
		return newError(KindRecording, err, "preserving raw trace at %s", dest)
	}
	level.Info(p.logger).Log("msg", "preserved raw trace", "path", dest, "size", humanize.Bytes(dirSize(dest)))
	return nil
}

func (s *Session) parseTable(tablePath string) ([]xctrace.Sample, error) {
	p := s.profiler

	start := time.Now()
	tableFile, err := os.Open(tablePath)
	if err != nil {
		return nil, newError(KindParse, err, "reading exported table")
	}
	samples, err := xctrace.ParseTable(tableFile)
	tableFile.Close()
	if err != nil {
		raw, _ := os.ReadFile(tablePath)
		return nil, &Error{
			Kind: KindParse,
			Msg:  "parsing exported table",
			Raw:  string(raw),
			Err:  err,
		}
	}
	p.metrics.stageDuration.WithLabelValues("parse").Observe(time.Since(start).Seconds())
	return samples, nil
}

func failureKind(err error) string {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind.String()
	}
	return "internal"
}

func lastLine(lines []string) string {
	if len(lines) == 0 {
		return "<no output>"
	}
	return lines[len(lines)-1]
}

func dirSize(path string) uint64 {
	var size uint64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += uint64(info.Size())
		}
		return nil
	})
	return size
}
