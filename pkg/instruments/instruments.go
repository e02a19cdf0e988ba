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

// Package instruments builds a custom trace instrument that samples a
// user-selected set of performance-monitoring counters. The instrument
// definition is rendered from an embedded package template and compiled
// with the developer toolchain's instrumentbuilder.
package instruments

import (
	// Enable go:embed.
	_ "embed"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/benchkit/xctrace-profiler/pkg/cmdutil"
	"github.com/benchkit/xctrace-profiler/pkg/kpep"
)

// DefaultDeveloperDir is where instrumentbuilder lives on a stock Xcode
// install.
const DefaultDeveloperDir = "/Applications/Xcode.app/Contents/Developer"

// instrumentCategory is passed to instrumentbuilder's -l flag.
const instrumentCategory = "CPU Counters"

//go:embed pmc-sampler.instrpkg.tmpl
var packageTemplate string

var pkgTemplate = template.Must(template.New("pmc-sampler.instrpkg").Parse(packageTemplate))

var (
	ErrNoCounters          = errors.New("instruments: counter list is empty")
	ErrInvalidSamplingRate = errors.New("instruments: sampling rate must be positive")
)

// UnsupportedCountersError names the requested events the host CPU does not
// support. It is raised before any external tool runs.
type UnsupportedCountersError struct {
	Counters []string
}

func (e *UnsupportedCountersError) Error() string {
	return fmt.Sprintf("instruments: unsupported pmc events: %s", strings.Join(e.Counters, ", "))
}

// Builder renders and compiles custom instrument packages.
type Builder struct {
	logger       log.Logger
	runner       cmdutil.Runner
	catalog      *kpep.Catalog
	developerDir string
}

func NewBuilder(logger log.Logger, runner cmdutil.Runner, catalog *kpep.Catalog) *Builder {
	return &Builder{
		logger:       logger,
		runner:       runner,
		catalog:      catalog,
		developerDir: DefaultDeveloperDir,
	}
}

// WithDeveloperDir overrides the Xcode developer directory.
func (b *Builder) WithDeveloperDir(dir string) *Builder {
	b.developerDir = dir
	return b
}

// Build produces an instrument package at outputPath sampling the given
// counters every samplingRateMillis milliseconds. Counter names are checked
// against the host catalog first, so an unsupported request never spawns
// the package build tool.
func (b *Builder) Build(ctx context.Context, samplingRateMillis int64, counters []string, outputPath string) error {
	if len(counters) == 0 {
		return ErrNoCounters
	}
	if samplingRateMillis <= 0 {
		return ErrInvalidSamplingRate
	}
	if missing := b.catalog.Missing(counters); len(missing) > 0 {
		return &UnsupportedCountersError{Counters: missing}
	}

	rendered, err := renderPackage(samplingRateMillis, counters)
	if err != nil {
		return fmt.Errorf("instruments: rendering package template: %w", err)
	}

	pkgFile, err := os.CreateTemp("", "pmc-sampler-*.instrpkg")
	if err != nil {
		return fmt.Errorf("instruments: creating package file: %w", err)
	}
	defer os.Remove(pkgFile.Name())

	if _, err := pkgFile.WriteString(rendered); err != nil {
		pkgFile.Close()
		return fmt.Errorf("instruments: writing package file: %w", err)
	}
	if err := pkgFile.Close(); err != nil {
		return fmt.Errorf("instruments: writing package file: %w", err)
	}

	builder := filepath.Join(b.developerDir, "usr", "bin", "instrumentbuilder")
	out, err := b.runner.Run(ctx, builder, "-o", outputPath, "-i", pkgFile.Name(), "-l", instrumentCategory)
	if err != nil {
		return fmt.Errorf("instruments: instrumentbuilder failed: %w: %s", err, strings.Join(out, "\n"))
	}
	level.Debug(b.logger).Log("msg", "built custom instrument", "output", outputPath, "counters", strings.Join(counters, ","))
	return nil
}

type packageData struct {
	SamplingRateMicros int64
	Counters           []string
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
	`"`, "&quot;",
)

func renderPackage(samplingRateMillis int64, counters []string) (string, error) {
	escaped := make([]string, len(counters))
	for i, counter := range counters {
		escaped[i] = xmlEscaper.Replace(counter)
	}
	var sb strings.Builder
	err := pkgTemplate.Execute(&sb, packageData{
		SamplingRateMicros: samplingRateMillis * 1000,
		Counters:           escaped,
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
