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

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	okrun "github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/benchkit/xctrace-profiler/pkg/buildinfo"
	"github.com/benchkit/xctrace-profiler/pkg/cmdutil"
	"github.com/benchkit/xctrace-profiler/pkg/config"
	"github.com/benchkit/xctrace-profiler/pkg/kpep"
	"github.com/benchkit/xctrace-profiler/pkg/logger"
	"github.com/benchkit/xctrace-profiler/pkg/profiler"
)

var (
	version string
	commit  string
	date    string
	goArch  string
)

const defaultForks = 1

type flags struct {
	LogLevel    string `kong:"enum='error,warn,info,debug',help='Log level.',default='info'"`
	HTTPAddress string `kong:"help='Address to bind HTTP server to.',default='127.0.0.1:7071'"`
	ConfigPath  string `default:"" help:"Path to config file."`
	Version     bool   `kong:"help='Show application version and exit.'"`

	// Profiler configuration:
	ProfilerOptions string `kong:"help='Semicolon-separated profiler options, e.g. counters=INST_ALL;samplingRateMs=5.'"`
	DeveloperDir    string `kong:"help='Xcode developer directory to look up instrumentbuilder in. Leave this empty to use the defaults.'"`

	// Benchmark run configuration:
	Forks     int    `kong:"help='Number of benchmark forks to record.',default='${default_forks}'"`
	Parallel  int    `kong:"help='Maximum number of forks recorded at once.',default='1'"`
	Label     string `kong:"help='Benchmark label used in result artifacts.',default='benchmark'"`
	ResultDir string `kong:"help='Directory to place result artifacts in.',default='.'"`

	Command []string `kong:"arg,optional,passthrough,help='Benchmark command to record.'"`
}

func main() {
	flags := flags{}
	kong.Parse(&flags, kong.Vars{
		"default_forks": strconv.Itoa(defaultForks),
	})

	logger := logger.NewLogger(flags.LogLevel, logger.LogFormatLogfmt, "xctrace-profiler")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewBuildInfoCollector(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := run(logger, reg, flags); err != nil {
		level.Error(logger).Log("err", err)
		os.Exit(1)
	}
}

func run(logger log.Logger, reg *prometheus.Registry, flags flags) error {
	buildInfo, err := buildinfo.FetchBuildInfo()
	if err != nil {
		return fmt.Errorf("failed to fetch build info: %w", err)
	}
	if commit == "" {
		commit = buildInfo.VcsRevision
	}
	if date == "" {
		date = buildInfo.VcsTime
	}
	if goArch == "" {
		goArch = buildInfo.GoArch
	}

	if flags.Version {
		fmt.Printf("xctrace-profiler %s (commit %s, built %s, %s)\n", version, commit, date, goArch)
		return nil
	}

	cfg := &config.Config{}
	if flags.ConfigPath != "" {
		cfgFile, err := config.LoadFile(flags.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		cfg = cfgFile
	}

	// Flags win over file-based defaults.
	optionLine := flags.ProfilerOptions
	if optionLine == "" {
		optionLine = cfg.ProfilerOptions
	}
	label := flags.Label
	if label == "benchmark" && cfg.Label != "" {
		label = cfg.Label
	}
	resultDir := flags.ResultDir
	if resultDir == "." && cfg.ResultDir != "" {
		resultDir = cfg.ResultDir
	}
	developerDir := flags.DeveloperDir
	if developerDir == "" {
		developerDir = cfg.DeveloperDir
	}

	if len(flags.Command) == 0 {
		return fmt.Errorf("no benchmark command given")
	}
	if flags.Forks < 1 || flags.Parallel < 1 {
		return fmt.Errorf("forks and parallel must be at least 1")
	}

	level.Debug(logger).Log("msg", "xctrace-profiler initialized",
		"version", version,
		"commit", commit,
		"date", date,
		"config", fmt.Sprintf("%+v", flags),
		"arch", goArch,
	)

	runner := cmdutil.ExecRunner{}
	catalog := kpep.NewCache(logger, runner)

	var options []profiler.Option
	if developerDir != "" {
		options = append(options, profiler.WithDeveloperDir(developerDir))
	}
	p, err := profiler.New(logger, reg, runner, catalog, optionLine, options...)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := p.CheckSupported(ctx); err != nil {
		return err
	}

	logger.Log("msg", "starting...", "forks", flags.Forks, "command", flags.Command[0])

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	var g okrun.Group

	// Run group for benchmark forks.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			level.Debug(logger).Log("msg", "starting: fork runner")
			defer level.Debug(logger).Log("msg", "stopped: fork runner")

			return profileForks(ctx, logger, p, flags.Command, label, resultDir, flags.Forks, flags.Parallel)
		}, func(error) {
			cancel()
		})
	}

	// Run group for http server.
	{
		srv := &http.Server{
			Addr:         flags.HTTPAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: time.Minute,
		}

		g.Add(func() error {
			level.Debug(logger).Log("msg", "starting: http server")
			defer level.Debug(logger).Log("msg", "stopped: http server")

			return srv.ListenAndServe()
		}, func(error) {
			srv.Close()
		})
	}

	g.Add(okrun.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err = g.Run()
	if err != nil {
		var serr okrun.SignalError
		if errors.As(err, &serr) {
			level.Info(logger).Log("msg", "terminating...", "signal", serr.Signal)
			return nil
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
	return nil
}

// profileForks records every fork and prints each secondary result. A fork
// failure does not stop the remaining forks; the whole run fails only when
// no fork produced a result.
func profileForks(ctx context.Context, logger log.Logger, p *profiler.Profiler, command []string, label, resultDir string, forks, parallel int) error {
	var (
		mu      sync.Mutex
		results = make([]*profiler.TextResult, forks)
		failed  int
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)
	for i := 0; i < forks; i++ {
		i := i
		forkLabel := label
		if forks > 1 {
			forkLabel = fmt.Sprintf("%s-%d", label, i)
		}
		eg.Go(func() error {
			result, err := p.Profile(ctx, profiler.Fork{
				Argv:      command,
				Label:     forkLabel,
				ResultDir: resultDir,
			})
			if err != nil {
				level.Error(logger).Log("msg", "fork failed", "fork", forkLabel, "err", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			mu.Lock()
			results[i] = result
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for i, result := range results {
		if result == nil {
			continue
		}
		fmt.Printf("Secondary result %q, fork %d:\n\n%s\n", result.Label(), i, result.ExtendedInfo())
	}

	if failed == forks {
		return fmt.Errorf("all %d forks failed", forks)
	}
	if failed > 0 {
		level.Warn(logger).Log("msg", "some forks failed", "failed", failed, "forks", forks)
	}
	return nil
}
