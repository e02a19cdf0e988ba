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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	sessionsStarted prometheus.Counter
	sessionFailures *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		sessionsStarted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "xctrace_profiler_sessions_total",
			Help: "Number of profiling sessions started.",
		}),
		sessionFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "xctrace_profiler_session_failures_total",
			Help: "Number of failed profiling sessions by error kind.",
		}, []string{"kind"}),
		stageDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "xctrace_profiler_stage_duration_seconds",
			Help:    "Duration of session stages.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
	}
}
