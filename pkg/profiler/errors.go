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
	"errors"
	"fmt"
)

// ErrorKind classifies session failures. Nothing in this package retries;
// every failure surfaces to the harness tagged with one of these kinds so
// it can report per-fork without aborting other forks.
type ErrorKind int

const (
	// KindConfig is a malformed or contradictory option string. Raised
	// before any external process is spawned.
	KindConfig ErrorKind = iota
	// KindToolUnavailable means the trace tool is missing or broken.
	KindToolUnavailable
	// KindRecording covers recording and export failures: diagnostic
	// output from the tool, or a missing/ambiguous run artifact.
	KindRecording
	// KindUnsupportedCounters names requested events the host lacks.
	// Raised before any external process is spawned.
	KindUnsupportedCounters
	// KindParse means the exported table could not be understood. The
	// raw export travels with the error for diagnosis.
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindToolUnavailable:
		return "tool-unavailable"
	case KindRecording:
		return "recording"
	case KindUnsupportedCounters:
		return "unsupported-counters"
	case KindParse:
		return "parse"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a session-scoped profiler failure.
type Error struct {
	Kind ErrorKind
	Msg  string
	// Raw carries the offending exported content for parse failures.
	Raw string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("profiler: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("profiler: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a profiler error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var perr *Error
	return errors.As(err, &perr) && perr.Kind == kind
}

func newError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func configErrorf(format string, args ...interface{}) *Error {
	return newError(KindConfig, nil, format, args...)
}
