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

// Package workspace owns the per-session temporary directories a trace
// recording writes into: naming them, locating the single launch artifact
// the trace tool leaves behind, and copying or removing whole trees.
package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	tempDirPrefix = "benchkit-xctrace-results-"

	// launchFilePrefix matches the one artifact a `record --launch`
	// invocation produces inside the run directory.
	launchFilePrefix = "Launch"

	nameAttempts = 5
)

var (
	ErrNoTempRoot  = errors.New("workspace: system temporary directory is unknown")
	ErrNoFreshName = errors.New("workspace: could not find an unused temporary directory name")
)

// TempDirName returns a path under the system temporary root that did not
// exist at call time. The directory itself is not created; the trace tool
// insists on creating its output directory. The name embeds a nanosecond
// timestamp, so concurrent sessions get distinct names without locking.
func TempDirName() (string, error) {
	return tempDirName(os.TempDir(), time.Now)
}

func tempDirName(root string, now func() time.Time) (string, error) {
	if root == "" {
		return "", ErrNoTempRoot
	}
	for i := 0; i < nameAttempts; i++ {
		candidate := filepath.Join(root, fmt.Sprintf("%s%d", tempDirPrefix, now().UnixNano()))
		if _, err := os.Stat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrNoFreshName, nameAttempts)
}

// FindLaunchFile locates the launch artifact inside a run directory. The
// trace tool's contract is exactly one such entry; zero or several means the
// recording went wrong and the run cannot be attributed to this session.
func FindLaunchFile(runDir string) (string, error) {
	entries, err := os.ReadDir(runDir)
	if err != nil {
		return "", fmt.Errorf("workspace: reading run directory: %w", err)
	}
	var matches []string
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), launchFilePrefix) {
			matches = append(matches, filepath.Join(runDir, entry.Name()))
		}
	}
	if len(matches) != 1 {
		return "", fmt.Errorf("workspace: expected exactly one %s* entry in %s, found %d: %v",
			launchFilePrefix, runDir, len(matches), matches)
	}
	return matches[0], nil
}

// CopyDir recursively copies src to dst, preserving file modes. dst must not
// exist beforehand; a preserved run directory must never merge into leftover
// state from an earlier run.
func CopyDir(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("workspace: destination %s already exists", dst)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("workspace: checking destination: %w", err)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// RemoveDir deletes path recursively. A missing path is not an error.
func RemoveDir(path string) error {
	return os.RemoveAll(path)
}

// Cleanup removes path and logs instead of failing. Meant for deferred
// session teardown, where a removal error must not mask the error that
// actually ended the session.
func Cleanup(logger log.Logger, path string) {
	if path == "" {
		return
	}
	if err := RemoveDir(path); err != nil {
		level.Warn(logger).Log("msg", "failed to remove workspace", "path", path, "err", err)
	}
}
