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

package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
)

func TestTempDirNameReturnsFreshPath(t *testing.T) {
	root := t.TempDir()
	name, err := tempDirName(root, time.Now)
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(name))
	_, err = os.Stat(name)
	require.True(t, os.IsNotExist(err))
}

func TestTempDirNameSkipsCollisions(t *testing.T) {
	root := t.TempDir()

	// A frozen clock makes every candidate identical; pre-creating that
	// one candidate forces all five attempts to collide.
	frozen := time.Unix(0, 42)
	taken := filepath.Join(root, fmt.Sprintf("%s%d", tempDirPrefix, frozen.UnixNano()))
	require.NoError(t, os.Mkdir(taken, 0o755))

	_, err := tempDirName(root, func() time.Time { return frozen })
	require.ErrorIs(t, err, ErrNoFreshName)
}

func TestTempDirNameAdvancingClockRecovers(t *testing.T) {
	root := t.TempDir()
	base := time.Unix(0, 100)
	taken := filepath.Join(root, fmt.Sprintf("%s%d", tempDirPrefix, base.UnixNano()))
	require.NoError(t, os.Mkdir(taken, 0o755))

	calls := 0
	name, err := tempDirName(root, func() time.Time {
		calls++
		return base.Add(time.Duration(calls-1) * time.Nanosecond)
	})
	require.NoError(t, err)
	require.NotEqual(t, taken, name)
}

func TestTempDirNameEmptyRoot(t *testing.T) {
	_, err := tempDirName("", time.Now)
	require.ErrorIs(t, err, ErrNoTempRoot)
}

func TestFindLaunchFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Launch_bench.trace"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "info.plist"), []byte("x"), 0o644))

	got, err := FindLaunchFile(dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "Launch_bench.trace"), got)
}

func TestFindLaunchFileNoMatch(t *testing.T) {
	dir := t.TempDir()
	_, err := FindLaunchFile(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "found 0")
}

func TestFindLaunchFileAmbiguous(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Launch_a.trace"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "Launch_b.trace"), 0o755))

	_, err := FindLaunchFile(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "found 2")
}

func TestFindLaunchFileMissingDir(t *testing.T) {
	_, err := FindLaunchFile(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestCopyDir(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested", "deeper"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "top.txt"), []byte("top"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "deeper", "leaf.txt"), []byte("leaf"), 0o644))

	dst := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, CopyDir(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "top.txt"))
	require.NoError(t, err)
	require.Equal(t, "top", string(data))

	data, err = os.ReadFile(filepath.Join(dst, "nested", "deeper", "leaf.txt"))
	require.NoError(t, err)
	require.Equal(t, "leaf", string(data))

	info, err := os.Stat(filepath.Join(dst, "top.txt"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCopyDirDestinationExists(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	err := CopyDir(src, dst)
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")
}

func TestRemoveDirMissingPathIsNoop(t *testing.T) {
	require.NoError(t, RemoveDir(filepath.Join(t.TempDir(), "does-not-exist")))
}

func TestCleanupRemoves(t *testing.T) {
	dir := t.TempDir()
	victim := filepath.Join(dir, "victim")
	require.NoError(t, os.MkdirAll(filepath.Join(victim, "sub"), 0o755))

	Cleanup(log.NewNopLogger(), victim)

	_, err := os.Stat(victim)
	require.True(t, os.IsNotExist(err))
}
