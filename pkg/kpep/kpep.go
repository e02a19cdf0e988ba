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

// Package kpep reads the vendor's kernel performance-event database and
// answers which hardware performance-monitoring events the host CPU
// supports. Event names are opaque tokens; only membership matters here.
package kpep

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"howett.net/plist"

	"github.com/benchkit/xctrace-profiler/pkg/cmdutil"
	"github.com/benchkit/xctrace-profiler/pkg/cpuid"
)

// DefaultDatabaseDir is where macOS installs per-CPU event databases.
const DefaultDatabaseDir = "/usr/share/kpep"

// eventsKeyPath selects the event dictionary inside a database file.
const eventsKeyPath = "system.cpu.events"

// DatabasePath returns the database file for a CPU identity, e.g.
// /usr/share/kpep/cpu_100000c_2_8765edea.plist.
func DatabasePath(dir string, id cpuid.Identity) string {
	return filepath.Join(dir, fmt.Sprintf("cpu_%s.plist", id))
}

// Catalog is the set of event names the host supports. The zero value is a
// valid, empty catalog meaning "no counters on this host".
type Catalog struct {
	events map[string]struct{}
}

// NewCatalog builds a catalog from explicit event names.
func NewCatalog(names ...string) *Catalog {
	events := make(map[string]struct{}, len(names))
	for _, name := range names {
		events[name] = struct{}{}
	}
	return &Catalog{events: events}
}

// Events returns the supported event names, sorted.
func (c *Catalog) Events() []string {
	names := make([]string, 0, len(c.events))
	for name := range c.events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) Supports(name string) bool {
	_, ok := c.events[name]
	return ok
}

// Missing returns the requested names absent from the catalog, sorted.
func (c *Catalog) Missing(requested []string) []string {
	var missing []string
	for _, name := range requested {
		if !c.Supports(name) {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func (c *Catalog) Empty() bool {
	return len(c.events) == 0
}

// Load discovers the host's supported events. An unidentifiable CPU or a
// missing database file yields an empty catalog, never an error; a database
// that exists but cannot be understood is an error, since the host then
// advertises counters we cannot enumerate.
func Load(ctx context.Context, logger log.Logger, runner cmdutil.Runner) (*Catalog, error) {
	return LoadFromDatabase(ctx, logger, runner, DefaultDatabaseDir)
}

// LoadFromDatabase is Load with an explicit database directory.
func LoadFromDatabase(ctx context.Context, logger log.Logger, runner cmdutil.Runner, dir string) (*Catalog, error) {
	id, ok := cpuid.Detect(ctx, runner)
	if !ok {
		level.Debug(logger).Log("msg", "cpu identity unavailable, assuming no pmc support")
		return NewCatalog(), nil
	}

	path := DatabasePath(dir, id)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		level.Debug(logger).Log("msg", "no event database for this cpu", "path", path)
		return NewCatalog(), nil
	}

	// plutil re-emits the nested event dictionary as a standalone XML
	// property list on stdout.
	lines := cmdutil.RunWith(ctx, runner, "plutil", "-extract", eventsKeyPath, "xml1", "-o", "-", path)
	catalog, err := parseEvents(strings.Join(lines, "\n"))
	if err != nil {
		return nil, fmt.Errorf("kpep: parsing event database %s: %w", path, err)
	}
	level.Debug(logger).Log("msg", "loaded pmc event database", "path", path, "events", len(catalog.events))
	return catalog, nil
}

func parseEvents(doc string) (*Catalog, error) {
	var dict map[string]interface{}
	if _, err := plist.Unmarshal([]byte(doc), &dict); err != nil {
		return nil, err
	}
	events := make(map[string]struct{}, len(dict))
	for name := range dict {
		events[name] = struct{}{}
	}
	return &Catalog{events: events}, nil
}
