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

package kpep

import (
	"context"
	"sync"

	"github.com/go-kit/log"

	"github.com/benchkit/xctrace-profiler/pkg/cmdutil"
)

// Cache memoizes catalog discovery for the process lifetime. The CPU
// identity cannot change at runtime, and re-running sysctl and plutil per
// session would dwarf the cost of everything else the catalog is used for.
// Construct one per process and hand it to every session.
type Cache struct {
	logger log.Logger
	runner cmdutil.Runner
	dir    string

	once    sync.Once
	catalog *Catalog
	err     error
}

func NewCache(logger log.Logger, runner cmdutil.Runner) *Cache {
	return &Cache{logger: logger, runner: runner, dir: DefaultDatabaseDir}
}

// NewStaticCache returns a cache pre-populated with a fixed catalog.
func NewStaticCache(catalog *Catalog) *Cache {
	c := &Cache{catalog: catalog}
	c.once.Do(func() {})
	return c
}

// Get loads the catalog on first use and returns the memoized result after.
func (c *Cache) Get(ctx context.Context) (*Catalog, error) {
	c.once.Do(func() {
		c.catalog, c.err = LoadFromDatabase(ctx, c.logger, c.runner, c.dir)
	})
	return c.catalog, c.err
}
