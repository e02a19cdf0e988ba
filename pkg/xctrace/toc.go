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

package xctrace

import (
	"encoding/xml"
	"fmt"
	"io"
)

type tocDocument struct {
	XMLName xml.Name `xml:"trace-toc"`
	Runs    []tocRun `xml:"run"`
}

type tocRun struct {
	Number string     `xml:"number,attr"`
	Tables []tocTable `xml:"data>table"`
}

type tocTable struct {
	Schema string `xml:"schema,attr"`
}

// ParseTOC reads an exported table of contents and returns the table
// schemas the run contains, in document order, deduplicated.
func ParseTOC(r io.Reader) ([]string, error) {
	var doc tocDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("xctrace: malformed table of contents: %w", err)
	}
	seen := make(map[string]struct{})
	var schemas []string
	for _, run := range doc.Runs {
		for _, table := range run.Tables {
			if table.Schema == "" {
				continue
			}
			if _, ok := seen[table.Schema]; ok {
				continue
			}
			seen[table.Schema] = struct{}{}
			schemas = append(schemas, table.Schema)
		}
	}
	return schemas, nil
}

// SelectTable picks the profiling table to export from the schemas a run
// offers, in ProfilingTables preference order.
func SelectTable(schemas []string) (TableType, bool) {
	present := make(map[string]struct{}, len(schemas))
	for _, schema := range schemas {
		present[schema] = struct{}{}
	}
	for _, table := range ProfilingTables() {
		if _, ok := present[string(table)]; ok {
			return table, true
		}
	}
	return "", false
}
