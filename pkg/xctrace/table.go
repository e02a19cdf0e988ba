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
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Frame is one backtrace entry of a sample.
type Frame struct {
	Name    string
	Address uint64
	Binary  string
}

// Sample is one structured row of an exported profiling table.
type Sample struct {
	TimeNanos int64
	Weight    int64
	Frames    []Frame
}

// Top returns the innermost frame, the one the sample was taken in.
func (s Sample) Top() (Frame, bool) {
	if len(s.Frames) == 0 {
		return Frame{}, false
	}
	return s.Frames[0], true
}

// Weight-bearing columns, in the order we trust them as the row's hotness.
// Counter tables carry the sampled event delta in pmc-events; time-based
// tables only have weight.
var weightColumns = []string{"pmc-events", "cycle-weight", "weight"}

type rowState struct {
	timeNanos int64
	weights   map[string]int64
	frames    []Frame
}

func (r *rowState) sample() Sample {
	s := Sample{TimeNanos: r.timeNanos, Frames: r.frames}
	for _, column := range weightColumns {
		if v, ok := r.weights[column]; ok {
			s.Weight = v
			break
		}
	}
	return s
}

// ParseTable decodes an exported trace-query-result document into samples.
// The export format interns repeated elements: the first occurrence carries
// an id attribute and later rows reference it with ref, so the parser keeps
// per-id caches for values, frames and whole backtraces.
func ParseTable(r io.Reader) ([]Sample, error) {
	d := xml.NewDecoder(r)

	var (
		samples    []Sample
		sawRoot    bool
		values     = make(map[string]int64)
		frames     = make(map[string]Frame)
		backtraces = make(map[string][]Frame)
		binaries   = make(map[string]string)

		row        *rowState
		backtraceID string
		frame      *Frame
		frameID    string
		column     string
		columnID   string
		chardata   strings.Builder
	)

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xctrace: malformed table export: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "trace-query-result":
				sawRoot = true
			case "schema":
				// Column definitions; nothing row-shaped inside.
				if err := d.Skip(); err != nil {
					return nil, fmt.Errorf("xctrace: malformed table export: %w", err)
				}
			case "row":
				row = &rowState{weights: make(map[string]int64)}
			case "sample-time", "weight", "cycle-weight", "pmc-events":
				if row == nil {
					continue
				}
				if ref := attrValue(t, "ref"); ref != "" {
					v, ok := values[ref]
					if !ok {
						return nil, fmt.Errorf("xctrace: row references unknown value id %q", ref)
					}
					row.setColumn(t.Name.Local, v)
					if err := d.Skip(); err != nil {
						return nil, fmt.Errorf("xctrace: malformed table export: %w", err)
					}
					continue
				}
				column = t.Name.Local
				columnID = attrValue(t, "id")
				chardata.Reset()
			case "backtrace":
				if row == nil {
					continue
				}
				if ref := attrValue(t, "ref"); ref != "" {
					bt, ok := backtraces[ref]
					if !ok {
						return nil, fmt.Errorf("xctrace: row references unknown backtrace id %q", ref)
					}
					row.frames = bt
					if err := d.Skip(); err != nil {
						return nil, fmt.Errorf("xctrace: malformed table export: %w", err)
					}
					continue
				}
				backtraceID = attrValue(t, "id")
				row.frames = nil
			case "frame":
				if row == nil {
					continue
				}
				if ref := attrValue(t, "ref"); ref != "" {
					f, ok := frames[ref]
					if !ok {
						return nil, fmt.Errorf("xctrace: row references unknown frame id %q", ref)
					}
					row.frames = append(row.frames, f)
					if err := d.Skip(); err != nil {
						return nil, fmt.Errorf("xctrace: malformed table export: %w", err)
					}
					continue
				}
				f := Frame{Name: attrValue(t, "name")}
				if addr := attrValue(t, "addr"); addr != "" {
					f.Address, err = parseHexAddress(addr)
					if err != nil {
						return nil, fmt.Errorf("xctrace: frame address %q: %w", addr, err)
					}
				}
				frame = &f
				frameID = attrValue(t, "id")
			case "binary":
				if frame != nil {
					if ref := attrValue(t, "ref"); ref != "" {
						frame.Binary = binaries[ref]
					} else {
						frame.Binary = attrValue(t, "name")
						if id := attrValue(t, "id"); id != "" {
							binaries[id] = frame.Binary
						}
					}
				}
				if err := d.Skip(); err != nil {
					return nil, fmt.Errorf("xctrace: malformed table export: %w", err)
				}
			}

		case xml.CharData:
			if column != "" {
				chardata.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "sample-time", "weight", "cycle-weight", "pmc-events":
				if column != t.Name.Local || row == nil {
					continue
				}
				v, err := parseFirstInt(chardata.String())
				if err != nil {
					return nil, fmt.Errorf("xctrace: %s value %q: %w", column, chardata.String(), err)
				}
				row.setColumn(column, v)
				if columnID != "" {
					values[columnID] = v
				}
				column, columnID = "", ""
			case "frame":
				if frame == nil {
					continue
				}
				if frameID != "" {
					frames[frameID] = *frame
				}
				row.frames = append(row.frames, *frame)
				frame, frameID = nil, ""
			case "backtrace":
				if backtraceID != "" && row != nil {
					backtraces[backtraceID] = append([]Frame(nil), row.frames...)
				}
				backtraceID = ""
			case "row":
				if row != nil {
					samples = append(samples, row.sample())
					row = nil
				}
			}
		}
	}

	if !sawRoot {
		return nil, errors.New("xctrace: not a trace-query-result document")
	}
	return samples, nil
}

func (r *rowState) setColumn(name string, v int64) {
	if name == "sample-time" {
		r.timeNanos = v
		return
	}
	r.weights[name] = v
}

// parseFirstInt reads the first whitespace-separated integer; pmc-events
// rows list one value per configured counter and the first one is the
// sampling trigger.
func parseFirstInt(s string) (int64, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, errors.New("empty value")
	}
	return strconv.ParseInt(fields[0], 10, 64)
}

func parseHexAddress(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	return strconv.ParseUint(s, 16, 64)
}

func attrValue(e xml.StartElement, name string) string {
	for _, attr := range e.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}
