// Package record parses the flat section format used by repository
// metadata files (desc, depends, files). A line of the form %NAME% opens
// a section and every following non-empty line is one of its values.
package record

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"
)

// Record maps section names to their ordered values.
// Sections keep the order in which they were first seen.
type Record struct {
	keys   []string
	values map[string][]string
}

// Parse builds a Record from newline-stripped lines. It never fails:
// lines before the first marker land under the empty key, and a repeated
// marker restarts its section.
func Parse(lines []string) Record {
	rec := Record{values: make(map[string][]string)}
	key := ""
	for _, line := range lines {
		if line == "" {
			continue
		}
		if isMarker(line) {
			key = line[1 : len(line)-1]
			if _, seen := rec.values[key]; !seen {
				rec.keys = append(rec.keys, key)
			}
			rec.values[key] = []string{}
			continue
		}
		if _, seen := rec.values[key]; !seen {
			rec.keys = append(rec.keys, key)
		}
		rec.values[key] = append(rec.values[key], line)
	}
	return rec
}

// Read parses a Record from r, skipping empty lines. Lines have no length
// limit; only errors of r itself are returned.
func Read(r io.Reader) (Record, error) {
	var lines []string
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			lines = append(lines, line)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Record{}, err
		}
	}
	return Parse(lines), nil
}

// ReadFile parses the Record stored at path.
func ReadFile(path string) (Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return Record{}, err
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

func isMarker(line string) bool {
	return len(line) >= 2 && line[0] == '%' && line[len(line)-1] == '%'
}

// Values returns the values of a section, or an empty slice when absent.
func (r Record) Values(key string) []string {
	v, ok := r.values[key]
	if !ok {
		return []string{}
	}
	out := make([]string, len(v))
	copy(out, v)
	return out
}

// First returns the first value of a section.
func (r Record) First(key string) (string, bool) {
	v := r.values[key]
	if len(v) == 0 {
		return "", false
	}
	return v[0], true
}
