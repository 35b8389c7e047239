// Package dataset reads, writes and locates task record files. A record file
// is either a single JSON array of objects or newline-delimited JSON objects.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spachava753/taskver/internal/models"
)

// maxLineSize bounds a single JSONL record. Task records embed patches and
// problem statements, so the bufio default of 64KiB is too small.
const maxLineSize = 64 << 20

// IsLineDelimited reports whether path names a newline-delimited file.
func IsLineDelimited(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".jsonl") || strings.HasSuffix(lower, ".jsonl.all")
}

// LoadFromPath loads all records from a .json, .jsonl or .jsonl.all file.
func LoadFromPath(path string) ([]models.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening record file: %w", err)
	}
	defer f.Close()

	if IsLineDelimited(path) {
		return decodeLines(f)
	}
	return decodeArray(f)
}

func decodeArray(r io.Reader) ([]models.Record, error) {
	var records []models.Record
	dec := json.NewDecoder(r)
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("parsing JSON array: %w", err)
	}
	if records == nil {
		return nil, fmt.Errorf("parsing JSON array: got null")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("parsing JSON array: unexpected data after the array")
	}
	for i, rec := range records {
		if rec == nil {
			return nil, fmt.Errorf("parsing JSON array: element %d is not an object", i)
		}
	}
	return records, nil
}

func decodeLines(r io.Reader) ([]models.Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var records []models.Record
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec models.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNo, err)
		}
		if rec == nil {
			return nil, fmt.Errorf("parsing line %d: not an object", lineNo)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading lines: %w", err)
	}
	return records, nil
}
