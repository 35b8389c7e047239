// Package reconcile merges two version datasets into one, keyed by
// pull_number.
package reconcile

import (
	"encoding/json"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/spachava753/taskver/internal/models"
)

// Merge returns every record of primary followed by each record of
// secondary whose pull_number has not been seen yet, sorted by pull_number
// descending. Secondary records without a pull_number are dropped. Neither
// input is modified.
func Merge(primary, secondary []models.Record) []models.Record {
	seen := make(map[string]struct{}, len(primary)+len(secondary))
	out := make([]models.Record, 0, len(primary)+len(secondary))

	for _, rec := range primary {
		if key, ok := rec.Compact(models.FieldPullNumber); ok {
			seen[key] = struct{}{}
		}
		out = append(out, rec)
	}

	for _, rec := range secondary {
		if !rec.Has(models.FieldPullNumber) {
			id, _ := rec.String(models.FieldInstanceID)
			slog.Warn("skipping record with missing pull_number", "instance_id", id)
			continue
		}
		key, _ := rec.Compact(models.FieldPullNumber)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}

	SortByPullNumber(out)
	return out
}

// SortByPullNumber sorts records by pull_number, highest first. When every
// pull_number is an integer or a string holding one, the order is numeric
// with a missing pull_number counting as 0. Otherwise all records are
// ordered by the text of their pull_number. Records with equal keys keep
// their relative order.
func SortByPullNumber(records []models.Record) {
	nums := make([]int64, len(records))
	numeric := true
	for i, rec := range records {
		n, ok := intKey(rec)
		if !ok {
			numeric = false
			break
		}
		nums[i] = n
	}

	idx := make([]int, len(records))
	for i := range idx {
		idx[i] = i
	}

	if numeric {
		slices.SortStableFunc(idx, func(a, b int) int {
			switch {
			case nums[a] > nums[b]:
				return -1
			case nums[a] < nums[b]:
				return 1
			}
			return 0
		})
	} else {
		texts := make([]string, len(records))
		for i, rec := range records {
			texts[i] = textKey(rec)
		}
		slices.SortStableFunc(idx, func(a, b int) int {
			return strings.Compare(texts[b], texts[a])
		})
	}

	sorted := make([]models.Record, len(records))
	for i, j := range idx {
		sorted[i] = records[j]
	}
	copy(records, sorted)
}

func intKey(rec models.Record) (int64, bool) {
	raw, ok := rec[models.FieldPullNumber]
	if !ok {
		return 0, true
	}

	var v any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}

	var text string
	switch t := v.(type) {
	case json.Number:
		text = t.String()
	case string:
		text = strings.TrimSpace(t)
	default:
		return 0, false
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func textKey(rec models.Record) string {
	raw, ok := rec[models.FieldPullNumber]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	key, _ := rec.Compact(models.FieldPullNumber)
	return key
}
