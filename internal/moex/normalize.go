package moex

import (
	"math"
	"strconv"
	"strings"
)

// Record is one normalized row of an ISS data block, keyed by the
// lower-cased column name. Unknown columns are preserved verbatim.
type Record map[string]any

// String returns the value under key as a string, or "" when absent or
// not a string.
func (r Record) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Float returns the value under key as a float64. It accepts native JSON
// numbers and numeric strings; ok is false when the value is absent,
// non-numeric, or not finite.
func (r Record) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Has reports whether the record carries a non-nil value under key.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// Normalize converts a {columns, data} block into a sequence of records
// keyed by the lower-cased column names.
//
// Tolerance policy: a nil block, missing data, or a ragged row never fails —
// one missing data block must not abort a whole pipeline run. Ragged rows
// are skipped; everything else normalizes to as many records as data rows.
func Normalize(block *Block) []Record {
	if block == nil || len(block.Data) == 0 || len(block.Columns) == 0 {
		return []Record{}
	}

	keys := make([]string, len(block.Columns))
	for i, col := range block.Columns {
		keys[i] = strings.ToLower(col)
	}

	records := make([]Record, 0, len(block.Data))
	for _, row := range block.Data {
		if len(row) != len(keys) {
			continue
		}
		rec := make(Record, len(keys))
		for i, key := range keys {
			rec[key] = row[i]
		}
		records = append(records, rec)
	}
	return records
}

// NormalizeBlock looks up a named block in a response and normalizes it.
// A missing block normalizes to an empty sequence.
func NormalizeBlock(blocks BlockMap, name string) []Record {
	block, ok := blocks[name]
	if !ok {
		return []Record{}
	}
	return Normalize(&block)
}

// changePercentColumns are the column names, post lower-casing, that carry
// a percentage change. Some endpoints report them as numeric strings.
var changePercentColumns = []string{"changepercent", "changespercent", "lasttoprevprice"}

// NormalizeChangePercent coerces percentage-like columns to a float64
// stored under the canonical "changepercent" key. Records without a usable
// percentage are returned unchanged.
func NormalizeChangePercent(records []Record) []Record {
	for _, rec := range records {
		for _, col := range changePercentColumns {
			if !rec.Has(col) {
				continue
			}
			if f, ok := rec.Float(col); ok {
				rec["changepercent"] = f
				break
			}
		}
	}
	return records
}
