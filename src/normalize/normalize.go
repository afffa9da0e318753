// Package normalize extracts typed values out of loosely-structured
// tabular rows. Column lookup is case-insensitive and fallback-ordered;
// a field that cannot be resolved degrades to a sentinel (NaN for
// numbers, "" for strings) instead of an error, so one malformed row
// never aborts ingestion of an entire dataset.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/username/finboard/backend/src/models"
)

// truthyValues is the explicit accepted-truthy set for boolean coercion.
// Everything else, including blank and absent, is false.
var truthyValues = map[string]struct{}{
	"true": {},
	"1":    {},
	"yes":  {},
	"y":    {},
	"t":    {},
}

// indexRow builds a case-insensitive index of the row's own keys,
// lower-cased key -> original value. Built once per row; when a file
// carries two columns differing only in case, the first one indexed wins.
func indexRow(row models.RawRow) map[string]any {
	idx := make(map[string]any, len(row))
	for k, v := range row {
		lk := strings.ToLower(strings.TrimSpace(k))
		if _, exists := idx[lk]; !exists {
			idx[lk] = v
		}
	}
	return idx
}

// resolve walks the alias list in priority order and returns the first
// value that is present, non-nil, and whose trimmed string form is
// non-blank.
func resolve(idx map[string]any, aliases []string) (any, bool) {
	for _, alias := range aliases {
		v, ok := idx[strings.ToLower(strings.TrimSpace(alias))]
		if !ok || v == nil {
			continue
		}
		if strings.TrimSpace(stringify(v)) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

// stringify renders a raw scalar the way it appeared in the source,
// without exponent formatting for JSON-decoded numbers.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ExtractNumber resolves a numeric field through the alias list. It
// returns NaN when no alias resolves or when the resolved value does not
// parse to a finite number; a non-numeric value for a numeric field
// counts as missing.
func ExtractNumber(row models.RawRow, aliases []string) float64 {
	return extractNumberIndexed(indexRow(row), aliases)
}

func extractNumberIndexed(idx map[string]any, aliases []string) float64 {
	v, ok := resolve(idx, aliases)
	if !ok {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(stringify(v)), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return math.NaN()
	}
	return f
}

// ExtractString resolves a string field through the alias list, returning
// "" when no alias resolves.
func ExtractString(row models.RawRow, aliases []string) string {
	return extractStringIndexed(indexRow(row), aliases)
}

func extractStringIndexed(idx map[string]any, aliases []string) string {
	v, ok := resolve(idx, aliases)
	if !ok {
		return ""
	}
	return strings.TrimSpace(stringify(v))
}

// ExtractBoolean coerces a raw value against the accepted-truthy set,
// case-insensitive and trimmed. There is no explicit falsy set: absence
// of evidence is false.
func ExtractBoolean(raw any) bool {
	if raw == nil {
		return false
	}
	_, ok := truthyValues[strings.ToLower(strings.TrimSpace(stringify(raw)))]
	return ok
}

// resolvedAs reports whether one field resolves in an indexed row, with
// numeric fields additionally required to parse to a finite number.
func resolvedAs(idx map[string]any, spec models.FieldSpec) bool {
	switch spec.Kind {
	case models.FieldNumber:
		return !math.IsNaN(extractNumberIndexed(idx, spec.Aliases))
	default:
		_, ok := resolve(idx, spec.Aliases)
		return ok
	}
}

// NormalizeRows applies the field specs to every row, producing one
// NormalizedRecord per row. Unresolved fields take the type-appropriate
// sentinel; the worst outcome of malformed input is an all-missing
// record, never an error.
func NormalizeRows(rows []models.RawRow, fields []models.FieldSpec) []models.NormalizedRecord {
	records := make([]models.NormalizedRecord, 0, len(rows))
	for _, row := range rows {
		idx := indexRow(row)
		rec := make(models.NormalizedRecord, len(fields))
		for _, spec := range fields {
			switch spec.Kind {
			case models.FieldNumber:
				rec[spec.Name] = extractNumberIndexed(idx, spec.Aliases)
			case models.FieldBool:
				v, _ := resolve(idx, spec.Aliases)
				rec[spec.Name] = ExtractBoolean(v)
			default:
				rec[spec.Name] = extractStringIndexed(idx, spec.Aliases)
			}
		}
		records = append(records, rec)
	}
	return records
}

// ComputeIssues scans every row once per required field. A field lands in
// Detected when it resolves in at least one row and in Missing when it
// fails to resolve in at least one row; both at once means partial,
// inconsistent data, which callers should surface as a warning rather
// than a hard failure. Output order follows the field spec order.
func ComputeIssues(rows []models.RawRow, fields []models.FieldSpec) models.DatasetIssues {
	issues := models.DatasetIssues{
		Missing:  []string{},
		Detected: []string{},
	}

	indexed := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		indexed = append(indexed, indexRow(row))
	}

	for _, spec := range fields {
		if !spec.Required {
			continue
		}
		detected := false
		missing := len(rows) == 0
		for _, idx := range indexed {
			if resolvedAs(idx, spec) {
				detected = true
			} else {
				missing = true
			}
		}
		if detected {
			issues.Detected = append(issues.Detected, spec.Name)
		}
		if missing {
			issues.Missing = append(issues.Missing, spec.Name)
		}
	}
	return issues
}
