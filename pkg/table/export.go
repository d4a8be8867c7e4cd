package table

import (
	"strconv"
	"strings"
)

// ToDelimited renders the visible rows as delimiter-separated text. The
// header holds the column display names in registration order; missing
// values render as the empty string.
func (t *Table) ToDelimited(delim string) string {
	var b strings.Builder

	header := make([]string, len(t.slugs))
	for i, slug := range t.slugs {
		header[i] = escapeField(t.columns[slug].Spec.DisplayName(), delim)
	}
	b.WriteString(strings.Join(header, delim))
	b.WriteString("\n")

	for _, row := range t.UnfilteredRows() {
		fields := make([]string, len(t.slugs))
		for i, slug := range t.slugs {
			fields[i] = escapeField(formatValue(row[slug]), delim)
		}
		b.WriteString(strings.Join(fields, delim))
		b.WriteString("\n")
	}

	return b.String()
}

// ToCSV is ToDelimited with a comma.
func (t *Table) ToCSV() string { return t.ToDelimited(",") }

func formatValue(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case bool:
		return strconv.FormatBool(n)
	case int:
		return strconv.Itoa(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return ""
	}
}

func escapeField(s, delim string) string {
	if strings.Contains(s, delim) || strings.Contains(s, "\"") || strings.Contains(s, "\n") {
		return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
	}
	return s
}
