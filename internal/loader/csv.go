package loader

import "strings"

// ParseCSV parses raw CSV text into rows of fields. It handles quoted fields,
// doubled-quote escapes inside quoted fields, and both CRLF and LF line
// endings. Leading blank rows are skipped; interior blank rows are kept out of
// the result as well since spreadsheet exports pad with them freely.
func ParseCSV(raw string) [][]string {
	var (
		rows    [][]string
		row     []string
		field   strings.Builder
		quoted  bool
		hasData bool
	)
	flushField := func() {
		row = append(row, field.String())
		field.Reset()
	}
	flushRow := func() {
		flushField()
		for _, f := range row {
			if strings.TrimSpace(f) != "" {
				hasData = true
				break
			}
		}
		if hasData {
			rows = append(rows, row)
		}
		row = nil
		hasData = false
	}

	runes := []rune(raw)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case quoted:
			if c == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					field.WriteRune('"')
					i++
				} else {
					quoted = false
				}
			} else {
				field.WriteRune(c)
			}
		case c == '"':
			quoted = true
		case c == ',':
			flushField()
		case c == '\r':
			if i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
			flushRow()
		case c == '\n':
			flushRow()
		default:
			field.WriteRune(c)
		}
	}
	if field.Len() > 0 || len(row) > 0 {
		flushRow()
	}
	return rows
}
