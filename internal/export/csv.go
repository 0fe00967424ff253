// Package export renders report tables for download. It is a boundary
// consumer of the data layer, not part of the fallback chain.
package export

import (
	"fmt"
	"io"
	"strings"
)

// WriteCSV writes a UTF-8, comma-separated table: every field is wrapped in
// double quotes with internal quotes doubled, and nil cells render as "".
// This matches what the dashboard's spreadsheet consumers already import.
func WriteCSV(w io.Writer, headers []string, rows [][]interface{}) error {
	cells := make([]string, len(headers))
	for i, header := range headers {
		cells[i] = quote(header)
	}
	if _, err := io.WriteString(w, strings.Join(cells, ",")+"\n"); err != nil {
		return err
	}

	for _, row := range rows {
		cells = make([]string, len(row))
		for i, cell := range row {
			cells[i] = quote(cell)
		}
		if _, err := io.WriteString(w, strings.Join(cells, ",")+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func quote(cell interface{}) string {
	if cell == nil {
		return `""`
	}
	text := fmt.Sprintf("%v", cell)
	return `"` + strings.ReplaceAll(text, `"`, `""`) + `"`
}
