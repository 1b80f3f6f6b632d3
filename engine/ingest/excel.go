package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// loadExcel returns one document per non-empty sheet, rows as tab-separated lines.
func loadExcel(path string) ([]Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open workbook: %w", err)
	}
	defer f.Close()

	name := filepath.Base(path)
	var docs []Document
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("ingest: sheet %q: %w", sheet, err)
		}
		var lines []string
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t ")
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		docs = append(docs, Document{
			Content: "Sheet: " + sheet + "\n" + strings.Join(lines, "\n"),
			Source:  name,
			Kind:    "excel",
			Page:    i + 1,
		})
	}
	if len(docs) == 0 {
		return nil, ErrNoText
	}
	return docs, nil
}
