package pipeline

import (
	"fmt"
	"off-data-pipeline/internal/model"
	"strings"
	"unicode/utf8"
)

// columnIndex holds the header position of each report column
type columnIndex struct {
	code            int
	productName     int
	brands          int
	categories      int
	nutriscoreScore int
	countries       int
}

// resolveColumns validates the catalog header and locates the report columns.
// Extra columns are ignored; a missing report column is a schema mismatch.
func resolveColumns(header []string) (columnIndex, error) {
	positions := make(map[string]int, len(header))
	for i, h := range cleanHeader(header) {
		if !utf8.ValidString(h) {
			return columnIndex{}, fmt.Errorf("header column %d is not valid UTF-8", i+1)
		}
		if _, dup := positions[h]; !dup {
			positions[h] = i
		}
	}

	var missing []string
	for _, col := range model.RequiredColumns {
		if _, ok := positions[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return columnIndex{}, fmt.Errorf("schema mismatch: missing required columns: %s", strings.Join(missing, ", "))
	}

	return columnIndex{
		code:            positions[model.ColumnCode],
		productName:     positions[model.ColumnProductName],
		brands:          positions[model.ColumnBrands],
		categories:      positions[model.ColumnCategories],
		nutriscoreScore: positions[model.ColumnNutriscoreScore],
		countries:       positions[model.ColumnCountries],
	}, nil
}

// cleanHeader trims header names, strips quotes and a leading byte order mark
func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		h = strings.TrimSpace(h)
		out[i] = strings.ReplaceAll(h, `"`, "")
	}
	return out
}
