package pipeline

import (
	"context"
	"fmt"
	"log"
	"off-data-pipeline/internal/engine"
	"off-data-pipeline/internal/model"
	"off-data-pipeline/pkg/utils"
	"time"
)

// ------------------- Cleaner -------------------

// Clean normalizes every raw row and keeps the first row seen for each code.
// Rows are normalized partition by partition in parallel; input order is preserved.
// The only error is a cancelled context.
func Clean(ctx context.Context, sess *engine.Session, raw *model.RawDataset) (*model.CleanedDataset, error) {
	start := time.Now()
	log.Printf("🧹 Starting data cleaning process...")

	rows := make([]model.CleanedRecord, len(raw.Rows))
	err := sess.ForEachPartition(ctx, len(raw.Rows), func(ctx context.Context, p engine.Partition) error {
		for i := p.Start; i < p.End; i++ {
			rows[i] = CleanRecord(raw.Rows[i])
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cleaning cancelled: %w", err)
	}

	unique := DropDuplicateCodes(rows)
	cleaned := &model.CleanedDataset{
		Rows:       unique,
		Duplicates: len(rows) - len(unique),
	}

	log.Printf("🧹 Data cleaning completed: %d rows in, %d rows out, %d duplicate codes dropped (%v)",
		len(rows), len(unique), cleaned.Duplicates, time.Since(start).Round(time.Millisecond))
	return cleaned, nil
}

// CleanRecord substitutes sentinels for missing values and trims text fields.
// Each field is handled independently of the others.
func CleanRecord(r model.RawRecord) model.CleanedRecord {
	score := model.MissingScore
	if r.NutriscoreScore != nil {
		score = *r.NutriscoreScore
	}

	return model.CleanedRecord{
		Code:            r.Code,
		ProductName:     utils.TrimOr(r.ProductName, model.UnknownValue),
		Brands:          utils.TrimOr(r.Brands, model.UnknownValue),
		Categories:      utils.TrimOr(r.Categories, model.UncategorizedValue),
		NutriscoreScore: score,
		Countries:       utils.TrimOr(r.Countries, model.UnknownValue),
	}
}

// DropDuplicateCodes keeps the first occurrence of every code, in input order
func DropDuplicateCodes(rows []model.CleanedRecord) []model.CleanedRecord {
	seen := make(map[string]struct{}, len(rows))
	unique := make([]model.CleanedRecord, 0, len(rows))
	for _, r := range rows {
		if _, dup := seen[r.Code]; dup {
			continue
		}
		seen[r.Code] = struct{}{}
		unique = append(unique, r)
	}
	return unique
}
