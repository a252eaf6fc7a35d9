package pipeline

import (
	"context"
	"fmt"
	"log"
	"off-data-pipeline/internal/engine"
	"off-data-pipeline/internal/model"
	"sort"
	"strings"
	"time"
)

// brandTotals accumulates one brand group. Scores are summed as integers
// so merging partitions gives the same mean regardless of order.
type brandTotals struct {
	scoreSum int64
	count    int64
}

// partialAggregate holds the groups of one partition
type partialAggregate struct {
	matched int
	groups  map[string]*brandTotals
}

// ------------------- Analyzer -------------------

// Analyze builds the brand report for rows whose countries contain the target
// country (case-insensitive). Each brand gets the mean nutriscore_score of its rows,
// missing-score sentinels included, and its row count. The "Unknown" brand is
// dropped and rows are ranked by product count, descending, then brand name.
func Analyze(ctx context.Context, sess *engine.Session, ds *model.CleanedDataset, opts model.AnalysisOptions) (*model.BrandReport, error) {
	start := time.Now()
	country := strings.TrimSpace(opts.Country)
	if country == "" {
		country = model.DefaultCountry
	}
	target := strings.ToLower(country)
	fmt.Printf("📊 Analyzing brands for countries matching %q...\n", country)

	parts := sess.Partitions(len(ds.Rows))
	partials := make([]partialAggregate, len(parts))
	err := sess.ForEachPartition(ctx, len(ds.Rows), func(ctx context.Context, p engine.Partition) error {
		partial := partialAggregate{groups: make(map[string]*brandTotals)}
		for _, rec := range ds.Rows[p.Start:p.End] {
			if !MatchesCountry(rec.Countries, target) {
				continue
			}
			partial.matched++
			totals, ok := partial.groups[rec.Brands]
			if !ok {
				totals = &brandTotals{}
				partial.groups[rec.Brands] = totals
			}
			totals.scoreSum += int64(rec.NutriscoreScore)
			totals.count++
		}
		partials[p.Index] = partial
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}

	// Merge partition results
	matched := 0
	final := make(map[string]*brandTotals)
	for _, partial := range partials {
		matched += partial.matched
		for brand, totals := range partial.groups {
			if existing, ok := final[brand]; ok {
				existing.scoreSum += totals.scoreSum
				existing.count += totals.count
			} else {
				final[brand] = totals
			}
		}
	}

	rows := make([]model.BrandAggregate, 0, len(final))
	for brand, totals := range final {
		if brand == model.UnknownValue {
			continue
		}
		rows = append(rows, model.BrandAggregate{
			Brands:        brand,
			AvgNutriscore: float64(totals.scoreSum) / float64(totals.count),
			ProductCount:  totals.count,
		})
	}
	SortBrandAggregates(rows)

	log.Printf("📊 Aggregation Summary: %d brands from %d matching rows (%v)",
		len(rows), matched, time.Since(start).Round(time.Millisecond))
	return &model.BrandReport{Country: country, Matched: matched, Rows: rows}, nil
}

// MatchesCountry reports whether countries contains the lower-cased target
func MatchesCountry(countries, lowerTarget string) bool {
	return strings.Contains(strings.ToLower(countries), lowerTarget)
}

// SortBrandAggregates orders rows by product count descending, then brand ascending
func SortBrandAggregates(rows []model.BrandAggregate) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ProductCount != rows[j].ProductCount {
			return rows[i].ProductCount > rows[j].ProductCount
		}
		return rows[i].Brands < rows[j].Brands
	})
}
