package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"off-data-pipeline/internal/engine"
	"off-data-pipeline/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, sess *engine.Session, rows []model.CleanedRecord, country string) *model.BrandReport {
	t.Helper()
	report, err := Analyze(context.Background(), sess, &model.CleanedDataset{Rows: rows}, model.AnalysisOptions{Country: country})
	require.NoError(t, err)
	return report
}

func TestAnalyze(t *testing.T) {
	sess := newSession(t, engine.Options{Workers: 2, PartitionSize: 2})

	t.Run("groups french rows by brand", func(t *testing.T) {
		report := analyze(t, sess, []model.CleanedRecord{
			cleaned("1", "Danone", 3, "France,Belgium"),
			cleaned("2", "Danone", 5, "en:france"),
			cleaned("3", "Danone", 100, "Germany"),
			cleaned("4", "Milka", 20, "FRANCE"),
			cleaned("5", "Unknown", 7, "France"),
		}, "")

		assert.Equal(t, "france", report.Country)
		assert.Equal(t, 4, report.Matched)
		assert.Equal(t, []model.BrandAggregate{
			{Brands: "Danone", AvgNutriscore: 4, ProductCount: 2},
			{Brands: "Milka", AvgNutriscore: 20, ProductCount: 1},
		}, report.Rows)
	})

	t.Run("missing score sentinel counts in the mean", func(t *testing.T) {
		report := analyze(t, sess, []model.CleanedRecord{
			cleaned("1", "Lu", -1, "France"),
			cleaned("2", "Lu", 4, "France"),
			cleaned("3", "Bonne Maman", -1, "France"),
			cleaned("4", "Bonne Maman", -1, "France"),
		}, "france")

		require.Len(t, report.Rows, 2)
		assert.Equal(t, "Bonne Maman", report.Rows[0].Brands)
		assert.Equal(t, -1.0, report.Rows[0].AvgNutriscore)
		assert.Equal(t, 1.5, report.Rows[1].AvgNutriscore)
	})

	t.Run("ties break by brand name", func(t *testing.T) {
		report := analyze(t, sess, []model.CleanedRecord{
			cleaned("1", "Zeta", 1, "France"),
			cleaned("2", "Alpha", 1, "France"),
			cleaned("3", "Mid", 1, "France"),
			cleaned("4", "Mid", 1, "France"),
			cleaned("5", "Beta", 1, "France"),
		}, "france")

		var brands []string
		for _, r := range report.Rows {
			brands = append(brands, r.Brands)
		}
		assert.Equal(t, []string{"Mid", "Alpha", "Beta", "Zeta"}, brands)
	})

	t.Run("no matching rows", func(t *testing.T) {
		report := analyze(t, sess, []model.CleanedRecord{
			cleaned("1", "Danone", 3, "Unknown"),
			cleaned("2", "Milka", 3, "Unknown"),
		}, "france")

		assert.Zero(t, report.Matched)
		assert.NotNil(t, report.Rows)
		assert.Empty(t, report.Rows)
	})

	t.Run("only unknown brands", func(t *testing.T) {
		report := analyze(t, sess, []model.CleanedRecord{
			cleaned("1", "Unknown", 3, "France"),
		}, "france")

		assert.Equal(t, 1, report.Matched)
		assert.Empty(t, report.Rows)
	})

	t.Run("other target country", func(t *testing.T) {
		report := analyze(t, sess, []model.CleanedRecord{
			cleaned("1", "Danone", 3, "France"),
			cleaned("2", "Hacendado", 9, "Spain"),
		}, "  Spain ")

		assert.Equal(t, "Spain", report.Country)
		require.Len(t, report.Rows, 1)
		assert.Equal(t, "Hacendado", report.Rows[0].Brands)
	})
}

func TestAnalyzePartitioningIsDeterministic(t *testing.T) {
	var rows []model.CleanedRecord
	for i := 0; i < 200; i++ {
		rows = append(rows, cleaned(
			fmt.Sprintf("%d", i),
			fmt.Sprintf("brand-%d", i%7),
			int32(i%23-1),
			[]string{"France", "Belgium", "france,Spain"}[i%3],
		))
	}

	single := analyze(t, newSession(t, engine.Options{Workers: 1, PartitionSize: 1000}), rows, "france")
	split := analyze(t, newSession(t, engine.Options{Workers: 4, PartitionSize: 3}), rows, "france")

	assert.Equal(t, single, split)

	var total int64
	for i, r := range single.Rows {
		total += r.ProductCount
		if i > 0 {
			prev := single.Rows[i-1]
			assert.True(t, prev.ProductCount > r.ProductCount ||
				(prev.ProductCount == r.ProductCount && prev.Brands < r.Brands))
		}
	}
	assert.Equal(t, int64(single.Matched), total)
}

func TestMatchesCountry(t *testing.T) {
	cases := []struct {
		countries string
		want      bool
	}{
		{"France", true},
		{"en:france,en:belgium", true},
		{"Belgique, FRANCE", true},
		{"Germany", false},
		{"Unknown", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MatchesCountry(tc.countries, "france"), tc.countries)
	}
}

func TestPrintBrandReport(t *testing.T) {
	report := &model.BrandReport{
		Country: "france",
		Rows: []model.BrandAggregate{
			{Brands: "Danone", AvgNutriscore: 4, ProductCount: 2},
			{Brands: "Milka", AvgNutriscore: 20.5, ProductCount: 1},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, PrintBrandReport(&buf, report, 1))
	out := buf.String()
	assert.Contains(t, out, "Top 1 brands by product count in france")
	assert.Contains(t, out, "Danone")
	assert.Contains(t, out, "4.0000")
	assert.NotContains(t, out, "Milka")

	buf.Reset()
	require.NoError(t, PrintBrandReport(&buf, report, 0))
	assert.Contains(t, buf.String(), "Milka")

	buf.Reset()
	require.NoError(t, PrintBrandReport(&buf, &model.BrandReport{Country: "france"}, 20))
	assert.Contains(t, buf.String(), "(no brands)")
}
