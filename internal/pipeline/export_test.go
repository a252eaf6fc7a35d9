package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"off-data-pipeline/internal/engine"
	"off-data-pipeline/internal/model"
	"off-data-pipeline/internal/store"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var sampleBrands = []model.BrandAggregate{
	{Brands: "Danone", AvgNutriscore: 4, ProductCount: 2},
	{Brands: "Milka", AvgNutriscore: 20.5, ProductCount: 1},
}

func TestWrite(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips through parquet", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "afterData.parquet")

		res, err := Write(ctx, sampleBrands, path)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, 2, res.RecordCount)
		assert.Equal(t, "parquet", res.Type)

		got, err := parquet.ReadFile[model.BrandAggregate](path)
		require.NoError(t, err)
		assert.Equal(t, sampleBrands, got)
	})

	t.Run("empty report keeps the schema", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.parquet")

		_, err := Write(ctx, []model.BrandAggregate{}, path)
		require.NoError(t, err)

		f, err := os.Open(path)
		require.NoError(t, err)
		defer f.Close()
		st, err := f.Stat()
		require.NoError(t, err)

		pf, err := parquet.OpenFile(f, st.Size())
		require.NoError(t, err)
		assert.Zero(t, pf.NumRows())

		var names []string
		for _, field := range pf.Schema().Fields() {
			names = append(names, field.Name())
		}
		assert.ElementsMatch(t, []string{"brands", "avg_nutriscore", "product_count"}, names)
	})

	t.Run("overwrites an existing report", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "afterData.parquet")
		_, err := Write(ctx, sampleBrands, path)
		require.NoError(t, err)

		_, err = Write(ctx, sampleBrands[1:], path)
		require.NoError(t, err)

		got, err := parquet.ReadFile[model.BrandAggregate](path)
		require.NoError(t, err)
		assert.Equal(t, sampleBrands[1:], got)
	})

	t.Run("unwritable destination", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "not-a-dir")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
		path := filepath.Join(blocker, "afterData.parquet")

		res, err := Write(ctx, sampleBrands, path)
		require.ErrorIs(t, err, ErrSave)
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Error)
		assert.NoFileExists(t, path)
	})

	t.Run("cancelled context writes nothing", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		path := filepath.Join(t.TempDir(), "afterData.parquet")

		_, err := Write(cctx, sampleBrands, path)
		require.ErrorIs(t, err, ErrSave)
		assert.NoFileExists(t, path)
	})
}

func TestExportAll(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	sess := newSession(t, engine.Options{RunID: "run-export", DBPath: dbPath})
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	spec := &model.Export{
		Files: []string{
			filepath.Join(dir, "brands.csv"),
			filepath.Join(dir, "brands.json"),
			filepath.Join(dir, "brands.xlsx"),
			filepath.Join(dir, "brands.txt"),
			filepath.Join(blocker, "brands.csv"),
		},
		DB: true,
	}
	results := NewExportManager(sess, spec).ExportAll(context.Background(), sampleBrands)
	require.Len(t, results, 6)

	t.Run("csv", func(t *testing.T) {
		assert.True(t, results[0].Success)
		data, err := os.ReadFile(spec.Files[0])
		require.NoError(t, err)
		assert.Equal(t, "brands,avg_nutriscore,product_count\nDanone,4,2\nMilka,20.5,1\n", string(data))
	})

	t.Run("json", func(t *testing.T) {
		assert.True(t, results[1].Success)
		data, err := os.ReadFile(spec.Files[1])
		require.NoError(t, err)

		var doc struct {
			ExportInfo map[string]interface{} `json:"export_info"`
			Data       []model.BrandAggregate `json:"data"`
		}
		require.NoError(t, json.Unmarshal(data, &doc))
		assert.Equal(t, "run-export", doc.ExportInfo["run_id"])
		assert.Equal(t, sampleBrands, doc.Data)
	})

	t.Run("xlsx", func(t *testing.T) {
		assert.True(t, results[2].Success)
		f, err := excelize.OpenFile(spec.Files[2])
		require.NoError(t, err)
		defer f.Close()

		rows, err := f.GetRows("Brands")
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"brands", "avg_nutriscore", "product_count"}, rows[0])
		assert.Equal(t, "Danone", rows[1][0])
		assert.Equal(t, "20.5", rows[2][1])
	})

	t.Run("unknown extension falls back to csv", func(t *testing.T) {
		assert.True(t, results[3].Success)
		assert.Equal(t, "csv", results[3].Type)
	})

	t.Run("failed export does not stop the rest", func(t *testing.T) {
		assert.False(t, results[4].Success)
		assert.NotEmpty(t, results[4].Error)
		assert.True(t, results[5].Success)
		assert.Equal(t, "database", results[5].Type)
	})

	t.Run("database rows", func(t *testing.T) {
		db, err := store.Open(dbPath)
		require.NoError(t, err)
		defer db.Close()

		got, err := db.GetBrandResults("run-export")
		require.NoError(t, err)
		assert.Equal(t, sampleBrands, got)
	})
}
