package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"off-data-pipeline/internal/model"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI in-process. Flag values persist between calls, so tests
// pass every flag they rely on.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	for _, k := range []string{"OFF_INPUT_PATH", "OFF_OUTPUT_PATH", "OFF_COUNTRY", "OFF_TOP_N", "OFF_EXPORTS", "OFF_EXPORT_DB"} {
		t.Setenv(k, "")
	}

	input := filepath.Join(dir, "products.csv")
	require.NoError(t, os.WriteFile(input, []byte(
		"code\tproduct_name\tbrands\tcategories\tnutriscore_score\tcountries\n"+
			"1\tYaourt\tDanone\tDairy\t3\tFrance\n"+
			"2\tCreme\tDanone\t\t5\ten:france\n"+
			"3\tBier\tBeck's\tDrinks\t12\tGermany\n"), 0644))
	output := filepath.Join(dir, "out", "report.parquet")
	db := filepath.Join(dir, "runs.db")

	out, err := execute(t, "run", "--input", input, "--output", output, "--db", db, "--top=5", "--export", filepath.Join(dir, "brands.csv"))
	require.NoError(t, err)
	assert.Contains(t, out, "Brand Analysis (Top 1 brands by product count in france)")
	assert.Contains(t, out, "1 brands from 2 matching products")

	rows, err := parquet.ReadFile[model.BrandAggregate](output)
	require.NoError(t, err)
	assert.Equal(t, []model.BrandAggregate{{Brands: "Danone", AvgNutriscore: 4, ProductCount: 2}}, rows)
	assert.FileExists(t, filepath.Join(dir, "brands.csv"))

	out, err = execute(t, "runs", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, model.StatusCompleted)
	assert.Contains(t, out, input)

	_, err = execute(t, "run", "--input", filepath.Join(dir, "missing.csv"), "--output", output, "--db=")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load")
}

func TestRunCommandRequiresInput(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OFF_INPUT_PATH", "")

	_, err := execute(t, "run", "--input=", "--db=")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input path is required")
}
