package pipeline

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"off-data-pipeline/internal/engine"
	"off-data-pipeline/internal/model"

	"github.com/stretchr/testify/require"
)

const catalogHeader = "code\tproduct_name\tbrands\tcategories\tnutriscore_score\tcountries"

// writeCatalog writes a tab-delimited catalog and returns its path
func writeCatalog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

// row joins fields with tabs
func row(fields ...string) string {
	return strings.Join(fields, "\t")
}

// newSession opens a quiet session; small partitions exercise the parallel paths
func newSession(t *testing.T, opts engine.Options) *engine.Session {
	t.Helper()
	if opts.Console == nil {
		opts.Console = io.Discard
	}
	sess, err := engine.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func cleaned(code, brands string, score int32, countries string) model.CleanedRecord {
	return model.CleanedRecord{
		Code:            code,
		ProductName:     "Product " + code,
		Brands:          brands,
		Categories:      model.UncategorizedValue,
		NutriscoreScore: score,
		Countries:       countries,
	}
}

func strPtr(s string) *string { return &s }

func int32Ptr(v int32) *int32 { return &v }
