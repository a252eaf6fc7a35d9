package pipeline

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"off-data-pipeline/internal/model"
	"off-data-pipeline/pkg/utils"
	"os"
	"strings"
	"time"
)

// ErrLoad marks a dataset-level load failure; the run has no dataset to continue with
var ErrLoad = errors.New("load failed")

// ------------------- Loader -------------------

// Load reads a tab-delimited catalog export from a file path or http(s) URL and
// projects it to the report columns. Rows the delimited reader cannot parse are
// counted and skipped; nutriscore_score values that are not integers become nil.
// Any dataset-level failure is logged and returned wrapping ErrLoad with a nil dataset.
func Load(ctx context.Context, pathOrURL string) (*model.RawDataset, error) {
	start := time.Now()
	fmt.Printf("📥 Loading catalog from %s\n", pathOrURL)

	ds, err := loadCatalog(ctx, pathOrURL)
	if err != nil {
		log.Printf("❌ Error loading data: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	log.Printf("📥 Successfully loaded data with %d rows (%d malformed rows skipped) in %v",
		len(ds.Rows), ds.Malformed, time.Since(start).Round(time.Millisecond))
	return ds, nil
}

func loadCatalog(ctx context.Context, pathOrURL string) (*model.RawDataset, error) {
	src, err := openSource(ctx, pathOrURL)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	ds, err := readCatalog(ctx, src)
	if err != nil {
		return nil, err
	}
	ds.Source = pathOrURL
	return ds, nil
}

// openSource opens a local file or fetches a remote export
func openSource(ctx context.Context, pathOrURL string) (io.ReadCloser, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pathOrURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to GET catalog: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to GET catalog: unexpected status %s", resp.Status)
		}
		return resp.Body, nil
	}

	file, err := os.Open(pathOrURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	return file, nil
}

// readCatalog parses the delimited stream. Quoted fields may contain tabs,
// newlines and doubled quotes.
func readCatalog(ctx context.Context, r io.Reader) (*model.RawDataset, error) {
	reader := csv.NewReader(bufio.NewReaderSize(r, 1<<20))
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty catalog: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog header: %w", err)
	}

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	ds := &model.RawDataset{Columns: cleanHeader(header), Rows: []model.RawRecord{}}
	for {
		if len(ds.Rows)%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return ds, nil
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			ds.Malformed++
			if ds.Malformed <= 5 {
				fmt.Printf("⚠️ Skipping malformed row: %v\n", parseErr)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("catalog read error: %w", err)
		}

		ds.Rows = append(ds.Rows, cols.project(record))
		if n := len(ds.Rows); n%500000 == 0 {
			fmt.Printf("📥 Loaded %d rows...\n", n)
		}
	}
}

// project maps one delimited record onto the report columns.
// Columns missing from a short record read as nil.
func (c columnIndex) project(record []string) model.RawRecord {
	field := func(i int) string {
		if i < len(record) {
			return record[i]
		}
		return ""
	}

	raw := model.RawRecord{
		Code:        field(c.code),
		ProductName: utils.NullIfEmpty(field(c.productName)),
		Brands:      utils.NullIfEmpty(field(c.brands)),
		Categories:  utils.NullIfEmpty(field(c.categories)),
		Countries:   utils.NullIfEmpty(field(c.countries)),
	}
	if score, ok := utils.ParseInt32(field(c.nutriscoreScore)); ok {
		raw.NutriscoreScore = &score
	}
	return raw
}
