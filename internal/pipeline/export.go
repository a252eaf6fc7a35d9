package pipeline

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"off-data-pipeline/internal/engine"
	"off-data-pipeline/internal/model"
	"off-data-pipeline/pkg/utils"
	"os"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"
)

// ErrSave marks a failed write of the report
var ErrSave = errors.New("save failed")

var reportHeader = []string{"brands", "avg_nutriscore", "product_count"}

// ------------------- Writer -------------------

// Write persists the brand report as a Parquet file at outputPath, replacing
// whatever was there. The file is written next to the target and renamed into
// place, so a failed write leaves no partial report behind.
func Write(ctx context.Context, rows []model.BrandAggregate, outputPath string) (model.ExportResult, error) {
	result := model.ExportResult{
		Type:        "parquet",
		Path:        outputPath,
		RecordCount: len(rows),
	}

	err := ctx.Err()
	if err == nil {
		err = utils.AtomicWrite(outputPath, func(f *os.File) error {
			return writeParquet(f, rows)
		})
	}
	result.Timestamp = time.Now()
	if err != nil {
		result.RecordCount = 0
		result.Error = err.Error()
		log.Printf("❌ Error saving results: %v", err)
		return result, fmt.Errorf("%w: %w", ErrSave, err)
	}

	result.Success = true
	log.Printf("💾 Successfully saved results to %s (%d rows)", outputPath, len(rows))
	return result, nil
}

func writeParquet(w io.Writer, rows []model.BrandAggregate) error {
	pw := parquet.NewGenericWriter[model.BrandAggregate](w, parquet.Compression(&parquet.Snappy))
	if len(rows) > 0 {
		if _, err := pw.Write(rows); err != nil {
			return fmt.Errorf("failed to write parquet rows: %w", err)
		}
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return nil
}

// ------------------- Extra exports -------------------

// ExportManager writes the optional exports configured for a run
type ExportManager struct {
	RunID      string
	ExportSpec *model.Export
	Recorder   engine.Recorder
}

// NewExportManager creates an export manager bound to a session
func NewExportManager(sess *engine.Session, spec *model.Export) *ExportManager {
	return &ExportManager{
		RunID:      sess.RunID(),
		ExportSpec: spec,
		Recorder:   sess.Recorder(),
	}
}

// ExportAll writes every configured export. Failures are reported per export
// and never stop the remaining ones.
func (em *ExportManager) ExportAll(ctx context.Context, rows []model.BrandAggregate) []model.ExportResult {
	if em.ExportSpec == nil {
		return nil
	}

	var results []model.ExportResult
	for _, path := range em.ExportSpec.Files {
		if ctx.Err() != nil {
			break
		}
		results = append(results, em.exportToFile(path, rows))
	}
	if em.ExportSpec.DB && ctx.Err() == nil {
		results = append(results, em.exportToDatabase(rows))
	}

	fmt.Printf("💾 Export Summary: %d export operations completed\n", len(results))
	return results
}

// exportToFile exports rows to a file chosen by extension (CSV when unknown)
func (em *ExportManager) exportToFile(path string, rows []model.BrandAggregate) model.ExportResult {
	fileType := utils.GetFileType(path)

	var encode func(f *os.File) error
	switch fileType {
	case "parquet":
		encode = func(f *os.File) error { return writeParquet(f, rows) }
	case "json":
		encode = func(f *os.File) error { return em.exportToJSON(f, rows) }
	case "xlsx":
		encode = func(f *os.File) error { return exportToXLSX(f, rows) }
	default:
		fileType = "csv"
		encode = func(f *os.File) error { return exportToCSV(f, rows) }
	}

	err := utils.AtomicWrite(path, encode)
	result := model.ExportResult{
		Type:      fileType,
		Path:      path,
		Success:   err == nil,
		Timestamp: time.Now(),
	}
	if err != nil {
		result.Error = err.Error()
		fmt.Printf("❌ Export to %s failed: %v\n", path, err)
	} else {
		result.RecordCount = len(rows)
		fmt.Printf("✅ Export to file successful: %d records exported to %s\n", len(rows), path)
	}
	return result
}

// exportToCSV exports rows to CSV format
func exportToCSV(w io.Writer, rows []model.BrandAggregate) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(reportHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Brands,
			strconv.FormatFloat(r.AvgNutriscore, 'f', -1, 64),
			strconv.FormatInt(r.ProductCount, 10),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// exportToJSON exports rows to JSON format with an export_info envelope
func (em *ExportManager) exportToJSON(w io.Writer, rows []model.BrandAggregate) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	exportData := map[string]interface{}{
		"export_info": map[string]interface{}{
			"run_id":       em.RunID,
			"exported_at":  time.Now().UTC(),
			"record_count": len(rows),
			"export_type":  "brand_report",
		},
		"data": rows,
	}
	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// exportToXLSX exports rows to a single-sheet workbook
func exportToXLSX(w io.Writer, rows []model.BrandAggregate) error {
	const sheet = "Brands"

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	header := []interface{}{reportHeader[0], reportHeader[1], reportHeader[2]}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{r.Brands, r.AvgNutriscore, r.ProductCount}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(sheet, "A", "A", 40); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// exportToDatabase stores rows in the run store
func (em *ExportManager) exportToDatabase(rows []model.BrandAggregate) model.ExportResult {
	err := em.Recorder.SaveBrandResults(em.RunID, rows)
	result := model.ExportResult{
		Type:      "database",
		Path:      "brand_results",
		Success:   err == nil,
		Timestamp: time.Now(),
	}
	if err != nil {
		result.Error = err.Error()
		fmt.Printf("❌ Export to database failed: %v\n", err)
	} else {
		result.RecordCount = len(rows)
		fmt.Printf("✅ Export to database successful: %d records exported\n", len(rows))
	}
	return result
}
