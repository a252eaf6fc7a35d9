package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputManager handles output file organization and path management
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// CreateRunOutputDir creates a directory for a run's outputs
func (om *OutputManager) CreateRunOutputDir(runID string) (string, error) {
	runDir := filepath.Join(om.BaseOutputDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run output directory: %w", err)
	}

	return runDir, nil
}

// GetOutputFilePath generates a full path for an output file of a run
func (om *OutputManager) GetOutputFilePath(runID, fileName string) (string, error) {
	runDir, err := om.CreateRunOutputDir(runID)
	if err != nil {
		return "", err
	}

	// Clean the filename to remove any path separators
	return filepath.Join(runDir, filepath.Base(fileName)), nil
}

// IsPlainFileName reports whether name is a bare file name that stays inside
// the directory it is joined to
func IsPlainFileName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && name == filepath.Base(name)
}

// GetDownloadURL generates a download URL for a run's report
func (om *OutputManager) GetDownloadURL(runID string) string {
	return fmt.Sprintf("/api/v1/download/%s", runID)
}

// GetFileType determines the export type based on extension
func GetFileType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".parquet":
		return "parquet"
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	case ".xlsx":
		return "xlsx"
	default:
		return "unknown"
	}
}

// AtomicWrite writes target through a temp file in the same directory and renames it
// into place, so readers see either the previous content or the complete new one.
// An existing directory at target (a part-file style output) is replaced.
func AtomicWrite(target string, write func(f *os.File) error) (err error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Chmod(0644); err != nil {
		return fmt.Errorf("failed to set mode on %s: %w", tmp.Name(), err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}

	if info, statErr := os.Stat(target); statErr == nil && info.IsDir() {
		if err = os.RemoveAll(target); err != nil {
			return fmt.Errorf("failed to replace directory %s: %w", target, err)
		}
	}
	if err = os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

// GetFileSize returns the size of a file in bytes
func GetFileSize(filePath string) (int64, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return 0, err
	}
	return fileInfo.Size(), nil
}
