package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInt32(t *testing.T) {
	tests := []struct {
		in   string
		want int32
		ok   bool
	}{
		{"3", 3, true},
		{" 12 ", 12, true},
		{"-7", -7, true},
		{"+4", 4, true},
		{"3.7", 3, true},
		{"-3.7", -3, true},
		{"5.", 5, true},
		{".5", 0, true},
		{"", 0, false},
		{"   ", 0, false},
		{".", 0, false},
		{"-", 0, false},
		{"abc", 0, false},
		{"1e3", 0, false},
		{"12abc", 0, false},
		{"0x10", 0, false},
		{"2147483647", 2147483647, true},
		{"2147483648", 0, false},
		{"-2147483649", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseInt32(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTrimOr(t *testing.T) {
	s := func(v string) *string { return &v }

	assert.Equal(t, "def", TrimOr(nil, "def"))
	assert.Equal(t, "def", TrimOr(s(""), "def"))
	assert.Equal(t, "def", TrimOr(s(" \t "), "def"))
	assert.Equal(t, "Danone", TrimOr(s("  Danone "), "def"))
}

func TestNullIfEmpty(t *testing.T) {
	assert.Nil(t, NullIfEmpty(""))
	got := NullIfEmpty(" x")
	require.NotNil(t, got)
	assert.Equal(t, " x", *got)
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Minute, ParseDuration(""))
	assert.Equal(t, 5*time.Minute, ParseDuration("soon"))
	assert.Equal(t, 90*time.Second, ParseDuration("90s"))
}

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()

	t.Run("creates parents and overwrites", func(t *testing.T) {
		target := filepath.Join(dir, "nested", "out.bin")
		require.NoError(t, AtomicWrite(target, func(f *os.File) error {
			_, err := f.WriteString("first")
			return err
		}))
		require.NoError(t, AtomicWrite(target, func(f *os.File) error {
			_, err := f.WriteString("second")
			return err
		}))

		data, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, "second", string(data))
	})

	t.Run("output is readable by others", func(t *testing.T) {
		target := filepath.Join(dir, "shared.bin")
		require.NoError(t, AtomicWrite(target, func(f *os.File) error {
			_, err := f.WriteString("data")
			return err
		}))

		info, err := os.Stat(target)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
	})

	t.Run("failed write keeps previous content and no temp files", func(t *testing.T) {
		target := filepath.Join(dir, "keep.bin")
		require.NoError(t, os.WriteFile(target, []byte("old"), 0644))

		err := AtomicWrite(target, func(f *os.File) error {
			_, _ = f.WriteString("partial")
			return errors.New("disk full")
		})
		require.Error(t, err)

		data, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, "old", string(data))

		matches, err := filepath.Glob(filepath.Join(dir, ".keep.bin.tmp-*"))
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("replaces directory output", func(t *testing.T) {
		target := filepath.Join(dir, "report.parquet")
		require.NoError(t, os.MkdirAll(target, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(target, "part-00000.parquet"), []byte("x"), 0644))

		require.NoError(t, AtomicWrite(target, func(f *os.File) error {
			_, err := f.WriteString("file")
			return err
		}))

		info, err := os.Stat(target)
		require.NoError(t, err)
		assert.False(t, info.IsDir())
	})
}

func TestOutputManager(t *testing.T) {
	om := NewOutputManager(t.TempDir())

	path, err := om.GetOutputFilePath("run-1", "../escape/brands.parquet")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(om.BaseOutputDir, "run-1", "brands.parquet"), path)
	assert.Equal(t, "/api/v1/download/run-1", om.GetDownloadURL("run-1"))

	assert.Equal(t, "parquet", GetFileType("a.PARQUET"))
	assert.Equal(t, "xlsx", GetFileType("a.xlsx"))
	assert.Equal(t, "unknown", GetFileType("a.txt"))
}

func TestIsPlainFileName(t *testing.T) {
	for _, name := range []string{"afterData.parquet", "brands.csv", "report..xlsx"} {
		assert.True(t, IsPlainFileName(name), name)
	}
	for _, name := range []string{"", ".", "..", "../precious", "/tmp/out.parquet", "sub/out.csv", `..\out.csv`} {
		assert.False(t, IsPlainFileName(name), name)
	}
}
