// Package datasettest builds dataset snapshots for tests.
package datasettest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Record is one row of the main table.
type Record struct {
	Name         string
	ElapsedTime  float64
	ExitCode     int
	Status       string
	StacktraceID string
	HasTrace     bool
	Extra        map[string]any
}

// Component is one row of the crash_components table.
type Component struct {
	Category string
	Name     string
	Count    int
}

// Snapshot creates an SQLite database holding the given records and
// components and returns its bytes. Extra fields become additional columns
// of the main table; records without a value store NULL.
func Snapshot(t *testing.T, records []Record, components []Component) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "main.db")

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	extras := extraColumns(records)

	columns := []string{
		"name TEXT PRIMARY KEY",
		"elapsed_time REAL NOT NULL",
		"exit_code INTEGER NOT NULL",
		"status TEXT NOT NULL",
		"stacktrace_id TEXT",
		"has_trace INTEGER NOT NULL",
	}
	for _, col := range extras {
		columns = append(columns, col)
	}

	require.NoError(t, db.Exec(
		fmt.Sprintf("CREATE TABLE main (%s)", strings.Join(columns, ", ")),
	).Error)
	require.NoError(t, db.Exec(
		"CREATE TABLE crash_components (category TEXT, name TEXT, count INTEGER)",
	).Error)

	for _, r := range records {
		fields := []string{"name", "elapsed_time", "exit_code", "status", "stacktrace_id", "has_trace"}
		args := []any{r.Name, r.ElapsedTime, r.ExitCode, r.Status, nullable(r.StacktraceID), r.HasTrace}

		for _, col := range extras {
			if v, ok := r.Extra[col]; ok {
				fields = append(fields, col)
				args = append(args, v)
			}
		}

		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(fields)), ", ")
		require.NoError(t, db.Exec(
			fmt.Sprintf("INSERT INTO main (%s) VALUES (%s)", strings.Join(fields, ", "), placeholders),
			args...,
		).Error)
	}

	for _, c := range components {
		require.NoError(t, db.Exec(
			"INSERT INTO crash_components (category, name, count) VALUES (?, ?, ?)",
			c.Category, c.Name, c.Count,
		).Error)
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return data
}

func extraColumns(records []Record) []string {
	seen := make(map[string]struct{})

	for _, r := range records {
		for k := range r.Extra {
			seen[k] = struct{}{}
		}
	}

	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}

	sort.Strings(cols)

	return cols
}

func nullable(s string) any {
	if s == "" {
		return nil
	}

	return s
}

// Records returns a small run covering every status.
func Records() []Record {
	return []Record{
		{Name: "bin/true", ElapsedTime: 1.5, ExitCode: 0, Status: "OK",
			Extra: map[string]any{"size": 2048, "arch": "x86-64"}},
		{Name: "bin/false", ElapsedTime: 2, ExitCode: 1, Status: "FAILED",
			Extra: map[string]any{"size": 4096, "arch": "x86-64"}},
		{Name: "bin/crash", ElapsedTime: 3.25, ExitCode: 139, Status: "CRASHED",
			StacktraceID: "st-1", HasTrace: true,
			Extra: map[string]any{"size": 1024, "arch": "aarch64"}},
		{Name: "bin/loop", ElapsedTime: 60, ExitCode: -9, Status: "TIMED_OUT",
			Extra: map[string]any{"size": 512, "arch": "aarch64"}},
		{Name: "bin/hog", ElapsedTime: 10, ExitCode: -9, Status: "OOM",
			Extra: map[string]any{"size": 8192, "arch": "x86-64"}},
		{Name: "bin/echo", ElapsedTime: 0.5, ExitCode: 0, Status: "OK",
			HasTrace: true,
			Extra:    map[string]any{"size": 256, "arch": "x86-64"}},
	}
}

// Components returns crash component counts for the CRASHED category.
func Components() []Component {
	return []Component{
		{Category: "CRASHED", Name: "lifter", Count: 3},
		{Category: "CRASHED", Name: "decompiler", Count: 7},
		{Category: "CRASHED", Name: "loader", Count: 3},
		{Category: "CRASHED", Name: "abi", Count: 1},
		{Category: "TIMED_OUT", Name: "lifter", Count: 2},
	}
}
