// Package dataset materializes a run's relational snapshot and answers
// queries against it.
package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqliteHeader is the magic string every SQLite database file starts with.
var sqliteHeader = []byte("SQLite format 3\x00")

// LoadError reports a buffer that is not a usable dataset snapshot.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return "loading dataset snapshot: " + e.Err.Error()
}

func (e *LoadError) Unwrap() error { return e.Err }

// QuerySyntaxError reports a query the database engine rejected.
type QuerySyntaxError struct {
	Query string
	Err   error
}

func (e *QuerySyntaxError) Error() string {
	return fmt.Sprintf("invalid query %q: %v", e.Query, e.Err)
}

func (e *QuerySyntaxError) Unwrap() error { return e.Err }

// Row is one result row: field names in result order plus values by name.
type Row struct {
	Columns []string
	Values  map[string]any
}

// Get returns the value of a field, nil when absent.
func (r Row) Get(field string) any {
	return r.Values[field]
}

// Dataset is a read-only handle over a loaded snapshot. It is safe for
// concurrent use.
type Dataset struct {
	log  logrus.FieldLogger
	db   *gorm.DB
	path string
}

// Load materializes buf as a database and checks that it holds the main
// table. Every failure is returned as a *LoadError.
func Load(ctx context.Context, log logrus.FieldLogger, buf []byte) (*Dataset, error) {
	if !bytes.HasPrefix(buf, sqliteHeader) {
		return nil, &LoadError{Err: errors.New("not an SQLite database")}
	}

	f, err := os.CreateTemp("", "reportoor-*.db")
	if err != nil {
		return nil, &LoadError{Err: fmt.Errorf("creating temp file: %w", err)}
	}

	path := f.Name()

	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		_ = os.Remove(path)

		return nil, &LoadError{Err: fmt.Errorf("writing temp file: %w", err)}
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)

		return nil, &LoadError{Err: fmt.Errorf("closing temp file: %w", err)}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_pragma=query_only(1)"), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		_ = os.Remove(path)

		return nil, &LoadError{Err: fmt.Errorf("opening database: %w", err)}
	}

	d := &Dataset{
		log:  log.WithField("component", "dataset"),
		db:   db,
		path: path,
	}

	var count int64
	if err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM main").Scan(&count).Error; err != nil {
		_ = d.Close()

		return nil, &LoadError{Err: fmt.Errorf("probing main table: %w", err)}
	}

	d.log.WithField("records", count).
		WithField("bytes", len(buf)).
		Info("Dataset snapshot loaded")

	return d, nil
}

// Query runs a parameterized query and returns its rows in result order.
// Errors raised by the database engine are returned as *QuerySyntaxError.
func (d *Dataset) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := d.db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, classify(query, err)
	}

	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	var result []Row

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))

		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		row := Row{
			Columns: columns,
			Values:  make(map[string]any, len(columns)),
		}

		for i, col := range columns {
			row.Values[col] = values[i]
		}

		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, classify(query, err)
	}

	return result, nil
}

// Close releases the database and removes the materialized snapshot.
func (d *Dataset) Close() error {
	defer func() { _ = os.Remove(d.path) }()

	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

func classify(query string, err error) error {
	var engineErr *gosqlite.Error
	if errors.As(err, &engineErr) {
		return &QuerySyntaxError{Query: query, Err: err}
	}

	return fmt.Errorf("running query: %w", err)
}
