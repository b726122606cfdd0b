package dataset

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Status is the outcome of one test execution.
type Status string

const (
	StatusOK       Status = "OK"
	StatusFailed   Status = "FAILED"
	StatusOOM      Status = "OOM"
	StatusCrashed  Status = "CRASHED"
	StatusTimedOut Status = "TIMED_OUT"
)

// Record is one test execution as stored in the main table. Fields declared
// by the descriptor's extra columns are kept in Extra.
type Record struct {
	Name         string         `mapstructure:"name" json:"name"`
	ElapsedTime  float64        `mapstructure:"elapsed_time" json:"elapsed_time"`
	ExitCode     int64          `mapstructure:"exit_code" json:"exit_code"`
	Status       Status         `mapstructure:"status" json:"status"`
	StacktraceID *string        `mapstructure:"stacktrace_id" json:"stacktrace_id"`
	HasTrace     bool           `mapstructure:"has_trace" json:"has_trace"`
	Extra        map[string]any `mapstructure:",remain" json:"extra,omitempty"`
}

// DecodeRecord converts a main table row into a Record. SQLite stores
// booleans as integers, so decoding is weakly typed.
func DecodeRecord(row Row) (*Record, error) {
	var rec Record

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &rec,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating decoder: %w", err)
	}

	if err := dec.Decode(row.Values); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}

	return &rec, nil
}
