// Package query drives a grid from a dataset according to a search state
// that is kept in a shareable location token.
package query

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidToken is returned for a location token that does not decode to
// a search state.
var ErrInvalidToken = errors.New("invalid search token")

// Mode is how the search text is applied.
type Mode int

const (
	// TextFilter applies the text as the grid's substring filter.
	TextFilter Mode = iota
	// RawQuery appends the text as a condition of the dataset query.
	RawQuery
)

// String returns the mode name.
func (m Mode) String() string {
	if m == RawQuery {
		return "raw"
	}

	return "text"
}

// ParseMode parses a mode name as returned by String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "text", "":
		return TextFilter, nil
	case "raw", "sql":
		return RawQuery, nil
	default:
		return TextFilter, fmt.Errorf("unknown search mode %q", s)
	}
}

// SearchState is the persisted form of a search.
type SearchState struct {
	Query string
	Mode  Mode
}

type wireState struct {
	Query string `json:"query"`
	SQL   bool   `json:"sql"`
}

// MarshalJSON encodes the state as {"query": ..., "sql": ...}.
func (s SearchState) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireState{Query: s.Query, SQL: s.Mode == RawQuery})
}

// UnmarshalJSON decodes the {"query": ..., "sql": ...} form.
func (s *SearchState) UnmarshalJSON(data []byte) error {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	s.Query = w.Query
	s.Mode = TextFilter

	if w.SQL {
		s.Mode = RawQuery
	}

	return nil
}

// Encode returns the state's location token: padded standard base64 of its
// JSON form.
func (s SearchState) Encode() string {
	data, err := json.Marshal(s)
	if err != nil {
		// wireState always marshals.
		panic(err)
	}

	return base64.StdEncoding.EncodeToString(data)
}

// Decode parses a location token. A leading "#" is ignored.
func Decode(token string) (SearchState, error) {
	token = strings.TrimPrefix(token, "#")

	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return SearchState{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var s SearchState
	if err := json.Unmarshal(data, &s); err != nil {
		return SearchState{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return s, nil
}
