package query

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchState_RoundTrip(t *testing.T) {
	tests := []SearchState{
		{},
		{Query: "crash", Mode: TextFilter},
		{Query: "status = 'OK' AND exit_code <> 0", Mode: RawQuery},
		{Query: "naïve \"quoted\" ✓", Mode: RawQuery},
	}

	for _, s := range tests {
		got, err := Decode(s.Encode())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestSearchState_WireFormat(t *testing.T) {
	token := SearchState{Query: "a", Mode: RawQuery}.Encode()

	raw, err := base64.StdEncoding.DecodeString(token)
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"a","sql":true}`, string(raw))

	// Tokens written by the browser report decode the same way.
	s, err := Decode("#" + base64.StdEncoding.EncodeToString([]byte(`{"query":"x","sql":false}`)))
	require.NoError(t, err)
	assert.Equal(t, SearchState{Query: "x", Mode: TextFilter}, s)
}

func TestDecode_Invalid(t *testing.T) {
	for _, token := range []string{
		"!!!not-base64",
		base64.StdEncoding.EncodeToString([]byte("not json")),
		base64.StdEncoding.EncodeToString([]byte(`{"query": 3}`)),
	} {
		_, err := Decode(token)
		assert.ErrorIs(t, err, ErrInvalidToken, token)
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("raw")
	require.NoError(t, err)
	assert.Equal(t, RawQuery, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, TextFilter, m)

	_, err = ParseMode("regex")
	require.Error(t, err)
}
