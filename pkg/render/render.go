// Package render turns raw record values into their display form.
package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/docker/go-units"
)

// Renderer is one of the closed set of cell renderers.
type Renderer int

const (
	// None displays the raw value.
	None Renderer = iota
	// Time displays seconds as [[h:]m:]s.
	Time
	// FileSize displays a byte count with binary prefixes.
	FileSize
	// Ellipsis cuts long strings.
	Ellipsis
)

// Mode selects between the display form and the raw value.
type Mode int

const (
	Display Mode = iota
	Raw
)

// EllipsisLimit is the longest string the ellipsis renderer leaves intact.
const EllipsisLimit = 70

var names = map[Renderer]string{
	None:     "none",
	Time:     "time",
	FileSize: "filesize",
	Ellipsis: "ellipsis",
}

// Resolve maps a descriptor renderer name to a Renderer. Names match
// exactly; unknown and empty names resolve to None.
func Resolve(name string) Renderer {
	for r, n := range names {
		if n == name {
			return r
		}
	}

	return None
}

// String returns the registry name of the renderer.
func (r Renderer) String() string {
	if n, ok := names[r]; ok {
		return n
	}

	return names[None]
}

// MarshalText implements encoding.TextMarshaler.
func (r Renderer) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Renderer) UnmarshalText(text []byte) error {
	*r = Resolve(string(text))

	return nil
}

// Render applies the renderer to v. Raw mode returns v unchanged, as does
// any value the renderer cannot interpret.
func (r Renderer) Render(v any, mode Mode) any {
	if mode == Raw || v == nil {
		return v
	}

	switch r {
	case Time:
		if f, ok := toFloat(v); ok {
			return FormatTime(f, false)
		}
	case FileSize:
		if f, ok := toFloat(v); ok {
			return units.BytesSize(f)
		}
	case Ellipsis:
		if s, ok := v.(string); ok {
			return Truncate(s)
		}
	}

	return v
}

// FormatTime renders elapsed seconds as [[h:]m:]s with seconds truncated to
// three decimals. Hours are split out only when showHours is set and at
// least one hour elapsed; minutes are shown when non-zero or when hours are.
func FormatTime(seconds float64, showHours bool) string {
	secs := TruncateDigits(math.Mod(seconds, 60), 3)

	var hours, minutes int64
	if showHours {
		hours = int64(math.Floor(seconds / 3600))
		minutes = int64(math.Floor(math.Mod(seconds/60, 60)))
	} else {
		minutes = int64(math.Floor(seconds / 60))
	}

	out := strconv.FormatFloat(secs, 'f', -1, 64)

	if minutes > 0 || hours > 0 {
		out = strconv.FormatInt(minutes, 10) + ":" + out
	}

	if hours > 0 {
		out = strconv.FormatInt(hours, 10) + ":" + out
	}

	return out
}

// Truncate cuts s to EllipsisLimit-1 runes followed by "…" when it is
// longer than EllipsisLimit runes.
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= EllipsisLimit {
		return s
	}

	return string([]rune(s)[:EllipsisLimit-1]) + "…"
}

// TruncateDigits drops the decimals of x past the given count, rounding
// toward zero. It cuts the shortest decimal form of x, so 59.999 keeps
// its digits and 9999.9999999 never becomes 10000.
func TruncateDigits(x float64, digits int) float64 {
	s := strconv.FormatFloat(x, 'f', -1, 64)

	whole, frac, ok := strings.Cut(s, ".")
	if !ok || len(frac) <= digits {
		return x
	}

	if digits > 0 {
		whole += "." + frac[:digits]
	}

	v, err := strconv.ParseFloat(whole, 64)
	if err != nil {
		return math.Trunc(x)
	}

	return v
}

// Percent renders n/total as a percentage truncated to two decimals.
func Percent(n, total int64) string {
	if total == 0 {
		return "0%"
	}

	v := TruncateDigits(float64(n)*100/float64(total), 2)

	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)

		return f, err == nil
	case fmt.Stringer:
		f, err := strconv.ParseFloat(x.String(), 64)

		return f, err == nil
	}

	return 0, false
}
