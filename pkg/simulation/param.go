package simulation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	nerrors "neuroglitch/pkg/errors"
)

// Use selects the bound a resolved count is checked against.
type Use int

const (
	// UseRemove rejects counts that would remove every slice.
	UseRemove Use = iota
	// UseReorder allows shuffling every slice.
	UseReorder
	// UseSubstitute allows substituting every slice.
	UseSubstitute
)

// Param is a slice count given either as an absolute number or as a
// fraction of the axis length. The zero value is Count(0).
type Param struct {
	fraction bool
	count    uint64
	value    float64
}

// Count returns an absolute slice count.
func Count(n uint64) Param {
	return Param{count: n}
}

// Fraction returns a slice count relative to the axis length.
// The value is validated when the parameter is resolved.
func Fraction(f float64) Param {
	return Param{fraction: true, value: f}
}

// IsFraction reports whether p was given as a fraction.
func (p Param) IsFraction() bool {
	return p.fraction
}

// Value returns the parameter as a float: the count or the fraction.
func (p Param) Value() float64 {
	if p.fraction {
		return p.value
	}
	return float64(p.count)
}

// Resolve converts p to an absolute count for an axis of length axisLen.
// Fractions are truncated, not rounded.
func (p Param) Resolve(axisLen int, use Use) (int, error) {
	var k int
	if p.fraction {
		if math.IsNaN(p.value) || p.value < 0 || p.value > 1 {
			return 0, nerrors.New(nerrors.ErrCodeInvalidParameter,
				"fraction %v must be between 0 and 1", p.value)
		}
		k = int(p.value * float64(axisLen))
	} else {
		if p.count > uint64(math.MaxInt32) {
			return 0, nerrors.New(nerrors.ErrCodeInvalidParameter, "count %d is too large", p.count)
		}
		k = int(p.count)
	}

	switch use {
	case UseRemove:
		if k >= axisLen {
			return 0, nerrors.New(nerrors.ErrCodeInvalidParameter,
				"cannot remove %d of %d slices along the axis", k, axisLen)
		}
	default:
		if k > axisLen {
			return 0, nerrors.New(nerrors.ErrCodeInvalidParameter,
				"cannot alter %d slices, only %d available along the axis", k, axisLen)
		}
	}

	return k, nil
}

// String returns the text form: an integer for counts, a decimal for fractions.
func (p Param) String() string {
	if p.fraction {
		s := strconv.FormatFloat(p.value, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	}
	return strconv.FormatUint(p.count, 10)
}

// ParseParam parses a count or fraction. Integer literals ("5") are counts;
// literals with a decimal point or exponent ("0.3", "1.0") are fractions.
func ParseParam(s string) (Param, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Param{}, nerrors.New(nerrors.ErrCodeInvalidParameter, "empty parameter")
	}
	if !strings.ContainsAny(s, ".eE") {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Param{}, nerrors.Wrap(nerrors.ErrCodeInvalidParameter, err, "invalid count %q", s)
		}
		if n < 0 {
			return Param{}, nerrors.New(nerrors.ErrCodeInvalidParameter, "count %d must not be negative", n)
		}
		return Count(uint64(n)), nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Param{}, nerrors.Wrap(nerrors.ErrCodeInvalidParameter, err, "invalid fraction %q", s)
	}
	return Fraction(f), nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Param) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. YAML and TOML config
// values decode through it.
func (p *Param) UnmarshalText(text []byte) error {
	parsed, err := ParseParam(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalYAML writes counts and fractions as YAML numbers. Integral
// fractions such as 1.0 are written as strings so they decode as fractions.
func (p Param) MarshalYAML() (interface{}, error) {
	if !p.fraction {
		return p.count, nil
	}
	if p.value == math.Trunc(p.value) {
		return p.String(), nil
	}
	return p.value, nil
}

// MarshalJSON writes the parameter as a JSON number.
func (p Param) MarshalJSON() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalJSON accepts a JSON number or a string holding one.
func (p *Param) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return p.UnmarshalText([]byte(s))
	}
	return p.UnmarshalText(data)
}
