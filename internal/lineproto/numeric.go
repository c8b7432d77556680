package lineproto

import (
	"math"
	"strconv"
	"strings"
)

// DefaultAccuracyDecimals is the number of decimals used by float fields
// when none is configured.
const DefaultAccuracyDecimals = 4

// NumberFormat selects how a numeric field value is written.
type NumberFormat int

const (
	// FormatFloat writes a decimal with a fixed number of digits after the point.
	FormatFloat NumberFormat = iota

	// FormatInteger writes the value rounded to a signed integer with an "i" suffix.
	FormatInteger

	// FormatUnsignedInteger writes the absolute value rounded to an
	// unsigned integer with a "u" suffix.
	FormatUnsignedInteger
)

// String returns the configuration name of the format.
func (f NumberFormat) String() string {
	switch f {
	case FormatFloat:
		return "float"
	case FormatInteger:
		return "integer"
	default:
		return "unsigned_integer"
	}
}

// ParseNumberFormat selects a format from the first character of token:
// 'f' is float, 'i' is integer and anything else is unsigned integer.
// An empty token selects float, the configuration default.
func ParseNumberFormat(token string) NumberFormat {
	if token == "" {
		return FormatFloat
	}
	switch token[0] {
	case 'f':
		return FormatFloat
	case 'i':
		return FormatInteger
	default:
		return FormatUnsignedInteger
	}
}

// NumericField renders a numeric sensor in one of three number formats.
type NumericField struct {
	name     fieldName
	sensor   NumericSource
	format   NumberFormat
	decimals int
	raw      bool
}

// NewNumericField creates a field for a numeric sensor.
//
// Parameters:
//   - sensor: the value source
//   - name: explicit field key, or "" to use the sensor's object id
//   - format: number format, fixed for the lifetime of the field
//   - decimals: digits after the point for FormatFloat; negative selects the default
//   - raw: render the raw value instead of the calibrated one
func NewNumericField(sensor NumericSource, name string, format NumberFormat, decimals int, raw bool) *NumericField {
	if decimals < 0 {
		decimals = DefaultAccuracyDecimals
	}
	return &NumericField{
		name:     fieldName(EscapeIdentifier(name)),
		sensor:   sensor,
		format:   format,
		decimals: decimals,
		raw:      raw,
	}
}

// HasState implements Field. A sensor currently holding NaN, ±Inf or a value
// outside the integer range of the format reports no state.
func (f *NumericField) HasState() bool {
	if f.sensor == nil || !f.sensor.HasState() {
		return false
	}
	return representable(f.value(), f.format)
}

// Integer range bounds as float64. 2^63 and 2^64 are exact in float64.
const (
	minInt64Float  = -(1 << 63)
	maxInt64Float  = 1 << 63
	maxUint64Float = 1 << 64
)

// representable reports whether v can be written in format without
// overflowing: finite, and within int64 or uint64 range after rounding.
func representable(v float64, format NumberFormat) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	r := math.Round(v)
	switch format {
	case FormatInteger:
		return r >= minInt64Float && r < maxInt64Float
	case FormatUnsignedInteger:
		return math.Abs(r) < maxUint64Float
	default:
		return true
	}
}

// Identifier implements Field.
func (f *NumericField) Identifier() string {
	return f.name.identifier(f.sensor.ObjectID)
}

// Format returns the configured number format.
func (f *NumericField) Format() NumberFormat {
	return f.format
}

// Render implements Field.
func (f *NumericField) Render(b *strings.Builder) {
	b.WriteString(FormatNumber(f.value(), f.format, f.decimals))
}

func (f *NumericField) value() float64 {
	if f.raw {
		return f.sensor.RawState()
	}
	return f.sensor.State()
}

// FormatNumber writes v in the given format. Rounding is half away from zero.
// Integer formats clamp values beyond their range to the nearest bound.
//
//	FormatNumber(3.14159, FormatFloat, 2)           // "3.14"
//	FormatNumber(3.14159, FormatInteger, 0)         // "3i"
//	FormatNumber(-7.6, FormatUnsignedInteger, 0)    // "8u"
func FormatNumber(v float64, format NumberFormat, decimals int) string {
	switch format {
	case FormatFloat:
		return strconv.FormatFloat(roundDecimals(v, decimals), 'f', decimals, 64)
	case FormatInteger:
		r := math.Round(v)
		switch {
		case r >= maxInt64Float:
			return strconv.FormatInt(math.MaxInt64, 10) + "i"
		case r < minInt64Float:
			return strconv.FormatInt(math.MinInt64, 10) + "i"
		}
		return strconv.FormatInt(int64(r), 10) + "i"
	default:
		r := math.Round(math.Abs(v))
		if r >= maxUint64Float {
			return strconv.FormatUint(math.MaxUint64, 10) + "u"
		}
		return strconv.FormatUint(uint64(r), 10) + "u"
	}
}

// roundDecimals rounds v half away from zero at the given number of decimals.
// A negative decimals leaves v unrounded.
func roundDecimals(v float64, decimals int) float64 {
	if decimals < 0 {
		return v
	}
	scale := math.Pow(10, float64(decimals))
	scaled := v * scale
	if math.IsInf(scaled, 0) {
		return v
	}
	r := math.Round(scaled) / scale
	if r == 0 {
		// Avoid "-0.00" for small negative values.
		return 0
	}
	return r
}
