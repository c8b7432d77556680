package lineproto

import (
	"strings"
)

// Field renders one sensor's current value as a line protocol field value.
//
// Render must only be called when HasState reports true.
type Field interface {
	// HasState reports whether the underlying sensor has ever produced a value.
	HasState() bool

	// Identifier returns the field key: the explicit name if one was set,
	// otherwise the sensor's object id.
	Identifier() string

	// Render appends the field value (without the key) to b.
	Render(b *strings.Builder)
}

// BinarySource is a sensor with an on/off state.
type BinarySource interface {
	HasState() bool
	ObjectID() string
	State() bool
}

// NumericSource is a sensor with a calibrated and a raw numeric value.
type NumericSource interface {
	HasState() bool
	ObjectID() string
	State() float64
	RawState() float64
}

// TextSource is a sensor with a processed and a raw string value.
type TextSource interface {
	HasState() bool
	ObjectID() string
	State() string
	RawState() string
}

// fieldName holds the optional explicit field key shared by all variants.
// It is stored already escaped.
type fieldName string

// identifier returns the field key, falling back to the escaped object id.
// Sensor ids come from config and may contain spaces, commas or '='.
func (n fieldName) identifier(objectID func() string) string {
	if n != "" {
		return string(n)
	}
	return EscapeIdentifier(objectID())
}

// BinaryField renders a binary sensor as 1i or 0i.
type BinaryField struct {
	name   fieldName
	sensor BinarySource
}

// NewBinaryField creates a field for a binary sensor. An empty name makes
// the field key default to the sensor's object id; a non-empty name is escaped.
func NewBinaryField(sensor BinarySource, name string) *BinaryField {
	return &BinaryField{name: fieldName(EscapeIdentifier(name)), sensor: sensor}
}

// HasState implements Field.
func (f *BinaryField) HasState() bool {
	return f.sensor != nil && f.sensor.HasState()
}

// Identifier implements Field.
func (f *BinaryField) Identifier() string {
	return f.name.identifier(f.sensor.ObjectID)
}

// Render implements Field.
func (f *BinaryField) Render(b *strings.Builder) {
	if f.sensor.State() {
		b.WriteString("1i")
	} else {
		b.WriteString("0i")
	}
}

// TextField renders a text sensor as a quoted string value.
type TextField struct {
	name   fieldName
	sensor TextSource
	raw    bool
}

// NewTextField creates a field for a text sensor. When raw is true the
// sensor's unprocessed value is rendered.
func NewTextField(sensor TextSource, name string, raw bool) *TextField {
	return &TextField{name: fieldName(EscapeIdentifier(name)), sensor: sensor, raw: raw}
}

// HasState implements Field.
func (f *TextField) HasState() bool {
	return f.sensor != nil && f.sensor.HasState()
}

// Identifier implements Field.
func (f *TextField) Identifier() string {
	return f.name.identifier(f.sensor.ObjectID)
}

// Render implements Field.
func (f *TextField) Render(b *strings.Builder) {
	value := f.sensor.State()
	if f.raw {
		value = f.sensor.RawState()
	}
	b.WriteByte('"')
	b.WriteString(stringValueEscaper.Replace(value))
	b.WriteByte('"')
}
