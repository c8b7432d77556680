package lineproto

import "strings"

// Line composes one line protocol record from a prefix and ordered fields.
type Line struct {
	prefix string
	fields []Field
}

// NewLine creates a Line with a literal prefix. The prefix is written as-is;
// build it with Prefix to get correct escaping.
func NewLine(prefix string, fields ...Field) *Line {
	return &Line{prefix: prefix, fields: fields}
}

// Add appends a field. Fields render in the order they were added.
func (l *Line) Add(f Field) {
	l.fields = append(l.fields, f)
}

// Prefix returns the literal line prefix.
func (l *Line) Prefix() string {
	return l.prefix
}

// Fields returns the number of configured fields.
func (l *Line) Fields() int {
	return len(l.fields)
}

// Render builds the record: prefix, every field that has state joined as
// key=value (a space before the first, commas between the rest), the
// already-formatted timestamp suffix and a trailing newline.
//
// A line without any renderable field still yields prefix+timestamp+"\n".
// Render has no side effects; equal sensor states and suffix produce
// identical output.
func (l *Line) Render(timestamp string) string {
	var b strings.Builder
	b.Grow(len(l.prefix) + len(timestamp) + 16*len(l.fields) + 1)
	b.WriteString(l.prefix)

	sep := byte(' ')
	for _, f := range l.fields {
		if !f.HasState() {
			continue
		}
		b.WriteByte(sep)
		b.WriteString(f.Identifier())
		b.WriteByte('=')
		f.Render(&b)
		sep = ','
	}

	b.WriteString(timestamp)
	b.WriteByte('\n')
	return b.String()
}
