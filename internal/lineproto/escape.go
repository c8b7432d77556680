package lineproto

import (
	"fmt"
	"strings"
)

// identifierEscaper backslash-escapes the characters that delimit line
// protocol identifiers.
var identifierEscaper = strings.NewReplacer(
	`\`, `\\`,
	" ", `\ `,
	",", `\,`,
	"=", `\=`,
)

// stringValueEscaper escapes the characters that terminate a string field value.
var stringValueEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
)

// EscapeIdentifier escapes spaces, commas, equals signs and backslashes
// so the value can be used as a measurement name, tag key/value or field key.
func EscapeIdentifier(s string) string {
	return identifierEscaper.Replace(s)
}

// ValidateIdentifier checks that s can be used as a measurement name,
// tag key or field key. Names beginning with '_' are reserved by InfluxDB.
func ValidateIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	if s[0] == '_' {
		return fmt.Errorf("%w: %q cannot begin with '_'", ErrInvalidIdentifier, s)
	}
	if strings.ContainsAny(s, "\n\r") {
		return fmt.Errorf("%w: %q contains a line break", ErrInvalidIdentifier, s)
	}
	return nil
}

// Tag is a single line protocol tag.
type Tag struct {
	Key   string
	Value string
}

// Prefix builds the literal line prefix: the escaped measurement name
// followed by each tag as ",key=value" in the order given.
func Prefix(measurement string, tags ...Tag) string {
	var b strings.Builder
	b.WriteString(EscapeIdentifier(measurement))
	for _, t := range tags {
		b.WriteByte(',')
		b.WriteString(EscapeIdentifier(t.Key))
		b.WriteByte('=')
		b.WriteString(EscapeIdentifier(t.Value))
	}
	return b.String()
}
