package signature

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// CanonicalizationError is returned when a value contains a JSON kind the
// canonical encoder does not support (for example a raw map key of a
// non-string type, or a value that does not round-trip through JSON).
type CanonicalizationError struct {
	Reason string
}

// Error implements the error interface.
func (e *CanonicalizationError) Error() string {
	return fmt.Sprintf("canonicalization error: %s", e.Reason)
}

// Canonical produces the canonical JSON encoding of value: object keys
// sorted ascending by Unicode code point, no insignificant whitespace,
// UTF-8 encoding, numbers emitted with their original decimal
// representation, lowercase booleans, and the same treatment applied
// recursively to nested objects and arrays. This is the byte string that
// gets hashed and signed, so it must be produced the same way regardless
// of which concrete Go type feeds it — hence the detour through
// json.Marshal/Unmarshal into the generic `any` representation before
// re-encoding.
func Canonical(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, &CanonicalizationError{Reason: err.Error()}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var parsed any
	if err := dec.Decode(&parsed); err != nil {
		return nil, &CanonicalizationError{Reason: err.Error()}
	}

	var buf bytes.Buffer
	if err := encode(&buf, parsed); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")

	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}

	case json.Number:
		buf.WriteString(v.String())

	case string:
		encodeString(buf, v)

	case []any:
		buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')

	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			encodeString(buf, k)
			buf.WriteByte(':')
			if err := encode(buf, v[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')

	default:
		return &CanonicalizationError{Reason: fmt.Sprintf("unsupported JSON value kind %T", value)}
	}

	return nil
}

// encodeString writes a JSON string literal with the minimal escaping
// required (quote, backslash, control characters) and ASCII-escapes every
// non-ASCII rune so the output is byte-identical regardless of the host
// platform's default text encoding.
func encodeString(buf *bytes.Buffer, s string) {
	const hex = "0123456789abcdef"

	buf.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r < 0x20 || r > 0x7e:
			if r > 0xffff {
				// Encode as a UTF-16 surrogate pair.
				r1, r2 := utf16Pair(r)
				writeUnicodeEscape(buf, r1, hex)
				writeUnicodeEscape(buf, r2, hex)
				continue
			}
			writeUnicodeEscape(buf, uint16(r), hex)
		default:
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}

func writeUnicodeEscape(buf *bytes.Buffer, v uint16, hex string) {
	buf.WriteString(`\u`)
	buf.WriteByte(hex[(v>>12)&0xf])
	buf.WriteByte(hex[(v>>8)&0xf])
	buf.WriteByte(hex[(v>>4)&0xf])
	buf.WriteByte(hex[v&0xf])
}

func utf16Pair(r rune) (uint16, uint16) {
	const (
		surr1 = 0xd800
		surr2 = 0xdc00
	)

	r -= 0x10000
	return uint16(surr1 + (r>>10)&0x3ff), uint16(surr2 + r&0x3ff)
}
