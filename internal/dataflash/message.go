package dataflash

import (
	"encoding/binary"
	"math"
)

// Message is one decoded log record with named, typed field access.
type Message struct {
	format *Format
	values []any // int64, uint64, float64 or string per column
}

// Name returns the message type name, e.g. "AHR2" or "IMU".
func (m *Message) Name() string {
	return m.format.Name
}

// Type returns the numeric message type tag.
func (m *Message) Type() uint8 {
	return m.format.Type
}

// Columns returns the field names in wire order.
func (m *Message) Columns() []string {
	return m.format.Columns
}

func (m *Message) value(column string) (any, bool) {
	for i, c := range m.format.Columns {
		if c == column {
			return m.values[i], true
		}
	}
	return nil, false
}

// Float returns a numeric field coerced to float64.
func (m *Message) Float(column string) (float64, bool) {
	v, ok := m.value(column)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// Int returns an integer field. Scaled and floating-point fields are
// not convertible through Int.
func (m *Message) Int(column string) (int64, bool) {
	v, ok := m.value(column)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

// String returns a character-array field with trailing NULs stripped.
func (m *Message) String(column string) (string, bool) {
	v, ok := m.value(column)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// TimeUS returns the onboard monotonic clock field, in microseconds
// since device boot, when the message carries one.
func (m *Message) TimeUS() (uint64, bool) {
	v, ok := m.value("TimeUS")
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case uint64:
		return n, true
	case int64:
		if n >= 0 {
			return uint64(n), true
		}
	}
	return 0, false
}

// decodeValue decodes one field according to its format character.
// Little-endian throughout; c/C/e/E carry two implied decimals and L
// is a degree value scaled by 1e7.
func decodeValue(char byte, raw []byte) any {
	switch char {
	case 'b':
		return int64(int8(raw[0]))
	case 'B', 'M':
		return uint64(raw[0])
	case 'h':
		return int64(int16(binary.LittleEndian.Uint16(raw)))
	case 'H':
		return uint64(binary.LittleEndian.Uint16(raw))
	case 'i':
		return int64(int32(binary.LittleEndian.Uint32(raw)))
	case 'I':
		return uint64(binary.LittleEndian.Uint32(raw))
	case 'q':
		return int64(binary.LittleEndian.Uint64(raw))
	case 'Q':
		return binary.LittleEndian.Uint64(raw)
	case 'f':
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(raw)))
	case 'd':
		return math.Float64frombits(binary.LittleEndian.Uint64(raw))
	case 'c':
		return float64(int16(binary.LittleEndian.Uint16(raw))) / 100
	case 'C':
		return float64(binary.LittleEndian.Uint16(raw)) / 100
	case 'e':
		return float64(int32(binary.LittleEndian.Uint32(raw))) / 100
	case 'E':
		return float64(binary.LittleEndian.Uint32(raw)) / 100
	case 'L':
		return float64(int32(binary.LittleEndian.Uint32(raw))) / 1e7
	case 'n', 'N', 'Z':
		return cString(raw)
	}
	return nil
}

func decodeMessage(f *Format, payload []byte) *Message {
	values := make([]any, len(f.chars))
	off := 0
	for i, char := range f.chars {
		n := fieldSizes[char]
		values[i] = decodeValue(char, payload[off:off+n])
		off += n
	}
	return &Message{format: f, values: values}
}
