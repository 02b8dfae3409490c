package dataflash

import (
	"fmt"
	"strings"
)

const (
	headByte1 = 0xA3
	headByte2 = 0x95

	// FMT records describe the wire layout of every other record type.
	fmtMsgType    = 0x80
	fmtPayloadLen = 86 // Type, Length, Name[4], Format[16], Columns[64]
)

// fieldSizes maps a format character to its encoded size in bytes.
// The character also fixes the decode rule; see decodeValue.
var fieldSizes = map[byte]int{
	'b': 1, 'B': 1, 'M': 1,
	'h': 2, 'H': 2, 'c': 2, 'C': 2,
	'i': 4, 'I': 4, 'e': 4, 'E': 4, 'L': 4, 'f': 4, 'n': 4,
	'd': 8, 'q': 8, 'Q': 8,
	'N': 16,
	'Z': 64,
}

// Format is the layout of one message type as declared by the log
// itself. Length covers the whole record, header bytes included.
type Format struct {
	Type    uint8
	Length  uint8
	Name    string
	Columns []string
	chars   []byte
}

// PayloadLen returns the number of bytes following the 3-byte header.
func (f *Format) PayloadLen() int {
	return int(f.Length) - 3
}

func cString(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// parseFormat decodes an FMT record payload into a Format, validating
// that the declared format string is consistent with the declared
// record length and column list.
func parseFormat(payload []byte) (*Format, error) {
	if len(payload) != fmtPayloadLen {
		return nil, fmt.Errorf("FMT payload is %d bytes, want %d", len(payload), fmtPayloadLen)
	}

	f := Format{
		Type:   payload[0],
		Length: payload[1],
		Name:   cString(payload[2:6]),
	}

	chars := cString(payload[6:22])
	columns := cString(payload[22:86])
	if columns != "" {
		f.Columns = strings.Split(columns, ",")
	}

	if f.Name == "" || chars == "" {
		return nil, fmt.Errorf("FMT record for type 0x%02X has empty name or format", f.Type)
	}
	if len(chars) != len(f.Columns) {
		return nil, fmt.Errorf("%s: %d format chars for %d columns", f.Name, len(chars), len(f.Columns))
	}

	size := 3
	for i := 0; i < len(chars); i++ {
		n, ok := fieldSizes[chars[i]]
		if !ok {
			return nil, fmt.Errorf("%s: unknown format char %q", f.Name, chars[i])
		}
		size += n
	}
	if size != int(f.Length) {
		return nil, fmt.Errorf("%s: format %q sums to %d bytes, record declares %d", f.Name, chars, size, f.Length)
	}

	f.chars = []byte(chars)
	return &f, nil
}
