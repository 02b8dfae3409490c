// Package dataflash decodes ArduPilot dataflash binary logs. The
// format is self-describing: each record starts with a two-byte magic
// and a type tag, and FMT records (type 0x80) declare the field layout
// of every other record type, so formats are learned while streaming.
package dataflash

import (
	"bufio"
	"errors"
	"io"
)

// Reader streams typed messages out of a binary log. One corrupt,
// truncated or unknown record never fails the stream: the reader
// counts it and resynchronizes on the next header magic.
type Reader struct {
	br      *bufio.Reader
	formats map[uint8]*Format
	skipped int
}

// NewReader wraps r for streaming decode.
func NewReader(r io.Reader) *Reader {
	return &Reader{
		br:      bufio.NewReaderSize(r, 64*1024),
		formats: make(map[uint8]*Format),
	}
}

// SkippedRecords returns the number of records dropped so far because
// they were malformed, truncated or of an undeclared type.
func (r *Reader) SkippedRecords() int {
	return r.skipped
}

// Next returns the next decoded message, or io.EOF at end of stream.
// FMT records are consumed internally to learn message layouts and are
// not returned.
func (r *Reader) Next() (*Message, error) {
	for {
		if err := r.sync(); err != nil {
			return nil, err
		}

		msgType, err := r.br.ReadByte()
		if err != nil {
			return nil, endOfStream(err)
		}

		if msgType == fmtMsgType {
			if err := r.readFormat(); err != nil {
				if errors.Is(err, io.EOF) {
					return nil, io.EOF
				}
				r.skipped++
			}
			continue
		}

		f, ok := r.formats[msgType]
		if !ok {
			// No FMT seen for this type; length is unknowable, so
			// drop bytes until the next header magic.
			r.skipped++
			continue
		}

		payload := make([]byte, f.PayloadLen())
		if _, err := io.ReadFull(r.br, payload); err != nil {
			// Truncated tail record.
			r.skipped++
			return nil, io.EOF
		}

		return decodeMessage(f, payload), nil
	}
}

// sync consumes input until a record header magic has been read.
func (r *Reader) sync() error {
	for {
		b, err := r.br.ReadByte()
		if err != nil {
			return endOfStream(err)
		}
		if b != headByte1 {
			continue
		}

		b, err = r.br.ReadByte()
		if err != nil {
			return endOfStream(err)
		}
		if b == headByte2 {
			return nil
		}
		if b == headByte1 {
			// Could be the start of a real header; re-check the
			// next byte against headByte2.
			_ = r.br.UnreadByte()
		}
	}
}

func (r *Reader) readFormat() error {
	payload := make([]byte, fmtPayloadLen)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		return io.EOF
	}

	f, err := parseFormat(payload)
	if err != nil {
		return err
	}
	if f.Type != fmtMsgType {
		r.formats[f.Type] = f
	}
	return nil
}

func endOfStream(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return err
}
