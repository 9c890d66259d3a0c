package importer

// streaming.go wraps file readers to catch common input problems without
// loading the whole file first:
//
//   - BOMSkippingReader: removes the UTF-8 BOM (0xEF 0xBB 0xBF) written by
//     Windows programs so it does not end up in the first header name
//   - UTF8Validator: fails on invalid UTF-8, which almost always means the
//     file was saved in another encoding (cp949, euc-kr, ...)
//   - SizeLimitReader: counts bytes and fails past the configured limit
//
// Use wrapUTF8 to apply BOM skipping and validation in the right order.

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// ErrInvalidUTF8 is returned by UTF8Validator on the first invalid sequence.
var ErrInvalidUTF8 = errors.New("invalid UTF-8")

// BOMSkippingReader wraps an io.Reader and skips the UTF-8 BOM if present.
type BOMSkippingReader struct {
	reader     io.Reader
	bomChecked bool
	buf        [3]byte
	pending    []byte
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader. On the first read, it checks for and skips the BOM.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.bomChecked {
		r.bomChecked = true

		n, err := io.ReadFull(r.reader, r.buf[:])
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
		if n == 3 && r.buf[0] == 0xEF && r.buf[1] == 0xBB && r.buf[2] == 0xBF {
			n = 0
		}
		r.pending = r.buf[:n]
		if err == io.EOF {
			copied := copy(p, r.pending)
			r.pending = r.pending[copied:]
			if len(r.pending) > 0 {
				return copied, nil
			}
			return copied, io.EOF
		}
	}

	// Return any remaining buffered data first
	if len(r.pending) > 0 {
		copied := copy(p, r.pending)
		r.pending = r.pending[copied:]
		return copied, nil
	}

	return r.reader.Read(p)
}

// UTF8Validator wraps an io.Reader and fails with ErrInvalidUTF8 as soon as
// the stream contains a byte sequence that is not valid UTF-8. Multi-byte
// runes split across reads are carried over to the next call.
type UTF8Validator struct {
	reader io.Reader
	offset int64

	// Leftover bytes from previous read that may form a multi-byte sequence
	pending []byte
	err     error
}

// NewUTF8Validator creates a new streaming UTF-8 validator.
func NewUTF8Validator(r io.Reader) *UTF8Validator {
	return &UTF8Validator{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (v *UTF8Validator) Read(p []byte) (int, error) {
	if v.err != nil {
		return 0, v.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) < utf8.UTFMax {
		return 0, io.ErrShortBuffer
	}

	offset := copy(p, v.pending)
	v.pending = v.pending[:0]

	n, err := v.reader.Read(p[offset:])
	n += offset
	atEOF := err == io.EOF

	valid := v.validate(p[:n], atEOF)
	if v.err != nil {
		return valid, v.err
	}
	if valid == 0 && n > 0 && err == nil {
		// Only a partial rune so far; keep reading.
		return v.Read(p)
	}
	return valid, err
}

// validate returns the number of leading bytes of data that are complete,
// valid UTF-8. An incomplete trailing rune is saved to pending unless atEOF.
func (v *UTF8Validator) validate(data []byte, atEOF bool) int {
	for read := 0; read < len(data); {
		if data[read] < utf8.RuneSelf {
			read++
			continue
		}
		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
			if !atEOF && !utf8.FullRune(data[read:]) {
				v.pending = append(v.pending, data[read:]...)
				v.offset += int64(read)
				return read
			}
			v.err = fmt.Errorf("%w at byte %d", ErrInvalidUTF8, v.offset+int64(read))
			v.offset += int64(read)
			return read
		}
		read += size
	}
	v.offset += int64(len(data))
	return len(data)
}

// SizeLimitReader counts bytes read and fails with ErrFileTooLarge once more
// than Limit bytes have been read. A zero Limit disables the check.
type SizeLimitReader struct {
	reader    io.Reader
	BytesRead int64
	Limit     int64
}

// NewSizeLimitReader creates a size-limited counting reader.
func NewSizeLimitReader(r io.Reader, limit int64) *SizeLimitReader {
	return &SizeLimitReader{reader: r, Limit: limit}
}

// Read implements io.Reader.
func (r *SizeLimitReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	if r.Limit > 0 && r.BytesRead > r.Limit {
		return n, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, r.Limit)
	}
	return n, err
}

// wrapUTF8 strips a BOM and validates the remaining stream.
// The BOM must be stripped first so the validator never sees it split.
func wrapUTF8(r io.Reader) io.Reader {
	return NewUTF8Validator(NewBOMSkippingReader(r))
}
