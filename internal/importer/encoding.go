package importer

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// DefaultEncoding is used when Options.Encoding is empty.
const DefaultEncoding = "utf-8"

// Encodings lists the encodings offered by the front-ends.
var Encodings = []string{"utf-8", "euc-kr", "cp949"}

// lookupEncoding resolves an encoding label. A nil encoding means UTF-8,
// which is validated rather than decoded.
func lookupEncoding(label string) (encoding.Encoding, error) {
	name := strings.ToLower(strings.TrimSpace(label))
	name = strings.ReplaceAll(name, "_", "-")

	switch name {
	case "", "utf-8", "utf8", "utf-8-sig":
		return nil, nil
	case "cp949", "ms949", "uhc", "windows-949", "euc-kr", "euckr":
		// EUC-KR in x/text is the WHATWG superset, which is CP949.
		return korean.EUCKR, nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown encoding %q", ErrParse, label)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return nil, nil
	}
	return enc, nil
}

// decodeReader returns r transcoded to UTF-8 according to label.
func decodeReader(r io.Reader, label string) (io.Reader, error) {
	enc, err := lookupEncoding(label)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return wrapUTF8(r), nil
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}
