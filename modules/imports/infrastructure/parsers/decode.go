package parsers

import (
	"bytes"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/encoding/charmap"

	"github.com/iota-uz/iota-import/modules/imports/domain/importerrs"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText rejects binary payloads and returns UTF-8 text without a BOM.
// Valid UTF-8 is text unless it is dense with control bytes; magic-number detection only
// judges non-UTF-8 input, which is then read as Windows-1252, the usual encoding of desktop
// accounting exports.
func decodeText(data []byte, format string) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return "", nil
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return "", &importerrs.ParseError{Format: format, Reason: "file contains binary data"}
	}
	if utf8.Valid(data) {
		if controlHeavy(data) {
			return "", &importerrs.ParseError{Format: format, Reason: "file contains binary data"}
		}
		return string(data), nil
	}
	if mt := mimetype.Detect(data); !isText(mt) {
		return "", &importerrs.ParseError{Format: format, Reason: "file is not text (detected " + mt.String() + ")"}
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", &importerrs.ParseError{Format: format, Reason: "unsupported text encoding", Err: err}
	}
	return string(decoded), nil
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

// controlHeavy reports whether more than one byte in a hundred is a C0 control other than
// tab, line feed, form feed or carriage return.
func controlHeavy(data []byte) bool {
	n := 0
	for _, b := range data {
		if b < 0x20 && b != '\t' && b != '\n' && b != '\f' && b != '\r' {
			n++
		}
	}
	return n*100 > len(data)
}
