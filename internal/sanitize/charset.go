package sanitize

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Charset names reported by DecodeText
const (
	EncodingUTF8        = "utf-8"
	EncodingLatin1      = "latin-1"
	EncodingWindows1252 = "windows-1252"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeText decodes raw provider file bytes into a string, returning the
// charset that succeeded. Decoding tries UTF-8 first, then Latin-1, then
// Windows-1252; the provider systems do not agree on an encoding. A UTF-8
// byte order mark is dropped; everything downstream is plain UTF-8.
func DecodeText(raw []byte) (string, string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	if utf8.Valid(raw) {
		return string(raw), EncodingUTF8, nil
	}

	fallbacks := []struct {
		name string
		enc  encoding.Encoding
	}{
		{EncodingLatin1, charmap.ISO8859_1},
		{EncodingWindows1252, charmap.Windows1252},
	}
	for _, fallback := range fallbacks {
		decoded, _, err := transform.Bytes(fallback.enc.NewDecoder(), raw)
		if err != nil {
			continue
		}
		return string(decoded), fallback.name, nil
	}

	return "", "", fmt.Errorf("no supported charset decodes the content")
}
