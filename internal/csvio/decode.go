// Package csvio reads the delimited exports the two feeds arrive as:
// encoding detection, delimiter sniffing and row streaming.
package csvio

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// BOM constants
var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DetectAndDecode detects the encoding of the input data, strips any BOM,
// and returns the decoded UTF-8 bytes along with the detected encoding name.
// Excel exports commonly carry a UTF-8 BOM or are Windows-1252.
func DetectAndDecode(data []byte) ([]byte, string, error) {
	if len(data) == 0 {
		return data, "utf-8", nil
	}
	if bytes.HasPrefix(data, bomUTF8) {
		return data[3:], "utf-8-bom", nil
	}
	if bytes.HasPrefix(data, bomUTF16LE) {
		decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return nil, "", err
		}
		return decoded, "utf-16le", nil
	}
	if bytes.HasPrefix(data, bomUTF16BE) {
		decoded, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Bytes(data)
		if err != nil {
			return nil, "", err
		}
		return decoded, "utf-16be", nil
	}
	if utf8.Valid(data) {
		return data, "utf-8", nil
	}
	// Windows-1252 maps every byte, so this never fails.
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, "", err
	}
	return decoded, "windows-1252", nil
}

// mojibakeMarkers are the telltale characters of UTF-8 text that was decoded
// once too many as Windows-1252: "é" -> "Ã©", "à" -> "Ã ", "œ" -> "Å“".
var mojibakeMarkers = []string{"Ã", "Â", "â€", "Å"}

func markerCount(s string) int {
	n := 0
	for _, m := range mojibakeMarkers {
		n += strings.Count(s, m)
	}
	return n
}

// RepairMojibake undoes one round of double encoding: the value is re-encoded
// to Windows-1252 bytes and re-read as UTF-8. The repaired text is kept only
// when it is valid UTF-8 and strictly reduces the marker count; otherwise the
// original value is returned untouched.
func RepairMojibake(s string) string {
	before := markerCount(s)
	if before == 0 {
		return s
	}
	raw, err := charmap.Windows1252.NewEncoder().String(s)
	if err != nil {
		return s
	}
	if !utf8.ValidString(raw) {
		return s
	}
	if markerCount(raw) >= before {
		return s
	}
	return raw
}
