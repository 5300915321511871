package validation

import (
	"bytes"
	"unicode/utf8"

	"github.com/luigidoria/Generative-AI-Data-Refiner/internal/table"
)

// EncodingSampleSize bounds how much of a file DetectEncoding inspects.
const EncodingSampleSize = 10000

// Delimiters are the candidate field separators, in tie-break order.
var Delimiters = []rune{',', ';', '\t', '|'}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DetectEncoding guesses the character encoding of data from its first
// EncodingSampleSize bytes. It never fails; inconclusive input is utf-8.
func DetectEncoding(data []byte) string {
	sample := data
	truncated := false
	if len(sample) > EncodingSampleSize {
		sample = sample[:EncodingSampleSize]
		truncated = true
	}
	if len(sample) == 0 {
		return "utf-8"
	}

	switch {
	case bytes.HasPrefix(sample, bomUTF8):
		return "utf-8-sig"
	case bytes.HasPrefix(sample, bomUTF16LE):
		return "utf-16le"
	case bytes.HasPrefix(sample, bomUTF16BE):
		return "utf-16be"
	}

	if enc, ok := detectUTF16(sample); ok {
		return enc
	}

	if isASCII(sample) {
		return "ascii"
	}

	if truncated {
		sample = trimPartialRune(sample)
	}
	if utf8.Valid(sample) {
		return "utf-8"
	}

	for _, b := range sample {
		if b >= 0x80 && b <= 0x9F {
			return "windows-1252"
		}
	}
	return "iso-8859-1"
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}

// trimPartialRune drops an incomplete multibyte sequence left at the end of
// a sample cut at a fixed offset.
func trimPartialRune(b []byte) []byte {
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if !utf8.FullRune(b[len(b)-i:]) {
				return b[:len(b)-i]
			}
			break
		}
	}
	return b
}

// detectUTF16 recognises BOM-less UTF-16 text by its NUL bytes: ASCII-range
// text in UTF-16 has a zero in every other position.
func detectUTF16(b []byte) (string, bool) {
	if len(b) < 4 {
		return "", false
	}
	var even, odd int
	for i, c := range b {
		if c != 0 {
			continue
		}
		if i%2 == 0 {
			even++
		} else {
			odd++
		}
	}
	half := len(b) / 2
	switch {
	case odd > half*3/4 && even == 0:
		return "utf-16le", true
	case even > half*3/4 && odd == 0:
		return "utf-16be", true
	}
	return "", false
}

// DetectDelimiter counts each candidate in line and returns the most
// frequent. Ties keep the earlier candidate, so a line with none of them
// yields ','.
func DetectDelimiter(line string) rune {
	best, bestCount := Delimiters[0], 0
	counts := make(map[rune]int, len(Delimiters))
	for _, r := range line {
		counts[r]++
	}
	for _, d := range Delimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

// Loaded is a decoded and parsed file together with what was detected.
type Loaded struct {
	Table     *table.Table
	Encoding  string
	Delimiter rune
}

// LoadTable detects the encoding, decodes, picks the delimiter from the
// first line and parses data into a table.
func LoadTable(data []byte) (*Loaded, error) {
	enc := DetectEncoding(data)
	out := &Loaded{Encoding: enc, Delimiter: Delimiters[0]}

	text, err := table.Decode(data, enc)
	if err != nil {
		return out, err
	}
	out.Delimiter = DetectDelimiter(table.FirstLine(text))

	t, err := table.ParseString(text, out.Delimiter)
	if err != nil {
		return out, err
	}
	out.Table = t
	return out, nil
}
