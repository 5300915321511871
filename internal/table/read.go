package table

// read.go turns raw upload bytes into a Table.
//
// Decoding goes through golang.org/x/text so that Latin-1, Windows-1252 and
// UTF-16 exports (common for bank statements saved from spreadsheets) arrive
// as UTF-8. A UTF-8 byte-order mark is dropped by the decoder. Invalid UTF-8
// sequences become U+FFFD instead of failing the whole file.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrEmptyFile is returned when a file has no header row.
var ErrEmptyFile = errors.New("empty file")

// decoderFor maps a detected encoding name to an x/text encoding.
func decoderFor(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8", "ascii", "us-ascii", "utf-8-sig":
		return unicode.UTF8BOM, nil
	case "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM), nil
	case "iso-8859-1", "latin-1", "latin1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("encoding error: unsupported encoding %q", name)
	}
	return enc, nil
}

// Decode converts data from the named encoding to a UTF-8 string.
func Decode(data []byte, encodingName string) (string, error) {
	enc, err := decoderFor(encodingName)
	if err != nil {
		return "", err
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", fmt.Errorf("encoding error: %w", err)
	}
	return string(out), nil
}

// FirstLine returns the text up to the first line break.
func FirstLine(text string) string {
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		return text[:i]
	}
	return text
}

// Parse reads delimited text into a Table. The first non-empty record is the
// header. Ragged rows are tolerated and fitted to the header width; fully
// empty rows are skipped.
func Parse(r io.Reader, delimiter rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var header []string
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		if isEmptyRow(rec) {
			continue
		}
		if header == nil {
			header = uniqueHeaders(rec)
			continue
		}
		rows = append(rows, rec)
	}

	if header == nil {
		return nil, ErrEmptyFile
	}
	return New(header, rows), nil
}

// ParseString is Parse over an in-memory string.
func ParseString(text string, delimiter rune) (*Table, error) {
	return Parse(strings.NewReader(text), delimiter)
}

// uniqueHeaders cleans header cells and suffixes repeats with .1, .2, ...
// so every column stays addressable.
func uniqueHeaders(rec []string) []string {
	out := make([]string, len(rec))
	seen := make(map[string]int, len(rec))
	for i, h := range rec {
		name := CleanCell(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if seen[name] == 0 {
			seen[name] = 1
			out[i] = name
			continue
		}
		for n := seen[name]; ; n++ {
			cand := name + "." + strconv.Itoa(n)
			if seen[cand] == 0 {
				seen[name] = n + 1
				seen[cand] = 1
				out[i] = cand
				break
			}
		}
	}
	return out
}

// CleanCell removes spreadsheet artifacts from a header cell: surrounding
// whitespace, the Excel formula prefix (="...") and stray quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
