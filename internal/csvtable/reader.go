// Package csvtable tokenizes bank CSV exports into a header row and data
// rows of uniform width. It knows nothing about transactions: amounts,
// dates and merchant text are passed through untouched.
package csvtable

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrUnreadable means the content could not be decoded as text.
	ErrUnreadable = errors.New("content is not readable text")
	// ErrEmpty means no usable lines remained after discarding blanks.
	ErrEmpty = errors.New("no usable lines in content")
)

// Table is a tokenized CSV file.
type Table struct {
	Headers []string   // trimmed header fields
	Rows    [][]string // each row has exactly len(Headers) fields
	Lines   []int      // 1-based source line number per row
}

// Read tokenizes raw CSV bytes. It fails with ErrUnreadable if the bytes
// cannot be decoded as UTF-8 or Latin-1, and with ErrEmpty if nothing but
// blank lines remain. Ragged rows are padded or truncated to the header
// width, never rejected.
func Read(data []byte) (*Table, error) {
	text, err := decode(data)
	if err != nil {
		return nil, err
	}

	type numberedLine struct {
		number int
		text   string
	}

	var lines []numberedLine
	for i, raw := range splitLines(text) {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		lines = append(lines, numberedLine{number: i + 1, text: raw})
	}
	if len(lines) == 0 {
		return nil, ErrEmpty
	}

	headers := splitFields(lines[0].text)
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	t := &Table{Headers: headers}
	for _, line := range lines[1:] {
		t.Rows = append(t.Rows, fitWidth(splitFields(line.text), len(headers)))
		t.Lines = append(t.Lines, line.number)
	}
	return t, nil
}

// decode returns data as a string, accepting valid UTF-8 and falling back
// to Latin-1. NUL bytes mean the content is binary, not text.
func decode(data []byte) (string, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return "", ErrUnreadable
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", ErrUnreadable
	}
	return string(decoded), nil
}

// splitLines splits on any newline convention.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// splitFields tokenizes one line with lax RFC4180 quoting: a field may be
// wrapped in double quotes, a doubled quote inside quotes is a literal
// quote, and an unmatched opening quote runs to end of line.
func splitFields(line string) []string {
	var fields []string
	var b strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case inQuotes:
			if ch != '"' {
				b.WriteByte(ch)
				continue
			}
			if i+1 < len(line) && line[i+1] == '"' {
				b.WriteByte('"')
				i++
				continue
			}
			inQuotes = false
		case ch == '"' && b.Len() == 0:
			inQuotes = true
		case ch == ',':
			fields = append(fields, b.String())
			b.Reset()
		default:
			b.WriteByte(ch)
		}
	}
	return append(fields, b.String())
}

// fitWidth pads with empty fields or truncates so len(fields) == width.
func fitWidth(fields []string, width int) []string {
	if len(fields) > width {
		return fields[:width]
	}
	for len(fields) < width {
		fields = append(fields, "")
	}
	return fields
}
