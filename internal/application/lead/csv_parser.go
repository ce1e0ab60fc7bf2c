package lead

import (
	"fmt"
	"io"
	"strings"
)

type ParsedCSV struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// ParseCSV splits text into a header row and data rows. Quoted fields may
// contain commas, line breaks and doubled quotes. Rows whose fields are all
// empty are dropped, and every data row is padded or truncated to the header
// width.
func ParseCSV(text string) (ParsedCSV, error) {
	records := scanRecords(text)
	if len(records) < 2 {
		return ParsedCSV{}, ErrEmptyFile
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		h = strings.TrimSpace(h)
		h = strings.TrimSuffix(strings.TrimPrefix(h, `"`), `"`)
		h = strings.TrimSpace(h)
		if h == "" {
			return ParsedCSV{}, fmt.Errorf("%w: column %d", ErrInvalidHeader, i+1)
		}
		headers[i] = h
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		rows = append(rows, normalizeWidth(rec, len(headers)))
	}

	return ParsedCSV{Headers: headers, Rows: rows}, nil
}

// ParseCSVReader reads at most maxBytes from r and parses them. A
// non-positive maxBytes disables the limit.
func ParseCSVReader(r io.Reader, maxBytes int64) (ParsedCSV, error) {
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ParsedCSV{}, fmt.Errorf("read csv: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return ParsedCSV{}, ErrFileTooLarge
	}
	return ParseCSV(string(data))
}

func scanRecords(text string) [][]string {
	var (
		records  [][]string
		record   []string
		field    strings.Builder
		inQuotes bool
	)

	endField := func() {
		record = append(record, field.String())
		field.Reset()
	}
	endRecord := func() {
		endField()
		if !allEmpty(record) {
			records = append(records, record)
		}
		record = nil
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(text) && text[i+1] == '"' {
				field.WriteByte('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			endField()
		case (c == '\n' || c == '\r') && !inQuotes:
			if c == '\r' && i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			endRecord()
		default:
			field.WriteByte(c)
		}
	}
	if field.Len() > 0 || len(record) > 0 {
		endRecord()
	}

	return records
}

func allEmpty(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func normalizeWidth(row []string, width int) []string {
	out := make([]string, width)
	copy(out, row)
	return out
}
