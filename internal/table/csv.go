package table

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV parses CSV with a header row into a Table. The header names become
// the columns. Malformed input is reported as a *SchemaError.
func ReadCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &SchemaError{Reason: "file is empty, a header row is required"}
	}
	if err != nil {
		return nil, &SchemaError{Reason: "malformed header row", Err: err}
	}

	for i, h := range header {
		if !utf8.ValidString(h) {
			return nil, &SchemaError{Reason: fmt.Sprintf("column %d is not valid UTF-8", i+1)}
		}
		header[i] = strings.TrimSpace(h)
	}

	t, err := New(header...)
	if err != nil {
		return nil, err
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &SchemaError{Reason: "malformed row", Err: err}
		}
		for i, v := range record {
			if !utf8.ValidString(v) {
				line, _ := cr.FieldPos(i)
				return nil, &SchemaError{Column: header[i], Reason: fmt.Sprintf("line %d is not valid UTF-8", line)}
			}
		}
		t.rows = append(t.rows, record)
	}

	return t, nil
}

// WriteCSV writes the header followed by every row, with standard quoting.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(t.rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// CSV returns the table encoded as CSV bytes.
func (t *Table) CSV() ([]byte, error) {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
