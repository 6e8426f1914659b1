package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// table is a header row plus the non-empty data rows below it, each padded to
// the header width.
type table struct {
	headers []string
	rows    [][]string
}

// index maps lowercased header names to their column. The first duplicate wins.
func (t table) index() map[string]int {
	out := make(map[string]int, len(t.headers))
	for i, h := range t.headers {
		if _, ok := out[h]; !ok {
			out[h] = i
		}
	}
	return out
}

// parseTable reads .xlsx through excelize and everything else as CSV.
func parseTable(fileName string, payload []byte) (table, error) {
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case "", ".csv", ".txt":
		return parseCSV(payload)
	case ".xlsx":
		return parseExcel(payload)
	default:
		return table{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte) (table, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return table{}, fmt.Errorf("failed to read csv: %w", err)
	}
	return normalizeTable(records)
}

func parseExcel(payload []byte) (table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return table{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return table{}, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return table{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return normalizeTable(rows)
}

// normalizeTable takes the first non-blank record as the header row. Below it only
// empty lines are dropped; a line of empty cells is still a data row.
func normalizeTable(records [][]string) (table, error) {
	var headerRow []string
	var dataRows [][]string
	for _, row := range records {
		if headerRow == nil {
			if !isBlankRow(row) {
				headerRow = row
			}
			continue
		}
		if isEmptyLine(row) {
			continue
		}
		dataRows = append(dataRows, row)
	}
	if headerRow == nil {
		return table{}, errors.New("header row could not be detected")
	}

	headers := make([]string, len(headerRow))
	for i, value := range headerRow {
		headers[i] = strings.ToLower(strings.TrimSpace(value))
	}
	for i := range dataRows {
		dataRows[i] = padRow(dataRows[i], len(headers))
	}
	return table{headers: headers, rows: dataRows}, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func isEmptyLine(row []string) bool {
	return len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "")
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}
