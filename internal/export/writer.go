package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Format is the file format of a generated artifact.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts csv or xlsx; blank means csv.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", domain.ValidationError("export.format", "unsupported format %q", raw)
	}
}

func (f Format) contentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// File is a generated download.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// sheetWriter receives rows in order and renders them on close.
type sheetWriter interface {
	Write(row []string) error
	Close() ([]byte, error)
}

func newSheetWriter(format Format, sheet string) (sheetWriter, error) {
	if format == FormatXLSX {
		return newXLSXWriter(sheet)
	}
	buf := &bytes.Buffer{}
	return &csvWriter{buf: buf, w: csv.NewWriter(buf)}, nil
}

type csvWriter struct {
	buf *bytes.Buffer
	w   *csv.Writer
}

func (c *csvWriter) Write(row []string) error {
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

func (c *csvWriter) Close() ([]byte, error) {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return c.buf.Bytes(), nil
}

// xlsxWriter streams rows into the first sheet of a new workbook.
type xlsxWriter struct {
	file   *excelize.File
	stream *excelize.StreamWriter
	row    int
}

func newXLSXWriter(sheet string) (*xlsxWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("name sheet: %w", err)
	}
	stream, err := f.NewStreamWriter(sheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open sheet stream: %w", err)
	}
	return &xlsxWriter{file: f, stream: stream}, nil
}

func (x *xlsxWriter) Write(row []string) error {
	x.row++
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	values := make([]any, len(row))
	for i, v := range row {
		values[i] = v
	}
	if err := x.stream.SetRow(cell, values); err != nil {
		return fmt.Errorf("write xlsx row %d: %w", x.row, err)
	}
	return nil
}

func (x *xlsxWriter) Close() ([]byte, error) {
	defer func() { _ = x.file.Close() }()
	if err := x.stream.Flush(); err != nil {
		return nil, fmt.Errorf("flush xlsx: %w", err)
	}
	buf, err := x.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func render(format Format, sheet string, rows [][]string) ([]byte, error) {
	w, err := newSheetWriter(format, sheet)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	return w.Close()
}
