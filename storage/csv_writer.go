package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"review-harvester/models"
)

// utf8BOM makes spreadsheet apps detect UTF-8 for Cyrillic text.
const utf8BOM = "\ufeff"

// CSVWriter writes output rows to a CSV file with the fixed column set.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("csv: create output dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	if _, err := f.WriteString(utf8BOM); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write bom: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(models.OutputColumns); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteRows appends rows and flushes.
func (c *CSVWriter) WriteRows(rows []models.OutputRow) error {
	for _, r := range rows {
		if err := c.writer.Write(r.Record()); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		_ = c.file.Close()
		return err
	}
	return c.file.Close()
}

// WriteCSVFile writes a complete CSV file containing rows.
func WriteCSVFile(path string, rows []models.OutputRow) error {
	w, err := NewCSVWriter(path)
	if err != nil {
		return err
	}
	if err := w.WriteRows(rows); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
