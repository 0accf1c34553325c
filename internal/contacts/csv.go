package contacts

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrSourceNotFound is returned when the CSV file does not exist.
var ErrSourceNotFound = errors.New("contacts source not found")

// CSVFile reads rows from a header-first CSV file.
type CSVFile struct {
	Path string
}

func (c CSVFile) Rows(ctx context.Context) ([]Row, error) {
	abs, err := filepath.Abs(c.Path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, abs)
		}
		return nil, err
	}
	defer f.Close()

	rows, err := ReadCSV(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", abs, err)
	}
	return rows, nil
}

// ReadCSV parses r. Headers and values are trimmed, a leading UTF-8 BOM is
// dropped, and columns missing from a short record are left absent.
func ReadCSV(ctx context.Context, r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var rows []Row
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if blank(rec) {
			continue
		}
		row := make(Row, len(header))
		for i, key := range header {
			if key == "" || i >= len(rec) {
				continue
			}
			row[key] = strings.TrimSpace(rec[i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
