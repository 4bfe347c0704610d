package refdata

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"rebatedesk/internal"
)

// LoadReferenceRowsCSV reads a reference dataset from a headered CSV file.
// Header names are trimmed and lower-cased; cell values are trimmed but kept
// verbatim otherwise.
func LoadReferenceRowsCSV(path string) ([]internal.ReferenceRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: no header row", path)
	}

	headers := normalizeHeaders(records[0])
	rows := make([]internal.ReferenceRow, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(internal.ReferenceRow, len(headers))
		for i, h := range headers {
			if h == "" || i >= len(record) {
				continue
			}
			row[h] = strings.TrimSpace(record[i])
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// LoadReferenceRowsXLSX reads a reference dataset from the named sheet of a
// spreadsheet. An empty sheet name selects the first sheet.
func LoadReferenceRowsXLSX(path, sheet string) ([]internal.ReferenceRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q of %s: %w", sheet, path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: sheet %q has no header row", path, sheet)
	}

	headers := normalizeHeaders(records[0])
	rows := make([]internal.ReferenceRow, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(internal.ReferenceRow, len(headers))
		for i, h := range headers {
			if h == "" || i >= len(record) {
				continue
			}
			row[h] = strings.TrimSpace(record[i])
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// LoadCodeSetCSV reads one column of a headered CSV file into a set of
// product codes. Blank cells are dropped; codes are lower-cased when toLower
// is set so later membership checks can be case-insensitive.
func LoadCodeSetCSV(path string, column int, toLower bool) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: no header row", path)
	}

	seen := map[string]struct{}{}
	codes := make([]string, 0, len(records)-1)
	for _, record := range records[1:] {
		if column >= len(record) {
			continue
		}
		code := strings.TrimSpace(record[column])
		if code == "" {
			continue
		}
		if toLower {
			code = strings.ToLower(code)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

func normalizeHeaders(record []string) []string {
	headers := make([]string, len(record))
	for i, h := range record {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return headers
}
