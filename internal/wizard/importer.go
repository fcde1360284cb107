package wizard

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// DateLayout is the wire format of every date the console sends.
const DateLayout = "2006-01-02"

// ErrUnsupportedSheet is returned for uploads that are neither CSV nor XLSX.
var ErrUnsupportedSheet = errors.New("wizard: unsupported spreadsheet format")

// Report summarizes one bulk import.
type Report struct {
	Processed int
	Errors    int
}

func (r Report) String() string {
	return fmt.Sprintf("%d processed, %d with errors", r.Processed, r.Errors)
}

// ReadTable returns the header and data rows of a CSV or XLSX upload. For
// workbooks only the first sheet is read.
func ReadTable(filename string, r io.Reader) ([]string, [][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return readCSV(r)
	case ".xlsx", ".xlsm":
		return readXLSX(r)
	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedSheet, filepath.Ext(filename))
	}
}

func readCSV(r io.Reader) ([]string, [][]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if firstLine, _, _ := bytes.Cut(raw, []byte("\n")); bytes.Count(firstLine, []byte(";")) > bytes.Count(firstLine, []byte(",")) {
		reader.Comma = ';'
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}

func readXLSX(r io.Reader) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, nil
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	return rows[0], rows[1:], nil
}

// Import parses a spreadsheet into the step's rows. Rows that fail to parse
// are counted and left out; the result replaces the step's rows entirely.
func (s *LineItemStep[R]) Import(filename string, r io.Reader) (Draft, Report, error) {
	header, records, err := ReadTable(filename, r)
	if err != nil {
		return Draft{}, Report{}, err
	}
	index := s.headerIndex(header)

	var report Report
	d := Draft{Rows: []map[string]string{}}
	for _, record := range records {
		if blankRecord(record) {
			continue
		}
		report.Processed++
		cells := make(map[string]string, len(s.Columns))
		for _, c := range s.Columns {
			if pos, ok := index[c.Name]; ok && pos < len(record) {
				cells[c.Name] = record[pos]
			}
		}
		normalized, err := s.normalizeRow(cells, true)
		if err == nil {
			_, err = s.Build(normalized)
		}
		if err != nil {
			report.Errors++
			continue
		}
		d.Rows = append(d.Rows, normalized)
	}
	return d, report, nil
}

func (s *LineItemStep[R]) headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(s.Columns))
	for pos, h := range header {
		key := headerKey(h)
		for _, c := range s.Columns {
			if _, seen := index[c.Name]; seen {
				continue
			}
			if key == headerKey(c.Name) || key == headerKey(c.Label) {
				index[c.Name] = pos
			}
		}
	}
	return index
}

func headerKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var dateLayouts = []string{DateLayout, "02/01/2006", "2006/01/02", time.RFC3339}

// normalizeDate accepts the common spreadsheet date spellings, including
// Excel serial numbers, and returns DateLayout.
func normalizeDate(v string) (string, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(DateLayout), nil
		}
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return t.Format(DateLayout), nil
		}
	}
	return "", fmt.Errorf("invalid date %q", v)
}
