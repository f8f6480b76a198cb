package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one record from a tabular or JSON source, keyed by column name.
type Row map[string]string

// Source is a fully loaded input file: the detected columns plus every row.
type Source struct {
	Path    string
	Columns []string
	Rows    []Row
}

// candidateSeparators are tried in order against the header line of a
// delimited file; the first one yielding more than one column wins.
var candidateSeparators = []rune{'\t', ',', ';', '|'}

// LoadSource reads a source file, dispatching on the extension. File-format
// errors are fatal and occur before any database write.
func LoadSource(path string) (*Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt", ".tab":
		return loadDelimited(path)
	case ".json":
		return loadJSON(path)
	case ".xlsx":
		return loadSpreadsheet(path)
	default:
		return nil, fmt.Errorf("unsupported file format %q", filepath.Ext(path))
	}
}

func loadDelimited(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	header := data
	if idx := strings.IndexByte(string(data), '\n'); idx >= 0 {
		header = data[:idx]
	}

	sep, err := detectSeparator(string(header))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.Comma = sep
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: file is empty", path)
	}

	return fromRecords(path, records)
}

// detectSeparator tries each candidate separator against the header line
// and accepts the first that yields more than one column.
func detectSeparator(header string) (rune, error) {
	for _, sep := range candidateSeparators {
		reader := csv.NewReader(strings.NewReader(header))
		reader.Comma = sep
		fields, err := reader.Read()
		if err == nil && len(fields) > 1 {
			return sep, nil
		}
	}
	return 0, fmt.Errorf("could not detect a separator (tried tab, comma, semicolon, pipe)")
}

func loadJSON(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var objects []map[string]any
	if err := json.Unmarshal(data, &objects); err != nil {
		// Not an array; try a single object.
		var single map[string]any
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("failed to parse %s: expected a JSON array of objects or a single object: %w", path, err)
		}
		objects = []map[string]any{single}
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("%s: no records found", path)
	}

	// Union of keys across objects, in first-seen order.
	var columns []string
	seen := map[string]bool{}
	for _, obj := range objects {
		for key := range obj {
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
		}
	}

	rows := make([]Row, 0, len(objects))
	for _, obj := range objects {
		row := make(Row, len(obj))
		for key, value := range obj {
			row[key] = stringifyJSON(value)
		}
		rows = append(rows, row)
	}

	return &Source{Path: path, Columns: columns, Rows: rows}, nil
}

func stringifyJSON(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func loadSpreadsheet(path string) (*Source, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: spreadsheet has no sheets", path)
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q in %s: %w", sheets[0], path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: sheet %q is empty", path, sheets[0])
	}

	return fromRecords(path, records)
}

// fromRecords converts raw records (first record is the header) to a Source.
func fromRecords(path string, records [][]string) (*Source, error) {
	columns := make([]string, len(records[0]))
	for i, col := range records[0] {
		columns[i] = strings.TrimSpace(col)
	}
	if len(columns) < 2 {
		return nil, fmt.Errorf("%s: expected at least two columns, got %d", path, len(columns))
	}

	rows := make([]Row, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(Row, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}

	return &Source{Path: path, Columns: columns, Rows: rows}, nil
}
