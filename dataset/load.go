package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/edustats/dropout/pkg/errors"
)

// Load reads a dataset file, dispatching on extension: .csv is parsed with
// encoding/csv, .xlsx with excelize.
func Load(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path)
	case ".xlsx":
		return LoadXLSX(path)
	default:
		return nil, errors.NewValueError("Load",
			"unsupported dataset format '"+filepath.Ext(path)+"' (want .csv or .xlsx)")
	}
}

// LoadCSV reads a CSV file with a header row. The delimiter is sniffed
// between comma and semicolon, since exported institutional spreadsheets
// commonly use either.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open dataset")
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV parses CSV content from a reader.
func ReadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read dataset")
	}
	if len(data) == 0 {
		return nil, errors.ErrEmptyData
	}

	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.Comma = sniffDelimiter(string(data))
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		// FieldsPerRecord mismatches land here: ragged rows are a load error.
		return nil, errors.Wrap(err, "failed to parse CSV")
	}
	if len(records) == 0 {
		return nil, errors.ErrEmptyData
	}

	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return &Table{Columns: header, Rows: records[1:]}, nil
}

func sniffDelimiter(content string) rune {
	firstLine := content
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		firstLine = content[:idx]
	}
	if strings.Count(firstLine, ";") > strings.Count(firstLine, ",") {
		return ';'
	}
	return ','
}

// LoadXLSX reads the first sheet of an XLSX workbook. The first row is the
// header; short rows are padded so the table stays rectangular, matching how
// excelize returns trailing empty cells.
func LoadXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open workbook")
	}
	defer f.Close()

	return readWorkbook(f)
}

// ReadXLSX reads the first sheet of an XLSX workbook from a reader, e.g. an
// HTTP upload.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open workbook")
	}
	defer f.Close()

	return readWorkbook(f)
}

func readWorkbook(f *excelize.File) (*Table, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.ErrEmptyData
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, "failed to read sheet")
	}
	if len(rows) == 0 {
		return nil, errors.ErrEmptyData
	}

	header := rows[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	table := &Table{Columns: header}
	for _, row := range rows[1:] {
		padded := make([]string, len(header))
		copy(padded, row)
		table.Rows = append(table.Rows, padded)
	}
	return table, nil
}
