package dataset

import (
	"strings"
	"testing"

	"github.com/edustats/dropout/pkg/errors"
)

func sampleTable() *Table {
	return &Table{
		Columns: []string{"age", "gpa", "status"},
		Rows: [][]string{
			{"19", "3.2", "Enrolled"},
			{"22", "2.1", "Dropout"},
			{"20", "3.8", "Graduate"},
		},
	}
}

func TestColumnIndexUnknownColumn(t *testing.T) {
	table := sampleTable()
	_, err := table.ColumnIndex("gpaa")
	if err == nil {
		t.Fatal("unknown column should be an error")
	}
	if !strings.Contains(err.Error(), "Available columns") {
		t.Errorf("error should list available columns: %v", err)
	}
}

func TestColumn(t *testing.T) {
	table := sampleTable()
	col, err := table.Column("gpa")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"3.2", "2.1", "3.8"}
	for i := range want {
		if col[i] != want[i] {
			t.Errorf("Column(gpa)[%d] = %q, want %q", i, col[i], want[i])
		}
	}
}

func TestDropAndSelect(t *testing.T) {
	table := sampleTable()

	dropped, err := table.Drop("status")
	if err != nil {
		t.Fatal(err)
	}
	if dropped.NumCols() != 2 || dropped.Columns[0] != "age" || dropped.Columns[1] != "gpa" {
		t.Errorf("unexpected columns after Drop: %v", dropped.Columns)
	}
	if len(dropped.Rows[0]) != 2 {
		t.Errorf("rows should shrink with the header, got %v", dropped.Rows[0])
	}

	selected, err := table.Select("status", "age")
	if err != nil {
		t.Fatal(err)
	}
	if selected.Rows[1][0] != "Dropout" || selected.Rows[1][1] != "22" {
		t.Errorf("Select should reorder cells, got %v", selected.Rows[1])
	}

	if _, err := table.Drop("nope"); err == nil {
		t.Error("dropping an unknown column should fail")
	}
}

func TestIsMissing(t *testing.T) {
	tests := []struct {
		cell string
		want bool
	}{
		{"", true},
		{"  ", true},
		{"NA", true},
		{"n/a", true},
		{"NaN", true},
		{"null", true},
		{"0", false},
		{"Dropout", false},
	}
	for _, tt := range tests {
		if got := IsMissing(tt.cell); got != tt.want {
			t.Errorf("IsMissing(%q) = %v, want %v", tt.cell, got, tt.want)
		}
	}
}

func TestMatrix(t *testing.T) {
	table := sampleTable()
	m, err := table.Matrix([]string{"age", "gpa"})
	if err != nil {
		t.Fatal(err)
	}
	r, c := m.Dims()
	if r != 3 || c != 2 {
		t.Fatalf("Matrix dims = (%d, %d), want (3, 2)", r, c)
	}
	if m.At(1, 1) != 2.1 {
		t.Errorf("Matrix[1][1] = %v, want 2.1", m.At(1, 1))
	}

	if _, err := table.Matrix([]string{"status"}); err == nil {
		t.Error("materializing a text column should fail")
	}

	empty := &Table{Columns: []string{"a"}}
	if _, err := empty.Matrix([]string{"a"}); !errors.Is(err, errors.ErrEmptyData) {
		t.Errorf("empty table should return ErrEmptyData, got %v", err)
	}
}

func TestReadCSV(t *testing.T) {
	content := "age,gpa\n19,3.2\n22,2.1\n"
	table, err := ReadCSV(strings.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	if table.NumRows() != 2 || table.NumCols() != 2 {
		t.Errorf("unexpected shape: %d rows, %d cols", table.NumRows(), table.NumCols())
	}
}

func TestReadCSVSemicolonDelimiter(t *testing.T) {
	content := "age;gpa\n19;3.2\n"
	table, err := ReadCSV(strings.NewReader(content))
	if err != nil {
		t.Fatal(err)
	}
	if table.NumCols() != 2 {
		t.Errorf("semicolon CSV should split into 2 columns, got %v", table.Columns)
	}
}

func TestReadCSVRaggedRows(t *testing.T) {
	content := "age,gpa\n19,3.2\n22\n"
	if _, err := ReadCSV(strings.NewReader(content)); err == nil {
		t.Error("ragged rows should be a load error")
	}
}

func TestReadCSVEmpty(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); !errors.Is(err, errors.ErrEmptyData) {
		t.Errorf("empty input should return ErrEmptyData, got %v", err)
	}
}
