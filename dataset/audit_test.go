package dataset

import (
	"strings"
	"testing"
)

func auditTable() *Table {
	return &Table{
		Columns: []string{"age", "grade", "tutor"},
		Rows: [][]string{
			{"19", "8.5", "yes"},
			{"", "7.0", "no"},
			{"21", "abc", "no"},
			{"20", "NA", "yes"},
		},
	}
}

func TestVerifyNumericColumn(t *testing.T) {
	table := auditTable()

	tests := []struct {
		column         string
		wantNumeric    bool
		wantNulls      int
		wantNonNumeric int
	}{
		{"age", true, 1, 0},
		{"grade", false, 1, 1},
		{"tutor", false, 0, 4},
	}

	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			report, err := VerifyNumericColumn(table, tt.column)
			if err != nil {
				t.Fatal(err)
			}
			if report.IsNumeric != tt.wantNumeric {
				t.Errorf("IsNumeric = %v, want %v", report.IsNumeric, tt.wantNumeric)
			}
			if report.NullCount != tt.wantNulls {
				t.Errorf("NullCount = %d, want %d", report.NullCount, tt.wantNulls)
			}
			if len(report.NonNumeric) != tt.wantNonNumeric {
				t.Errorf("NonNumeric = %d, want %d", len(report.NonNumeric), tt.wantNonNumeric)
			}
		})
	}
}

func TestVerifyNumericColumnRecordsRows(t *testing.T) {
	table := auditTable()
	report, err := VerifyNumericColumn(table, "grade")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.NonNumeric) != 1 || report.NonNumeric[0].Row != 2 || report.NonNumeric[0].Value != "abc" {
		t.Errorf("unexpected non-numeric cells: %+v", report.NonNumeric)
	}
	if len(report.NullRows) != 1 || report.NullRows[0] != 3 {
		t.Errorf("unexpected null rows: %v", report.NullRows)
	}
}

func TestVerifyNumericColumnUnknown(t *testing.T) {
	if _, err := VerifyNumericColumn(auditTable(), "missing"); err == nil {
		t.Error("unknown column should be an error")
	}
}

func TestVerifyColumnsDefaultsToAll(t *testing.T) {
	audit, err := VerifyColumns(auditTable())
	if err != nil {
		t.Fatal(err)
	}
	if len(audit.Reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(audit.Reports))
	}
	if got := audit.NumericColumns(); len(got) != 1 || got[0] != "age" {
		t.Errorf("NumericColumns() = %v, want [age]", got)
	}
	if got := audit.NonNumericColumns(); len(got) != 2 {
		t.Errorf("NonNumericColumns() = %v, want 2 entries", got)
	}
	if !audit.HasMissing() {
		t.Error("HasMissing() should be true")
	}
}

func TestAuditReportString(t *testing.T) {
	audit, err := VerifyColumns(auditTable())
	if err != nil {
		t.Fatal(err)
	}
	rendered := audit.String()
	for _, want := range []string{
		"NUMERIC COLUMN VERIFICATION",
		"--- Column: grade ---",
		"non-numeric values found: 1",
		"SUMMARY",
		"numeric columns (1):",
		"tutor (4 problem values)",
	} {
		if !strings.Contains(rendered, want) {
			t.Errorf("rendered audit missing %q", want)
		}
	}
}
