package dataset

import (
	"fmt"
	"strings"
)

// NonNumericCell records a cell that failed numeric parsing during an audit.
type NonNumericCell struct {
	Row   int
	Value string
}

// ColumnReport is the result of auditing one column for numeric cleanliness.
// Null-ish cells (see IsMissing) are counted separately from non-numeric
// text, so callers can distinguish "needs imputation" from "needs encoding".
type ColumnReport struct {
	Column     string
	IsNumeric  bool
	Total      int
	NullCount  int
	NullRows   []int
	NonNumeric []NonNumericCell
}

// VerifyNumericColumn checks whether a column contains only numeric data.
// Missing cells are skipped, not treated as parse failures. The column must
// exist; unknown names return the ValueError from ColumnIndex.
func VerifyNumericColumn(t *Table, column string) (*ColumnReport, error) {
	cells, err := t.Column(column)
	if err != nil {
		return nil, err
	}

	report := &ColumnReport{Column: column, Total: len(cells)}
	for i, cell := range cells {
		if IsMissing(cell) {
			report.NullCount++
			report.NullRows = append(report.NullRows, i)
			continue
		}
		if _, ok := ParseCell(cell); !ok {
			report.NonNumeric = append(report.NonNumeric, NonNumericCell{Row: i, Value: cell})
		}
	}
	report.IsNumeric = len(report.NonNumeric) == 0
	return report, nil
}

// AuditReport aggregates per-column reports for a whole table.
type AuditReport struct {
	Reports []*ColumnReport
}

// VerifyColumns audits the named columns. With no names, every column is
// audited.
func VerifyColumns(t *Table, columns ...string) (*AuditReport, error) {
	if len(columns) == 0 {
		columns = t.Columns
	}

	audit := &AuditReport{}
	for _, col := range columns {
		report, err := VerifyNumericColumn(t, col)
		if err != nil {
			return nil, err
		}
		audit.Reports = append(audit.Reports, report)
	}
	return audit, nil
}

// NumericColumns returns the audited columns whose cells all parsed.
func (a *AuditReport) NumericColumns() []string {
	var out []string
	for _, r := range a.Reports {
		if r.IsNumeric {
			out = append(out, r.Column)
		}
	}
	return out
}

// NonNumericColumns returns the audited columns with at least one
// unparseable cell.
func (a *AuditReport) NonNumericColumns() []string {
	var out []string
	for _, r := range a.Reports {
		if !r.IsNumeric {
			out = append(out, r.Column)
		}
	}
	return out
}

// HasMissing reports whether any audited column has missing cells.
func (a *AuditReport) HasMissing() bool {
	for _, r := range a.Reports {
		if r.NullCount > 0 {
			return true
		}
	}
	return false
}

const ruler = "======================================================================"

// String renders the audit in the same shape the original inspection script
// printed: a per-column verdict followed by a summary of numeric vs
// non-numeric columns.
func (a *AuditReport) String() string {
	var b strings.Builder
	b.WriteString(ruler + "\n")
	b.WriteString("NUMERIC COLUMN VERIFICATION\n")
	b.WriteString(ruler + "\n")

	for _, r := range a.Reports {
		fmt.Fprintf(&b, "\n--- Column: %s ---\n", r.Column)
		if r.IsNumeric {
			fmt.Fprintf(&b, "ok: column '%s' contains only numeric data\n", r.Column)
		} else {
			fmt.Fprintf(&b, "FAIL: column '%s' is not fully numeric\n", r.Column)
		}
		fmt.Fprintf(&b, "  - total values: %d\n", r.Total)
		fmt.Fprintf(&b, "  - null values: %d\n", r.NullCount)
		if r.NullCount > 0 {
			fmt.Fprintf(&b, "  - null rows: %v\n", r.NullRows)
		}
		if len(r.NonNumeric) > 0 {
			fmt.Fprintf(&b, "  - non-numeric values found: %d\n", len(r.NonNumeric))
			fmt.Fprintf(&b, "    %-8s %s\n", "row", "value")
			for _, cell := range r.NonNumeric {
				value := cell.Value
				if len(value) > 30 {
					value = value[:27] + "..."
				}
				fmt.Fprintf(&b, "    %-8d %s\n", cell.Row, value)
			}
		}
	}

	numeric := a.NumericColumns()
	nonNumeric := a.NonNumericColumns()

	b.WriteString("\n" + ruler + "\n")
	b.WriteString("SUMMARY\n")
	b.WriteString(ruler + "\n")
	fmt.Fprintf(&b, "\nnumeric columns (%d):\n", len(numeric))
	for _, col := range numeric {
		fmt.Fprintf(&b, "  - %s\n", col)
	}
	if len(nonNumeric) > 0 {
		fmt.Fprintf(&b, "\nnon-numeric columns (%d):\n", len(nonNumeric))
		for _, r := range a.Reports {
			if !r.IsNumeric {
				fmt.Fprintf(&b, "  - %s (%d problem values)\n", r.Column, len(r.NonNumeric))
			}
		}
	}
	return b.String()
}
