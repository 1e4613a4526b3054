package pipeline

import (
	"fmt"
	"strings"
)

// Severity ranks a validation finding.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// MarshalJSON renders severities as their names in processing reports.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// TableLevel marks a finding that applies to the whole table rather than a
// single row.
const TableLevel = -1

// Finding is one validation result: a row (or TableLevel), an optional
// column, a severity, and a message.
type Finding struct {
	Row      int      `json:"row"`
	Column   string   `json:"column,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (f Finding) String() string {
	loc := "table"
	if f.Row != TableLevel {
		loc = fmt.Sprintf("row %d", f.Row)
	}
	if strings.TrimSpace(f.Column) != "" {
		loc += " column " + f.Column
	}
	return fmt.Sprintf("%s: %s: %s", f.Severity, loc, f.Message)
}

// Report is the ordered sequence of findings produced by the Validator.
type Report struct {
	Category string
	Findings []Finding
}

// HasErrors reports whether any error-severity finding is present. A table
// with errors is not eligible for the strict transform path.
func (r Report) HasErrors() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the error-severity findings in order.
func (r Report) Errors() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			out = append(out, f)
		}
	}
	return out
}

// Warnings returns the warning-severity findings in order.
func (r Report) Warnings() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == SeverityWarning {
			out = append(out, f)
		}
	}
	return out
}

// RowHasError reports whether a specific row carries an error finding.
func (r Report) RowHasError(row int) bool {
	for _, f := range r.Findings {
		if f.Row == row && f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// RowFindings returns all findings attached to a specific row.
func (r Report) RowFindings(row int) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Row == row {
			out = append(out, f)
		}
	}
	return out
}
