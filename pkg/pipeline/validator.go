package pipeline

import (
	"fmt"

	"github.com/greenops/esg-reporting/pkg/schema"
	"github.com/greenops/esg-reporting/pkg/table"
)

// Validate checks a table against a schema and returns the findings. It is
// a pure function of its inputs: it touches no network or storage, mutates
// nothing, and yields the same report for the same (table, schema) pair.
//
// Policy:
//   - missing required column: table-level error
//   - cell that cannot carry the declared type: row+column error
//   - null cell in a non-null column: row+column error
//   - numeric value outside the declared range: row+column warning
//   - value outside a declared enum: row+column warning
//   - column not named by the schema: table-level warning
func Validate(t *table.Table, s *schema.Schema) Report {
	rep := Report{Category: s.Category}

	for _, rule := range s.Columns {
		_, present := t.ColumnIndex(rule.Name)
		if !present {
			if rule.Required {
				rep.Findings = append(rep.Findings, Finding{
					Row:      TableLevel,
					Column:   rule.Name,
					Severity: SeverityError,
					Message:  "required column is missing",
				})
			}
			continue
		}
		validateColumn(t, rule, &rep)
	}

	declared := map[string]bool{}
	for _, rule := range s.Columns {
		declared[rule.Name] = true
	}
	for _, name := range t.ColumnNames() {
		if !declared[name] && len(s.Columns) > 0 {
			rep.Findings = append(rep.Findings, Finding{
				Row:      TableLevel,
				Column:   name,
				Severity: SeverityWarning,
				Message:  "column is not declared by the schema",
			})
		}
	}
	return rep
}

func validateColumn(t *table.Table, rule schema.Rule, rep *Report) {
	want, err := rule.ColumnType()
	if err != nil {
		// Schema.Validate rejects unknown types before validation runs.
		want = table.TypeString
	}

	for i := 0; i < t.NumRows(); i++ {
		v, _ := t.Value(i, rule.Name)

		if v.IsNull() {
			if rule.NonNull {
				rep.Findings = append(rep.Findings, Finding{
					Row:      i,
					Column:   rule.Name,
					Severity: SeverityError,
					Message:  "null value in non-null column",
				})
			}
			continue
		}

		coerced, ok := coerce(v, want)
		if !ok {
			rep.Findings = append(rep.Findings, Finding{
				Row:      i,
				Column:   rule.Name,
				Severity: SeverityError,
				Message:  fmt.Sprintf("value %q is not a valid %s", v.Format(), want),
			})
			continue
		}

		if want == table.TypeNumber {
			n, _ := coerced.NumberValue()
			if rule.Min != nil && n < *rule.Min {
				rep.Findings = append(rep.Findings, Finding{
					Row:      i,
					Column:   rule.Name,
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("value %g is below minimum %g", n, *rule.Min),
				})
			}
			if rule.Max != nil && n > *rule.Max {
				rep.Findings = append(rep.Findings, Finding{
					Row:      i,
					Column:   rule.Name,
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("value %g is above maximum %g", n, *rule.Max),
				})
			}
		}

		if len(rule.Enum) > 0 {
			raw := coerced.Format()
			found := false
			for _, allowed := range rule.Enum {
				if raw == allowed {
					found = true
					break
				}
			}
			if !found {
				rep.Findings = append(rep.Findings, Finding{
					Row:      i,
					Column:   rule.Name,
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("value %q is not in the allowed set", raw),
				})
			}
		}
	}
}

// coerce checks that a loaded cell can carry the declared type. Cells keep
// the type inferred at load time; a string cell satisfies a numeric or date
// declaration only if its content parses.
func coerce(v table.Value, want table.Type) (table.Value, bool) {
	if v.Type() == want {
		return v, true
	}
	if want == table.TypeString {
		return table.String(v.Format()), true
	}
	parsed, err := table.Parse(v.Format(), want)
	if err != nil {
		return table.Value{}, false
	}
	return parsed, true
}
