package pipeline

import (
	"fmt"
	"strings"

	"github.com/greenops/esg-reporting/pkg/table"
)

// Mode selects how the Transformer treats error findings.
type Mode int

const (
	// ModeStrict rejects any table carrying error findings.
	ModeStrict Mode = iota
	// ModeBestEffort transforms what it can; error rows are dropped or
	// passed through depending on DropInvalidRows.
	ModeBestEffort
)

// ParseMode maps a mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "strict", "":
		return ModeStrict, nil
	case "best-effort", "besteffort", "best_effort":
		return ModeBestEffort, nil
	default:
		return ModeStrict, fmt.Errorf("unknown transform mode %q (expected strict|best-effort)", s)
	}
}

// DerivedColumn declares a computed column: the null-safe sum of the source
// columns for each row.
type DerivedColumn struct {
	Name    string
	Sources []string
}

// Policy enumerates the transform options.
type Policy struct {
	Mode Mode

	// DropInvalidRows removes every row carrying an error finding.
	DropInvalidRows bool

	// FillMissing replaces null cells with a per-column default.
	FillMissing map[string]table.Value

	// DeriveTotals appends computed sum columns.
	DeriveTotals []DerivedColumn

	// NormalizeColumnNames lowercases names and maps spaces and dashes to
	// underscores.
	NormalizeColumnNames bool
}

// Transform applies a policy to a validated table and returns a new table.
// The input table is not modified.
//
// In strict mode any error finding rejects the table with *ValidationError.
// In best-effort mode rows with error findings are dropped when
// DropInvalidRows is set; otherwise they pass through with their findings
// preserved as row annotations.
func Transform(t *table.Table, rep Report, p Policy) (*table.Table, error) {
	if p.Mode == ModeStrict && rep.HasErrors() {
		return nil, &ValidationError{Findings: rep.Errors()}
	}

	out := t.Clone()

	if p.NormalizeColumnNames {
		if err := out.RenameColumns(NormalizeName); err != nil {
			return nil, &TransformError{Detail: err.Error()}
		}
	}

	// Row drop happens before fills and derivations so defaults never
	// resurrect an invalid row.
	rowMap := make([]int, 0, out.NumRows())
	for i := 0; i < out.NumRows(); i++ {
		if p.DropInvalidRows && rep.RowHasError(i) {
			continue
		}
		rowMap = append(rowMap, i)
	}
	if len(rowMap) != out.NumRows() {
		kept, err := selectRows(out, rowMap)
		if err != nil {
			return nil, &TransformError{Detail: err.Error()}
		}
		out = kept
	}

	for col, def := range p.FillMissing {
		name := col
		if p.NormalizeColumnNames {
			name = NormalizeName(col)
		}
		if _, ok := out.ColumnIndex(name); !ok {
			return nil, &TransformError{Detail: fmt.Sprintf("fill_missing names unknown column %q", col)}
		}
		for i := 0; i < out.NumRows(); i++ {
			v, _ := out.Value(i, name)
			if !v.IsNull() {
				continue
			}
			if err := out.SetValue(i, name, def); err != nil {
				return nil, &TransformError{Detail: err.Error()}
			}
		}
	}

	for _, d := range p.DeriveTotals {
		if err := deriveTotal(out, d, p.NormalizeColumnNames); err != nil {
			return nil, err
		}
	}

	// Preserve surviving findings as row metadata.
	for newIdx, oldIdx := range rowMap {
		for _, f := range rep.RowFindings(oldIdx) {
			out.AnnotateRow(newIdx, f.String())
		}
	}

	return out, nil
}

// deriveTotal appends the null-safe row sum of d.Sources: null contributions
// count as zero, and the result is null only when every source cell is null.
func deriveTotal(t *table.Table, d DerivedColumn, normalize bool) error {
	name := d.Name
	if normalize {
		name = NormalizeName(name)
	}
	if len(d.Sources) == 0 {
		return &TransformError{Detail: fmt.Sprintf("derived column %q has no source columns", d.Name)}
	}

	sources := make([]string, len(d.Sources))
	for i, src := range d.Sources {
		if normalize {
			src = NormalizeName(src)
		}
		if _, ok := t.ColumnIndex(src); !ok {
			return &TransformError{Detail: fmt.Sprintf("derived column %q names unknown source column %q", d.Name, d.Sources[i])}
		}
		sources[i] = src
	}

	vals := make([]table.Value, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		total := 0.0
		defined := false
		for _, src := range sources {
			v, _ := t.Value(i, src)
			if v.IsNull() {
				continue
			}
			// Columns that loaded as strings (all-null, or typed down by a
			// stray cell in a row since dropped) still sum when the cell
			// itself parses.
			n, ok := v.NumberValue()
			if !ok {
				parsed, err := table.Parse(v.Format(), table.TypeNumber)
				if err != nil {
					return &TransformError{Detail: fmt.Sprintf(
						"derived column %q: row %d column %q value %q is not numeric",
						d.Name, i, src, v.Format())}
				}
				n, _ = parsed.NumberValue()
			}
			total += n
			defined = true
		}
		if defined {
			vals[i] = table.Number(total)
		} else {
			vals[i] = table.Null(table.TypeNumber)
		}
	}
	if err := t.AddColumn(table.Column{Name: name, Type: table.TypeNumber}, vals); err != nil {
		return &TransformError{Detail: err.Error()}
	}
	return nil
}

func selectRows(t *table.Table, keep []int) (*table.Table, error) {
	out, err := table.New(t.Columns())
	if err != nil {
		return nil, err
	}
	for _, i := range keep {
		if err := out.AppendRow(t.Row(i)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// NormalizeName standardizes a column name: lowercase, spaces and dashes
// replaced with underscores.
func NormalizeName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}
