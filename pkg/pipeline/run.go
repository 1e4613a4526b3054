// Package pipeline implements the ESG data pipeline: load a tabular file
// into a record table, validate it against a category schema, transform it
// under an explicit policy, and write the result back out. Stages run
// strictly in sequence; any stage failure aborts the run and no partial
// output is written.
package pipeline

import (
	"github.com/google/uuid"

	"github.com/greenops/esg-reporting/pkg/schema"
	"github.com/greenops/esg-reporting/pkg/table"
)

// RunOptions configures one pipeline invocation. Every option is explicit;
// nothing is read from the environment here.
type RunOptions struct {
	Input        string
	Output       string
	InputFormat  Format // empty: detect from Input
	OutputFormat Format // empty: detect from Output
	MaxBytes     int64

	Schema *schema.Schema
	Policy Policy
}

// RunResult summarizes one pipeline invocation.
type RunResult struct {
	RunID   string `json:"run_id"`
	RowsIn  int    `json:"rows_in"`
	RowsOut int    `json:"rows_out"`
	Output  string `json:"output"`
	Report  Report `json:"report"`
}

// Run executes Loader -> Validator -> Transformer -> Writer for one file.
// No state survives the invocation; concurrent Runs over distinct files are
// independent.
func Run(opts RunOptions) (RunResult, error) {
	res := RunResult{RunID: uuid.NewString(), Output: opts.Output}

	t, err := LoadFile(opts.Input, LoadOptions{Format: opts.InputFormat, MaxBytes: opts.MaxBytes})
	if err != nil {
		return res, err
	}
	res.RowsIn = t.NumRows()

	res.Report = Validate(t, opts.Schema)

	out, err := Transform(t, res.Report, opts.Policy)
	if err != nil {
		return res, err
	}
	res.RowsOut = out.NumRows()

	if err := WriteFile(out, opts.Output, opts.OutputFormat); err != nil {
		return res, err
	}
	return res, nil
}

// RunTable is Run without the file endpoints: validate and transform an
// in-memory table. Used by callers that source tables from the network
// (e.g. emissions API responses).
func RunTable(t *table.Table, s *schema.Schema, p Policy) (*table.Table, Report, error) {
	rep := Validate(t, s)
	out, err := Transform(t, rep, p)
	if err != nil {
		return nil, rep, err
	}
	return out, rep, nil
}
