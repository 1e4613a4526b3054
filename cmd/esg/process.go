package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/greenops/esg-reporting/internal/app"
	"github.com/greenops/esg-reporting/pkg/pipeline"
	"github.com/greenops/esg-reporting/pkg/table"
)

func processCmd(flags *rootFlags) *cobra.Command {
	var (
		category     string
		output       string
		format       string
		mode         string
		dropInvalid  bool
		deriveTotals []string
		fills        []string
		normalize    bool
	)

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Validate and transform a local export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, false, false)
			if err != nil {
				return err
			}

			policy, err := buildPolicy(mode, dropInvalid, normalize, deriveTotals, fills)
			if err != nil {
				return err
			}

			res, err := a.ProcessFile(cmd.Context(), app.ProcessOptions{
				Input:    args[0],
				Output:   output,
				Category: category,
				Format:   format,
				Policy:   policy,
			})
			if err != nil {
				return err
			}

			fmt.Printf("run %s: %d rows in, %d rows out -> %s\n", res.RunID, res.RowsIn, res.RowsOut, res.Output)
			for _, f := range res.Report.Findings {
				fmt.Println("  " + f.String())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "general", "Data category (emissions, activities, suppliers, general)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default <input>_processed.<ext>)")
	cmd.Flags().StringVar(&format, "format", "", "Output format override (csv, tsv, xlsx, ndjson)")
	cmd.Flags().StringVar(&mode, "mode", "strict", "Transform mode (strict, best-effort)")
	cmd.Flags().BoolVar(&dropInvalid, "drop-invalid", false, "Drop rows with error findings (best-effort mode)")
	cmd.Flags().StringArrayVar(&deriveTotals, "derive-total", nil, "Derived sum column, e.g. total=scope1+scope2+scope3 (repeatable)")
	cmd.Flags().StringArrayVar(&fills, "fill", nil, "Default for null cells, e.g. unit=kgCO2e (repeatable)")
	cmd.Flags().BoolVar(&normalize, "normalize-names", true, "Normalize column names (lowercase, underscores)")
	return cmd
}

func buildPolicy(mode string, dropInvalid, normalize bool, deriveTotals, fills []string) (pipeline.Policy, error) {
	m, err := pipeline.ParseMode(mode)
	if err != nil {
		return pipeline.Policy{}, err
	}

	p := pipeline.Policy{
		Mode:                 m,
		DropInvalidRows:      dropInvalid,
		NormalizeColumnNames: normalize,
	}

	for _, spec := range deriveTotals {
		d, err := parseDerived(spec)
		if err != nil {
			return pipeline.Policy{}, err
		}
		p.DeriveTotals = append(p.DeriveTotals, d)
	}

	for _, spec := range fills {
		name, raw, ok := strings.Cut(spec, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return pipeline.Policy{}, fmt.Errorf("invalid --fill %q (want column=value)", spec)
		}
		if p.FillMissing == nil {
			p.FillMissing = make(map[string]table.Value)
		}
		// Fill values arrive untyped from the flag; infer from the literal.
		v, err := table.Parse(raw, table.InferType([]string{raw}))
		if err != nil {
			return pipeline.Policy{}, fmt.Errorf("invalid --fill %q: %w", spec, err)
		}
		p.FillMissing[strings.TrimSpace(name)] = v
	}
	return p, nil
}

func parseDerived(spec string) (pipeline.DerivedColumn, error) {
	name, srcs, ok := strings.Cut(spec, "=")
	if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(srcs) == "" {
		return pipeline.DerivedColumn{}, fmt.Errorf("invalid --derive-total %q (want name=src1+src2)", spec)
	}
	d := pipeline.DerivedColumn{Name: strings.TrimSpace(name)}
	for _, s := range strings.Split(srcs, "+") {
		s = strings.TrimSpace(s)
		if s == "" {
			return pipeline.DerivedColumn{}, fmt.Errorf("invalid --derive-total %q: empty source column", spec)
		}
		d.Sources = append(d.Sources, s)
	}
	return d, nil
}
