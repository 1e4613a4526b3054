package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/greenops/esg-reporting/internal/app"
	"github.com/greenops/esg-reporting/internal/carbon"
)

func azureCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "azure",
		Short: "Carbon Optimization API operations",
	}
	cmd.AddCommand(
		azureFetchCmd(flags),
		azureIntegrateCmd(flags),
		azureListSubscriptionsCmd(flags),
	)
	return cmd
}

type queryFlags struct {
	subscriptions []string
	start         string
	end           string
	report        string
	scopes        string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.subscriptions, "subscription", nil, "Subscription ID (repeatable)")
	cmd.Flags().StringVar(&f.start, "start", "", "Range start (YYYY-MM-DD, default first day of previous month)")
	cmd.Flags().StringVar(&f.end, "end", "", "Range end (YYYY-MM-DD, default last day of previous month)")
	cmd.Flags().StringVar(&f.report, "report", string(carbon.MonthlySummaryReport), "Report type")
	cmd.Flags().StringVar(&f.scopes, "scope", "", "Carbon scopes, comma separated (default all)")
}

func (f *queryFlags) build() (carbon.Query, error) {
	if len(f.subscriptions) == 0 {
		return carbon.Query{}, fmt.Errorf("at least one --subscription is required")
	}

	report, err := carbon.ParseReportType(f.report)
	if err != nil {
		return carbon.Query{}, err
	}
	scopes, err := carbon.ParseScopes(f.scopes)
	if err != nil {
		return carbon.Query{}, err
	}

	start, end := f.start, f.end
	if start == "" || end == "" {
		s, e := previousMonth(time.Now().UTC())
		if start == "" {
			start = s
		}
		if end == "" {
			end = e
		}
	}

	return carbon.Query{
		ReportType:    report,
		Subscriptions: f.subscriptions,
		Scopes:        scopes,
		Range:         carbon.DateRange{Start: start, End: end},
	}, nil
}

// previousMonth returns the first and last day of the month before now.
func previousMonth(now time.Time) (string, string) {
	firstOfCurrent := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	lastOfPrevious := firstOfCurrent.AddDate(0, 0, -1)
	firstOfPrevious := time.Date(lastOfPrevious.Year(), lastOfPrevious.Month(), 1, 0, 0, 0, 0, time.UTC)
	return firstOfPrevious.Format("2006-01-02"), lastOfPrevious.Format("2006-01-02")
}

func azureFetchCmd(flags *rootFlags) *cobra.Command {
	qf := &queryFlags{}
	var (
		output string
		format string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch an emissions report and write it to a local file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, false, true)
			if err != nil {
				return err
			}
			q, err := qf.build()
			if err != nil {
				return err
			}

			n, err := a.Fetch(cmd.Context(), app.FetchOptions{
				Query:  q,
				Output: output,
				Format: format,
			})
			if err != nil {
				return err
			}
			fmt.Printf("wrote %d emissions records to %s\n", n, output)
			return nil
		},
	}

	qf.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "azure_emissions.csv", "Output path")
	cmd.Flags().StringVar(&format, "format", "", "Output format override (csv, tsv, xlsx, ndjson)")
	return cmd
}

func azureIntegrateCmd(flags *rootFlags) *cobra.Command {
	qf := &queryFlags{}
	var output string

	cmd := &cobra.Command{
		Use:   "integrate <activity-file>",
		Short: "Merge cloud emissions into a local activity file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, false, true)
			if err != nil {
				return err
			}
			q, err := qf.build()
			if err != nil {
				return err
			}

			if output == "" {
				output = "integrated_activities.csv"
			}
			summary, err := a.Integrate(cmd.Context(), app.IntegrateOptions{
				ActivityFile: args[0],
				Output:       output,
				Query:        q,
			})
			if err != nil {
				return err
			}

			fmt.Printf("combined %d activity rows with %d cloud rows -> %s\n",
				summary.ActivityRows, summary.CloudRows, output)
			printTotal("cloud emissions (kg CO2e)", summary.CloudEmissionsKg)
			printTotal("scope1 total", summary.Scope1)
			printTotal("scope2 total", summary.Scope2)
			printTotal("scope3 total", summary.Scope3)
			return nil
		},
	}

	qf.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default integrated_activities.csv)")
	return cmd
}

func printTotal(label string, t carbon.Total) {
	if !t.Known {
		return
	}
	fmt.Printf("  %s: %.3f\n", label, t.Sum)
}

func azureListSubscriptionsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list-subscriptions",
		Short: "List subscriptions visible to the credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, false, true)
			if err != nil {
				return err
			}
			subs, err := a.Carbon.ListSubscriptions(cmd.Context())
			if err != nil {
				return err
			}
			if len(subs) == 0 {
				fmt.Println("no subscriptions found")
				return nil
			}
			for _, s := range subs {
				fmt.Printf("%s  %-10s  %s\n", s.ID, s.State, s.DisplayName)
			}
			return nil
		},
	}
}
