package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/greenops/esg-reporting/internal/app"
	"github.com/greenops/esg-reporting/internal/watch"
	"github.com/greenops/esg-reporting/pkg/pipeline"
)

func watchCmd(flags *rootFlags) *cobra.Command {
	var (
		outbox   string
		category string
		mode     string
		settle   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Process new export files as they land in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, false, false)
			if err != nil {
				return err
			}
			if _, err := pipeline.ParseMode(mode); err != nil {
				return err
			}
			if outbox == "" {
				outbox = filepath.Join(args[0], "processed")
			}
			if err := os.MkdirAll(outbox, 0o755); err != nil {
				return fmt.Errorf("create outbox: %w", err)
			}

			process := func(ctx context.Context, path string) error {
				// Skip our own outputs when the outbox nests in the inbox.
				if strings.HasPrefix(path, outbox+string(os.PathSeparator)) {
					return nil
				}
				policy, err := buildPolicy(mode, true, true, nil, nil)
				if err != nil {
					return err
				}
				out := filepath.Join(outbox, filepath.Base(path))
				_, err = a.ProcessFile(ctx, app.ProcessOptions{
					Input:    path,
					Output:   out,
					Category: category,
					Policy:   policy,
				})
				return err
			}

			return watch.Run(cmd.Context(), args[0], process, a.Logger, watch.Options{Settle: settle})
		},
	}

	cmd.Flags().StringVar(&outbox, "outbox", "", "Directory for processed output (default <dir>/processed)")
	cmd.Flags().StringVar(&category, "category", "general", "Data category for validation")
	cmd.Flags().StringVar(&mode, "mode", "best-effort", "Transform mode (strict, best-effort)")
	cmd.Flags().DurationVar(&settle, "settle", 2*time.Second, "How long a file must stay unchanged before processing")
	return cmd
}
