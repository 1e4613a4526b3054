package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greenops/esg-reporting/internal/app"
	"github.com/greenops/esg-reporting/internal/config"
)

func uploadCmd(flags *rootFlags) *cobra.Command {
	var (
		category  string
		container string
		workers   int
		validate  bool
		clean     bool
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file...>",
		Short: "Upload export files to blob storage",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, true, false, func(cfg *config.Config) {
				if container != "" {
					cfg.Container = container
				}
				if workers > 0 {
					cfg.Workers = workers
				}
			})
			if err != nil {
				return err
			}

			results, err := a.Upload(cmd.Context(), app.UploadOptions{
				Files:     args,
				Category:  category,
				Validate:  validate,
				Clean:     clean,
				Overwrite: overwrite,
			})
			if err != nil {
				return err
			}

			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Printf("FAILED  %s: %v\n", r.Input, r.Err)
					continue
				}
				fmt.Printf("ok      %s -> %s (%d bytes)\n", r.Input, r.Output.BlobName, r.Output.Size)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d uploads failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "general", "Data category used for the blob path")
	cmd.Flags().StringVar(&container, "container", "", "Container override")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent uploads (default from config)")
	cmd.Flags().BoolVar(&validate, "validate", false, "Validate against the category schema before uploading")
	cmd.Flags().BoolVar(&clean, "clean", false, "Validate, drop invalid rows, normalize names, and upload the cleaned copy")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing blob with the same name")
	return cmd
}

func downloadCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "download <remote> <local>",
		Short: "Download a blob to a local file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, true, false)
			if err != nil {
				return err
			}
			if err := a.Download(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("downloaded %s -> %s\n", args[0], args[1])
			return nil
		},
	}
}

func listCmd(flags *rootFlags) *cobra.Command {
	var (
		category  string
		container string
		date      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored blobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, true, false, func(cfg *config.Config) {
				if container != "" {
					cfg.Container = container
				}
			})
			if err != nil {
				return err
			}

			infos, err := a.List(cmd.Context(), app.ListOptions{Category: category, Date: date})
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Println("no blobs found")
				return nil
			}
			for _, info := range infos {
				modified := ""
				if !info.LastModified.IsZero() {
					modified = info.LastModified.Format("2006-01-02 15:04:05")
				}
				fmt.Printf("%10d  %-20s  %s\n", info.Size, modified, info.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Filter by data category")
	cmd.Flags().StringVar(&container, "container", "", "Container override")
	cmd.Flags().StringVar(&date, "date", "", "Filter by upload date (YYYY-MM-DD, requires --category)")
	return cmd
}

func deleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <remote>",
		Short: "Delete a blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, true, false)
			if err != nil {
				return err
			}
			if err := a.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}
}
