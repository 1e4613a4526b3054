// Package main provides the esg binary: validate, transform, and ship ESG
// export files, and pull cloud emissions from the Carbon Optimization API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/greenops/esg-reporting/internal/app"
	"github.com/greenops/esg-reporting/internal/blob"
	"github.com/greenops/esg-reporting/internal/carbon"
	"github.com/greenops/esg-reporting/internal/config"
	"github.com/greenops/esg-reporting/internal/secrets"
	"github.com/greenops/esg-reporting/internal/version"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "esg",
		Short: "ESG reporting pipeline",
		Long: `esg validates, transforms, and ships ESG export files.

Local files move through a fixed pipeline: load into a typed table,
validate against the category schema, transform under an explicit policy,
and write the result. Files can be pushed to blob storage, and cloud
emissions can be pulled from the Carbon Optimization API and merged into
activity data.

Credentials come from the environment: STORAGE_TOKEN for blob storage and
MANAGEMENT_TOKEN for the Carbon Optimization API.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		processCmd(flags),
		uploadCmd(flags),
		downloadCmd(flags),
		listCmd(flags),
		deleteCmd(flags),
		azureCmd(flags),
		watchCmd(flags),
		configCmd(flags),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("esg version %s\n", version.Current)
		},
	}
}

// newApp assembles the application from config and environment. The blob
// and carbon clients are only built for commands that ask for them, so
// purely local commands need no storage configuration. Command-level flag
// overrides are applied through overrides before the clients are built.
func newApp(flags *rootFlags, needBlob, needCarbon bool, overrides ...func(*config.Config)) (*app.App, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	for _, o := range overrides {
		o(&cfg)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &app.App{Cfg: cfg, Logger: logger}
	src := secrets.EnvSource{}

	if needBlob {
		accountURL := cfg.AccountURL()
		if accountURL == "" {
			return nil, fmt.Errorf("storage account not configured (set storage_account in config or ESG_STORAGE_ACCOUNT)")
		}
		a.Blob, err = blob.NewClient(accountURL, cfg.Container, secrets.Bearer(src, "storage-token"), logger)
		if err != nil {
			return nil, err
		}
	}

	if needCarbon {
		a.Carbon, err = carbon.NewClient(cfg.CarbonURL, secrets.Bearer(src, "management-token"), logger)
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
