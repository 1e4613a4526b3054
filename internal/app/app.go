// Package app wires the pipeline, storage, and emissions clients into the
// operations the CLI exposes.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/greenops/esg-reporting/internal/blob"
	"github.com/greenops/esg-reporting/internal/carbon"
	"github.com/greenops/esg-reporting/internal/config"
	"github.com/greenops/esg-reporting/pkg/pipeline"
	"github.com/greenops/esg-reporting/pkg/pipeline/worker"
	"github.com/greenops/esg-reporting/pkg/schema"
)

// App holds the assembled collaborators for one CLI invocation.
type App struct {
	Cfg    config.Config
	Logger *zap.Logger
	Blob   *blob.Client
	Carbon *carbon.Client
}

// ProcessOptions configures a local pipeline run.
type ProcessOptions struct {
	Input    string
	Output   string
	Category string
	Format   string // output format override; empty detects from Output
	Policy   pipeline.Policy

	// ReportPath receives the JSON processing report; empty derives
	// <output>.report.json.
	ReportPath string
}

// ProcessFile runs Loader -> Validator -> Transformer -> Writer for one
// local file and writes a JSON processing report alongside the output.
func (a *App) ProcessFile(ctx context.Context, opts ProcessOptions) (pipeline.RunResult, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.RunResult{}, err
	}

	s, err := schema.Resolve(a.Cfg.SchemaDir, opts.Category)
	if err != nil {
		return pipeline.RunResult{}, err
	}

	var outFormat pipeline.Format
	if strings.TrimSpace(opts.Format) != "" {
		outFormat, err = pipeline.ParseFormat(opts.Format)
		if err != nil {
			return pipeline.RunResult{}, err
		}
	}

	output := opts.Output
	if strings.TrimSpace(output) == "" {
		output = derivedOutputPath(opts.Input)
	}

	res, err := pipeline.Run(pipeline.RunOptions{
		Input:        opts.Input,
		Output:       output,
		OutputFormat: outFormat,
		MaxBytes:     a.Cfg.MaxFileBytes(),
		Schema:       s,
		Policy:       opts.Policy,
	})
	if err != nil {
		return res, err
	}

	reportPath := opts.ReportPath
	if strings.TrimSpace(reportPath) == "" {
		reportPath = output + ".report.json"
	}
	if err := writeJSON(reportPath, res); err != nil {
		return res, fmt.Errorf("write processing report: %w", err)
	}

	a.Logger.Info("processed file",
		zap.String("run_id", res.RunID),
		zap.String("input", opts.Input),
		zap.String("output", output),
		zap.Int("rows_in", res.RowsIn),
		zap.Int("rows_out", res.RowsOut),
		zap.Int("errors", len(res.Report.Errors())),
		zap.Int("warnings", len(res.Report.Warnings())))
	return res, nil
}

func derivedOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_processed" + ext
}

// UploadOptions configures a batch upload.
type UploadOptions struct {
	Files     []string
	Category  string
	Overwrite bool

	// Validate runs the validator and rejects files with error findings.
	Validate bool
	// Clean additionally transforms the file (normalized column names,
	// invalid rows dropped) and uploads the cleaned copy.
	Clean bool
}

// UploadOutcome describes one uploaded file.
type UploadOutcome struct {
	LocalPath string       `json:"local_path"`
	BlobName  string       `json:"blob_name"`
	Size      int64        `json:"size"`
	Warnings  int          `json:"warnings"`
	RunID     string       `json:"run_id"`
	Report    *pipeline.Report `json:"report,omitempty"`
}

// Upload pushes files to blob storage, fanning out across workers. With
// Validate set, files carrying error findings are rejected before any bytes
// leave the machine.
func (a *App) Upload(ctx context.Context, opts UploadOptions) ([]worker.Result[string, UploadOutcome], error) {
	if len(opts.Files) == 0 {
		return nil, fmt.Errorf("no files to upload")
	}

	s, err := schema.Resolve(a.Cfg.SchemaDir, opts.Category)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()

	process := func(ctx context.Context, path string) (UploadOutcome, error) {
		out := UploadOutcome{LocalPath: path, RunID: runID}

		uploadPath := path
		if opts.Validate || opts.Clean {
			t, err := pipeline.LoadFile(path, pipeline.LoadOptions{MaxBytes: a.Cfg.MaxFileBytes()})
			if err != nil {
				return out, err
			}
			rep := pipeline.Validate(t, s)
			out.Report = &rep
			out.Warnings = len(rep.Warnings())
			if rep.HasErrors() {
				return out, &pipeline.ValidationError{Findings: rep.Errors()}
			}

			if opts.Clean {
				cleaned, err := pipeline.Transform(t, rep, pipeline.Policy{
					Mode:                 pipeline.ModeBestEffort,
					DropInvalidRows:      true,
					NormalizeColumnNames: true,
				})
				if err != nil {
					return out, err
				}
				format, err := pipeline.DetectFormat(path)
				if err != nil {
					return out, err
				}
				tmp, err := os.CreateTemp("", "esg-clean-*"+filepath.Ext(path))
				if err != nil {
					return out, fmt.Errorf("create temp file: %w", err)
				}
				tmpPath := tmp.Name()
				_ = tmp.Close()
				defer func() {
					_ = os.Remove(tmpPath)
				}()
				if err := pipeline.WriteFile(cleaned, tmpPath, format); err != nil {
					return out, err
				}
				uploadPath = tmpPath
			}
		}

		blobName := blob.BlobPath(path, opts.Category, time.Now().UTC())
		res, err := a.Blob.Upload(ctx, uploadPath, blobName, map[string]string{
			"uploaded_at":       time.Now().UTC().Format(time.RFC3339),
			"entity_type":       opts.Category,
			"original_filename": filepath.Base(path),
			"upload_run_id":     runID,
		}, opts.Overwrite)
		if err != nil {
			return out, err
		}
		out.BlobName = res.BlobName
		out.Size = res.Size
		return out, nil
	}

	if err := a.Blob.EnsureContainer(ctx); err != nil {
		return nil, err
	}

	results, err := worker.Run(ctx, opts.Files, process, worker.Options{
		Workers:      a.Cfg.Workers,
		MaxRetries:   2,
		RateLimitRPS: a.Cfg.RateLimitRPS,
	})
	if err != nil {
		return nil, err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			a.Logger.Error("upload failed", zap.String("file", r.Input), zap.Error(r.Err))
		}
	}
	a.Logger.Info("upload batch complete",
		zap.String("run_id", runID),
		zap.Int("files", len(opts.Files)),
		zap.Int("failed", failed))
	return results, nil
}

// Download fetches one blob to a local path.
func (a *App) Download(ctx context.Context, remote, local string) error {
	return a.Blob.Download(ctx, remote, local)
}

// ListOptions filters a listing by category and upload date.
type ListOptions struct {
	Category string
	Date     string // YYYY-MM-DD
}

// List enumerates stored blobs under the category/date prefix.
func (a *App) List(ctx context.Context, opts ListOptions) ([]blob.Info, error) {
	prefix := ""
	if strings.TrimSpace(opts.Category) != "" {
		prefix = strings.TrimSpace(opts.Category) + "/"
		if strings.TrimSpace(opts.Date) != "" {
			d, err := time.Parse("2006-01-02", strings.TrimSpace(opts.Date))
			if err != nil {
				return nil, fmt.Errorf("date %q: want YYYY-MM-DD", opts.Date)
			}
			prefix += fmt.Sprintf("%d/%02d/%02d/", d.Year(), int(d.Month()), d.Day())
		}
	}
	return a.Blob.List(ctx, prefix)
}

// Delete removes one blob.
func (a *App) Delete(ctx context.Context, remote string) error {
	return a.Blob.Delete(ctx, remote)
}

// FetchOptions configures an emissions report export.
type FetchOptions struct {
	Query  carbon.Query
	Output string
	Format string // empty detects from Output
}

// Fetch queries the Carbon Optimization service and writes the report table
// to a local file.
func (a *App) Fetch(ctx context.Context, opts FetchOptions) (int, error) {
	t, err := a.Carbon.Emissions(ctx, opts.Query)
	if err != nil {
		return 0, err
	}

	var format pipeline.Format
	if strings.TrimSpace(opts.Format) != "" {
		if format, err = pipeline.ParseFormat(opts.Format); err != nil {
			return 0, err
		}
	} else if format, err = pipeline.DetectFormat(opts.Output); err != nil {
		return 0, err
	}

	if err := pipeline.WriteFile(t, opts.Output, format); err != nil {
		return 0, err
	}
	a.Logger.Info("exported emissions report",
		zap.String("output", opts.Output),
		zap.Int("records", t.NumRows()))
	return t.NumRows(), nil
}

// IntegrateOptions configures cloud-emissions integration into a local
// activity file.
type IntegrateOptions struct {
	ActivityFile string
	Output       string
	Query        carbon.Query
}

// Integrate fetches cloud emissions, appends them to the activity table as
// standardized activity rows, writes the combined table, and returns the
// emission totals.
func (a *App) Integrate(ctx context.Context, opts IntegrateOptions) (carbon.Summary, error) {
	activity, err := pipeline.LoadFile(opts.ActivityFile, pipeline.LoadOptions{MaxBytes: a.Cfg.MaxFileBytes()})
	if err != nil {
		return carbon.Summary{}, err
	}

	emissions, err := a.Carbon.Emissions(ctx, opts.Query)
	if err != nil {
		return carbon.Summary{}, err
	}

	combined, summary, err := carbon.Integrate(activity, emissions)
	if err != nil {
		return carbon.Summary{}, err
	}

	format, err := pipeline.DetectFormat(opts.Output)
	if err != nil {
		return summary, err
	}
	if err := pipeline.WriteFile(combined, opts.Output, format); err != nil {
		return summary, err
	}

	fields := []zap.Field{
		zap.String("output", opts.Output),
		zap.Int("activity_rows", summary.ActivityRows),
		zap.Int("cloud_rows", summary.CloudRows),
	}
	if summary.CloudEmissionsKg.Known {
		fields = append(fields, zap.Float64("cloud_emissions_kg", summary.CloudEmissionsKg.Sum))
	}
	a.Logger.Info("integrated cloud emissions", fields...)
	return summary, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
