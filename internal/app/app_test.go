package app_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/greenops/esg-reporting/internal/app"
	"github.com/greenops/esg-reporting/internal/blob"
	"github.com/greenops/esg-reporting/internal/config"
	"github.com/greenops/esg-reporting/internal/mockblob"
	"github.com/greenops/esg-reporting/internal/secrets"
	"github.com/greenops/esg-reporting/pkg/pipeline"
)

func newTestApp(t *testing.T) (*app.App, *mockblob.Server) {
	t.Helper()

	mock := mockblob.New()
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	cfg := config.Default()
	bc, err := blob.NewClient(srv.URL, cfg.Container, secrets.StaticToken("test"), nil)
	require.NoError(t, err)

	return &app.App{
		Cfg:    cfg,
		Logger: zap.NewNop(),
		Blob:   bc,
	}, mock
}

func TestProcessFileWritesOutputAndReport(t *testing.T) {
	t.Parallel()

	a, _ := newTestApp(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "emissions.csv")
	require.NoError(t, os.WriteFile(input,
		[]byte("activity,scope1,scope2,scope3\ntravel,10,,5\nfreight,lots,1,1\n"), 0o644))

	res, err := a.ProcessFile(context.Background(), app.ProcessOptions{
		Input:    input,
		Category: "emissions",
		Policy: pipeline.Policy{
			Mode:            pipeline.ModeBestEffort,
			DropInvalidRows: true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowsIn)
	assert.Equal(t, 1, res.RowsOut)

	// Output path is derived from the input when not given.
	output := filepath.Join(dir, "emissions_processed.csv")
	_, err = os.Stat(output)
	require.NoError(t, err)

	b, err := os.ReadFile(output + ".report.json")
	require.NoError(t, err)
	var report pipeline.RunResult
	require.NoError(t, json.Unmarshal(b, &report))
	assert.Equal(t, res.RunID, report.RunID)
}

func TestProcessFileUnknownCategory(t *testing.T) {
	t.Parallel()

	a, _ := newTestApp(t)
	_, err := a.ProcessFile(context.Background(), app.ProcessOptions{
		Input:    "whatever.csv",
		Category: "unheard-of",
	})
	assert.Error(t, err)
}

func TestUploadValidatesBeforeSending(t *testing.T) {
	t.Parallel()

	a, mock := newTestApp(t)
	dir := t.TempDir()

	good := filepath.Join(dir, "good.csv")
	require.NoError(t, os.WriteFile(good, []byte("activity,scope1\ntravel,10\n"), 0o644))
	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("scope1\n10\n"), 0o644))

	results, err := a.Upload(context.Background(), app.UploadOptions{
		Files:    []string{good, bad},
		Category: "emissions",
		Validate: true,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.NoError(t, results[0].Err)
	assert.NotEmpty(t, results[0].Output.BlobName)
	assert.Equal(t, results[0].Output.RunID, results[1].Output.RunID, "one run ID per batch")

	var ve *pipeline.ValidationError
	require.ErrorAs(t, results[1].Err, &ve)

	// Only the valid file reached storage.
	body, metadata, ok := mock.Blob("esg-data", results[0].Output.BlobName)
	require.True(t, ok)
	assert.Equal(t, "activity,scope1\ntravel,10\n", string(body))
	assert.Equal(t, "emissions", metadata["entity_type"])
	assert.Equal(t, "good.csv", metadata["original_filename"])
	_, _, ok = mock.Blob("esg-data", "emissions/bad.csv")
	assert.False(t, ok)
}

func TestUploadCleanNormalizesBeforeSending(t *testing.T) {
	t.Parallel()

	a, mock := newTestApp(t)
	local := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(local, []byte("Activity,Scope1\ntravel,10\n"), 0o644))

	results, err := a.Upload(context.Background(), app.UploadOptions{
		Files:    []string{local},
		Category: "emissions",
		Validate: true,
		Clean:    true,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	body, _, ok := mock.Blob("esg-data", results[0].Output.BlobName)
	require.True(t, ok)
	assert.Equal(t, "activity,scope1\ntravel,10\n", string(body))
}

func TestUploadNoFiles(t *testing.T) {
	t.Parallel()

	a, _ := newTestApp(t)
	_, err := a.Upload(context.Background(), app.UploadOptions{Category: "general"})
	assert.Error(t, err)
}

func TestListPrefix(t *testing.T) {
	t.Parallel()

	a, mock := newTestApp(t)
	mock.PutBlob("esg-data", "emissions/2026/03/07/a.csv", []byte("x"))
	mock.PutBlob("esg-data", "emissions/2026/03/08/b.csv", []byte("y"))
	mock.PutBlob("esg-data", "suppliers/2026/03/07/c.csv", []byte("z"))

	infos, err := a.List(context.Background(), app.ListOptions{Category: "emissions", Date: "2026-03-07"})
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "emissions/2026/03/07/a.csv", infos[0].Name)

	infos, err = a.List(context.Background(), app.ListOptions{Category: "emissions"})
	require.NoError(t, err)
	assert.Len(t, infos, 2)

	_, err = a.List(context.Background(), app.ListOptions{Category: "emissions", Date: "last tuesday"})
	assert.Error(t, err)
}
