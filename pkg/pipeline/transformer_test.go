package pipeline_test

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenops/esg-reporting/pkg/pipeline"
	"github.com/greenops/esg-reporting/pkg/table"
)

func TestDeriveTotalNullSafeSum(t *testing.T) {
	t.Parallel()

	// A travel row with scope1=10, scope2 null, scope3=5 must total 15:
	// nulls count as zero, never poison the sum.
	tbl := loadCSV(t, "activity,scope1,scope2,scope3\ntravel,10,,5\n")
	rep := pipeline.Validate(tbl, emissionsSchema(t))
	require.False(t, rep.HasErrors())

	out, err := pipeline.Transform(tbl, rep, pipeline.Policy{
		DeriveTotals: []pipeline.DerivedColumn{
			{Name: "total", Sources: []string{"scope1", "scope2", "scope3"}},
		},
	})
	require.NoError(t, err)

	total, ok := out.Number(0, "total")
	require.True(t, ok)
	assert.Equal(t, 15.0, total)
}

func TestDeriveTotalAllNullIsNull(t *testing.T) {
	t.Parallel()

	tbl := loadCSV(t, "activity,scope1,scope2\ntravel,,\n")
	// Force numeric typing: all-null columns load as string.
	numeric, err := table.New([]table.Column{
		{Name: "activity", Type: table.TypeString},
		{Name: "scope1", Type: table.TypeNumber},
		{Name: "scope2", Type: table.TypeNumber},
	})
	require.NoError(t, err)
	require.NoError(t, numeric.AppendRow(tbl.Row(0)))

	out, err := pipeline.Transform(numeric, pipeline.Report{}, pipeline.Policy{
		DeriveTotals: []pipeline.DerivedColumn{
			{Name: "total", Sources: []string{"scope1", "scope2"}},
		},
	})
	require.NoError(t, err)

	v, ok := out.Value(0, "total")
	require.True(t, ok)
	assert.True(t, v.IsNull(), "sum over only nulls must be null, not zero")
}

func TestStrictModeRejectsErrors(t *testing.T) {
	t.Parallel()

	// Missing required activity column: strict mode refuses to transform.
	tbl := loadCSV(t, "scope1\n10\n")
	rep := pipeline.Validate(tbl, emissionsSchema(t))
	require.True(t, rep.HasErrors())

	_, err := pipeline.Transform(tbl, rep, pipeline.Policy{Mode: pipeline.ModeStrict})
	var ve *pipeline.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.NotEmpty(t, ve.Findings)
}

func TestBestEffortDropsInvalidRows(t *testing.T) {
	t.Parallel()

	// Row 1 has a non-numeric scope1 cell; with drop_invalid_rows only that
	// row disappears.
	tbl := loadCSV(t, "activity,scope1\ntravel,10\nfreight,lots\nshipping,3\n")
	rep := pipeline.Validate(tbl, emissionsSchema(t))
	require.True(t, rep.HasErrors())

	out, err := pipeline.Transform(tbl, rep, pipeline.Policy{
		Mode:            pipeline.ModeBestEffort,
		DropInvalidRows: true,
	})
	require.NoError(t, err)

	require.Equal(t, 2, out.NumRows())
	a0, _ := out.String(0, "activity")
	a1, _ := out.String(1, "activity")
	assert.Equal(t, "travel", a0)
	assert.Equal(t, "shipping", a1)

	// Survivors carry no error findings against the new table.
	rep2 := pipeline.Validate(out, emissionsSchema(t))
	assert.False(t, rep2.RowHasError(0))
	assert.False(t, rep2.RowHasError(1))
}

func TestBestEffortWithoutDropKeepsRowsAndAnnotations(t *testing.T) {
	t.Parallel()

	tbl := loadCSV(t, "activity,scope1\ntravel,-4\n")
	rep := pipeline.Validate(tbl, emissionsSchema(t))
	require.False(t, rep.HasErrors())
	require.Len(t, rep.Warnings(), 1)

	out, err := pipeline.Transform(tbl, rep, pipeline.Policy{Mode: pipeline.ModeBestEffort})
	require.NoError(t, err)
	require.Equal(t, 1, out.NumRows())

	notes := out.RowNotes(0)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0], "scope1")
}

func TestFillMissingDefaults(t *testing.T) {
	t.Parallel()

	tbl := loadCSV(t, "activity,unit\ntravel,\nfreight,tCO2e\n")
	out, err := pipeline.Transform(tbl, pipeline.Report{}, pipeline.Policy{
		FillMissing: map[string]table.Value{"unit": table.String("kgCO2e")},
	})
	require.NoError(t, err)

	u0, _ := out.String(0, "unit")
	u1, _ := out.String(1, "unit")
	assert.Equal(t, "kgCO2e", u0)
	assert.Equal(t, "tCO2e", u1, "non-null cells keep their value")
}

func TestFillMissingUnknownColumn(t *testing.T) {
	t.Parallel()

	tbl := loadCSV(t, "activity\ntravel\n")
	_, err := pipeline.Transform(tbl, pipeline.Report{}, pipeline.Policy{
		FillMissing: map[string]table.Value{"ghost": table.String("x")},
	})
	var te *pipeline.TransformError
	require.ErrorAs(t, err, &te)
}

func TestDeriveTotalUnknownSource(t *testing.T) {
	t.Parallel()

	tbl := loadCSV(t, "activity,scope1\ntravel,10\n")
	_, err := pipeline.Transform(tbl, pipeline.Report{}, pipeline.Policy{
		DeriveTotals: []pipeline.DerivedColumn{
			{Name: "total", Sources: []string{"scope1", "ghost"}},
		},
	})
	var te *pipeline.TransformError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Error(), "ghost")
}

func TestDeriveTotalNonNumericSource(t *testing.T) {
	t.Parallel()

	tbl := loadCSV(t, "activity,scope1\ntravel,10\n")
	_, err := pipeline.Transform(tbl, pipeline.Report{}, pipeline.Policy{
		DeriveTotals: []pipeline.DerivedColumn{
			{Name: "total", Sources: []string{"activity"}},
		},
	})
	var te *pipeline.TransformError
	require.ErrorAs(t, err, &te)
}

func TestNormalizeColumnNames(t *testing.T) {
	t.Parallel()

	tbl := loadCSV(t, "Activity Type,Scope-1 Emissions\ntravel,10\n")
	out, err := pipeline.Transform(tbl, pipeline.Report{}, pipeline.Policy{
		NormalizeColumnNames: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"activity_type", "scope_1_emissions"}, out.ColumnNames())
}

func TestTransformDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	tbl := loadCSV(t, "Activity,Unit\ntravel,\n")
	before := tbl.Clone()

	_, err := pipeline.Transform(tbl, pipeline.Report{}, pipeline.Policy{
		NormalizeColumnNames: true,
		FillMissing:          map[string]table.Value{"unit": table.String("kgCO2e")},
	})
	require.NoError(t, err)
	assert.True(t, tbl.Equal(before))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	m, err := pipeline.ParseMode("strict")
	require.NoError(t, err)
	assert.Equal(t, pipeline.ModeStrict, m)

	m, err = pipeline.ParseMode("best-effort")
	require.NoError(t, err)
	assert.Equal(t, pipeline.ModeBestEffort, m)

	_, err = pipeline.ParseMode("lenient")
	assert.Error(t, err)
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := dir + "/emissions.csv"
	out := dir + "/emissions_clean.csv"
	writeFile(t, in, "activity,scope1,scope2,scope3\ntravel,10,,5\nfreight,lots,1,1\n")

	s := emissionsSchema(t)
	res, err := pipeline.Run(pipeline.RunOptions{
		Input:  in,
		Output: out,
		Schema: s,
		Policy: pipeline.Policy{
			Mode:            pipeline.ModeBestEffort,
			DropInvalidRows: true,
			DeriveTotals: []pipeline.DerivedColumn{
				{Name: "total", Sources: []string{"scope1", "scope2", "scope3"}},
			},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 2, res.RowsIn)
	assert.Equal(t, 1, res.RowsOut)

	got, err := pipeline.LoadFile(out, pipeline.LoadOptions{})
	require.NoError(t, err)
	total, ok := got.Number(0, "total")
	require.True(t, ok)
	assert.Equal(t, 15.0, total)
}

func TestRunStrictFailureWritesNoOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := dir + "/bad.csv"
	out := dir + "/bad_clean.csv"
	writeFile(t, in, "scope1\n10\n")

	_, err := pipeline.Run(pipeline.RunOptions{
		Input:  in,
		Output: out,
		Schema: emissionsSchema(t),
		Policy: pipeline.Policy{Mode: pipeline.ModeStrict},
	})
	var ve *pipeline.ValidationError
	require.ErrorAs(t, err, &ve)

	_, statErr := pipeline.LoadFile(out, pipeline.LoadOptions{})
	var nf *pipeline.NotFoundError
	assert.True(t, errors.As(statErr, &nf), "no partial output on failure")
}
