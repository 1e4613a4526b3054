package pipeline_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenops/esg-reporting/pkg/pipeline"
	"github.com/greenops/esg-reporting/pkg/schema"
	"github.com/greenops/esg-reporting/pkg/table"
)

func emissionsSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, ok := schema.Builtin("emissions")
	require.True(t, ok)
	return s
}

func loadCSV(t *testing.T, in string) *table.Table {
	t.Helper()
	tbl, err := pipeline.Load(strings.NewReader(in), pipeline.FormatCSV)
	require.NoError(t, err)
	return tbl
}

func TestValidateCleanTable(t *testing.T) {
	t.Parallel()

	tbl := loadCSV(t, "activity,date,scope1,unit\ntravel,2024-01-05,10,kgCO2e\n")
	rep := pipeline.Validate(tbl, emissionsSchema(t))

	assert.False(t, rep.HasErrors())
	assert.Empty(t, rep.Findings)
	assert.Equal(t, "emissions", rep.Category)
}

func TestValidateMissingRequiredColumn(t *testing.T) {
	t.Parallel()

	tbl := loadCSV(t, "scope1,scope2\n10,5\n")
	rep := pipeline.Validate(tbl, emissionsSchema(t))

	require.True(t, rep.HasErrors())
	errs := rep.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, pipeline.TableLevel, errs[0].Row)
	assert.Equal(t, "activity", errs[0].Column)
}

func TestValidateNullInNonNullColumn(t *testing.T) {
	t.Parallel()

	tbl := loadCSV(t, "activity,scope1\ntravel,10\n,5\n")
	rep := pipeline.Validate(tbl, emissionsSchema(t))

	require.True(t, rep.HasErrors())
	errs := rep.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, 1, errs[0].Row)
	assert.Equal(t, "activity", errs[0].Column)
}

func TestValidateUnparseableValueIsRowError(t *testing.T) {
	t.Parallel()

	// One bad cell turns the whole column into strings at load time; the
	// validator still checks each cell against the declared type.
	tbl := loadCSV(t, "activity,scope1\ntravel,10\nfreight,lots\n")
	rep := pipeline.Validate(tbl, emissionsSchema(t))

	require.True(t, rep.HasErrors())
	errs := rep.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, 1, errs[0].Row)
	assert.Equal(t, "scope1", errs[0].Column)

	// Row 0 parses, so it carries no finding.
	assert.False(t, rep.RowHasError(0))
}

func TestValidateRangeViolationIsWarning(t *testing.T) {
	t.Parallel()

	tbl := loadCSV(t, "activity,scope1\ntravel,-4\n")
	rep := pipeline.Validate(tbl, emissionsSchema(t))

	assert.False(t, rep.HasErrors())
	warns := rep.Warnings()
	require.Len(t, warns, 1)
	assert.Equal(t, 0, warns[0].Row)
	assert.Equal(t, "scope1", warns[0].Column)
}

func TestValidateEnumViolationIsWarning(t *testing.T) {
	t.Parallel()

	tbl := loadCSV(t, "activity,unit\ntravel,bananas\n")
	rep := pipeline.Validate(tbl, emissionsSchema(t))

	assert.False(t, rep.HasErrors())
	require.Len(t, rep.Warnings(), 1)
}

func TestValidateExtraColumnIsTableWarning(t *testing.T) {
	t.Parallel()

	tbl := loadCSV(t, "activity,comment\ntravel,fine\n")
	rep := pipeline.Validate(tbl, emissionsSchema(t))

	assert.False(t, rep.HasErrors())
	warns := rep.Warnings()
	require.Len(t, warns, 1)
	assert.Equal(t, pipeline.TableLevel, warns[0].Row)
	assert.Equal(t, "comment", warns[0].Column)
}

func TestValidateEmptySchemaAcceptsAnything(t *testing.T) {
	t.Parallel()

	s, ok := schema.Builtin("general")
	require.True(t, ok)

	tbl := loadCSV(t, "whatever,columns\n1,2\n")
	rep := pipeline.Validate(tbl, s)
	assert.Empty(t, rep.Findings)
}

func TestValidateIsPure(t *testing.T) {
	t.Parallel()

	tbl := loadCSV(t, "activity,scope1\ntravel,-4\n,10\n")
	before := tbl.Clone()
	s := emissionsSchema(t)

	rep1 := pipeline.Validate(tbl, s)
	rep2 := pipeline.Validate(tbl, s)

	assert.Equal(t, rep1, rep2, "same inputs must yield the same report")
	assert.True(t, tbl.Equal(before), "validation must not mutate the table")
}
