package table_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenops/esg-reporting/pkg/table"
)

func TestInferType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		samples []string
		want    table.Type
	}{
		{"numbers", []string{"1", "2.5", "-3"}, table.TypeNumber},
		{"numbers with nulls", []string{"1", "", "3"}, table.TypeNumber},
		{"zero one is numeric not bool", []string{"0", "1", "0"}, table.TypeNumber},
		{"bools", []string{"true", "false", "TRUE"}, table.TypeBool},
		{"dates", []string{"2024-01-01", "2024-02-29"}, table.TypeDate},
		{"mixed falls back to string", []string{"1", "abc"}, table.TypeString},
		{"all empty is string", []string{"", ""}, table.TypeString},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, table.InferType(tc.samples))
		})
	}
}

func TestFromRawTypesColumnsOnce(t *testing.T) {
	t.Parallel()

	tbl, err := table.FromRaw(
		[]string{"activity", "scope1", "date"},
		[][]string{
			{"travel", "10", "2024-01-05"},
			{"freight", "", "2024-01-06"},
		},
	)
	require.NoError(t, err)

	cols := tbl.Columns()
	assert.Equal(t, table.TypeString, cols[0].Type)
	assert.Equal(t, table.TypeNumber, cols[1].Type)
	assert.Equal(t, table.TypeDate, cols[2].Type)

	n, ok := tbl.Number(0, "scope1")
	require.True(t, ok)
	assert.Equal(t, 10.0, n)

	// Empty cell became a typed null, not a zero.
	v, ok := tbl.Value(1, "scope1")
	require.True(t, ok)
	assert.True(t, v.IsNull())
	_, ok = tbl.Number(1, "scope1")
	assert.False(t, ok)
}

func TestAppendRowEnforcesColumnTypes(t *testing.T) {
	t.Parallel()

	tbl, err := table.New([]table.Column{
		{Name: "activity", Type: table.TypeString},
		{Name: "quantity", Type: table.TypeNumber},
	})
	require.NoError(t, err)

	require.NoError(t, tbl.AppendRow([]table.Value{table.String("travel"), table.Number(3)}))

	err = tbl.AppendRow([]table.Value{table.String("travel"), table.String("lots")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantity")

	// Nulls of any type are accepted and normalized.
	require.NoError(t, tbl.AppendRow([]table.Value{table.String("freight"), table.Null(table.TypeString)}))
	v, _ := tbl.Value(1, "quantity")
	assert.True(t, v.IsNull())
	assert.Equal(t, table.TypeNumber, v.Type())
}

func TestSumColumnNullSafe(t *testing.T) {
	t.Parallel()

	tbl, err := table.FromRaw(
		[]string{"kg"},
		[][]string{{"10"}, {""}, {"5"}},
	)
	require.NoError(t, err)

	sum, ok := tbl.SumColumn("kg")
	require.True(t, ok)
	assert.Equal(t, 15.0, sum)
}

func TestSumColumnAllNullIsUnknown(t *testing.T) {
	t.Parallel()

	tbl, err := table.New([]table.Column{{Name: "kg", Type: table.TypeNumber}})
	require.NoError(t, err)
	require.NoError(t, tbl.AppendRow([]table.Value{table.Null(table.TypeNumber)}))
	require.NoError(t, tbl.AppendRow([]table.Value{table.Null(table.TypeNumber)}))

	_, ok := tbl.SumColumn("kg")
	assert.False(t, ok)
}

func TestSumColumnRejectsNonNumeric(t *testing.T) {
	t.Parallel()

	tbl, err := table.FromRaw([]string{"activity"}, [][]string{{"travel"}})
	require.NoError(t, err)

	_, ok := tbl.SumColumn("activity")
	assert.False(t, ok)
	_, ok = tbl.SumColumn("missing")
	assert.False(t, ok)
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	tbl, err := table.FromRaw([]string{"a"}, [][]string{{"1"}})
	require.NoError(t, err)

	cp := tbl.Clone()
	require.NoError(t, cp.SetValue(0, "a", table.Number(99)))

	orig, _ := tbl.Number(0, "a")
	assert.Equal(t, 1.0, orig)
	assert.True(t, tbl.Equal(tbl.Clone()))
	assert.False(t, tbl.Equal(cp))
}

func TestRenameColumnsDetectsCollision(t *testing.T) {
	t.Parallel()

	tbl, err := table.FromRaw([]string{"Scope 1", "scope_1"}, [][]string{{"1", "2"}})
	require.NoError(t, err)

	err = tbl.RenameColumns(func(s string) string { return "scope_1" })
	require.Error(t, err)

	// Failed rename leaves the table untouched.
	_, ok := tbl.ColumnIndex("Scope 1")
	assert.True(t, ok)
}

func TestFromRecordsColumnOrderAndTypes(t *testing.T) {
	t.Parallel()

	tbl, err := table.FromRecords([]map[string]any{
		{"latestMonthEmissions": 12.5, "itemName": "vm-a"},
		{"latestMonthEmissions": 7.5, "itemName": "vm-b", "location": "westeurope"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"itemName", "latestMonthEmissions", "location"}, tbl.ColumnNames())

	sum, ok := tbl.SumColumn("latestMonthEmissions")
	require.True(t, ok)
	assert.Equal(t, 20.0, sum)

	// Absent key in the first record became a null, not an empty string.
	v, _ := tbl.Value(0, "location")
	assert.True(t, v.IsNull())
}

func TestValueParseAndFormatRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw string
		typ table.Type
	}{
		{"12.5", table.TypeNumber},
		{"true", table.TypeBool},
		{"2024-03-01", table.TypeDate},
		{"hello world", table.TypeString},
	}
	for _, tc := range cases {
		v, err := table.Parse(tc.raw, tc.typ)
		require.NoError(t, err)
		assert.Equal(t, tc.raw, v.Format())
	}

	v, err := table.Parse("", table.TypeNumber)
	require.NoError(t, err)
	assert.True(t, v.IsNull())
	assert.Equal(t, "", v.Format())
}
