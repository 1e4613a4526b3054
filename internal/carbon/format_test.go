package carbon_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenops/esg-reporting/internal/carbon"
	"github.com/greenops/esg-reporting/pkg/table"
)

func emissionsTable(t *testing.T, records []map[string]any) *table.Table {
	t.Helper()
	tbl, err := table.FromRecords(records)
	require.NoError(t, err)
	return tbl
}

func TestFormatForESGSummaryRow(t *testing.T) {
	t.Parallel()

	tbl := emissionsTable(t, []map[string]any{{
		"dataType":                           "OverallSummaryData",
		"latestMonthEmissions":               12.5,
		"previousMonthEmissions":             10.0,
		"monthOverMonthEmissionsChangeRatio": 0.25,
		"query_date_start":                   "2026-01-01",
		"retrieved_at":                       "2026-02-01T00:00:00Z",
	}})

	out, err := carbon.FormatForESG(tbl)
	require.NoError(t, err)
	require.Equal(t, 1, out.NumRows())

	at, _ := out.String(0, "activity_type")
	assert.Equal(t, carbon.ActivityType, at)
	src, _ := out.String(0, "source")
	assert.Equal(t, "Azure Carbon Optimization", src)
	scope, _ := out.String(0, "scope")
	assert.Equal(t, "Scope 2", scope)
	quality, _ := out.String(0, "data_quality")
	assert.Equal(t, "High", quality)
	verified, _ := out.String(0, "verification_status")
	assert.Equal(t, "Third-party verified", verified)

	kg, ok := out.Number(0, "emissions_co2_kg")
	require.True(t, ok)
	assert.Equal(t, 12.5, kg)
	prev, _ := out.Number(0, "previous_period_emissions")
	assert.Equal(t, 10.0, prev)
	ratio, _ := out.Number(0, "change_ratio")
	assert.Equal(t, 0.25, ratio)
	desc, _ := out.String(0, "description")
	assert.Equal(t, "Azure Cloud Emissions Summary - OverallSummaryData", desc)
}

func TestFormatForESGResourceDetailsRow(t *testing.T) {
	t.Parallel()

	tbl := emissionsTable(t, []map[string]any{{
		"dataType":             "ResourceItemDetailsData",
		"latestMonthEmissions": 3.25,
		"itemName":             "vm-prod-01",
		"resourceGroup":        "rg-prod",
		"resourceType":         "microsoft.compute/virtualmachines",
		"location":             "westeurope",
		"subscriptionId":       "sub-a",
	}})

	out, err := carbon.FormatForESG(tbl)
	require.NoError(t, err)

	name, _ := out.String(0, "resource_name")
	assert.Equal(t, "vm-prod-01", name)
	group, _ := out.String(0, "resource_group")
	assert.Equal(t, "rg-prod", group)
	loc, _ := out.String(0, "location")
	assert.Equal(t, "westeurope", loc)
	desc, _ := out.String(0, "description")
	assert.Equal(t, "Azure Resource Emissions - vm-prod-01", desc)
}

func TestFormatForESGResourceDetailsFallbacks(t *testing.T) {
	t.Parallel()

	tbl := emissionsTable(t, []map[string]any{{
		"dataType":             "ResourceItemDetailsData",
		"latestMonthEmissions": 1.0,
	}})

	out, err := carbon.FormatForESG(tbl)
	require.NoError(t, err)

	for _, col := range []string{"resource_name", "resource_group", "resource_type", "location", "subscription_id"} {
		s, ok := out.String(0, col)
		require.True(t, ok, col)
		assert.Equal(t, "Unknown", s, col)
	}
}

func TestFormatForESGGenericRowUsesTotalEmissions(t *testing.T) {
	t.Parallel()

	tbl := emissionsTable(t, []map[string]any{{
		"dataType":       "SomethingElse",
		"totalEmissions": 7.5,
		"report_type":    "MonthlySummaryReport",
	}})

	out, err := carbon.FormatForESG(tbl)
	require.NoError(t, err)

	kg, ok := out.Number(0, "emissions_co2_kg")
	require.True(t, ok)
	assert.Equal(t, 7.5, kg)
	desc, _ := out.String(0, "description")
	assert.Equal(t, "Azure Cloud Emissions - MonthlySummaryReport", desc)
}

func TestFormatForESGEmptyInput(t *testing.T) {
	t.Parallel()

	out, err := carbon.FormatForESG(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, out.NumRows())
}

func TestIntegrate(t *testing.T) {
	t.Parallel()

	activity, err := table.FromRaw(
		[]string{"activity", "scope1", "scope2", "scope3"},
		[][]string{
			{"travel", "10", "", "5"},
			{"freight", "2", "1", ""},
		},
	)
	require.NoError(t, err)

	emissions := emissionsTable(t, []map[string]any{
		{"dataType": "OverallSummaryData", "latestMonthEmissions": 12.5, "previousMonthEmissions": 10.0},
		{"dataType": "OverallSummaryData", "latestMonthEmissions": 2.5, "previousMonthEmissions": 3.0},
	})

	combined, summary, err := carbon.Integrate(activity, emissions)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ActivityRows)
	assert.Equal(t, 2, summary.CloudRows)
	assert.Equal(t, 4, combined.NumRows())

	// Cloud-only columns exist on activity rows as nulls.
	v, ok := combined.Value(0, "emissions_co2_kg")
	require.True(t, ok)
	assert.True(t, v.IsNull())

	require.True(t, summary.CloudEmissionsKg.Known)
	assert.Equal(t, 15.0, summary.CloudEmissionsKg.Sum)

	// Nulls count as zero in the activity scope totals.
	require.True(t, summary.Scope1.Known)
	assert.Equal(t, 12.0, summary.Scope1.Sum)
	require.True(t, summary.Scope2.Known)
	assert.Equal(t, 1.0, summary.Scope2.Sum)
	require.True(t, summary.Scope3.Known)
	assert.Equal(t, 5.0, summary.Scope3.Sum)

	// Cloud rows carry the standardized activity type.
	at, ok := combined.String(2, "activity_type")
	require.True(t, ok)
	assert.Equal(t, carbon.ActivityType, at)
}

func TestIntegrateAllNullTotalIsUnknown(t *testing.T) {
	t.Parallel()

	activity, err := table.New([]table.Column{
		{Name: "activity", Type: table.TypeString},
		{Name: "scope1", Type: table.TypeNumber},
	})
	require.NoError(t, err)
	require.NoError(t, activity.AppendRow([]table.Value{
		table.String("travel"), table.Null(table.TypeNumber),
	}))

	combined, summary, err := carbon.Integrate(activity, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, combined.NumRows())
	assert.Equal(t, 0, summary.CloudRows)
	assert.False(t, summary.Scope1.Known, "a total over only nulls is unknown, not zero")
	assert.False(t, summary.CloudEmissionsKg.Known)
}
