// Package carbon is a client for the Azure Carbon Optimization service:
// emission report queries, subscription discovery, and conversion of the
// returned records into ESG activity tables.
package carbon

import (
	"fmt"
	"strings"
	"time"
)

// ReportType selects which emission report the service computes.
type ReportType string

const (
	OverallSummaryReport         ReportType = "OverallSummaryReport"
	MonthlySummaryReport         ReportType = "MonthlySummaryReport"
	TopItemsSummaryReport        ReportType = "TopItemsSummaryReport"
	TopItemsMonthlySummaryReport ReportType = "TopItemsMonthlySummaryReport"
	ItemDetailsReport            ReportType = "ItemDetailsReport"
)

// ParseReportType accepts the wire name, case-insensitively.
func ParseReportType(s string) (ReportType, error) {
	for _, rt := range []ReportType{
		OverallSummaryReport,
		MonthlySummaryReport,
		TopItemsSummaryReport,
		TopItemsMonthlySummaryReport,
		ItemDetailsReport,
	} {
		if strings.EqualFold(strings.TrimSpace(s), string(rt)) {
			return rt, nil
		}
	}
	return "", fmt.Errorf("unknown report type %q", s)
}

// Scope is a carbon emission scope.
type Scope string

const (
	Scope1 Scope = "Scope1"
	Scope2 Scope = "Scope2"
	Scope3 Scope = "Scope3"
)

// AllScopes is the default scope selection.
func AllScopes() []Scope { return []Scope{Scope1, Scope2, Scope3} }

// ParseScopes parses a comma-separated scope list ("Scope1,Scope3").
func ParseScopes(s string) ([]Scope, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return AllScopes(), nil
	}
	var out []Scope
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.EqualFold(part, string(Scope1)):
			out = append(out, Scope1)
		case strings.EqualFold(part, string(Scope2)):
			out = append(out, Scope2)
		case strings.EqualFold(part, string(Scope3)):
			out = append(out, Scope3)
		default:
			return nil, fmt.Errorf("unknown carbon scope %q", part)
		}
	}
	return out, nil
}

// CategoryType selects the breakdown dimension for detail and top-items
// reports.
type CategoryType string

const (
	CategoryResource      CategoryType = "Resource"
	CategoryResourceGroup CategoryType = "ResourceGroup"
	CategoryResourceType  CategoryType = "ResourceType"
	CategoryLocation      CategoryType = "Location"
	CategorySubscription  CategoryType = "Subscription"
)

// OrderBy selects the sort column for ItemDetailsReport.
type OrderBy string

const (
	OrderByLatestMonthEmissions   OrderBy = "LatestMonthEmissions"
	OrderByPreviousMonthEmissions OrderBy = "PreviousMonthEmissions"
	OrderByMonthOverMonthChange   OrderBy = "MonthOverMonthEmissionsChangeRatio"
)

// SortDirection is the sort order for ItemDetailsReport.
type SortDirection string

const (
	SortAsc  SortDirection = "Asc"
	SortDesc SortDirection = "Desc"
)

// DateRange bounds a query, inclusive, as YYYY-MM-DD dates.
type DateRange struct {
	Start string
	End   string
}

func (r DateRange) validate() error {
	for _, d := range []string{r.Start, r.End} {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("date %q: want YYYY-MM-DD", d)
		}
	}
	if r.End < r.Start {
		return fmt.Errorf("date range end %s before start %s", r.End, r.Start)
	}
	return nil
}

// Query configures one emission report request.
type Query struct {
	ReportType    ReportType
	Subscriptions []string
	Scopes        []Scope
	Range         DateRange

	// Optional filters.
	Locations         []string
	ResourceGroupURLs []string
	ResourceTypes     []string

	// ItemDetailsReport paging and ordering.
	Category  CategoryType
	OrderBy   OrderBy
	Sort      SortDirection
	PageSize  int
	SkipToken string

	// TopItems reports.
	TopItems int
}

const (
	maxPageSize = 5000
	maxTopItems = 10
)

func (q Query) validate() error {
	if q.ReportType == "" {
		return fmt.Errorf("report type is required")
	}
	if len(q.Subscriptions) == 0 {
		return fmt.Errorf("at least one subscription ID is required")
	}
	if len(q.Scopes) == 0 {
		return fmt.Errorf("at least one carbon scope is required")
	}
	return q.Range.validate()
}

// payload builds the request body. Subscription IDs and filter values are
// lowercased; page size and top-items are clamped to the service maxima.
func (q Query) payload() map[string]any {
	p := map[string]any{
		"reportType":       string(q.ReportType),
		"subscriptionList": lowerAll(q.Subscriptions),
		"carbonScopeList":  scopeNames(q.Scopes),
		"dateRange": map[string]string{
			"start": q.Range.Start,
			"end":   q.Range.End,
		},
	}
	if len(q.Locations) > 0 {
		p["locationList"] = lowerAll(q.Locations)
	}
	if len(q.ResourceGroupURLs) > 0 {
		p["resourceGroupUrlList"] = lowerAll(q.ResourceGroupURLs)
	}
	if len(q.ResourceTypes) > 0 {
		p["resourceTypeList"] = lowerAll(q.ResourceTypes)
	}

	if q.ReportType == ItemDetailsReport {
		if q.Category != "" {
			p["categoryType"] = string(q.Category)
		}
		if q.OrderBy != "" {
			p["orderBy"] = string(q.OrderBy)
		}
		if q.Sort != "" {
			p["sortDirection"] = string(q.Sort)
		}
		if q.PageSize > 0 {
			p["pageSize"] = min(q.PageSize, maxPageSize)
		}
		if q.SkipToken != "" {
			p["skipToken"] = q.SkipToken
		}
	}

	if q.ReportType == TopItemsSummaryReport || q.ReportType == TopItemsMonthlySummaryReport {
		if q.Category != "" {
			p["categoryType"] = string(q.Category)
		}
		if q.TopItems > 0 {
			p["topItems"] = min(q.TopItems, maxTopItems)
		}
	}
	return p
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

func scopeNames(in []Scope) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

// Subscription is one entry from subscription discovery.
type Subscription struct {
	ID          string
	DisplayName string
	State       string
}
