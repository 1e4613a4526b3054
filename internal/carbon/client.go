package carbon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/greenops/esg-reporting/internal/secrets"
	"github.com/greenops/esg-reporting/internal/util"
	"github.com/greenops/esg-reporting/pkg/table"
)

const (
	// DefaultBaseURL is the Azure Resource Manager endpoint.
	DefaultBaseURL = "https://management.azure.com"

	reportsPath       = "providers/Microsoft.Carbon/carbonEmissionReports"
	reportsAPIVersion = "2025-04-01"

	subscriptionsPath       = "subscriptions"
	subscriptionsAPIVersion = "2020-01-01"
)

// Client talks to the Carbon Optimization service.
type Client struct {
	baseURL *url.URL
	tokens  secrets.TokenSource
	http    *http.Client
	logger  *zap.Logger
	now     func() time.Time
}

// NewClient constructs a client. An empty baseURL selects the public ARM
// endpoint.
func NewClient(baseURL string, tokens secrets.TokenSource, logger *zap.Logger) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse carbon API base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("carbon API base URL must include a host (got %q)", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawQuery = ""
	u.Fragment = ""

	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: u,
		tokens:  tokens,
		// Report generation can be slow for wide date ranges.
		http:   &http.Client{Timeout: 120 * time.Second},
		logger: logger,
		now:    time.Now,
	}, nil
}

// HTTPError is a sanitized summary of a non-2xx Carbon service response.
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string
	ErrorCode  string
	Message    string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "carbon API error"
	}
	s := fmt.Sprintf("carbon API error: op=%s status=%s", e.Op, e.Status)
	if e.ErrorCode != "" {
		s += " code=" + e.ErrorCode
	}
	if e.Message != "" {
		s += " message=" + e.Message
	}
	return s
}

// Transient reports whether the response indicates a retryable condition.
func (e *HTTPError) Transient() bool {
	if e == nil {
		return false
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode/100 == 5
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newHTTPError(op string, resp *http.Response, body []byte) error {
	h := &HTTPError{Op: op}
	if resp != nil {
		h.StatusCode = resp.StatusCode
		h.Status = resp.Status
	}
	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil {
		h.ErrorCode = strings.TrimSpace(env.Error.Code)
		h.Message = util.RedactSecrets(strings.TrimSpace(env.Error.Message))
		if len(h.Message) > 256 {
			h.Message = h.Message[:256] + "..."
		}
	}
	return h
}

type accessDecision struct {
	SubscriptionID string `json:"subscriptionId"`
	Decision       string `json:"decision"`
	DenialReason   string `json:"denialReason"`
}

type reportResponse struct {
	Value                          []map[string]any `json:"value"`
	SubscriptionAccessDecisionList []accessDecision `json:"subscriptionAccessDecisionList"`
	SkipToken                      string           `json:"skipToken"`
}

// Emissions runs one report query and returns the records as a table with
// report_type, query_date_start, query_date_end, and retrieved_at metadata
// columns appended. Subscriptions the caller cannot read are logged as
// warnings, not errors.
func (c *Client) Emissions(ctx context.Context, q Query) (*table.Table, error) {
	if err := q.validate(); err != nil {
		return nil, fmt.Errorf("emissions query: %w", err)
	}

	c.logger.Info("fetching emissions report",
		zap.String("reportType", string(q.ReportType)),
		zap.Int("subscriptions", len(q.Subscriptions)),
		zap.String("start", q.Range.Start),
		zap.String("end", q.Range.End))

	body, err := json.Marshal(q.payload())
	if err != nil {
		return nil, fmt.Errorf("encode emissions query: %w", err)
	}

	u := c.resolve(reportsPath, reportsAPIVersion)
	respBody, err := c.do(ctx, http.MethodPost, u, bytes.NewReader(body), "listReports")
	if err != nil {
		return nil, err
	}

	var parsed reportResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse emissions response: %w", err)
	}

	for _, d := range parsed.SubscriptionAccessDecisionList {
		if strings.EqualFold(d.Decision, "Denied") {
			reason := d.DenialReason
			if reason == "" {
				reason = "unknown reason"
			}
			c.logger.Warn("subscription access denied",
				zap.String("subscription", d.SubscriptionID),
				zap.String("reason", reason))
		}
	}

	if len(parsed.Value) == 0 {
		c.logger.Warn("no emissions data returned")
		return table.New(nil)
	}

	t, err := table.FromRecords(parsed.Value)
	if err != nil {
		return nil, fmt.Errorf("build emissions table: %w", err)
	}
	if err := c.addQueryMetadata(t, q); err != nil {
		return nil, err
	}

	c.logger.Info("emissions report retrieved", zap.Int("records", t.NumRows()))
	return t, nil
}

func (c *Client) addQueryMetadata(t *table.Table, q Query) error {
	meta := []struct {
		name  string
		value string
	}{
		{"report_type", string(q.ReportType)},
		{"query_date_start", q.Range.Start},
		{"query_date_end", q.Range.End},
		{"retrieved_at", c.now().UTC().Format(time.RFC3339)},
	}
	for _, m := range meta {
		vals := make([]table.Value, t.NumRows())
		for i := range vals {
			vals[i] = table.String(m.value)
		}
		if err := t.AddColumn(table.Column{Name: m.name, Type: table.TypeString}, vals); err != nil {
			return fmt.Errorf("add metadata column %q: %w", m.name, err)
		}
	}
	return nil
}

type subscriptionsResponse struct {
	Value []struct {
		SubscriptionID string `json:"subscriptionId"`
		DisplayName    string `json:"displayName"`
		State          string `json:"state"`
	} `json:"value"`
}

// ListSubscriptions enumerates the subscriptions visible to the credential.
func (c *Client) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	u := c.resolve(subscriptionsPath, subscriptionsAPIVersion)
	body, err := c.do(ctx, http.MethodGet, u, nil, "listSubscriptions")
	if err != nil {
		return nil, err
	}

	var parsed subscriptionsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse subscriptions response: %w", err)
	}
	out := make([]Subscription, 0, len(parsed.Value))
	for _, s := range parsed.Value {
		out = append(out, Subscription{
			ID:          s.SubscriptionID,
			DisplayName: s.DisplayName,
			State:       s.State,
		})
	}
	c.logger.Info("listed subscriptions", zap.Int("count", len(out)))
	return out, nil
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, body io.Reader, op string) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve management token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, newHTTPError(op, resp, b)
	}
	return b, nil
}

func (c *Client) resolve(relPath, apiVersion string) *url.URL {
	rel := &url.URL{Path: strings.TrimPrefix(relPath, "/")}
	u := c.baseURL.ResolveReference(rel)
	q := url.Values{}
	q.Set("api-version", apiVersion)
	u.RawQuery = q.Encode()
	return u
}
