package blob

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/greenops/esg-reporting/internal/util"
)

// storageErrorEnvelope is the XML error body returned by the Blob service.
// Responses may include more fields; we intentionally ignore them.
type storageErrorEnvelope struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

// HTTPError is a sanitized summary of a non-2xx Blob service response.
//
// Important: do not include raw response bodies here (they can leak SAS
// signatures and account keys).
type HTTPError struct {
	Op         string
	StatusCode int
	Status     string
	ErrorCode  string

	// Snippet is a redacted, truncated hint for unrecognized responses.
	Snippet string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "blob storage error"
	}
	parts := []string{
		fmt.Sprintf("blob storage error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.ErrorCode) != "" {
		parts = append(parts, "errorCode="+strings.TrimSpace(e.ErrorCode))
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

// Transient reports whether the response indicates a retryable condition.
func (e *HTTPError) Transient() bool {
	if e == nil {
		return false
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode/100 == 5
}

// NotFound reports whether the response indicates a missing container/blob.
func (e *HTTPError) NotFound() bool {
	return e != nil && e.StatusCode == http.StatusNotFound
}

func newHTTPError(op string, resp *http.Response, body []byte) error {
	h := &HTTPError{Op: op}
	if resp != nil {
		h.StatusCode = resp.StatusCode
		h.Status = resp.Status
		h.ErrorCode = strings.TrimSpace(resp.Header.Get("x-ms-error-code"))
	}

	if h.ErrorCode == "" && len(body) > 0 {
		var env storageErrorEnvelope
		if xml.Unmarshal(body, &env) == nil && strings.TrimSpace(env.Code) != "" {
			h.ErrorCode = strings.TrimSpace(env.Code)
			return h
		}
		h.Snippet = redactAndTruncate(body)
	}
	return h
}

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	// Keep this small: response bodies can contain sensitive data.
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := util.RedactSecrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}
