// Package blob is a minimal HTTP client for the Blob service operations the
// ESG pipeline needs: put, get, list, delete, and container creation.
// Authentication is delegated to a secrets.TokenSource.
package blob

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/greenops/esg-reporting/internal/secrets"
)

const apiVersion = "2021-08-06"

// Client talks to one storage account and container.
type Client struct {
	accountURL *url.URL
	container  string
	tokens     secrets.TokenSource
	http       *http.Client
	logger     *zap.Logger
}

// NewClient constructs a client for a storage account base URL, e.g.
// "https://<account>.blob.core.windows.net".
func NewClient(accountURL, container string, tokens secrets.TokenSource, logger *zap.Logger) (*Client, error) {
	raw := strings.TrimSpace(accountURL)
	if raw == "" {
		return nil, fmt.Errorf("storage account URL is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse storage account URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("storage account URL must include a host (got %q)", accountURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawQuery = ""
	u.Fragment = ""

	container = strings.TrimSpace(container)
	if container == "" {
		return nil, fmt.Errorf("container name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		accountURL: u,
		container:  container,
		tokens:     tokens,
		http:       &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
	}, nil
}

// Info describes one stored blob.
type Info struct {
	Name         string
	Size         int64
	LastModified time.Time
	ETag         string
}

// UploadResult reports a completed upload.
type UploadResult struct {
	BlobName string
	URL      string
	Size     int64
	ETag     string
}

// BlobPath builds the organized remote name for an export file:
// {category}/{yyyy}/{mm}/{dd}/{filename}.
func BlobPath(filename, category string, when time.Time) string {
	if strings.TrimSpace(category) == "" {
		category = "general"
	}
	return fmt.Sprintf("%s/%d/%02d/%02d/%s", category, when.Year(), int(when.Month()), when.Day(), filepath.Base(filename))
}

// EnsureContainer creates the container when it does not exist yet.
func (c *Client) EnsureContainer(ctx context.Context) error {
	u := c.resolve(c.container)
	q := url.Values{}
	q.Set("restype", "container")
	u.RawQuery = q.Encode()

	resp, body, err := c.do(ctx, http.MethodGet, u, nil, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 == 2 {
		return nil
	}
	if resp.StatusCode != http.StatusNotFound {
		return newHTTPError("getContainer", resp, body)
	}

	resp, body, err = c.do(ctx, http.MethodPut, u, nil, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return newHTTPError("createContainer", resp, body)
	}
	c.logger.Info("created container", zap.String("container", c.container))
	return nil
}

// Upload puts a local file at the remote blob name. Metadata keys become
// x-ms-meta-* headers. Without overwrite an existing blob fails with a
// BlobAlreadyExists error code.
func (c *Client) Upload(ctx context.Context, localPath, blobName string, metadata map[string]string, overwrite bool) (UploadResult, error) {
	b, err := os.ReadFile(localPath)
	if err != nil {
		return UploadResult{}, fmt.Errorf("read local file: %w", err)
	}

	u := c.resolveBlob(blobName)
	headers := map[string]string{
		"x-ms-blob-type": "BlockBlob",
		"Content-Type":   "application/octet-stream",
	}
	if !overwrite {
		headers["If-None-Match"] = "*"
	}
	for k, v := range metadata {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		headers["x-ms-meta-"+strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}

	resp, body, err := c.do(ctx, http.MethodPut, u, bytes.NewReader(b), headers)
	if err != nil {
		return UploadResult{}, err
	}
	if resp.StatusCode/100 != 2 {
		return UploadResult{}, newHTTPError("putBlob", resp, body)
	}

	c.logger.Info("uploaded blob",
		zap.String("blob", blobName),
		zap.Int("bytes", len(b)))
	return UploadResult{
		BlobName: blobName,
		URL:      u.String(),
		Size:     int64(len(b)),
		ETag:     resp.Header.Get("ETag"),
	}, nil
}

// Download fetches a blob into a local file, creating parent directories.
func (c *Client) Download(ctx context.Context, blobName, localPath string) error {
	u := c.resolveBlob(blobName)
	resp, body, err := c.do(ctx, http.MethodGet, u, nil, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return newHTTPError("getBlob", resp, body)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create local directory: %w", err)
	}
	if err := os.WriteFile(localPath, body, 0o644); err != nil {
		return fmt.Errorf("write local file: %w", err)
	}
	c.logger.Info("downloaded blob",
		zap.String("blob", blobName),
		zap.String("to", localPath),
		zap.Int("bytes", len(body)))
	return nil
}

// Delete removes a blob.
func (c *Client) Delete(ctx context.Context, blobName string) error {
	u := c.resolveBlob(blobName)
	resp, body, err := c.do(ctx, http.MethodDelete, u, nil, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return newHTTPError("deleteBlob", resp, body)
	}
	c.logger.Info("deleted blob", zap.String("blob", blobName))
	return nil
}

type listBlobsResponse struct {
	XMLName xml.Name `xml:"EnumerationResults"`
	Blobs   struct {
		Blob []struct {
			Name       string `xml:"Name"`
			Properties struct {
				LastModified  string `xml:"Last-Modified"`
				ContentLength int64  `xml:"Content-Length"`
				ETag          string `xml:"Etag"`
			} `xml:"Properties"`
		} `xml:"Blob"`
	} `xml:"Blobs"`
	NextMarker string `xml:"NextMarker"`
}

// List enumerates blobs under a prefix, following continuation markers.
func (c *Client) List(ctx context.Context, prefix string) ([]Info, error) {
	var out []Info
	marker := ""
	for {
		u := c.resolve(c.container)
		q := url.Values{}
		q.Set("restype", "container")
		q.Set("comp", "list")
		if strings.TrimSpace(prefix) != "" {
			q.Set("prefix", strings.TrimSpace(prefix))
		}
		if marker != "" {
			q.Set("marker", marker)
		}
		u.RawQuery = q.Encode()

		resp, body, err := c.do(ctx, http.MethodGet, u, nil, nil)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode/100 != 2 {
			return nil, newHTTPError("listBlobs", resp, body)
		}

		var parsed listBlobsResponse
		if err := xml.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("parse list blobs response: %w", err)
		}
		for _, b := range parsed.Blobs.Blob {
			info := Info{
				Name: b.Name,
				Size: b.Properties.ContentLength,
				ETag: b.Properties.ETag,
			}
			if t, err := time.Parse(time.RFC1123, b.Properties.LastModified); err == nil {
				info.LastModified = t
			}
			out = append(out, info)
		}
		marker = strings.TrimSpace(parsed.NextMarker)
		if marker == "" {
			return out, nil
		}
	}
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, body io.Reader, headers map[string]string) (*http.Response, []byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve storage token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-ms-version", apiVersion)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp, b, nil
}

func (c *Client) resolve(relPath string) *url.URL {
	relPath = strings.TrimPrefix(relPath, "/")
	rel := &url.URL{Path: relPath}
	return c.accountURL.ResolveReference(rel)
}

func (c *Client) resolveBlob(blobName string) *url.URL {
	return c.resolve(c.container + "/" + escapeURLPath(blobName))
}

func escapeURLPath(p string) string {
	// Preserve "/" separators while escaping each segment.
	cleaned := path.Clean("/" + p)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "." {
		return ""
	}
	parts := strings.Split(cleaned, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

// IsNotFound reports whether err is a 404 from the Blob service.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.NotFound()
}
