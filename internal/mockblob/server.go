// Package mockblob implements an in-memory "Blob service-like" API surface
// for tests: container create/list and blob put/get/delete, with the same
// status codes and error codes the real service uses for the paths the
// client exercises.
package mockblob

import (
	"encoding/xml"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
}

type storedBlob struct {
	body     []byte
	metadata map[string]string
	etag     string
	modified time.Time
}

// Server implements the minimal Blob service surface used by the client.
type Server struct {
	mu         sync.Mutex
	calls      []Call
	containers map[string]map[string]storedBlob

	expectedAuthorization string
	nextETag              int
}

// New constructs a new mock server with no containers.
func New() *Server {
	return &Server{containers: make(map[string]map[string]storedBlob)}
}

// RequireBearerToken enforces that requests carry the given bearer token.
// An empty token disables enforcement.
func (s *Server) RequireBearerToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token = strings.TrimSpace(token)
	if token == "" {
		s.expectedAuthorization = ""
		return
	}
	s.expectedAuthorization = "Bearer " + token
}

// Calls returns a snapshot of requests made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Blob returns a stored blob's body and metadata.
func (s *Server) Blob(container, name string) ([]byte, map[string]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.containers[container]
	if !ok {
		return nil, nil, false
	}
	b, ok := c[name]
	if !ok {
		return nil, nil, false
	}
	return append([]byte(nil), b.body...), b.metadata, true
}

// PutBlob seeds a blob directly, creating the container if needed.
func (s *Server) PutBlob(container, name string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.containers[container] == nil {
		s.containers[container] = make(map[string]storedBlob)
	}
	s.nextETag++
	s.containers[container][name] = storedBlob{
		body:     append([]byte(nil), body...),
		etag:     etagFor(s.nextETag),
		modified: time.Now().UTC(),
	}
}

// Handler returns an http.Handler serving the mock API.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serve)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path})
	expected := s.expectedAuthorization
	s.mu.Unlock()

	if expected != "" && r.Header.Get("Authorization") != expected {
		writeError(w, http.StatusUnauthorized, "NoAuthenticationInformation")
		return
	}

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
	container := parts[0]
	if container == "" {
		writeError(w, http.StatusBadRequest, "InvalidUri")
		return
	}

	if len(parts) == 1 || parts[1] == "" {
		s.serveContainer(w, r, container)
		return
	}
	s.serveBlob(w, r, container, parts[1])
}

func (s *Server) serveContainer(w http.ResponseWriter, r *http.Request, container string) {
	q := r.URL.Query()
	if q.Get("restype") != "container" {
		writeError(w, http.StatusBadRequest, "InvalidQueryParameterValue")
		return
	}

	switch {
	case r.Method == http.MethodPut:
		s.mu.Lock()
		if s.containers[container] == nil {
			s.containers[container] = make(map[string]storedBlob)
		}
		s.mu.Unlock()
		w.WriteHeader(http.StatusCreated)

	case r.Method == http.MethodGet && q.Get("comp") == "list":
		s.listBlobs(w, container, q.Get("prefix"))

	case r.Method == http.MethodGet:
		s.mu.Lock()
		_, ok := s.containers[container]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "ContainerNotFound")
			return
		}
		w.WriteHeader(http.StatusOK)

	default:
		writeError(w, http.StatusMethodNotAllowed, "UnsupportedHttpVerb")
	}
}

type xmlBlobProperties struct {
	LastModified  string `xml:"Last-Modified"`
	ContentLength int64  `xml:"Content-Length"`
	ETag          string `xml:"Etag"`
}

type xmlBlob struct {
	Name       string            `xml:"Name"`
	Properties xmlBlobProperties `xml:"Properties"`
}

type xmlEnumerationResults struct {
	XMLName    xml.Name  `xml:"EnumerationResults"`
	Blobs      []xmlBlob `xml:"Blobs>Blob"`
	NextMarker string    `xml:"NextMarker"`
}

func (s *Server) listBlobs(w http.ResponseWriter, container, prefix string) {
	s.mu.Lock()
	c, ok := s.containers[container]
	var names []string
	for name := range c {
		if prefix == "" || strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := xmlEnumerationResults{}
	for _, name := range names {
		b := c[name]
		out.Blobs = append(out.Blobs, xmlBlob{
			Name: name,
			Properties: xmlBlobProperties{
				LastModified:  b.modified.Format(time.RFC1123),
				ContentLength: int64(len(b.body)),
				ETag:          b.etag,
			},
		})
	}
	s.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "ContainerNotFound")
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_ = xml.NewEncoder(w).Encode(out)
}

func (s *Server) serveBlob(w http.ResponseWriter, r *http.Request, container, name string) {
	switch r.Method {
	case http.MethodPut:
		s.mu.Lock()
		if s.containers[container] == nil {
			s.containers[container] = make(map[string]storedBlob)
		}
		if _, exists := s.containers[container][name]; exists && r.Header.Get("If-None-Match") == "*" {
			s.mu.Unlock()
			writeError(w, http.StatusConflict, "BlobAlreadyExists")
			return
		}
		body := readAll(r)
		metadata := map[string]string{}
		for k := range r.Header {
			lower := strings.ToLower(k)
			if strings.HasPrefix(lower, "x-ms-meta-") {
				metadata[strings.TrimPrefix(lower, "x-ms-meta-")] = r.Header.Get(k)
			}
		}
		s.nextETag++
		etag := etagFor(s.nextETag)
		s.containers[container][name] = storedBlob{
			body:     body,
			metadata: metadata,
			etag:     etag,
			modified: time.Now().UTC(),
		}
		s.mu.Unlock()
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusCreated)

	case http.MethodGet:
		s.mu.Lock()
		c, ok := s.containers[container]
		var b storedBlob
		if ok {
			b, ok = c[name]
		}
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "BlobNotFound")
			return
		}
		w.Header().Set("ETag", b.etag)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b.body)

	case http.MethodDelete:
		s.mu.Lock()
		c, ok := s.containers[container]
		if ok {
			_, ok = c[name]
			delete(c, name)
		}
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "BlobNotFound")
			return
		}
		w.WriteHeader(http.StatusAccepted)

	default:
		writeError(w, http.StatusMethodNotAllowed, "UnsupportedHttpVerb")
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("x-ms-error-code", code)
	w.WriteHeader(status)
}

func readAll(r *http.Request) []byte {
	var buf []byte
	if r.Body != nil {
		b := make([]byte, 0, 4096)
		tmp := make([]byte, 4096)
		for {
			n, err := r.Body.Read(tmp)
			b = append(b, tmp[:n]...)
			if err != nil {
				break
			}
		}
		buf = b
	}
	return buf
}

func etagFor(n int) string {
	return `"0x` + strings.Repeat("0", 8) + string(rune('A'+n%26)) + `"`
}
