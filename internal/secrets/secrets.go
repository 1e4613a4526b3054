// Package secrets resolves credentials for the Azure-facing clients.
// Resolution is delegated: callers receive an opaque TokenSource and never
// see where the value came from.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Source resolves named secrets.
type Source interface {
	Secret(ctx context.Context, name string) (string, error)
}

// TokenSource yields a bearer token for API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// EnvSource resolves secrets from environment variables: the secret name is
// uppercased and dashes become underscores ("storage-token" -> STORAGE_TOKEN).
type EnvSource struct{}

func (EnvSource) Secret(_ context.Context, name string) (string, error) {
	key := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return "", fmt.Errorf("secret %q not set (env %s)", name, key)
	}
	return v, nil
}

// Static is a fixed secret map, used by tests and local development.
type Static map[string]string

func (s Static) Secret(_ context.Context, name string) (string, error) {
	v, ok := s[name]
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("secret %q not set", name)
	}
	return v, nil
}

// FileSource reads a secret from the file a named environment variable
// points at, the way managed runtimes mount tokens.
type FileSource struct{}

func (FileSource) Secret(_ context.Context, name string) (string, error) {
	key := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	path := strings.TrimSpace(os.Getenv(key))
	if path == "" {
		return "", fmt.Errorf("secret %q not set (env %s)", name, key)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read secret file for %q: %w", name, err)
	}
	return strings.TrimSpace(string(b)), nil
}

type bearer struct {
	src  Source
	name string
}

func (b bearer) Token(ctx context.Context) (string, error) {
	return b.src.Secret(ctx, b.name)
}

// Bearer adapts a named secret to a TokenSource.
func Bearer(src Source, name string) TokenSource {
	return bearer{src: src, name: name}
}

// StaticToken returns a TokenSource for a fixed token. Tests only.
func StaticToken(token string) TokenSource {
	return bearer{src: Static{"token": token}, name: "token"}
}
