// Command mock-blob serves the in-memory Blob service mock over HTTP so the
// esg CLI can be exercised locally without a storage account:
//
//	mock-blob -addr :10000
//	ESG_STORAGE_URL=http://localhost:10000 STORAGE_TOKEN=dev esg upload ...
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/greenops/esg-reporting/internal/mockblob"
)

func main() {
	addr := defaultString("MOCK_BLOB_ADDR", ":10000")
	token := defaultString("MOCK_BLOB_TOKEN", "")

	fs := flag.NewFlagSet("mock-blob", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&token, "token", token, "Require this bearer token on every request (empty disables auth)")
	_ = fs.Parse(os.Args[1:])

	srv := mockblob.New()
	srv.RequireBearerToken(token)

	_, _ = fmt.Fprintf(os.Stdout, "mock-blob listening on %s\n", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func defaultString(env, fallback string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	return fallback
}
