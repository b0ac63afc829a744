// Package fetcher performs rate-limited, retried HTTP calls for source
// adapters and parses the CSV and JSON payloads they return.
package fetcher

import (
	"context"
	"io"
	"net/http"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Do performs req and returns the full response body of a 2xx response.
	Do(ctx context.Context, req Request) ([]byte, error)

	// Download fetches the URL and returns the open response body.
	Download(ctx context.Context, url string, header http.Header) (io.ReadCloser, error)
}

// Request describes one HTTP call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}
