// Package reports downloads uploaded report bundles from the platform
// storage and unpacks them into individual report documents.
package reports

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"compliance/internal/config"
	"compliance/internal/logger"
	"compliance/pkg/metrics"
)

// Blob is one raw report document from a bundle.
type Blob struct {
	Name string
	Data []byte
}

// Bundle is the ordered list of documents fetched for one upload. An empty
// bundle is a successful fetch with nothing in it.
type Bundle []Blob

// Store resolves an upload URL into a bundle. Failures that redelivery would
// not fix are returned as *DownloadError.
type Store interface {
	Fetch(ctx context.Context, rawURL string) (Bundle, error)
}

// DownloadError means the bundle could not be retrieved.
type DownloadError struct {
	URL   string
	Cause error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("failed to download %s: %v", redact(e.URL), e.Cause)
}

func (e *DownloadError) Unwrap() error {
	return e.Cause
}

func IsDownloadError(err error) bool {
	var de *DownloadError
	return errors.As(err, &de)
}

// unpackFrom attributes archive errors to the URL they came from.
func unpackFrom(rawURL string, body []byte, maxSize int64) (Bundle, error) {
	bundle, err := Unpack(body, maxSize)
	var de *DownloadError
	if errors.As(err, &de) && de.URL == "" {
		de.URL = rawURL
	}
	return bundle, err
}

func downloadError(rawURL string, format string, args ...interface{}) *DownloadError {
	return &DownloadError{URL: rawURL, Cause: fmt.Errorf(format, args...)}
}

// Router dispatches to a store by URL scheme.
type Router struct {
	http *HTTPStore
	s3   *S3Store
}

func NewRouter(cfg config.ReportsConfig, log logger.Logger) (*Router, error) {
	r := &Router{http: NewHTTPStore(cfg, log)}

	if cfg.S3.Endpoint != "" {
		s3, err := NewS3Store(cfg, log)
		if err != nil {
			return nil, err
		}
		r.s3 = s3
	}

	return r, nil
}

func (r *Router) Fetch(ctx context.Context, rawURL string) (Bundle, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return nil, downloadError(rawURL, "invalid report URL")
	}

	var (
		store Store
		label string
	)
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		store, label = r.http, "http"
	case "s3":
		if r.s3 == nil {
			return nil, downloadError(rawURL, "s3 report store is not configured")
		}
		store, label = r.s3, "s3"
	default:
		return nil, downloadError(rawURL, "unsupported URL scheme %q", u.Scheme)
	}

	bundle, err := store.Fetch(ctx, rawURL)
	switch {
	case err == nil:
		metrics.IncReportDownload(label, "success")
	case IsDownloadError(err):
		metrics.IncReportDownload(label, "failed")
	default:
		metrics.IncReportDownload(label, "error")
	}
	return bundle, err
}

// redact drops the query string, which carries presigned credentials.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
