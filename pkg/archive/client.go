// Copyright 2026 OSIsoft, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package archive

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/backoff"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/logger"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/metrics"
)

// Client is the Data Archive operation set the harness consumes.
type Client interface {
	// FindPoint resolves a point by tag name. Returns ErrPointNotFound if the
	// tag is not registered.
	FindPoint(ctx context.Context, name string) (*Point, error)

	// CreatePoint registers a new point, optionally with initial attributes.
	// Returns ErrPointExists if the name is already taken.
	CreatePoint(ctx context.Context, name string, attributes map[string]any) (*Point, error)

	// SavePoint flushes attribute changes staged on the point handle.
	SavePoint(ctx context.Context, point *Point) error

	// RecordedValuesDescending reads up to count recorded values, most recent
	// first.
	RecordedValuesDescending(ctx context.Context, point *Point, count int) ([]Value, error)

	// WriteValue inserts a value into the point's stream. Existing values at
	// other timestamps are left untouched.
	WriteValue(ctx context.Context, point *Point, value Value) error

	// DeletePoint removes the point and all of its recorded values.
	DeletePoint(ctx context.Context, point *Point) error
}

// archiveOperations are the operation labels the client reports metrics under.
var archiveOperations = []string{
	"find_point", "create_point", "save_point",
	"recorded_values", "write_value", "delete_point",
}

// DataArchive talks to a Data Archive over its web API.
type DataArchive struct {
	baseURL string
	client  *http.Client
	log     *zap.SugaredLogger
}

var _ Client = (*DataArchive)(nil)

// NewDataArchive creates a client for the archive at baseURL,
// e.g. "https://piserver.example.com/archive".
func NewDataArchive(baseURL string) *DataArchive {
	// HTTP/2 is disabled; the archive web API long-polls over HTTP/1.1.
	transport := &http.Transport{
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
	}

	// Register the error series up front so they report as zero.
	for _, op := range archiveOperations {
		metrics.InitErrorCounter(metrics.ComponentArchiveClient, op)
	}

	return &DataArchive{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		log: logger.For(logger.ComponentArchiveClient),
	}
}

// HTTPClient exposes the underlying client so tests can intercept it.
func (a *DataArchive) HTTPClient() *http.Client {
	return a.client
}

// FindPoint resolves a point by tag name.
func (a *DataArchive) FindPoint(ctx context.Context, name string) (*Point, error) {
	var point Point

	err := a.getWithRetry(ctx, "find_point", "/points?name="+url.QueryEscape(name), &point)
	if err != nil {
		if backoff.IsIgnoredError(err) {
			return nil, fmt.Errorf("point %q: %w", name, ErrPointNotFound)
		}
		return nil, fmt.Errorf("failed to look up point %q: %w", name, err)
	}

	return &point, nil
}

// CreatePoint registers a new point on the archive.
func (a *DataArchive) CreatePoint(ctx context.Context, name string, attributes map[string]any) (*Point, error) {
	body := struct {
		Name       string         `json:"name"`
		Attributes map[string]any `json:"attributes,omitempty"`
	}{Name: name, Attributes: attributes}

	var point Point
	if err := a.do(ctx, "create_point", http.MethodPost, "/points", body, &point); err != nil {
		return nil, fmt.Errorf("failed to create point %q: %w", name, err)
	}

	a.log.Infow("Created point", "name", name, "webId", point.WebID)
	return &point, nil
}

// SavePoint flushes the point's staged attribute changes.
func (a *DataArchive) SavePoint(ctx context.Context, point *Point) error {
	pending := point.PendingAttributes()
	if len(pending) == 0 {
		return nil
	}

	body := struct {
		Attributes map[string]any `json:"attributes"`
	}{Attributes: pending}

	path := "/points/" + url.PathEscape(point.WebID) + "/attributes"
	if err := a.do(ctx, "save_point", http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("failed to save point %q: %w", point.Name, err)
	}

	point.clearPending()
	return nil
}

// RecordedValuesDescending reads up to count recorded values, most recent first.
func (a *DataArchive) RecordedValuesDescending(ctx context.Context, point *Point, count int) ([]Value, error) {
	var result struct {
		Items []Value `json:"items"`
	}

	path := fmt.Sprintf("/streams/%s/recorded?count=%d&order=descending", url.PathEscape(point.WebID), count)
	if err := a.getWithRetry(ctx, "recorded_values", path, &result); err != nil {
		return nil, fmt.Errorf("failed to read recorded values of %q: %w", point.Name, err)
	}

	return result.Items, nil
}

// WriteValue inserts a value into the point's stream.
func (a *DataArchive) WriteValue(ctx context.Context, point *Point, value Value) error {
	path := "/streams/" + url.PathEscape(point.WebID) + "/value"
	if err := a.do(ctx, "write_value", http.MethodPost, path, value, nil); err != nil {
		return fmt.Errorf("failed to write value to %q: %w", point.Name, err)
	}

	return nil
}

// DeletePoint removes the point and its recorded values.
func (a *DataArchive) DeletePoint(ctx context.Context, point *Point) error {
	path := "/points/" + url.PathEscape(point.WebID)
	if err := a.do(ctx, "delete_point", http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("failed to delete point %q: %w", point.Name, err)
	}

	a.log.Infow("Deleted point", "name", point.Name, "webId", point.WebID)
	return nil
}

// getWithRetry wraps read-only requests in a transient-error retry loop.
// Mutating requests are never retried so an insert cannot be duplicated.
func (a *DataArchive) getWithRetry(ctx context.Context, op, path string, out any) error {
	return backoff.Retry(ctx, func() error {
		return a.do(ctx, op, http.MethodGet, path, nil, out)
	}, a.log)
}

// do performs a single archive request and maps the response status onto the
// error categories the callers steer by.
func (a *DataArchive) do(ctx context.Context, op, method, path string, reqBody, out any) error {
	start := time.Now()

	var bodyReader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return backoff.NewPermanentError(fmt.Errorf("failed to encode request body: %w", err))
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bodyReader)
	if err != nil {
		return backoff.NewPermanentError(err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		metrics.ObserveArchiveRequest(op, "error", time.Since(start))
		metrics.IncErrorCountAndLog(metrics.ComponentArchiveClient, op, err, a.log)
		return backoff.NewTransientError(enhanceConnectionError(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveArchiveRequest(op, "error", time.Since(start))
		return backoff.NewTransientError(fmt.Errorf("failed to read response body: %w", err))
	}

	metrics.ObserveArchiveRequest(op, fmt.Sprintf("%d", resp.StatusCode), time.Since(start))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// Fall through to decode below.
	case resp.StatusCode == http.StatusNotFound:
		return backoff.NewIgnoredError(ErrPointNotFound)
	case resp.StatusCode == http.StatusConflict:
		return backoff.NewPermanentError(ErrPointExists)
	case resp.StatusCode >= 500:
		return backoff.NewTransientError(fmt.Errorf("archive request %s %s failed: %s: %s",
			method, path, resp.Status, strings.TrimSpace(string(respBody))))
	default:
		return backoff.NewPermanentError(fmt.Errorf("archive request %s %s failed: %s: %s",
			method, path, resp.Status, strings.TrimSpace(string(respBody))))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return backoff.NewPermanentError(fmt.Errorf("failed to decode response: %w", err))
		}
	}

	a.log.Debugw("Archive request", "method", method, "path", path,
		"status", resp.StatusCode, "latency", time.Since(start))
	return nil
}

// enhanceConnectionError adds detailed context to common connection errors
func enhanceConnectionError(err error) error {
	if strings.Contains(err.Error(), "EOF") {
		return fmt.Errorf("connection closed unexpectedly before receiving response: %w", err)
	} else if strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "deadline exceeded") {
		return fmt.Errorf("request timed out: %w", err)
	} else if strings.Contains(err.Error(), "connection refused") {
		return fmt.Errorf("connection refused: %w", err)
	}
	return fmt.Errorf("connection error: %w", err)
}
