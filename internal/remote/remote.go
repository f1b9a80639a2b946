// Package remote provides the Remote Collection the sync engine reconciles
// against.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"example.com/fittracker/internal/domain"
)

// ErrOffline is returned by Offline for every call.
var ErrOffline = errors.New("no remote configured")

// Offline is a Remote that is never reachable. Engines built on it keep every
// change local-only.
type Offline[P any] struct{}

// List always fails.
func (Offline[P]) List(context.Context, string, string) ([]domain.Record[P], error) {
	return nil, ErrOffline
}

// Create always fails.
func (Offline[P]) Create(context.Context, domain.Record[P], string) (domain.Record[P], error) {
	return domain.Record[P]{}, ErrOffline
}

// Delete always fails.
func (Offline[P]) Delete(context.Context, string, string) error {
	return ErrOffline
}

// ListResponse is the body returned by the list endpoint.
type ListResponse[P any] struct {
	Records []domain.Record[P] `json:"records"`
}

// HTTPCollection talks to one collection of the records API.
type HTTPCollection[P any] struct {
	client     *http.Client
	base       string
	collection string
}

// NewHTTPCollection constructs an HTTPCollection. The timeout bounds every
// request; the engine itself imposes none.
func NewHTTPCollection[P any](endpoint, collection string, timeout time.Duration) *HTTPCollection[P] {
	return &HTTPCollection[P]{
		client:     &http.Client{Timeout: timeout},
		base:       strings.TrimRight(endpoint, "/"),
		collection: collection,
	}
}

func (c *HTTPCollection[P]) recordsURL() string {
	return c.base + "/v1/collections/" + url.PathEscape(c.collection) + "/records"
}

// List returns every record the owner holds in the collection.
func (c *HTTPCollection[P]) List(ctx context.Context, ownerKey, credential string) ([]domain.Record[P], error) {
	endpoint := c.recordsURL()
	if ownerKey != "" {
		endpoint += "?owner=" + url.QueryEscape(ownerKey)
	}
	var body ListResponse[P]
	if err := c.do(ctx, http.MethodGet, endpoint, credential, nil, &body); err != nil {
		return nil, err
	}
	if body.Records == nil {
		body.Records = []domain.Record[P]{}
	}
	return body.Records, nil
}

// Create sends record and returns the record as the remote stored it.
func (c *HTTPCollection[P]) Create(ctx context.Context, record domain.Record[P], credential string) (domain.Record[P], error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return domain.Record[P]{}, err
	}
	var created domain.Record[P]
	if err := c.do(ctx, http.MethodPost, c.recordsURL(), credential, payload, &created); err != nil {
		return domain.Record[P]{}, err
	}
	return created, nil
}

// Delete removes id. A record the remote no longer has counts as deleted.
func (c *HTTPCollection[P]) Delete(ctx context.Context, id, credential string) error {
	err := c.do(ctx, http.MethodDelete, c.recordsURL()+"/"+url.PathEscape(id), credential, nil, nil)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *HTTPCollection[P]) do(ctx context.Context, method, endpoint, credential string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

// StatusError represents a non-successful response from the records API.
type StatusError struct {
	Method  string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed with status %d %s", e.Method, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s failed with status %d %s: %s", e.Method, e.Status, http.StatusText(e.Status), e.Message)
}
