// Package api is a client for the rewards REST API.
//
// Every resource is exposed as GET /{resource}/?skip=&limit= for paged lists
// and GET/POST/PUT/DELETE /{resource}/{id} for single records.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rewards/internal/cache"
	"rewards/internal/core"
	"rewards/internal/sources"
)

// DefaultPageSize is the limit sent with every list request.
const DefaultPageSize = 100

const (
	ResourceNominations      = "nominations"
	ResourceRewards          = "rewards"
	ResourceRewardCategories = "reward-categories"
	ResourceEmployees        = "employees"
	ResourceRegions          = "regions"
	ResourceDepartments      = "departments"
	ResourceCustomers        = "customers"
)

// IsResource reports whether name is one of the API's record collections.
func IsResource(name string) bool {
	switch name {
	case ResourceNominations, ResourceRewards, ResourceRewardCategories, ResourceEmployees,
		ResourceRegions, ResourceDepartments, ResourceCustomers:
		return true
	}
	return false
}

// ErrUnexpectedStatus is wrapped by every *StatusError.
var ErrUnexpectedStatus = errors.New("unexpected status")

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.Endpoint, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

type Client struct {
	baseURL  string
	http     *http.Client
	pageSize int
	records  *cache.LRU[[]byte]
}

// Ensure interface conformance
var _ sources.Source = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithPageSize overrides DefaultPageSize.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithRecordCache keeps up to size single-record responses for ttl. List
// fetches always go to the server.
func WithRecordCache(size int, ttl time.Duration) Option {
	return func(c *Client) {
		if size > 0 && ttl > 0 {
			c.records = cache.NewLRU[[]byte](size, ttl)
		}
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url scheme %q: must be http or https", u.Scheme)
	}
	c := &Client{
		baseURL:  baseURL,
		http:     newHTTPClientWithPooling(timeout),
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling and
// keep-alive; the four report collections are fetched in parallel from one host.
func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// PageSize returns the limit used for list requests.
func (c *Client) PageSize() int { return c.pageSize }

func (c *Client) collectionURL(resource string) string {
	return c.baseURL + "/" + strings.Trim(resource, "/") + "/"
}

func (c *Client) recordURL(resource string, id int64) string {
	return c.baseURL + "/" + strings.Trim(resource, "/") + "/" + strconv.FormatInt(id, 10)
}

// FetchAll reads every page of resource. It requests pages of PageSize records
// and stops at the first page that is not full, so M records take M/PageSize+1
// requests. Records are returned in server order.
func FetchAll[T any](ctx context.Context, c *Client, resource string) ([]T, error) {
	endpoint := c.collectionURL(resource)
	results := []T{}
	for skip := 0; ; skip += c.pageSize {
		q := url.Values{}
		q.Set("skip", strconv.Itoa(skip))
		q.Set("limit", strconv.Itoa(c.pageSize))

		var page []T
		if err := c.do(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil, &page); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
		}
		results = append(results, page...)
		slog.DebugContext(ctx, "Fetched page", "endpoint", endpoint, "skip", skip, "records", len(page))
		if len(page) != c.pageSize {
			return results, nil
		}
	}
}

// Get reads one record, from the record cache when enabled.
func Get[T any](ctx context.Context, c *Client, resource string, id int64) (T, error) {
	var out T
	endpoint := c.recordURL(resource, id)
	if c.records != nil {
		if raw, ok := c.records.Get(endpoint); ok {
			if err := json.Unmarshal(raw, &out); err == nil {
				return out, nil
			}
			c.records.Delete(endpoint)
		}
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &raw); err != nil {
		return out, fmt.Errorf("get %s: %w", endpoint, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("get %s: decode response: %w", endpoint, err)
	}
	if c.records != nil {
		c.records.Set(endpoint, raw)
	}
	return out, nil
}

// CacheStats reports record cache usage after dropping expired entries; zero
// when the cache is disabled.
func (c *Client) CacheStats() cache.Stats {
	if c.records == nil {
		return cache.Stats{}
	}
	c.records.CleanExpired()
	return c.records.Stats()
}

func (c *Client) forget(endpoint string) {
	if c.records != nil {
		c.records.Delete(endpoint)
	}
}

// Create posts a new record and returns the stored version.
func Create[T any](ctx context.Context, c *Client, resource string, in T) (T, error) {
	var out T
	endpoint := c.collectionURL(resource)
	if err := c.do(ctx, http.MethodPost, endpoint, in, &out); err != nil {
		return out, fmt.Errorf("create %s: %w", endpoint, err)
	}
	return out, nil
}

// Update replaces the record with the given id.
func Update[T any](ctx context.Context, c *Client, resource string, id int64, in T) (T, error) {
	var out T
	endpoint := c.recordURL(resource, id)
	c.forget(endpoint)
	if err := c.do(ctx, http.MethodPut, endpoint, in, &out); err != nil {
		return out, fmt.Errorf("update %s: %w", endpoint, err)
	}
	return out, nil
}

// Delete removes the record with the given id.
func Delete(ctx context.Context, c *Client, resource string, id int64) error {
	endpoint := c.recordURL(resource, id)
	c.forget(endpoint)
	if err := c.do(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return fmt.Errorf("delete %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Method:     method,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ListNominations implements sources.NominationLister
func (c *Client) ListNominations(ctx context.Context) ([]core.Nomination, error) {
	return FetchAll[core.Nomination](ctx, c, ResourceNominations)
}

// ListRewards implements sources.RewardLister
func (c *Client) ListRewards(ctx context.Context) ([]core.Reward, error) {
	return FetchAll[core.Reward](ctx, c, ResourceRewards)
}

// ListRewardCategories implements sources.CategoryLister
func (c *Client) ListRewardCategories(ctx context.Context) ([]core.RewardCategory, error) {
	return FetchAll[core.RewardCategory](ctx, c, ResourceRewardCategories)
}

// ListEmployees implements sources.EmployeeLister
func (c *Client) ListEmployees(ctx context.Context) ([]core.Employee, error) {
	return FetchAll[core.Employee](ctx, c, ResourceEmployees)
}
