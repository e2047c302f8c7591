// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

// Package vinoshipper is the client for the remote wine inventory API.
//
// A Client is bound to one account credential ("key:secret", sent as HTTP
// Basic auth). Every operation goes through the same pipeline:
//
//	validate input -> [circuit breaker] -> retry with backoff -> one HTTP attempt
//
// Failures surface as *APIError. Product payloads are normalized with
// NormalizeProduct because the remote has used several field names for the
// same attribute over time.
package vinoshipper

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cellarsync/internal/logging"
	"github.com/tomtom215/cellarsync/internal/metrics"
	"github.com/tomtom215/cellarsync/internal/models"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://www.vinoshipper.com/api"

const defaultTimeout = 30 * time.Second

// CreateProductRequest is the payload for CreateProduct.
type CreateProductRequest struct {
	SKU      string `json:"sku" validate:"notblank"`
	Name     string `json:"name" validate:"notblank"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

// InventoryChange is one entry of a batch inventory update.
type InventoryChange struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// Result is the decoded body of a mutating call. The remote does not
// document it, so it is passed through as-is. Nil when the body was empty.
type Result map[string]any

// Client talks to the inventory API on behalf of one account.
// It is safe for concurrent use; the retry policy is fixed at construction.
type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
	retrier    Retrier
	breaker    *CircuitBreaker
	now        func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root (tests, staging).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retrier.Policy = p.clone() }
}

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCircuitBreaker routes every operation through b.
func WithCircuitBreaker(b *CircuitBreaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithJitter sets the random source used for backoff jitter.
func WithJitter(rnd func() float64) Option {
	return func(c *Client) { c.retrier.Jitter = rnd }
}

// WithSleeper replaces the backoff wait. Tests use it to avoid real delays.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.retrier.Sleep = sleep }
}

// WithClock sets the time source stamped on normalized products.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient builds a client for credential. The retry policy is validated
// here so a bad policy fails fast instead of on the first retry.
func NewClient(credential string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		retrier:    Retrier{Policy: DefaultRetryPolicy(), Jitter: rand.Float64},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.retrier.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}
	if _, err := url.Parse(c.baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", c.baseURL, err)
	}

	key, secret := SplitCredential(credential)
	c.authHeader = BasicAuthHeader(key, secret)
	return c, nil
}

// SplitCredential splits "key:secret" at the first colon. A credential
// without a colon is all key and an empty secret.
func SplitCredential(credential string) (key, secret string) {
	key, secret, _ = strings.Cut(credential, ":")
	return key, secret
}

// BasicAuthHeader returns the Authorization header value for key and secret.
func BasicAuthHeader(key, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(key+":"+secret))
}

// RetryPolicy returns a copy of the active policy.
func (c *Client) RetryPolicy() RetryPolicy {
	return c.retrier.Policy.clone()
}

// BaseURL returns the API root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetInventory lists every product of the account. A response without a
// recognizable product array degrades to an empty list.
func (c *Client) GetInventory(ctx context.Context) ([]models.RemoteItem, error) {
	body, err := c.makeRequest(ctx, "get_inventory", http.MethodGet, "/products", nil)
	if err != nil {
		return nil, err
	}

	raws, ok := decodeProductList(body)
	if !ok {
		logging.Ctx(ctx).Warn().Int("bytes", len(body)).Msg("Inventory response has no products array, treating as empty")
		return []models.RemoteItem{}, nil
	}

	now := c.now()
	items := make([]models.RemoteItem, 0, len(raws))
	for _, raw := range raws {
		items = append(items, NormalizeProduct(raw, now))
	}
	return items, nil
}

// GetProduct fetches one product. A 404 yields (nil, nil).
func (c *Client) GetProduct(ctx context.Context, sku string) (*models.RemoteItem, error) {
	if strings.TrimSpace(sku) == "" {
		return nil, validationError("SKU is required")
	}

	body, err := c.makeRequest(ctx, "get_product", http.MethodGet, productPath(sku), nil)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &APIError{Message: "malformed product response: " + err.Error(), Kind: KindTerminalService, StatusCode: http.StatusOK, ResponseBody: body}
	}
	if inner, ok := raw["product"].(map[string]any); ok {
		raw = inner
	}
	item := NormalizeProduct(raw, c.now())
	return &item, nil
}

// CreateProduct creates a product. Input is validated before any request.
func (c *Client) CreateProduct(ctx context.Context, req CreateProductRequest) (Result, error) {
	if strings.TrimSpace(req.SKU) == "" {
		return nil, validationError("SKU is required to create a product")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, validationError("product name is required")
	}
	if req.Quantity < 0 {
		return nil, validationError("quantity cannot be negative")
	}

	body, err := c.makeRequest(ctx, "create_product", http.MethodPost, "/products", req)
	if err != nil {
		return nil, err
	}
	return decodeResult(body), nil
}

// UpdateInventory sets the absolute quantity of one SKU.
func (c *Client) UpdateInventory(ctx context.Context, sku string, quantity int) (Result, error) {
	if strings.TrimSpace(sku) == "" {
		return nil, validationError("SKU is required for inventory update")
	}
	if quantity < 0 {
		return nil, validationError("quantity cannot be negative")
	}

	body, err := c.makeRequest(ctx, "update_inventory", http.MethodPut, productPath(sku), map[string]int{"quantity": quantity})
	if err != nil {
		return nil, err
	}
	return decodeResult(body), nil
}

// BatchUpdateInventory applies changes one at a time, in order. A failing
// item never stops the batch. The only error returned is ctx's, in which
// case the results cover the items processed so far.
func (c *Client) BatchUpdateInventory(ctx context.Context, changes []InventoryChange) ([]models.BatchResult, error) {
	results := make([]models.BatchResult, 0, len(changes))
	for _, ch := range changes {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if _, err := c.UpdateInventory(ctx, ch.SKU, ch.Quantity); err != nil {
			results = append(results, models.BatchResult{SKU: ch.SKU, Success: false, Error: errorMessage(err)})
			continue
		}
		results = append(results, models.BatchResult{SKU: ch.SKU, Success: true})
	}
	return results, nil
}

// ValidateCredentials probes the inventory endpoint. 401 and 403 mean the
// credential is bad (false, nil); other failures are returned as errors.
func (c *Client) ValidateCredentials(ctx context.Context) (bool, error) {
	if _, err := c.GetInventory(ctx); err != nil {
		if IsAuthFailure(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// makeRequest runs one logical request: breaker around retry around a
// single attempt.
func (c *Client) makeRequest(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", op, err)
		}
	}

	r := c.retrier
	r.OnRetry = func(attempt int, delay time.Duration, err error) {
		status := StatusCode(err)
		metrics.RecordRetry(op, status)
		logging.Ctx(ctx).Warn().Str("operation", op).
			Int("attempt", attempt+1).Int("max_attempts", r.Policy.Attempts()).
			Int("status", status).Dur("delay", delay).Err(err).
			Msg("Upstream request failed, retrying")
	}

	retried := func() ([]byte, error) {
		return Do(ctx, r, func(ctx context.Context) ([]byte, error) {
			return c.executeRequest(ctx, op, method, path, body)
		})
	}
	if c.breaker != nil {
		return c.breaker.Execute(retried)
	}
	return retried()
}

// executeRequest performs exactly one HTTP attempt.
func (c *Client) executeRequest(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest(op, 0, time.Since(start))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, transportError(err)
	}
	defer resp.Body.Close()
	metrics.RecordUpstreamRequest(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serviceError(resp, readBodyForError(resp.Body), c.retrier.Policy)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(fmt.Errorf("read %s response: %w", op, err))
	}
	return data, nil
}

func productPath(sku string) string {
	return "/products/" + url.PathEscape(sku)
}

// decodeProductList accepts {"products": [...]} or a bare array.
func decodeProductList(body []byte) ([]map[string]any, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, false
	}

	if trimmed[0] == '[' {
		var list []map[string]any
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, false
		}
		return list, true
	}

	var envelope struct {
		Products []map[string]any `json:"products"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil || envelope.Products == nil {
		return nil, false
	}
	return envelope.Products, true
}

func decodeResult(body []byte) Result {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var r Result
	if err := json.Unmarshal(body, &r); err != nil {
		return Result{"raw": string(body)}
	}
	return r
}

// errorMessage prefers the remote's own message over the wrapped form.
func errorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
