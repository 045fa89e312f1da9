// Package zotok implements the ZotokAPI port over HTTP.
package zotok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ericfisherdev/zotoksheets/internal/domain/model"
	"github.com/ericfisherdev/zotoksheets/internal/domain/port/driven"
	"github.com/ericfisherdev/zotoksheets/internal/metrics"
)

// Compile-time interface satisfaction check.
var _ driven.ZotokAPI = (*Client)(nil)

// API paths shared by every environment.
const (
	LoginPath = "/mdm-integration/v1/api/auth/login"
	DataPath  = "/hub/mdm-integration/v1/api"
)

const (
	maxBodyBytes   = 32 << 20
	maxErrorBody   = 500
	opLogin        = "login"
	opFetchPage    = "fetch_page"
	opPostEntities = "post_entities"
)

// browserHeaders are sent with uploads; the upstream bot filter rejects
// requests that do not look like a desktop browser.
var browserHeaders = map[string]string{
	"User-Agent":         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Referer":            "https://script.google.com/",
	"Accept-Language":    "en-US,en;q=0.9",
	"sec-ch-ua":          `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
	"sec-ch-ua-mobile":   "?0",
	"sec-ch-ua-platform": `"Windows"`,
}

// Options configures the HTTP transport built by NewClient.
type Options struct {
	Timeout   time.Duration
	HTTPCache bool
}

// Client implements the driven.ZotokAPI port.
type Client struct {
	http    *http.Client
	baseURL string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewClient creates a Client for baseURL. With HTTPCache set, GET responses
// carrying validators are cached in memory and revalidated with conditional
// requests. The cache only ever holds responses for one bearer token.
func NewClient(baseURL string, opts Options, m *metrics.Metrics, logger *slog.Logger) *Client {
	var transport http.RoundTripper = http.DefaultTransport.(*http.Transport).Clone()
	if opts.HTTPCache {
		transport = &bearerCache{next: transport}
	}
	return NewClientWithHTTPClient(&http.Client{Transport: transport, Timeout: opts.Timeout}, baseURL, m, logger)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: m,
		logger:  logger,
	}
}

// Login posts the signed credential body. Only 200 and 201 count as success.
func (c *Client) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	status, body, err := c.do(ctx, opLogin, http.MethodPost, c.baseURL+LoginPath, "", req, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, &model.HTTPError{StatusCode: status, Body: truncate(body)}
	}

	var resp model.LoginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &model.HTTPError{StatusCode: status, Body: truncate(body), Err: fmt.Errorf("decode login response: %w", err)}
	}
	return &resp, nil
}

// FetchPage requests one page of an entity list and checks the response
// against the {headers, data[]} contract.
func (c *Client) FetchPage(ctx context.Context, token string, q model.PageQuery) (*model.Page, error) {
	params := url.Values{}
	if q.Paginated {
		params.Set("pageNo", fmt.Sprint(q.PageNo))
		params.Set("pageSize", fmt.Sprint(q.PageSize))
	}
	if q.Period != "" {
		params.Set("period", q.Period)
	}
	target := c.baseURL + DataPath + "/" + q.APIName
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var headers map[string]string
	if q.Revalidate {
		headers = map[string]string{"Cache-Control": "no-cache"}
	}
	status, body, err := c.do(ctx, opFetchPage, http.MethodGet, target, token, nil, headers)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &model.HTTPError{StatusCode: status, Body: truncate(body)}
	}

	page, err := decodePage(body)
	if err != nil {
		return nil, model.NewMalformedResponseError("fetch "+q.APIName, "%w", err)
	}
	c.logger.Debug("page received", "api_name", q.APIName, "page", q.PageNo, "records", len(page.Data))
	return page, nil
}

// PostEntities posts payload to path under the data API. A 2xx reply with
// an empty or non-JSON body yields a nil Body; a JSON non-object reply is
// wrapped as {"data": value}.
func (c *Client) PostEntities(ctx context.Context, token, path string, payload any) (*model.PostResult, error) {
	target := c.baseURL + DataPath + "/" + strings.TrimLeft(path, "/")
	status, body, err := c.do(ctx, opPostEntities, http.MethodPost, target, token, payload, browserHeaders)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &model.HTTPError{StatusCode: status, Body: truncate(body)}
	}

	result := &model.PostResult{StatusCode: status}
	var v any
	if len(bytes.TrimSpace(body)) > 0 && json.Unmarshal(body, &v) == nil && v != nil {
		if obj, ok := v.(map[string]any); ok {
			result.Body = obj
		} else {
			result.Body = map[string]any{"data": v}
		}
	}
	return result, nil
}

// do sends one request and returns the status and body. A transport failure
// is returned as an *model.HTTPError with StatusCode 0.
func (c *Client) do(
	ctx context.Context,
	operation, method, target, token string,
	payload any,
	headers map[string]string,
) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode %s request: %w", operation, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveAPICall(operation, 0, time.Since(start))
		return 0, nil, &model.HTTPError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.metrics.ObserveAPICall(operation, resp.StatusCode, time.Since(start))
	if err != nil {
		return 0, nil, &model.HTTPError{Err: fmt.Errorf("read %s response: %w", operation, err)}
	}

	c.logger.Debug("zotok api call",
		"operation", operation,
		"method", method,
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)
	return resp.StatusCode, body, nil
}

func decodePage(body []byte) (*model.Page, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return nil, fmt.Errorf("response is not a JSON object")
	}

	headersRaw, ok := raw["headers"]
	if !ok {
		return nil, fmt.Errorf("response has no headers")
	}
	var headers map[string]any
	if err := json.Unmarshal(headersRaw, &headers); err != nil || headers == nil {
		return nil, fmt.Errorf("headers is not an object")
	}

	dataRaw, ok := raw["data"]
	if !ok {
		return nil, fmt.Errorf("response has no data")
	}
	var items []json.RawMessage
	if err := json.Unmarshal(dataRaw, &items); err != nil || items == nil {
		return nil, fmt.Errorf("data is not an array")
	}

	records := make([]model.Record, 0, len(items))
	for i, item := range items {
		var rec model.Record
		if err := json.Unmarshal(item, &rec); err != nil || rec == nil {
			return nil, fmt.Errorf("data[%d] is not an object", i)
		}
		records = append(records, rec)
	}
	return &model.Page{Headers: headers, Data: records}, nil
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
