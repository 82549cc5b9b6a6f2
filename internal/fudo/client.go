// Package fudo is a client for the Fudo POS JSON:API. It owns
// authentication, pagination and the capture of the "included" side-table;
// everything downstream of it is pure analytics.
package fudo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// pageSize is the maximum the API allows per page. A page shorter than
	// this marks the end of the result set.
	pageSize = 500

	// includeParam asks the API to ship the item/product/category entities
	// referenced by each sale in a flat "included" side-table.
	includeParam = "items.product.productCategory"

	// tokenRenewalSkew renews the token this long before it expires.
	tokenRenewalSkew = 5 * time.Minute
)

var (
	// ErrNotConfigured is returned when credentials are missing. Callers may
	// fall back to SampleSales for offline development.
	ErrNotConfigured = errors.New("fudo: api key or secret not configured")

	errUnexpectedStatus = errors.New("fudo: unexpected http status")
	errEmptyToken       = errors.New("fudo: auth response carried no token")
)

// SalesBatch is one fetched result set: the raw sale records plus the
// "included" side-table keyed "type:id". Both are handed to the analytics
// layer as-is; the client never interprets them.
type SalesBatch struct {
	Records  []map[string]interface{}
	Included map[string]map[string]interface{}
}

// Client talks to the Fudo API. It is safe for concurrent use; the cached
// token is guarded by a mutex.
type Client struct {
	httpClient *http.Client
	apiURL     string
	authURL    string
	apiKey     string
	apiSecret  string
	log        zerolog.Logger

	mu       sync.Mutex
	token    string
	tokenExp int64
	now      func() time.Time
}

// NewClient builds a client. No network call happens until the first fetch;
// authentication is lazy and renewed on demand.
func NewClient(apiURL, authURL, apiKey, apiSecret string, log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiURL:     strings.TrimRight(apiURL, "/"),
		authURL:    authURL,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		log:        log,
		now:        time.Now,
	}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.apiSecret != ""
}

// authenticate obtains a fresh bearer token. Callers must hold c.mu.
func (c *Client) authenticate(ctx context.Context) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(map[string]string{
		"apiKey":    c.apiKey,
		"apiSecret": c.apiSecret,
	})
	if err != nil {
		return fmt.Errorf("authenticate: marshal credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("authenticate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("authenticate: %w: %d", errUnexpectedStatus, resp.StatusCode)
	}

	var auth struct {
		Token string      `json:"token"`
		Exp   json.Number `json:"exp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return fmt.Errorf("authenticate: decode response: %w", err)
	}
	if auth.Token == "" {
		return errEmptyToken
	}

	c.token = auth.Token
	c.tokenExp, _ = auth.Exp.Int64()
	c.log.Debug().Int64("exp", c.tokenExp).Msg("Authenticated with Fudo API")
	return nil
}

// bearerToken returns a valid token, renewing it when it is missing or
// expires within the renewal skew.
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := c.now().Add(tokenRenewalSkew).Unix()
	if c.token == "" || c.tokenExp < deadline {
		if err := c.authenticate(ctx); err != nil {
			return "", err
		}
	}
	return c.token, nil
}

// invalidateToken drops the cached token so the next call re-authenticates.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.tokenExp = 0
	c.mu.Unlock()
}

// get performs one authenticated GET. On a 401 it re-authenticates once and
// retries; any other failure is returned as-is. Retrying beyond that is the
// caller's concern, not this client's.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL := c.apiURL + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	body, status, err := c.doGet(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		c.invalidateToken()
		body, status, err = c.doGet(ctx, reqURL)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("get %s: %w: %d", endpoint, errUnexpectedStatus, status)
	}
	return body, nil
}

func (c *Client) doGet(ctx context.Context, reqURL string) ([]byte, int, error) {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// FetchSales retrieves every sale in [start, end], paging through the
// result set. With includeRelated set it also captures the item/product/
// category side-table needed for category views.
func (c *Client) FetchSales(ctx context.Context, start, end time.Time, includeRelated bool) (*SalesBatch, error) {
	params := url.Values{}
	params.Set("filter[createdAt]", fmt.Sprintf(
		"and(gte.%s,lte.%s)",
		start.UTC().Format("2006-01-02T15:04:05Z"),
		end.UTC().Format("2006-01-02T15:04:05Z"),
	))
	params.Set("page[size]", strconv.Itoa(pageSize))
	if includeRelated {
		params.Set("include", includeParam)
	}

	batch := &SalesBatch{Included: make(map[string]map[string]interface{})}
	for page := 1; ; page++ {
		params.Set("page[number]", strconv.Itoa(page))

		body, err := c.get(ctx, "sales", params)
		if err != nil {
			return nil, fmt.Errorf("FetchSales: page %d: %w", page, err)
		}

		records, err := decodeEnvelope(body, batch.Included)
		if err != nil {
			return nil, fmt.Errorf("FetchSales: page %d: %w", page, err)
		}
		if len(records) == 0 {
			break
		}
		batch.Records = append(batch.Records, records...)
		if len(records) < pageSize {
			break
		}
	}

	c.log.Info().
		Int("sales", len(batch.Records)).
		Int("included", len(batch.Included)).
		Time("start", start).
		Time("end", end).
		Msg("Fetched sales from Fudo API")
	return batch, nil
}

// decodeEnvelope tolerates the response shapes the API has used: an object
// with "data", "sales" or "items", or a bare array. Side-table entities from
// the "included" block are accumulated into dst keyed "type:id".
func decodeEnvelope(body []byte, dst map[string]map[string]interface{}) ([]map[string]interface{}, error) {
	var envelope interface{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch v := envelope.(type) {
	case []interface{}:
		return coerceObjects(v)
	case map[string]interface{}:
		if inc, ok := v["included"].([]interface{}); ok {
			mergeIncluded(dst, inc)
		}
		for _, key := range []string{"data", "sales", "items"} {
			if list, ok := v[key].([]interface{}); ok {
				return coerceObjects(list)
			}
		}
		// Last resort: the first list-valued member.
		for _, member := range v {
			if list, ok := member.([]interface{}); ok {
				return coerceObjects(list)
			}
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("decode envelope: unexpected payload %T", envelope)
	}
}

func coerceObjects(list []interface{}) ([]map[string]interface{}, error) {
	records := make([]map[string]interface{}, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("element %d is %T, want object", i, item)
		}
		records = append(records, obj)
	}
	return records, nil
}

func mergeIncluded(dst map[string]map[string]interface{}, included []interface{}) {
	for _, item := range included {
		entity, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		entityType, _ := entity["type"].(string)
		entityID := stringID(entity["id"])
		if entityType == "" || entityID == "" {
			continue
		}
		dst[entityType+":"+entityID] = entity
	}
}

func stringID(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	}
	return ""
}
