// Package moex talks to the Moscow Exchange ISS API and turns its tabular
// JSON blocks into keyed records.
package moex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	// DefaultBaseURL is the public ISS API root.
	DefaultBaseURL = "https://iss.moex.com/iss"

	// Fixed format flags: compact tabular JSON with metadata suppressed,
	// giving every block the uniform {columns, data} shape.
	issJSONFlag = "compact"
	issMetaFlag = "off"
)

// Block is one named tabular data block of an ISS response.
type Block struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

// BlockMap maps block names (e.g. "securities", "marketdata") to blocks.
type BlockMap map[string]Block

// FetchError reports a failed exchange request: either a non-2xx HTTP
// status, or a network/decode failure wrapping the underlying cause.
type FetchError struct {
	StatusCode int
	Status     string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("exchange returned %s", e.Status)
	}
	return fmt.Sprintf("exchange request failed: %v", e.Err)
}

// Unwrap returns the underlying cause, if any.
func (e *FetchError) Unwrap() error { return e.Err }

// Params holds query parameters for an exchange request. Keys matching a
// {placeholder} in the endpoint template are substituted into the path
// instead of the query string.
type Params map[string]string

// Client is a thin fetch wrapper over the ISS REST hierarchy. It performs
// no retries; retrying is a pipeline-level concern.
type Client struct {
	httpClient *http.Client
	baseURL    string
	lang       string
}

// NewClient creates an exchange client. baseURL defaults to the public ISS
// root and lang to "ru" when empty.
func NewClient(httpClient *http.Client, baseURL, lang string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if lang == "" {
		lang = "ru"
	}
	return &Client{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/"), lang: lang}
}

// Fetch performs a GET against an endpoint template and returns the parsed
// block map.
func (c *Client) Fetch(ctx context.Context, endpoint string, params Params) (BlockMap, error) {
	return c.FetchWithBody(ctx, http.MethodGet, endpoint, params, nil)
}

// FetchWithBody performs a request with an optional JSON body. Non-GET
// requests with a body are used by the ISS filter endpoints.
func (c *Client) FetchWithBody(ctx context.Context, method, endpoint string, params Params, body any) (BlockMap, error) {
	reqURL, err := c.buildURL(endpoint, params)
	if err != nil {
		return nil, &FetchError{Err: err}
	}

	var reqBody *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, &FetchError{Err: fmt.Errorf("encoding request body: %w", err)}
		}
		reqBody = bytes.NewReader(encoded)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("building request: %w", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("http request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var blocks BlockMap
	if err := json.NewDecoder(resp.Body).Decode(&blocks); err != nil {
		return nil, &FetchError{Err: fmt.Errorf("decoding response: %w", err)}
	}

	return blocks, nil
}

// buildURL substitutes {placeholder} tokens in the endpoint template with
// matching params, appends the .json suffix when absent, and merges the
// remaining params over the fixed defaults into the query string.
func (c *Client) buildURL(endpoint string, params Params) (string, error) {
	query := url.Values{}
	query.Set("lang", c.lang)
	query.Set("iss.json", issJSONFlag)
	query.Set("iss.meta", issMetaFlag)

	path := endpoint
	for key, value := range params {
		placeholder := "{" + key + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, url.PathEscape(value))
			continue
		}
		query.Set(key, value)
	}

	if strings.Contains(path, "{") {
		return "", fmt.Errorf("unresolved placeholder in endpoint %q", path)
	}
	if !strings.HasSuffix(path, ".json") {
		path += ".json"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return c.baseURL + path + "?" + query.Encode(), nil
}
