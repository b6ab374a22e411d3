package casedoc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// snippetLimit caps how much of an error response body is carried in
// errors and logs.
const snippetLimit = 256

// Client is a thin HTTP client for the case-management public API. The
// service authenticates via a custom Authentication header (not the
// standard Authorization header). A Client is built fresh per pipeline
// call with the token and base URL current at that moment.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the given API base URL and bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Do issues a request and returns the raw status and body. Transport-level
// failures are wrapped as network errors; HTTP error statuses are returned
// to the caller undecorated, since the version-upload probe interprets
// them itself.
func (c *Client) Do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
) (int, []byte, error) {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authentication", c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf(
			"network error executing %s %s: %w", method, path, err,
		)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return resp.StatusCode, nil, fmt.Errorf(
			"reading response body: %w", readErr,
		)
	}

	return resp.StatusCode, respBody, nil
}

// Get performs a GET request, requires a success status, and unmarshals
// the JSON response into result.
func (c *Client) Get(
	ctx context.Context, path string, result interface{},
) error {
	return c.call(ctx, http.MethodGet, path, nil, result)
}

// Post performs a POST request with a JSON body, requires a success
// status, and unmarshals the JSON response into result.
func (c *Client) Post(
	ctx context.Context, path string, body, result interface{},
) error {
	return c.call(ctx, http.MethodPost, path, body, result)
}

// call wraps Do with success-status checking and JSON decoding.
func (c *Client) call(
	ctx context.Context,
	method string,
	path string,
	body, result interface{},
) error {
	status, respBody, err := c.Do(ctx, method, path, body)
	if err != nil {
		return err
	}

	if status < 200 || status >= 300 {
		return &UploadError{
			Status:  status,
			Method:  method,
			Path:    path,
			Snippet: snippet(respBody),
		}
	}

	if result == nil || status == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf(
			"unmarshaling response from %s %s: %w", method, path, err,
		)
	}

	return nil
}

// snippet truncates a response body for inclusion in error messages.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > snippetLimit {
		s = s[:snippetLimit]
	}
	return s
}
