package cloudapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the control plane endpoint.
const DefaultBaseURL = "https://api.skybox.dev/v1"

// defaultDataURL is the per-region data plane endpoint template; %s is
// replaced with the region.
const defaultDataURL = "https://data.%s.skybox.dev/v1"

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// Client talks to the skybox control plane. After creation the client
// is immutable and safe for concurrent use.
type Client struct {
	baseURL    string
	dataURL    string
	token      string
	httpClient *http.Client
	retry      RetryConfig

	// Service groups
	Units     *UnitService
	Volumes   *VolumeService
	Snapshots *SnapshotService
}

// RetryConfig bounds the retry loop for failed requests.
type RetryConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// NewClient creates a control plane client authenticated with token.
func NewClient(token string, opts ...ClientOption) *Client {
	client := &Client{
		baseURL: DefaultBaseURL,
		dataURL: defaultDataURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: RetryConfig{
			MaxRetries: 3,
			RetryDelay: time.Second,
		},
	}

	for _, opt := range opts {
		opt(client)
	}

	client.Units = NewUnitService(client)
	client.Volumes = NewVolumeService(client)
	client.Snapshots = NewSnapshotService(client)

	return client
}

// WithBaseURL sets a custom control plane URL.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithDataURL sets the data plane URL template. A "%s" in the template
// is replaced with the unit's region; a template without one is used
// verbatim.
func WithDataURL(url string) ClientOption {
	return func(c *Client) {
		c.dataURL = strings.TrimRight(url, "/")
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(config RetryConfig) ClientOption {
	return func(c *Client) {
		c.retry = config
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewRequest creates a control plane request with auth and JSON
// headers set.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	return c.newRequest(ctx, method, c.baseURL+path, body)
}

// NewDataRequest creates a data plane request targeting the given
// region.
func (c *Client) NewDataRequest(ctx context.Context, region, method, path string, body io.Reader) (*http.Request, error) {
	return c.newRequest(ctx, method, c.dataBase(region)+path, body)
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "skybox")

	return req, nil
}

func (c *Client) dataBase(region string) string {
	if strings.Contains(c.dataURL, "%s") {
		return fmt.Sprintf(c.dataURL, region)
	}
	return c.dataURL
}

// Do executes the request, retrying transport errors and 5xx responses
// with linear backoff (delay grows with the attempt number). The
// terminal outcome is returned as-is: a non-5xx response passes
// through for the caller to decode, an exhausted transport failure
// surfaces as *NetworkError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retry.RetryDelay * time.Duration(attempt)
			select {
			case <-time.After(delay):
			case <-req.Context().Done():
				return nil, &NetworkError{Err: req.Context().Err()}
			}

			// Replay the body on POST retries.
			if req.GetBody != nil {
				body, gerr := req.GetBody()
				if gerr != nil {
					return nil, fmt.Errorf("failed to rewind request body: %w", gerr)
				}
				req.Body = body
			}
		}

		resp, err = c.httpClient.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		// Drop the failed response before the next attempt.
		if resp != nil && attempt < c.retry.MaxRetries {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
	}

	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	return resp, nil
}

// checkResponse converts a non-2xx response into an *APIError. The
// response body is consumed either way.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RequestID:  resp.Header.Get("X-Request-Id"),
	}

	var wire struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if jerr := json.Unmarshal(body, &wire); jerr == nil {
		apiErr.Code = wire.Error.Code
		apiErr.Message = wire.Error.Message
		if apiErr.Message == "" {
			apiErr.Message = wire.Message
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	return apiErr
}

// decodeJSON decodes the response body into out after status checking.
func decodeJSON(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if err := checkResponse(resp); err != nil {
		return err
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
