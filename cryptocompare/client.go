package cryptocompare

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the CryptoCompare min-api endpoint.
const DefaultBaseURL = "https://min-api.cryptocompare.com"

// extraParams identifies this application to the provider on every call.
const extraParams = "CryptoWallet"

// Client talks to the CryptoCompare min-api.
type Client struct {
	// APIKey authenticates every request. Operations fail with ErrNoAPIKey
	// when it is empty.
	APIKey string

	// BaseURL overrides DefaultBaseURL, for tests.
	BaseURL string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Delay is the advisory pause between request submissions during
	// fan-out. It approximates the provider rate limit, it is not a hard
	// guarantee.
	Delay time.Duration

	// Workers bounds the historical backfill fan-out. Defaults to 3.
	Workers int
}

// NewClient returns a client with the default rate settings.
func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:  apiKey,
		Delay:   time.Second / 50, // 50 calls per second
		Workers: 3,
	}
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return 3
}

// jwget performs a GET on path with the given params and unmarshals the JSON
// response into data. Transport failures and non-200 statuses return a
// *NetworkError.
func (c *Client) jwget(path string, params url.Values, data interface{}) error {
	params.Set("extraParams", extraParams)
	params.Set("apiKey", c.APIKey)
	addr := c.baseURL() + path + "?" + params.Encode()

	resp, err := c.httpClient().Get(addr)
	if err != nil {
		return &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return &NetworkError{StatusCode: resp.StatusCode}
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return &NetworkError{Err: err}
	}
	if err := json.Unmarshal(buf.Bytes(), data); err != nil {
		return fmt.Errorf("cannot parse CryptoCompare response: %w", err)
	}
	return nil
}
