// Package client is a small Go SDK for a node's HTTP admin surface.
// It talks to a single node; that node coordinates the ring.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ntua-el20059/Chordify/internal/chord"
	"github.com/ntua-el20059/Chordify/internal/store"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("key not found")

// Client represents a connection to one node's admin API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client. baseURL example: "http://localhost:8080".
func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StatusResponse is a node's view of the ring.
type StatusResponse struct {
	Self        chord.RingPosition `json:"self"`
	Successor   chord.RingPosition `json:"successor"`
	Predecessor chord.RingPosition `json:"predecessor"`
	Bootstrap   chord.RingPosition `json:"bootstrap"`
	Policy      chord.Policy       `json:"policy"`
}

// Put stores key=value in the ring via the connected node.
func (c *Client) Put(ctx context.Context, key, value string) error {
	body, _ := json.Marshal(map[string]string{"value": value})

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		fmt.Sprintf("%s/kv/%s", c.baseURL, key), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("PUT request failed: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

// Get retrieves the value for key. A 404 becomes ErrNotFound.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/kv/%s", c.baseURL, key), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNotFound
	}
	if err := checkStatus(resp); err != nil {
		return "", err
	}

	var result struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Value, nil
}

// Delete removes key from the ring.
func (c *Client) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/kv/%s", c.baseURL, key), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("DELETE request failed: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

// QueryAll returns the global key snapshot.
func (c *Client) QueryAll(ctx context.Context) ([]store.Entry, error) {
	var result struct {
		Entries []store.Entry `json:"entries"`
	}
	if err := c.getJSON(ctx, "/kv", &result); err != nil {
		return nil, err
	}
	return result.Entries, nil
}

// Overlay returns the live nodes in successor order.
func (c *Client) Overlay(ctx context.Context) ([]chord.RingPosition, error) {
	var result struct {
		Nodes []chord.RingPosition `json:"nodes"`
	}
	if err := c.getJSON(ctx, "/ring/overlay", &result); err != nil {
		return nil, err
	}
	return result.Nodes, nil
}

// Status returns the connected node's ring state.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var result StatusResponse
	if err := c.getJSON(ctx, "/status", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ─── Errors ───────────────────────────────────────────────────────────────────

// APIError carries the HTTP status and the error message from the node.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// checkStatus converts HTTP error responses into Go errors.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Error
	if msg == "" {
		msg = string(body)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
