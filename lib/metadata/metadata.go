// Package metadata fetches collectible metadata documents from token URIs.
// Callers treat any error as "metadata absent": a host that is down or
// returns junk must never break detection.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxBody caps metadata responses, some hosts serve arbitrarily large files.
const maxBody = 2 << 20

// Fetcher retrieves JSON documents from metadata URLs.
type Fetcher interface {
	JSON(ctx context.Context, url string, out interface{}) error
}

// Document is the common shape of NFT metadata JSON.
type Document struct {
	Name        string `json:"name"`
	Image       string `json:"image"`
	ImageURL    string `json:"image_url"`
	Description string `json:"description"`
}

// Picture returns the image field, falling back to image_url.
func (d Document) Picture() string {
	if d.Image != "" {
		return d.Image
	}

	return d.ImageURL
}

// Client is the HTTP-backed Fetcher.
type Client struct {
	HTTP *http.Client
}

// New returns a Client with a timeout suited to slow metadata hosts.
func New() *Client {
	return &Client{HTTP: &http.Client{Timeout: 12 * time.Second}}
}

// JSON fetches url and decodes the response body into out.
func (c *Client) JSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("metadata request %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("metadata fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("metadata fetch %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(out); err != nil {
		return fmt.Errorf("metadata decode %s: %w", url, err)
	}

	return nil
}
