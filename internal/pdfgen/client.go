// Package pdfgen calls the presentation PDF generator over HTTP.
package pdfgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

var ErrEmptyDocumentURL = errors.New("pdf generator returned no document url")

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a client for GET <baseURL>?id=<id>. The token, when set, is sent as
// X-Generator-Token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type response struct {
	Message string `json:"message"`
}

// Generate asks the generator for a presentation document and returns its URL.
// Every call is attempted once.
func (c *Client) Generate(ctx context.Context, presentationID int64) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse generator url: %w", err)
	}
	q := u.Query()
	q.Set("id", strconv.FormatInt(presentationID, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("build generator request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("X-Generator-Token", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call generator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("generator responded %d", resp.StatusCode)
	}
	var body response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode generator response: %w", err)
	}
	if body.Message == "" {
		return "", ErrEmptyDocumentURL
	}
	return body.Message, nil
}
