package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HeaderSettingClient wraps http.Client to stamp per-source headers on every
// outbound request. IPTV providers routinely reject requests whose
// User-Agent, Origin or Referer do not look like a known player, so all
// playlist, API and EPG traffic goes through this client.
type HeaderSettingClient struct {
	Client *http.Client
}

// NewHeaderSettingClient builds a client tuned for many short API calls
// against a small set of hosts. There is no overall timeout: callers bound
// each request with a context deadline instead.
func NewHeaderSettingClient() *HeaderSettingClient {
	return &HeaderSettingClient{
		Client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
	}
}

// Do executes the request with default headers.
func (hsc *HeaderSettingClient) Do(req *http.Request) (*http.Response, error) {
	return hsc.DoWithHeaders(req, "", "", "")
}

// DoWithHeaders executes the request with the given source headers. Empty
// values fall back to sane defaults (User-Agent) or are omitted entirely
// (Origin, Referer).
func (hsc *HeaderSettingClient) DoWithHeaders(req *http.Request, userAgent, origin, referrer string) (*http.Response, error) {
	if userAgent == "" {
		userAgent = "VLC/3.0.18 LibVLC/3.0.18"
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if referrer != "" {
		req.Header.Set("Referer", referrer)
	}
	return hsc.Client.Do(req)
}

// FetchBody downloads url and returns the full body as a string. Playlist
// payloads fit in memory; the 2 minute deadline covers even the slowest
// multi-megabyte provider exports.
func (hsc *HeaderSettingClient) FetchBody(ctx context.Context, url, userAgent, origin, referrer string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := hsc.DoWithHeaders(req, userAgent, origin, referrer)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(body), nil
}
