// Package solana fetches Anchor IDLs and raw account data for Solana
// programs through an ordered chain of fallback sources.
package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Errors returned by the Solana fetcher
var (
	// ErrSkip means a source has no result for the address. The fetcher
	// moves on to the next source.
	ErrSkip     = errors.New("no result from source")
	ErrNotFound = errors.New("program not found")
)

// maxBodyBytes caps every upstream response
const maxBodyBytes = 16 << 20

// Source is one step of the IDL fallback chain
type Source interface {
	Name() string
	Attempt(ctx context.Context, address string) (json.RawMessage, error)
}

// exportResponse is the shape of the indexer and mirror IDL export endpoints
type exportResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// APISource queries an IDL export endpoint. The indexer and its public
// mirror share this shape.
type APISource struct {
	name    string
	baseURL string
	token   string
	hc      *http.Client
}

// NewIndexerSource creates the primary indexer source. token is sent as a
// bearer token when set.
func NewIndexerSource(baseURL, token string, hc *http.Client) *APISource {
	return &APISource{name: "indexer", baseURL: baseURL, token: token, hc: hc}
}

// NewMirrorSource creates the public mirror source
func NewMirrorSource(baseURL string, hc *http.Client) *APISource {
	return &APISource{name: "mirror", baseURL: baseURL, hc: hc}
}

// Name implements Source
func (s *APISource) Name() string { return s.name }

// Attempt implements Source
func (s *APISource) Attempt(ctx context.Context, address string) (json.RawMessage, error) {
	if s.baseURL == "" {
		return nil, fmt.Errorf("%w: %s not configured", ErrSkip, s.name)
	}
	u := strings.TrimRight(s.baseURL, "/") + "/account/idl?address=" + url.QueryEscape(address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	body, err := doRequest(s.hc, req)
	if err != nil {
		return nil, err
	}

	var resp exportResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", s.name, err)
	}
	if !resp.Success || !nonEmpty(resp.Data) {
		return nil, ErrSkip
	}
	return resp.Data, nil
}

func doRequest(hc *http.Client, req *http.Request) ([]byte, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s returned HTTP %d", req.URL.Host, resp.StatusCode)
	}
	return body, nil
}

// nonEmpty rejects null, "", {} and []
func nonEmpty(data json.RawMessage) bool {
	s := strings.TrimSpace(string(data))
	switch s {
	case "", "null", `""`, "{}", "[]":
		return false
	}
	return json.Valid(data)
}
