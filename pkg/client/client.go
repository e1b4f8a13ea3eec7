// Package client provides a Go client for the ContractLens API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a ContractLens API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// New creates a new client. apiKey is only needed for Analyze when the
// server runs with AUTH_TYPE=api-key.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 3 * time.Minute,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// File is one file of a bundle
type File struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Artifact is an ABI or IDL, tagged by Kind ("evm-abi", "solana-idl" or
// "unavailable")
type Artifact struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Metadata describes how the contract was compiled
type Metadata struct {
	Name         string `json:"name"`
	Compiler     string `json:"compiler"`
	Optimization bool   `json:"optimization"`
	Runs         int    `json:"runs"`
	EVMVersion   string `json:"evmVersion"`
	License      string `json:"license,omitempty"`
}

// Implementation is the contract behind a proxy
type Implementation struct {
	Address    string   `json:"address"`
	Convention string   `json:"convention"`
	Metadata   Metadata `json:"metadata"`
	Artifact   Artifact `json:"artifact"`
}

// Account is the raw view of a Solana account without an IDL
type Account struct {
	IsExecutable bool    `json:"isExecutable"`
	Owner        string  `json:"owner"`
	Lamports     uint64  `json:"lamports"`
	SOLBalance   float64 `json:"solBalance"`
	DataLength   int     `json:"dataLength"`
	DataPreview  string  `json:"dataPreview"`
}

// Bundle is the response of GET /api/source
type Bundle struct {
	Chain          string          `json:"chain"`
	Address        string          `json:"address"`
	Files          []File          `json:"files"`
	Artifact       Artifact        `json:"artifact"`
	Metadata       Metadata        `json:"metadata"`
	Creator        string          `json:"creator"`
	CreationTx     string          `json:"creationTx"`
	Implementation *Implementation `json:"implementation"`
	Account        *Account        `json:"account,omitempty"`

	// Cached is set when the server answered from a snapshot
	Cached bool `json:"-"`
}

// File returns the file at path, if present
func (b *Bundle) File(path string) (File, bool) {
	for _, f := range b.Files {
		if f.Path == path {
			return f, true
		}
	}
	return File{}, false
}

// ChainInfo is one chain's entry in a contract-info response
type ChainInfo struct {
	Chain            string   `json:"chain"`
	Kind             string   `json:"kind"`
	Exists           bool     `json:"exists"`
	IsContract       bool     `json:"isContract"`
	CodeSize         int      `json:"codeSize"`
	Fingerprint      string   `json:"fingerprint,omitempty"`
	Balance          string   `json:"balance"`
	BalanceFormatted string   `json:"balanceFormatted"`
	Symbol           string   `json:"symbol"`
	Account          *Account `json:"account,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// ContractInfo is the response of GET /api/contract-info
type ContractInfo struct {
	Address string               `json:"address"`
	Chains  map[string]ChainInfo `json:"chains"`
}

// Chain is one registry entry
type Chain struct {
	ID       string `json:"id"`
	ChainID  int64  `json:"chainId,omitempty"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Currency struct {
		Name     string `json:"name"`
		Symbol   string `json:"symbol"`
		Decimals int    `json:"decimals"`
	} `json:"currency"`
	ExplorerURL string `json:"explorerUrl"`
	HasAPIKey   bool   `json:"hasApiKey"`
}

// AnalyzeRequest is the body of POST /api/analyze
type AnalyzeRequest struct {
	Chain       string `json:"chain"`
	Address     string `json:"address"`
	Provider    string `json:"provider,omitempty"`
	Model       string `json:"model,omitempty"`
	Language    string `json:"language,omitempty"`
	SuperPrompt bool   `json:"superPrompt,omitempty"`
}

// Report is a stored analysis
type Report struct {
	ID        string    `json:"id"`
	Chain     string    `json:"chain"`
	Address   string    `json:"address"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Language  string    `json:"language"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// APIError is a non-2xx response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// GetSource fetches the full bundle. chain may be empty to let the server
// infer it from the address.
func (c *Client) GetSource(ctx context.Context, chain, address string) (*Bundle, error) {
	var b Bundle
	header, err := c.get(ctx, "/api/source", url.Values{"chain": {chain}, "address": {address}}, &b)
	if err != nil {
		return nil, err
	}
	b.Cached = header.Get("X-Snapshot") == "hit"
	return &b, nil
}

// GetIDL fetches only the IDL of a Solana program
func (c *Client) GetIDL(ctx context.Context, address string) (json.RawMessage, string, error) {
	var resp struct {
		IDL    json.RawMessage `json:"idl"`
		Source string          `json:"source"`
	}
	q := url.Values{"chain": {"solana"}, "address": {address}, "action": {"idl"}}
	if _, err := c.get(ctx, "/api/source", q, &resp); err != nil {
		return nil, "", err
	}
	return resp.IDL, resp.Source, nil
}

// ContractInfo returns existence, code and balance on one chain, or on
// every chain of the address's kind when chain is "" or "all".
func (c *Client) ContractInfo(ctx context.Context, chain, address string) (*ContractInfo, error) {
	var info ContractInfo
	if _, err := c.get(ctx, "/api/contract-info", url.Values{"chain": {chain}, "address": {address}}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Chains lists the server's chain registry
func (c *Client) Chains(ctx context.Context) ([]Chain, error) {
	var resp struct {
		Data []Chain `json:"data"`
	}
	if _, err := c.get(ctx, "/api/chains", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Analyze runs an AI security analysis and returns the stored report
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*Report, error) {
	var r Report
	if err := c.post(ctx, "/api/analyze", req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetReport fetches a stored report
func (c *Client) GetReport(ctx context.Context, id string) (*Report, error) {
	var r Report
	if _, err := c.get(ctx, "/api/reports/"+url.PathEscape(id), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListReports lists the newest reports for a contract
func (c *Client) ListReports(ctx context.Context, chain, address string) ([]Report, error) {
	var resp struct {
		Data []Report `json:"data"`
	}
	if _, err := c.get(ctx, "/api/reports", url.Values{"chain": {chain}, "address": {address}}, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, result any) (http.Header, error) {
	target := c.baseURL + path
	for k, v := range query {
		if len(v) == 0 || v[0] == "" {
			query.Del(k)
		}
	}
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req, result)
	return err
}

func (c *Client) do(req *http.Request, result any) (http.Header, error) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return resp.Header, parseError(resp)
	}
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return resp.Header, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.Header, nil
}

func parseError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Code = ""
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}
