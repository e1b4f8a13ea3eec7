// Package explorer talks to Etherscan-compatible block explorer APIs.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pendergraft/contractlens/internal/chains"
	"github.com/pendergraft/contractlens/internal/config"
	"github.com/pendergraft/contractlens/internal/observability/metrics"
)

// Errors returned by explorer calls
var (
	ErrNoExplorer = errors.New("chain has no explorer API")
	ErrAPI        = errors.New("explorer API error")
)

// maxResponseBytes caps explorer response bodies
const maxResponseBytes = 32 << 20

// envelope is the common explorer response shape. The proxy module answers
// in JSON-RPC form, so both shapes are decoded.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SourceRecord is one entry of a getsourcecode result
type SourceRecord struct {
	SourceCode       string `json:"SourceCode"`
	ABI              string `json:"ABI"`
	ContractName     string `json:"ContractName"`
	CompilerVersion  string `json:"CompilerVersion"`
	OptimizationUsed string `json:"OptimizationUsed"`
	Runs             string `json:"Runs"`
	EVMVersion       string `json:"EVMVersion"`
	LicenseType      string `json:"LicenseType"`
	Proxy            string `json:"Proxy"`
	Implementation   string `json:"Implementation"`
}

// Creation is one entry of a getcontractcreation result
type Creation struct {
	ContractAddress  string `json:"contractAddress"`
	ContractCreator  string `json:"contractCreator"`
	TxHash           string `json:"txHash"`
	CreationBytecode string `json:"creationBytecode"`
}

// Client calls explorer APIs. Requests share one rate limiter so concurrent
// fetches stay under the explorer's per-key quota.
type Client struct {
	hc      *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates an explorer client
func NewClient(cfg config.ExplorerConfig, logger *slog.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		hc:      &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

// GetSourceCode calls module=contract&action=getsourcecode
func (c *Client) GetSourceCode(ctx context.Context, chain chains.Descriptor, address string) (*SourceRecord, error) {
	var records []SourceRecord
	if err := c.get(ctx, chain, "getsourcecode", url.Values{
		"module":  {"contract"},
		"action":  {"getsourcecode"},
		"address": {address},
	}, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &SourceRecord{}, nil
	}
	return &records[0], nil
}

// GetContractCreation calls module=contract&action=getcontractcreation
func (c *Client) GetContractCreation(ctx context.Context, chain chains.Descriptor, address string) (*Creation, error) {
	var records []Creation
	if err := c.get(ctx, chain, "getcontractcreation", url.Values{
		"module":            {"contract"},
		"action":            {"getcontractcreation"},
		"contractaddresses": {address},
	}, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &Creation{}, nil
	}
	return &records[0], nil
}

// GetCode calls module=proxy&action=eth_getCode
func (c *Client) GetCode(ctx context.Context, chain chains.Descriptor, address string) (string, error) {
	var code string
	if err := c.get(ctx, chain, "eth_getCode", url.Values{
		"module":  {"proxy"},
		"action":  {"eth_getCode"},
		"address": {address},
		"tag":     {"latest"},
	}, &code); err != nil {
		return "", err
	}
	return code, nil
}

func (c *Client) get(ctx context.Context, chain chains.Descriptor, action string, params url.Values, out any) (err error) {
	start := time.Now()
	defer func() {
		result := "success"
		if err != nil {
			result = "error"
		}
		metrics.ExplorerCall(chain.ID, action, result, time.Since(start))
	}()

	if chain.ExplorerAPIURL == "" {
		return fmt.Errorf("%w: %s", ErrNoExplorer, chain.ID)
	}
	u, err := url.Parse(chain.ExplorerAPIURL)
	if err != nil {
		return fmt.Errorf("parsing explorer URL: %w", err)
	}

	q := u.Query()
	for k, v := range params {
		q[k] = v
	}
	if chain.ChainID != 0 {
		q.Set("chainid", strconv.FormatInt(chain.ChainID, 10))
	}
	if chain.APIKey != "" {
		q.Set("apikey", chain.APIKey)
	}
	u.RawQuery = q.Encode()

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "contractlens/1.0")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading %s response: %w", action, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned HTTP %d", ErrAPI, action, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decoding %s response: %w", action, err)
	}
	if env.Error != nil {
		return fmt.Errorf("%w: %s: %s", ErrAPI, action, env.Error.Message)
	}
	// status "0" carries the reason as a string result ("Max rate limit reached")
	if env.Status == "0" {
		var reason string
		if json.Unmarshal(env.Result, &reason) != nil || reason == "" {
			reason = env.Message
		}
		if strings.Contains(strings.ToLower(reason), "no data found") {
			return nil
		}
		return fmt.Errorf("%w: %s: %s", ErrAPI, action, reason)
	}

	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decoding %s result: %w", action, err)
	}
	return nil
}
