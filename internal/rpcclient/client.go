// Package rpcclient wraps JSON-RPC calls to chain nodes with a fixed retry
// budget and a short-lived response cache.
package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/pendergraft/contractlens/internal/chains"
	"github.com/pendergraft/contractlens/internal/config"
	"github.com/pendergraft/contractlens/internal/observability/metrics"
)

// ErrUnknownChain is returned when the chain is not in the registry.
var ErrUnknownChain = errors.New("unknown chain")

// ExhaustedError is returned when every attempt of a call failed.
type ExhaustedError struct {
	Chain    string
	Method   string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("rpc %s on %s failed after %d attempts: %v", e.Method, e.Chain, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Conn is a single JSON-RPC connection. *rpc.Client satisfies it.
type Conn interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
	Close()
}

// Dialer opens a connection to an endpoint URL
type Dialer func(ctx context.Context, url string) (Conn, error)

// HTTPDialer dials endpoints with go-ethereum's rpc package over the given client
func HTTPDialer(hc *http.Client) Dialer {
	return func(ctx context.Context, url string) (Conn, error) {
		return rpc.DialOptions(ctx, url, rpc.WithHTTPClient(hc))
	}
}

// Client issues JSON-RPC calls against the endpoints of registered chains.
// It is safe for concurrent use.
type Client struct {
	registry *chains.Registry
	cfg      config.RPCConfig
	dial     Dialer
	cache    *expirable.LRU[string, json.RawMessage]
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	conns map[string]Conn
}

// Option configures a Client
type Option func(*Client)

// WithDialer replaces the default HTTP dialer
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dial = d }
}

// WithSleep replaces the backoff sleep, mainly for tests
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

// New creates a client for the chains in registry
func New(registry *chains.Registry, cfg config.RPCConfig, logger *slog.Logger, opts ...Option) *Client {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.CacheSize < 1 {
		cfg.CacheSize = 100
	}
	c := &Client{
		registry: registry,
		cfg:      cfg,
		dial:     HTTPDialer(&http.Client{}),
		cache:    expirable.NewLRU[string, json.RawMessage](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:   logger,
		sleep:    sleepContext,
		conns:    make(map[string]Conn),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call invokes method on the chain's endpoints, retrying transport failures
func (c *Client) Call(ctx context.Context, chain, method string, params ...any) (json.RawMessage, error) {
	d, ok := c.registry.Get(chain)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChain, chain)
	}
	return c.CallEndpoints(ctx, d.ID, d.RPCURLs, method, params...)
}

// CallCached is Call with a cache lookup on key. A hit within the freshness
// window skips the network. A successful call overwrites the entry.
func (c *Client) CallCached(ctx context.Context, key, chain, method string, params ...any) (json.RawMessage, error) {
	// Peek does not refresh recency, so eviction follows insertion order
	if v, ok := c.cache.Peek(key); ok {
		metrics.RPCCacheLookup(true)
		return v, nil
	}
	metrics.RPCCacheLookup(false)

	result, err := c.Call(ctx, chain, method, params...)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, result)
	return result, nil
}

// CallEndpoints invokes method against an explicit endpoint list. Attempt n
// goes to urls[n % len(urls)].
func (c *Client) CallEndpoints(ctx context.Context, label string, urls []string, method string, params ...any) (json.RawMessage, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: %s has no RPC endpoints", ErrUnknownChain, label)
	}

	delay := c.cfg.InitialDelay
	var lastErr error
	for attempt := 0; attempt < c.cfg.Attempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay = time.Duration(float64(delay) * c.cfg.Multiplier)
		}

		url := urls[attempt%len(urls)]
		start := time.Now()
		result, err := c.callOnce(ctx, url, method, params)
		if err == nil {
			metrics.RPCCall(label, method, "success", time.Since(start))
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			metrics.RPCCall(label, method, "canceled", time.Since(start))
			return nil, ctx.Err()
		}
		if !retryable(err) {
			metrics.RPCCall(label, method, "rejected", time.Since(start))
			return nil, fmt.Errorf("%s %s: %w", label, method, err)
		}

		metrics.RPCCall(label, method, "error", time.Since(start))
		c.logger.Debug("rpc attempt failed",
			"chain", label,
			"method", method,
			"attempt", attempt+1,
			"error", err,
		)
	}

	return nil, &ExhaustedError{
		Chain:    label,
		Method:   method,
		Attempts: c.cfg.Attempts,
		Err:      lastErr,
	}
}

func (c *Client) callOnce(ctx context.Context, url, method string, params []any) (json.RawMessage, error) {
	conn, err := c.conn(ctx, url)
	if err != nil {
		return nil, err
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	var result json.RawMessage
	if err := conn.CallContext(ctx, &result, method, params...); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) conn(ctx context.Context, url string) (Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn, ok := c.conns[url]; ok {
		return conn, nil
	}
	conn, err := c.dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	c.conns[url] = conn
	return conn, nil
}

// Close closes every open connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for url, conn := range c.conns {
		conn.Close()
		delete(c.conns, url)
	}
}

// retryable reports whether err is a transport failure worth retrying.
// JSON-RPC error objects and 4xx responses other than 408/429 are final.
func retryable(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return false
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode >= 500:
			return true
		case httpErr.StatusCode == http.StatusTooManyRequests, httpErr.StatusCode == http.StatusRequestTimeout:
			return true
		default:
			return false
		}
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
