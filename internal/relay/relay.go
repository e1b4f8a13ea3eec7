// Package relay fetches allow-listed third-party URLs on behalf of the
// browser, which cannot call most explorer APIs directly.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/pendergraft/contractlens/internal/config"
	"github.com/pendergraft/contractlens/internal/validation"
)

var (
	ErrInvalidURL      = errors.New("invalid url")
	ErrHostNotAllowed  = errors.New("host not allowed")
	ErrUpstreamFailure = errors.New("upstream request failed")
)

// Response is the relayed upstream response
type Response struct {
	URL         string `json:"url"`
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
	Truncated   bool   `json:"truncated,omitempty"`
}

// Relay performs GET requests against an allow-list of hosts
type Relay struct {
	hc      *http.Client
	allowed []string
	maxBody int64
	logger  *slog.Logger
}

// New creates a relay. Entries in hosts may be bare host names or URLs.
// A host also admits its subdomains.
func New(hosts []string, cfg config.RelayConfig, logger *slog.Logger) *Relay {
	allowed := lo.Uniq(lo.FilterMap(slices.Concat(hosts, cfg.AllowedHosts), func(h string, _ int) (string, bool) {
		h = normalizeHost(h)
		return h, h != ""
	}))

	maxBody := int64(cfg.MaxBodyKB) * 1024
	if maxBody <= 0 {
		maxBody = 4 << 20
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	r := &Relay{allowed: allowed, maxBody: maxBody, logger: logger}
	r.hc = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("stopped after 5 redirects")
			}
			if !r.Allowed(req.URL.Hostname()) {
				return fmt.Errorf("%w: redirect to %s", ErrHostNotAllowed, req.URL.Hostname())
			}
			return nil
		},
	}
	return r
}

// Hosts returns the allow-list
func (r *Relay) Hosts() []string {
	return r.allowed
}

// Allowed reports whether host or one of its parent domains is allow-listed
func (r *Relay) Allowed(host string) bool {
	host = strings.ToLower(host)
	return lo.ContainsBy(r.allowed, func(a string) bool {
		return host == a || strings.HasSuffix(host, "."+a)
	})
}

// Fetch GETs raw and returns the upstream status, content type and body.
// Bodies larger than the limit are cut and flagged as truncated.
func (r *Relay) Fetch(ctx context.Context, raw string) (*Response, error) {
	u, err := validation.ValidateURL(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !r.Allowed(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Hostname())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")

	resp, err := r.hc.Do(req)
	if err != nil {
		if errors.Is(err, ErrHostNotAllowed) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrUpstreamFailure, err)
	}

	out := &Response{
		URL:         u.String(),
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if int64(len(body)) > r.maxBody {
		body = body[:r.maxBody]
		out.Truncated = true
	}
	out.Body = string(body)

	r.logger.Debug("relayed request", "host", u.Hostname(), "status", resp.StatusCode, "bytes", len(body))
	return out, nil
}

func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if strings.Contains(h, "://") {
		u, err := url.Parse(h)
		if err != nil {
			return ""
		}
		return u.Hostname()
	}
	return strings.TrimSuffix(h, "/")
}
