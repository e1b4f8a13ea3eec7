package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

var (
	preIDLPattern   = regexp.MustCompile(`(?is)<pre[^>]*\bid="[^"]*idl[^"]*"[^>]*>(.*?)</pre>`)
	nextDataPattern = regexp.MustCompile(`(?is)<script[^>]*\bid="__NEXT_DATA__"[^>]*>(.*?)</script>`)
	windowPattern   = regexp.MustCompile(`(?is)window\.__NEXT_DATA__\s*=\s*(\{.*?\})\s*;?\s*</script>`)
)

// nextDataPath is where the account page keeps the IDL
var nextDataPath = []string{"props", "pageProps", "idl"}

// ScrapeSource extracts an IDL from the indexer's account web page. It is
// tied to one vendor's markup and is the last source tried.
type ScrapeSource struct {
	webURL string
	hc     *http.Client
}

// NewScrapeSource creates a scraping source against webURL
func NewScrapeSource(webURL string, hc *http.Client) *ScrapeSource {
	return &ScrapeSource{webURL: webURL, hc: hc}
}

// Name implements Source
func (s *ScrapeSource) Name() string { return "scrape" }

// Attempt implements Source
func (s *ScrapeSource) Attempt(ctx context.Context, address string) (json.RawMessage, error) {
	u := strings.TrimRight(s.webURL, "/") + "/account/" + url.PathEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; contractlens/1.0)")

	body, err := doRequest(s.hc, req)
	if err != nil {
		return nil, err
	}
	return ExtractIDL(string(body))
}

// ExtractIDL finds an IDL in an HTML page: first a <pre> element whose id
// contains "idl", then either form of the Next.js data blob. A blob that is
// present but carries no IDL does not stop the search.
func ExtractIDL(page string) (json.RawMessage, error) {
	if m := preIDLPattern.FindStringSubmatch(page); m != nil {
		blob := strings.TrimSpace(html.UnescapeString(m[1]))
		if nonEmpty(json.RawMessage(blob)) {
			return json.RawMessage(blob), nil
		}
	}

	var blobErr error
	for _, pattern := range []*regexp.Regexp{nextDataPattern, windowPattern} {
		m := pattern.FindStringSubmatch(page)
		if m == nil {
			continue
		}
		idl, err := descend(json.RawMessage(strings.TrimSpace(m[1])), nextDataPath)
		if err == nil {
			return idl, nil
		}
		if !errors.Is(err, ErrSkip) && blobErr == nil {
			blobErr = fmt.Errorf("next data blob: %w", err)
		}
	}
	if blobErr != nil {
		return nil, blobErr
	}
	return nil, ErrSkip
}

func descend(doc json.RawMessage, keys []string) (json.RawMessage, error) {
	cur := doc
	for _, key := range keys {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(cur, &obj); err != nil {
			return nil, err
		}
		next, ok := obj[key]
		if !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrSkip, key)
		}
		cur = next
	}
	if !nonEmpty(cur) {
		return nil, ErrSkip
	}
	return cur, nil
}
