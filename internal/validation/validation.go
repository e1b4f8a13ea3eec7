// Package validation provides input validation for contractlens.
package validation

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Solana addresses are base58 public keys, 32 to 44 characters. The base58
// alphabet excludes 0, O, I and l.
var solanaAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// Chain identifiers: lowercase alphanumeric with hyphens
var chainIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,31}$`)

// ValidateEVMAddress validates an Ethereum address
func ValidateEVMAddress(addr string) error {
	if len(addr) != 42 {
		return errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return errors.New("invalid address: must start with 0x")
	}
	if !common.IsHexAddress(addr) {
		return errors.New("invalid address: contains non-hex characters")
	}
	return nil
}

// ValidateSolanaAddress validates a base58 Solana public key
func ValidateSolanaAddress(addr string) error {
	if len(addr) < 32 || len(addr) > 44 {
		return errors.New("invalid address length: must be 32-44 base58 characters")
	}
	if !solanaAddressRegex.MatchString(addr) {
		return errors.New("invalid address: contains non-base58 characters")
	}
	return nil
}

// ValidateChain validates a chain identifier such as "ethereum" or "all"
func ValidateChain(chain string) error {
	if chain == "" {
		return errors.New("chain is required")
	}
	if !chainIDRegex.MatchString(chain) {
		return errors.New("invalid chain: must be lowercase alphanumeric with hyphens")
	}
	return nil
}

// ValidateURL validates an absolute http(s) URL and returns it parsed
func ValidateURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.New("invalid url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("invalid url: scheme must be http or https")
	}
	if u.Hostname() == "" {
		return nil, errors.New("invalid url: host is required")
	}
	if u.User != nil {
		return nil, errors.New("invalid url: credentials are not allowed")
	}
	return u, nil
}
