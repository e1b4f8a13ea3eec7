// Package chains provides the chain registry: the static mapping from chain
// identifier to RPC endpoints, explorer endpoints and display metadata.
package chains

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Kind is the execution environment of a chain
type Kind string

const (
	KindEVM    Kind = "evm"
	KindSolana Kind = "solana"
)

// Currency describes a chain's native currency
type Currency struct {
	Name     string `json:"name" toml:"name" yaml:"name"`
	Symbol   string `json:"symbol" toml:"symbol" yaml:"symbol"`
	Decimals int    `json:"decimals" toml:"decimals" yaml:"decimals"`
}

// Descriptor describes one chain. Descriptors are immutable once registered.
type Descriptor struct {
	ID             string   `json:"id" toml:"id" yaml:"id"`
	ChainID        int64    `json:"chainId" toml:"chain_id" yaml:"chain_id"`
	Name           string   `json:"name" toml:"name" yaml:"name"`
	Kind           Kind     `json:"kind" toml:"kind" yaml:"kind"`
	Currency       Currency `json:"currency" toml:"currency" yaml:"currency"`
	RPCURLs        []string `json:"rpcUrls" toml:"rpc_urls" yaml:"rpc_urls"`
	ExplorerURL    string   `json:"explorerUrl" toml:"explorer_url" yaml:"explorer_url"`
	ExplorerAPIURL string   `json:"explorerApiUrl,omitempty" toml:"explorer_api_url" yaml:"explorer_api_url"`
	APIKey         string   `json:"-" toml:"api_key" yaml:"api_key"`
}

// IsEVM reports whether the chain runs the EVM
func (d Descriptor) IsEVM() bool {
	return d.Kind == KindEVM || d.Kind == ""
}

// clone returns a deep copy so callers cannot mutate registry state
func (d Descriptor) clone() Descriptor {
	d.RPCURLs = slices.Clone(d.RPCURLs)
	return d
}

// Validate checks that a descriptor is usable
func (d Descriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("chain id is required")
	}
	if d.Kind != KindEVM && d.Kind != KindSolana && d.Kind != "" {
		return fmt.Errorf("chain %s: unknown kind %q", d.ID, d.Kind)
	}
	if len(d.RPCURLs) == 0 {
		return fmt.Errorf("chain %s: at least one RPC URL is required", d.ID)
	}
	return nil
}

// Registry holds chain descriptors keyed by id. It is populated at startup
// and only read afterwards, so it needs no locking.
type Registry struct {
	chains map[string]Descriptor
	order  []string
}

// NewRegistry creates a registry holding the given descriptors
func NewRegistry(descriptors ...Descriptor) *Registry {
	r := &Registry{
		chains: make(map[string]Descriptor),
	}
	for _, d := range descriptors {
		r.Register(d)
	}
	return r
}

// Register adds or replaces a descriptor
func (r *Registry) Register(d Descriptor) {
	d.ID = strings.ToLower(strings.TrimSpace(d.ID))
	if d.Kind == "" {
		d.Kind = KindEVM
	}
	if _, exists := r.chains[d.ID]; !exists {
		r.order = append(r.order, d.ID)
	}
	r.chains[d.ID] = d.clone()
}

// Get retrieves a descriptor by id (case-insensitive)
func (r *Registry) Get(id string) (Descriptor, bool) {
	d, ok := r.chains[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Descriptor{}, false
	}
	return d.clone(), true
}

// List returns all descriptors in registration order
func (r *Registry) List() []Descriptor {
	return lo.Map(r.order, func(id string, _ int) Descriptor {
		return r.chains[id].clone()
	})
}

// ListKind returns the descriptors of one kind in registration order
func (r *Registry) ListKind(kind Kind) []Descriptor {
	return lo.Filter(r.List(), func(d Descriptor, _ int) bool {
		return d.Kind == kind
	})
}

// IDs returns the registered chain ids in registration order
func (r *Registry) IDs() []string {
	return slices.Clone(r.order)
}

// ExplorerHosts returns the distinct hosts of every registered explorer,
// used to build the relay allow-list.
func (r *Registry) ExplorerHosts() []string {
	var hosts []string
	for _, d := range r.List() {
		for _, raw := range []string{d.ExplorerURL, d.ExplorerAPIURL} {
			if h := hostOf(raw); h != "" {
				hosts = append(hosts, h)
			}
		}
	}
	return lo.Uniq(hosts)
}

// WithAPIKeys sets explorer API keys on every registered chain. keyFor
// returns the key for a chain id or "" to leave the descriptor untouched.
func (r *Registry) WithAPIKeys(keyFor func(id string) string) {
	for id, d := range r.chains {
		if key := keyFor(id); key != "" {
			d.APIKey = key
			r.chains[id] = d
		}
	}
}
