// Package domain contains the contract retrieval pipeline: chain lookup,
// source fetching, proxy resolution, assembly and snapshots.
package domain

import (
	"encoding/json"

	"github.com/pendergraft/contractlens/internal/artifact"
	"github.com/pendergraft/contractlens/internal/chains"
	"github.com/pendergraft/contractlens/internal/filetree"
)

// Action selects what /api/source returns
type Action string

const (
	ActionSource Action = "source"
	ActionABI    Action = "abi"
	ActionIDL    Action = "idl"
	ActionTree   Action = "tree"
)

// ParseAction maps the query value to an Action. Empty means ActionSource.
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case "", ActionSource:
		return ActionSource, true
	case ActionABI, ActionIDL, ActionTree:
		return Action(s), true
	}
	return "", false
}

// SourceRequest is a request for a contract's sources.
type SourceRequest struct {
	Chain   string
	Address string
	Action  Action
}

// SourceResult carries the bundle plus whatever the action asked for.
// For ActionIDL only IDL and IDLSource are set.
type SourceResult struct {
	Chain     chains.Descriptor
	Bundle    *artifact.Bundle
	Tree      []*filetree.Node
	IDL       json.RawMessage
	IDLSource string
	// Cached is true when the bundle came from a stored snapshot
	Cached bool
}

// ChainInfo is the on-chain view of an address on one chain.
type ChainInfo struct {
	Chain            string                `json:"chain"`
	Kind             chains.Kind           `json:"kind"`
	Exists           bool                  `json:"exists"`
	IsContract       bool                  `json:"isContract"`
	CodeSize         int                   `json:"codeSize"`
	Fingerprint      string                `json:"fingerprint,omitempty"`
	Balance          string                `json:"balance"`
	BalanceFormatted string                `json:"balanceFormatted"`
	Symbol           string                `json:"symbol"`
	Account          *artifact.AccountInfo `json:"account,omitempty"`
	Error            string                `json:"error,omitempty"`
}

// CrossChainInfo is the result of checking one address on every chain
// of its kind. Per-chain failures are reported in that chain's Error.
type CrossChainInfo struct {
	Address string               `json:"address"`
	Chains  map[string]ChainInfo `json:"chains"`
}
