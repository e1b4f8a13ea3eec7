// Package transport provides HTTP request/response types for the contracts domain.
package transport

import (
	"encoding/json"

	"github.com/pendergraft/contractlens/internal/artifact"
	"github.com/pendergraft/contractlens/internal/chains"
	"github.com/pendergraft/contractlens/internal/filetree"
)

// ErrorResponse is the body of every 4xx/5xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type idlResponse struct {
	Chain   string          `json:"chain"`
	Address string          `json:"address"`
	IDL     json.RawMessage `json:"idl"`
	Source  string          `json:"source"`
}

type abiResponse struct {
	Chain                  string             `json:"chain"`
	Address                string             `json:"address"`
	Artifact               artifact.Artifact  `json:"artifact"`
	ImplementationAddress  string             `json:"implementationAddress,omitempty"`
	ImplementationArtifact *artifact.Artifact `json:"implementationArtifact,omitempty"`
}

func toABIResponse(b *artifact.Bundle) abiResponse {
	resp := abiResponse{Chain: b.Chain, Address: b.Address, Artifact: b.Artifact}
	if b.Implementation != nil {
		resp.ImplementationAddress = b.Implementation.Address
		resp.ImplementationArtifact = &b.Implementation.Artifact
	}
	return resp
}

type treeResponse struct {
	*artifact.Bundle
	Tree []*filetree.Node `json:"tree"`
}

type chainResponse struct {
	ID          string          `json:"id"`
	ChainID     int64           `json:"chainId,omitempty"`
	Name        string          `json:"name"`
	Kind        chains.Kind     `json:"kind"`
	Currency    chains.Currency `json:"currency"`
	ExplorerURL string          `json:"explorerUrl"`
	HasAPIKey   bool            `json:"hasApiKey"`
}

func toChainResponse(d chains.Descriptor) chainResponse {
	return chainResponse{
		ID:          d.ID,
		ChainID:     d.ChainID,
		Name:        d.Name,
		Kind:        d.Kind,
		Currency:    d.Currency,
		ExplorerURL: d.ExplorerURL,
		HasAPIKey:   d.APIKey != "",
	}
}
