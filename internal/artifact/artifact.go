// Package artifact defines the contract artifact bundle returned by the
// retrieval pipeline.
package artifact

import (
	"encoding/json"
	"strings"
)

// Path prefixes used to group proxy and implementation files
const (
	ProxyPrefix          = "proxy/"
	ImplementationPrefix = "implementation/"
)

// File is one source or generated file. Path is unique within a bundle.
type File struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Content string `json:"content"`
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

// Bytecode holds hex strings that are either empty or 0x-prefixed
type Bytecode struct {
	Creation string `json:"creation"`
	Deployed string `json:"deployed"`
}

// Kind tags the interface description carried by an Artifact
type Kind string

const (
	KindEVMABI      Kind = "evm-abi"
	KindSolanaIDL   Kind = "solana-idl"
	KindUnavailable Kind = "unavailable"
)

// Artifact is the ABI of an EVM contract, the IDL of a Solana program, or
// nothing at all. Consumers switch on Kind.
type Artifact struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EVMABI wraps a contract ABI
func EVMABI(data json.RawMessage) Artifact {
	if !usable(data) {
		return Unavailable()
	}
	return Artifact{Kind: KindEVMABI, Data: data}
}

// SolanaIDL wraps an Anchor IDL
func SolanaIDL(data json.RawMessage) Artifact {
	if !usable(data) {
		return Unavailable()
	}
	return Artifact{Kind: KindSolanaIDL, Data: data}
}

// Unavailable is the artifact of a contract without a known interface
func Unavailable() Artifact {
	return Artifact{Kind: KindUnavailable}
}

// Available reports whether the artifact carries data
func (a Artifact) Available() bool {
	return a.Kind != KindUnavailable && a.Kind != "" && len(a.Data) > 0
}

// FileName is the name of the generated file for this artifact
func (a Artifact) FileName() string {
	switch a.Kind {
	case KindEVMABI:
		return "abi.json"
	case KindSolanaIDL:
		return "idl.json"
	default:
		return ""
	}
}

func usable(data json.RawMessage) bool {
	s := strings.TrimSpace(string(data))
	return s != "" && s != "null" && s != `""` && json.Valid(data)
}

// ProxyResolution is the outcome of proxy detection. Implementation is set
// if and only if Convention is not ConventionNone.
type ProxyResolution struct {
	Implementation *string    `json:"implementationAddress"`
	Convention     Convention `json:"conventionMatched"`
}

// Convention names the proxy standard that matched
type Convention string

const (
	ConventionEIP1967     Convention = "EIP1967"
	ConventionUUPS        Convention = "UUPS"
	ConventionTransparent Convention = "Transparent"
	ConventionBeacon      Convention = "Beacon"
	ConventionGenericView Convention = "GenericView"
	ConventionNone        Convention = "None"
)

// NoProxy is the resolution of a contract that is not a recognised proxy
func NoProxy() ProxyResolution {
	return ProxyResolution{Convention: ConventionNone}
}

// IsProxy reports whether an implementation was found
func (r ProxyResolution) IsProxy() bool {
	return r.Convention != ConventionNone && r.Implementation != nil
}

// ImplementationInfo describes the implementation behind a proxy
type ImplementationInfo struct {
	Address    string     `json:"address"`
	Convention Convention `json:"convention"`
	Metadata   Metadata   `json:"metadata"`
	Artifact   Artifact   `json:"artifact"`
	Bytecode   Bytecode   `json:"bytecode"`
}

// AccountInfo is the raw account view of a Solana address without an IDL
type AccountInfo struct {
	IsExecutable bool    `json:"isExecutable"`
	Owner        string  `json:"owner"`
	Lamports     uint64  `json:"lamports"`
	SOLBalance   float64 `json:"solBalance"`
	DataLength   int     `json:"dataLength"`
	DataPreview  string  `json:"dataPreview"`
}

// Bundle is the assembled result of one fetch
type Bundle struct {
	Chain          string              `json:"chain"`
	Address        string              `json:"address"`
	Files          []File              `json:"files"`
	Artifact       Artifact            `json:"artifact"`
	Metadata       Metadata            `json:"metadata"`
	Bytecode       Bytecode            `json:"bytecode"`
	Creator        string              `json:"creator"`
	CreationTx     string              `json:"creationTx"`
	Proxy          *ProxyResolution    `json:"proxy,omitempty"`
	Implementation *ImplementationInfo `json:"implementation"`
	Account        *AccountInfo        `json:"account,omitempty"`
}

// HasPrefix reports whether any file path starts with prefix
func (b *Bundle) HasPrefix(prefix string) bool {
	for _, f := range b.Files {
		if strings.HasPrefix(f.Path, prefix) {
			return true
		}
	}
	return false
}

// Verified reports whether the bundle carries any files
func (b *Bundle) Verified() bool {
	return len(b.Files) > 0
}
