//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// Addresses served by the fake upstreams. They are all digits so the
// checksummed form equals the lowercase form.
const (
	vaultAddr      = "0x1111111111111111111111111111111111111111"
	proxyAddr      = "0x2222222222222222222222222222222222222222"
	implAddr       = "0x3333333333333333333333333333333333333333"
	unverifiedAddr = "0x4444444444444444444444444444444444444444"
	rejectedAddr   = "0x5555555555555555555555555555555555555555"
	creatorAddr    = "0x9999999999999999999999999999999999999999"

	eip1967Slot = "0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc"
	deployedHex = "0x6080604052348015600f57600080fd5b50"
	zeroWord    = "0x0000000000000000000000000000000000000000000000000000000000000000"
)

// verifiedSource is one getsourcecode record of the fake explorer
type verifiedSource struct {
	Name    string
	Sources map[string]string
}

var explorerSources = map[string]verifiedSource{
	vaultAddr: {
		Name: "Vault",
		Sources: map[string]string{
			"src/Vault.sol":             "pragma solidity ^0.8.20;\n\ncontract Vault {\n    function withdraw() external {}\n}\n",
			"src/interfaces/IVault.sol": "pragma solidity ^0.8.20;\n\ninterface IVault {}\n",
		},
	},
	proxyAddr: {
		Name:    "ERC1967Proxy",
		Sources: map[string]string{"src/ERC1967Proxy.sol": "contract ERC1967Proxy {}\n"},
	},
	implAddr: {
		Name:    "TokenV2",
		Sources: map[string]string{"src/TokenV2.sol": "contract TokenV2 {}\n"},
	},
}

// Upstreams are the fake explorer, node and chat completion endpoints the
// server under test talks to.
type Upstreams struct {
	Explorer *httptest.Server
	Node     *httptest.Server
	LLM      *httptest.Server

	ExplorerCalls atomic.Int64
	LLMCalls      atomic.Int64
}

func startUpstreams() *Upstreams {
	u := &Upstreams{}
	u.Explorer = httptest.NewServer(http.HandlerFunc(u.serveExplorer))
	u.Node = httptest.NewServer(http.HandlerFunc(serveNode))
	u.LLM = httptest.NewServer(http.HandlerFunc(u.serveLLM))
	return u
}

// Close stops every fake server
func (u *Upstreams) Close() {
	u.Explorer.Close()
	u.Node.Close()
	u.LLM.Close()
}

// writeChainsFile points ethereum at the fake node and explorer
func (u *Upstreams) writeChainsFile(dir string) (string, error) {
	content := fmt.Sprintf(`[[chains]]
id = "ethereum"
chain_id = 1
name = "Ethereum"
kind = "evm"
rpc_urls = [%q]
explorer_url = "https://etherscan.io"
explorer_api_url = %q

[chains.currency]
name = "Ether"
symbol = "ETH"
decimals = 18
`, u.Node.URL, u.Explorer.URL+"/api")

	path := filepath.Join(dir, "chains.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func (u *Upstreams) serveExplorer(w http.ResponseWriter, r *http.Request) {
	u.ExplorerCalls.Add(1)
	q := r.URL.Query()

	switch q.Get("action") {
	case "eth_getCode":
		address := strings.ToLower(q.Get("address"))
		code := "0x"
		if _, ok := explorerSources[address]; ok || address == unverifiedAddr {
			code = deployedHex
		}
		writeJSONBody(w, map[string]any{"jsonrpc": "2.0", "id": 1, "result": code})

	case "getcontractcreation":
		address := strings.ToLower(q.Get("contractaddresses"))
		writeJSONBody(w, map[string]any{"status": "1", "message": "OK", "result": []map[string]string{{
			"contractAddress":  address,
			"contractCreator":  creatorAddr,
			"txHash":           "0x" + strings.Repeat("ab", 32),
			"creationBytecode": deployedHex,
		}}})

	case "getsourcecode":
		address := strings.ToLower(q.Get("address"))
		if address == rejectedAddr {
			writeJSONBody(w, map[string]any{"status": "0", "message": "NOTOK", "result": "Invalid API Key"})
			return
		}
		src, ok := explorerSources[address]
		if !ok {
			writeJSONBody(w, map[string]any{"status": "1", "message": "OK", "result": []map[string]string{{
				"SourceCode": "", "ABI": "Contract source code not verified", "ContractName": "",
			}}})
			return
		}
		writeJSONBody(w, map[string]any{"status": "1", "message": "OK", "result": []map[string]string{{
			"SourceCode":       standardInput(src.Sources),
			"ABI":              `[{"type":"function","name":"withdraw","inputs":[],"outputs":[],"stateMutability":"nonpayable"}]`,
			"ContractName":     src.Name,
			"CompilerVersion":  "v0.8.20+commit.a1b79de6",
			"OptimizationUsed": "1",
			"Runs":             "200",
			"EVMVersion":       "paris",
			"LicenseType":      "MIT",
		}}})

	default:
		writeJSONBody(w, map[string]any{"status": "0", "message": "NOTOK", "result": "Error! Unknown action"})
	}
}

// standardInput wraps sources in the double-brace form explorers return
func standardInput(sources map[string]string) string {
	entries := make(map[string]map[string]string, len(sources))
	for path, content := range sources {
		entries[path] = map[string]string{"content": content}
	}
	raw, _ := json.Marshal(map[string]any{"language": "Solidity", "sources": entries})
	return "{" + string(raw) + "}"
}

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// serveNode answers the JSON-RPC methods used by proxy resolution and
// contract-info. The proxy address stores its implementation in the
// EIP-1967 slot; every other slot is empty.
func serveNode(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	param := func(i int) string {
		if i >= len(req.Params) {
			return ""
		}
		var s string
		_ = json.Unmarshal(req.Params[i], &s)
		return strings.ToLower(s)
	}

	var result any
	switch req.Method {
	case "eth_getStorageAt":
		result = zeroWord
		if param(0) == proxyAddr && param(1) == eip1967Slot {
			result = "0x000000000000000000000000" + strings.TrimPrefix(implAddr, "0x")
		}
	case "eth_call":
		result = "0x"
	case "eth_getCode":
		result = "0x"
		if _, ok := explorerSources[param(0)]; ok {
			result = deployedHex
		}
	case "eth_getBalance":
		result = "0x0"
		if param(0) == vaultAddr {
			// 1.5 ether
			result = "0x14d1120d7b160000"
		}
	default:
		writeJSONBody(w, map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]any{"code": -32601, "message": "method not found"},
		})
		return
	}
	writeJSONBody(w, map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

func (u *Upstreams) serveLLM(w http.ResponseWriter, r *http.Request) {
	u.LLMCalls.Add(1)
	if r.URL.Path != "/v1/chat/completions" || r.Header.Get("Authorization") != "Bearer sk-e2e" {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSONBody(w, map[string]any{"error": map[string]string{"message": "bad request", "type": "invalid_request_error"}})
		return
	}
	writeJSONBody(w, map[string]any{
		"choices": []map[string]any{{
			"message":       map[string]string{"role": "assistant", "content": "# Audit\n\n## Low: missing events on withdraw"},
			"finish_reason": "stop",
		}},
	})
}

func writeJSONBody(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
