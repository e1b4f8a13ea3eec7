package chains

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	eth, ok := r.Get("ethereum")
	require.True(t, ok)
	assert.Equal(t, int64(1), eth.ChainID)
	assert.True(t, eth.IsEVM())
	assert.NotEmpty(t, eth.RPCURLs)
	assert.NoError(t, eth.Validate())

	sol, ok := r.Get("SOLANA")
	require.True(t, ok)
	assert.Equal(t, KindSolana, sol.Kind)
	assert.Equal(t, 9, sol.Currency.Decimals)

	_, ok = r.Get("dogechain")
	assert.False(t, ok)

	assert.Equal(t, "ethereum", r.IDs()[0])
	assert.Len(t, r.ListKind(KindSolana), 1)
	assert.Len(t, r.ListKind(KindEVM), len(r.List())-1)
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	r := DefaultRegistry()

	eth, _ := r.Get("ethereum")
	eth.RPCURLs[0] = "http://mutated"
	eth.Name = "changed"

	again, _ := r.Get("ethereum")
	assert.NotEqual(t, "http://mutated", again.RPCURLs[0])
	assert.Equal(t, "Ethereum", again.Name)
}

func TestRegistry_RegisterReplacesInPlace(t *testing.T) {
	r := NewRegistry(
		Descriptor{ID: "a", RPCURLs: []string{"http://a"}},
		Descriptor{ID: "b", RPCURLs: []string{"http://b"}},
	)
	r.Register(Descriptor{ID: "A", Name: "Alpha", RPCURLs: []string{"http://a2"}})

	assert.Equal(t, []string{"a", "b"}, r.IDs())
	a, _ := r.Get("a")
	assert.Equal(t, "Alpha", a.Name)
	assert.Equal(t, KindEVM, a.Kind)
}

func TestRegistry_ExplorerHosts(t *testing.T) {
	r := NewRegistry(
		Descriptor{ID: "a", RPCURLs: []string{"x"}, ExplorerURL: "https://etherscan.io", ExplorerAPIURL: "https://api.etherscan.io/v2/api"},
		Descriptor{ID: "b", RPCURLs: []string{"x"}, ExplorerURL: "https://etherscan.io/"},
	)
	assert.Equal(t, []string{"etherscan.io", "api.etherscan.io"}, r.ExplorerHosts())
}

func TestRegistry_WithAPIKeys(t *testing.T) {
	r := DefaultRegistry()
	r.WithAPIKeys(func(id string) string {
		if id == "bsc" {
			return "bsc-key"
		}
		return ""
	})

	bsc, _ := r.Get("bsc")
	assert.Equal(t, "bsc-key", bsc.APIKey)
	eth, _ := r.Get("ethereum")
	assert.Empty(t, eth.APIKey)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr bool
	}{
		{
			name: "toml",
			file: "chains.toml",
			content: `
[[chains]]
id = "sepolia"
chain_id = 11155111
name = "Sepolia"
kind = "evm"
rpc_urls = ["https://rpc.sepolia.org"]
explorer_url = "https://sepolia.etherscan.io"

[chains.currency]
name = "Sepolia Ether"
symbol = "ETH"
decimals = 18
`,
		},
		{
			name: "yaml",
			file: "chains.yaml",
			content: `
chains:
  - id: sepolia
    chain_id: 11155111
    name: Sepolia
    kind: evm
    rpc_urls: ["https://rpc.sepolia.org"]
    explorer_url: https://sepolia.etherscan.io
    currency:
      name: Sepolia Ether
      symbol: ETH
      decimals: 18
`,
		},
		{
			name:    "missing rpc urls",
			file:    "bad.yml",
			content: "chains:\n  - id: broken\n",
			wantErr: true,
		},
		{
			name:    "unknown extension",
			file:    "chains.json",
			content: "{}",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			descriptors, err := LoadFile(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, descriptors, 1)
			assert.Equal(t, "sepolia", descriptors[0].ID)
			assert.Equal(t, int64(11155111), descriptors[0].ChainID)
			assert.Equal(t, "ETH", descriptors[0].Currency.Symbol)
			assert.Equal(t, []string{"https://rpc.sepolia.org"}, descriptors[0].RPCURLs)
		})
	}
}

func TestRegistry_Apply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chains.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[chains]]
id = "ethereum"
chain_id = 1
name = "Ethereum (private)"
rpc_urls = ["http://localhost:8545"]
`), 0o644))

	r := DefaultRegistry()
	before := len(r.List())
	require.NoError(t, r.Apply(path))

	eth, _ := r.Get("ethereum")
	assert.Equal(t, []string{"http://localhost:8545"}, eth.RPCURLs)
	assert.Len(t, r.List(), before)
}
