//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSource_VerifiedContract fetches a plain verified contract end to end
func TestSource_VerifiedContract(t *testing.T) {
	c := newClient(testCtx.TestServer, "")

	bundle, err := c.GetSource(context.Background(), "ethereum", vaultAddr)
	require.NoError(t, err)

	assert.Equal(t, "ethereum", bundle.Chain)
	assert.Equal(t, vaultAddr, bundle.Address)
	assert.Equal(t, "Vault", bundle.Metadata.Name)
	assert.Equal(t, "v0.8.20+commit.a1b79de6", bundle.Metadata.Compiler)
	assert.True(t, bundle.Metadata.Optimization)
	assert.Equal(t, 200, bundle.Metadata.Runs)
	assert.Equal(t, creatorAddr, bundle.Creator)
	assert.Nil(t, bundle.Implementation)
	assert.Equal(t, "evm-abi", bundle.Artifact.Kind)

	vault, ok := bundle.File("src/Vault.sol")
	require.True(t, ok, "src/Vault.sol should be in the bundle")
	assert.Contains(t, vault.Content, "contract Vault")

	for _, path := range []string{"README.md", "config.json", "abi.json", "src/interfaces/IVault.sol"} {
		_, ok := bundle.File(path)
		assert.True(t, ok, "%s should be in the bundle", path)
	}
}

// TestSource_ProxyPair fetches a proxy whose implementation sits in the
// EIP-1967 slot and checks that both sides are laid out side by side
func TestSource_ProxyPair(t *testing.T) {
	c := newClient(testCtx.TestServer, "")

	bundle, err := c.GetSource(context.Background(), "ethereum", proxyAddr)
	require.NoError(t, err)

	require.NotNil(t, bundle.Implementation)
	assert.Equal(t, implAddr, bundle.Implementation.Address)
	assert.Equal(t, "EIP1967", bundle.Implementation.Convention)
	assert.Equal(t, "TokenV2", bundle.Implementation.Metadata.Name)

	for _, path := range []string{
		"README.md",
		"config.json",
		"proxy/src/ERC1967Proxy.sol",
		"proxy/abi.json",
		"implementation/src/TokenV2.sol",
		"implementation/abi.json",
	} {
		_, ok := bundle.File(path)
		assert.True(t, ok, "%s should be in the bundle", path)
	}

	readme, _ := bundle.File("README.md")
	assert.Contains(t, readme.Content, implAddr)
}

// TestSource_SnapshotHit checks that a repeated fetch is answered from the
// stored snapshot without calling the explorer again
func TestSource_SnapshotHit(t *testing.T) {
	c := newClient(testCtx.TestServer, "")
	ctx := context.Background()

	// stores the snapshot unless an earlier test already did
	first, err := c.GetSource(ctx, "", vaultAddr)
	require.NoError(t, err)

	before := testCtx.Upstreams.ExplorerCalls.Load()
	second, err := c.GetSource(ctx, "ethereum", vaultAddr)
	require.NoError(t, err)

	assert.True(t, second.Cached, "second fetch should come from the snapshot")
	assert.Equal(t, before, testCtx.Upstreams.ExplorerCalls.Load(), "snapshot hit should not call the explorer")
	assert.Equal(t, len(first.Files), len(second.Files))
}

// TestSource_Errors tests the error codes of the source endpoint
func TestSource_Errors(t *testing.T) {
	c := newClient(testCtx.TestServer, "")
	ctx := context.Background()

	t.Run("unverified contract returns 404", func(t *testing.T) {
		_, err := c.GetSource(ctx, "ethereum", unverifiedAddr)
		assertHTTPError(t, err, http.StatusNotFound, "NOT_VERIFIED")
	})

	t.Run("explorer rejection returns 502", func(t *testing.T) {
		_, err := c.GetSource(ctx, "ethereum", rejectedAddr)
		assertHTTPError(t, err, http.StatusBadGateway, "UPSTREAM_ERROR")
	})

	t.Run("malformed address returns 400", func(t *testing.T) {
		_, err := c.GetSource(ctx, "ethereum", "0x1234")
		assertHTTPError(t, err, http.StatusBadRequest, "INVALID_ADDRESS")
	})

	t.Run("unknown chain returns 400", func(t *testing.T) {
		_, err := c.GetSource(ctx, "dogechain", vaultAddr)
		assertHTTPError(t, err, http.StatusBadRequest, "UNKNOWN_CHAIN")
	})

	t.Run("missing address returns 400", func(t *testing.T) {
		_, err := c.GetSource(ctx, "ethereum", "")
		assertHTTPError(t, err, http.StatusBadRequest, "MISSING_PARAMETER")
	})
}

// TestSource_Tree tests the tree action over raw HTTP
func TestSource_Tree(t *testing.T) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet,
		testCtx.TestServer.URL+"/api/source?chain=ethereum&action=tree&address="+implAddr, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, string(body["tree"]), "TokenV2.sol")
}

// TestContractInfo reads code and balance through the fake node
func TestContractInfo(t *testing.T) {
	c := newClient(testCtx.TestServer, "")

	info, err := c.ContractInfo(context.Background(), "ethereum", vaultAddr)
	require.NoError(t, err)

	assert.Equal(t, vaultAddr, info.Address)
	require.Contains(t, info.Chains, "ethereum")

	eth := info.Chains["ethereum"]
	assert.True(t, eth.Exists)
	assert.True(t, eth.IsContract)
	assert.Positive(t, eth.CodeSize)
	assert.NotEmpty(t, eth.Fingerprint)
	assert.Equal(t, "1500000000000000000", eth.Balance)
	assert.Equal(t, "1.5", eth.BalanceFormatted)
	assert.Equal(t, "ETH", eth.Symbol)
	assert.Empty(t, eth.Error)

	empty, err := c.ContractInfo(context.Background(), "ethereum", creatorAddr)
	require.NoError(t, err)
	assert.False(t, empty.Chains["ethereum"].Exists)
	assert.False(t, empty.Chains["ethereum"].IsContract)
}

// TestChains lists the registry, including the overridden ethereum entry
func TestChains(t *testing.T) {
	c := newClient(testCtx.TestServer, "")

	list, err := c.Chains(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 8)

	ids := make([]string, len(list))
	for i, ch := range list {
		ids[i] = ch.ID
	}
	assert.Contains(t, ids, "ethereum")
	assert.Contains(t, ids, "solana")

	for _, ch := range list {
		if ch.ID == "ethereum" {
			assert.Equal(t, int64(1), ch.ChainID)
			assert.Equal(t, "evm", ch.Kind)
			assert.Equal(t, "ETH", ch.Currency.Symbol)
		}
	}
}
