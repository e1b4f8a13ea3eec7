package chains

import "net/url"

// etherscanV2 is the unified multichain explorer API; the chain is selected
// with the chainid query parameter.
const etherscanV2 = "https://api.etherscan.io/v2/api"

// DefaultRegistry returns the built-in chain set
func DefaultRegistry() *Registry {
	return NewRegistry(
		Descriptor{
			ID:             "ethereum",
			ChainID:        1,
			Name:           "Ethereum",
			Kind:           KindEVM,
			Currency:       Currency{Name: "Ether", Symbol: "ETH", Decimals: 18},
			RPCURLs:        []string{"https://eth.llamarpc.com", "https://rpc.ankr.com/eth", "https://ethereum-rpc.publicnode.com"},
			ExplorerURL:    "https://etherscan.io",
			ExplorerAPIURL: etherscanV2,
		},
		Descriptor{
			ID:             "bsc",
			ChainID:        56,
			Name:           "BNB Smart Chain",
			Kind:           KindEVM,
			Currency:       Currency{Name: "BNB", Symbol: "BNB", Decimals: 18},
			RPCURLs:        []string{"https://bsc-dataseed.bnbchain.org", "https://bsc-rpc.publicnode.com"},
			ExplorerURL:    "https://bscscan.com",
			ExplorerAPIURL: etherscanV2,
		},
		Descriptor{
			ID:             "polygon",
			ChainID:        137,
			Name:           "Polygon",
			Kind:           KindEVM,
			Currency:       Currency{Name: "POL", Symbol: "POL", Decimals: 18},
			RPCURLs:        []string{"https://polygon-rpc.com", "https://polygon-bor-rpc.publicnode.com"},
			ExplorerURL:    "https://polygonscan.com",
			ExplorerAPIURL: etherscanV2,
		},
		Descriptor{
			ID:             "arbitrum",
			ChainID:        42161,
			Name:           "Arbitrum One",
			Kind:           KindEVM,
			Currency:       Currency{Name: "Ether", Symbol: "ETH", Decimals: 18},
			RPCURLs:        []string{"https://arb1.arbitrum.io/rpc", "https://arbitrum-one-rpc.publicnode.com"},
			ExplorerURL:    "https://arbiscan.io",
			ExplorerAPIURL: etherscanV2,
		},
		Descriptor{
			ID:             "optimism",
			ChainID:        10,
			Name:           "OP Mainnet",
			Kind:           KindEVM,
			Currency:       Currency{Name: "Ether", Symbol: "ETH", Decimals: 18},
			RPCURLs:        []string{"https://mainnet.optimism.io", "https://optimism-rpc.publicnode.com"},
			ExplorerURL:    "https://optimistic.etherscan.io",
			ExplorerAPIURL: etherscanV2,
		},
		Descriptor{
			ID:             "base",
			ChainID:        8453,
			Name:           "Base",
			Kind:           KindEVM,
			Currency:       Currency{Name: "Ether", Symbol: "ETH", Decimals: 18},
			RPCURLs:        []string{"https://mainnet.base.org", "https://base-rpc.publicnode.com"},
			ExplorerURL:    "https://basescan.org",
			ExplorerAPIURL: etherscanV2,
		},
		Descriptor{
			ID:             "avalanche",
			ChainID:        43114,
			Name:           "Avalanche C-Chain",
			Kind:           KindEVM,
			Currency:       Currency{Name: "Avalanche", Symbol: "AVAX", Decimals: 18},
			RPCURLs:        []string{"https://api.avax.network/ext/bc/C/rpc", "https://avalanche-c-chain-rpc.publicnode.com"},
			ExplorerURL:    "https://snowtrace.io",
			ExplorerAPIURL: etherscanV2,
		},
		Descriptor{
			ID:          "solana",
			Name:        "Solana",
			Kind:        KindSolana,
			Currency:    Currency{Name: "Solana", Symbol: "SOL", Decimals: 9},
			RPCURLs:     []string{"https://api.mainnet-beta.solana.com", "https://solana-rpc.publicnode.com"},
			ExplorerURL: "https://solscan.io",
		},
	)
}

func hostOf(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
