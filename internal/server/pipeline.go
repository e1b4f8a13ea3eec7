package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/pendergraft/contractlens/internal/chains"
	"github.com/pendergraft/contractlens/internal/config"
	contractsDomain "github.com/pendergraft/contractlens/internal/contracts/domain"
	"github.com/pendergraft/contractlens/internal/explorer"
	"github.com/pendergraft/contractlens/internal/proxy"
	"github.com/pendergraft/contractlens/internal/rpcclient"
	"github.com/pendergraft/contractlens/internal/solana"
)

// Pipeline is the contract retrieval stack shared by the HTTP server and
// the CLI.
type Pipeline struct {
	Registry  *chains.Registry
	RPC       *rpcclient.Client
	Solana    *solana.Fetcher
	Contracts contractsDomain.Service
}

// NewPipeline builds the registry, clients and fallback chains from cfg.
// snapshots may be nil to disable persisted snapshots.
func NewPipeline(cfg *config.Config, snapshots contractsDomain.SnapshotStore, logger *slog.Logger, opts ...rpcclient.Option) (*Pipeline, error) {
	registry := chains.DefaultRegistry()
	if cfg.Chains.File != "" {
		if err := registry.Apply(cfg.Chains.File); err != nil {
			return nil, fmt.Errorf("loading chains file: %w", err)
		}
	}
	registry.WithAPIKeys(cfg.Explorer.ExplorerKey)

	rpc := rpcclient.New(registry, cfg.RPC, logger.With("component", "rpc"), opts...)

	sources, err := solanaSources(cfg.Solana)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	accounts := solana.NewAccountReader(rpc, solanaEndpoints(cfg.Solana, registry), cfg.Solana.PreviewBytes, logger.With("component", "solana"))
	programs := solana.NewFetcher(sources, accounts, logger.With("component", "solana"))

	svc := contractsDomain.NewService(contractsDomain.Deps{
		Registry:    registry,
		Explorer:    explorer.NewClient(cfg.Explorer, logger.With("component", "explorer")),
		Proxies:     proxy.NewResolver(proxy.NewRPCStateReader(rpc), logger.With("component", "proxy")),
		Programs:    programs,
		Accounts:    accounts,
		RPC:         rpc,
		Snapshots:   snapshots,
		SnapshotTTL: cfg.Snapshots.TTL,
		FanOutLimit: cfg.Server.FanOutLimit,
	}, logger)

	return &Pipeline{
		Registry:  registry,
		RPC:       rpc,
		Solana:    programs,
		Contracts: contractsDomain.LoggingMiddleware(logger)(svc),
	}, nil
}

// Close releases RPC connections.
func (p *Pipeline) Close() {
	p.RPC.Close()
}

// solanaSources returns the IDL fallback chain: indexer, bundled IDLs,
// public mirror, then page scraping when enabled.
func solanaSources(cfg config.SolanaConfig) ([]solana.Source, error) {
	hc := &http.Client{Timeout: cfg.RequestTimeout}

	known, err := solana.NewKnownSource()
	if err != nil {
		return nil, fmt.Errorf("loading bundled IDLs: %w", err)
	}

	var sources []solana.Source
	if cfg.IndexerURL != "" {
		sources = append(sources, solana.NewIndexerSource(cfg.IndexerURL, cfg.IndexerToken, hc))
	}
	sources = append(sources, known)
	if cfg.MirrorURL != "" {
		sources = append(sources, solana.NewMirrorSource(cfg.MirrorURL, hc))
	}
	if cfg.ScrapeEnabled && cfg.WebURL != "" {
		sources = append(sources, solana.NewScrapeSource(cfg.WebURL, hc))
	}
	return sources, nil
}

func solanaEndpoints(cfg config.SolanaConfig, registry *chains.Registry) []string {
	if len(cfg.RPCEndpoints) > 0 {
		return slices.Clone(cfg.RPCEndpoints)
	}
	if d, ok := registry.Get("solana"); ok {
		return d.RPCURLs
	}
	return nil
}

// RelayHosts returns the built-in relay allow-list: every explorer host and
// the Solana upstreams. relay.New adds RELAY_ALLOWED_HOSTS on top.
func RelayHosts(cfg *config.Config, registry *chains.Registry) []string {
	hosts := registry.ExplorerHosts()
	for _, u := range []string{cfg.Solana.IndexerURL, cfg.Solana.MirrorURL, cfg.Solana.WebURL} {
		if u != "" {
			hosts = append(hosts, u)
		}
	}
	return hosts
}
