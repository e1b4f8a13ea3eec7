package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pendergraft/contractlens/internal/chains"
	"github.com/pendergraft/contractlens/internal/config"
	contractsDomain "github.com/pendergraft/contractlens/internal/contracts/domain"
	contractsTransport "github.com/pendergraft/contractlens/internal/contracts/transport"
	"github.com/pendergraft/contractlens/internal/server"
)

func newFetchCmd() *cobra.Command {
	var chain, address, action string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Run the retrieval pipeline once and print the result as JSON",
		Long: `Fetch verified source (EVM) or the IDL / account (Solana) for one address,
without starting the server. Output is indented when stdout is a terminal.

EXAMPLES:
  contractlens-server fetch --address 0xdAC17F958D2ee523a2206206994597C13D831ec7
  contractlens-server fetch --chain solana --address JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4 --action idl
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			pipeline, err := server.NewPipeline(cfg, nil, quietLogger())
			if err != nil {
				return err
			}
			defer pipeline.Close()

			result, err := pipeline.Contracts.FetchSource(ctx, contractsDomain.SourceRequest{
				Chain:   chain,
				Address: address,
				Action:  contractsDomain.Action(action),
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), fetchOutput(result, action, address), isTerminal(os.Stdout))
		},
	}

	cmd.Flags().StringVar(&chain, "chain", "", "chain id (default: inferred from the address)")
	cmd.Flags().StringVar(&address, "address", "", "contract or program address (required)")
	cmd.Flags().StringVar(&action, "action", "source", "source, abi, idl or tree")
	_ = cmd.MarkFlagRequired("address")

	return cmd
}

// fetchOutput renders the result in the same shape /api/source uses for
// the action.
func fetchOutput(r *contractsDomain.SourceResult, action, address string) any {
	act, _ := contractsDomain.ParseAction(action)
	return contractsTransport.SourceBody(r, act, address)
}

func newChainsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chains",
		Short: "List the chain registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			registry := chains.DefaultRegistry()
			if cfg.Chains.File != "" {
				if err := registry.Apply(cfg.Chains.File); err != nil {
					return fmt.Errorf("loading chains file: %w", err)
				}
			}
			printChains(cmd.OutOrStdout(), registry.List())
			return nil
		},
	}
}

func printChains(out io.Writer, list []chains.Descriptor) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCHAIN ID\tKIND\tNAME\tSYMBOL\tRPC ENDPOINTS")
	for _, d := range list {
		kind := d.Kind
		if kind == "" {
			kind = chains.KindEVM
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%d\n", d.ID, d.ChainID, kind, d.Name, d.Currency.Symbol, len(d.RPCURLs))
	}
	w.Flush()
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func writeJSON(w io.Writer, v any, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
