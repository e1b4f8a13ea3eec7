package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pendergraft/contractlens/internal/config"
	"github.com/pendergraft/contractlens/internal/storage"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys for the analysis endpoint",
	}

	cmd.AddCommand(newKeysCreateCmd())
	cmd.AddCommand(newKeysListCmd())
	cmd.AddCommand(newKeysRevokeCmd())

	return cmd
}

func newKeysCreateCmd() *cobra.Command {
	var name, outputFile string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long: `Create a new API key for POST /api/analyze (AUTH_TYPE=api-key).

The key is written to a file by default and cannot be retrieved later.

EXAMPLES:
  contractlens-server keys create --name ci
  contractlens-server keys create --name ci --output /secure/ci.key
  contractlens-server keys create --name ci --quiet | gh secret set CONTRACTLENS_API_KEY
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, store storage.Store) error {
				key, err := store.CreateAPIKey(ctx, name)
				if err != nil {
					return fmt.Errorf("creating API key: %w", err)
				}
				return emitKey(cmd.OutOrStdout(), name, key, outputFile, quiet)
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "name/label for the key (required)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "write key to file (default: ./contractlens-key-{name}.txt)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the key")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func emitKey(w io.Writer, name, key, outputFile string, quiet bool) error {
	if quiet {
		fmt.Fprintln(w, key)
		return nil
	}

	if outputFile == "" {
		outputFile = fmt.Sprintf("./contractlens-key-%s.txt", name)
	}
	if dir := filepath.Dir(outputFile); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
	}
	if err := os.WriteFile(outputFile, []byte(key+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing key to file: %w", err)
	}

	fmt.Fprintf(w, "API key created: %s\n", name)
	fmt.Fprintf(w, "  written to %s (mode 0600)\n", outputFile)
	fmt.Fprintln(w, "  send it as X-API-Key or Authorization: Bearer <key>")
	return nil
}

func newKeysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, store storage.Store) error {
				keys, err := store.ListAPIKeys(ctx)
				if err != nil {
					return fmt.Errorf("listing API keys: %w", err)
				}
				printKeys(cmd.OutOrStdout(), keys)
				return nil
			})
		},
	}
}

func printKeys(out io.Writer, keys []storage.APIKey) {
	if len(keys) == 0 {
		fmt.Fprintln(out, "No API keys found")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCREATED\tLAST USED")
	for _, k := range keys {
		lastUsed := k.LastUsedAt
		if lastUsed == "" {
			lastUsed = "never"
		}
		id := k.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", id, k.Name, k.CreatedAt, lastUsed)
	}
	w.Flush()
}

func newKeysRevokeCmd() *cobra.Command {
	var keyID string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke an API key",
		Long: `Revoke an API key. The id may be the 8-character prefix shown by 'keys list'.

EXAMPLES:
  contractlens-server keys revoke --id 3f0e21ab
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, store storage.Store) error {
				keys, err := store.ListAPIKeys(ctx)
				if err != nil {
					return fmt.Errorf("listing API keys: %w", err)
				}
				full, err := matchKeyID(keys, keyID)
				if err != nil {
					return err
				}
				if err := store.RevokeAPIKey(ctx, full); err != nil {
					return fmt.Errorf("revoking API key: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "API key revoked: %s\n", full)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&keyID, "id", "", "key ID or prefix (required)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

// matchKeyID resolves a full id or a unique prefix of at least 8 characters
func matchKeyID(keys []storage.APIKey, id string) (string, error) {
	var matches []string
	for _, k := range keys {
		if k.ID == id {
			return k.ID, nil
		}
		if len(id) >= 8 && strings.HasPrefix(k.ID, id) {
			matches = append(matches, k.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("key not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("key prefix %s is ambiguous", id)
	}
}

func withStore(ctx context.Context, fn func(context.Context, storage.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.New(cfg.Storage, quietLogger())
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return fn(ctx, store)
}
