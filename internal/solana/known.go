package solana

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

//go:embed idls/*.json
var knownFS embed.FS

// KnownSource serves IDLs bundled with the binary. It never touches the
// network and is never refreshed.
type KnownSource struct {
	idls map[string]json.RawMessage
}

// NewKnownSource loads the embedded IDL table. Files are named after the
// program address.
func NewKnownSource() (*KnownSource, error) {
	entries, err := knownFS.ReadDir("idls")
	if err != nil {
		return nil, fmt.Errorf("reading embedded idls: %w", err)
	}

	idls := make(map[string]json.RawMessage, len(entries))
	for _, e := range entries {
		data, err := knownFS.ReadFile(path.Join("idls", e.Name()))
		if err != nil {
			return nil, err
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("embedded idl %s is not valid JSON", e.Name())
		}
		idls[strings.TrimSuffix(e.Name(), ".json")] = data
	}
	return &KnownSource{idls: idls}, nil
}

// NewKnownSourceFrom builds a table from explicit entries
func NewKnownSourceFrom(idls map[string]json.RawMessage) *KnownSource {
	return &KnownSource{idls: idls}
}

// Name implements Source
func (s *KnownSource) Name() string { return "known" }

// Attempt implements Source
func (s *KnownSource) Attempt(_ context.Context, address string) (json.RawMessage, error) {
	if idl, ok := s.idls[address]; ok {
		return idl, nil
	}
	return nil, ErrSkip
}

// Addresses lists the programs in the table
func (s *KnownSource) Addresses() []string {
	out := make([]string, 0, len(s.idls))
	for addr := range s.idls {
		out = append(out, addr)
	}
	return out
}
