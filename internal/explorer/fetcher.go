package explorer

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/pendergraft/contractlens/internal/artifact"
	"github.com/pendergraft/contractlens/internal/bytecode"
	"github.com/pendergraft/contractlens/internal/chains"
)

// Contract is everything the explorer knows about one address. An empty
// Files slice with a nil SourceErr means the source is not verified.
type Contract struct {
	Files      []artifact.File
	Metadata   artifact.Metadata
	Artifact   artifact.Artifact
	Bytecode   artifact.Bytecode
	Creator    string
	CreationTx string

	// SourceErr is set when the getsourcecode call itself failed
	SourceErr error
}

// FetchSource issues the bytecode, creation-info and source-code calls in
// order. A failing call leaves its fields empty and the fetch continues;
// a failed source call is also kept in SourceErr. Only a cancelled context
// is returned as an error.
func (c *Client) FetchSource(ctx context.Context, chain chains.Descriptor, address string) (*Contract, error) {
	out := &Contract{Artifact: artifact.Unavailable()}

	code, err := c.GetCode(ctx, chain, address)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("explorer bytecode lookup failed", "chain", chain.ID, "address", address, "error", err)
	}
	out.Bytecode.Deployed = bytecode.Normalize(code)

	creation, err := c.GetContractCreation(ctx, chain, address)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("explorer creation lookup failed", "chain", chain.ID, "address", address, "error", err)
	} else {
		out.Creator = creation.ContractCreator
		out.CreationTx = creation.TxHash
		out.Bytecode.Creation = bytecode.Normalize(creation.CreationBytecode)
	}

	record, err := c.GetSourceCode(ctx, chain, address)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("explorer source lookup failed", "chain", chain.ID, "address", address, "error", err)
		out.SourceErr = err
		return out, nil
	}

	out.Metadata = metadataOf(record)
	out.Artifact = artifact.EVMABI(json.RawMessage(record.ABI))
	files, err := ParseSourceCode(record.SourceCode, record.ContractName, record.CompilerVersion)
	if err != nil {
		c.logger.Warn("explorer source unparseable", "chain", chain.ID, "address", address, "error", err)
	}
	out.Files = files
	return out, nil
}

func metadataOf(r *SourceRecord) artifact.Metadata {
	runs, _ := strconv.Atoi(strings.TrimSpace(r.Runs))
	return artifact.Metadata{
		Name:         r.ContractName,
		Compiler:     r.CompilerVersion,
		Optimization: r.OptimizationUsed == "1",
		Runs:         runs,
		EVMVersion:   r.EVMVersion,
		License:      r.LicenseType,
	}
}

type sourceEntry struct {
	Content string `json:"content"`
}

type standardInput struct {
	Sources map[string]sourceEntry `json:"sources"`
}

// ParseSourceCode turns the SourceCode field of getsourcecode into files.
// Explorers return one of three shapes: standard JSON input wrapped in an
// extra pair of braces, a bare {path: {content}} map, or a single flattened
// file. Files are sorted by path.
func ParseSourceCode(raw, contractName, compiler string) ([]artifact.File, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if strings.HasPrefix(raw, "{{") && strings.HasSuffix(raw, "}}") {
		raw = raw[1 : len(raw)-1]
	}

	if strings.HasPrefix(raw, "{") {
		sources, err := parseSourceMap(raw)
		if err == nil && len(sources) > 0 {
			return sources, nil
		}
		// not a source map, keep it as a single file
	}

	return []artifact.File{singleFile(raw, contractName, compiler)}, nil
}

func parseSourceMap(raw string) ([]artifact.File, error) {
	var input standardInput
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return nil, err
	}
	sources := input.Sources
	if len(sources) == 0 {
		if err := json.Unmarshal([]byte(raw), &sources); err != nil {
			return nil, err
		}
	}

	files := make([]artifact.File, 0, len(sources))
	for p, entry := range sources {
		p = strings.TrimPrefix(path.Clean("/"+p), "/")
		files = append(files, artifact.File{
			Name:    path.Base(p),
			Path:    p,
			Content: entry.Content,
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func singleFile(content, contractName, compiler string) artifact.File {
	name := contractName
	if name == "" {
		name = "Contract"
	}
	ext := ".sol"
	if strings.Contains(strings.ToLower(compiler), "vyper") {
		ext = ".vy"
	}
	return artifact.File{
		Name:    name + ext,
		Path:    name + ext,
		Content: content,
	}
}
