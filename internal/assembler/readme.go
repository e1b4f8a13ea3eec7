package assembler

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/pendergraft/contractlens/internal/artifact"
)

func plainReadme(in Input) string {
	var sb strings.Builder
	c := in.Contract

	fmt.Fprintf(&sb, "# %s\n\n", titleOf(c))
	writeTable(&sb, [][2]string{
		{"Chain", chainLabel(in)},
		{"Address", code(c.Address)},
		{"Creator", code(in.Creator)},
		{"Creation tx", code(in.CreationTx)},
	})
	sb.WriteString("\n## Compiler\n\n")
	writeCompiler(&sb, c.Metadata)
	writeInterface(&sb, c.Artifact)
	writeFiles(&sb, c.Files, "")
	return sb.String()
}

func proxyReadme(in Input) string {
	var sb strings.Builder
	c := in.Contract
	impl := *in.Implementation

	fmt.Fprintf(&sb, "# %s (proxy)\n\n", titleOf(c))
	fmt.Fprintf(&sb, "This contract is a proxy. Calls are delegated to %s (%s convention).\n\n",
		code(impl.Address), in.Proxy.Convention)
	writeTable(&sb, [][2]string{
		{"Chain", chainLabel(in)},
		{"Proxy", code(c.Address)},
		{"Implementation", code(impl.Address)},
		{"Creator", code(in.Creator)},
		{"Creation tx", code(in.CreationTx)},
	})

	fmt.Fprintf(&sb, "\n## Proxy: %s\n\n", titleOf(c))
	writeCompiler(&sb, c.Metadata)
	writeFiles(&sb, c.Files, artifact.ProxyPrefix)

	fmt.Fprintf(&sb, "\n## Implementation: %s\n\n", titleOf(impl))
	writeCompiler(&sb, impl.Metadata)
	writeInterface(&sb, impl.Artifact)
	writeFiles(&sb, impl.Files, artifact.ImplementationPrefix)
	return sb.String()
}

func programReadme(in Input) string {
	var sb strings.Builder
	c := in.Contract

	var idl struct {
		Name         string `json:"name"`
		Version      string `json:"version"`
		Instructions []struct {
			Name string `json:"name"`
		} `json:"instructions"`
		Metadata struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"metadata"`
	}
	_ = json.Unmarshal(c.Artifact.Data, &idl)

	name := lo.CoalesceOrEmpty(idl.Name, idl.Metadata.Name, c.Address)
	version := lo.CoalesceOrEmpty(idl.Version, idl.Metadata.Version, "-")

	fmt.Fprintf(&sb, "# %s\n\n", name)
	sb.WriteString("Solana program. No source code is published on chain; this bundle carries the program's Anchor IDL.\n\n")
	writeTable(&sb, [][2]string{
		{"Chain", chainLabel(in)},
		{"Program", code(c.Address)},
		{"IDL version", version},
		{"IDL source", lo.CoalesceOrEmpty(in.IDLSource, "-")},
	})

	if len(idl.Instructions) > 0 {
		sb.WriteString("\n## Instructions\n\n")
		for _, ix := range idl.Instructions {
			fmt.Fprintf(&sb, "- `%s`\n", ix.Name)
		}
	}
	fmt.Fprintf(&sb, "\n## Files\n\n- `%s`\n", c.Artifact.FileName())
	return sb.String()
}

func titleOf(c Contract) string {
	return lo.CoalesceOrEmpty(c.Metadata.Name, c.Address, "Contract")
}

func chainLabel(in Input) string {
	name := lo.CoalesceOrEmpty(in.ChainName, in.Chain)
	if in.ChainID != 0 {
		return fmt.Sprintf("%s (%d)", name, in.ChainID)
	}
	return name
}

func code(s string) string {
	if s == "" {
		return "-"
	}
	return "`" + s + "`"
}

func writeTable(sb *strings.Builder, rows [][2]string) {
	sb.WriteString("| Field | Value |\n|---|---|\n")
	for _, r := range rows {
		fmt.Fprintf(sb, "| %s | %s |\n", r[0], r[1])
	}
}

func writeCompiler(sb *strings.Builder, m artifact.Metadata) {
	optimization := "disabled"
	if m.Optimization {
		optimization = fmt.Sprintf("enabled (%d runs)", m.Runs)
	}
	writeTable(sb, [][2]string{
		{"Compiler", lo.CoalesceOrEmpty(m.Compiler, "-")},
		{"Optimization", optimization},
		{"EVM version", lo.CoalesceOrEmpty(m.EVMVersion, "-")},
		{"License", lo.CoalesceOrEmpty(m.License, "-")},
	})
}

type abiEntry struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

func writeInterface(sb *strings.Builder, a artifact.Artifact) {
	if a.Kind != artifact.KindEVMABI || !a.Available() {
		return
	}
	var entries []abiEntry
	if err := json.Unmarshal(a.Data, &entries); err != nil {
		return
	}
	functions := lo.FilterMap(entries, func(e abiEntry, _ int) (string, bool) {
		return e.Name, e.Type == "function" && e.Name != ""
	})
	if len(functions) == 0 {
		return
	}
	sb.WriteString("\n## Functions\n\n")
	for _, fn := range functions {
		fmt.Fprintf(sb, "- `%s`\n", fn)
	}
}

func writeFiles(sb *strings.Builder, files []artifact.File, prefix string) {
	if len(files) == 0 {
		return
	}
	sb.WriteString("\n### Files\n\n")
	for _, f := range files {
		fmt.Fprintf(sb, "- `%s%s`\n", prefix, strings.TrimPrefix(f.Path, "/"))
	}
}
