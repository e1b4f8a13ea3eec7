package domain

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/pendergraft/contractlens/internal/artifact"
	"github.com/pendergraft/contractlens/internal/assembler"
)

const basePrompt = `You are an expert smart contract security auditor.

**Target:** {{.Name}} at {{.Address}} on {{.Chain}}
{{- if .Compiler}}
**Compiler:** {{.Compiler}}{{if .Series}} (series {{.Series}}){{end}}
{{- end}}
{{- if .Implementation}}
**Proxy:** this contract delegates to {{.Implementation}} ({{.Convention}}). Review both sides of the proxy.
{{- end}}

Write a security audit report in Markdown, in {{.Language}}. For every finding give a title,
a severity (Critical, High, Medium, Low, Informational), the affected code and a recommendation.
{{- if .Super}}

Go beyond common issues. Check access control on every privileged function, reentrancy across
external calls, oracle and price manipulation, upgrade and initializer safety, signature replay,
integer edge cases, unchecked return values, denial of service through unbounded loops, and
economic attacks on the protocol's invariants.
{{- end}}

Source files:
{{range .Files}}
// File: {{.Path}}
{{.Content}}
{{end}}`

var promptTemplate = template.Must(template.New("prompt").Parse(basePrompt))

type promptData struct {
	Name           string
	Address        string
	Chain          string
	Compiler       string
	Series         string
	Implementation string
	Convention     artifact.Convention
	Language       string
	Super          bool
	Files          []artifact.File
}

// BuildPrompt renders the audit prompt for a bundle. Generated files
// (README, config) are left out; the interface file is kept for Solana
// programs, which have no sources.
func BuildPrompt(b *artifact.Bundle, cfg Config) (string, error) {
	data := promptData{
		Name:     b.Metadata.Name,
		Address:  b.Address,
		Chain:    b.Chain,
		Compiler: b.Metadata.Compiler,
		Series:   assembler.CompilerSeries(b.Metadata.Compiler),
		Language: cfg.Language,
		Super:    cfg.SuperPrompt,
		Files:    promptFiles(b),
	}
	if data.Name == "" {
		data.Name = "contract"
	}
	if data.Language == "" {
		data.Language = "English"
	}
	if b.Implementation != nil {
		data.Implementation = b.Implementation.Address
		data.Convention = b.Implementation.Convention
	}
	if len(data.Files) == 0 {
		return "", ErrNothingToAnalyze
	}

	var sb strings.Builder
	if err := promptTemplate.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return sb.String(), nil
}

func promptFiles(b *artifact.Bundle) []artifact.File {
	var files []artifact.File
	for _, f := range b.Files {
		base := f.Path[strings.LastIndex(f.Path, "/")+1:]
		switch base {
		case assembler.ReadmeFile, assembler.ConfigFile, "abi.json":
			continue
		}
		files = append(files, f)
	}
	return files
}
