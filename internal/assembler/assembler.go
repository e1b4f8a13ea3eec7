// Package assembler builds the artifact bundle returned to clients from
// fetched sources, metadata and proxy information. Assembly is pure: the
// same input always produces byte-identical output.
package assembler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/pendergraft/contractlens/internal/artifact"
	"github.com/pendergraft/contractlens/internal/bytecode"
)

// Generated file names
const (
	ReadmeFile = "README.md"
	ConfigFile = "config.json"
)

// Contract is one verified contract: a plain contract, a proxy, or the
// implementation behind a proxy.
type Contract struct {
	Address  string
	Files    []artifact.File
	Metadata artifact.Metadata
	Artifact artifact.Artifact
	Bytecode artifact.Bytecode
}

// Input is everything the assembler needs
type Input struct {
	Chain      string
	ChainName  string
	ChainID    int64
	Contract   Contract
	Creator    string
	CreationTx string

	// Proxy is the resolution for Contract. Implementation is used only when
	// Proxy matched and the implementation is verified.
	Proxy          *artifact.ProxyResolution
	Implementation *Contract

	// Solana
	IDLSource string
	Account   *artifact.AccountInfo
}

// Assemble builds the bundle
func Assemble(in Input) (*artifact.Bundle, error) {
	b := &artifact.Bundle{
		Chain:      in.Chain,
		Address:    in.Contract.Address,
		Artifact:   in.Contract.Artifact,
		Metadata:   in.Contract.Metadata,
		Bytecode:   normalized(in.Contract.Bytecode),
		Creator:    in.Creator,
		CreationTx: in.CreationTx,
		Proxy:      in.Proxy,
		Account:    in.Account,
		Files:      []artifact.File{},
	}
	if b.Artifact.Kind == "" {
		b.Artifact = artifact.Unavailable()
	}

	switch {
	case in.Account != nil:
		// account-only bundles carry no files
		return b, nil
	case in.Contract.Artifact.Kind == artifact.KindSolanaIDL:
		return b, assembleProgram(b, in)
	case isProxyPair(in):
		return b, assembleProxy(b, in)
	default:
		return b, assemblePlain(b, in)
	}
}

func isProxyPair(in Input) bool {
	return in.Proxy != nil && in.Proxy.IsProxy() &&
		in.Implementation != nil && len(in.Implementation.Files) > 0 &&
		len(in.Contract.Files) > 0
}

func assemblePlain(b *artifact.Bundle, in Input) error {
	if len(in.Contract.Files) == 0 {
		// not verified
		return nil
	}

	files := newFileSet()
	files.add(artifact.File{Name: ReadmeFile, Path: ReadmeFile, Content: plainReadme(in)})
	files.add(in.Contract.Files...)

	cfg, err := marshal(configOf(in.Chain, in.ChainID, in.Contract, nil))
	if err != nil {
		return err
	}
	files.add(artifact.File{Name: ConfigFile, Path: ConfigFile, Content: cfg})

	if f, ok := artifactFile(in.Contract.Artifact, ""); ok {
		files.add(f)
	}
	b.Files = files.list()
	return nil
}

func assembleProxy(b *artifact.Bundle, in Input) error {
	impl := *in.Implementation

	files := newFileSet()
	files.add(artifact.File{Name: ReadmeFile, Path: ReadmeFile, Content: proxyReadme(in)})
	files.add(prefixed(artifact.ProxyPrefix, in.Contract.Files)...)
	files.add(prefixed(artifact.ImplementationPrefix, impl.Files)...)

	cfg, err := marshal(configOf(in.Chain, in.ChainID, in.Contract, &impl))
	if err != nil {
		return err
	}
	files.add(artifact.File{Name: ConfigFile, Path: ConfigFile, Content: cfg})

	if f, ok := artifactFile(in.Contract.Artifact, artifact.ProxyPrefix); ok {
		files.add(f)
	}
	if f, ok := artifactFile(impl.Artifact, artifact.ImplementationPrefix); ok {
		files.add(f)
	}

	b.Files = files.list()
	b.Implementation = &artifact.ImplementationInfo{
		Address:    impl.Address,
		Convention: in.Proxy.Convention,
		Metadata:   impl.Metadata,
		Artifact:   impl.Artifact,
		Bytecode:   normalized(impl.Bytecode),
	}
	return nil
}

func assembleProgram(b *artifact.Bundle, in Input) error {
	files := newFileSet()
	files.add(artifact.File{Name: ReadmeFile, Path: ReadmeFile, Content: programReadme(in)})
	if f, ok := artifactFile(in.Contract.Artifact, ""); ok {
		files.add(f)
	}
	b.Files = files.list()
	return nil
}

func artifactFile(a artifact.Artifact, prefix string) (artifact.File, bool) {
	if !a.Available() {
		return artifact.File{}, false
	}
	content, err := indentJSON(a.Data)
	if err != nil {
		return artifact.File{}, false
	}
	name := a.FileName()
	return artifact.File{Name: name, Path: prefix + name, Content: content}, true
}

func prefixed(prefix string, files []artifact.File) []artifact.File {
	out := make([]artifact.File, len(files))
	for i, f := range files {
		f.Path = prefix + strings.TrimPrefix(f.Path, "/")
		out[i] = f
	}
	return out
}

func normalized(bc artifact.Bytecode) artifact.Bytecode {
	return artifact.Bytecode{
		Creation: bytecode.Normalize(bc.Creation),
		Deployed: bytecode.Normalize(bc.Deployed),
	}
}

// fileSet keeps insertion order and drops later files with a path already seen
type fileSet struct {
	seen  map[string]bool
	files []artifact.File
}

func newFileSet() *fileSet {
	return &fileSet{seen: make(map[string]bool)}
}

func (s *fileSet) add(files ...artifact.File) {
	for _, f := range files {
		if s.seen[f.Path] {
			continue
		}
		s.seen[f.Path] = true
		s.files = append(s.files, f)
	}
}

func (s *fileSet) list() []artifact.File {
	return s.files
}

// CompilerSeries returns the major.minor series of a compiler string such
// as "v0.8.20+commit.a1b79de6" or "vyper:0.3.7", or "" when unparseable.
func CompilerSeries(compiler string) string {
	v := strings.TrimSpace(compiler)
	if i := strings.LastIndex(v, ":"); i >= 0 {
		v = v[i+1:]
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if i := strings.IndexAny(v, "+ "); i >= 0 {
		v = v[:i]
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.MajorMinor(v)
}

// indentJSON keeps the key order of the original document
func indentJSON(data json.RawMessage) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return "", err
	}
	buf.WriteByte('\n')
	return buf.String(), nil
}

func marshal(v any) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding %T: %w", v, err)
	}
	return string(out) + "\n", nil
}
