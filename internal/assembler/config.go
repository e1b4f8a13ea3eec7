package assembler

import (
	"github.com/pendergraft/contractlens/internal/artifact"
	"github.com/pendergraft/contractlens/internal/bytecode"
)

// contractConfig is the config.json snapshot of one contract
type contractConfig struct {
	Address        string            `json:"address"`
	Name           string            `json:"name"`
	Compiler       string            `json:"compiler"`
	CompilerSeries string            `json:"compilerSeries,omitempty"`
	Optimization   bool              `json:"optimization"`
	Runs           int               `json:"runs"`
	EVMVersion     string            `json:"evmVersion"`
	License        string            `json:"license,omitempty"`
	CreationSize   int               `json:"creationBytecodeSize"`
	DeployedSize   int               `json:"deployedBytecodeSize"`
	Fingerprint    string            `json:"fingerprint,omitempty"`
	Bytecode       artifact.Bytecode `json:"bytecode"`
}

type bundleConfig struct {
	Chain          string          `json:"chain"`
	ChainID        int64           `json:"chainId,omitempty"`
	Contract       contractConfig  `json:"contract"`
	Implementation *contractConfig `json:"implementation,omitempty"`
}

func configOf(chain string, chainID int64, c Contract, impl *Contract) bundleConfig {
	cfg := bundleConfig{
		Chain:    chain,
		ChainID:  chainID,
		Contract: contractConfigOf(c),
	}
	if impl != nil {
		ic := contractConfigOf(*impl)
		cfg.Implementation = &ic
	}
	return cfg
}

func contractConfigOf(c Contract) contractConfig {
	bc := normalized(c.Bytecode)
	return contractConfig{
		Address:        c.Address,
		Name:           c.Metadata.Name,
		Compiler:       c.Metadata.Compiler,
		CompilerSeries: CompilerSeries(c.Metadata.Compiler),
		Optimization:   c.Metadata.Optimization,
		Runs:           c.Metadata.Runs,
		EVMVersion:     c.Metadata.EVMVersion,
		License:        c.Metadata.License,
		CreationSize:   bytecode.Size(bc.Creation),
		DeployedSize:   bytecode.Size(bc.Deployed),
		Fingerprint:    bytecode.Fingerprint(bc.Deployed),
		Bytecode:       bc,
	}
}
