package artifact

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArtifactConstructors(t *testing.T) {
	tests := []struct {
		name      string
		artifact  Artifact
		wantKind  Kind
		available bool
		file      string
	}{
		{"abi", EVMABI(json.RawMessage(`[{"type":"function"}]`)), KindEVMABI, true, "abi.json"},
		{"idl", SolanaIDL(json.RawMessage(`{"name":"x"}`)), KindSolanaIDL, true, "idl.json"},
		{"null abi", EVMABI(json.RawMessage(`null`)), KindUnavailable, false, ""},
		{"empty idl", SolanaIDL(nil), KindUnavailable, false, ""},
		{"invalid json", EVMABI(json.RawMessage(`Contract source code not verified`)), KindUnavailable, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKind, tt.artifact.Kind)
			assert.Equal(t, tt.available, tt.artifact.Available())
			assert.Equal(t, tt.file, tt.artifact.FileName())
		})
	}
}

func TestBundle_HasPrefix(t *testing.T) {
	b := &Bundle{Files: []File{
		{Path: "proxy/Proxy.sol"},
		{Path: "README.md"},
	}}
	assert.True(t, b.HasPrefix(ProxyPrefix))
	assert.False(t, b.HasPrefix(ImplementationPrefix))
	assert.True(t, b.Verified())
	assert.False(t, (&Bundle{}).Verified())
}

func TestProxyResolution(t *testing.T) {
	assert.False(t, NoProxy().IsProxy())

	addr := "0x1111111111111111111111111111111111111111"
	r := ProxyResolution{Implementation: &addr, Convention: ConventionUUPS}
	assert.True(t, r.IsProxy())

	out, err := json.Marshal(NoProxy())
	assert.NoError(t, err)
	assert.JSONEq(t, `{"implementationAddress":null,"conventionMatched":"None"}`, string(out))
}
