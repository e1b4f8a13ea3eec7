package bytecode

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"0x", ""},
		{"0x0", ""},
		{"  0X6080 ", "0x6080"},
		{"6080", "0x6080"},
		{"0xABCDEF", "0xabcdef"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestSize(t *testing.T) {
	assert.Equal(t, 0, Size(""))
	assert.Equal(t, 0, Size("0xzz"))
	assert.Equal(t, 4, Size("0x60806040"))
	assert.Equal(t, 2, Size("0x080"))
}

func TestStripMetadata(t *testing.T) {
	code := "608060405234801561001057600080fd5b50"
	// a2 64 'ipfs' 42 <2 bytes> ... length suffix 000b (11 bytes of CBOR)
	cbor := "a264697066734300010264"
	withMeta := code + cbor + "000b"

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no metadata", code, code},
		{"length suffix", withMeta, code},
		{"marker without valid suffix", code + "a264697066735822", code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := hex.DecodeString(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hex.EncodeToString(StripMetadata(b)))
		})
	}
}

func TestFingerprint(t *testing.T) {
	code := "0x608060405234801561001057600080fd5b50"
	a := Fingerprint(code + "a264697066734300010264" + "000b")
	b := Fingerprint(code + "a264697066734300020364" + "000b")

	assert.NotEmpty(t, a)
	assert.Equal(t, a, b, "metadata must not affect the fingerprint")
	assert.Equal(t, a, Fingerprint(code))
	assert.Len(t, a, 66)
	assert.Empty(t, Fingerprint("0x"))
}
