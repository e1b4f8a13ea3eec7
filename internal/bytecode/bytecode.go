// Package bytecode holds helpers for EVM bytecode hex strings.
package bytecode

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// CBOR metadata marker (Solidity >=0.6.0) - "ipfs" in CBOR
var metadataMarker = []byte{0xa2, 0x64, 0x69, 0x70, 0x66, 0x73}

// Normalize returns "" for empty code ("", "0x", "0x0") and a lowercase
// 0x-prefixed string otherwise.
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	code = strings.TrimPrefix(code, "0x")
	if code == "" || strings.Trim(code, "0") == "" {
		return ""
	}
	return "0x" + code
}

// Decode parses a hex string into bytes. Empty code decodes to nil.
func Decode(code string) ([]byte, error) {
	code = Normalize(code)
	if code == "" {
		return nil, nil
	}
	if len(code)%2 != 0 {
		code = "0x0" + code[2:]
	}
	return hexutil.Decode(code)
}

// Size returns the byte length of a hex string, or 0 if it is not valid hex
func Size(code string) int {
	b, err := Decode(code)
	if err != nil {
		return 0
	}
	return len(b)
}

// StripMetadata removes the CBOR metadata appended to runtime bytecode.
// Solidity ends the code with a 2-byte big-endian length of the CBOR map.
func StripMetadata(code []byte) []byte {
	if len(code) >= 2 {
		n := int(binary.BigEndian.Uint16(code[len(code)-2:]))
		start := len(code) - 2 - n
		if n > 0 && start >= 0 && code[start]&0xf0 == 0xa0 {
			return code[:start]
		}
	}

	// Fall back to the last "ipfs" marker
	idx := bytes.LastIndex(code, metadataMarker)
	if idx == -1 {
		return code
	}
	return code[:idx]
}

// Fingerprint returns the keccak256 of the metadata-stripped code, or ""
// for empty or malformed code.
func Fingerprint(code string) string {
	b, err := Decode(code)
	if err != nil || len(b) == 0 {
		return ""
	}
	return crypto.Keccak256Hash(StripMetadata(b)).Hex()
}
