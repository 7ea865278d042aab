package zkp

import (
	"encoding/hex"
	"strings"
)

// DecodeHex decodes a hex field with an optional 0x prefix. maxHex bounds the
// number of hex digits; zero means unbounded.
func DecodeHex(field, s string, maxHex int) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	if maxHex > 0 && len(s) > maxHex {
		return nil, inputErrorf("%s: %d hex digits exceeds cap %d", field, len(s), maxHex)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, inputErrorf("%s: invalid hex: %v", field, err)
	}
	return b, nil
}

// Decode32 decodes exactly 32 bytes (64 hex digits).
func Decode32(field, s string) ([32]byte, error) {
	var out [32]byte
	b, err := DecodeHex(field, s, 2*len(out))
	if err != nil {
		return out, err
	}
	if len(b) != len(out) {
		return out, inputErrorf("%s: expected 32 bytes, got %d", field, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// DecodeTag decodes an optional binding tag. Empty input means no tag.
func DecodeTag(s string) ([]byte, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	b, err := Decode32("binding_tag_hex", s)
	if err != nil {
		return nil, err
	}
	return b[:], nil
}

// DecodeHexList decodes each entry of list.
func DecodeHexList(field string, list []string, maxHex int) ([][]byte, error) {
	out := make([][]byte, len(list))
	for i, s := range list {
		b, err := DecodeHex(field, s, maxHex)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

func EncodeHexList(list [][]byte) []string {
	out := make([]string, len(list))
	for i, b := range list {
		out[i] = hex.EncodeToString(b)
	}
	return out
}
