package zkp

import (
	"os"
	"strconv"
	"strings"
)

const (
	defaultMaxProofBytes = 4096
	defaultMaxFieldHex   = 2*defaultMaxProofBytes + 2
)

// Caps bound the sizes the engine and the hex boundary accept.
type Caps struct {
	MaxProofBytes int `koanf:"maxProofBytes"`
	MaxFieldHex   int `koanf:"maxFieldHex"`
}

// DefaultCaps reads ZKP_MAX_PROOF_BYTES and ZKP_MAX_FIELD_HEX, falling back
// to built-in limits.
func DefaultCaps() Caps {
	return Caps{
		MaxProofBytes: envCap("ZKP_MAX_PROOF_BYTES", defaultMaxProofBytes),
		MaxFieldHex:   envCap("ZKP_MAX_FIELD_HEX", defaultMaxFieldHex),
	}
}

func (c Caps) withDefaults() Caps {
	def := DefaultCaps()
	if c.MaxProofBytes <= 0 {
		c.MaxProofBytes = def.MaxProofBytes
	}
	if c.MaxFieldHex <= 0 {
		c.MaxFieldHex = def.MaxFieldHex
	}
	return c
}

func envCap(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
