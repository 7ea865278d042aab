// Package limbs splits 256-bit secrets into four little-endian 64-bit limbs.
package limbs

import (
	"encoding/binary"

	"zkcommit/internal/zk/pedersen"
)

const Count = 4

// Split returns limb[k] = little-endian uint64 of secret[8k:8k+8].
func Split(secret [32]byte) [Count]uint64 {
	var out [Count]uint64
	for k := range out {
		out[k] = binary.LittleEndian.Uint64(secret[8*k : 8*k+8])
	}
	return out
}

// Join is the inverse of Split.
func Join(l [Count]uint64) [32]byte {
	var out [32]byte
	for k := range l {
		binary.LittleEndian.PutUint64(out[8*k:8*k+8], l[k])
	}
	return out
}

func Scalars(l [Count]uint64) []pedersen.Scalar {
	out := make([]pedersen.Scalar, Count)
	for k := range l {
		out[k] = pedersen.ScalarFromUint64(l[k])
	}
	return out
}
