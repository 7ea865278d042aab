package limbs

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func TestRoundTripEdges(t *testing.T) {
	var zero [32]byte
	var ones [32]byte
	for i := range ones {
		ones[i] = 0xff
	}
	mid := sha256.Sum256([]byte("limb round trip"))
	for _, in := range [][32]byte{zero, ones, mid} {
		out := Join(Split(in))
		if !bytes.Equal(in[:], out[:]) {
			t.Fatalf("round trip mismatch: %x != %x", in, out)
		}
	}
}

func TestSplitLittleEndian(t *testing.T) {
	var in [32]byte
	in[0] = 0x01
	in[8] = 0x02
	in[31] = 0x80
	l := Split(in)
	if l[0] != 1 || l[1] != 2 || l[2] != 0 || l[3] != 0x8000000000000000 {
		t.Fatalf("unexpected limbs: %#x", l)
	}
	for _, v := range Split([32]byte{}) {
		if v != 0 {
			t.Fatalf("zero secret must split into zero limbs")
		}
	}
}

func TestScalars(t *testing.T) {
	s := Scalars([Count]uint64{1, 2, 3, 4})
	if len(s) != Count {
		t.Fatalf("expected %d scalars", Count)
	}
}
