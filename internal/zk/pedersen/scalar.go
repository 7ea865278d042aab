package pedersen

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/big"

	"github.com/cockroachdb/errors"
)

const (
	ScalarSize  = 32
	ElementSize = 32
)

// order is the prime order of the ristretto255 group:
// 2^252 + 27742317777372353535851937790883648493.
var order, _ = new(big.Int).SetString("7237005577332262213973186563042994240857116359379907606001950938285454250989", 10)

// Order returns a copy of the group order.
func Order() *big.Int {
	return new(big.Int).Set(order)
}

// ScalarFromBytes interprets b as a little-endian integer and reduces it
// modulo the group order. Inputs of any length are accepted.
func ScalarFromBytes(b []byte) Scalar {
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}
	n := new(big.Int).SetBytes(be)
	n.Mod(n, order)
	return Group().NewScalar().SetBigInt(n)
}

func ScalarFromUint64(v uint64) Scalar {
	return Group().NewScalar().SetUint64(v)
}

func Zero() Scalar {
	return Group().NewScalar()
}

func One() Scalar {
	return Group().NewScalar().SetUint64(1)
}

// RandomScalar reads 64 bytes from r and reduces them, so the result is
// statistically close to uniform.
func RandomScalar(r io.Reader) (Scalar, error) {
	if r == nil {
		return nil, errors.New("nil randomness source")
	}
	var buf [64]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, errors.Wrap(err, "read randomness")
	}
	return ScalarFromBytes(buf[:]), nil
}

// RandomScalars draws n independent scalars from r.
func RandomScalars(r io.Reader, n int) ([]Scalar, error) {
	out := make([]Scalar, n)
	for i := range out {
		s, err := RandomScalar(r)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func EncodeScalar(s Scalar) ([]byte, error) {
	b, err := s.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "marshal scalar")
	}
	if len(b) != ScalarSize {
		return nil, errors.Newf("scalar encoding is %d bytes", len(b))
	}
	return b, nil
}

// DecodeCanonicalScalar accepts only the canonical encoding of a scalar.
// Proof fields go through here; data fields use ScalarFromBytes instead.
func DecodeCanonicalScalar(b []byte) (Scalar, error) {
	if len(b) != ScalarSize {
		return nil, errors.Newf("scalar must be %d bytes, got %d", ScalarSize, len(b))
	}
	s := Group().NewScalar()
	if err := s.UnmarshalBinary(b); err != nil {
		return nil, errors.Wrap(err, "unmarshal scalar")
	}
	again, err := s.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "marshal scalar")
	}
	if !bytes.Equal(again, b) {
		return nil, errors.New("non-canonical scalar")
	}
	return s, nil
}

func EncodeElement(e Element) ([]byte, error) {
	if e == nil {
		return nil, errors.New("nil element")
	}
	b, err := e.MarshalBinaryCompress()
	if err != nil {
		return nil, errors.Wrap(err, "marshal element")
	}
	if len(b) != ElementSize {
		return nil, errors.Newf("element encoding is %d bytes", len(b))
	}
	return b, nil
}

// DecodeElement parses a compressed point. Invalid encodings are errors.
func DecodeElement(b []byte) (Element, error) {
	if len(b) != ElementSize {
		return nil, errors.Newf("element must be %d bytes, got %d", ElementSize, len(b))
	}
	e := Group().NewElement()
	if err := e.UnmarshalBinary(b); err != nil {
		return nil, errors.Wrap(err, "unmarshal element")
	}
	return e, nil
}

// Uint64Bytes returns the 32-byte little-endian scalar encoding of v.
func Uint64Bytes(v uint64) [32]byte {
	var out [32]byte
	binary.LittleEndian.PutUint64(out[:8], v)
	return out
}
