package ipp

import (
	"github.com/cockroachdb/errors"

	"zkcommit/internal/zk/pedersen"
)

// Size is the encoded length of a proof with the given number of rounds.
func Size(rounds int) int {
	return 2*rounds*pedersen.ElementSize + 2*pedersen.ScalarSize
}

// Bytes encodes L0, R0, ..., Lk-1, Rk-1, a, b.
func (p *Proof) Bytes() ([]byte, error) {
	out := make([]byte, 0, Size(len(p.L)))
	for j := range p.L {
		l, err := pedersen.EncodeElement(p.L[j])
		if err != nil {
			return nil, err
		}
		r, err := pedersen.EncodeElement(p.R[j])
		if err != nil {
			return nil, err
		}
		out = append(out, l...)
		out = append(out, r...)
	}
	a, err := pedersen.EncodeScalar(p.A)
	if err != nil {
		return nil, err
	}
	b, err := pedersen.EncodeScalar(p.B)
	if err != nil {
		return nil, err
	}
	out = append(out, a...)
	return append(out, b...), nil
}

// FromBytes decodes a proof. Every failure is ErrMalformedProof.
func FromBytes(b []byte) (*Proof, error) {
	if len(b) < 2*pedersen.ScalarSize || len(b)%32 != 0 {
		return nil, errors.Wrapf(ErrMalformedProof, "length %d", len(b))
	}
	words := len(b) / 32
	if (words-2)%2 != 0 {
		return nil, errors.Wrapf(ErrMalformedProof, "odd point count")
	}
	rounds := (words - 2) / 2
	if rounds >= MaxRounds {
		return nil, errors.Wrapf(ErrMalformedProof, "%d rounds", rounds)
	}
	p := &Proof{L: make([]Element, rounds), R: make([]Element, rounds)}
	off := 0
	for j := 0; j < rounds; j++ {
		l, err := pedersen.DecodeElement(b[off : off+32])
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "L[%d]", j), ErrMalformedProof)
		}
		r, err := pedersen.DecodeElement(b[off+32 : off+64])
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "R[%d]", j), ErrMalformedProof)
		}
		p.L[j], p.R[j] = l, r
		off += 64
	}
	a, err := pedersen.DecodeCanonicalScalar(b[off : off+32])
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "a"), ErrMalformedProof)
	}
	bb, err := pedersen.DecodeCanonicalScalar(b[off+32 : off+64])
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "b"), ErrMalformedProof)
	}
	p.A, p.B = a, bb
	return p, nil
}
