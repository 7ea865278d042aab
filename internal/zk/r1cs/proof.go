package r1cs

import (
	"github.com/cockroachdb/errors"

	"zkcommit/internal/zk/ipp"
	"zkcommit/internal/zk/pedersen"
)

const (
	proofPoints  = 8
	proofScalars = 3
	headerSize   = proofPoints*pedersen.ElementSize + proofScalars*pedersen.ScalarSize
)

type Proof struct {
	AI, AO, S          Element
	T1, T3, T4, T5, T6 Element
	TX                 Scalar
	TXBlinding         Scalar
	EBlinding          Scalar
	IPP                *ipp.Proof
}

// ProofSize is the encoded length for a circuit with the given number of
// multipliers.
func ProofSize(multipliers int) int {
	rounds := 0
	for n := paddedLen(multipliers); n > 1; n >>= 1 {
		rounds++
	}
	return headerSize + ipp.Size(rounds)
}

func (p *Proof) tPoints() map[int]Element {
	return map[int]Element{1: p.T1, 3: p.T3, 4: p.T4, 5: p.T5, 6: p.T6}
}

func (p *Proof) Bytes() ([]byte, error) {
	out := make([]byte, 0, headerSize+ipp.Size(len(p.IPP.L)))
	for _, e := range []Element{p.AI, p.AO, p.S, p.T1, p.T3, p.T4, p.T5, p.T6} {
		b, err := pedersen.EncodeElement(e)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	for _, s := range []Scalar{p.TX, p.TXBlinding, p.EBlinding} {
		b, err := pedersen.EncodeScalar(s)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	inner, err := p.IPP.Bytes()
	if err != nil {
		return nil, err
	}
	return append(out, inner...), nil
}

// FromBytes decodes a proof; every failure is ErrMalformedProof.
func FromBytes(b []byte) (*Proof, error) {
	if len(b) < headerSize+ipp.Size(0) {
		return nil, errors.Wrapf(ErrMalformedProof, "length %d", len(b))
	}
	var pts [proofPoints]Element
	off := 0
	for i := range pts {
		e, err := pedersen.DecodeElement(b[off : off+32])
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "point %d", i), ErrMalformedProof)
		}
		pts[i] = e
		off += 32
	}
	var sc [proofScalars]Scalar
	for i := range sc {
		s, err := pedersen.DecodeCanonicalScalar(b[off : off+32])
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "scalar %d", i), ErrMalformedProof)
		}
		sc[i] = s
		off += 32
	}
	inner, err := ipp.FromBytes(b[off:])
	if err != nil {
		return nil, errors.Mark(err, ErrMalformedProof)
	}
	return &Proof{
		AI: pts[0], AO: pts[1], S: pts[2],
		T1: pts[3], T3: pts[4], T4: pts[5], T5: pts[6], T6: pts[7],
		TX: sc[0], TXBlinding: sc[1], EBlinding: sc[2],
		IPP: inner,
	}, nil
}
