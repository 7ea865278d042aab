package rangeproof

import (
	"github.com/cockroachdb/errors"

	"zkcommit/internal/zk/ipp"
	"zkcommit/internal/zk/pedersen"
)

const headerSize = 4*pedersen.ElementSize + 3*pedersen.ScalarSize

type Proof struct {
	A, S       Element
	T1, T2     Element
	TX         Scalar
	TXBlinding Scalar
	EBlinding  Scalar
	IPP        *ipp.Proof
}

// ProofSize is the encoded length for m values of the given bit width.
func ProofSize(bits, m int) int {
	rounds := 0
	for n := bits * m; n > 1; n >>= 1 {
		rounds++
	}
	return headerSize + ipp.Size(rounds)
}

// Bytes encodes A, S, T1, T2, t_x, t_x_blinding, e_blinding, then the inner
// product argument.
func (p *Proof) Bytes() ([]byte, error) {
	out := make([]byte, 0, headerSize+ipp.Size(len(p.IPP.L)))
	for _, e := range []Element{p.A, p.S, p.T1, p.T2} {
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

func FromBytes(b []byte) (*Proof, error) {
	if len(b) < headerSize+ipp.Size(0) {
		return nil, errors.Wrapf(ErrMalformedProof, "length %d", len(b))
	}
	var pts [4]Element
	off := 0
	for i := range pts {
		e, err := pedersen.DecodeElement(b[off : off+32])
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "point %d", i), ErrMalformedProof)
		}
		pts[i] = e
		off += 32
	}
	var sc [3]Scalar
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
		A: pts[0], S: pts[1], T1: pts[2], T2: pts[3],
		TX: sc[0], TXBlinding: sc[1], EBlinding: sc[2],
		IPP: inner,
	}, nil
}
