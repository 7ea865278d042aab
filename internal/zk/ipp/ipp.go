// Package ipp implements the logarithmic inner-product argument shared by the
// range prover and the constraint-system prover.
package ipp

import (
	"math/bits"

	"github.com/cockroachdb/errors"

	"zkcommit/internal/zk/pedersen"
	"zkcommit/internal/zk/transcript"
)

type (
	Scalar  = pedersen.Scalar
	Element = pedersen.Element
)

const MaxRounds = 32

var (
	ErrMalformedProof = errors.New("malformed inner product proof")
	ErrVerification   = errors.New("inner product verification failed")
)

// Proof holds one (L, R) pair per folding round and the final scalars.
type Proof struct {
	L []Element
	R []Element
	A Scalar
	B Scalar
}

// Prove shows knowledge of a, b with P = <a,G> + <b,H> + <a,b>Q. Inputs are
// copied before folding.
func Prove(t *transcript.Transcript, Q Element, G, H []Element, a, b []Scalar) (*Proof, error) {
	n := len(G)
	if n == 0 || n&(n-1) != 0 {
		return nil, errors.Newf("vector length %d is not a power of two", n)
	}
	if len(H) != n || len(a) != n || len(b) != n {
		return nil, errors.New("dimension mismatch")
	}
	t.DomainSep("ipp v1", uint64(n))

	G = append([]Element(nil), G...)
	H = append([]Element(nil), H...)
	a = append([]Scalar(nil), a...)
	b = append([]Scalar(nil), b...)

	g := pedersen.Group()
	proof := &Proof{}
	for n > 1 {
		n /= 2
		aL, aR := a[:n], a[n:]
		bL, bR := b[:n], b[n:]
		GL, GR := G[:n], G[n:]
		HL, HR := H[:n], H[n:]

		cL := pedersen.InnerProduct(aL, bR)
		cR := pedersen.InnerProduct(aR, bL)
		L := pedersen.MultiScalarMul(concat(aL, bR, []Scalar{cL}), concatE(GR, HL, []Element{Q}))
		R := pedersen.MultiScalarMul(concat(aR, bL, []Scalar{cR}), concatE(GL, HR, []Element{Q}))
		if err := t.AppendPoint("L", L); err != nil {
			return nil, err
		}
		if err := t.AppendPoint("R", R); err != nil {
			return nil, err
		}
		proof.L = append(proof.L, L)
		proof.R = append(proof.R, R)

		u := t.ChallengeScalar("u")
		if pedersen.IsZero(u) {
			return nil, errors.AssertionFailedf("zero folding challenge")
		}
		uInv := pedersen.Inv(u)

		na := make([]Scalar, n)
		nb := make([]Scalar, n)
		nG := make([]Element, n)
		nH := make([]Element, n)
		for i := 0; i < n; i++ {
			na[i] = pedersen.Add(pedersen.Mul(aL[i], u), pedersen.Mul(aR[i], uInv))
			nb[i] = pedersen.Add(pedersen.Mul(bL[i], uInv), pedersen.Mul(bR[i], u))
			nG[i] = g.NewElement().Add(g.NewElement().Mul(GL[i], uInv), g.NewElement().Mul(GR[i], u))
			nH[i] = g.NewElement().Add(g.NewElement().Mul(HL[i], u), g.NewElement().Mul(HR[i], uInv))
		}
		a, b, G, H = na, nb, nG, nH
	}
	proof.A = a[0]
	proof.B = b[0]
	return proof, nil
}

// Scalars are the verifier's per-round challenges and the per-index
// products s_i. The H side uses s_{n-1-i}, which equals 1/s_i.
type Scalars struct {
	USq    []Scalar
	UInvSq []Scalar
	S      []Scalar
}

// SInv returns 1/s_i.
func (v *Scalars) SInv(i int) Scalar {
	return v.S[len(v.S)-1-i]
}

// VerificationScalars replays the folding rounds on t and returns the
// challenge-derived scalars for a vector of length n.
func (p *Proof) VerificationScalars(t *transcript.Transcript, n int) (*Scalars, error) {
	lgN := len(p.L)
	if lgN >= MaxRounds || len(p.R) != lgN {
		return nil, ErrMalformedProof
	}
	if n != 1<<uint(lgN) {
		return nil, errors.Wrapf(ErrVerification, "proof has %d rounds for length %d", lgN, n)
	}
	t.DomainSep("ipp v1", uint64(n))

	out := &Scalars{
		USq:    make([]Scalar, lgN),
		UInvSq: make([]Scalar, lgN),
		S:      make([]Scalar, n),
	}
	uInvs := make([]Scalar, lgN)
	for j := 0; j < lgN; j++ {
		if err := t.AppendPoint("L", p.L[j]); err != nil {
			return nil, errors.Mark(err, ErrMalformedProof)
		}
		if err := t.AppendPoint("R", p.R[j]); err != nil {
			return nil, errors.Mark(err, ErrMalformedProof)
		}
		u := t.ChallengeScalar("u")
		if pedersen.IsZero(u) {
			return nil, ErrVerification
		}
		uInvs[j] = pedersen.Inv(u)
		out.USq[j] = pedersen.Mul(u, u)
		out.UInvSq[j] = pedersen.Mul(uInvs[j], uInvs[j])
	}

	s0 := pedersen.One()
	for _, ui := range uInvs {
		s0 = pedersen.Mul(s0, ui)
	}
	out.S[0] = s0
	for i := 1; i < n; i++ {
		lgI := bits.Len(uint(i)) - 1
		k := 1 << uint(lgI)
		out.S[i] = pedersen.Mul(out.S[i-k], out.USq[lgN-1-lgI])
	}
	return out, nil
}

// Verify checks the argument directly against P. The provers fold this
// equation into their own combined checks instead.
func Verify(t *transcript.Transcript, Q, P Element, G, H []Element, proof *Proof) error {
	n := len(G)
	if proof == nil || len(H) != n {
		return ErrMalformedProof
	}
	vs, err := proof.VerificationScalars(t, n)
	if err != nil {
		return err
	}
	scalars := make([]Scalar, 0, 2*n+2*len(proof.L)+2)
	points := make([]Element, 0, cap(scalars))
	for i := 0; i < n; i++ {
		scalars = append(scalars, pedersen.Mul(proof.A, vs.S[i]))
		points = append(points, G[i])
	}
	for i := 0; i < n; i++ {
		scalars = append(scalars, pedersen.Mul(proof.B, vs.SInv(i)))
		points = append(points, H[i])
	}
	scalars = append(scalars, pedersen.Mul(proof.A, proof.B))
	points = append(points, Q)
	for j := range proof.L {
		scalars = append(scalars, pedersen.Neg(vs.USq[j]), pedersen.Neg(vs.UInvSq[j]))
		points = append(points, proof.L[j], proof.R[j])
	}
	scalars = append(scalars, pedersen.Neg(pedersen.One()))
	points = append(points, P)
	if !pedersen.MultiScalarMul(scalars, points).IsIdentity() {
		return ErrVerification
	}
	return nil
}

func concat(parts ...[]Scalar) []Scalar {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]Scalar, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func concatE(parts ...[]Element) []Element {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]Element, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
