package r1cs

import (
	"github.com/cockroachdb/errors"

	"zkcommit/internal/zk/generators"
	"zkcommit/internal/zk/pedersen"
	"zkcommit/internal/zk/transcript"
)

type Verifier struct {
	params      *generators.Params
	t           *transcript.Transcript
	V           []Element
	multipliers int
	constraints []LinearCombination
}

func NewVerifier(params *generators.Params, t *transcript.Transcript) *Verifier {
	return &Verifier{params: params, t: t}
}

// Commit registers a commitment received from the prover.
func (v *Verifier) Commit(C Element) (Variable, error) {
	if err := v.t.AppendPoint("V", C); err != nil {
		return Variable{}, err
	}
	i := len(v.V)
	v.V = append(v.V, C)
	return Variable{Kind: VarCommitted, Index: i}, nil
}

func (v *Verifier) Multiply(left, right LinearCombination) (Variable, Variable, Variable) {
	i := v.multipliers
	v.multipliers++
	lv := Variable{Kind: VarMultiplierLeft, Index: i}
	rv := Variable{Kind: VarMultiplierRight, Index: i}
	ov := Variable{Kind: VarMultiplierOutput, Index: i}
	v.Constrain(left.Sub(lv.LC()))
	v.Constrain(right.Sub(rv.LC()))
	return lv, rv, ov
}

func (v *Verifier) Constrain(lc LinearCombination) {
	v.constraints = append(v.constraints, lc)
}

// Verify checks proof against the constraints registered so far.
func (v *Verifier) Verify(proof *Proof) error {
	if proof == nil || proof.IPP == nil {
		return ErrMalformedProof
	}
	for i, c := range v.constraints {
		for _, t := range c {
			if !validVar(t.Var, len(v.V), v.multipliers) {
				return errors.Wrapf(ErrUnknownVar, "constraint %d", i)
			}
		}
	}
	m := len(v.V)
	n := paddedLen(v.multipliers)
	if n > v.params.Bits {
		return errors.Wrapf(generators.ErrInvalidParameters, "%d multipliers exceed capacity %d", n, v.params.Bits)
	}
	v.t.DomainSep(domainSep, uint64(m), uint64(v.multipliers))

	for _, msg := range []struct {
		label string
		p     Element
	}{{"A_I", proof.AI}, {"A_O", proof.AO}, {"S", proof.S}} {
		if err := v.t.ValidateAndAppendPoint(msg.label, msg.p); err != nil {
			return errors.Mark(err, ErrVerification)
		}
	}
	y := v.t.ChallengeScalar("y")
	z := v.t.ChallengeScalar("z")

	T := proof.tPoints()
	for _, i := range tIndices {
		if err := v.t.ValidateAndAppendPoint(tLabels[i], T[i]); err != nil {
			return errors.Mark(err, ErrVerification)
		}
	}
	x := v.t.ChallengeScalar("x")
	for _, msg := range []struct {
		label string
		s     Scalar
	}{{"t_x", proof.TX}, {"t_x_blinding", proof.TXBlinding}, {"e_blinding", proof.EBlinding}} {
		if err := v.t.AppendScalar(msg.label, msg.s); err != nil {
			return errors.Mark(err, ErrMalformedProof)
		}
	}
	wc := v.t.ChallengeScalar("w")

	vs, err := proof.IPP.VerificationScalars(v.t, n)
	if err != nil {
		return errors.Mark(err, ErrVerification)
	}

	w := flatten(v.constraints, z, n, m)
	yInvPow := pedersen.Powers(pedersen.Inv(y), n)
	xs := pedersen.Powers(x, 7)
	B, blind := v.params.B, v.params.Blind

	// t(x) check:
	// t_x*B + tau_x*B~ = x^2*(<wV,V> + (wc+delta)*B) + sum_{i!=2} x^i*T_i
	scalars := []Scalar{
		pedersen.Sub(proof.TX, pedersen.Mul(xs[2], pedersen.Add(w.wc, w.delta(yInvPow)))),
		proof.TXBlinding,
	}
	points := []Element{B, blind}
	for j := range v.V {
		scalars = append(scalars, pedersen.Neg(pedersen.Mul(xs[2], w.wV[j])))
		points = append(points, v.V[j])
	}
	for _, i := range tIndices {
		scalars = append(scalars, pedersen.Neg(xs[i]))
		points = append(points, T[i])
	}
	if !pedersen.MultiScalarMul(scalars, points).IsIdentity() {
		return errors.Wrap(ErrVerification, "polynomial check")
	}

	// Inner product check against
	// P = x*A_I + x^2*A_O + x^3*S - mu*B~ + <x*y^-n o wR, G>
	//     + <-1 + y^-n o (x*wL + wO), H> + t_x*w*B.
	G, H := v.params.Share(0, n)
	a, b := proof.IPP.A, proof.IPP.B
	scalars = scalars[:0]
	points = points[:0]
	for i := 0; i < n; i++ {
		gi := pedersen.Sub(pedersen.Mul(a, vs.S[i]), pedersen.Mul(xs[1], pedersen.Mul(yInvPow[i], w.wR[i])))
		inner := pedersen.Sub(pedersen.Sub(pedersen.Mul(b, vs.SInv(i)), pedersen.Mul(xs[1], w.wL[i])), w.wO[i])
		hi := pedersen.Add(pedersen.Mul(yInvPow[i], inner), pedersen.One())
		scalars = append(scalars, gi, hi)
		points = append(points, G[i], H[i])
	}
	scalars = append(scalars,
		pedersen.Mul(wc, pedersen.Sub(pedersen.Mul(a, b), proof.TX)),
		proof.EBlinding,
		pedersen.Neg(xs[1]),
		pedersen.Neg(xs[2]),
		pedersen.Neg(xs[3]),
	)
	points = append(points, B, blind, proof.AI, proof.AO, proof.S)
	for j := range proof.IPP.L {
		scalars = append(scalars, pedersen.Neg(vs.USq[j]), pedersen.Neg(vs.UInvSq[j]))
		points = append(points, proof.IPP.L[j], proof.IPP.R[j])
	}
	if !pedersen.MultiScalarMul(scalars, points).IsIdentity() {
		return errors.Wrap(ErrVerification, "inner product check")
	}
	return nil
}
