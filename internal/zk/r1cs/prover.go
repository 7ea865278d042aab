package r1cs

import (
	"io"

	"github.com/cockroachdb/errors"

	"zkcommit/internal/zk/generators"
	"zkcommit/internal/zk/ipp"
	"zkcommit/internal/zk/pedersen"
	"zkcommit/internal/zk/transcript"
)

var (
	ErrUnsatisfied    = errors.New("constraint system not satisfied by witness")
	ErrMalformedProof = errors.New("malformed r1cs proof")
	ErrVerification   = errors.New("r1cs verification failed")
	ErrUnknownVar     = errors.New("constraint references unallocated variable")
)

const domainSep = "r1cs v1"

type Prover struct {
	params      *generators.Params
	t           *transcript.Transcript
	v           []Scalar
	gamma       []Scalar
	V           []Element
	aL, aR, aO  []Scalar
	constraints []LinearCombination
}

// NewProver starts a prover on t. The caller has already appended the
// protocol label and any binding tag.
func NewProver(params *generators.Params, t *transcript.Transcript) *Prover {
	return &Prover{params: params, t: t}
}

// Commit adds a committed input and appends its commitment to the transcript.
func (p *Prover) Commit(v, blinding Scalar) (Element, Variable, error) {
	C, err := pedersen.Commit(v, blinding)
	if err != nil {
		return nil, Variable{}, err
	}
	if err := p.t.AppendPoint("V", C); err != nil {
		return nil, Variable{}, err
	}
	i := len(p.v)
	p.v = append(p.v, v)
	p.gamma = append(p.gamma, blinding)
	p.V = append(p.V, C)
	return C, Variable{Kind: VarCommitted, Index: i}, nil
}

func (p *Prover) Multiply(left, right LinearCombination) (Variable, Variable, Variable) {
	l := p.eval(left)
	r := p.eval(right)
	i := len(p.aL)
	p.aL = append(p.aL, l)
	p.aR = append(p.aR, r)
	p.aO = append(p.aO, pedersen.Mul(l, r))
	lv := Variable{Kind: VarMultiplierLeft, Index: i}
	rv := Variable{Kind: VarMultiplierRight, Index: i}
	ov := Variable{Kind: VarMultiplierOutput, Index: i}
	p.Constrain(left.Sub(lv.LC()))
	p.Constrain(right.Sub(rv.LC()))
	return lv, rv, ov
}

func (p *Prover) Constrain(lc LinearCombination) {
	p.constraints = append(p.constraints, lc)
}

// eval returns the witness value of lc. Unknown variables evaluate to zero
// here and are reported by Prove.
func (p *Prover) eval(lc LinearCombination) Scalar {
	out := pedersen.Zero()
	for _, t := range lc {
		var v Scalar
		i := t.Var.Index
		switch {
		case !validVar(t.Var, len(p.v), len(p.aL)):
			continue
		case t.Var.Kind == VarOne:
			v = pedersen.One()
		case t.Var.Kind == VarCommitted:
			v = p.v[i]
		case t.Var.Kind == VarMultiplierLeft:
			v = p.aL[i]
		case t.Var.Kind == VarMultiplierRight:
			v = p.aR[i]
		case t.Var.Kind == VarMultiplierOutput:
			v = p.aO[i]
		}
		out = pedersen.Add(out, pedersen.Mul(t.Coeff, v))
	}
	return out
}

func (p *Prover) check() error {
	for i, c := range p.constraints {
		for _, t := range c {
			if !validVar(t.Var, len(p.v), len(p.aL)) {
				return errors.Wrapf(ErrUnknownVar, "constraint %d", i)
			}
		}
		if !pedersen.IsZero(p.eval(c)) {
			return errors.Wrapf(ErrUnsatisfied, "constraint %d", i)
		}
	}
	return nil
}

// Prove produces the proof. All blinding factors are drawn from rng.
func (p *Prover) Prove(rng io.Reader) (*Proof, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	m := len(p.V)
	n := paddedLen(len(p.aL))
	if n > p.params.Bits {
		return nil, errors.Wrapf(generators.ErrInvalidParameters, "%d multipliers exceed capacity %d", n, p.params.Bits)
	}
	p.t.DomainSep(domainSep, uint64(m), uint64(len(p.aL)))

	aL := padZeros(p.aL, n)
	aR := padZeros(p.aR, n)
	aO := padZeros(p.aO, n)
	G, H := p.params.Share(0, n)
	B, blind := p.params.B, p.params.Blind

	blindings, err := pedersen.RandomScalars(rng, 3)
	if err != nil {
		return nil, err
	}
	alpha, beta, rho := blindings[0], blindings[1], blindings[2]
	sL, err := pedersen.RandomScalars(rng, n)
	if err != nil {
		return nil, err
	}
	sR, err := pedersen.RandomScalars(rng, n)
	if err != nil {
		return nil, err
	}

	AI := pedersen.MultiScalarMul(cat([]Scalar{alpha}, aL, aR), catE([]Element{blind}, G, H))
	AO := pedersen.MultiScalarMul(cat([]Scalar{beta}, aO), catE([]Element{blind}, G))
	S := pedersen.MultiScalarMul(cat([]Scalar{rho}, sL, sR), catE([]Element{blind}, G, H))
	for _, msg := range []struct {
		label string
		p     Element
	}{{"A_I", AI}, {"A_O", AO}, {"S", S}} {
		if err := p.t.ValidateAndAppendPoint(msg.label, msg.p); err != nil {
			return nil, errors.AssertionFailedf("prover commitment %s: %v", msg.label, err)
		}
	}

	y := p.t.ChallengeScalar("y")
	z := p.t.ChallengeScalar("z")
	w := flatten(p.constraints, z, n, m)

	yPow := pedersen.Powers(y, n)
	yInvPow := pedersen.Powers(pedersen.Inv(y), n)

	l1 := make([]Scalar, n)
	r0 := make([]Scalar, n)
	r1 := make([]Scalar, n)
	r3 := make([]Scalar, n)
	for i := 0; i < n; i++ {
		l1[i] = pedersen.Add(aL[i], pedersen.Mul(yInvPow[i], w.wR[i]))
		r0[i] = pedersen.Sub(w.wO[i], yPow[i])
		r1[i] = pedersen.Add(pedersen.Mul(yPow[i], aR[i]), w.wL[i])
		r3[i] = pedersen.Mul(yPow[i], sR[i])
	}
	l2, l3 := aO, sL

	ip := pedersen.InnerProduct
	tCoeffs := map[int]Scalar{
		1: ip(l1, r0),
		3: pedersen.Add(ip(l2, r1), ip(l3, r0)),
		4: pedersen.Add(ip(l1, r3), ip(l3, r1)),
		5: ip(l2, r3),
		6: ip(l3, r3),
	}
	tau := map[int]Scalar{}
	T := map[int]Element{}
	for _, i := range tIndices {
		ti, err := pedersen.RandomScalar(rng)
		if err != nil {
			return nil, err
		}
		tau[i] = ti
		T[i] = pedersen.MultiScalarMul([]Scalar{tCoeffs[i], ti}, []Element{B, blind})
		if err := p.t.ValidateAndAppendPoint(tLabels[i], T[i]); err != nil {
			return nil, errors.AssertionFailedf("prover commitment %s: %v", tLabels[i], err)
		}
	}

	x := p.t.ChallengeScalar("x")
	xs := pedersen.Powers(x, 7)

	tau[2] = pedersen.InnerProduct(w.wV, p.gamma)
	tBlind := pedersen.Mul(tau[2], xs[2])
	for _, i := range tIndices {
		tBlind = pedersen.Add(tBlind, pedersen.Mul(tau[i], xs[i]))
	}

	lx := make([]Scalar, n)
	rx := make([]Scalar, n)
	for i := 0; i < n; i++ {
		lx[i] = pedersen.Add(pedersen.Add(pedersen.Mul(l1[i], xs[1]), pedersen.Mul(l2[i], xs[2])), pedersen.Mul(l3[i], xs[3]))
		rx[i] = pedersen.Add(pedersen.Add(r0[i], pedersen.Mul(r1[i], xs[1])), pedersen.Mul(r3[i], xs[3]))
	}
	tx := pedersen.InnerProduct(lx, rx)
	mu := pedersen.Add(pedersen.Add(pedersen.Mul(alpha, xs[1]), pedersen.Mul(beta, xs[2])), pedersen.Mul(rho, xs[3]))

	for _, msg := range []struct {
		label string
		s     Scalar
	}{{"t_x", tx}, {"t_x_blinding", tBlind}, {"e_blinding", mu}} {
		if err := p.t.AppendScalar(msg.label, msg.s); err != nil {
			return nil, err
		}
	}

	wc := p.t.ChallengeScalar("w")
	Q := pedersen.Group().NewElement().Mul(B, wc)
	Hp := make([]Element, n)
	for i := range H {
		Hp[i] = pedersen.Group().NewElement().Mul(H[i], yInvPow[i])
	}
	inner, err := ipp.Prove(p.t, Q, G, Hp, lx, rx)
	if err != nil {
		return nil, err
	}
	return &Proof{
		AI: AI, AO: AO, S: S,
		T1: T[1], T3: T[3], T4: T[4], T5: T[5], T6: T[6],
		TX: tx, TXBlinding: tBlind, EBlinding: mu,
		IPP: inner,
	}, nil
}

var (
	tIndices = []int{1, 3, 4, 5, 6}
	tLabels  = map[int]string{1: "T_1", 3: "T_3", 4: "T_4", 5: "T_5", 6: "T_6"}
)

func padZeros(v []Scalar, n int) []Scalar {
	out := make([]Scalar, n)
	copy(out, v)
	for i := len(v); i < n; i++ {
		out[i] = pedersen.Zero()
	}
	return out
}

func cat(parts ...[]Scalar) []Scalar {
	var out []Scalar
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func catE(parts ...[]Element) []Element {
	var out []Element
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
