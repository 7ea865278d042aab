// Package rangeproof implements aggregated Bulletproofs range proofs: m
// committed values, each shown to lie in [0, 2^n), in one proof whose size
// grows with log2(n*m).
package rangeproof

import (
	"io"

	"github.com/cockroachdb/errors"

	"zkcommit/internal/zk/generators"
	"zkcommit/internal/zk/ipp"
	"zkcommit/internal/zk/pedersen"
	"zkcommit/internal/zk/transcript"
)

type (
	Scalar  = pedersen.Scalar
	Element = pedersen.Element
)

var (
	ErrValueOutOfRange = errors.New("value out of range")
	ErrMalformedProof  = errors.New("malformed range proof")
	ErrVerification    = errors.New("range proof verification failed")
)

const domainSep = "rangeproof v1"

func checkShape(params *generators.Params, bits, m int) error {
	if err := generators.Validate(bits, m); err != nil {
		return err
	}
	if bits > params.Bits || m > params.Parties {
		return errors.Wrapf(generators.ErrInvalidParameters,
			"%d bits x %d parties exceeds generators %d x %d", bits, m, params.Bits, params.Parties)
	}
	return nil
}

// Prove commits to values under blindings and proves each lies in
// [0, 2^bits). Commitments are appended to t before the protocol messages.
func Prove(params *generators.Params, t *transcript.Transcript, values []uint64, blindings []Scalar, bits int, rng io.Reader) (*Proof, []Element, error) {
	m := len(values)
	if err := checkShape(params, bits, m); err != nil {
		return nil, nil, err
	}
	if len(blindings) != m {
		return nil, nil, errors.Newf("dimension mismatch: %d values, %d blindings", m, len(blindings))
	}
	for j, v := range values {
		if bits < 64 && v>>uint(bits) != 0 {
			return nil, nil, errors.Wrapf(ErrValueOutOfRange, "value %d does not fit in %d bits", j, bits)
		}
	}

	vScalars := make([]Scalar, m)
	for j, v := range values {
		vScalars[j] = pedersen.ScalarFromUint64(v)
	}
	V, err := pedersen.CommitBatch(vScalars, blindings)
	if err != nil {
		return nil, nil, err
	}
	for _, c := range V {
		if err := t.AppendPoint("V", c); err != nil {
			return nil, nil, err
		}
	}
	t.DomainSep(domainSep, uint64(bits), uint64(m))

	nm := bits * m
	G, H := params.Flat(m)
	G, H = shrink(G, H, params.Bits, bits, m)
	B, blind := params.B, params.Blind

	aL := make([]Scalar, nm)
	aR := make([]Scalar, nm)
	minusOne := pedersen.Neg(pedersen.One())
	for j, v := range values {
		for i := 0; i < bits; i++ {
			if (v>>uint(i))&1 == 1 {
				aL[j*bits+i] = pedersen.One()
				aR[j*bits+i] = pedersen.Zero()
			} else {
				aL[j*bits+i] = pedersen.Zero()
				aR[j*bits+i] = minusOne
			}
		}
	}

	rs, err := pedersen.RandomScalars(rng, 2)
	if err != nil {
		return nil, nil, err
	}
	alpha, rho := rs[0], rs[1]
	sL, err := pedersen.RandomScalars(rng, nm)
	if err != nil {
		return nil, nil, err
	}
	sR, err := pedersen.RandomScalars(rng, nm)
	if err != nil {
		return nil, nil, err
	}

	A := pedersen.MultiScalarMul(cat([]Scalar{alpha}, aL, aR), catE([]Element{blind}, G, H))
	S := pedersen.MultiScalarMul(cat([]Scalar{rho}, sL, sR), catE([]Element{blind}, G, H))
	if err := t.ValidateAndAppendPoint("A", A); err != nil {
		return nil, nil, errors.AssertionFailedf("bit commitment: %v", err)
	}
	if err := t.ValidateAndAppendPoint("S", S); err != nil {
		return nil, nil, errors.AssertionFailedf("blinding commitment: %v", err)
	}
	y := t.ChallengeScalar("y")
	z := t.ChallengeScalar("z")

	yPow := pedersen.Powers(y, nm)
	twoPow := powersOfTwo(bits)
	zPow := pedersen.Powers(z, m+3)

	l0 := make([]Scalar, nm)
	r0 := make([]Scalar, nm)
	r1 := make([]Scalar, nm)
	for i := 0; i < nm; i++ {
		j := i / bits
		l0[i] = pedersen.Sub(aL[i], z)
		d := pedersen.Mul(zPow[2+j], twoPow[i%bits])
		r0[i] = pedersen.Add(pedersen.Mul(yPow[i], pedersen.Add(aR[i], z)), d)
		r1[i] = pedersen.Mul(yPow[i], sR[i])
	}
	l1 := sL

	t1 := pedersen.Add(pedersen.InnerProduct(l0, r1), pedersen.InnerProduct(l1, r0))
	t2 := pedersen.InnerProduct(l1, r1)
	taus, err := pedersen.RandomScalars(rng, 2)
	if err != nil {
		return nil, nil, err
	}
	tau1, tau2 := taus[0], taus[1]
	T1 := pedersen.MultiScalarMul([]Scalar{t1, tau1}, []Element{B, blind})
	T2 := pedersen.MultiScalarMul([]Scalar{t2, tau2}, []Element{B, blind})
	if err := t.ValidateAndAppendPoint("T_1", T1); err != nil {
		return nil, nil, errors.AssertionFailedf("polynomial commitment: %v", err)
	}
	if err := t.ValidateAndAppendPoint("T_2", T2); err != nil {
		return nil, nil, errors.AssertionFailedf("polynomial commitment: %v", err)
	}
	x := t.ChallengeScalar("x")

	tauX := pedersen.Add(pedersen.Mul(tau2, pedersen.Mul(x, x)), pedersen.Mul(tau1, x))
	for j := 0; j < m; j++ {
		tauX = pedersen.Add(tauX, pedersen.Mul(zPow[2+j], blindings[j]))
	}
	mu := pedersen.Add(alpha, pedersen.Mul(rho, x))
	lx := make([]Scalar, nm)
	rx := make([]Scalar, nm)
	for i := 0; i < nm; i++ {
		lx[i] = pedersen.Add(l0[i], pedersen.Mul(l1[i], x))
		rx[i] = pedersen.Add(r0[i], pedersen.Mul(r1[i], x))
	}
	tx := pedersen.InnerProduct(lx, rx)

	for _, msg := range []struct {
		label string
		s     Scalar
	}{{"t_x", tx}, {"t_x_blinding", tauX}, {"e_blinding", mu}} {
		if err := t.AppendScalar(msg.label, msg.s); err != nil {
			return nil, nil, err
		}
	}
	w := t.ChallengeScalar("w")
	Q := pedersen.Group().NewElement().Mul(B, w)

	yInvPow := pedersen.Powers(pedersen.Inv(y), nm)
	Hp := make([]Element, nm)
	for i := range H {
		Hp[i] = pedersen.Group().NewElement().Mul(H[i], yInvPow[i])
	}
	inner, err := ipp.Prove(t, Q, G, Hp, lx, rx)
	if err != nil {
		return nil, nil, err
	}
	return &Proof{
		A: A, S: S, T1: T1, T2: T2,
		TX: tx, TXBlinding: tauX, EBlinding: mu,
		IPP: inner,
	}, V, nil
}

// Verify checks proof for the commitments V, appending them to t first.
func Verify(params *generators.Params, t *transcript.Transcript, V []Element, proof *Proof, bits int) error {
	if proof == nil || proof.IPP == nil {
		return ErrMalformedProof
	}
	m := len(V)
	if err := checkShape(params, bits, m); err != nil {
		return err
	}
	for _, c := range V {
		if err := t.AppendPoint("V", c); err != nil {
			return errors.Mark(err, ErrVerification)
		}
	}
	t.DomainSep(domainSep, uint64(bits), uint64(m))

	if err := t.ValidateAndAppendPoint("A", proof.A); err != nil {
		return errors.Mark(err, ErrVerification)
	}
	if err := t.ValidateAndAppendPoint("S", proof.S); err != nil {
		return errors.Mark(err, ErrVerification)
	}
	y := t.ChallengeScalar("y")
	z := t.ChallengeScalar("z")
	if err := t.ValidateAndAppendPoint("T_1", proof.T1); err != nil {
		return errors.Mark(err, ErrVerification)
	}
	if err := t.ValidateAndAppendPoint("T_2", proof.T2); err != nil {
		return errors.Mark(err, ErrVerification)
	}
	x := t.ChallengeScalar("x")
	for _, msg := range []struct {
		label string
		s     Scalar
	}{{"t_x", proof.TX}, {"t_x_blinding", proof.TXBlinding}, {"e_blinding", proof.EBlinding}} {
		if err := t.AppendScalar(msg.label, msg.s); err != nil {
			return errors.Mark(err, ErrMalformedProof)
		}
	}
	w := t.ChallengeScalar("w")

	nm := bits * m
	vs, err := proof.IPP.VerificationScalars(t, nm)
	if err != nil {
		return errors.Mark(err, ErrVerification)
	}

	B, blind := params.B, params.Blind
	zPow := pedersen.Powers(z, m+3)
	zz := zPow[2]

	// t(x) check: t_x*B + tau_x*B~ = sum_j z^(2+j)*V_j + delta*B + x*T1 + x^2*T2
	sumTwo := pedersen.ScalarFromUint64(^uint64(0) >> uint(64-bits))
	delta := pedersen.Mul(pedersen.Sub(z, zz), pedersen.SumOfPowers(y, nm))
	for j := 0; j < m; j++ {
		delta = pedersen.Sub(delta, pedersen.Mul(zPow[3+j], sumTwo))
	}
	scalars := []Scalar{
		pedersen.Sub(proof.TX, delta),
		proof.TXBlinding,
		pedersen.Neg(x),
		pedersen.Neg(pedersen.Mul(x, x)),
	}
	points := []Element{B, blind, proof.T1, proof.T2}
	for j := 0; j < m; j++ {
		scalars = append(scalars, pedersen.Neg(zPow[2+j]))
		points = append(points, V[j])
	}
	if !pedersen.MultiScalarMul(scalars, points).IsIdentity() {
		return errors.Wrap(ErrVerification, "polynomial check")
	}

	// Inner product check against
	// P = A + x*S - mu*B~ - z*<1,G> + <z + y^-i*d_i, H> + t_x*w*B.
	G, H := params.Flat(m)
	G, H = shrink(G, H, params.Bits, bits, m)
	yInvPow := pedersen.Powers(pedersen.Inv(y), nm)
	twoPow := powersOfTwo(bits)
	a, b := proof.IPP.A, proof.IPP.B
	scalars = scalars[:0]
	points = points[:0]
	for i := 0; i < nm; i++ {
		d := pedersen.Mul(zPow[2+i/bits], twoPow[i%bits])
		gi := pedersen.Add(pedersen.Mul(a, vs.S[i]), z)
		hi := pedersen.Sub(pedersen.Mul(yInvPow[i], pedersen.Sub(pedersen.Mul(b, vs.SInv(i)), d)), z)
		scalars = append(scalars, gi, hi)
		points = append(points, G[i], H[i])
	}
	scalars = append(scalars,
		pedersen.Mul(w, pedersen.Sub(pedersen.Mul(a, b), proof.TX)),
		proof.EBlinding,
		pedersen.Neg(pedersen.One()),
		pedersen.Neg(x),
	)
	points = append(points, B, blind, proof.A, proof.S)
	for j := range proof.IPP.L {
		scalars = append(scalars, pedersen.Neg(vs.USq[j]), pedersen.Neg(vs.UInvSq[j]))
		points = append(points, proof.IPP.L[j], proof.IPP.R[j])
	}
	if !pedersen.MultiScalarMul(scalars, points).IsIdentity() {
		return errors.Wrap(ErrVerification, "inner product check")
	}
	return nil
}

// shrink keeps the first bits generators of each party when the parameters
// were built for a wider bit width.
func shrink(G, H []Element, capacity, bits, m int) ([]Element, []Element) {
	if capacity == bits {
		return G, H
	}
	g := make([]Element, 0, bits*m)
	h := make([]Element, 0, bits*m)
	for j := 0; j < m; j++ {
		g = append(g, G[j*capacity:j*capacity+bits]...)
		h = append(h, H[j*capacity:j*capacity+bits]...)
	}
	return g, h
}

func powersOfTwo(n int) []Scalar {
	out := make([]Scalar, n)
	for i := range out {
		out[i] = pedersen.ScalarFromUint64(uint64(1) << uint(i))
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
