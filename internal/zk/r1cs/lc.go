// Package r1cs is a rank-1 constraint system prover and verifier over
// Pedersen-committed inputs, in the Bulletproofs style. Constraints are linear
// combinations asserted to equal zero; multiplication gates relate the left,
// right and output wires.
package r1cs

import (
	"zkcommit/internal/zk/pedersen"
)

type (
	Scalar  = pedersen.Scalar
	Element = pedersen.Element
)

type VarKind uint8

const (
	VarOne VarKind = iota
	VarCommitted
	VarMultiplierLeft
	VarMultiplierRight
	VarMultiplierOutput
)

type Variable struct {
	Kind  VarKind
	Index int
}

// One is the constant-one wire.
func One() Variable {
	return Variable{Kind: VarOne}
}

// LC lifts a variable into a linear combination with coefficient one.
func (v Variable) LC() LinearCombination {
	return LinearCombination{{Var: v, Coeff: pedersen.One()}}
}

type Term struct {
	Var   Variable
	Coeff Scalar
}

type LinearCombination []Term

// Constant is c times the one wire.
func Constant(c Scalar) LinearCombination {
	return LinearCombination{{Var: One(), Coeff: c}}
}

func (lc LinearCombination) Add(o LinearCombination) LinearCombination {
	out := make(LinearCombination, 0, len(lc)+len(o))
	out = append(out, lc...)
	return append(out, o...)
}

func (lc LinearCombination) Sub(o LinearCombination) LinearCombination {
	return lc.Add(o.Neg())
}

func (lc LinearCombination) Neg() LinearCombination {
	out := make(LinearCombination, len(lc))
	for i, t := range lc {
		out[i] = Term{Var: t.Var, Coeff: pedersen.Neg(t.Coeff)}
	}
	return out
}

func (lc LinearCombination) Scale(s Scalar) LinearCombination {
	out := make(LinearCombination, len(lc))
	for i, t := range lc {
		out[i] = Term{Var: t.Var, Coeff: pedersen.Mul(t.Coeff, s)}
	}
	return out
}

// ConstraintSystem is what gadgets are written against; both the prover and
// the verifier implement it.
type ConstraintSystem interface {
	Multiply(left, right LinearCombination) (Variable, Variable, Variable)
	Constrain(lc LinearCombination)
}

// weights are the constraints flattened with powers of z, so that
// <wL,aL> + <wR,aR> + <wO,aO> = <wV,v> + wc holds for a satisfying witness.
type weights struct {
	wL, wR, wO []Scalar
	wV         []Scalar
	wc         Scalar
}

func flatten(constraints []LinearCombination, z Scalar, n, m int) *weights {
	w := &weights{
		wL: zeros(n),
		wR: zeros(n),
		wO: zeros(n),
		wV: zeros(m),
		wc: pedersen.Zero(),
	}
	zq := z
	for _, c := range constraints {
		for _, t := range c {
			k := pedersen.Mul(zq, t.Coeff)
			i := t.Var.Index
			switch t.Var.Kind {
			case VarMultiplierLeft:
				w.wL[i] = pedersen.Add(w.wL[i], k)
			case VarMultiplierRight:
				w.wR[i] = pedersen.Add(w.wR[i], k)
			case VarMultiplierOutput:
				w.wO[i] = pedersen.Add(w.wO[i], k)
			case VarCommitted:
				w.wV[i] = pedersen.Sub(w.wV[i], k)
			case VarOne:
				w.wc = pedersen.Sub(w.wc, k)
			}
		}
		zq = pedersen.Mul(zq, z)
	}
	return w
}

// delta is <y^-n o wR, wL>.
func (w *weights) delta(yInv []Scalar) Scalar {
	out := pedersen.Zero()
	for i := range w.wL {
		out = pedersen.Add(out, pedersen.Mul(pedersen.Mul(yInv[i], w.wR[i]), w.wL[i]))
	}
	return out
}

func zeros(n int) []Scalar {
	out := make([]Scalar, n)
	for i := range out {
		out[i] = pedersen.Zero()
	}
	return out
}

// paddedLen rounds the multiplier count up to a power of two, minimum one.
func paddedLen(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// validVar reports whether v refers to an allocated wire.
func validVar(v Variable, committed, multipliers int) bool {
	switch v.Kind {
	case VarOne:
		return true
	case VarCommitted:
		return v.Index >= 0 && v.Index < committed
	case VarMultiplierLeft, VarMultiplierRight, VarMultiplierOutput:
		return v.Index >= 0 && v.Index < multipliers
	}
	return false
}
