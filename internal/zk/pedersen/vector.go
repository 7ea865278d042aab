package pedersen

// Vector helpers shared by the provers. Every helper allocates its result;
// receivers are never aliased with operands.

func InnerProduct(a, b []Scalar) Scalar {
	out := Zero()
	for i := range a {
		out = Add(out, Mul(a[i], b[i]))
	}
	return out
}

// Powers returns [1, x, x^2, ..., x^(n-1)].
func Powers(x Scalar, n int) []Scalar {
	out := make([]Scalar, n)
	if n == 0 {
		return out
	}
	out[0] = One()
	for i := 1; i < n; i++ {
		out[i] = Group().NewScalar().Mul(out[i-1], x)
	}
	return out
}

// SumOfPowers returns 1 + x + ... + x^(n-1).
func SumOfPowers(x Scalar, n int) Scalar {
	out := Zero()
	p := One()
	for i := 0; i < n; i++ {
		out = Add(out, p)
		p = Mul(p, x)
	}
	return out
}

// MultiScalarMul computes sum(scalars[i] * points[i]).
func MultiScalarMul(scalars []Scalar, points []Element) Element {
	acc := Group().Identity()
	tmp := Group().NewElement()
	for i := range scalars {
		tmp.Mul(points[i], scalars[i])
		acc = Group().NewElement().Add(acc, tmp)
	}
	return acc
}

func Add(a, b Scalar) Scalar { return Group().NewScalar().Add(a, b) }
func Sub(a, b Scalar) Scalar { return Group().NewScalar().Sub(a, b) }
func Mul(a, b Scalar) Scalar { return Group().NewScalar().Mul(a, b) }
func Neg(a Scalar) Scalar    { return Group().NewScalar().Neg(a) }

func Inv(a Scalar) Scalar { return Group().NewScalar().Inv(a) }

func IsZero(a Scalar) bool { return a.IsEqual(Zero()) }
