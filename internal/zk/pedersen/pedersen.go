package pedersen

import (
	"sync"

	"github.com/cloudflare/circl/group"
	"github.com/cockroachdb/errors"
)

type Scalar = group.Scalar
type Element = group.Element

const (
	pedersenDST = "zkcommit/zk/pedersen"
)

var (
	gOnce sync.Once
	gElem Element
	hElem Element
	gErr  error
)

func Group() group.Group {
	return group.Ristretto255
}

// Generators returns the value base B and the blinding base B~. Both are
// derived by hashing to the curve, so nobody knows their relative discrete log.
func Generators() (Element, Element, error) {
	gOnce.Do(func() {
		g := Group().HashToElement([]byte("zkcommit/zk/pedersen/B"), []byte(pedersenDST))
		h := Group().HashToElement([]byte("zkcommit/zk/pedersen/B_blinding"), []byte(pedersenDST))
		if g.IsIdentity() {
			gErr = errors.New("pedersen B is identity")
			return
		}
		if h.IsIdentity() {
			gErr = errors.New("pedersen B_blinding is identity")
			return
		}
		if g.IsEqual(h) {
			gErr = errors.New("pedersen B == B_blinding")
			return
		}
		gElem = g
		hElem = h
	})
	if gErr != nil {
		return nil, nil, gErr
	}
	return gElem.Copy(), hElem.Copy(), nil
}

// Commit computes value*B + blinding*B~. Equal inputs always give equal
// commitments.
func Commit(value, blinding Scalar) (Element, error) {
	if err := checkScalar(value); err != nil {
		return nil, errors.Wrap(err, "value")
	}
	if err := checkScalar(blinding); err != nil {
		return nil, errors.Wrap(err, "blinding")
	}
	g, h, err := Generators()
	if err != nil {
		return nil, err
	}
	return commit(g, h, value, blinding), nil
}

// CommitBatch commits to each value under its own blinding, in order.
func CommitBatch(values, blindings []Scalar) ([]Element, error) {
	if len(values) == 0 {
		return nil, errors.New("empty vector")
	}
	if len(values) != len(blindings) {
		return nil, errors.Newf("dimension mismatch: %d values, %d blindings", len(values), len(blindings))
	}
	g, h, err := Generators()
	if err != nil {
		return nil, err
	}
	C := make([]Element, len(values))
	for i := range values {
		if err := checkScalar(values[i]); err != nil {
			return nil, errors.Wrapf(err, "value %d", i)
		}
		if err := checkScalar(blindings[i]); err != nil {
			return nil, errors.Wrapf(err, "blinding %d", i)
		}
		C[i] = commit(g, h, values[i], blindings[i])
	}
	return C, nil
}

func checkScalar(s Scalar) error {
	if s == nil {
		return errors.New("nil scalar")
	}
	if s.Group() != Group() {
		return errors.New("scalar group mismatch")
	}
	return nil
}

func commit(g, h Element, x, r Scalar) Element {
	gx := Group().NewElement().Mul(g, x)
	hr := Group().NewElement().Mul(h, r)
	return Group().NewElement().Add(gx, hr)
}
