// Package generators derives the public vector bases used by the range and
// constraint provers. Parameters depend only on (label, bits, parties) and
// are built once per key; callers must treat them as read-only.
package generators

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"zkcommit/internal/zk/pedersen"
)

const (
	DefaultLabel = "zkcommit/zk/generators/v1"
	MaxParties   = 64
)

var ErrInvalidParameters = errors.New("invalid generator parameters")

type Element = pedersen.Element

// Params holds the Pedersen bases plus per-party vector bases G[j][i], H[j][i].
type Params struct {
	Label   string
	Bits    int
	Parties int
	B       Element
	Blind   Element
	G       [][]Element
	H       [][]Element
}

// Flat returns the first m parties' bases concatenated party-major. The
// slices are fresh; the elements are shared and must not be mutated.
func (p *Params) Flat(m int) ([]Element, []Element) {
	G := make([]Element, 0, m*p.Bits)
	H := make([]Element, 0, m*p.Bits)
	for j := 0; j < m; j++ {
		G = append(G, p.G[j]...)
		H = append(H, p.H[j]...)
	}
	return G, H
}

// Share returns the first n bases of party j.
func (p *Params) Share(j, n int) ([]Element, []Element) {
	G := make([]Element, n)
	H := make([]Element, n)
	copy(G, p.G[j][:n])
	copy(H, p.H[j][:n])
	return G, H
}

func ValidBits(bits int) bool {
	switch bits {
	case 8, 16, 32, 64:
		return true
	}
	return false
}

func Validate(bits, parties int) error {
	if !ValidBits(bits) {
		return errors.Wrapf(ErrInvalidParameters, "bit width %d not in {8,16,32,64}", bits)
	}
	if parties < 1 || parties > MaxParties || parties&(parties-1) != 0 {
		return errors.Wrapf(ErrInvalidParameters, "party count %d must be a power of two in [1,%d]", parties, MaxParties)
	}
	return nil
}

type key struct {
	label   string
	bits    int
	parties int
}

type cache struct {
	mu      sync.Mutex
	entries atomic.Pointer[map[key]*Params]
}

var defaultCache cache

// For returns the parameters for (bits, parties) under the default label.
func For(bits, parties int) (*Params, error) {
	return defaultCache.get(DefaultLabel, bits, parties)
}

// ForLabel is For with an explicit derivation label.
func ForLabel(label string, bits, parties int) (*Params, error) {
	return defaultCache.get(label, bits, parties)
}

func (c *cache) get(label string, bits, parties int) (*Params, error) {
	if err := Validate(bits, parties); err != nil {
		return nil, err
	}
	k := key{label: label, bits: bits, parties: parties}
	if m := c.entries.Load(); m != nil {
		if p, ok := (*m)[k]; ok {
			return p, nil
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	old := c.entries.Load()
	if old != nil {
		if p, ok := (*old)[k]; ok {
			return p, nil
		}
	}
	p, err := Build(label, bits, parties)
	if err != nil {
		return nil, err
	}
	next := make(map[key]*Params, 1)
	if old != nil {
		for kk, vv := range *old {
			next[kk] = vv
		}
	}
	next[k] = p
	c.entries.Store(&next)
	return p, nil
}

// Build derives parameters without touching the cache.
func Build(label string, bits, parties int) (*Params, error) {
	if err := Validate(bits, parties); err != nil {
		return nil, err
	}
	B, blind, err := pedersen.Generators()
	if err != nil {
		return nil, err
	}
	p := &Params{
		Label:   label,
		Bits:    bits,
		Parties: parties,
		B:       B,
		Blind:   blind,
		G:       make([][]Element, parties),
		H:       make([][]Element, parties),
	}
	g := pedersen.Group()
	dst := []byte(label)
	for j := 0; j < parties; j++ {
		p.G[j] = make([]Element, bits)
		p.H[j] = make([]Element, bits)
		for i := 0; i < bits; i++ {
			p.G[j][i] = g.HashToElement(seed('G', j, i), dst)
			p.H[j][i] = g.HashToElement(seed('H', j, i), dst)
			if p.G[j][i].IsIdentity() || p.H[j][i].IsIdentity() {
				return nil, errors.AssertionFailedf("identity generator at party %d index %d", j, i)
			}
		}
	}
	return p, nil
}

func seed(kind byte, party, index int) []byte {
	var buf [9]byte
	buf[0] = kind
	binary.LittleEndian.PutUint32(buf[1:5], uint32(party))
	binary.LittleEndian.PutUint32(buf[5:9], uint32(index))
	return buf[:]
}
