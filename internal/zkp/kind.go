package zkp

import (
	"github.com/cockroachdb/errors"
)

// Kind is the closed set of statement shapes the engine can prove.
type Kind uint8

const (
	KindKnowledge Kind = iota + 1
	KindRange
	KindWideRange
	KindWideKnowledge
)

func (k Kind) String() string {
	switch k {
	case KindKnowledge:
		return "knowledge"
	case KindRange:
		return "range"
	case KindWideRange:
		return "wide_range"
	case KindWideKnowledge:
		return "wide_knowledge"
	}
	return "unknown"
}

func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{KindKnowledge, KindRange, KindWideRange, KindWideKnowledge} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, inputErrorf("unknown proof kind %q", s)
}

// Transcript labels, one per protocol.
const (
	labelKnowledge     = "zkcommit/knowledge/v1"
	labelWideKnowledge = "zkcommit/knowledge-4limb/v1"
	labelRange         = "zkcommit/range/v1"
	labelWideRange     = "zkcommit/wide-range/v1"
)

func (k Kind) label() string {
	switch k {
	case KindKnowledge:
		return labelKnowledge
	case KindRange:
		return labelRange
	case KindWideRange:
		return labelWideRange
	case KindWideKnowledge:
		return labelWideKnowledge
	}
	return ""
}

// Statement is one of Knowledge, Range, WideRange or WideKnowledge.
type Statement interface {
	Kind() Kind
	isStatement()
}

// Knowledge proves an opening of one commitment; with Target set it also
// proves the committed value equals Target (reduced mod the group order).
type Knowledge struct {
	Target *[32]byte
}

// Range proves 0 <= value < 2^Bits.
type Range struct {
	Bits int
}

// WideRange proves each of four 64-bit limbs of a 256-bit secret is in range.
type WideRange struct{}

// WideKnowledge commits four limbs under self-equality constraints only. It
// does not prove range or opening; see ProveWideKnowledge.
type WideKnowledge struct{}

func (Knowledge) Kind() Kind     { return KindKnowledge }
func (Range) Kind() Kind         { return KindRange }
func (WideRange) Kind() Kind     { return KindWideRange }
func (WideKnowledge) Kind() Kind { return KindWideKnowledge }

func (Knowledge) isStatement()     {}
func (Range) isStatement()         {}
func (WideRange) isStatement()     {}
func (WideKnowledge) isStatement() {}

// Witness carries the secret side of a statement. Secret is used by the
// knowledge and wide kinds; Value and Blinding by Range.
type Witness struct {
	Secret   [32]byte
	Value    uint64
	Blinding *[32]byte
	Tag      []byte
}

// Prove dispatches on the statement shape.
func (e *Engine) Prove(stmt Statement, w Witness) (*Result, error) {
	switch s := stmt.(type) {
	case Knowledge:
		if s.Target != nil {
			return e.ProveEquality(w.Secret, *s.Target, w.Tag)
		}
		return e.ProveKnowledge(w.Secret, w.Tag)
	case Range:
		return e.ProveRange(w.Value, w.Blinding, w.Tag, s.Bits)
	case WideRange:
		return e.ProveWideRange(w.Secret, w.Tag)
	case WideKnowledge:
		return e.ProveWideKnowledge(w.Secret, w.Tag)
	}
	return nil, errors.AssertionFailedf("unhandled statement %T", stmt)
}

// Verify dispatches on the statement shape. Single-value kinds expect exactly
// one commitment.
func (e *Engine) Verify(stmt Statement, commitments [][]byte, proof, tag []byte) bool {
	switch s := stmt.(type) {
	case Knowledge:
		if len(commitments) != 1 {
			return e.rejectShape(s.Kind(), len(commitments))
		}
		if s.Target != nil {
			return e.VerifyEquality(commitments[0], proof, *s.Target, tag)
		}
		return e.VerifyKnowledge(commitments[0], proof, tag)
	case Range:
		if len(commitments) != 1 {
			return e.rejectShape(s.Kind(), len(commitments))
		}
		return e.VerifyRange(commitments[0], proof, tag, s.Bits)
	case WideRange:
		return e.VerifyWideRange(commitments, proof, tag)
	case WideKnowledge:
		return e.VerifyWideKnowledge(commitments, proof, tag)
	}
	return false
}
