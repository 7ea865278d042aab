// Package transcript wraps a merlin transcript with the message shapes the
// provers append. Prover and verifier must append byte-identical messages in
// the same order: protocol label, binding tag, commitments, protocol rounds.
package transcript

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/gtank/merlin"

	"zkcommit/internal/zk/pedersen"
)

const bindLabel = "bind"

var ErrIdentityPoint = errors.New("identity point in transcript")

type Transcript struct {
	t *merlin.Transcript
}

func New(label string) *Transcript {
	return &Transcript{t: merlin.NewTranscript(label)}
}

// AppendBinding folds an application binding tag into the transcript. A nil
// or empty tag appends nothing.
func (t *Transcript) AppendBinding(tag []byte) {
	if len(tag) == 0 {
		return
	}
	t.t.AppendMessage([]byte(bindLabel), tag)
}

func (t *Transcript) AppendMessage(label string, msg []byte) {
	t.t.AppendMessage([]byte(label), msg)
}

func (t *Transcript) AppendU64(label string, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	t.t.AppendMessage([]byte(label), buf[:])
}

// DomainSep marks the start of a sub-protocol, with its size parameters.
func (t *Transcript) DomainSep(name string, fields ...uint64) {
	t.t.AppendMessage([]byte("dom-sep"), []byte(name))
	for _, f := range fields {
		t.AppendU64("n", f)
	}
}

func (t *Transcript) AppendPoint(label string, p pedersen.Element) error {
	b, err := pedersen.EncodeElement(p)
	if err != nil {
		return err
	}
	t.t.AppendMessage([]byte(label), b)
	return nil
}

// ValidateAndAppendPoint rejects the identity before appending.
func (t *Transcript) ValidateAndAppendPoint(label string, p pedersen.Element) error {
	if p == nil || p.IsIdentity() {
		return errors.Wrap(ErrIdentityPoint, label)
	}
	return t.AppendPoint(label, p)
}

func (t *Transcript) AppendScalar(label string, s pedersen.Scalar) error {
	b, err := pedersen.EncodeScalar(s)
	if err != nil {
		return err
	}
	t.t.AppendMessage([]byte(label), b)
	return nil
}

// ChallengeScalar squeezes 64 bytes and reduces them modulo the group order.
func (t *Transcript) ChallengeScalar(label string) pedersen.Scalar {
	return pedersen.ScalarFromBytes(t.t.ExtractBytes([]byte(label), 64))
}

// ChallengeBytes squeezes n raw bytes.
func (t *Transcript) ChallengeBytes(label string, n int) []byte {
	return t.t.ExtractBytes([]byte(label), n)
}
