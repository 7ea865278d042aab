package zkp

import (
	"time"

	"github.com/cockroachdb/errors"

	"zkcommit/internal/zk/generators"
	"zkcommit/internal/zk/limbs"
	"zkcommit/internal/zk/pedersen"
	"zkcommit/internal/zk/rangeproof"
	"zkcommit/internal/zk/transcript"
)

const wideBits = 64

// ProveRange proves 0 <= value < 2^bits. With a nil blinding a fresh one is
// drawn; a caller-supplied blinding makes the commitment reproducible by
// anyone holding (value, blinding). The proof itself is randomized either way.
func (e *Engine) ProveRange(value uint64, blinding *[32]byte, tag []byte, bits int) (*Result, error) {
	start := time.Now()
	kind := KindRange
	res, err := func() (*Result, error) {
		if err := checkTag(tag); err != nil {
			return nil, err
		}
		params, err := generators.For(bits, 1)
		if err != nil {
			return nil, err
		}
		var gamma pedersen.Scalar
		if blinding != nil {
			gamma = pedersen.ScalarFromBytes(blinding[:])
		} else {
			r, err := e.randomBlindings(1)
			if err != nil {
				return nil, err
			}
			gamma = r[0]
		}
		t := transcript.New(kind.label())
		t.AppendBinding(tag)
		proof, V, err := rangeproof.Prove(params, t, []uint64{value}, []pedersen.Scalar{gamma}, bits, e.rng)
		if err != nil {
			return nil, proverFault(err, "range proof")
		}
		enc, err := proof.Bytes()
		if err != nil {
			return nil, proverFault(err, "encode proof")
		}
		commitments, err := encodeCommitments(V)
		if err != nil {
			return nil, err
		}
		res := &Result{Kind: kind, Commitments: commitments, Proof: enc}
		return e.finish(res, start, func() error {
			return e.verifyRange(res.Commitments, res.Proof, tag, bits, kind)
		})
	}()
	if err != nil {
		return nil, e.proveFailed(kind, err)
	}
	return res, nil
}

func (e *Engine) VerifyRange(commitment, proof, tag []byte, bits int) bool {
	return e.verified(KindRange, 1, len(proof), time.Now(), func() error {
		return e.verifyRange([][]byte{commitment}, proof, tag, bits, KindRange)
	})
}

// ProveWideRange splits secret into four 64-bit limbs and proves all of them
// in range with one aggregated proof. Limb blindings are always drawn from
// the engine's randomness source; they cannot be supplied.
func (e *Engine) ProveWideRange(secret [32]byte, tag []byte) (*Result, error) {
	start := time.Now()
	kind := KindWideRange
	res, err := func() (*Result, error) {
		if err := checkTag(tag); err != nil {
			return nil, err
		}
		params, err := generators.For(wideBits, limbs.Count)
		if err != nil {
			return nil, err
		}
		blind, err := e.randomBlindings(limbs.Count)
		if err != nil {
			return nil, err
		}
		l := limbs.Split(secret)
		t := transcript.New(kind.label())
		t.AppendBinding(tag)
		proof, V, err := rangeproof.Prove(params, t, l[:], blind, wideBits, e.rng)
		if err != nil {
			return nil, proverFault(err, "wide range proof")
		}
		enc, err := proof.Bytes()
		if err != nil {
			return nil, proverFault(err, "encode proof")
		}
		commitments, err := encodeCommitments(V)
		if err != nil {
			return nil, err
		}
		res := &Result{Kind: kind, Commitments: commitments, Proof: enc}
		return e.finish(res, start, func() error {
			return e.verifyRange(res.Commitments, res.Proof, tag, wideBits, kind)
		})
	}()
	if err != nil {
		return nil, e.proveFailed(kind, err)
	}
	return res, nil
}

func (e *Engine) VerifyWideRange(commitments [][]byte, proof, tag []byte) bool {
	return e.verified(KindWideRange, len(commitments), len(proof), time.Now(), func() error {
		if len(commitments) != limbs.Count {
			return inputErrorf("expected %d commitments, got %d", limbs.Count, len(commitments))
		}
		return e.verifyRange(commitments, proof, tag, wideBits, KindWideRange)
	})
}

func (e *Engine) verifyRange(commitments [][]byte, proof, tag []byte, bits int, kind Kind) error {
	if err := checkTag(tag); err != nil {
		return err
	}
	if err := e.checkProofLen(proof); err != nil {
		return err
	}
	V, err := decodeCommitments(commitments)
	if err != nil {
		return err
	}
	p, err := rangeproof.FromBytes(proof)
	if err != nil {
		return errors.Mark(err, ErrMalformedProof)
	}
	params, err := generators.For(bits, len(V))
	if err != nil {
		return err
	}
	t := transcript.New(kind.label())
	t.AppendBinding(tag)
	if err := rangeproof.Verify(params, t, V, p, bits); err != nil {
		return errors.Mark(err, ErrVerification)
	}
	return nil
}
