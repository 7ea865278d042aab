package zkp

import (
	"time"

	"github.com/cockroachdb/errors"

	"zkcommit/internal/zk/generators"
	"zkcommit/internal/zk/limbs"
	"zkcommit/internal/zk/pedersen"
	"zkcommit/internal/zk/r1cs"
	"zkcommit/internal/zk/transcript"
)

// Constraint-system capacity; the circuits below use at most one multiplier.
const (
	knowledgeBits = 64
)

// knowledgeGadget routes the committed value through a multiplication gate,
// so the proof depends on an opening of the commitment. A non-nil target
// adds x == target.
func knowledgeGadget(cs r1cs.ConstraintSystem, x r1cs.Variable, target pedersen.Scalar) {
	_, _, o := cs.Multiply(x.LC(), r1cs.Constant(pedersen.One()))
	cs.Constrain(o.LC().Sub(x.LC()))
	if target != nil {
		cs.Constrain(x.LC().Sub(r1cs.Constant(target)))
	}
}

// wideKnowledgeGadget adds x - x = 0 per limb. The constraint is vacuous: it
// keeps the circuit shape parallel to the range variants but proves neither
// range nor opening.
func wideKnowledgeGadget(cs r1cs.ConstraintSystem, xs []r1cs.Variable) {
	for _, x := range xs {
		cs.Constrain(x.LC().Sub(x.LC()))
	}
}

func appendTarget(t *transcript.Transcript, target pedersen.Scalar) error {
	if target == nil {
		return nil
	}
	return t.AppendScalar("target", target)
}

// ProveKnowledge commits to secret (reduced mod the group order) under a
// fresh blinding and proves knowledge of the opening.
func (e *Engine) ProveKnowledge(secret [32]byte, tag []byte) (*Result, error) {
	return e.proveKnowledge(secret, nil, tag)
}

// ProveEquality is ProveKnowledge plus a proof that the committed value
// equals target.
func (e *Engine) ProveEquality(secret, target [32]byte, tag []byte) (*Result, error) {
	return e.proveKnowledge(secret, &target, tag)
}

func (e *Engine) proveKnowledge(secret [32]byte, target *[32]byte, tag []byte) (*Result, error) {
	start := time.Now()
	kind := KindKnowledge
	res, err := func() (*Result, error) {
		if err := checkTag(tag); err != nil {
			return nil, err
		}
		params, err := generators.For(knowledgeBits, 1)
		if err != nil {
			return nil, err
		}
		blind, err := e.randomBlindings(1)
		if err != nil {
			return nil, err
		}
		v := pedersen.ScalarFromBytes(secret[:])
		var c pedersen.Scalar
		if target != nil {
			c = pedersen.ScalarFromBytes(target[:])
			if !v.IsEqual(c) {
				return nil, inputErrorf("secret does not equal target")
			}
		}
		t := transcript.New(kind.label())
		t.AppendBinding(tag)
		prover := r1cs.NewProver(params, t)
		C, x, err := prover.Commit(v, blind[0])
		if err != nil {
			return nil, proverFault(err, "commit secret")
		}
		if err := appendTarget(t, c); err != nil {
			return nil, proverFault(err, "append target")
		}
		knowledgeGadget(prover, x, c)
		proof, err := prover.Prove(e.rng)
		if err != nil {
			return nil, proverFault(err, "knowledge proof")
		}
		enc, err := proof.Bytes()
		if err != nil {
			return nil, proverFault(err, "encode proof")
		}
		commitments, err := encodeCommitments([]pedersen.Element{C})
		if err != nil {
			return nil, err
		}
		res := &Result{Kind: kind, Commitments: commitments, Proof: enc}
		return e.finish(res, start, func() error {
			return e.verifyKnowledge(res.Commitments[0], res.Proof, target, tag)
		})
	}()
	if err != nil {
		return nil, e.proveFailed(kind, err)
	}
	return res, nil
}

func (e *Engine) VerifyKnowledge(commitment, proof, tag []byte) bool {
	return e.verified(KindKnowledge, 1, len(proof), time.Now(), func() error {
		return e.verifyKnowledge(commitment, proof, nil, tag)
	})
}

func (e *Engine) VerifyEquality(commitment, proof []byte, target [32]byte, tag []byte) bool {
	return e.verified(KindKnowledge, 1, len(proof), time.Now(), func() error {
		return e.verifyKnowledge(commitment, proof, &target, tag)
	})
}

func (e *Engine) verifyKnowledge(commitment, proof []byte, target *[32]byte, tag []byte) error {
	if err := checkTag(tag); err != nil {
		return err
	}
	if err := e.checkProofLen(proof); err != nil {
		return err
	}
	C, err := decodeCommitments([][]byte{commitment})
	if err != nil {
		return err
	}
	p, err := r1cs.FromBytes(proof)
	if err != nil {
		return errors.Mark(err, ErrMalformedProof)
	}
	params, err := generators.For(knowledgeBits, 1)
	if err != nil {
		return err
	}
	var c pedersen.Scalar
	if target != nil {
		c = pedersen.ScalarFromBytes(target[:])
	}
	t := transcript.New(KindKnowledge.label())
	t.AppendBinding(tag)
	v := r1cs.NewVerifier(params, t)
	x, err := v.Commit(C[0])
	if err != nil {
		return errors.Mark(err, ErrCommitmentDecode)
	}
	if err := appendTarget(t, c); err != nil {
		return err
	}
	knowledgeGadget(v, x, c)
	if err := v.Verify(p); err != nil {
		return errors.Mark(err, ErrVerification)
	}
	return nil
}

// ProveWideKnowledge splits secret into four limbs, commits each under a
// fresh blinding, and proves the vacuous per-limb constraint x - x = 0.
//
// Known limitation: the proof binds the four commitments to the transcript
// but shows neither that the limbs are 64-bit values nor that the prover can
// open the commitments. Use ProveWideRange when range soundness matters.
func (e *Engine) ProveWideKnowledge(secret [32]byte, tag []byte) (*Result, error) {
	start := time.Now()
	kind := KindWideKnowledge
	res, err := func() (*Result, error) {
		if err := checkTag(tag); err != nil {
			return nil, err
		}
		params, err := generators.For(knowledgeBits, limbs.Count)
		if err != nil {
			return nil, err
		}
		blind, err := e.randomBlindings(limbs.Count)
		if err != nil {
			return nil, err
		}
		t := transcript.New(kind.label())
		t.AppendBinding(tag)
		prover := r1cs.NewProver(params, t)
		values := limbs.Scalars(limbs.Split(secret))
		C := make([]pedersen.Element, limbs.Count)
		vars := make([]r1cs.Variable, limbs.Count)
		for k := range values {
			C[k], vars[k], err = prover.Commit(values[k], blind[k])
			if err != nil {
				return nil, proverFault(err, "commit limb")
			}
		}
		wideKnowledgeGadget(prover, vars)
		proof, err := prover.Prove(e.rng)
		if err != nil {
			return nil, proverFault(err, "wide knowledge proof")
		}
		enc, err := proof.Bytes()
		if err != nil {
			return nil, proverFault(err, "encode proof")
		}
		commitments, err := encodeCommitments(C)
		if err != nil {
			return nil, err
		}
		res := &Result{Kind: kind, Commitments: commitments, Proof: enc}
		return e.finish(res, start, func() error {
			return e.verifyWideKnowledge(res.Commitments, res.Proof, tag)
		})
	}()
	if err != nil {
		return nil, e.proveFailed(kind, err)
	}
	return res, nil
}

func (e *Engine) VerifyWideKnowledge(commitments [][]byte, proof, tag []byte) bool {
	return e.verified(KindWideKnowledge, len(commitments), len(proof), time.Now(), func() error {
		return e.verifyWideKnowledge(commitments, proof, tag)
	})
}

func (e *Engine) verifyWideKnowledge(commitments [][]byte, proof, tag []byte) error {
	if len(commitments) != limbs.Count {
		return inputErrorf("expected %d commitments, got %d", limbs.Count, len(commitments))
	}
	if err := checkTag(tag); err != nil {
		return err
	}
	if err := e.checkProofLen(proof); err != nil {
		return err
	}
	C, err := decodeCommitments(commitments)
	if err != nil {
		return err
	}
	p, err := r1cs.FromBytes(proof)
	if err != nil {
		return errors.Mark(err, ErrMalformedProof)
	}
	params, err := generators.For(knowledgeBits, limbs.Count)
	if err != nil {
		return err
	}
	t := transcript.New(KindWideKnowledge.label())
	t.AppendBinding(tag)
	v := r1cs.NewVerifier(params, t)
	vars := make([]r1cs.Variable, len(C))
	for k := range C {
		if vars[k], err = v.Commit(C[k]); err != nil {
			return errors.Mark(err, ErrCommitmentDecode)
		}
	}
	wideKnowledgeGadget(v, vars)
	if err := v.Verify(p); err != nil {
		return errors.Mark(err, ErrVerification)
	}
	return nil
}
