package zkp

import (
	"github.com/cockroachdb/errors"

	"zkcommit/internal/zk/generators"
	"zkcommit/internal/zk/ipp"
	"zkcommit/internal/zk/r1cs"
	"zkcommit/internal/zk/rangeproof"
)

// Category groups failures by who can act on them.
type Category string

const (
	CategoryNone           Category = ""
	CategoryInput          Category = "input"
	CategoryMalformedProof Category = "malformed_proof"
	CategoryCommitment     Category = "commitment_decode"
	CategoryVerification   Category = "verification"
	CategoryConfiguration  Category = "configuration"
	CategoryInternal       Category = "internal"
)

var (
	ErrInput             = errors.New("invalid input")
	ErrMalformedProof    = errors.New("malformed proof")
	ErrCommitmentDecode  = errors.New("commitment decode failed")
	ErrVerification      = errors.New("verification failed")
	ErrInvalidParameters = generators.ErrInvalidParameters
	ErrInternal          = errors.New("internal prover fault")
)

// Classify maps an error from this package or the proof systems below it to
// its category. Unknown errors are internal.
func Classify(err error) Category {
	switch {
	case err == nil:
		return CategoryNone
	case errors.Is(err, ErrInput), errors.Is(err, rangeproof.ErrValueOutOfRange):
		return CategoryInput
	case errors.Is(err, ErrInvalidParameters):
		return CategoryConfiguration
	case errors.Is(err, ErrCommitmentDecode):
		return CategoryCommitment
	case errors.Is(err, ErrMalformedProof),
		errors.Is(err, r1cs.ErrMalformedProof),
		errors.Is(err, rangeproof.ErrMalformedProof),
		errors.Is(err, ipp.ErrMalformedProof):
		return CategoryMalformedProof
	case errors.Is(err, ErrVerification),
		errors.Is(err, r1cs.ErrVerification),
		errors.Is(err, rangeproof.ErrVerification),
		errors.Is(err, ipp.ErrVerification):
		return CategoryVerification
	}
	return CategoryInternal
}

// Recoverable reports whether the caller can fix the request and retry.
func (c Category) Recoverable() bool {
	switch c {
	case CategoryInput, CategoryMalformedProof, CategoryCommitment, CategoryVerification:
		return true
	}
	return false
}

func IsInternal(err error) bool {
	return err != nil && Classify(err) == CategoryInternal
}

func inputErrorf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrInput)
}

// proverFault turns an unexpected prover failure into an assertion failure
// marked ErrInternal, keeping the original cause. The assertion wrapper must
// stay outermost: IsAssertionFailure only looks at the top of the chain.
func proverFault(err error, what string) error {
	if err == nil {
		return nil
	}
	switch Classify(err) {
	case CategoryInput, CategoryConfiguration:
		return err
	}
	return errors.WithAssertionFailure(errors.Mark(errors.Wrap(err, what), ErrInternal))
}
