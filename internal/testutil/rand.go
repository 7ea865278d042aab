package testutil

import (
	"io"

	"zkcommit/internal/detrand"
)

// Rand returns a deterministic reader keyed by seed, so proofs built from it
// are reproducible in tests.
func Rand(seed string) io.Reader {
	return detrand.New(seed)
}

// FailingReader returns err from every Read.
type FailingReader struct{ Err error }

func (f FailingReader) Read([]byte) (int, error) {
	return 0, f.Err
}
