package zkp

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"zkcommit/internal/zk/rangeproof"
)

func TestProverFaultChain(t *testing.T) {
	cause := errors.New("point at infinity")
	err := proverFault(cause, "commit limb")
	require.True(t, errors.IsAssertionFailure(err))
	require.True(t, errors.Is(err, ErrInternal))
	require.True(t, errors.Is(err, cause))
	require.Equal(t, CategoryInternal, Classify(err))
	require.Contains(t, err.Error(), "commit limb")

	require.NoError(t, proverFault(nil, "noop"))
}

func TestProverFaultKeepsCallerErrors(t *testing.T) {
	in := inputErrorf("value too large")
	require.Same(t, in, proverFault(in, "range proof"))
	require.False(t, errors.IsAssertionFailure(proverFault(in, "range proof")))

	oor := errors.Wrap(rangeproof.ErrValueOutOfRange, "limb 2")
	require.Equal(t, CategoryInput, Classify(proverFault(oor, "range proof")))

	cfg := errors.Wrap(ErrInvalidParameters, "bits 48")
	require.Equal(t, CategoryConfiguration, Classify(proverFault(cfg, "range proof")))
}

func TestCategoryRecoverable(t *testing.T) {
	require.True(t, CategoryInput.Recoverable())
	require.True(t, CategoryVerification.Recoverable())
	require.False(t, CategoryInternal.Recoverable())
	require.False(t, CategoryConfiguration.Recoverable())
}
