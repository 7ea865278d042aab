package zkp

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"zkcommit/internal/metrics"
	"zkcommit/internal/testutil"
)

var (
	tagA     = []byte("test-binding-tag-32-bytes-long!!")
	tagWrong = []byte("wrong-binding-tag-32-bytes-long!!")
	tagB     = []byte("other-binding-tag-32-bytes-long!")
)

func secrets() map[string][32]byte {
	var ones [32]byte
	for i := range ones {
		ones[i] = 0xff
	}
	return map[string][32]byte{
		"zero": {},
		"ones": ones,
		"mid":  sha256.Sum256([]byte("0x4f2a tx hash")),
	}
}

func flip(b []byte, off int) []byte {
	out := append([]byte(nil), b...)
	out[off] ^= 0x5a
	return out
}

func TestKnowledgeRoundTrip(t *testing.T) {
	e := New()
	for name, s := range secrets() {
		res, err := e.ProveKnowledge(s, nil)
		require.NoError(t, err, name)
		require.True(t, res.Verified, name)
		require.Len(t, res.Commitments, 1)
		require.True(t, e.VerifyKnowledge(res.Commitments[0], res.Proof, nil), name)
	}
}

func TestBindingTagSensitivity(t *testing.T) {
	e := New()
	secret := secrets()["mid"]

	k, err := e.ProveKnowledge(secret, tagA)
	require.NoError(t, err)
	require.True(t, e.VerifyKnowledge(k.Commitments[0], k.Proof, tagA))
	require.False(t, e.VerifyKnowledge(k.Commitments[0], k.Proof, tagWrong))
	require.False(t, e.VerifyKnowledge(k.Commitments[0], k.Proof, tagB))
	require.False(t, e.VerifyKnowledge(k.Commitments[0], k.Proof, nil))

	r, err := e.ProveRange(1000, nil, tagA, 64)
	require.NoError(t, err)
	require.True(t, e.VerifyRange(r.Commitments[0], r.Proof, tagA, 64))
	require.False(t, e.VerifyRange(r.Commitments[0], r.Proof, tagB, 64))
	require.False(t, e.VerifyRange(r.Commitments[0], r.Proof, nil, 64))

	w, err := e.ProveWideRange(secret, tagA)
	require.NoError(t, err)
	require.True(t, e.VerifyWideRange(w.Commitments, w.Proof, tagA))
	require.False(t, e.VerifyWideRange(w.Commitments, w.Proof, nil))

	// A proof made without a tag does not verify with one.
	n, err := e.ProveKnowledge(secret, nil)
	require.NoError(t, err)
	require.False(t, e.VerifyKnowledge(n.Commitments[0], n.Proof, tagA))
	require.True(t, e.VerifyKnowledge(n.Commitments[0], n.Proof, []byte{}))
}

func TestTamperSensitivity(t *testing.T) {
	e := New()
	k, err := e.ProveKnowledge(secrets()["mid"], tagA)
	require.NoError(t, err)
	for _, off := range []int{5, 3*32 + 7, 8*32 + 1, len(k.Proof) - 1} {
		require.False(t, e.VerifyKnowledge(k.Commitments[0], flip(k.Proof, off), tagA), "offset %d", off)
	}
	r, err := e.ProveRange(42, nil, nil, 32)
	require.NoError(t, err)
	for _, off := range []int{5, 4*32 + 2, len(r.Proof) - 40} {
		require.False(t, e.VerifyRange(r.Commitments[0], flip(r.Proof, off), nil, 32), "offset %d", off)
	}
}

func TestCrossCommitmentRejection(t *testing.T) {
	e := New()
	a, err := e.ProveKnowledge(secrets()["mid"], nil)
	require.NoError(t, err)
	b, err := e.ProveKnowledge(secrets()["ones"], nil)
	require.NoError(t, err)
	require.False(t, e.VerifyKnowledge(b.Commitments[0], a.Proof, nil))

	ra, err := e.ProveRange(7, nil, nil, 64)
	require.NoError(t, err)
	rb, err := e.ProveRange(7, nil, nil, 64)
	require.NoError(t, err)
	require.False(t, e.VerifyRange(rb.Commitments[0], ra.Proof, nil, 64))
}

func TestCommitmentDeterminismProofRandomness(t *testing.T) {
	e := New()
	blinding := sha256.Sum256([]byte("product||seller"))
	a, err := e.ProveRange(250, &blinding, nil, 64)
	require.NoError(t, err)
	b, err := e.ProveRange(250, &blinding, nil, 64)
	require.NoError(t, err)
	require.Equal(t, a.Commitments[0], b.Commitments[0])
	require.False(t, bytes.Equal(a.Proof, b.Proof))
	require.True(t, e.VerifyRange(a.Commitments[0], a.Proof, nil, 64))
	require.True(t, e.VerifyRange(b.Commitments[0], b.Proof, nil, 64))

	c, err := e.CommitValue(250, blinding)
	require.NoError(t, err)
	require.Equal(t, a.Commitments[0], c)
}

func TestConstantProofSize(t *testing.T) {
	e := New()
	sizes := map[Kind]map[int]bool{KindKnowledge: {}, KindWideRange: {}, KindWideKnowledge: {}, KindRange: {}}
	for name, s := range secrets() {
		k, err := e.ProveKnowledge(s, nil)
		require.NoError(t, err, name)
		sizes[KindKnowledge][len(k.Proof)] = true
		w, err := e.ProveWideRange(s, nil)
		require.NoError(t, err, name)
		sizes[KindWideRange][len(w.Proof)] = true
		wk, err := e.ProveWideKnowledge(s, nil)
		require.NoError(t, err, name)
		sizes[KindWideKnowledge][len(wk.Proof)] = true
	}
	for _, v := range []uint64{0, ^uint64(0), 1 << 33} {
		r, err := e.ProveRange(v, nil, nil, 64)
		require.NoError(t, err)
		sizes[KindRange][len(r.Proof)] = true
	}
	require.Equal(t, map[int]bool{416: true}, sizes[KindKnowledge])
	require.Equal(t, map[int]bool{416: true}, sizes[KindWideKnowledge])
	require.Equal(t, map[int]bool{672: true}, sizes[KindRange])
	require.Equal(t, map[int]bool{800: true}, sizes[KindWideRange])
}

func TestMalformedProofSafety(t *testing.T) {
	e := New()
	k, err := e.ProveKnowledge(secrets()["mid"], nil)
	require.NoError(t, err)
	w, err := e.ProveWideRange(secrets()["mid"], nil)
	require.NoError(t, err)
	garbage := make([]byte, 10)
	require.False(t, e.VerifyKnowledge(k.Commitments[0], garbage, nil))
	require.False(t, e.VerifyRange(k.Commitments[0], garbage, nil, 64))
	require.False(t, e.VerifyWideRange(w.Commitments, garbage, nil))
	require.False(t, e.VerifyWideKnowledge(w.Commitments, garbage, nil))
	require.False(t, e.VerifyKnowledge(k.Commitments[0], nil, nil))
	require.False(t, e.VerifyKnowledge(k.Commitments[0], k.Proof[:len(k.Proof)-1], nil))
	require.False(t, e.VerifyKnowledge(k.Commitments[0], make([]byte, 1<<20), nil))
}

func TestInvalidCommitmentEncoding(t *testing.T) {
	e := New()
	k, err := e.ProveKnowledge(secrets()["mid"], nil)
	require.NoError(t, err)
	bad := bytes.Repeat([]byte{0xff}, 32)
	require.False(t, e.VerifyKnowledge(bad, k.Proof, nil))
	require.False(t, e.VerifyKnowledge(bad[:31], k.Proof, nil))

	w, err := e.ProveWideRange(secrets()["ones"], nil)
	require.NoError(t, err)
	commitments := append([][]byte(nil), w.Commitments...)
	commitments[2] = bad
	require.False(t, e.VerifyWideRange(commitments, w.Proof, nil))
	require.False(t, e.VerifyWideRange(w.Commitments[:3], w.Proof, nil))
}

func TestWideKnowledge(t *testing.T) {
	e := New()
	res, err := e.ProveWideKnowledge(secrets()["mid"], nil)
	require.NoError(t, err)
	require.True(t, res.Verified)
	require.Len(t, res.Commitments, 4)
	require.True(t, e.VerifyWideKnowledge(res.Commitments, res.Proof, nil))
	swapped := [][]byte{res.Commitments[1], res.Commitments[0], res.Commitments[2], res.Commitments[3]}
	require.False(t, e.VerifyWideKnowledge(swapped, res.Proof, nil))
	require.False(t, e.VerifyWideKnowledge(res.Commitments, res.Proof, tagA))
}

func TestWideRangeOrderMatters(t *testing.T) {
	e := New()
	res, err := e.ProveWideRange(secrets()["mid"], nil)
	require.NoError(t, err)
	require.True(t, e.VerifyWideRange(res.Commitments, res.Proof, nil))
	swapped := [][]byte{res.Commitments[3], res.Commitments[1], res.Commitments[2], res.Commitments[0]}
	require.False(t, e.VerifyWideRange(swapped, res.Proof, nil))
}

func TestEquality(t *testing.T) {
	e := New()
	var target [32]byte
	target[0] = 42
	res, err := e.ProveEquality(target, target, nil)
	require.NoError(t, err)
	require.True(t, e.VerifyEquality(res.Commitments[0], res.Proof, target, nil))

	var other [32]byte
	other[0] = 43
	require.False(t, e.VerifyEquality(res.Commitments[0], res.Proof, other, nil))
	require.False(t, e.VerifyKnowledge(res.Commitments[0], res.Proof, nil))

	_, err = e.ProveEquality(other, target, nil)
	require.Equal(t, CategoryInput, Classify(err))
}

func TestDeterministicRandomness(t *testing.T) {
	a := New(WithRand(testutil.Rand("engine")))
	b := New(WithRand(testutil.Rand("engine")))
	ra, err := a.ProveWideRange(secrets()["mid"], tagA)
	require.NoError(t, err)
	rb, err := b.ProveWideRange(secrets()["mid"], tagA)
	require.NoError(t, err)
	require.Equal(t, ra.Commitments, rb.Commitments)
	require.Equal(t, ra.Proof, rb.Proof)
}

func TestProverFaults(t *testing.T) {
	e := New(WithRand(testutil.FailingReader{Err: errors.New("entropy exhausted")}))
	_, err := e.ProveKnowledge(secrets()["mid"], nil)
	require.Error(t, err)
	require.True(t, IsInternal(err))
	require.True(t, errors.Is(err, ErrInternal))
	require.True(t, errors.IsAssertionFailure(err))
}

func TestInputAndConfigurationErrors(t *testing.T) {
	e := New()
	_, err := e.ProveRange(1<<32, nil, nil, 32)
	require.Equal(t, CategoryInput, Classify(err))
	require.True(t, Classify(err).Recoverable())

	_, err = e.ProveRange(1, nil, nil, 48)
	require.Equal(t, CategoryConfiguration, Classify(err))
	require.False(t, e.VerifyRange(make([]byte, 32), make([]byte, 672), nil, 48))

	_, err = e.ProveKnowledge(secrets()["mid"], []byte("short"))
	require.Equal(t, CategoryInput, Classify(err))
}

func TestStatementDispatch(t *testing.T) {
	e := New()
	var target [32]byte
	target[1] = 7
	cases := []struct {
		stmt Statement
		w    Witness
	}{
		{Knowledge{}, Witness{Secret: secrets()["mid"], Tag: tagA}},
		{Knowledge{Target: &target}, Witness{Secret: target}},
		{Range{Bits: 16}, Witness{Value: 65535}},
		{WideRange{}, Witness{Secret: secrets()["ones"]}},
		{WideKnowledge{}, Witness{Secret: secrets()["zero"]}},
	}
	for _, tc := range cases {
		res, err := e.Prove(tc.stmt, tc.w)
		require.NoError(t, err, tc.stmt.Kind().String())
		require.Equal(t, tc.stmt.Kind(), res.Kind)
		require.True(t, e.Verify(tc.stmt, res.Commitments, res.Proof, tc.w.Tag), tc.stmt.Kind().String())
	}
	require.False(t, e.Verify(Range{Bits: 16}, nil, nil, nil))
}

func TestMetricsRecorded(t *testing.T) {
	m := metrics.New()
	e := New(WithMetrics(m))
	res, err := e.ProveRange(5, nil, nil, 8)
	require.NoError(t, err)
	require.True(t, e.VerifyRange(res.Commitments[0], res.Proof, nil, 8))
	require.False(t, e.VerifyRange(res.Commitments[0], make([]byte, 10), nil, 8))
	snap := m.Snapshot()
	require.Equal(t, uint64(1), snap.Kinds["range"].Proved)
	require.Equal(t, uint64(1), snap.Kinds["range"].VerifiedOK)
	require.Equal(t, uint64(1), snap.Kinds["range"].VerifiedFail)
	require.Len(t, snap.Recent, 3)
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindKnowledge, KindRange, KindWideRange, KindWideKnowledge} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, got)
	}
	_, err := ParseKind("bp_plus")
	require.Equal(t, CategoryInput, Classify(err))
}
