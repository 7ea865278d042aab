package pedersen

import (
	"bytes"
	"testing"
)

func TestCommitDeterministic(t *testing.T) {
	v := ScalarFromUint64(1000)
	r := ScalarFromBytes([]byte("shared blinding between parties"))
	C1, err := Commit(v, r)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	C2, err := Commit(ScalarFromUint64(1000), ScalarFromBytes([]byte("shared blinding between parties")))
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if !C1.IsEqual(C2) {
		t.Fatalf("commitment mismatch")
	}
	C3, err := Commit(ScalarFromUint64(1001), r)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if C1.IsEqual(C3) {
		t.Fatalf("different values gave equal commitments")
	}
}

func TestCommitBatchMatchesCommit(t *testing.T) {
	values := []Scalar{ScalarFromUint64(10), ScalarFromUint64(20)}
	blindings := []Scalar{ScalarFromUint64(1), ScalarFromUint64(2)}
	C, err := CommitBatch(values, blindings)
	if err != nil {
		t.Fatalf("commit batch failed: %v", err)
	}
	for i := range values {
		want, err := Commit(values[i], blindings[i])
		if err != nil {
			t.Fatalf("commit failed: %v", err)
		}
		if !C[i].IsEqual(want) {
			t.Fatalf("commitment mismatch at %d", i)
		}
	}
	if _, err := CommitBatch(values, blindings[:1]); err == nil {
		t.Fatalf("expected dimension mismatch")
	}
	if _, err := CommitBatch(nil, nil); err == nil {
		t.Fatalf("expected empty vector error")
	}
}

func TestScalarFromBytesReduces(t *testing.T) {
	all := bytes.Repeat([]byte{0xff}, 32)
	s := ScalarFromBytes(all)
	enc, err := EncodeScalar(s)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if bytes.Equal(enc, all) {
		t.Fatalf("expected reduction of 2^256-1")
	}
	if _, err := DecodeCanonicalScalar(enc); err != nil {
		t.Fatalf("reduced scalar not canonical: %v", err)
	}
	if _, err := DecodeCanonicalScalar(all); err == nil {
		t.Fatalf("expected non-canonical rejection")
	}
}

func TestScalarFromBytesLittleEndian(t *testing.T) {
	b := Uint64Bytes(258)
	if !ScalarFromBytes(b[:]).IsEqual(ScalarFromUint64(258)) {
		t.Fatalf("little-endian decode mismatch")
	}
}

func TestElementRoundTrip(t *testing.T) {
	C, err := Commit(ScalarFromUint64(7), ScalarFromUint64(9))
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	enc, err := EncodeElement(C)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	dec, err := DecodeElement(enc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !dec.IsEqual(C) {
		t.Fatalf("element round trip mismatch")
	}
	if _, err := DecodeElement(bytes.Repeat([]byte{0xff}, 32)); err == nil {
		t.Fatalf("expected invalid encoding error")
	}
	if _, err := DecodeElement(enc[:31]); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestInnerProductAndPowers(t *testing.T) {
	a := []Scalar{ScalarFromUint64(1), ScalarFromUint64(2), ScalarFromUint64(3)}
	b := []Scalar{ScalarFromUint64(4), ScalarFromUint64(5), ScalarFromUint64(6)}
	if !InnerProduct(a, b).IsEqual(ScalarFromUint64(32)) {
		t.Fatalf("inner product mismatch")
	}
	p := Powers(ScalarFromUint64(2), 5)
	if !p[4].IsEqual(ScalarFromUint64(16)) {
		t.Fatalf("powers mismatch")
	}
	if !SumOfPowers(ScalarFromUint64(2), 5).IsEqual(ScalarFromUint64(31)) {
		t.Fatalf("sum of powers mismatch")
	}
}
