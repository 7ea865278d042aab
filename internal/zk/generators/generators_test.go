package generators

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestForIsCachedPerKey(t *testing.T) {
	a, err := For(64, 1)
	if err != nil {
		t.Fatalf("for failed: %v", err)
	}
	b, err := For(64, 1)
	if err != nil {
		t.Fatalf("for failed: %v", err)
	}
	if a != b {
		t.Fatalf("expected the cached instance")
	}
	c, err := For(32, 1)
	if err != nil {
		t.Fatalf("for failed: %v", err)
	}
	if c == a || c.Bits != 32 || len(c.G[0]) != 32 {
		t.Fatalf("different keys must not share parameters")
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	a, err := Build(DefaultLabel, 8, 2)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	b, err := Build(DefaultLabel, 8, 2)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	for j := 0; j < 2; j++ {
		for i := 0; i < 8; i++ {
			if !a.G[j][i].IsEqual(b.G[j][i]) || !a.H[j][i].IsEqual(b.H[j][i]) {
				t.Fatalf("generator mismatch at %d/%d", j, i)
			}
		}
	}
	if a.G[0][0].IsEqual(a.H[0][0]) || a.G[0][0].IsEqual(a.G[1][0]) {
		t.Fatalf("generators must be distinct")
	}
	other, err := Build("zkcommit/other", 8, 2)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if other.G[0][0].IsEqual(a.G[0][0]) {
		t.Fatalf("labels must separate generators")
	}
}

func TestInvalidParameters(t *testing.T) {
	cases := []struct{ bits, parties int }{
		{0, 1}, {63, 1}, {128, 1}, {64, 0}, {64, 3}, {64, 128},
	}
	for _, tc := range cases {
		if _, err := For(tc.bits, tc.parties); !errors.Is(err, ErrInvalidParameters) {
			t.Fatalf("bits=%d parties=%d: expected ErrInvalidParameters, got %v", tc.bits, tc.parties, err)
		}
	}
}

func TestConcurrentFor(t *testing.T) {
	var wg sync.WaitGroup
	got := make([]*Params, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := For(16, 2)
			if err != nil {
				t.Errorf("for failed: %v", err)
				return
			}
			got[i] = p
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(got); i++ {
		if got[i] != got[0] {
			t.Fatalf("concurrent callers saw different instances")
		}
	}
}

func TestFlatAndShare(t *testing.T) {
	p, err := For(8, 4)
	if err != nil {
		t.Fatalf("for failed: %v", err)
	}
	G, H := p.Flat(4)
	if len(G) != 32 || len(H) != 32 {
		t.Fatalf("unexpected flat length %d/%d", len(G), len(H))
	}
	if !G[8].IsEqual(p.G[1][0]) {
		t.Fatalf("flat must be party-major")
	}
	G0, _ := p.Share(0, 4)
	if len(G0) != 4 || !G0[3].IsEqual(p.G[0][3]) {
		t.Fatalf("share mismatch")
	}
}
