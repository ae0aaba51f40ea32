package referral

import (
	"context"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// collidingLookup reports the first n codes it sees as taken.
type collidingLookup struct {
	remaining int
	seen      []string
}

func (c *collidingLookup) ReferralCodeExists(_ context.Context, code string) (bool, error) {
	c.seen = append(c.seen, code)
	if c.remaining > 0 {
		c.remaining--
		return true, nil
	}
	return false, nil
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestNewCode_Shape(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NewCode()
		if err != nil {
			t.Fatalf("NewCode: %v", err)
		}
		if len(code) != CodeLength {
			t.Fatalf("code length: got %d, want %d", len(code), CodeLength)
		}
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("code %q contains %q, not in alphabet", code, r)
			}
		}
		// Ambiguous characters must never appear.
		for _, forbidden := range "OI01" {
			if strings.ContainsRune(code, forbidden) {
				t.Fatalf("code %q contains forbidden character %q", code, forbidden)
			}
		}
	}
}

func TestNewCode_NotConstant(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := NewCode()
		if err != nil {
			t.Fatalf("NewCode: %v", err)
		}
		seen[code] = true
	}
	// 50 draws from a 32^8 space colliding down to one value would mean a
	// broken random source.
	if len(seen) < 2 {
		t.Fatal("NewCode returned the same code repeatedly")
	}
}

func TestGenerate_RetriesOnCollision(t *testing.T) {
	lookup := &collidingLookup{remaining: 3}
	code, err := Generate(context.Background(), lookup)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(code) != CodeLength {
		t.Errorf("code length: got %d, want %d", len(code), CodeLength)
	}
	// 3 collisions + 1 success.
	if got := len(lookup.seen); got != 4 {
		t.Errorf("lookup calls: got %d, want 4", got)
	}
	if lookup.seen[len(lookup.seen)-1] != code {
		t.Error("returned code should be the last one checked")
	}
}

func TestGenerate_ChecksEveryLookup(t *testing.T) {
	students := &collidingLookup{}
	agents := &collidingLookup{remaining: 1}
	if _, err := Generate(context.Background(), students, agents); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// First round collides on agents, second passes both.
	if len(students.seen) != 2 || len(agents.seen) != 2 {
		t.Errorf("lookup calls: students=%d agents=%d, want 2 and 2", len(students.seen), len(agents.seen))
	}
}
