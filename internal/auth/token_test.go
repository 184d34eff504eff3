package auth

import (
	"regexp"
	"testing"
)

func TestNewTokenShape(t *testing.T) {
	tok, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if len(tok) != 64 {
		t.Fatalf("token length = %d, want 64", len(tok))
	}
	if !regexp.MustCompile(`^[0-9a-f]{64}$`).MatchString(tok) {
		t.Fatalf("token %q is not lowercase hex", tok)
	}
}

func TestNewTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := NewToken()
		if err != nil {
			t.Fatalf("NewToken: %v", err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token after %d draws", i)
		}
		seen[tok] = true
	}
}

func TestHashTokenDeterministic(t *testing.T) {
	tok := "a3f1b2c4d5e6f708192a3b4c5d6e7f80a1b2c3d4e5f60718293a4b5c6d7e8f90"
	h1 := HashToken(tok)
	h2 := HashToken(tok)
	if h1 != h2 {
		t.Fatalf("HashToken not deterministic: %q vs %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("hash length = %d, want 64", len(h1))
	}
	if h1 == tok {
		t.Fatal("hash equals input token")
	}
}

func TestHashTokenDistinct(t *testing.T) {
	if HashToken("token-a") == HashToken("token-b") {
		t.Fatal("distinct tokens hashed to the same value")
	}
}

func TestTokenHashEqual(t *testing.T) {
	h := HashToken("some-token")
	if !tokenHashEqual(h, HashToken("some-token")) {
		t.Fatal("equal hashes reported unequal")
	}
	if tokenHashEqual(h, HashToken("other-token")) {
		t.Fatal("unequal hashes reported equal")
	}
}
