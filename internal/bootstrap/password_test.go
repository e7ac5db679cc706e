package bootstrap

import (
	"strings"
	"testing"
)

func TestGeneratePasswordStrength(t *testing.T) {
	for i := 0; i < 100; i++ {
		p := GeneratePassword(RCONPasswordLength)
		if len(p) != RCONPasswordLength {
			t.Fatalf("length = %d", len(p))
		}
		if !strings.ContainsAny(p, upperChars) {
			t.Fatalf("no upper-case in %q", p)
		}
		if !strings.ContainsAny(p, lowerChars) {
			t.Fatalf("no lower-case in %q", p)
		}
		if !strings.ContainsAny(p, digitChars) {
			t.Fatalf("no digit in %q", p)
		}
		for _, c := range p {
			if !strings.ContainsRune(allChars, c) {
				t.Fatalf("character %q outside alphabet in %q", c, p)
			}
		}
	}
}

func TestGeneratePasswordVaries(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		seen[GeneratePassword(RCONPasswordLength)] = true
	}
	if len(seen) < 20 {
		t.Fatalf("collisions in %d generated passwords", len(seen))
	}
}

func TestGeneratePasswordMinimumLength(t *testing.T) {
	if got := len(GeneratePassword(1)); got != 3 {
		t.Fatalf("short request should clamp to 3, got %d", got)
	}
}
