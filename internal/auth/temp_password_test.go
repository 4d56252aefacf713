package auth

import (
	"strings"
	"testing"
)

func TestGenerateTempPassword(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		pw, err := GenerateTempPassword()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(pw) != tempPasswordLength {
			t.Fatalf("length = %d, want %d", len(pw), tempPasswordLength)
		}
		for _, class := range []string{upperChars, lowerChars, digitChars, symbolChars} {
			if !strings.ContainsAny(pw, class) {
				t.Errorf("password %q missing a character from %q", pw, class)
			}
		}
		if strings.ContainsAny(pw, "0O1lI") {
			t.Errorf("password %q contains ambiguous characters", pw)
		}
		seen[pw] = true
	}
	if len(seen) < 50 {
		t.Errorf("generated %d distinct passwords out of 50", len(seen))
	}
}
