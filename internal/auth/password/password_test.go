package password

import (
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("correct-horse-battery")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$") {
		t.Fatalf("expected PHC format, got %q", encoded)
	}

	if !Verify("correct-horse-battery", encoded) {
		t.Fatal("expected matching password to verify")
	}
	if Verify("wrong-password", encoded) {
		t.Fatal("expected mismatching password to fail")
	}
}

func TestHashIsSalted(t *testing.T) {
	first, err := Hash("correct-horse-battery")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	second, err := Hash("correct-horse-battery")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct salts to produce distinct hashes")
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=banana,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$!!$aGFzaA",
	}
	for _, encoded := range cases {
		if Verify("anything", encoded) {
			t.Fatalf("expected %q to be rejected", encoded)
		}
	}
}
