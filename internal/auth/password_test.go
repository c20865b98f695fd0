package auth

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("hash should be PHC format, got %q", hash)
	}

	ok, err := VerifyPassword("correct horse battery staple", hash)
	if err != nil {
		t.Fatalf("VerifyPassword() error: %v", err)
	}
	if !ok {
		t.Error("correct password should verify")
	}

	ok, err = VerifyPassword("wrong password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword() error: %v", err)
	}
	if ok {
		t.Error("wrong password should not verify")
	}
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	h1, err := HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	h2, err := HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password should differ (random salt)")
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	tests := []string{
		"",
		"not-a-hash",
		"$argon2id$v=19$m=65536,t=3,p=1$short",
		"$bcrypt$v=19$m=65536,t=3,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=65536,t=3,p=1$c2FsdA$aGFzaA", // version this binary cannot reproduce
	}
	for _, hash := range tests {
		if _, err := VerifyPassword("password", hash); err == nil {
			t.Errorf("expected error for malformed hash %q", hash)
		}
	}
}

func TestIsValidUsername(t *testing.T) {
	valid := []string{"alice", "bob.smith", "under_score", "dash-user", "u", "User123"}
	for _, u := range valid {
		if !IsValidUsername(u) {
			t.Errorf("%q should be valid", u)
		}
	}

	invalid := []string{"", "has space", "emoji😀", "slash/name", strings.Repeat("a", 65)}
	for _, u := range invalid {
		if IsValidUsername(u) {
			t.Errorf("%q should be invalid", u)
		}
	}
}
