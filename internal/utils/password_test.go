package utils

import (
	"strings"
	"testing"
)

func TestHashPasswordProducesBcrypt(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("hash %q is not a bcrypt hash", hash)
	}
	if strings.Contains(hash, "hunter2") {
		t.Error("hash leaks the plaintext password")
	}
}

func TestHashPasswordSalted(t *testing.T) {
	first, _ := HashPassword("same-password")
	second, _ := HashPassword("same-password")

	if first == second {
		t.Error("two hashes of the same password should differ by salt")
	}
	if !CheckPassword("same-password", first) || !CheckPassword("same-password", second) {
		t.Error("both salted hashes should verify the original password")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("release-the-kraken")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"matching password", "release-the-kraken", true},
		{"wrong password", "release-the-hounds", false},
		{"case differs", "Release-The-Kraken", false},
		{"trailing space", "release-the-kraken ", false},
		{"empty password", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPassword(tt.password, hash); got != tt.want {
				t.Errorf("CheckPassword(%q) = %v, expected %v", tt.password, got, tt.want)
			}
		})
	}
}

func TestCheckPasswordBadHash(t *testing.T) {
	for _, hash := range []string{"", "plaintext", "$2a$broken"} {
		if CheckPassword("anything", hash) {
			t.Errorf("CheckPassword accepted malformed hash %q", hash)
		}
	}
}
