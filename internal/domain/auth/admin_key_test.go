package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func TestHashKey_ProducesVerifiablePHC(t *testing.T) {
	hash, err := HashKey("secret-admin-key")
	if err != nil {
		t.Fatalf("HashKey failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("expected PHC format, got %q", hash)
	}

	match, err := VerifyKey("secret-admin-key", hash)
	if err != nil {
		t.Fatalf("VerifyKey failed: %v", err)
	}
	if !match {
		t.Error("expected key to verify against its own hash")
	}

	match, err = VerifyKey("wrong-key", hash)
	if err != nil {
		t.Fatalf("VerifyKey failed: %v", err)
	}
	if match {
		t.Error("wrong key must not verify")
	}
}

func TestVerifyKey_SHA256(t *testing.T) {
	sum := sha256.Sum256([]byte("legacy-key"))
	stored := "sha256:" + hex.EncodeToString(sum[:])

	match, err := VerifyKey("legacy-key", stored)
	if err != nil {
		t.Fatalf("VerifyKey failed: %v", err)
	}
	if !match {
		t.Error("expected sha256 hash to verify")
	}

	match, _ = VerifyKey("other", stored)
	if match {
		t.Error("wrong key must not verify against sha256 hash")
	}
}

func TestVerifyKey_UnknownFormat(t *testing.T) {
	_, err := VerifyKey("key", "md5:abcdef")
	if !errors.Is(err, ErrUnknownHashType) {
		t.Errorf("expected ErrUnknownHashType, got %v", err)
	}
}

func TestDetectHashType(t *testing.T) {
	tests := []struct {
		stored string
		want   string
	}{
		{"$argon2id$v=19$m=48128,t=1,p=1$salt$hash", "argon2id"},
		{"sha256:deadbeef", "sha256"},
		{"plaintext", "unknown"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		if got := DetectHashType(tt.stored); got != tt.want {
			t.Errorf("DetectHashType(%q) = %q, want %q", tt.stored, got, tt.want)
		}
	}
}
