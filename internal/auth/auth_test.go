package auth

import (
	"testing"
	"time"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret" {
		t.Fatalf("password stored in the clear")
	}
	if !CheckPassword(hash, "s3cret") {
		t.Fatalf("correct password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatalf("wrong password accepted")
	}
}

func TestJWTRoundtrip(t *testing.T) {
	const secret = "test-secret"

	token, err := SignJWT(42, secret, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	userID, err := ParseJWT(token, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if userID != 42 {
		t.Fatalf("user id = %d, want 42", userID)
	}

	if _, err := ParseJWT(token, "other-secret"); err == nil {
		t.Fatalf("token verified with the wrong secret")
	}
	if _, err := ParseJWT("not-a-token", secret); err == nil {
		t.Fatalf("garbage token parsed")
	}
}

func TestJWTExpiry(t *testing.T) {
	const secret = "test-secret"

	token, err := SignJWT(7, secret, -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseJWT(token, secret); err == nil {
		t.Fatalf("expired token accepted")
	}
}
