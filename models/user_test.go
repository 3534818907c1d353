package models

import (
	"context"
	"testing"
)

func TestSignupAndLogin(t *testing.T) {
	openTestDB(t)
	ctx := context.Background()

	user, err := Signup(ctx, &NewUser{
		Name:     "Test Reader",
		Email:    "reader@example.com",
		Password: "secret123",
	})
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if user.Password != "" {
		t.Fatalf("signup response must not carry the password hash")
	}

	if _, err := Signup(ctx, &NewUser{
		Name:     "Test Reader",
		Email:    "reader@example.com",
		Password: "secret123",
	}); err == nil || err.Error() != "User already exists" {
		t.Fatalf("expected duplicate-email rejection, got %v", err)
	}

	info, err := Login(ctx, "reader@example.com", "secret123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if info.Token == "" || info.JwtToken == "" {
		t.Fatalf("expected session and jwt tokens, got %+v", info)
	}

	if _, err := Login(ctx, "reader@example.com", "wrong-password"); err == nil || err.Error() != "Invalid email or password" {
		t.Fatalf("expected wrong-password rejection, got %v", err)
	}
}

func TestLoginRejectsUndecodableStoredHash(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// The seeded password is not a bcrypt hash, so the compare fails with an
	// error other than a mismatch. That must still reject the login.
	seedUser(t, db, "reader@example.com")

	if _, err := Login(ctx, "reader@example.com", "not-a-real-hash"); err == nil || err.Error() != "Invalid email or password" {
		t.Fatalf("expected rejection for undecodable stored hash, got %v", err)
	}
}
