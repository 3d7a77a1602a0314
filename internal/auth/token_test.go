package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func parse(t *testing.T, token, secret string) *Claims {
	t.Helper()
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("token not valid")
	}
	return claims
}

func TestMintClaims(t *testing.T) {
	token, err := Mint("api-key", "api-secret", "lobby", "ingress-42", "Audio Streamer", time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	claims := parse(t, token, "api-secret")
	if claims.Issuer != "api-key" {
		t.Errorf("iss = %q, want api-key", claims.Issuer)
	}
	if claims.Subject != "ingress-42" {
		t.Errorf("sub = %q, want ingress-42", claims.Subject)
	}
	if claims.Name != "Audio Streamer" {
		t.Errorf("name = %q, want Audio Streamer", claims.Name)
	}
	if claims.Video.Room != "lobby" || !claims.Video.RoomJoin {
		t.Errorf("video grant = %+v, want lobby with roomJoin", claims.Video)
	}
}

func TestMintValidityWindow(t *testing.T) {
	token, err := Mint("k", "s", "r", "id", "", 30*time.Minute)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	claims := parse(t, token, "s")

	window := claims.ExpiresAt.Sub(claims.NotBefore.Time)
	if window != 30*time.Minute {
		t.Errorf("validity window = %v, want 30m", window)
	}
}

func TestMintDefaultTTL(t *testing.T) {
	token, err := Mint("k", "s", "r", "id", "", 0)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	claims := parse(t, token, "s")
	if window := claims.ExpiresAt.Sub(claims.NotBefore.Time); window != DefaultTTL {
		t.Errorf("validity window = %v, want DefaultTTL", window)
	}
}

func TestMintRejectsWrongSecret(t *testing.T) {
	token, err := Mint("k", "right-secret", "r", "id", "", time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	_, err = jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		return []byte("wrong-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err == nil {
		t.Fatal("token verified with the wrong secret")
	}
}
