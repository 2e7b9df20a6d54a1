package utils

import (
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateSessionCode(t *testing.T) {
	code, err := GenerateSessionCode()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	parts := strings.Split(code, "_")
	if len(parts) != 3 || parts[0] != "QR" {
		t.Fatalf("code %q does not match QR_<millis>_<suffix>", code)
	}
	if len(parts[2]) != 9 {
		t.Errorf("suffix %q length = %d, want 9", parts[2], len(parts[2]))
	}

	other, err := GenerateSessionCode()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if code == other {
		t.Error("two codes should not collide")
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	const secret = "test-secret"

	token, err := GenerateAccessToken("user-1", "0012345678", "Siti", "student", "10.1", secret, 1)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	parsed, err := jwt.ParseWithClaims(token, &AccessClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("parse failed: %v", err)
	}

	claims := parsed.Claims.(*AccessClaims)
	if claims.Subject != "user-1" || claims.NISN != "0012345678" ||
		claims.Role != "student" || claims.Class != "10.1" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestAccessTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateAccessToken("user-1", "0012345678", "Siti", "student", "10.1", "secret-a", 1)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	_, err = jwt.ParseWithClaims(token, &AccessClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte("secret-b"), nil
	})
	if err == nil {
		t.Error("token signed with another secret must not verify")
	}
}
