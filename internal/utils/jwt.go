package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type AccessClaims struct {
	NISN  string `json:"nisn"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Class string `json:"class,omitempty"`
	jwt.RegisteredClaims
}

func GenerateAccessToken(userID, nisn, name, role, class, secret string, hours int) (string, error) {
	expiration := time.Now().Add(time.Duration(hours) * time.Hour)
	claims := AccessClaims{
		NISN:  nisn,
		Name:  name,
		Role:  role,
		Class: class,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
