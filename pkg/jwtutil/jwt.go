package jwtutil

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/oscarfrank/saas-template-sub007/pkg/config"
)

var (
	secret     []byte
	expiration = time.Hour * 24
)

// ErrWrongPurpose is returned when a token is valid but was issued for a
// different use (e.g. an access token presented to the verification endpoint).
var ErrWrongPurpose = errors.New("token issued for a different purpose")

// Token purposes.
const (
	PurposeAccess = "access"
	PurposeVerify = "verify"
)

// UserClaims represents the JWT claims for user authentication. Tenant
// context deliberately does not live in the token; it is resolved from the
// request path on every tenant-scoped request.
type UserClaims struct {
	Email   string `json:"email"`
	UserID  uint   `json:"user_id"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// Initialize configures the signing key and token lifetime
func Initialize(cfg *config.JWTConfig) {
	secret = []byte(cfg.SigningKey)
	if cfg.ExpirationHours > 0 {
		expiration = time.Duration(cfg.ExpirationHours) * time.Hour
	}
}

// GenerateToken creates an access JWT with user information
func GenerateToken(email string, userID uint) (string, error) {
	return generate(email, userID, PurposeAccess, expiration)
}

// GenerateVerificationToken creates a short-lived token used to confirm a
// user's email address
func GenerateVerificationToken(email string, userID uint) (string, error) {
	return generate(email, userID, PurposeVerify, 48*time.Hour)
}

func generate(email string, userID uint, purpose string, ttl time.Duration) (string, error) {
	claims := UserClaims{
		Email:   email,
		UserID:  userID,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken validates and parses an access token
func ValidateToken(tokenString string) (*UserClaims, error) {
	return validate(tokenString, PurposeAccess)
}

// ValidateVerificationToken validates and parses an email verification token
func ValidateVerificationToken(tokenString string) (*UserClaims, error) {
	return validate(tokenString, PurposeVerify)
}

func validate(tokenString, purpose string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}

	// Tokens minted before purposes were introduced carry none; treat them
	// as access tokens.
	got := claims.Purpose
	if got == "" {
		got = PurposeAccess
	}
	if got != purpose {
		return nil, ErrWrongPurpose
	}

	return claims, nil
}
