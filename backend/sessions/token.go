package sessions

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ravigill3969/image-converter/backend/apperr"
	"github.com/ravigill3969/image-converter/backend/models"
)

const tokenIssuer = "image-converter"

type Claims struct {
	SessionKey string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenCodec signs session keys into the cookie value so a forged or
// tampered cookie never reaches Redis.
type TokenCodec struct {
	secret []byte
	nowF   func() time.Time
}

func NewTokenCodec(secret string) *TokenCodec {
	return &TokenCodec{
		secret: []byte(secret),
		nowF:   time.Now,
	}
}

func (c *TokenCodec) Encode(sess *models.UserSession) (string, error) {
	claims := &Claims{
		SessionKey: sess.Key,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   string(sess.UserID),
			IssuedAt:  jwt.NewNumericDate(sess.RefreshedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Decode returns the session key carried by token.
func (c *TokenCodec) Decode(tokenString string) (string, error) {
	if tokenString == "" {
		return "", apperr.NewUnauthenticated("Session required")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.nowF),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", apperr.NewUnauthenticated("Session expired")
		}
		return "", &apperr.Error{Kind: apperr.KindUnauthenticated, Message: "Invalid session", Err: err}
	}
	if claims.SessionKey == "" {
		return "", apperr.NewUnauthenticated("Invalid session")
	}
	return claims.SessionKey, nil
}
