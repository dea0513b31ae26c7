package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks a client credential and returns the verified user id.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, token string) (string, error)

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, token string) (string, error) {
	return f(ctx, token)
}

// JWTConfig selects the key and the claims a token must carry.
type JWTConfig struct {
	Secret       string // HS256 shared secret
	PublicKeyPEM []byte // RS256 public key; takes precedence over Secret
	Issuer       string
	Audience     string
}

type idTokenClaims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates signed ID tokens.
type JWTVerifier struct {
	parser  *jwt.Parser
	keyFunc jwt.Keyfunc
}

// NewJWTVerifier builds a verifier from cfg.
func NewJWTVerifier(cfg JWTConfig) (*JWTVerifier, error) {
	var (
		key     any
		methods []string
	)
	switch {
	case len(cfg.PublicKeyPEM) > 0:
		pub, err := jwt.ParseRSAPublicKeyFromPEM(cfg.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("parse jwt public key: %w", err)
		}
		key = pub
		methods = []string{jwt.SigningMethodRS256.Alg()}
	case strings.TrimSpace(cfg.Secret) != "":
		key = []byte(cfg.Secret)
		methods = []string{jwt.SigningMethodHS256.Alg()}
	default:
		return nil, errors.New("jwt secret or public key is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &JWTVerifier{
		parser: jwt.NewParser(opts...),
		keyFunc: func(*jwt.Token) (any, error) {
			return key, nil
		},
	}, nil
}

// Verify parses and validates the token, returning its subject.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("id token is required")
	}

	var claims idTokenClaims
	if _, err := v.parser.ParseWithClaims(token, &claims, v.keyFunc); err != nil {
		return "", fmt.Errorf("verify id token: %w", err)
	}

	uid := claims.Subject
	if uid == "" {
		uid = claims.UserID
	}
	if uid == "" {
		return "", errors.New("id token has no subject")
	}
	return uid, nil
}
