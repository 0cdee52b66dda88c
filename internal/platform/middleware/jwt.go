package middleware

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "compliance/pkg/domain-errors"
	textutil "compliance/pkg/platform/strings"
)

type tokenClaims struct {
	PreferredUsername string   `json:"preferred_username"`
	Groups            []string `json:"groups"`
	jwt.RegisteredClaims
}

// JWTService validates HMAC-signed access tokens issued by the identity
// provider and can mint tokens for local runs and tests.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewJWTService(signingKey, issuer, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

func (s *JWTService) IssueToken(username string, groups []string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		PreferredUsername: username,
		Groups:            groups,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	}
	if s.audience != "" {
		claims.Audience = []string{s.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.PreferredUsername == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has no preferred_username")
	}
	return &Claims{Username: claims.PreferredUsername, Groups: textutil.DedupeAndTrim(claims.Groups)}, nil
}
