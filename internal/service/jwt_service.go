package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultJWTIssuer    = "growth-hungry"
	DefaultJWTAudience  = "gh-users"
	DefaultJWTTTL       = 30 * time.Minute
	DefaultJWTClockSkew = 60 * time.Second

	accessTokenType = "access"
)

// JWTOptions configura emisión y validación de tokens.
type JWTOptions struct {
	Secret    string
	Issuer    string
	Audience  string
	TTL       time.Duration
	ClockSkew time.Duration
	Now       func() time.Time
}

// JWTService emite y valida tokens JWT.
type JWTService struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	skew     time.Duration
	now      func() time.Time
}

type Claims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

func NewJWTService(opts JWTOptions) *JWTService {
	if strings.TrimSpace(opts.Issuer) == "" {
		opts.Issuer = DefaultJWTIssuer
	}
	if strings.TrimSpace(opts.Audience) == "" {
		opts.Audience = DefaultJWTAudience
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultJWTTTL
	}
	if opts.ClockSkew <= 0 {
		opts.ClockSkew = DefaultJWTClockSkew
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &JWTService{
		secret:   []byte(opts.Secret),
		issuer:   opts.Issuer,
		audience: opts.Audience,
		ttl:      opts.TTL,
		skew:     opts.ClockSkew,
		now:      opts.Now,
	}
}

func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// Issue firma un access token para el subject dado.
func (s *JWTService) Issue(subject string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrJWTInvalid
	}
	subject = normalizeEmail(subject)
	if subject == "" {
		return "", ErrJWTInvalid
	}
	now := s.now().UTC()
	claims := Claims{
		TokenType: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify devuelve el subject de un token válido. Depende solo del token, el reloj y la clave.
func (s *JWTService) Verify(tokenString string) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", ErrJWTInvalid
	}
	if strings.TrimSpace(tokenString) == "" {
		return "", ErrJWTInvalid
	}

	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithLeeway(s.skew),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrJWTExpired
		}
		return "", ErrJWTInvalid
	}
	if claims.TokenType != accessTokenType {
		return "", ErrJWTInvalid
	}
	subject := normalizeEmail(claims.Subject)
	if subject == "" {
		return "", ErrJWTInvalid
	}
	return subject, nil
}
