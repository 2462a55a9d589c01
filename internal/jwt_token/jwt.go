package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"giveroute/pkg/domain"
	dErrors "giveroute/pkg/domain-errors"
	authmw "giveroute/pkg/platform/middleware/auth"
)

const defaultLeeway = 5 * time.Second

// Claims carries the authenticated address alongside the registered claims.
// Subject mirrors Address.
type Claims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// JWTService mints and checks HS256 caller tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	clock      clockwork.Clock
	parser     *jwt.Parser
}

type Option func(*JWTService)

// WithClock sets the clock used for issue time and expiry checks.
func WithClock(clock clockwork.Clock) Option {
	return func(s *JWTService) {
		s.clock = clock
	}
}

func NewJWTService(signingKey string, issuer string, audience string, opts ...Option) *JWTService {
	s := &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		clock:      clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(defaultLeeway),
		jwt.WithTimeFunc(s.clock.Now),
	)
	return s
}

// GenerateCallerToken signs a token for caller valid for ttl.
func (s *JWTService) GenerateCallerToken(caller domain.Address, ttl time.Duration) (string, error) {
	if caller.IsZero() {
		return "", dErrors.New(dErrors.CodeBadRequest, "caller address is required")
	}
	issued := s.clock.Now()
	subject := caller.String()
	claims := Claims{
		Address: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, nil
}

// ValidateToken verifies signature, issuer, audience and expiry.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
	case err != nil:
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return claims, nil
}

// ValidateCaller is ValidateToken followed by decoding the address claim.
func (s *JWTService) ValidateCaller(tokenString string) (domain.Address, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return domain.ZeroAddress, err
	}
	caller, err := domain.ParseAddress(claims.Address)
	if err != nil || caller.IsZero() {
		return domain.ZeroAddress, dErrors.New(dErrors.CodeUnauthorized, "invalid address claim")
	}
	return caller, nil
}

var _ authmw.CallerValidator = (*JWTService)(nil)
