package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/conduit-lang/bizobj/internal/bo/authz"
)

// ErrInvalidToken is returned for tokens that fail validation
var ErrInvalidToken = errors.New("invalid token")

// Claims carries a principal in a JWT
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 tokens carrying principals
type TokenService struct {
	secretKey []byte
	tokenTTL  time.Duration
	now       func() time.Time
}

// NewTokenService creates a token service with the given secret key and token TTL
func NewTokenService(secretKey string, tokenTTL time.Duration) *TokenService {
	return &TokenService{
		secretKey: []byte(secretKey),
		tokenTTL:  tokenTTL,
		now:       time.Now,
	}
}

// Issue signs a token for the user
func (s *TokenService) Issue(user *authz.User) (string, error) {
	now := s.now()
	claims := Claims{
		Roles: user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// Principal validates a token and returns the user it carries
func (s *TokenService) Principal(tokenString string) (*authz.User, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return authz.NewUser(claims.Subject, claims.Roles...), nil
}

// SignIn validates a token and makes its user the session principal
func (s *TokenService) SignIn(session *authz.Session, tokenString string) (*authz.User, error) {
	user, err := s.Principal(tokenString)
	if err != nil {
		return nil, err
	}
	session.SetPrincipal(user)
	return user, nil
}
