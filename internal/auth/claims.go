package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoVerifier is returned when a token must be checked but no verifier is configured.
	ErrNoVerifier = errors.New("auth: no token verifier configured")
	// ErrInvalidToken wraps every verification failure.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Token kinds carried in the "kind" claim.
const (
	KindAccess  = ""
	KindRefresh = "refresh"
)

// Claims is the payload of an access or refresh token.
type Claims struct {
	Root  bool     `json:"root,omitempty"`
	Roles RoleList `json:"roles,omitempty"`
	Kind  string   `json:"kind,omitempty"`
	jwt.RegisteredClaims
}

// RoleList accepts both a single role string and an array of roles.
// A missing claim stays nil.
type RoleList []string

func (r *RoleList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*r = RoleList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("roles claim: %w", err)
	}
	if many == nil {
		many = []string{}
	}
	*r = many
	return nil
}

// HMACVerifier verifies HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewHMACVerifier returns a verifier for tokens signed with secret.
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Verify parses an access token and validates its signature and time claims.
func (v *HMACVerifier) Verify(token string) (*Claims, error) {
	return v.parse(token, KindAccess)
}

// VerifyRefresh is Verify for refresh tokens.
func (v *HMACVerifier) VerifyRefresh(token string) (*Claims, error) {
	return v.parse(token, KindRefresh)
}

func (v *HMACVerifier) parse(token, kind string) (*Claims, error) {
	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: unexpected token kind %q", ErrInvalidToken, claims.Kind)
	}
	return claims, nil
}

// Issue signs claims with secret. A positive ttl sets the expiry relative to now.
func Issue(secret string, claims Claims, ttl time.Duration, now time.Time) (string, error) {
	claims.IssuedAt = jwt.NewNumericDate(now)
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
