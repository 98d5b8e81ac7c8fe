package module

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hanpama/contractgraph/internal/auth"
	"github.com/hanpama/contractgraph/internal/service"
)

// AuthServiceName is the service the auth module's fields bind to.
const AuthServiceName = "AuthService"

const authSDL = `type AuthIdentity {
  subject: String
  root: Boolean!
  roles: [String!]!
}

type AuthSession {
  accessToken: String!
  refreshToken: String!
}

extend type Query {
  authMe: AuthIdentity @auth @bind(service: "AuthService", method: "me")
}

extend type Mutation {
  authRefresh(refreshToken: String): AuthSession! @bind(service: "AuthService", method: "refresh")
}
`

// Default token lifetimes.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Auth is the module verifying tokens signed with a shared secret.
type Auth struct {
	secret     string
	verifier   *auth.HMACVerifier
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type AuthOption func(*Auth)

// WithTTL sets the access and refresh token lifetimes.
func WithTTL(access, refresh time.Duration) AuthOption {
	return func(a *Auth) { a.accessTTL, a.refreshTTL = access, refresh }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) AuthOption {
	return func(a *Auth) { a.now = now }
}

// NewAuth returns the auth module for secret.
func NewAuth(secret string, opts ...AuthOption) *Auth {
	a := &Auth{
		secret:     secret,
		verifier:   auth.NewHMACVerifier(secret),
		accessTTL:  DefaultAccessTTL,
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Auth) Name() string { return AuthName }

func (a *Auth) SDL() string { return authSDL }

// Verifier returns the verifier of access tokens.
func (a *Auth) Verifier() auth.Verifier { return a.verifier }

func (a *Auth) Install(reg *service.Registry) error {
	return reg.Register(AuthServiceName, service.Methods{
		"me":      a.me,
		"refresh": a.refresh,
	})
}

// Issue signs an access and refresh token pair for the given identity.
func (a *Auth) Issue(subject string, root bool, roles []string) (access, refresh string, err error) {
	now := a.now()
	claims := auth.Claims{Root: root, Roles: roles}
	claims.Subject = subject
	if access, err = auth.Issue(a.secret, claims, a.accessTTL, now); err != nil {
		return "", "", err
	}
	claims.Kind = auth.KindRefresh
	if refresh, err = auth.Issue(a.secret, claims, a.refreshTTL, now); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (a *Auth) me(ctx context.Context, _ map[string]any) (any, error) {
	rc, _ := auth.FromContext(ctx)
	claims, err := a.verifier.Verify(rc.Token)
	if err != nil {
		return nil, err
	}
	return identity(claims), nil
}

func (a *Auth) refresh(ctx context.Context, args map[string]any) (any, error) {
	token, _ := args["refreshToken"].(string)
	if strings.TrimSpace(token) == "" {
		rc, _ := auth.FromContext(ctx)
		token = rc.RefreshToken
	}
	if token == "" {
		return nil, errors.New("refresh token required")
	}
	claims, err := a.verifier.VerifyRefresh(token)
	if err != nil {
		return nil, err
	}
	access, refresh, err := a.Issue(claims.Subject, claims.Root, claims.Roles)
	if err != nil {
		return nil, err
	}
	return map[string]any{"accessToken": access, "refreshToken": refresh}, nil
}

func identity(c *auth.Claims) map[string]any {
	roles := make([]any, len(c.Roles))
	for i, r := range c.Roles {
		roles[i] = r
	}
	var subject any
	if c.Subject != "" {
		subject = c.Subject
	}
	return map[string]any{"subject": subject, "root": c.Root, "roles": roles}
}
