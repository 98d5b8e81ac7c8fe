// Package auth decides whether a request may run a guarded operation.
package auth

import "fmt"

// Requirement is one entry of an operation's policy: either a scoped role
// such as "product:read" or the root-only sentinel.
type Requirement struct {
	Role     string
	RootOnly bool
}

// RootOnly restricts an operation to root callers.
var RootOnly = Requirement{RootOnly: true}

// Role returns a role requirement.
func Role(role string) Requirement { return Requirement{Role: role} }

// Roles returns one role requirement per role.
func Roles(roles ...string) []Requirement {
	out := make([]Requirement, len(roles))
	for i, r := range roles {
		out[i] = Role(r)
	}
	return out
}

func (r Requirement) String() string {
	if r.RootOnly {
		return "{rootOnly}"
	}
	return r.Role
}

// Verifier decodes and validates a token.
type Verifier interface {
	Verify(token string) (*Claims, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(token string) (*Claims, error)

func (f VerifierFunc) Verify(token string) (*Claims, error) { return f(token) }

// Authorize decides whether a caller holding token may run an operation
// guarded by required. The first matching rule wins:
//
//  1. no token: deny
//  2. no auth module installed: allow
//  3. verification fails: deny
//  4. root claim: allow
//  5. a root-only requirement: deny
//  6. no requirements: allow
//  7. allow iff the caller's roles intersect the required roles
//
// Authorize never panics; a panicking verifier counts as a failed verification.
func Authorize(token string, required []Requirement, hasAuthModule bool, v Verifier) bool {
	if token == "" {
		return false
	}
	if !hasAuthModule {
		return true
	}
	claims, err := verify(v, token)
	if err != nil || claims == nil {
		return false
	}
	if claims.Root {
		return true
	}
	for _, r := range required {
		if r.RootOnly {
			return false
		}
	}
	if len(required) == 0 {
		return true
	}
	if claims.Roles == nil {
		return false
	}
	held := make(map[string]struct{}, len(claims.Roles))
	for _, role := range claims.Roles {
		held[role] = struct{}{}
	}
	for _, r := range required {
		if _, ok := held[r.Role]; ok {
			return true
		}
	}
	return false
}

func verify(v Verifier, token string) (claims *Claims, err error) {
	if v == nil {
		return nil, ErrNoVerifier
	}
	defer func() {
		if p := recover(); p != nil {
			claims, err = nil, fmt.Errorf("verifier panic: %v", p)
		}
	}()
	return v.Verify(token)
}
