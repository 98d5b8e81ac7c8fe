package auth

import (
	"context"
	"net/http"
	"strings"
)

// DefaultRefreshHeader carries the refresh token unless configured otherwise.
const DefaultRefreshHeader = "x-refresh-token"

// RequestContext is handed to every resolved operation.
type RequestContext struct {
	Token        string
	RefreshToken string
	Request      *http.Request
}

// FromRequest extracts the tokens of r. The access token comes from the
// Authorization header with an optional Bearer scheme; the refresh header
// name is matched case-insensitively.
func FromRequest(r *http.Request, refreshHeader string) RequestContext {
	if refreshHeader == "" {
		refreshHeader = DefaultRefreshHeader
	}
	rc := RequestContext{Request: r, Token: bearer(r.Header.Get("Authorization"))}
	for name, values := range r.Header {
		if strings.EqualFold(name, refreshHeader) && len(values) > 0 {
			rc.RefreshToken = strings.TrimSpace(values[0])
			break
		}
	}
	return rc
}

func bearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return v
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying rc.
func NewContext(ctx context.Context, rc RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// FromContext returns the request context stored in ctx.
func FromContext(ctx context.Context) (RequestContext, bool) {
	rc, ok := ctx.Value(ctxKey{}).(RequestContext)
	return rc, ok
}
