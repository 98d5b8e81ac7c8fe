package module_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/contractgraph/internal/auth"
	"github.com/hanpama/contractgraph/internal/ir"
	"github.com/hanpama/contractgraph/internal/module"
	"github.com/hanpama/contractgraph/internal/service"
)

func TestRegistry(t *testing.T) {
	mods := module.NewRegistry()
	services := service.NewRegistry()
	require.False(t, mods.HasAuth())

	require.NoError(t, mods.Install(module.NewAuth("s3cret"), services))
	require.True(t, mods.HasAuth())
	require.True(t, mods.Has(module.AuthName))
	require.Len(t, mods.Installed(), 1)

	_, err := services.Resolve(module.AuthServiceName)
	require.NoError(t, err)

	require.ErrorContains(t, mods.Install(module.NewAuth("other"), services), "already installed")
}

func TestAuthSDLBuilds(t *testing.T) {
	mods := module.NewRegistry()
	require.NoError(t, mods.Install(module.NewAuth("s3cret"), service.NewRegistry()))

	srcs := mods.Sources()
	require.Len(t, srcs, 1)
	require.Equal(t, "auth.module.graphql", srcs[0].Name)

	p, err := ir.Build(context.Background(), ir.NewInMemoryDiscovery(ir.OriginModule, srcs),
		ir.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	me := p.RootObject("Query").Fields["authMe"]
	require.NotNil(t, me)
	require.Equal(t, &ir.Policy{}, me.Policy)
	require.Equal(t, &ir.Binding{Service: "AuthService", Method: "me"}, me.Binding)
}

func TestAuthMeAndRefresh(t *testing.T) {
	a := module.NewAuth("s3cret", module.WithTTL(time.Minute, time.Hour))
	services := service.NewRegistry()
	require.NoError(t, a.Install(services))
	svc, err := services.Resolve(module.AuthServiceName)
	require.NoError(t, err)

	access, refresh, err := a.Issue("user-1", false, []string{"product:read"})
	require.NoError(t, err)

	ctx := auth.NewContext(context.Background(), auth.RequestContext{Token: access, RefreshToken: refresh})
	me, err := svc.Invoke(ctx, "me", nil)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"subject": "user-1", "root": false, "roles": []any{"product:read"}}, me)

	// A refresh token is not an access token.
	_, err = svc.Invoke(auth.NewContext(context.Background(), auth.RequestContext{Token: refresh}), "me", nil)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	out, err := svc.Invoke(ctx, "refresh", map[string]any{})
	require.NoError(t, err)
	session := out.(map[string]any)
	claims, err := a.Verifier().Verify(session["accessToken"].(string))
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, auth.RoleList{"product:read"}, claims.Roles)

	_, err = svc.Invoke(context.Background(), "refresh", map[string]any{"refreshToken": access})
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = svc.Invoke(context.Background(), "refresh", nil)
	require.ErrorContains(t, err, "refresh token required")
}
