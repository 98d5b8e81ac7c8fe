package metrics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/contractgraph/internal/eventbus"
	"github.com/hanpama/contractgraph/internal/events"
	"github.com/hanpama/contractgraph/internal/metrics"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := metrics.New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Delete("/{contractName}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Handle("/metrics", m.Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/Product", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `http_requests_total{method="DELETE",path="/{contractName}",status="204"} 1`)
}

func TestEventCollectors(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	m := metrics.New()
	defer m.Subscribe()()

	ctx := context.Background()
	eventbus.Publish(ctx, events.AuthDecision{ObjectType: "Query", Field: "productFind", Allowed: false})
	eventbus.Publish(ctx, events.AuthDecision{ObjectType: "Query", Field: "productFind", Allowed: false})
	eventbus.Publish(ctx, events.ServiceCallFinish{Service: "ProductService", Method: "find", Duration: time.Millisecond})
	eventbus.Publish(ctx, events.OperationFinish{Type: "query"})
	eventbus.Publish(ctx, events.OperationFinish{Type: "mutation", Errors: 2})
	eventbus.Publish(ctx, events.OperationFinish{Errors: 1})
	eventbus.Publish(ctx, events.Build{Sources: 3, Duration: time.Second})
	eventbus.Publish(ctx, events.Build{Err: errors.New("bad"), Duration: time.Second})

	expected := `
# HELP auth_decisions_total Authorization decisions on guarded operations.
# TYPE auth_decisions_total counter
auth_decisions_total{allowed="false",field="Query.productFind"} 2
# HELP graphql_operations_total GraphQL operations by type and whether the result carried errors.
# TYPE graphql_operations_total counter
graphql_operations_total{outcome="error",type="mutation"} 1
graphql_operations_total{outcome="error",type="unknown"} 1
graphql_operations_total{outcome="ok",type="query"} 1
# HELP schema_builds_total Schema builds by outcome.
# TYPE schema_builds_total counter
schema_builds_total{outcome="error"} 1
schema_builds_total{outcome="ok"} 1
# HELP schema_sources Resolver sources in the serving schema.
# TYPE schema_sources gauge
schema_sources 3
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"auth_decisions_total", "graphql_operations_total", "schema_builds_total", "schema_sources"))
	n, err := testutil.GatherAndCount(m.Registry(), "service_call_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
