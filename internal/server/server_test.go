package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/contractgraph/internal/auth"
	"github.com/hanpama/contractgraph/internal/executor"
	"github.com/hanpama/contractgraph/internal/reqid"
	"github.com/hanpama/contractgraph/internal/schema"
)

func newTestHandler(t *testing.T, rt executor.Runtime, opts ...Option) *Handler {
	t.Helper()
	sch, err := schema.BuildFromSDL(`type Query { hello: String }`)
	require.NoError(t, err)
	h := New(opts...)
	h.Swap(executor.NewExecutor(rt, sch))
	return h
}

func post(h http.Handler, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNotReadyBeforeFirstBuild(t *testing.T) {
	h := New()
	require.False(t, h.Ready())

	w := post(h, `{"query":"{ hello }"}`, nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), NotReadyMessage)
}

func TestRequestContextCarriesTokens(t *testing.T) {
	rt := executor.NewMockRuntime(nil)
	var (
		captured auth.RequestContext
		id       string
	)
	rt.SetResolver("Query", "hello", func(ctx context.Context, src any, args map[string]any) (any, error) {
		captured, _ = auth.FromContext(ctx)
		id, _ = reqid.FromContext(ctx)
		return "world", nil
	})
	h := newTestHandler(t, rt, WithRefreshHeader("X-Session-Refresh"))

	w := post(h, `{"query":"{ hello }"}`, http.Header{
		"Authorization":     {"Bearer access-1"},
		"X-Session-Refresh": {"refresh-1"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"data":{"hello":"world"}}`, w.Body.String())
	require.Equal(t, "access-1", captured.Token)
	require.Equal(t, "refresh-1", captured.RefreshToken)
	require.NotNil(t, captured.Request)
	require.NotEmpty(t, id)
	require.Equal(t, id, w.Header().Get(reqid.Header))
}

func TestIncomingRequestIDIsKept(t *testing.T) {
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": executor.NewMockValueResolver("world"),
	})
	h := newTestHandler(t, rt)

	w := post(h, `{"query":"{ hello }"}`, http.Header{reqid.Header: {"upstream-7"}})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "upstream-7", w.Header().Get(reqid.Header))
}

func TestSwapReplacesExecutor(t *testing.T) {
	h := newTestHandler(t, executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": executor.NewMockValueResolver("first"),
	}))
	require.JSONEq(t, `{"data":{"hello":"first"}}`, post(h, `{"query":"{ hello }"}`, nil).Body.String())

	sch, err := schema.BuildFromSDL(`type Query { hello: String }`)
	require.NoError(t, err)
	h.Swap(executor.NewExecutor(executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": executor.NewMockValueResolver("second"),
	}), sch))
	require.JSONEq(t, `{"data":{"hello":"second"}}`, post(h, `{"query":"{ hello }"}`, nil).Body.String())
}

func TestBatchedRequests(t *testing.T) {
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": executor.NewMockValueResolver("world"),
	})
	h := newTestHandler(t, rt)

	w := post(h, `[{"query":"{ hello }"},{"query":"{ hello }"}]`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 2)
}

func TestGetWithQueryString(t *testing.T) {
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": executor.NewMockValueResolver("world"),
	})
	h := newTestHandler(t, rt)

	req := httptest.NewRequest(http.MethodGet, "/graphql?query=%7B%20hello%20%7D", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"data":{"hello":"world"}}`, w.Body.String())
}

func TestGraphiQL(t *testing.T) {
	h := New()
	req := httptest.NewRequest(http.MethodGet, "/graphql", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "text/html")
	require.Contains(t, w.Body.String(), "graphiql")
}

func TestMaxBodyBytes(t *testing.T) {
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": executor.NewMockValueResolver("world"),
	})
	h := newTestHandler(t, rt, WithMaxBodyBytes(10))

	w := post(h, `{"query":"1234567890"}`, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSyntaxErrorsAreReported(t *testing.T) {
	h := newTestHandler(t, executor.NewMockRuntime(nil))

	w := post(h, `{"query":"{ hello "}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Errors []struct{ Message string } `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Errors, 1)
}

func TestRejectedRequests(t *testing.T) {
	h := newTestHandler(t, executor.NewMockRuntime(nil))

	for _, tc := range []struct {
		name   string
		method string
		ctype  string
		body   string
		status int
	}{
		{"put", http.MethodPut, "application/json", `{"query":"{ hello }"}`, http.StatusMethodNotAllowed},
		{"form body", http.MethodPost, "application/x-www-form-urlencoded", "query=x", http.StatusUnsupportedMediaType},
		{"empty batch", http.MethodPost, "application/json", `[]`, http.StatusBadRequest},
		{"no query", http.MethodPost, "application/json; charset=utf-8", `{"operationName":"A"}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "application/json", `{`, http.StatusBadRequest},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/graphql", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", tc.ctype)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			require.Equal(t, tc.status, w.Code)

			var res executor.ExecutionResult
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
			require.Len(t, res.Errors, 1)
		})
	}
}
