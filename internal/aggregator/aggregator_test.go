package aggregator_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/contractgraph/internal/aggregator"
	"github.com/hanpama/contractgraph/internal/auth"
	"github.com/hanpama/contractgraph/internal/codegen"
	"github.com/hanpama/contractgraph/internal/contract"
	"github.com/hanpama/contractgraph/internal/executor"
	"github.com/hanpama/contractgraph/internal/language"
	"github.com/hanpama/contractgraph/internal/module"
	"github.com/hanpama/contractgraph/internal/resolver"
	"github.com/hanpama/contractgraph/internal/service"
)

const secret = "aggregator-secret"

const helloSDL = `extend type Query {
  hello(name: String): String @bind(service: "GreeterService", method: "hello")
}
`

type env struct {
	dir      string
	cfg      aggregator.Config
	agg      *aggregator.Aggregator
	auth     *module.Auth
	services *service.Registry
}

func product() *contract.Contract {
	return &contract.Contract{
		ControllerName: "Product",
		Fields:         []contract.Field{{PropertyKey: "name", ProtoType: "string"}},
		Auth:           true,
	}
}

func newEnv(t *testing.T, cs ...*contract.Contract) *env {
	t.Helper()
	dir := t.TempDir()
	cfg := aggregator.Config{
		SourceDir:         filepath.Join(dir, "src"),
		ContractsDir:      filepath.Join(dir, "contracts"),
		GeneratedRoot:     filepath.Join(dir, "src", "generated"),
		GenerateResolvers: true,
		EmitSchema:        true,
		Workers:           2,
	}
	require.NoError(t, os.MkdirAll(cfg.SourceDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.SourceDir, "hello.graphql"), []byte(helloSDL), 0o644))

	reg, err := contract.NewRegistry(cs...)
	require.NoError(t, err)

	services := service.NewRegistry()
	services.Put("GreeterService", service.Methods{
		"hello": func(_ context.Context, args map[string]any) (any, error) {
			name, _ := args["name"].(string)
			return "hello " + name, nil
		},
	})

	mods := module.NewRegistry()
	a := module.NewAuth(secret)
	require.NoError(t, mods.Install(a, services))

	agg := aggregator.New(cfg, reg, services,
		aggregator.WithModules(mods),
		aggregator.WithVerifier(a.Verifier()),
		aggregator.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return &env{dir: dir, cfg: cfg, agg: agg, auth: a, services: services}
}

func (e *env) token(t *testing.T, root bool, roles ...string) string {
	t.Helper()
	access, _, err := e.auth.Issue("tester", root, roles)
	require.NoError(t, err)
	return access
}

func execute(t *testing.T, b *aggregator.Build, token, query string) *executor.ExecutionResult {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	ctx := auth.NewContext(context.Background(), auth.RequestContext{Token: token})
	return b.Executor().ExecuteRequest(ctx, doc, "", nil, nil)
}

func TestRunServesGeneratedResolvers(t *testing.T) {
	e := newEnv(t, product())
	b, err := e.agg.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, b.Artifacts, 1)
	artifact := filepath.Join(e.cfg.GeneratedRoot, "resolvers", "product.resolver.graphql")
	require.Equal(t, artifact, b.Artifacts[0].Resolver)
	require.FileExists(t, artifact)
	require.FileExists(t, filepath.Join(e.cfg.GeneratedRoot, "models", "product.go"))
	require.Equal(t, filepath.Join(e.cfg.GeneratedRoot, aggregator.SchemaFile), b.SchemaPath)
	require.FileExists(t, b.SchemaPath)
	require.Same(t, b, e.agg.Last())

	res := execute(t, b, "", `{ productFind { count } }`)
	require.Len(t, res.Errors, 1)
	require.Equal(t, resolver.DeniedMessage, res.Errors[0].Message)

	res = execute(t, b, e.token(t, true), `mutation { createProduct(input: {name: "Lamp"}) { id name } }`)
	require.Empty(t, res.Errors)

	res = execute(t, b, e.token(t, false, "product:read"), `{ productFind { count data { name } } hello(name: "you") }`)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{
		"productFind": map[string]any{"count": 1, "data": []any{map[string]any{"name": "Lamp"}}},
		"hello":       "hello you",
	}, res.Data)

	res = execute(t, b, e.token(t, false), `{ authMe { subject root } __schema { queryType { name } } }`)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{"subject": "tester", "root": false}, res.Data.(map[string]any)["authMe"])
}

func TestRunIsStable(t *testing.T) {
	e := newEnv(t, product())
	_, err := e.agg.Run(context.Background())
	require.NoError(t, err)
	b, err := e.agg.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, b.Artifacts[0].Changed)
}

func TestRunSkipsUnparsableSources(t *testing.T) {
	e := newEnv(t, product())
	require.NoError(t, os.WriteFile(filepath.Join(e.cfg.SourceDir, "broken.graphql"), []byte("type {"), 0o644))

	b, err := e.agg.Run(context.Background())
	require.NoError(t, err)
	for _, src := range b.Project.Sources {
		require.NotEqual(t, "broken.graphql", src.Name)
	}
}

func TestRunSkipsFailedContracts(t *testing.T) {
	broken := &contract.Contract{
		ControllerName: "Report",
		Fields:         []contract.Field{{PropertyKey: "title", ProtoType: "string"}},
		Services: []contract.Service{{
			FunctionName: "render", Method: "GET", ServiceName: "RendererService",
		}},
	}
	e := newEnv(t, product(), broken)

	b, err := e.agg.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, b.Artifacts, 1)
	require.Len(t, b.Failed, 1)
	require.ErrorIs(t, b.Failed[0], codegen.ErrGeneration)
	require.ErrorIs(t, b.Failed[0], service.ErrUnknownService)
	require.NoFileExists(t, filepath.Join(e.cfg.GeneratedRoot, "resolvers", "report.resolver.graphql"))
}

func TestBuildFailureKeepsLastBuild(t *testing.T) {
	e := newEnv(t, product())
	first, err := e.agg.Run(context.Background())
	require.NoError(t, err)

	e.services.Remove("GreeterService")
	var seen int
	e.agg.OnBuild(func(*aggregator.Build) { seen++ })

	_, err = e.agg.Run(context.Background())
	require.ErrorIs(t, err, service.ErrUnknownService)
	require.Same(t, first, e.agg.Last())
	require.Zero(t, seen)
}

func TestCompileAndRemove(t *testing.T) {
	e := newEnv(t, product())
	_, err := e.agg.Run(context.Background())
	require.NoError(t, err)

	brand := &contract.Contract{
		ControllerName: "Brand",
		SubPath:        "catalog",
		Fields:         []contract.Field{{PropertyKey: "title", ProtoType: "string"}},
	}
	b, err := e.agg.Compile(context.Background(), brand)
	require.NoError(t, err)
	require.Len(t, b.Artifacts, 2)
	artifact := filepath.Join(e.cfg.GeneratedRoot, "resolvers", "catalog", "brand.resolver.graphql")
	require.FileExists(t, artifact)
	require.FileExists(t, filepath.Join(e.cfg.ContractsDir, "Brand.yaml"))

	res := execute(t, b, "", `{ brandFind { count } }`)
	require.Empty(t, res.Errors)

	b, err = e.agg.Remove(context.Background(), "Brand")
	require.NoError(t, err)
	require.Len(t, b.Artifacts, 1)
	require.NoFileExists(t, artifact)
	require.NoDirExists(t, filepath.Join(e.cfg.GeneratedRoot, "resolvers", "catalog"))
	require.NoFileExists(t, filepath.Join(e.cfg.ContractsDir, "Brand.yaml"))
	_, err = e.services.Resolve("BrandService")
	require.ErrorIs(t, err, service.ErrUnknownService)

	_, err = e.agg.Remove(context.Background(), "Brand")
	require.ErrorIs(t, err, contract.ErrNotFound)
}

func TestCompileRejectsInvalidContract(t *testing.T) {
	e := newEnv(t)
	_, err := e.agg.Compile(context.Background(), &contract.Contract{ControllerName: "lower"})
	require.ErrorIs(t, err, contract.ErrInvalidContract)
}

func TestReload(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, contract.Save(e.cfg.ContractsDir, product()))

	b, err := e.agg.Reload(context.Background())
	require.NoError(t, err)
	require.Len(t, b.Artifacts, 1)
	require.Equal(t, 1, e.agg.Contracts().Len())
}

func TestGenerateSkipsSchemaBuild(t *testing.T) {
	e := newEnv(t, product())
	e.services.Remove("GreeterService")

	b := e.agg.Generate(context.Background())
	require.Len(t, b.Artifacts, 1)
	require.Empty(t, b.Failed)
	require.Nil(t, b.Schema)
	require.FileExists(t, filepath.Join(e.cfg.GeneratedRoot, "resolvers", "product.resolver.graphql"))
	require.NoFileExists(t, filepath.Join(e.cfg.GeneratedRoot, aggregator.SchemaFile))
	require.Nil(t, e.agg.Last())
}

func TestRunSkipsContractWithCollidingMethod(t *testing.T) {
	order := &contract.Contract{
		ControllerName: "Order",
		Fields:         []contract.Field{{PropertyKey: "total", ProtoType: "double"}},
		Services:       []contract.Service{{FunctionName: "find", Method: "GET", Request: contract.Void}},
	}
	e := newEnv(t, product(), order)

	b, err := e.agg.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, b.Artifacts, 1)
	require.Len(t, b.Failed, 1)
	require.ErrorIs(t, b.Failed[0], codegen.ErrGeneration)
	require.ErrorIs(t, b.Failed[0], contract.ErrInvalidContract)
	require.NoFileExists(t, filepath.Join(e.cfg.GeneratedRoot, "resolvers", "order.resolver.graphql"))

	res := execute(t, b, e.token(t, true), `{ productFind { count } }`)
	require.Empty(t, res.Errors)
}

func TestRunWithoutGenerationServesArtifactsOnDisk(t *testing.T) {
	e := newEnv(t, product())
	_, err := e.agg.Run(context.Background())
	require.NoError(t, err)

	cfg := e.cfg
	cfg.GenerateResolvers = false
	agg := aggregator.New(cfg, e.agg.Contracts(), e.services,
		aggregator.WithVerifier(e.auth.Verifier()),
		aggregator.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	b, err := agg.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, b.Artifacts)

	res := execute(t, b, e.token(t, true), `{ productFind { count } hello(name: "disk") }`)
	require.Empty(t, res.Errors)
	require.Equal(t, map[string]any{
		"productFind": map[string]any{"count": 0},
		"hello":       "hello disk",
	}, res.Data)
}
