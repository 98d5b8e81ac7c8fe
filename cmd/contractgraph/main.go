package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hanpama/contractgraph/internal/aggregator"
	"github.com/hanpama/contractgraph/internal/auth"
	"github.com/hanpama/contractgraph/internal/config"
	"github.com/hanpama/contractgraph/internal/contract"
	"github.com/hanpama/contractgraph/internal/eventbus"
	"github.com/hanpama/contractgraph/internal/ir"
	"github.com/hanpama/contractgraph/internal/metrics"
	"github.com/hanpama/contractgraph/internal/module"
	"github.com/hanpama/contractgraph/internal/otel"
	"github.com/hanpama/contractgraph/internal/repair"
	"github.com/hanpama/contractgraph/internal/schema"
	"github.com/hanpama/contractgraph/internal/server"
	"github.com/hanpama/contractgraph/internal/service"
	"github.com/hanpama/contractgraph/internal/store"
	"github.com/hanpama/contractgraph/internal/watch"
)

const rootUsage = `contractgraph: contract-driven GraphQL resolver generator

USAGE:
  contractgraph <command> [flags]

COMMANDS:
  serve            Generate resolvers and serve the GraphQL API
  generate         Write resolver artifacts for every contract and exit
  compile-sdl      Merge & validate GraphQL SDL into a single schema
  repair           Repair resolver SDL files in place
  token            Issue an access token signed with the auth secret
  help             Show help for any command
`

const serveUsage = `serve FLAGS:
  -config <file>               YAML configuration file (default: none)
  -env <file>                  Dotenv file (default: .env when present)
  -graphql.host <host>         Listen host (default: 0.0.0.0)
  -graphql.port <port>         Listen port (default: 4000)
  -graphql.timeout <duration>  Per-request timeout, e.g. 10s (default: 10s)
  -server.pretty               Pretty-print JSON responses
  -store.dsn <dsn>             Postgres DSN; empty keeps entities in memory
  -watch                       Recompile when contract files change
  -otel.endpoint <addr>        OTLP collector endpoint
  -otel.service <name>         OpenTelemetry service name (default: contractgraph)
`

const generateUsage = `generate FLAGS:
  -config <file>   YAML configuration file (default: none)
  -env <file>      Dotenv file (default: .env when present)
  (Exits non-zero when any contract fails to generate)
`

const compileSDLUsage = `compile-sdl FLAGS:
  -root <dir>   GraphQL source root (default: .)
  -out  <file>  Write compiled SDL to file (default: stdout)
  (Validation always runs; exits non-zero on errors)
`

const repairUsage = `repair FLAGS:
  -check   Report files that need repair without rewriting them
  <file>...  Resolver SDL files to repair
`

const tokenUsage = `token FLAGS:
  -secret <secret>    Signing secret (default: auth.jwtSecret from config)
  -config <file>      YAML configuration file (default: none)
  -subject <name>     Token subject
  -root               Grant root access
  -role <role>        Grant a role. Repeatable
  -ttl <duration>     Token lifetime (default: 15m)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd, cmdArgs := args[0], args[1:]
	switch cmd {
	case "serve":
		return cmdServe(ctx, cmdArgs, stderr)
	case "generate":
		return cmdGenerate(ctx, cmdArgs, stdout, stderr)
	case "compile-sdl":
		return cmdCompileSDL(ctx, cmdArgs, stdout, stderr)
	case "repair":
		return cmdRepair(cmdArgs, stdout, stderr)
	case "token":
		return cmdToken(cmdArgs, stdout, stderr)
	case "help":
		return cmdHelp(cmdArgs, stdout)
	default:
		fmt.Fprint(stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "serve":
		fmt.Fprint(stdout, serveUsage)
	case "generate":
		fmt.Fprint(stdout, generateUsage)
	case "compile-sdl":
		fmt.Fprint(stdout, compileSDLUsage)
	case "repair":
		fmt.Fprint(stdout, repairUsage)
	case "token":
		fmt.Fprint(stdout, tokenUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return strings.Join(*s, ",") }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func loadConfig(path, envFile string) (*config.Config, error) {
	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}
	return config.Load(path, envFiles...)
}

func cmdServe(ctx context.Context, args []string, stderr io.Writer) error {
	var (
		configPath, envFile string
		host, dsn           string
		otelEndpoint        string
		otelService         string
		port                int
		timeout             time.Duration
		pretty, watchOn     bool
	)
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&configPath, "config", "", "YAML configuration file")
	fs.StringVar(&envFile, "env", "", "Dotenv file")
	fs.StringVar(&host, "graphql.host", "", "Listen host")
	fs.IntVar(&port, "graphql.port", 0, "Listen port")
	fs.DurationVar(&timeout, "graphql.timeout", 0, "Per-request timeout")
	fs.BoolVar(&pretty, "server.pretty", false, "Pretty-print JSON responses")
	fs.StringVar(&dsn, "store.dsn", "", "Postgres DSN")
	fs.BoolVar(&watchOn, "watch", false, "Recompile when contract files change")
	fs.StringVar(&otelEndpoint, "otel.endpoint", "", "OTLP collector endpoint")
	fs.StringVar(&otelService, "otel.service", "", "OpenTelemetry service name")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, serveUsage)
		return err
	}

	cfg, err := loadConfig(configPath, envFile)
	if err != nil {
		return err
	}
	// Flags that were set explicitly override the file and environment.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "graphql.host":
			cfg.GraphQL.Host = host
		case "graphql.port":
			cfg.GraphQL.Port = port
		case "graphql.timeout":
			cfg.GraphQL.Timeout = timeout
		case "store.dsn":
			cfg.Store.DSN = dsn
		case "watch":
			cfg.Watch.Enabled = watchOn
		case "otel.endpoint":
			cfg.Otel.Endpoint = otelEndpoint
		case "otel.service":
			cfg.Otel.Service = otelService
		}
	})

	logger := slog.New(slog.NewJSONHandler(stderr, nil))
	slog.SetDefault(logger)

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(ctx, cfg.Otel.Endpoint, cfg.Otel.Service)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()
	m := metrics.New()
	defer m.Subscribe()()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	agg, err := newAggregator(cfg, st, logger)
	if err != nil {
		return err
	}

	sopts := []server.Option{server.WithRefreshHeader(cfg.Auth.RefreshHeader)}
	if cfg.GraphQL.Timeout > 0 {
		sopts = append(sopts, server.WithTimeout(cfg.GraphQL.Timeout))
	}
	if pretty {
		sopts = append(sopts, server.WithPretty())
	}
	h := server.New(sopts...)
	agg.OnBuild(func(b *aggregator.Build) { h.Swap(b.Executor()) })

	// A failed first build keeps serving; /graphql answers 503 until a
	// recompilation succeeds.
	if _, err := agg.Run(ctx); err != nil {
		logger.Error("initial build failed", "error", err)
	}

	if cfg.Watch.Enabled {
		w, err := watch.Open(cfg.App.ContractsDir, func(ctx context.Context) error {
			_, err := agg.Reload(ctx)
			return err
		}, watch.WithLogger(logger))
		if err != nil {
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil {
				logger.Error("watcher stopped", "error", err)
			}
		}()
	}

	router := server.NewRouter(h, agg, server.RouterOptions{
		Metrics:     m,
		CORSOrigins: cfg.GraphQL.CORSOrigins,
		Logger:      logger,
	})
	ln, err := server.Listen(ctx, cfg.Addr(), cfg.Backlog())
	if err != nil {
		return err
	}
	return server.Serve(ctx, ln, router, logger)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	var (
		base      store.Store = store.NewMemory()
		closeBase             = func() {}
	)
	if cfg.Store.DSN != "" {
		pg, err := store.OpenPostgres(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
		base = pg
		closeBase = func() { _ = pg.Close() }
	}
	cached, err := store.NewCached(base, cfg.Store.CacheSize)
	if err != nil {
		closeBase()
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return cached, closeBase, nil
}

// newAggregator loads the contracts and installs the auth module when a
// secret is configured.
func newAggregator(cfg *config.Config, st store.Store, logger *slog.Logger) (*aggregator.Aggregator, error) {
	cs, err := contract.LoadDir(cfg.App.ContractsDir)
	if err != nil {
		return nil, err
	}
	reg, err := contract.NewRegistry(cs...)
	if err != nil {
		return nil, err
	}

	services := service.NewRegistry()
	mods := module.NewRegistry()
	opts := []aggregator.Option{
		aggregator.WithModules(mods),
		aggregator.WithStore(st),
		aggregator.WithLogger(logger),
	}
	if cfg.AuthEnabled() {
		a := module.NewAuth(cfg.Auth.JWTSecret)
		if err := mods.Install(a, services); err != nil {
			return nil, err
		}
		opts = append(opts, aggregator.WithVerifier(a.Verifier()))
	}
	return aggregator.New(cfg.Aggregator(), reg, services, opts...), nil
}

func cmdGenerate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var configPath, envFile string
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&configPath, "config", "", "YAML configuration file")
	fs.StringVar(&envFile, "env", "", "Dotenv file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, generateUsage)
		return err
	}

	cfg, err := loadConfig(configPath, envFile)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	agg, err := newAggregator(cfg, store.NewMemory(), logger)
	if err != nil {
		return err
	}

	b := agg.Generate(ctx)
	for _, art := range b.Artifacts {
		for _, p := range art.Paths() {
			fmt.Fprintln(stdout, p)
		}
	}
	if len(b.Failed) > 0 {
		return fmt.Errorf("%d contract(s) failed to generate: %w", len(b.Failed), errors.Join(b.Failed...))
	}
	return nil
}

func cmdCompileSDL(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	rootDir := "."
	outFile := ""
	fs := flag.NewFlagSet("compile-sdl", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&rootDir, "root", rootDir, "GraphQL source root")
	fs.StringVar(&outFile, "out", outFile, "Write compiled SDL to file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, compileSDLUsage)
		return err
	}

	disc, err := ir.NewFileSystemDiscovery(ctx, rootDir, ir.OriginSource, nil)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	proj, err := ir.Build(ctx, disc, ir.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	sch, err := schema.BuildFromIR(proj)
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	sdl := schema.Render(sch)
	if outFile == "" {
		fmt.Fprint(stdout, sdl)
		return nil
	}
	return os.WriteFile(outFile, []byte(sdl), 0o644)
}

func cmdRepair(args []string, stdout, stderr io.Writer) error {
	check := false
	fs := flag.NewFlagSet("repair", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.BoolVar(&check, "check", check, "Report files that need repair")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, repairUsage)
		return err
	}
	if fs.NArg() == 0 {
		fmt.Fprint(stderr, repairUsage)
		return fmt.Errorf("no files given")
	}

	var pending []string
	for _, path := range fs.Args() {
		if check {
			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if repair.Apply(string(src)) != string(src) {
				pending = append(pending, path)
				fmt.Fprintln(stdout, path)
			}
			continue
		}
		changed, err := repair.File(path)
		if err != nil {
			return err
		}
		if changed {
			fmt.Fprintln(stdout, "repaired", path)
		}
	}
	if len(pending) > 0 {
		return fmt.Errorf("%d file(s) need repair", len(pending))
	}
	return nil
}

func cmdToken(args []string, stdout, stderr io.Writer) error {
	var (
		secret, configPath, subject string
		root                        bool
		roles                       stringListFlag
		ttl                         = module.DefaultAccessTTL
	)
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&secret, "secret", "", "Signing secret")
	fs.StringVar(&configPath, "config", "", "YAML configuration file")
	fs.StringVar(&subject, "subject", "", "Token subject")
	fs.BoolVar(&root, "root", false, "Grant root access")
	fs.Var(&roles, "role", "Grant a role")
	fs.DurationVar(&ttl, "ttl", ttl, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(stderr, tokenUsage)
		return err
	}

	if secret == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		secret = cfg.Auth.JWTSecret
	}
	if secret == "" {
		fmt.Fprint(stderr, tokenUsage)
		return fmt.Errorf("-secret or auth.jwtSecret is required")
	}

	claims := auth.Claims{
		Root:             root,
		Roles:            auth.RoleList(roles),
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
	}
	tok, err := auth.Issue(secret, claims, ttl, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, tok)
	return nil
}
