// Package config loads contractgraph settings from a YAML file, a .env file
// and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/hanpama/contractgraph/internal/aggregator"
)

// Listen backlogs selected by graphql.blacklog.
const (
	DefaultBacklog = 511
	LargeBacklog   = 4096
)

type Config struct {
	App     App     `yaml:"app"`
	GraphQL GraphQL `yaml:"graphql"`
	Auth    Auth    `yaml:"auth"`
	Store   Store   `yaml:"store"`
	Otel    Otel    `yaml:"otel"`
	Watch   Watch   `yaml:"watch"`
}

type App struct {
	SourceDir     string `yaml:"sourceDir" env:"APP_SOURCE_DIR" env-default:"src"`
	ContractsDir  string `yaml:"contractsDir" env:"APP_CONTRACTS_DIR" env-default:"contracts"`
	GeneratedRoot string `yaml:"generatedRoot" env:"APP_GENERATED_ROOT" env-default:"generated"`
	ModelPackage  string `yaml:"modelPackage" env:"APP_MODEL_PACKAGE"`
	Workers       int    `yaml:"workers" env:"APP_WORKERS"`
}

// GraphQL holds the server and generation switches. GenerateResolvers and
// EmitSchema default to true; Load presets them.
type GraphQL struct {
	GenerateResolvers bool          `yaml:"generateResolvers" env:"GRAPHQL_GENERATE_RESOLVERS"`
	EmitSchema        bool          `yaml:"emitSchema" env:"GRAPHQL_EMIT_SCHEMA"`
	Host              string        `yaml:"host" env:"GRAPHQL_HOST" env-default:"0.0.0.0"`
	Port              int           `yaml:"port" env:"GRAPHQL_PORT" env-default:"4000"`
	Blacklog          bool          `yaml:"blacklog" env:"GRAPHQL_BLACKLOG"`
	Timeout           time.Duration `yaml:"timeout" env:"GRAPHQL_TIMEOUT" env-default:"10s"`
	CORSOrigins       []string      `yaml:"corsOrigins" env:"GRAPHQL_CORS_ORIGINS" env-separator:","`
	MaxDepth          int           `yaml:"maxDepth" env:"GRAPHQL_MAX_DEPTH" env-default:"20"`
}

type Auth struct {
	JWTSecret     string `yaml:"jwtSecret" env:"AUTH_JWT_SECRET"`
	RefreshHeader string `yaml:"refreshHeader" env:"AUTH_REFRESH_HEADER" env-default:"x-refresh-token"`
}

type Store struct {
	// DSN selects Postgres; empty keeps entities in memory.
	DSN       string `yaml:"dsn" env:"STORE_DSN"`
	CacheSize int    `yaml:"cacheSize" env:"STORE_CACHE_SIZE" env-default:"1024"`
}

type Otel struct {
	Endpoint string `yaml:"endpoint" env:"OTEL_ENDPOINT"`
	Service  string `yaml:"service" env:"OTEL_SERVICE" env-default:"contractgraph"`
}

type Watch struct {
	Enabled bool `yaml:"enabled" env:"WATCH_ENABLED"`
}

// Load reads envFiles (".env" when none are given; missing files are ignored),
// then the YAML file at path when non-empty, then the environment.
// Environment variables override the file.
func Load(path string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load env file: %w", err)
	}
	cfg := &Config{GraphQL: GraphQL{GenerateResolvers: true, EmitSchema: true}}
	var err error
	if path == "" {
		err = cleanenv.ReadEnv(cfg)
	} else {
		err = cleanenv.ReadConfig(path, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Addr is the listen address of the GraphQL server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.GraphQL.Host, strconv.Itoa(c.GraphQL.Port))
}

// Backlog is the number of pending connections the listener admits.
func (c *Config) Backlog() int {
	if c.GraphQL.Blacklog {
		return LargeBacklog
	}
	return DefaultBacklog
}

// AuthEnabled reports whether the auth module should be installed.
func (c *Config) AuthEnabled() bool { return c.Auth.JWTSecret != "" }

// Aggregator maps the app and graphql sections onto the orchestrator settings.
func (c *Config) Aggregator() aggregator.Config {
	return aggregator.Config{
		SourceDir:         c.App.SourceDir,
		ContractsDir:      c.App.ContractsDir,
		GeneratedRoot:     c.App.GeneratedRoot,
		ModelPackage:      c.App.ModelPackage,
		GenerateResolvers: c.GraphQL.GenerateResolvers,
		EmitSchema:        c.GraphQL.EmitSchema,
		Workers:           c.App.Workers,
		MaxDepth:          c.GraphQL.MaxDepth,
	}
}
