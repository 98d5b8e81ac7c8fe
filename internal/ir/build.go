package ir

import (
	"context"
	"log/slog"
	"runtime"

	language "github.com/hanpama/contractgraph/internal/language"
	"golang.org/x/sync/errgroup"
)

type builder struct {
	Schema      *Schema
	Definitions map[string]*Definition
	Directives  map[string]*DirectiveDefinition

	sources    []*Source
	docs       []sourceDoc
	violations []*Violation
	discovery  Discovery
	opts       buildOptions
}

type sourceDoc struct {
	source *Source
	doc    *language.SchemaDocument
}

type buildOptions struct {
	logger  *slog.Logger
	workers int
}

// BuildOption configures Build.
type BuildOption func(*buildOptions)

// WithLogger sets the logger receiving per-source load failures.
func WithLogger(l *slog.Logger) BuildOption { return func(o *buildOptions) { o.logger = l } }

// WithWorkers bounds the number of sources parsed concurrently.
func WithWorkers(n int) BuildOption { return func(o *buildOptions) { o.workers = n } }

// Build discovers, parses and merges every source behind the prelude.
// Sources that cannot be read or parsed are logged and skipped; semantic
// violations across the merged sources fail the build.
func Build(ctx context.Context, disc Discovery, opts ...BuildOption) (*Project, error) {
	b := &builder{
		Definitions: make(map[string]*Definition),
		Directives:  make(map[string]*DirectiveDefinition),
		discovery:   disc,
		opts:        buildOptions{logger: slog.Default(), workers: runtime.GOMAXPROCS(0)},
	}
	for _, o := range opts {
		o(&b.opts)
	}

	if err := b.build(ctx); err != nil {
		return nil, err
	}

	return &Project{
		Sources:     b.sources,
		Schema:      b.Schema,
		Definitions: b.Definitions,
		Directives:  b.Directives,
	}, nil
}

func (b *builder) build(ctx context.Context) error {
	prelude, err := language.ParseSchema("prelude.graphql", PreludeSDL)
	if err != nil {
		return err
	}
	b.addDocument(&Source{ID: "prelude", Name: "prelude.graphql", Origin: OriginPrelude}, prelude)

	if err := b.loadSources(ctx); err != nil {
		return err
	}
	for _, s := range builtinScalars {
		b.Definitions[s.Name] = &Definition{Scalar: s}
	}

	for _, stage := range []func() error{
		b.declareTypes,
		b.declareSchema,
		b.populateMembers,
		b.declareDirectives,
		b.applyDirectives,
	} {
		if err := stage(); err != nil {
			return err
		}
	}
	return nil
}

// loadSources reads and parses the discovered sources concurrently and adds
// them in discovery order.
func (b *builder) loadSources(ctx context.Context) error {
	metas, err := b.discovery.ListMetadata(ctx)
	if err != nil {
		return err
	}
	docs := make([]*language.SchemaDocument, len(metas))

	g, gctx := errgroup.WithContext(ctx)
	if b.opts.workers > 0 {
		g.SetLimit(b.opts.workers)
	}
	for i, m := range metas {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sdl, err := b.discovery.ReadSDL(gctx, m.ID)
			if err != nil {
				b.opts.logger.Warn("skipping unreadable resolver source", "source", m.ID, "error", err)
				return nil
			}
			doc, err := language.ParseSchema(m.FilePath, sdl)
			if err != nil {
				b.opts.logger.Warn("skipping unparsable resolver source", "source", m.ID, "error", err)
				return nil
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, m := range metas {
		if docs[i] == nil {
			continue
		}
		b.addDocument(&Source{ID: m.ID, Name: m.Name, FilePath: m.FilePath, Origin: m.Origin}, docs[i])
	}
	return nil
}

func (b *builder) addDocument(s *Source, doc *language.SchemaDocument) {
	b.sources = append(b.sources, s)
	b.docs = append(b.docs, sourceDoc{source: s, doc: doc})
}
