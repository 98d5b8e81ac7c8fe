// Package aggregator turns the contract registry into a served schema. A run
// generates and repairs the resolver artifacts of every eligible contract,
// discovers them next to the hand-written resolver sources and the module
// resolvers, and builds the executable schema with its resolver runtime.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hanpama/contractgraph/internal/auth"
	"github.com/hanpama/contractgraph/internal/codegen"
	"github.com/hanpama/contractgraph/internal/contract"
	"github.com/hanpama/contractgraph/internal/eventbus"
	"github.com/hanpama/contractgraph/internal/events"
	"github.com/hanpama/contractgraph/internal/executor"
	"github.com/hanpama/contractgraph/internal/introspection"
	"github.com/hanpama/contractgraph/internal/ir"
	"github.com/hanpama/contractgraph/internal/module"
	"github.com/hanpama/contractgraph/internal/repair"
	"github.com/hanpama/contractgraph/internal/resolver"
	"github.com/hanpama/contractgraph/internal/schema"
	"github.com/hanpama/contractgraph/internal/service"
	"github.com/hanpama/contractgraph/internal/store"
)

// SchemaFile is the merged schema written below the generated root.
const SchemaFile = "schema.graphql"

// Config holds the directories and switches of a run.
type Config struct {
	SourceDir     string
	ContractsDir  string
	GeneratedRoot string
	ModelPackage  string
	// GenerateResolvers turns artifact generation on.
	GenerateResolvers bool
	// EmitSchema persists the merged schema after a build with resolvers.
	EmitSchema bool
	// Workers bounds parallel generation and parsing; <= 0 uses GOMAXPROCS.
	Workers int
	// MaxDepth limits selection nesting of served operations; 0 is unlimited.
	MaxDepth int
}

// Build is the outcome of one successful run.
type Build struct {
	Project *ir.Project
	// Schema is the executable schema including introspection.
	Schema  *schema.Schema
	Runtime executor.Runtime
	// Artifacts lists the generated files per contract in registry order.
	Artifacts []*codegen.Artifacts
	// Failed holds the contracts skipped because generation failed.
	Failed     []error
	SchemaPath string
	Duration   time.Duration
	MaxDepth   int
}

// Executor returns an executor over the build's schema and runtime.
func (b *Build) Executor() *executor.Executor {
	return executor.NewExecutor(b.Runtime, b.Schema, executor.WithMaxDepth(b.MaxDepth))
}

// Resolvers returns the number of bound root fields.
func (b *Build) Resolvers() int { return len(b.Project.BoundFields()) }

// Aggregator drives the generate, repair, discover and build pipeline.
// Runs are serialized.
type Aggregator struct {
	cfg       Config
	contracts *contract.Registry
	services  *service.Registry
	modules   *module.Registry
	store     store.Store
	verifier  auth.Verifier
	logger    *slog.Logger

	mu      sync.Mutex
	owned   map[string]*service.EntityService
	last    *Build
	onBuild []func(*Build)
}

type Option func(*Aggregator)

// WithModules sets the installed modules. Their resolvers are merged last.
func WithModules(m *module.Registry) Option {
	return func(a *Aggregator) { a.modules = m }
}

// WithStore sets the store backing the generated entity services.
func WithStore(s store.Store) Option {
	return func(a *Aggregator) { a.store = s }
}

// WithVerifier sets the token verifier of the resolver runtime.
func WithVerifier(v auth.Verifier) Option {
	return func(a *Aggregator) { a.verifier = v }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// New returns an aggregator over contracts. Generated entity services are
// registered in services next to the ones already there.
func New(cfg Config, contracts *contract.Registry, services *service.Registry, opts ...Option) *Aggregator {
	a := &Aggregator{
		cfg:       cfg,
		contracts: contracts,
		services:  services,
		modules:   module.NewRegistry(),
		store:     store.NewMemory(),
		logger:    slog.Default(),
		owned:     make(map[string]*service.EntityService),
	}
	for _, o := range opts {
		o(a)
	}
	if a.cfg.Workers <= 0 {
		a.cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return a
}

// OnBuild registers fn to receive every successful build.
func (a *Aggregator) OnBuild(fn func(*Build)) {
	a.mu.Lock()
	a.onBuild = append(a.onBuild, fn)
	a.mu.Unlock()
}

// Last returns the most recent successful build, or nil.
func (a *Aggregator) Last() *Build {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Contracts returns the registry the aggregator runs over.
func (a *Aggregator) Contracts() *contract.Registry { return a.contracts }

// Run executes the whole pipeline once.
func (a *Aggregator) Run(ctx context.Context) (*Build, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.run(ctx)
}

// Generate writes the artifacts of every eligible contract and prunes stale
// ones without building the schema. The returned build carries only
// Artifacts, Failed and Duration.
func (a *Aggregator) Generate(ctx context.Context) *Build {
	a.mu.Lock()
	defer a.mu.Unlock()
	start := time.Now()
	b := &Build{MaxDepth: a.cfg.MaxDepth}
	contracts := a.contracts.All()
	a.registerServices(contracts)
	a.emit(ctx, b, contracts)
	b.Duration = time.Since(start)
	return b
}

// Compile validates and saves c, registers it and reruns the pipeline.
func (a *Aggregator) Compile(ctx context.Context, c *contract.Contract) (*Build, error) {
	if err := contract.Validate(c); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cfg.ContractsDir != "" {
		if err := contract.Save(a.cfg.ContractsDir, c); err != nil {
			return nil, fmt.Errorf("save contract %s: %w", c.ControllerName, err)
		}
	}
	a.contracts.Put(c)
	return a.run(ctx)
}

// Remove deletes the named contract with its files and artifacts, then
// reruns the pipeline.
func (a *Aggregator) Remove(ctx context.Context, name string) (*Build, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	registered := a.contracts.Remove(name)
	if a.cfg.ContractsDir != "" {
		if err := contract.Delete(a.cfg.ContractsDir, name); err != nil {
			if !errors.Is(err, contract.ErrNotFound) || !registered {
				return nil, err
			}
		}
	} else if !registered {
		return nil, fmt.Errorf("%w: %s", contract.ErrNotFound, name)
	}
	if _, ok := a.owned[serviceName(name)]; ok {
		a.services.Remove(serviceName(name))
		delete(a.owned, serviceName(name))
	}
	return a.run(ctx)
}

// Reload rereads the contracts directory and reruns the pipeline.
func (a *Aggregator) Reload(ctx context.Context) (*Build, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cs, err := contract.LoadDir(a.cfg.ContractsDir)
	if err != nil {
		return nil, err
	}
	if err := a.contracts.Replace(cs); err != nil {
		return nil, err
	}
	return a.run(ctx)
}

func serviceName(contractName string) string {
	return (&contract.Contract{ControllerName: contractName}).ServiceName()
}

func (a *Aggregator) run(ctx context.Context) (*Build, error) {
	start := time.Now()
	b := &Build{MaxDepth: a.cfg.MaxDepth}
	err := a.assemble(ctx, b)
	b.Duration = time.Since(start)

	ev := events.Build{Contracts: a.contracts.Len(), Duration: b.Duration, Err: err}
	if err == nil {
		ev.Sources = len(b.Project.Sources)
	}
	eventbus.Publish(ctx, ev)
	if err != nil {
		a.logger.ErrorContext(ctx, "schema build failed", "error", err)
		return nil, err
	}

	a.last = b
	a.logger.InfoContext(ctx, "schema built",
		"contracts", a.contracts.Len(), "sources", len(b.Project.Sources),
		"resolvers", b.Resolvers(), "duration", b.Duration)
	for _, fn := range a.onBuild {
		fn(b)
	}
	return b, nil
}

func (a *Aggregator) assemble(ctx context.Context, b *Build) error {
	contracts := a.contracts.All()
	a.registerServices(contracts)
	a.ensureIndexes(ctx, contracts)

	var generated []string
	if a.cfg.GenerateResolvers {
		generated = a.emit(ctx, b, contracts)
	}

	disc, err := a.discovery(ctx, generated)
	if err != nil {
		return err
	}
	p, err := ir.Build(ctx, disc, ir.WithLogger(a.logger), ir.WithWorkers(a.cfg.Workers))
	if err != nil {
		return err
	}
	s, err := schema.BuildFromIR(p)
	if err != nil {
		return err
	}
	rt, err := resolver.New(p, a.services,
		resolver.WithVerifier(a.verifier),
		resolver.WithAuthModule(a.modules.HasAuth),
		resolver.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}
	b.Project = p
	b.Runtime, b.Schema = introspection.Wrap(rt, s)

	if a.cfg.EmitSchema && b.Resolvers() > 0 {
		b.SchemaPath = filepath.Join(a.cfg.GeneratedRoot, SchemaFile)
		if _, err := codegen.WriteFile(b.SchemaPath, []byte(schema.Render(s))); err != nil {
			return err
		}
	}
	return nil
}

// emit generates the artifacts into b, prunes stale ones and returns the
// resolver artifact paths in registry order.
func (a *Aggregator) emit(ctx context.Context, b *Build, contracts []*contract.Contract) []string {
	b.Artifacts, b.Failed = a.generate(ctx, contracts)
	var keep, generated []string
	for _, art := range b.Artifacts {
		keep = append(keep, art.Paths()...)
		generated = append(generated, art.Resolver)
	}
	removed, err := codegen.Prune(a.cfg.GeneratedRoot, keep)
	if err != nil {
		a.logger.WarnContext(ctx, "pruning stale artifacts failed", "error", err)
	}
	for _, p := range removed {
		a.logger.InfoContext(ctx, "removed stale artifact", "path", p)
	}
	return generated
}

// registerServices backs every contract without a service of its own with
// a store-backed entity service.
func (a *Aggregator) registerServices(contracts []*contract.Contract) {
	for _, c := range contracts {
		name := c.ServiceName()
		if _, owned := a.owned[name]; !owned {
			if _, err := a.services.Resolve(name); err == nil {
				continue
			}
		}
		svc := service.NewEntityService(c, a.store)
		a.services.Put(name, svc)
		a.owned[name] = svc
	}
}

func (a *Aggregator) ensureIndexes(ctx context.Context, contracts []*contract.Contract) {
	ix, ok := a.store.(store.Indexer)
	if !ok {
		return
	}
	for _, c := range contracts {
		if len(c.Indexes) == 0 {
			continue
		}
		specs := make([]store.IndexSpec, len(c.Indexes))
		for i, idx := range c.Indexes {
			specs[i] = store.IndexSpec{Name: idx.Name, Fields: idx.Fields, Unique: idx.Unique}
		}
		if err := ix.EnsureIndexes(ctx, c.EntityName(), specs); err != nil {
			a.logger.WarnContext(ctx, "ensuring indexes failed", "contract", c.ControllerName, "error", err)
		}
	}
}

// eligible reports whether artifacts are generated for c.
func eligible(c *contract.Contract) bool {
	return c.EntitiesEnabled() && c.ControllerEnabled()
}

// generate writes and repairs the artifacts of every eligible contract in
// parallel. Results keep registry order; failed contracts are logged and
// skipped.
func (a *Aggregator) generate(ctx context.Context, contracts []*contract.Contract) ([]*codegen.Artifacts, []error) {
	emitter := codegen.New(a.contracts,
		codegen.WithLocator(a.services),
		codegen.WithModelPackage(a.cfg.ModelPackage),
		codegen.WithLogger(a.logger),
	)

	results := make([]*codegen.Artifacts, len(contracts))
	errs := make([]error, len(contracts))
	var g errgroup.Group
	g.SetLimit(a.cfg.Workers)
	for i, c := range contracts {
		if !eligible(c) {
			continue
		}
		g.Go(func() error {
			art, err := emitter.WriteArtifacts(a.cfg.GeneratedRoot, c)
			if err == nil {
				if changed, rerr := repair.File(art.Resolver); rerr != nil {
					a.logger.WarnContext(ctx, "repairing artifact failed", "path", art.Resolver, "error", rerr)
				} else if changed {
					a.logger.WarnContext(ctx, "repaired artifact", "path", art.Resolver)
				}
				results[i] = art
			}
			errs[i] = err
			ev := events.Generation{Contract: c.ControllerName, Err: err}
			if art != nil {
				ev.Changed = len(art.Changed)
			}
			eventbus.Publish(ctx, ev)
			return nil
		})
	}
	_ = g.Wait()

	var (
		out    []*codegen.Artifacts
		failed []error
	)
	for i := range contracts {
		if errs[i] != nil {
			a.logger.ErrorContext(ctx, "skipping contract", "contract", contracts[i].ControllerName, "error", errs[i])
			failed = append(failed, errs[i])
			continue
		}
		if results[i] != nil {
			out = append(out, results[i])
		}
	}
	return out, failed
}

// discovery lists the generated artifacts in registry order, then the
// hand-written sources, then the module resolvers. Without generation the
// artifacts already on disk stand in for the generated ones.
func (a *Aggregator) discovery(ctx context.Context, generated []string) (ir.Discovery, error) {
	skip := make(map[string]struct{}, len(generated)+1)
	for _, p := range generated {
		skip[filepath.Clean(p)] = struct{}{}
	}
	schemaPath := filepath.Clean(filepath.Join(a.cfg.GeneratedRoot, SchemaFile))
	skip[schemaPath] = struct{}{}
	resolversDir := filepath.Clean(filepath.Join(a.cfg.GeneratedRoot, codegen.ResolversDir))

	var chain ir.Chain
	if a.cfg.GenerateResolvers {
		chain = append(chain, ir.NewFileListDiscovery(a.cfg.GeneratedRoot, ir.OriginGenerated, generated))
	} else {
		onDisk, err := ir.NewFileSystemDiscovery(ctx, a.cfg.GeneratedRoot, ir.OriginGenerated, func(path string) bool {
			return !isWithin(resolversDir, filepath.Clean(path))
		})
		if err != nil {
			return nil, err
		}
		chain = append(chain, onDisk)
	}
	if a.cfg.SourceDir != "" {
		fsd, err := ir.NewFileSystemDiscovery(ctx, a.cfg.SourceDir, ir.OriginSource, func(path string) bool {
			path = filepath.Clean(path)
			if _, ok := skip[path]; ok {
				return true
			}
			if !isWithin(resolversDir, path) {
				return false
			}
			// Artifacts of skipped contracts must not come back as sources.
			return !a.cfg.GenerateResolvers || codegen.IsGenerated(path)
		})
		if err != nil {
			return nil, err
		}
		chain = append(chain, fsd)
	}
	if srcs := a.modules.Sources(); len(srcs) > 0 {
		chain = append(chain, ir.NewInMemoryDiscovery(ir.OriginModule, srcs))
	}
	return chain, nil
}

func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
