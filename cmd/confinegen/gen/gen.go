// Package gen generates confinement wrappers for annotated entity types.
//
// A struct type whose doc comment carries the directive
//
//	//confine:entity
//
// gets a companion file (entity.go -> entity_confine.go) holding:
//
//   - a class descriptor listing every intercepted operation,
//   - an interface implemented by both the plain and the checked form,
//   - a checked wrapper that runs the affiliation probe before delegating,
//   - a Wrap constructor that returns the plain value when the checker is
//     compiled out with -tags noconfine.
//
// Exported methods declared on the type are intercepted unless the config
// skips them; by default Primitive* and SetPrimitive* accessors are never
// checked. An entity that embeds another entity of the same package inherits
// its operations.
package gen

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Output is one generated file.
type Output struct {
	Source   string   // Annotated source file
	Path     string   // Generated file path
	Entities []string // Entities declared in Source
	Code     []byte
}

// Generator turns annotated packages into wrapper files.
//
// Thread Safety: Safe for concurrent use; Run fans out over directories.
type Generator struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a Generator. A nil logger means zap.NewNop().
func New(cfg Config, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{cfg: cfg, logger: logger}
}

// GeneratePackage renders the companion files for the package in dir
// without writing them.
func (g *Generator) GeneratePackage(dir string) ([]Output, error) {
	mod, err := FindModule(dir)
	if err != nil {
		return nil, err
	}
	importPath, err := mod.ImportPath(dir)
	if err != nil {
		return nil, err
	}
	if !mod.Provides(g.cfg.RuntimeImport) {
		return nil, errors.WithHint(
			errors.Newf("confinegen: module %s does not require %s", mod.Path, g.cfg.RuntimeImport),
			"run: go get "+g.cfg.RuntimeImport,
		)
	}

	pkg, err := ParseDir(dir, g.cfg)
	if err != nil {
		return nil, err
	}

	bySource := map[string][]*Entity{}
	for _, e := range pkg.Entities {
		bySource[e.File] = append(bySource[e.File], e)
	}
	sources := make([]string, 0, len(bySource))
	for src := range bySource {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	var outs []Output
	for _, src := range sources {
		code, err := emitFile(pkg, src, bySource[src], g.cfg)
		if err != nil {
			return nil, err
		}
		names := make([]string, len(bySource[src]))
		for i, e := range bySource[src] {
			names[i] = e.Name
		}
		outs = append(outs, Output{
			Source:   src,
			Path:     generatedName(src, g.cfg),
			Entities: names,
			Code:     code,
		})
	}

	g.logger.Debug("generated package",
		zap.String("package", importPath),
		zap.Int("files", len(outs)),
		zap.Int("entities", len(pkg.Entities)))
	return outs, nil
}

// Run generates every directory concurrently. With write set, outputs are
// written next to their sources. The first error cancels the remaining work.
func (g *Generator) Run(ctx context.Context, dirs []string, write bool) ([]Output, error) {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))

	var (
		mu   sync.Mutex
		outs []Output
	)
	for _, dir := range uniqueDirs(dirs) {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			got, err := g.GeneratePackage(dir)
			if err != nil {
				return err
			}
			if write {
				for _, out := range got {
					if err := os.WriteFile(out.Path, out.Code, 0o644); err != nil {
						return errors.Wrapf(err, "confinegen: write %s", out.Path)
					}
					g.logger.Info("wrote", zap.String("file", out.Path), zap.Strings("entities", out.Entities))
				}
			}
			mu.Lock()
			outs = append(outs, got...)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(outs, func(i, j int) bool { return outs[i].Path < outs[j].Path })
	return outs, nil
}

// uniqueDirs maps file arguments to their directories and drops duplicates.
func uniqueDirs(args []string) []string {
	seen := map[string]bool{}
	var dirs []string
	for _, arg := range args {
		dir := arg
		if filepath.Ext(arg) == ".go" {
			dir = filepath.Dir(arg)
		}
		dir = filepath.Clean(dir)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}
