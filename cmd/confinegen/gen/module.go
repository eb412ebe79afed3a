package gen

import (
	"os"
	"path"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"golang.org/x/mod/modfile"
)

// Module is the Go module enclosing a generated package.
type Module struct {
	Path  string // Module path from the module directive
	Dir   string // Directory holding go.mod
	GoMod string // Path to go.mod

	file *modfile.File
}

// FindModule walks up from dir to the nearest go.mod and parses it.
func FindModule(dir string) (*Module, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "confinegen: resolve %s", dir)
	}

	goMod := findGoMod(abs)
	if goMod == "" {
		return nil, errors.WithHint(
			errors.Newf("confinegen: no go.mod above %s", abs),
			"run confinegen inside a Go module",
		)
	}

	data, err := os.ReadFile(goMod)
	if err != nil {
		return nil, errors.Wrapf(err, "confinegen: read %s", goMod)
	}
	f, err := modfile.Parse(goMod, data, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "confinegen: parse %s", goMod)
	}
	if f.Module == nil {
		return nil, errors.Newf("confinegen: %s has no module directive", goMod)
	}

	return &Module{
		Path:  f.Module.Mod.Path,
		Dir:   filepath.Dir(goMod),
		GoMod: goMod,
		file:  f,
	}, nil
}

// findGoMod walks up from startDir looking for go.mod. Returns "" when none
// is found before the filesystem root.
func findGoMod(startDir string) string {
	dir := startDir
	for {
		modPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(modPath); err == nil {
			return modPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// ImportPath returns the import path of the package in dir.
func (m *Module) ImportPath(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrapf(err, "confinegen: resolve %s", dir)
	}
	rel, err := filepath.Rel(m.Dir, abs)
	if err != nil {
		return "", errors.Wrapf(err, "confinegen: %s outside module %s", dir, m.Path)
	}
	if rel == "." {
		return m.Path, nil
	}
	return path.Join(m.Path, filepath.ToSlash(rel)), nil
}

// Provides reports whether importPath resolves inside this module or one of
// its requirements (including replaced ones).
func (m *Module) Provides(importPath string) bool {
	if within(importPath, m.Path) {
		return true
	}
	for _, r := range m.file.Require {
		if within(importPath, r.Mod.Path) {
			return true
		}
	}
	for _, r := range m.file.Replace {
		if within(importPath, r.Old.Path) {
			return true
		}
	}
	return false
}

func within(importPath, modPath string) bool {
	return importPath == modPath ||
		len(importPath) > len(modPath) && importPath[:len(modPath)] == modPath && importPath[len(modPath)] == '/'
}
