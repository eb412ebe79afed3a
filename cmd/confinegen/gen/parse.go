package gen

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

// Directive marks a struct type for wrapper generation.
const Directive = "//confine:entity"

// Operation kinds, spelled as the runtime constants.
const (
	KindGetter = "Getter"
	KindSetter = "Setter"
	KindMethod = "Method"
)

// Param is one method parameter.
type Param struct {
	Name     string
	Type     string
	Variadic bool
}

// Method is an exported method declared on an entity type.
type Method struct {
	Name    string
	Op      string // Operation identifier reported on violation
	Kind    string
	Params  []Param
	Results []string

	// Intercepted is false for methods excluded by the config. They are
	// still part of the generated interface.
	Intercepted bool

	Pos token.Pos
}

// Entity is an annotated struct type.
type Entity struct {
	Name    string
	Super   string // Embedded entity type in the same package, or ""
	File    string
	Pos     token.Pos
	Methods []*Method

	embeds []string // Embedded local types, filtered by resolveSupers
}

// Package is a parsed source directory.
type Package struct {
	Dir      string
	Name     string
	Fset     *token.FileSet
	Files    map[string]*ast.File // Keyed by path
	Entities []*Entity            // In file then declaration order

	byName map[string]*Entity
}

// Entity returns the annotated type with the given name.
func (p *Package) Entity(name string) (*Entity, bool) {
	e, ok := p.byName[name]
	return e, ok
}

// Chain returns e and its ancestors, nearest first.
func (p *Package) Chain(e *Entity) []*Entity {
	var chain []*Entity
	for cur := e; cur != nil; cur = p.byName[cur.Super] {
		chain = append(chain, cur)
	}
	return chain
}

// ParseDir parses the non-test, non-generated Go files in dir and collects
// annotated entities.
func ParseDir(dir string, cfg Config) (*Package, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "confinegen: read %s", dir)
	}

	pkg := &Package{
		Dir:    dir,
		Fset:   token.NewFileSet(),
		Files:  make(map[string]*ast.File),
		byName: make(map[string]*Entity),
	}

	var names []string
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasSuffix(name, ".go") ||
			strings.HasSuffix(name, "_test.go") || strings.HasSuffix(name, cfg.Suffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)
		f, err := parser.ParseFile(pkg.Fset, path, nil, parser.ParseComments)
		if err != nil {
			return nil, errors.Wrapf(err, "confinegen: parse %s", path)
		}
		if ast.IsGenerated(f) {
			continue
		}
		if pkg.Name == "" {
			pkg.Name = f.Name.Name
		} else if f.Name.Name != pkg.Name {
			continue
		}
		pkg.Files[path] = f
		if err := pkg.collectEntities(path, f); err != nil {
			return nil, err
		}
	}

	for _, path := range names {
		f, ok := pkg.Files[filepath.Join(dir, path)]
		if !ok {
			continue
		}
		if err := pkg.collectMethods(f, cfg); err != nil {
			return nil, err
		}
	}

	if err := pkg.resolveSupers(); err != nil {
		return nil, err
	}
	return pkg, nil
}

// hasDirective reports whether any comment group carries Directive.
func hasDirective(groups ...*ast.CommentGroup) bool {
	for _, g := range groups {
		if g == nil {
			continue
		}
		for _, c := range g.List {
			if strings.TrimSpace(c.Text) == Directive {
				return true
			}
		}
	}
	return false
}

func (p *Package) collectEntities(path string, f *ast.File) error {
	for _, decl := range f.Decls {
		gd, ok := decl.(*ast.GenDecl)
		if !ok || gd.Tok != token.TYPE {
			continue
		}
		for _, spec := range gd.Specs {
			ts := spec.(*ast.TypeSpec)
			doc := []*ast.CommentGroup{ts.Doc}
			if len(gd.Specs) == 1 {
				doc = append(doc, gd.Doc)
			}
			if !hasDirective(doc...) {
				continue
			}

			st, ok := ts.Type.(*ast.StructType)
			if !ok {
				return newGenerationErrorf(p.Fset, ts.Pos(),
					"Annotate a struct type that embeds *model.Object",
					"confine:entity on non-struct type %s", ts.Name.Name)
			}
			if ts.TypeParams != nil {
				return newGenerationErrorf(p.Fset, ts.Pos(),
					"Wrap a non-generic struct instead",
					"confine:entity on generic type %s", ts.Name.Name)
			}

			e := &Entity{Name: ts.Name.Name, File: path, Pos: ts.Pos()}
			for _, field := range st.Fields.List {
				if len(field.Names) > 0 {
					continue
				}
				if name, ok := localTypeName(field.Type); ok {
					e.embeds = append(e.embeds, name)
				}
			}
			p.Entities = append(p.Entities, e)
			p.byName[e.Name] = e
		}
	}
	return nil
}

// localTypeName returns the name of T or *T when T is declared in the
// package being parsed.
func localTypeName(expr ast.Expr) (string, bool) {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	id, ok := expr.(*ast.Ident)
	if !ok {
		return "", false
	}
	return id.Name, true
}

func (p *Package) resolveSupers() error {
	for _, e := range p.Entities {
		var supers []string
		for _, name := range e.embeds {
			if _, ok := p.byName[name]; ok {
				supers = append(supers, name)
			}
		}
		switch len(supers) {
		case 0:
		case 1:
			e.Super = supers[0]
		default:
			return newGenerationErrorf(p.Fset, e.Pos,
				"Embed at most one confine:entity type",
				"entity %s embeds several entities: %s", e.Name, strings.Join(supers, ", "))
		}
	}

	for _, e := range p.Entities {
		seen := map[string]bool{}
		for cur := e; cur != nil; cur = p.byName[cur.Super] {
			if seen[cur.Name] {
				return newGenerationErrorf(p.Fset, e.Pos, "",
					"entity %s has a cyclic embedding chain", e.Name)
			}
			seen[cur.Name] = true
		}
	}
	return nil
}

func (p *Package) collectMethods(f *ast.File, cfg Config) error {
	for _, decl := range f.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv == nil || len(fd.Recv.List) != 1 || !fd.Name.IsExported() {
			continue
		}
		recv, ok := localTypeName(fd.Recv.List[0].Type)
		if !ok {
			continue
		}
		e, ok := p.byName[recv]
		if !ok {
			continue
		}

		m, err := p.newMethod(e.Name, fd, cfg)
		if err != nil {
			return err
		}
		if m == nil {
			continue
		}
		if m.Intercepted {
			for _, other := range e.Methods {
				if other.Intercepted && other.Op == m.Op {
					return newGenerationErrorf(p.Fset, fd.Pos(),
						"Rename one of the methods or add it to skip in confinegen.toml",
						"methods %s and %s of %s share operation %q", other.Name, m.Name, e.Name, m.Op)
				}
			}
		}
		e.Methods = append(e.Methods, m)
	}
	return nil
}

func (p *Package) newMethod(typ string, fd *ast.FuncDecl, cfg Config) (*Method, error) {
	if fd.Name.Name == "HomeContext" {
		return nil, nil
	}
	if fd.Type.TypeParams != nil {
		return nil, newGenerationErrorf(p.Fset, fd.Pos(), "",
			"method %s.%s has type parameters", typ, fd.Name.Name)
	}

	m := &Method{
		Name:        fd.Name.Name,
		Op:          operationName(fd.Name.Name),
		Intercepted: !cfg.skipped(typ, fd.Name.Name),
		Pos:         fd.Pos(),
	}

	// Names the wrapper cannot reuse: the receiver and every declared name.
	used := map[string]bool{receiverName: true}
	for _, field := range fd.Type.Params.List {
		for _, n := range field.Names {
			used[n.Name] = true
		}
	}

	i := 0
	for _, field := range fd.Type.Params.List {
		typStr := types.ExprString(field.Type)
		_, variadic := field.Type.(*ast.Ellipsis)
		if variadic {
			typStr = types.ExprString(field.Type.(*ast.Ellipsis).Elt)
		}
		names := field.Names
		if len(names) == 0 {
			names = []*ast.Ident{nil}
		}
		for _, n := range names {
			name := ""
			if n != nil && n.Name != "_" && n.Name != receiverName {
				name = n.Name
			}
			if name == "" {
				name = freshName(used, i)
			}
			m.Params = append(m.Params, Param{Name: name, Type: typStr, Variadic: variadic})
			i++
		}
	}

	if fd.Type.Results != nil {
		for _, field := range fd.Type.Results.List {
			n := len(field.Names)
			if n == 0 {
				n = 1
			}
			for j := 0; j < n; j++ {
				m.Results = append(m.Results, types.ExprString(field.Type))
			}
		}
	}

	m.Kind = classify(m)
	return m, nil
}

// freshName returns the first of p<i>, p<i>_1, p<i>_2, ... not in used and
// marks it used.
func freshName(used map[string]bool, i int) string {
	name := fmt.Sprintf("p%d", i)
	for k := 1; used[name]; k++ {
		name = fmt.Sprintf("p%d_%d", i, k)
	}
	used[name] = true
	return name
}

// classify derives the operation kind from the method shape: SetX with one
// argument and no results is a setter, a niladic method with one result is a
// getter, anything else is a method.
func classify(m *Method) string {
	if len(m.Params) == 1 && !m.Params[0].Variadic && len(m.Results) == 0 &&
		len(m.Name) > 3 && strings.HasPrefix(m.Name, "Set") && unicode.IsUpper(rune(m.Name[3])) {
		return KindSetter
	}
	if len(m.Params) == 0 && len(m.Results) == 1 {
		return KindGetter
	}
	return KindMethod
}

// operationName lowers the leading initialism of a method name:
// Name -> name, SetName -> setName, ObjectID -> objectID, URLPath -> urlPath.
func operationName(method string) string {
	r := []rune(method)
	n := 0
	for n < len(r) && unicode.IsUpper(r[n]) {
		n++
	}
	switch {
	case n == 0:
		return method
	case n == 1 || n == len(r):
		// Single capital or all caps.
	default:
		// Keep the capital that starts the next word.
		n--
	}
	for i := 0; i < n; i++ {
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}
