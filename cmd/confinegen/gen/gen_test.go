package gen

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testGoMod = `module example.com/shop

go 1.24

require github.com/kolkov/confinement v0.1.0
`

const testEntity = `package shop

import (
	"strings"
	"time"

	"example.com/shop/internal/model"
)

// Item is a product.
//
//confine:entity
type Item struct {
	*model.Object
}

func (i *Item) Title() string                { return strings.TrimSpace("") }
func (i *Item) SetTitle(v string)            {}
func (i *Item) PrimitiveTitle() string       { return "" }
func (i *Item) SetPrimitiveTitle(v string)   {}
func (i *Item) Touch(at time.Time, tags ...string) error { return nil }
func (i *Item) ObjectURL() (string, bool)    { return "", false }
func (i *Item) unexported()                  {}

// Book is an item with an author.
//
//confine:entity
type Book struct {
	*Item
}

func (b *Book) Author() string    { return "" }
func (b *Book) Title() string     { return "" }

type plain struct{}

func (p *plain) Name() string { return "" }
`

// writePackage lays out a module with one package and returns its dir.
func writePackage(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte(testGoMod), 0o644))

	dir := filepath.Join(root, "shop")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	return dir
}

func TestParseDir(t *testing.T) {
	dir := writePackage(t, map[string]string{"item.go": testEntity})

	pkg, err := ParseDir(dir, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "shop", pkg.Name)
	require.Len(t, pkg.Entities, 2)

	item, ok := pkg.Entity("Item")
	require.True(t, ok)
	assert.Empty(t, item.Super)

	got := map[string]*Method{}
	for _, m := range item.Methods {
		got[m.Name] = m
	}
	require.Len(t, got, 6)

	tests := []struct {
		name        string
		op          string
		kind        string
		intercepted bool
	}{
		{"Title", "title", KindGetter, true},
		{"SetTitle", "setTitle", KindSetter, true},
		{"PrimitiveTitle", "primitiveTitle", KindGetter, false},
		{"SetPrimitiveTitle", "setPrimitiveTitle", KindSetter, false},
		{"Touch", "touch", KindMethod, true},
		{"ObjectURL", "objectURL", KindMethod, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := got[tt.name]
			require.True(t, ok)
			assert.Equal(t, tt.op, m.Op)
			assert.Equal(t, tt.kind, m.Kind)
			assert.Equal(t, tt.intercepted, m.Intercepted)
		})
	}

	touch := got["Touch"]
	require.Len(t, touch.Params, 2)
	assert.Equal(t, Param{Name: "at", Type: "time.Time"}, touch.Params[0])
	assert.Equal(t, Param{Name: "tags", Type: "string", Variadic: true}, touch.Params[1])
	assert.Equal(t, []string{"error"}, touch.Results)

	book, ok := pkg.Entity("Book")
	require.True(t, ok)
	assert.Equal(t, "Item", book.Super)
	assert.Len(t, pkg.Chain(book), 2)
}

func TestParseDir_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "non-struct",
			src:  "package shop\n\n//confine:entity\ntype Name string\n",
			want: "confine:entity on non-struct type Name",
		},
		{
			name: "generic",
			src:  "package shop\n\n//confine:entity\ntype Box[T any] struct{ v T }\n",
			want: "confine:entity on generic type Box",
		},
		{
			name: "two supers",
			src: "package shop\n\n//confine:entity\ntype A struct{}\n\n//confine:entity\ntype B struct{}\n\n" +
				"//confine:entity\ntype C struct {\n\t*A\n\t*B\n}\n",
			want: "entity C embeds several entities: A, B",
		},
		{
			name: "shared operation",
			src: "package shop\n\n//confine:entity\ntype A struct{}\n\n" +
				"func (a *A) URL() string { return \"\" }\n\nfunc (a *A) Url() string { return \"\" }\n",
			want: `methods URL and Url of A share operation "url"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writePackage(t, map[string]string{"a.go": tt.src})
			_, err := ParseDir(dir, DefaultConfig())
			require.Error(t, err)

			var genErr *GenerationError
			require.True(t, errors.As(err, &genErr), "got %T: %v", err, err)
			assert.Contains(t, genErr.Message, tt.want)
			assert.Equal(t, filepath.Join(dir, "a.go"), genErr.File)
			assert.Positive(t, genErr.Line)
		})
	}
}

func TestGeneratePackage(t *testing.T) {
	dir := writePackage(t, map[string]string{"item.go": testEntity})

	outs, err := New(DefaultConfig(), nil).GeneratePackage(dir)
	require.NoError(t, err)
	require.Len(t, outs, 1)

	out := outs[0]
	assert.Equal(t, filepath.Join(dir, "item_confine.go"), out.Path)
	assert.Equal(t, []string{"Item", "Book"}, out.Entities)

	code := string(out.Code)
	for _, want := range []string{
		"// Code generated by confinegen. DO NOT EDIT.",
		`"github.com/kolkov/confinement/confine"`,
		`"time"`,
		`var ItemClass = confine.NewClass("Item", nil,`,
		`confine.Operation{Name: "title", Kind: confine.Getter},`,
		`confine.Operation{Name: "setTitle", Kind: confine.Setter},`,
		`confine.Operation{Name: "touch", Kind: confine.Method},`,
		`var BookClass = confine.NewClass("Book", ItemClass,`,
		"type ItemAPI interface {",
		"PrimitiveTitle() string",
		"type BookAPI interface {",
		"\tItemAPI\n",
		"func (c *checkedItem) Touch(at time.Time, tags ...string) error {",
		"return c.Item.Touch(at, tags...)",
		"c.probeSetTitle.Enter(c.Item)",
		"c.Item.SetTitle(v)",
		"func (c *checkedBook) SetTitle(v string) {",
		"func WrapBook(e *Book) BookAPI {",
		"if !confine.Enabled {",
	} {
		assert.Contains(t, code, want)
	}

	assert.Regexp(t, `probeTitle:\s+v\.MustProbe\("title"\),`, code)
	assert.NotContains(t, code, `"strings"`, "unused imports are dropped")
	assert.NotContains(t, code, "checkedItem) PrimitiveTitle")
	assert.NotContains(t, code, "plain")
	assert.NotContains(t, code, `"primitiveTitle"`)

	// Book's class declares only its own operations.
	bookDecl := code[strings.Index(code, "var BookClass"):]
	bookDecl = bookDecl[:strings.Index(bookDecl, ")\n")]
	assert.Contains(t, bookDecl, `"author"`)
	assert.Contains(t, bookDecl, `"title"`)
	assert.NotContains(t, bookDecl, `"setTitle"`)

	_, err = parser.ParseFile(token.NewFileSet(), out.Path, out.Code, 0)
	assert.NoError(t, err, "generated code must parse")
}

// runtimeStub declares the part of the runtime API generated code uses.
const runtimeStub = `package confine

type OpKind int

const (
	Getter OpKind = iota
	Setter
	Method
)

const Enabled = true

type Operation struct {
	Name string
	Kind OpKind
}

type Class struct{}

func NewClass(name string, super *Class, ops ...Operation) *Class { return nil }

type ExecutionContext interface{ IsCurrent() bool }

type Managed interface{ HomeContext() ExecutionContext }

type Probe struct{}

func (p *Probe) Enter(obj Managed) {}

type Variant struct{}

func (v *Variant) MustProbe(op string) *Probe { return nil }

func ShadowVariantForClass(c *Class) *Variant { return nil }
`

type stubImporter map[string]*types.Package

func (m stubImporter) Import(path string) (*types.Package, error) {
	if pkg, ok := m[path]; ok {
		return pkg, nil
	}
	return nil, errors.Newf("no stub for %s", path)
}

// typeCheck type-checks files as one package against stand-ins for the
// runtime and for time.
func typeCheck(t *testing.T, files map[string][]byte) error {
	t.Helper()
	fset := token.NewFileSet()

	imp := stubImporter{}
	for path, src := range map[string]string{
		DefaultRuntimeImport: runtimeStub,
		"time":               "package time\n\ntype Time struct{}\n",
	} {
		f, err := parser.ParseFile(fset, path+".go", src, 0)
		require.NoError(t, err)
		pkg, err := new(types.Config).Check(path, fset, []*ast.File{f}, nil)
		require.NoError(t, err)
		imp[path] = pkg
	}

	var parsed []*ast.File
	for name, src := range files {
		f, err := parser.ParseFile(fset, name, src, 0)
		require.NoError(t, err)
		parsed = append(parsed, f)
	}
	conf := types.Config{Importer: imp}
	_, err := conf.Check("example.com/shop/shop", fset, parsed, nil)
	return err
}

const testShip = `package shop

import "github.com/kolkov/confinement/confine"

//confine:entity
type Ship struct {
	home confine.ExecutionContext
}

func (s *Ship) HomeContext() confine.ExecutionContext { return s.home }
func (s *Ship) Move(p1 int, _ string)                 {}
func (s *Ship) Dock(_ string, p0 int, c bool)         {}
func (s *Ship) Load(p1_1 int, _ string, p1 float64)   {}
`

// TestGeneratePackage_BlankParamNames tests that names given to blank
// parameters never collide with declared ones, so the output compiles.
func TestGeneratePackage_BlankParamNames(t *testing.T) {
	dir := writePackage(t, map[string]string{"ship.go": testShip})

	outs, err := New(DefaultConfig(), nil).GeneratePackage(dir)
	require.NoError(t, err)
	require.Len(t, outs, 1)

	code := string(outs[0].Code)
	assert.Contains(t, code, "Move(p1 int, p1_1 string)")
	assert.Contains(t, code, "Dock(p0_1 string, p0 int, p2 bool)")
	assert.Contains(t, code, "Load(p1_1 int, p1_2 string, p1 float64)")

	src, err := os.ReadFile(filepath.Join(dir, "ship.go"))
	require.NoError(t, err)
	assert.NoError(t, typeCheck(t, map[string][]byte{
		"ship.go":         src,
		"ship_confine.go": outs[0].Code,
	}))
}

// TestGeneratePackage_TypeChecks tests that the generated companion of an
// entity with a parent compiles.
func TestGeneratePackage_TypeChecks(t *testing.T) {
	const src = `package shop

import (
	"time"

	"github.com/kolkov/confinement/confine"
)

//confine:entity
type Item struct {
	home confine.ExecutionContext
}

func (i *Item) HomeContext() confine.ExecutionContext    { return i.home }
func (i *Item) Title() string                            { return "" }
func (i *Item) SetTitle(v string)                        {}
func (i *Item) Touch(at time.Time, tags ...string) error { return nil }

//confine:entity
type Book struct {
	*Item
}

func (b *Book) Author() string { return "" }
`
	dir := writePackage(t, map[string]string{"item.go": src})
	outs, err := New(DefaultConfig(), nil).GeneratePackage(dir)
	require.NoError(t, err)
	require.Len(t, outs, 1)

	assert.NoError(t, typeCheck(t, map[string][]byte{
		"item.go":         []byte(src),
		"item_confine.go": outs[0].Code,
	}))
}

// TestGeneratePackage_ExampleUpToDate tests that the committed example
// companion is exactly what the generator emits, single import block included.
func TestGeneratePackage_ExampleUpToDate(t *testing.T) {
	dir := filepath.Join("..", "..", "..", "examples", "entity")

	outs, err := New(DefaultConfig(), nil).GeneratePackage(dir)
	require.NoError(t, err)
	require.Len(t, outs, 1)

	committed, err := os.ReadFile(filepath.Join(dir, "entity_confine.go"))
	require.NoError(t, err)
	assert.Contains(t, string(outs[0].Code), "import (\n\t\"github.com/kolkov/confinement/confine\"\n)\n")
	assert.Equal(t, string(committed), string(outs[0].Code), "run go generate ./examples/entity")
}

func TestGeneratePackage_SkipConfig(t *testing.T) {
	dir := writePackage(t, map[string]string{"item.go": testEntity})

	cfg := DefaultConfig()
	cfg.Skip = []string{"Item.Touch", "ObjectURL"}
	outs, err := New(cfg, nil).GeneratePackage(dir)
	require.NoError(t, err)
	require.Len(t, outs, 1)

	code := string(outs[0].Code)
	assert.NotContains(t, code, "checkedItem) Touch")
	assert.NotContains(t, code, "checkedItem) ObjectURL")
	assert.Contains(t, code, "Touch(at time.Time, tags ...string) error", "skipped methods stay in the interface")
}

func TestGeneratePackage_MissingRuntime(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/bare\n\ngo 1.24\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package bare\n"), 0o644))

	_, err := New(DefaultConfig(), nil).GeneratePackage(root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not require github.com/kolkov/confinement/confine")
	assert.Contains(t, errors.FlattenHints(err), "go get")
}

func TestGeneratePackage_SkipsGeneratedAndTests(t *testing.T) {
	dir := writePackage(t, map[string]string{
		"item.go": testEntity,
		"item_test.go": "package shop\n\n//confine:entity\ntype Fake struct{}\n",
		"old_confine.go": "// Code generated by confinegen. DO NOT EDIT.\n\npackage shop\n\n" +
			"//confine:entity\ntype Stale struct{}\n",
	})

	pkg, err := ParseDir(dir, DefaultConfig())
	require.NoError(t, err)
	_, fake := pkg.Entity("Fake")
	_, stale := pkg.Entity("Stale")
	assert.False(t, fake)
	assert.False(t, stale)
}

func TestRun(t *testing.T) {
	dir := writePackage(t, map[string]string{"item.go": testEntity})

	outs, err := New(DefaultConfig(), nil).Run(context.Background(),
		[]string{dir, filepath.Join(dir, "item.go")}, true)
	require.NoError(t, err)
	require.Len(t, outs, 1, "a file argument and its directory are generated once")

	written, err := os.ReadFile(outs[0].Path)
	require.NoError(t, err)
	assert.Equal(t, outs[0].Code, written)
}

func TestRun_Error(t *testing.T) {
	dir := writePackage(t, map[string]string{"a.go": "package shop\n\n//confine:entity\ntype N int\n"})
	_, err := New(DefaultConfig(), nil).Run(context.Background(), []string{dir}, true)
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "a_confine.go"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestOperationName(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{"Name", "name"},
		{"SetName", "setName"},
		{"ObjectID", "objectID"},
		{"ID", "id"},
		{"URLPath", "urlPath"},
		{"X", "x"},
	}
	for _, tt := range tests {
		if got := operationName(tt.method); got != tt.want {
			t.Errorf("operationName(%q) = %q, want %q", tt.method, got, tt.want)
		}
	}
}
