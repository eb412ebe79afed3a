package gen

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/tools/imports"
)

// receiverName is the receiver of generated wrapper methods.
const receiverName = "c"

// header marks generated files; tools skip files that carry it.
const header = "// Code generated by confinegen. DO NOT EDIT.\n"

// emitFile renders the generated companion of source for entities.
func emitFile(pkg *Package, source string, entities []*Entity, cfg Config) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(header)
	fmt.Fprintf(&buf, "// Source: %s\n\n", filepath.Base(source))
	fmt.Fprintf(&buf, "package %s\n\n", pkg.Name)

	buf.WriteString("import (\n")
	fmt.Fprintf(&buf, "\t%s\n", strconv.Quote(cfg.RuntimeImport))
	for _, spec := range pkg.Files[source].Imports {
		if spec.Name == nil && spec.Path.Value == strconv.Quote(cfg.RuntimeImport) {
			continue
		}
		if spec.Name != nil && (spec.Name.Name == "_" || spec.Name.Name == ".") {
			continue
		}
		buf.WriteString("\t")
		if spec.Name != nil {
			buf.WriteString(spec.Name.Name + " ")
		}
		buf.WriteString(spec.Path.Value + "\n")
	}
	buf.WriteString(")\n")

	for _, e := range entities {
		emitEntity(&buf, pkg, e)
	}

	out, err := imports.Process(generatedName(source, cfg), buf.Bytes(), &imports.Options{
		Comments:  true,
		TabIndent: true,
		TabWidth:  8,
	})
	if err != nil {
		return nil, errors.WithDetail(
			errors.Wrapf(err, "confinegen: format output for %s", source),
			buf.String(),
		)
	}
	return out, nil
}

// generatedName maps entity.go to entity_confine.go.
func generatedName(source string, cfg Config) string {
	return strings.TrimSuffix(source, ".go") + cfg.Suffix
}

func emitEntity(buf *bytes.Buffer, pkg *Package, e *Entity) {
	classVar := e.Name + "Class"
	apiType := e.Name + "API"
	checked := "checked" + e.Name

	// Class descriptor: operations declared on this type only; the registry
	// inherits the rest from Super.
	super := "nil"
	if e.Super != "" {
		super = e.Super + "Class"
	}
	fmt.Fprintf(buf, "\n// %s describes %s for the confinement checker.\n", classVar, e.Name)
	fmt.Fprintf(buf, "var %s = confine.NewClass(%q, %s", classVar, e.Name, super)
	for _, m := range e.Methods {
		if m.Intercepted {
			fmt.Fprintf(buf, ",\n\tconfine.Operation{Name: %q, Kind: confine.%s}", m.Op, m.Kind)
		}
	}
	buf.WriteString(",\n)\n")

	// Interface shared by the plain and checked forms.
	fmt.Fprintf(buf, "\n// %s is implemented by *%s and by its checked wrapper.\n", apiType, e.Name)
	fmt.Fprintf(buf, "type %s interface {\n", apiType)
	if e.Super != "" {
		fmt.Fprintf(buf, "\t%sAPI\n", e.Super)
	} else {
		buf.WriteString("\tconfine.Managed\n")
	}
	for _, m := range e.Methods {
		fmt.Fprintf(buf, "\t%s%s\n", m.Name, signature(m))
	}
	buf.WriteString("}\n")

	wrapped := interceptedChain(pkg, e)

	fmt.Fprintf(buf, "\n// %s runs the affiliation check before every intercepted\n", checked)
	fmt.Fprintf(buf, "// operation of %s, then delegates to it.\n", e.Name)
	fmt.Fprintf(buf, "type %s struct {\n\t*%s\n\n", checked, e.Name)
	for _, m := range wrapped {
		fmt.Fprintf(buf, "\t%s *confine.Probe\n", probeField(m))
	}
	buf.WriteString("}\n")

	for _, m := range wrapped {
		emitMethod(buf, e.Name, checked, m)
	}

	fmt.Fprintf(buf, "\n// Wrap%s returns e behind its checked wrapper. With the checker\n", e.Name)
	buf.WriteString("// compiled out it returns e unchanged.\n")
	fmt.Fprintf(buf, "func Wrap%s(e *%s) %s {\n", e.Name, e.Name, apiType)
	buf.WriteString("\tif !confine.Enabled {\n\t\treturn e\n\t}\n")
	if len(wrapped) == 0 {
		fmt.Fprintf(buf, "\t_ = confine.ShadowVariantForClass(%s)\n", classVar)
		fmt.Fprintf(buf, "\treturn &%s{%s: e}\n}\n", checked, e.Name)
		return
	}
	fmt.Fprintf(buf, "\tv := confine.ShadowVariantForClass(%s)\n", classVar)
	fmt.Fprintf(buf, "\treturn &%s{\n\t\t%s: e,\n", checked, e.Name)
	for _, m := range wrapped {
		fmt.Fprintf(buf, "\t\t%s: v.MustProbe(%q),\n", probeField(m), m.Op)
	}
	buf.WriteString("\t}\n}\n")
}

// interceptedChain returns the intercepted methods of e and its ancestors,
// sorted by name. A method declared closer to e hides an ancestor's method of
// the same name.
func interceptedChain(pkg *Package, e *Entity) []*Method {
	byName := map[string]*Method{}
	for _, cur := range pkg.Chain(e) {
		for _, m := range cur.Methods {
			if _, ok := byName[m.Name]; !ok {
				byName[m.Name] = m
			}
		}
	}

	var out []*Method
	for _, m := range byName {
		if m.Intercepted {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func probeField(m *Method) string {
	return "probe" + m.Name
}

func emitMethod(buf *bytes.Buffer, base, checked string, m *Method) {
	fmt.Fprintf(buf, "\nfunc (%s *%s) %s%s {\n", receiverName, checked, m.Name, signature(m))
	fmt.Fprintf(buf, "\t%s.%s.Enter(%s.%s)\n", receiverName, probeField(m), receiverName, base)

	args := make([]string, len(m.Params))
	for i, p := range m.Params {
		args[i] = p.Name
		if p.Variadic {
			args[i] += "..."
		}
	}
	call := fmt.Sprintf("%s.%s.%s(%s)", receiverName, base, m.Name, strings.Join(args, ", "))
	if len(m.Results) > 0 {
		fmt.Fprintf(buf, "\treturn %s\n", call)
	} else {
		fmt.Fprintf(buf, "\t%s\n", call)
	}
	buf.WriteString("}\n")
}

// signature renders the parameter and result lists of m.
func signature(m *Method) string {
	params := make([]string, len(m.Params))
	for i, p := range m.Params {
		typ := p.Type
		if p.Variadic {
			typ = "..." + typ
		}
		params[i] = p.Name + " " + typ
	}

	sig := "(" + strings.Join(params, ", ") + ")"
	switch len(m.Results) {
	case 0:
	case 1:
		sig += " " + m.Results[0]
	default:
		sig += " (" + strings.Join(m.Results, ", ") + ")"
	}
	return sig
}
