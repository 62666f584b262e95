package scanner

import (
	"fmt"
	"go/ast"
	"path"
	"strconv"
	"strings"

	"github.com/sqcrab/sqcrab/generator/manifest"
)

var basicTypes = map[string]bool{
	"bool": true, "string": true, "byte": true, "rune": true,
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true, "uintptr": true,
	"float32": true, "float64": true,
}

// importsOf maps the names a file refers to its imports by, to import paths.
func importsOf(file *ast.File) map[string]string {
	imports := map[string]string{}
	for _, spec := range file.Imports {
		importPath, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}

		name := path.Base(importPath)
		if major := strings.TrimPrefix(name, "v"); name != major && isDigits(major) {
			name = path.Base(path.Dir(importPath))
		}
		if spec.Name != nil {
			name = spec.Name.Name
		}
		if name == "_" || name == "." {
			continue
		}
		imports[name] = importPath
	}
	return imports
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type typeResolver struct {
	pkg     *pkg
	imports map[string]string
}

func (r *typeResolver) resolve(expr ast.Expr) (manifest.TypeRef, error) {
	switch e := expr.(type) {
	case *ast.Ident:
		if basicTypes[e.Name] {
			return manifest.TypeRef{Kind: manifest.TypeBasic, Name: e.Name}, nil
		}
		if e.Name == "any" {
			return manifest.TypeRef{Kind: manifest.TypeInterface, Name: "any"}, nil
		}
		if e.Name == "error" {
			return manifest.TypeRef{}, fmt.Errorf("%w: error is only supported as the last result", ErrUnsupportedSignature)
		}
		if local, ok := r.pkg.types[e.Name]; ok {
			if local.generic {
				return manifest.TypeRef{}, fmt.Errorf("%w: %s is generic", ErrUnsupportedSignature, e.Name)
			}
			return manifest.TypeRef{Kind: manifest.TypeNamed, Name: e.Name, Package: r.pkg.path}, nil
		}
		return manifest.TypeRef{}, fmt.Errorf("%w: unknown type %s", ErrUnsupportedSignature, e.Name)
	case *ast.SelectorExpr:
		x, ok := e.X.(*ast.Ident)
		if !ok {
			return manifest.TypeRef{}, fmt.Errorf("%w: unsupported type expression", ErrUnsupportedSignature)
		}
		importPath, ok := r.imports[x.Name]
		if !ok {
			return manifest.TypeRef{}, fmt.Errorf("%w: unknown package %s", ErrUnsupportedSignature, x.Name)
		}
		return manifest.TypeRef{Kind: manifest.TypeNamed, Name: e.Sel.Name, Package: importPath}, nil
	case *ast.StarExpr:
		elem, err := r.resolve(e.X)
		if err != nil {
			return manifest.TypeRef{}, err
		}
		return manifest.TypeRef{Kind: manifest.TypePointer, Elem: &elem}, nil
	case *ast.ArrayType:
		if e.Len != nil {
			return manifest.TypeRef{}, fmt.Errorf("%w: fixed size arrays", ErrUnsupportedSignature)
		}
		elem, err := r.resolve(e.Elt)
		if err != nil {
			return manifest.TypeRef{}, err
		}
		return manifest.TypeRef{Kind: manifest.TypeSlice, Elem: &elem}, nil
	case *ast.MapType:
		key, err := r.resolve(e.Key)
		if err != nil {
			return manifest.TypeRef{}, err
		}
		if key.Kind != manifest.TypeBasic || key.Name != "string" {
			return manifest.TypeRef{}, fmt.Errorf("%w: map keys must be strings", ErrUnsupportedSignature)
		}
		elem, err := r.resolve(e.Value)
		if err != nil {
			return manifest.TypeRef{}, err
		}
		return manifest.TypeRef{Kind: manifest.TypeMap, Key: &key, Elem: &elem}, nil
	case *ast.InterfaceType:
		if e.Methods != nil && len(e.Methods.List) > 0 {
			return manifest.TypeRef{}, fmt.Errorf("%w: interfaces with methods", ErrUnsupportedSignature)
		}
		return manifest.TypeRef{Kind: manifest.TypeInterface, Name: "any"}, nil
	case *ast.FuncType:
		return manifest.TypeRef{}, fmt.Errorf("%w: function parameters", ErrUnsupportedSignature)
	case *ast.ChanType:
		return manifest.TypeRef{}, fmt.Errorf("%w: channel parameters", ErrUnsupportedSignature)
	}

	return manifest.TypeRef{}, fmt.Errorf("%w: unsupported type expression", ErrUnsupportedSignature)
}

// isReference reports whether values of t travel as references.
func (r *typeResolver) isReference(t manifest.TypeRef) bool {
	if t.Kind == manifest.TypePointer {
		return true
	}
	if t.Kind == manifest.TypeNamed && t.Package == r.pkg.path {
		if local, ok := r.pkg.types[t.Name]; ok {
			return local.isStruct
		}
	}
	return false
}
