package generator

import (
	"errors"
	"fmt"
	"go/token"
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sqcrab/sqcrab/generator/manifest"
)

const runtimePath = "github.com/sqcrab/sqcrab"

var ErrUnreachable = errors.New("declaration is not reachable from the output package")

var title = cases.Title(language.Und, cases.NoLower)

// identifier turns a script or domain name into an exported Go identifier.
func identifier(name string) string {
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var b strings.Builder
	for _, field := range fields {
		b.WriteString(title.String(field))
	}
	if b.Len() == 0 || unicode.IsDigit([]rune(b.String())[0]) {
		return "X" + b.String()
	}
	return b.String()
}

// stubs renders the adapters of one output package.
type stubs struct {
	pkg   string
	local map[string]bool
	names map[string]bool
}

func newStubs(m *manifest.Manifest) *stubs {
	s := &stubs{
		pkg:   m.Package,
		local: map[string]bool{},
		names: map[string]bool{},
	}
	for _, t := range m.LocalTypes {
		s.local[t] = true
	}
	return s
}

// adapterName returns a unique unexported name for the adapter of decl.
func (s *stubs) adapterName(decl manifest.BindingDeclaration) string {
	base := "sqcrab" + identifier(decl.DomainName()) + identifier(decl.Name())
	name := base
	for i := 2; s.names[name]; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	s.names[name] = true
	return name
}

// typeCode renders t as seen from the output package.
func (s *stubs) typeCode(t manifest.TypeRef) (*jen.Statement, error) {
	switch t.Kind {
	case manifest.TypeBasic:
		return jen.Id(t.Name), nil
	case manifest.TypeInterface:
		return jen.Id("any"), nil
	case manifest.TypeNamed:
		if t.Package == s.pkg {
			if !s.local[t.Name] {
				return nil, fmt.Errorf("%w: unknown local type %s", ErrUnreachable, t.Name)
			}
			return jen.Id(t.Name), nil
		}
		if !token.IsExported(t.Name) {
			return nil, fmt.Errorf("%w: %s is not exported", ErrUnreachable, t)
		}
		return jen.Qual(t.Package, t.Name), nil
	case manifest.TypePointer, manifest.TypeSlice:
		if t.Elem == nil {
			return nil, fmt.Errorf("%s type without element", t.Kind)
		}
		elem, err := s.typeCode(*t.Elem)
		if err != nil {
			return nil, err
		}
		if t.Kind == manifest.TypePointer {
			return jen.Op("*").Add(elem), nil
		}
		return jen.Index().Add(elem), nil
	case manifest.TypeMap:
		if t.Key == nil || t.Elem == nil {
			return nil, errors.New("map type without key or element")
		}
		key, err := s.typeCode(*t.Key)
		if err != nil {
			return nil, err
		}
		elem, err := s.typeCode(*t.Elem)
		if err != nil {
			return nil, err
		}
		return jen.Map(key).Add(elem), nil
	}

	return nil, fmt.Errorf("unknown type kind %q", t.Kind)
}

// receiverCode renders the pointer type the receiver is fetched as.
func (s *stubs) receiverCode(recv *manifest.Parameter) (*jen.Statement, error) {
	t := recv.Type
	if t.Kind == manifest.TypePointer {
		if t.Elem == nil {
			return nil, errors.New("pointer receiver without element")
		}
		t = *t.Elem
	}
	if t.Kind != manifest.TypeNamed {
		return nil, fmt.Errorf("receiver of type %s", recv.Type)
	}
	elem, err := s.typeCode(t)
	if err != nil {
		return nil, err
	}
	return jen.Op("*").Add(elem), nil
}

func (s *stubs) callee(decl manifest.BindingDeclaration) (*jen.Statement, error) {
	if decl.Kind == manifest.KindMethod {
		return jen.Id("this").Dot(decl.Identifier), nil
	}
	if decl.Package == s.pkg {
		return jen.Id(decl.Identifier), nil
	}
	if decl.PackageName == "main" {
		return nil, fmt.Errorf("%w: %s is declared in package main", ErrUnreachable, decl.Identifier)
	}
	if !token.IsExported(decl.Identifier) {
		return nil, fmt.Errorf("%w: %s.%s is not exported", ErrUnreachable, decl.PackageName, decl.Identifier)
	}
	return jen.Qual(decl.Package, decl.Identifier), nil
}

// returnErr is the early exit shared by every failing step of an adapter.
func returnErr() *jen.Statement {
	return jen.If(jen.Err().Op("!=").Nil()).Block(
		jen.Return(jen.Lit(0), jen.Err()),
	)
}

// Stub renders the adapter of one declaration. Values are read by their
// depth from the top of the frame: with n parameters, parameter i sits at
// depth n-i and a local receiver below all of them at depth n+1.
func (s *stubs) Stub(decl manifest.BindingDeclaration) (string, jen.Code, error) {
	if err := decl.Validate(); err != nil {
		return "", nil, err
	}

	fail := func(err error) (string, jen.Code, error) {
		return "", nil, fmt.Errorf("%s: could not generate %s: %w", decl.Position, decl.Name(), err)
	}

	n := len(decl.Parameters)
	var body []jen.Code

	if decl.TypeChecking {
		total := n
		if decl.Receiver != nil && decl.PointerLocality {
			total++
		}
		body = append(body,
			jen.If(jen.Err().Op(":=").Qual(runtimePath, "CheckArity").Call(jen.Id("vm"), jen.Lit(total)), jen.Err().Op("!=").Nil()).Block(
				jen.Return(jen.Lit(0), jen.Err()),
			),
		)
	}

	if decl.Receiver != nil {
		recv, err := s.receiverCode(decl.Receiver)
		if err != nil {
			return fail(err)
		}
		if decl.PointerLocality {
			body = append(body,
				jen.List(jen.Id("this"), jen.Err()).Op(":=").Qual(runtimePath, "Get").Types(recv).Call(jen.Id("vm"), jen.Lit(n+1)),
			)
		} else {
			body = append(body,
				jen.List(jen.Id("this"), jen.Err()).Op(":=").Qual(runtimePath, "This").Types(recv).Call(jen.Id("vm")),
			)
		}
		body = append(body, returnErr())
	}

	args := make([]jen.Code, 0, n)
	for i, param := range decl.Parameters {
		t, err := s.typeCode(param.Type)
		if err != nil {
			return fail(err)
		}
		arg := fmt.Sprintf("arg%d", i)
		body = append(body,
			jen.List(jen.Id(arg), jen.Err()).Op(":=").Qual(runtimePath, "Get").Types(t).Call(jen.Id("vm"), jen.Lit(n-i)),
			returnErr(),
		)
		args = append(args, jen.Id(arg))
	}

	callee, err := s.callee(decl)
	if err != nil {
		return fail(err)
	}
	call := callee.Call(args...)

	if decl.Return == manifest.ReturnOne {
		if _, err := s.typeCode(*decl.ReturnType); err != nil {
			return fail(err)
		}
		if decl.ReturnsError {
			body = append(body,
				jen.List(jen.Id("ret"), jen.Err()).Op(":=").Add(call),
				returnErr(),
			)
		} else {
			body = append(body, jen.Id("ret").Op(":=").Add(call))
		}
		body = append(body,
			jen.If(jen.Err().Op(":=").Qual(runtimePath, "Push").Call(jen.Id("vm"), jen.Id("ret")), jen.Err().Op("!=").Nil()).Block(
				jen.Return(jen.Lit(0), jen.Err()),
			),
			jen.Return(jen.Lit(1), jen.Nil()),
		)
	} else {
		if decl.ReturnsError {
			body = append(body,
				jen.If(jen.Err().Op(":=").Add(call), jen.Err().Op("!=").Nil()).Block(
					jen.Return(jen.Lit(0), jen.Err()),
				),
			)
		} else {
			body = append(body, call)
		}
		body = append(body, jen.Return(jen.Lit(0), jen.Nil()))
	}

	name := s.adapterName(decl)
	code := jen.Func().Id(name).
		Params(jen.Id("vm").Op("*").Qual(runtimePath, "VM")).
		Params(jen.Int(), jen.Error()).
		Block(body...)

	return name, code, nil
}
