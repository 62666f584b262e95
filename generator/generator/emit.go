package generator

import (
	"bytes"
	"fmt"

	"github.com/dave/jennifer/jen"

	"github.com/sqcrab/sqcrab/generator/manifest"
)

const header = "Code generated by sqcrab-gen. DO NOT EDIT."

// Emit renders the output file of m: one adapter per declaration and one
// registrar type per domain.
func Emit(m *manifest.Manifest) ([]byte, error) {
	domains, err := m.Domains()
	if err != nil {
		return nil, err
	}

	f := jen.NewFilePathName(m.Package, m.PackageName)
	f.HeaderComment(header)
	f.ImportName(runtimePath, "sqcrab")

	s := newStubs(m)
	registrars := make([]jen.Code, 0, len(domains))
	typeNames := map[string]string{}

	for _, domain := range domains {
		typeName := identifier(domain.Name) + "Domain"
		if prev, ok := typeNames[typeName]; ok {
			return nil, fmt.Errorf("domains %q and %q both map to %s", prev, domain.Name, typeName)
		}
		typeNames[typeName] = domain.Name

		var adds []jen.Code
		var adapters []jen.Code
		for _, decl := range domain.Declarations {
			name, code, err := s.Stub(decl)
			if err != nil {
				return nil, err
			}
			adapters = append(adapters, code)
			adds = append(adds,
				jen.If(jen.Err().Op(":=").Id("vm").Dot("AddFunction").Call(jen.Lit(decl.Name()), jen.Id(name)), jen.Err().Op("!=").Nil()).Block(
					jen.Return(jen.Err()),
				),
			)
		}
		adds = append(adds, jen.Return(jen.Nil()))

		f.Commentf("%s registers the functions of the %s domain.", typeName, domain.Name)
		f.Type().Id(typeName).Struct()
		f.Line()
		f.Func().Params(jen.Id(typeName)).Id("DomainName").Params().String().Block(
			jen.Return(jen.Lit(domain.Name)),
		)
		f.Line()
		f.Func().Params(jen.Id(typeName)).Id("AddFunctions").
			Params(jen.Id("vm").Op("*").Qual(runtimePath, "VM")).
			Error().
			Block(adds...)

		for _, adapter := range adapters {
			f.Line()
			f.Add(adapter)
		}
		f.Line()

		registrars = append(registrars, jen.Id(typeName).Values())
	}

	f.Comment("Domains lists the registrar of every domain in this package.")
	f.Func().Id("Domains").Params().Index().Qual(runtimePath, "Registrar").Block(
		jen.Return(jen.Index().Qual(runtimePath, "Registrar").Values(registrars...)),
	)

	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("could not render %s: %w", m.Package, err)
	}

	return buf.Bytes(), nil
}
