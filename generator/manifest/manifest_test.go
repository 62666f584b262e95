package manifest

import (
	"bytes"
	"errors"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func function(name, domain string, line int) BindingDeclaration {
	return BindingDeclaration{
		Kind:       KindFunction,
		Identifier: name,
		ScriptName: name,
		Domain:     domain,
		Package:    "example.com/game",
		Return:     ReturnNone,
		Position:   Position{File: "game.go", Line: line, Column: 1},
	}
}

var _ = Describe("Manifest", func() {
	Context("grouping by domain", func() {
		It("orders domains and declarations by name", func() {
			m := &Manifest{Declarations: []BindingDeclaration{
				function("zap", "Test", 1),
				function("add", "Test", 2),
				function("print", "", 3),
				function("boom", "Combat", 4),
			}}

			domains, err := m.Domains()
			Expect(err).To(BeNil())
			Expect(domains).To(HaveLen(3))
			Expect(domains[0].Name).To(Equal("Combat"))
			Expect(domains[1].Name).To(Equal(DefaultDomain))
			Expect(domains[2].Name).To(Equal("Test"))
			Expect(domains[2].Declarations[0].Name()).To(Equal("add"))
			Expect(domains[2].Declarations[1].Name()).To(Equal("zap"))
		})

		It("rejects the same name twice in one domain", func() {
			m := &Manifest{Declarations: []BindingDeclaration{
				function("add", "Test", 1),
				function("add", "Test", 9),
			}}

			_, err := m.Domains()
			Expect(errors.Is(err, ErrDuplicateBinding)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("game.go:1:1"))
			Expect(err.Error()).To(ContainSubstring("game.go:9:1"))
		})

		It("allows the same name in different domains", func() {
			m := &Manifest{Declarations: []BindingDeclaration{
				function("add", "Test", 1),
				function("add", "Other", 2),
			}}

			domains, err := m.Domains()
			Expect(err).To(BeNil())
			Expect(domains).To(HaveLen(2))
		})

		It("validates declarations", func() {
			method := function("get", "Test", 1)
			method.Kind = KindMethod
			_, err := (&Manifest{Declarations: []BindingDeclaration{method}}).Domains()
			Expect(err).To(MatchError(ContainSubstring("has no receiver")))

			value := function("get", "Test", 1)
			value.Return = ReturnOne
			Expect(value.Validate()).To(MatchError(ContainSubstring("unknown type")))
		})
	})

	It("falls back to the identifier and the default domain", func() {
		decl := BindingDeclaration{Identifier: "AddHP"}
		Expect(decl.Name()).To(Equal("AddHP"))
		Expect(decl.DomainName()).To(Equal(DefaultDomain))
	})

	It("renders type references", func() {
		unit := TypeRef{Kind: TypeNamed, Name: "Unit", Package: "example.com/game"}
		key := TypeRef{Kind: TypeBasic, Name: "string"}
		Expect(TypeRef{Kind: TypePointer, Elem: &unit}.String()).To(Equal("*game.Unit"))
		Expect(TypeRef{Kind: TypeSlice, Elem: &unit}.String()).To(Equal("[]game.Unit"))
		Expect(TypeRef{Kind: TypeMap, Key: &key, Elem: &unit}.String()).To(Equal("map[string]game.Unit"))
		Expect(TypeRef{Kind: TypeInterface}.String()).To(Equal("any"))
	})

	Context("on disk", func() {
		var m *Manifest

		BeforeEach(func() {
			unit := TypeRef{Kind: TypeNamed, Name: "Unit", Package: "example.com/game"}
			get := function("GetHP", "Test", 11)
			get.Kind = KindMethod
			get.ScriptName = "unit_get_hp"
			get.PointerLocality = true
			get.Receiver = &Parameter{Role: RoleReceiver, Name: "u", Type: TypeRef{Kind: TypePointer, Elem: &unit}, IsReference: true, IsMutable: true}
			get.Return = ReturnOne
			get.ReturnType = &TypeRef{Kind: TypeBasic, Name: "int"}

			add := function("AddHP", "Test", 20)
			add.Parameters = []Parameter{
				{Role: RoleValue, Name: "u", Type: TypeRef{Kind: TypePointer, Elem: &unit}, IsReference: true, IsMutable: true},
				{Role: RoleValue, Name: "amount", Type: TypeRef{Kind: TypeBasic, Name: "int"}},
			}
			add.ReturnsError = true

			m = &Manifest{
				Module:       "example.com/game",
				Package:      "example.com/game",
				PackageName:  "game",
				LocalTypes:   []string{"Unit"},
				Declarations: []BindingDeclaration{get, add},
			}
		})

		It("survives a round trip", func() {
			file := filepath.Join(GinkgoT().TempDir(), "sqcrab.manifest.toml")
			Expect(m.Write(file)).To(Succeed())

			read, err := Read(file)
			Expect(err).To(BeNil())
			Expect(read.Module).To(Equal(m.Module))
			Expect(read.IsLocalType("Unit")).To(BeTrue())
			Expect(read.Declarations).To(HaveLen(2))

			get := read.Declarations[0]
			Expect(get.Receiver).To(Equal(m.Declarations[0].Receiver))
			Expect(get.ReturnType).To(Equal(m.Declarations[0].ReturnType))
			Expect(get.PointerLocality).To(BeTrue())
			Expect(get.Position).To(Equal(m.Declarations[0].Position))

			add := read.Declarations[1]
			Expect(add.Parameters).To(Equal(m.Declarations[1].Parameters))
			Expect(add.ReturnsError).To(BeTrue())
		})

		It("rejects unknown keys", func() {
			var buf bytes.Buffer
			Expect(m.Encode(&buf)).To(Succeed())
			buf.WriteString("\ncolour = \"red\"\n")

			_, err := Decode(&buf)
			Expect(err).To(MatchError(ContainSubstring("colour")))
		})

		It("reports a missing file", func() {
			_, err := Read(filepath.Join(GinkgoT().TempDir(), "missing.toml"))
			Expect(err).NotTo(BeNil())
		})
	})
})
