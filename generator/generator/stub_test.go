package generator

import (
	"errors"
	"fmt"

	"github.com/dave/jennifer/jen"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sqcrab/sqcrab/generator/manifest"
)

var (
	intType  = manifest.TypeRef{Kind: manifest.TypeBasic, Name: "int"}
	unitType = manifest.TypeRef{Kind: manifest.TypeNamed, Name: "Unit", Package: "example.com/game"}
	unitPtr  = manifest.TypeRef{Kind: manifest.TypePointer, Elem: &unitType}
)

func render(code jen.Code) string {
	return fmt.Sprintf("%#v", code)
}

func method(identifier, script string, params ...manifest.Parameter) manifest.BindingDeclaration {
	return manifest.BindingDeclaration{
		Kind:       manifest.KindMethod,
		Identifier: identifier,
		ScriptName: script,
		Domain:     "Test",
		Package:    "example.com/game",
		Receiver: &manifest.Parameter{
			Role: manifest.RoleReceiver, Name: "u", Type: unitPtr, IsReference: true, IsMutable: true,
		},
		Parameters: params,
		Return:     manifest.ReturnNone,
	}
}

func value(name string, t manifest.TypeRef) manifest.Parameter {
	return manifest.Parameter{Role: manifest.RoleValue, Name: name, Type: t}
}

var _ = Describe("Generating stubs", func() {
	var s *stubs

	BeforeEach(func() {
		s = newStubs(&manifest.Manifest{
			Package:     "example.com/game",
			PackageName: "game",
			LocalTypes:  []string{"Unit"},
		})
	})

	It("names adapters after domain and script name", func() {
		Expect(identifier("unit_get_hp")).To(Equal("UnitGetHp"))
		Expect(identifier("Test")).To(Equal("Test"))
		Expect(identifier("addHP")).To(Equal("AddHP"))
		Expect(identifier("2d")).To(HavePrefix("X2"))

		name, _, err := s.Stub(method("GetHP", "unit_get_hp"))
		Expect(err).To(BeNil())
		Expect(name).To(Equal("sqcrabTestUnitGetHp"))

		name, _, err = s.Stub(method("GetHP", "unit.get.hp"))
		Expect(err).To(BeNil())
		Expect(name).To(Equal("sqcrabTestUnitGetHp2"))
	})

	It("reads a local receiver below the arguments", func() {
		decl := method("SetHP", "unit_set_hp", value("hp", intType))
		decl.PointerLocality = true

		_, code, err := s.Stub(decl)
		Expect(err).To(BeNil())
		src := render(code)
		Expect(src).To(ContainSubstring("this, err := sqcrab.Get[*Unit](vm, 2)"))
		Expect(src).To(ContainSubstring("arg0, err := sqcrab.Get[int](vm, 1)"))
		Expect(src).To(ContainSubstring("this.SetHP(arg0)"))
		Expect(src).To(ContainSubstring("return 0, nil"))
		Expect(src).NotTo(ContainSubstring("CheckArity"))
	})

	It("reads the ambient receiver by default", func() {
		decl := method("GetHP", "unit_get_hp")
		decl.Return = manifest.ReturnOne
		decl.ReturnType = &intType

		_, code, err := s.Stub(decl)
		Expect(err).To(BeNil())
		src := render(code)
		Expect(src).To(ContainSubstring("this, err := sqcrab.This[*Unit](vm)"))
		Expect(src).To(ContainSubstring("ret := this.GetHP()"))
		Expect(src).To(ContainSubstring("sqcrab.Push(vm, ret)"))
		Expect(src).To(ContainSubstring("return 1, nil"))
	})

	It("orders arguments by depth", func() {
		decl := manifest.BindingDeclaration{
			Kind:         manifest.KindFunction,
			Identifier:   "AddHP",
			ScriptName:   "add_hp",
			Package:      "example.com/game",
			Parameters:   []manifest.Parameter{value("u", unitPtr), value("amount", intType)},
			Return:       manifest.ReturnNone,
			ReturnsError: true,
			TypeChecking: true,
		}

		_, code, err := s.Stub(decl)
		Expect(err).To(BeNil())
		src := render(code)
		Expect(src).To(ContainSubstring("sqcrab.CheckArity(vm, 2)"))
		Expect(src).To(ContainSubstring("arg0, err := sqcrab.Get[*Unit](vm, 2)"))
		Expect(src).To(ContainSubstring("arg1, err := sqcrab.Get[int](vm, 1)"))
		Expect(src).To(ContainSubstring("if err := AddHP(arg0, arg1); err != nil"))
	})

	It("counts a local receiver in the arity check", func() {
		decl := method("SetHP", "unit_set_hp", value("hp", intType))
		decl.PointerLocality = true
		decl.TypeChecking = true

		_, code, err := s.Stub(decl)
		Expect(err).To(BeNil())
		Expect(render(code)).To(ContainSubstring("sqcrab.CheckArity(vm, 2)"))
	})

	It("qualifies declarations of other packages", func() {
		durationType := manifest.TypeRef{Kind: manifest.TypeNamed, Name: "Duration", Package: "time"}
		decl := manifest.BindingDeclaration{
			Kind:         manifest.KindFunction,
			Identifier:   "Strike",
			ScriptName:   "strike",
			Package:      "example.com/game/combat",
			PackageName:  "combat",
			Parameters:   []manifest.Parameter{value("d", durationType)},
			Return:       manifest.ReturnOne,
			ReturnType:   &manifest.TypeRef{Kind: manifest.TypeSlice, Elem: &intType},
			ReturnsError: true,
		}

		_, code, err := s.Stub(decl)
		Expect(err).To(BeNil())
		src := render(code)
		Expect(src).To(ContainSubstring("sqcrab.Get[time.Duration](vm, 1)"))
		Expect(src).To(ContainSubstring("ret, err := combat.Strike(arg0)"))
	})

	When("the declaration cannot be reached", func() {
		It("rejects unexported functions of other packages", func() {
			decl := manifest.BindingDeclaration{
				Kind: manifest.KindFunction, Identifier: "strike", Package: "example.com/game/combat", PackageName: "combat", Return: manifest.ReturnNone,
			}
			_, _, err := s.Stub(decl)
			Expect(errors.Is(err, ErrUnreachable)).To(BeTrue())
		})

		It("rejects functions in package main", func() {
			decl := manifest.BindingDeclaration{
				Kind: manifest.KindFunction, Identifier: "Run", Package: "example.com/game/cmd", PackageName: "main", Return: manifest.ReturnNone,
			}
			_, _, err := s.Stub(decl)
			Expect(errors.Is(err, ErrUnreachable)).To(BeTrue())
		})

		It("rejects unexported types of other packages", func() {
			hidden := manifest.TypeRef{Kind: manifest.TypeNamed, Name: "secret", Package: "example.com/game/combat"}
			decl := manifest.BindingDeclaration{
				Kind: manifest.KindFunction, Identifier: "Use", Package: "example.com/game", Return: manifest.ReturnNone,
				Parameters: []manifest.Parameter{value("s", hidden)},
			}
			_, _, err := s.Stub(decl)
			Expect(errors.Is(err, ErrUnreachable)).To(BeTrue())
		})
	})
})
