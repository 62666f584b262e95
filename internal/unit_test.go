package sqcrab

import (
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const squareScript = `function square(x) return x * x end`

var _ = Describe("Precompiling scripts", func() {
	var vm *VM

	BeforeEach(func() {
		vm = newTestVM(nil)
	})

	It("imports a precompiled unit", func() {
		data, err := Precompile(squareScript, "square.lua")
		Expect(err).To(BeNil())
		Expect(IsPrecompiled(data)).To(BeTrue())

		Expect(vm.ImportBytes(ctx, data)).To(Succeed())
		n, err := CallAs[int](ctx, vm, "square", 6)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(36))
	})

	It("refuses to pack a script that does not compile", func() {
		_, err := Precompile("function (", "broken.lua")
		var compileErr *CompileError
		Expect(errors.As(err, &compileErr)).To(BeTrue())
	})

	It("rejects corrupted units", func() {
		data, err := Precompile(squareScript, "square.lua")
		Expect(err).To(BeNil())

		corrupt := append([]byte(nil), data...)
		corrupt[len(unitMagic)+1] ^= 0xff
		Expect(vm.ImportBytes(ctx, corrupt)).To(MatchError(ErrInvalidUnit))

		corrupt = append([]byte(nil), data...)
		corrupt[len(unitMagic)] = unitVersion + 1
		Expect(vm.ImportBytes(ctx, corrupt)).To(MatchError(ErrInvalidUnit))

		Expect(vm.ImportBytes(ctx, []byte("SQ"))).To(MatchError(ErrInvalidUnit))
		Expect(vm.ImportBytes(ctx, []byte(squareScript))).To(MatchError(ErrInvalidUnit))
	})

	It("imports files by their content", func() {
		dir := GinkgoT().TempDir()
		text := filepath.Join(dir, "square.lua")
		Expect(os.WriteFile(text, []byte(squareScript), 0o644)).To(Succeed())

		data, err := Precompile(`function cube(x) return x * x * x end`, "cube.lua")
		Expect(err).To(BeNil())
		packed := filepath.Join(dir, "cube.sqc")
		Expect(os.WriteFile(packed, data, 0o644)).To(Succeed())

		Expect(vm.ImportFile(ctx, text)).To(Succeed())
		Expect(vm.ImportFile(ctx, packed)).To(Succeed())

		n, err := CallAs[int](ctx, vm, "square", 3)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(9))
		n, err = CallAs[int](ctx, vm, "cube", 3)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(27))

		Expect(vm.ImportFile(ctx, filepath.Join(dir, "missing.lua"))).ToNot(Succeed())
	})

	It("reports errors raised while running the unit", func() {
		err := vm.ImportText(ctx, `error("init failed")`, "init.lua")
		var callErr *CallError
		Expect(errors.As(err, &callErr)).To(BeTrue())
		Expect(callErr.Function).To(Equal("init.lua"))
	})
})
