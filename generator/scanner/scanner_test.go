package scanner

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sqcrab/sqcrab/generator/manifest"
)

const unitSource = `package game

import "fmt"

//sqcrab:hint
type Unit struct {
	hp int
}

//sqcrab:bind name="unit_get_hp" domain="Test" local_pointer=true
func (u *Unit) GetHP() int {
	return u.hp
}

//sqcrab:bind name="unit_set_hp" domain="Test" type_checking=true
func (u *Unit) SetHP(hp int) {
	u.hp = hp
}

//sqcrab:bind name="add_hp" domain="Test"
func AddHP(u *Unit, amount int) error {
	if amount < 0 {
		return fmt.Errorf("negative amount %d", amount)
	}
	u.hp += amount
	return nil
}

//sqcrab:bind
func Version() string {
	return "1"
}

func unbound() {}
`

var _ = Describe("Scanning sources", func() {
	var root string

	scanRoot := func(cfg Config) (*manifest.Manifest, error) {
		cfg.Root = root
		return Scan(cfg)
	}

	find := func(m *manifest.Manifest, name string) manifest.BindingDeclaration {
		for _, decl := range m.Declarations {
			if decl.ScriptName == name {
				return decl
			}
		}
		Fail("no declaration named " + name)
		return manifest.BindingDeclaration{}
	}

	When("the sources are valid", func() {
		BeforeEach(func() {
			root = writeModule(map[string]string{"unit.go": unitSource})
		})

		It("describes the package", func() {
			m, err := scanRoot(Config{})
			Expect(err).To(BeNil())
			Expect(m.Module).To(Equal("example.com/game"))
			Expect(m.Package).To(Equal("example.com/game"))
			Expect(m.PackageName).To(Equal("game"))
			Expect(m.LocalTypes).To(Equal([]string{"Unit"}))
			Expect(m.Declarations).To(HaveLen(4))
		})

		It("describes methods", func() {
			m, err := scanRoot(Config{})
			Expect(err).To(BeNil())

			get := find(m, "unit_get_hp")
			Expect(get.Kind).To(Equal(manifest.KindMethod))
			Expect(get.Identifier).To(Equal("GetHP"))
			Expect(get.Domain).To(Equal("Test"))
			Expect(get.PointerLocality).To(BeTrue())
			Expect(get.Receiver).NotTo(BeNil())
			Expect(get.Receiver.Name).To(Equal("u"))
			Expect(get.Receiver.Type.String()).To(Equal("*game.Unit"))
			Expect(get.Receiver.IsMutable).To(BeTrue())
			Expect(get.Parameters).To(BeEmpty())
			Expect(get.Return).To(Equal(manifest.ReturnOne))
			Expect(get.ReturnType.String()).To(Equal("int"))
			Expect(get.Position.File).To(Equal("unit.go"))
			Expect(get.Position.Line).To(Equal(11))

			set := find(m, "unit_set_hp")
			Expect(set.TypeChecking).To(BeTrue())
			Expect(set.PointerLocality).To(BeFalse())
			Expect(set.Parameters).To(HaveLen(1))
			Expect(set.Parameters[0].Name).To(Equal("hp"))
			Expect(set.Return).To(Equal(manifest.ReturnNone))
		})

		It("describes functions", func() {
			m, err := scanRoot(Config{})
			Expect(err).To(BeNil())

			add := find(m, "add_hp")
			Expect(add.Kind).To(Equal(manifest.KindFunction))
			Expect(add.Receiver).To(BeNil())
			Expect(add.Parameters).To(HaveLen(2))
			Expect(add.Parameters[0].IsReference).To(BeTrue())
			Expect(add.Parameters[0].IsMutable).To(BeTrue())
			Expect(add.Parameters[1].IsReference).To(BeFalse())
			Expect(add.Return).To(Equal(manifest.ReturnNone))
			Expect(add.ReturnsError).To(BeTrue())

			version := find(m, "Version")
			Expect(version.Identifier).To(Equal("Version"))
			Expect(version.Domain).To(Equal(manifest.DefaultDomain))
			Expect(version.ReturnType.String()).To(Equal("string"))
		})

		It("overrides the package name", func() {
			m, err := scanRoot(Config{PackageName: "bindings"})
			Expect(err).To(BeNil())
			Expect(m.PackageName).To(Equal("bindings"))
		})

		It("skips excluded files", func() {
			m, err := scanRoot(Config{Exclude: []string{"unit.go"}})
			Expect(err).To(BeNil())
			Expect(m.Declarations).To(BeEmpty())
		})
	})

	It("skips methods of types without the marker", func() {
		root = writeModule(map[string]string{"plain.go": `package game

type Plain struct{}

//sqcrab:bind
func (p *Plain) Touch() {}
`})

		core, logs := observer.New(zap.WarnLevel)
		m, err := scanRoot(Config{Logger: zap.New(core)})
		Expect(err).To(BeNil())
		Expect(m.Declarations).To(BeEmpty())
		Expect(logs.FilterField(zap.String("method", "Touch")).Len()).To(Equal(1))
	})

	It("warns when scanning is slow", func() {
		root = writeModule(map[string]string{"unit.go": unitSource})

		core, logs := observer.New(zap.WarnLevel)
		_, err := scanRoot(Config{Logger: zap.New(core), SlowScan: time.Nanosecond})
		Expect(err).To(BeNil())
		Expect(logs.FilterMessageSnippet("narrower include list").Len()).To(Equal(1))
	})

	It("scans sub packages and honours the include list", func() {
		root = writeModule(map[string]string{
			"game.go": "package game\n",
			"combat/combat.go": `package combat

//sqcrab:bind domain="Combat"
func Strike(power float64) float64 { return power * 2 }
`,
			"hidden/hidden.go": `package hidden

//sqcrab:bind
func Hidden() {}
`,
			"_skipped/skipped.go": `package skipped

//sqcrab:bind
func Skipped() {}
`,
		})

		m, err := scanRoot(Config{})
		Expect(err).To(BeNil())
		Expect(m.Declarations).To(HaveLen(2))

		m, err = scanRoot(Config{Include: []string{"combat/"}})
		Expect(err).To(BeNil())
		Expect(m.Declarations).To(HaveLen(1))
		strike := m.Declarations[0]
		Expect(strike.Package).To(Equal("example.com/game/combat"))
		Expect(strike.PackageName).To(Equal("combat"))
		Expect(strike.Position.File).To(Equal("combat/combat.go"))
	})

	It("resolves imported and composite types", func() {
		root = writeModule(map[string]string{"world.go": `package game

import (
	"time"

	units "github.com/docker/go-units"
)

var _ = units.HumanSize

//sqcrab:bind
func Tick(d time.Duration, names []string, scores map[string]float64, extra any) []int { return nil }
`})

		m, err := scanRoot(Config{})
		Expect(err).To(BeNil())
		tick := m.Declarations[0]
		Expect(tick.Parameters).To(HaveLen(4))
		Expect(tick.Parameters[0].Type).To(Equal(manifest.TypeRef{Kind: manifest.TypeNamed, Name: "Duration", Package: "time"}))
		Expect(tick.Parameters[1].Type.String()).To(Equal("[]string"))
		Expect(tick.Parameters[2].Type.String()).To(Equal("map[string]float64"))
		Expect(tick.Parameters[3].Type.Kind).To(Equal(manifest.TypeInterface))
		Expect(tick.ReturnType.String()).To(Equal("[]int"))
	})

	When("a declaration cannot be bound", func() {
		scanSource := func(src string) error {
			root = writeModule(map[string]string{"bad.go": "package game\n\n" + src})
			_, err := scanRoot(Config{})
			return err
		}

		It("rejects variadic functions", func() {
			err := scanSource("//sqcrab:bind\nfunc Sum(values ...int) int { return 0 }\n")
			Expect(errors.Is(err, ErrUnsupportedSignature)).To(BeTrue())
		})

		It("rejects generic functions", func() {
			err := scanSource("//sqcrab:bind\nfunc Id[T any](v T) T { return v }\n")
			Expect(errors.Is(err, ErrUnsupportedSignature)).To(BeTrue())
		})

		It("rejects several results", func() {
			err := scanSource("//sqcrab:bind\nfunc Pair() (int, int) { return 0, 0 }\n")
			Expect(errors.Is(err, ErrUnsupportedSignature)).To(BeTrue())
		})

		It("rejects function parameters", func() {
			err := scanSource("//sqcrab:bind\nfunc Each(f func()) {}\n")
			Expect(errors.Is(err, ErrUnsupportedSignature)).To(BeTrue())
		})

		It("rejects maps without string keys", func() {
			err := scanSource("//sqcrab:bind\nfunc Lookup(m map[int]string) {}\n")
			Expect(errors.Is(err, ErrUnsupportedSignature)).To(BeTrue())
		})

		It("rejects receivers declared elsewhere", func() {
			root = writeModule(map[string]string{
				"a/a.go": "package a\n\n//sqcrab:hint\ntype A struct{}\n",
				"b/b.go": "package a\n\n//sqcrab:bind\nfunc (x *A) Touch() {}\n",
			})
			_, err := scanRoot(Config{})
			Expect(errors.Is(err, ErrUnresolvableReceiver)).To(BeTrue())
		})

		It("rejects generic receivers", func() {
			err := scanSource("//sqcrab:hint\ntype Box[T any] struct{ v T }\n\n//sqcrab:bind\nfunc (b *Box[T]) Get() {}\n")
			Expect(errors.Is(err, ErrUnresolvableReceiver)).To(BeTrue())
		})

		It("reports malformed directives with their position", func() {
			err := scanSource("//sqcrab:bind colour=\"red\"\nfunc Paint() {}\n")
			var attrErr *AttributeError
			Expect(errors.As(err, &attrErr)).To(BeTrue())
			Expect(filepath.Base(attrErr.Pos.Filename)).To(Equal("bad.go"))
			Expect(attrErr.Pos.Line).To(Equal(3))
			Expect(attrErr.Pos.Column).To(Equal(15))
		})
	})

	It("fails without a module", func() {
		root = GinkgoT().TempDir()
		_, err := scanRoot(Config{})
		Expect(err).To(MatchError(ContainSubstring("go.mod")))
	})
})
