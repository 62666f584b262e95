package config

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sqcrab/sqcrab"
)

var _ = Describe("Loading sqcrab.toml", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	write := func(content string) {
		Expect(os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644)).To(Succeed())
	}

	It("returns the defaults without a file", func() {
		cfg, err := LoadDir(dir)
		Expect(err).To(BeNil())
		Expect(cfg).To(Equal(Default()))
		Expect(cfg.OutputFile()).To(Equal("sqcrab_domains.go"))
		Expect(cfg.VM.StackSize).To(Equal(sqcrab.DefaultStackSize))
	})

	It("reads every section", func() {
		write(`
output = "bindings.go"
include = ["units/", "combat/*.go"]
package = "game"
manifest = "sqcrab.manifest.toml"

[vm]
stack_size = 256
debug_info = true
`)

		cfg, err := LoadDir(dir)
		Expect(err).To(BeNil())
		Expect(cfg.OutputFile()).To(Equal("bindings.go"))
		Expect(cfg.Include).To(Equal([]string{"units/", "combat/*.go"}))
		Expect(cfg.Package).To(Equal("game"))
		Expect(cfg.Manifest).To(Equal("sqcrab.manifest.toml"))
		Expect(cfg.VM.StackSize).To(Equal(256))
		Expect(cfg.VM.DebugInfo).To(BeTrue())
		Expect(cfg.VM.NotifyAllExceptions).To(BeFalse())
	})

	It("keeps defaults for keys that are not set", func() {
		write(`include = ["units/"]`)

		cfg, err := LoadDir(dir)
		Expect(err).To(BeNil())
		Expect(cfg.Output).To(Equal(DefaultOutput))
		Expect(cfg.VM).To(Equal(sqcrab.DefaultConfig()))
	})

	It("rejects unknown keys", func() {
		write("[vm]\nheap_size = 12\n")

		_, err := LoadDir(dir)
		Expect(err).To(MatchError(ContainSubstring("vm.heap_size")))
	})

	It("rejects a stack size that is not positive", func() {
		write("[vm]\nstack_size = 0\n")

		_, err := LoadDir(dir)
		Expect(err).To(MatchError(ContainSubstring("stack_size")))
	})

	It("reports malformed files", func() {
		write("output = \n")

		_, err := LoadDir(dir)
		Expect(err).NotTo(BeNil())
	})
})
