// Package generator turns a manifest of bound declarations into the Go file
// that registers them with a VM.
package generator

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/sqcrab/sqcrab/generator/config"
	"github.com/sqcrab/sqcrab/generator/manifest"
	"github.com/sqcrab/sqcrab/generator/scanner"
)

type Options struct {
	// Dir is the directory of the output package.
	Dir    string
	Config *config.Config
	Logger *zap.Logger
}

type Result struct {
	File         string
	Manifest     *manifest.Manifest
	Domains      int
	Declarations int
	Size         int
}

func (o Options) withDefaults() Options {
	if o.Dir == "" {
		o.Dir = "."
	}
	if o.Config == nil {
		o.Config = config.Default()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Generate scans opts.Dir and writes the output file next to the sources.
// Nothing is written when the scan fails.
func Generate(opts Options) (*Result, error) {
	opts = opts.withDefaults()

	m, err := scanner.Scan(scanner.Config{
		Root:        opts.Dir,
		Include:     opts.Config.Include,
		Exclude:     []string{filepath.ToSlash(opts.Config.OutputFile())},
		PackageName: opts.Config.Package,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not scan %s: %w", opts.Dir, err)
	}

	if opts.Config.Manifest != "" {
		file := opts.Config.Manifest
		if !filepath.IsAbs(file) {
			file = filepath.Join(opts.Dir, file)
		}
		if err := m.Write(file); err != nil {
			return nil, err
		}
		opts.Logger.Debug("wrote manifest", zap.String("file", file))
	}

	return GenerateFromManifest(m, opts)
}

// GenerateFromManifest writes the output file for a manifest that was
// scanned earlier.
func GenerateFromManifest(m *manifest.Manifest, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	domains, err := m.Domains()
	if err != nil {
		return nil, err
	}

	source, err := Emit(m)
	if err != nil {
		return nil, err
	}

	file := filepath.Join(opts.Dir, opts.Config.OutputFile())
	if err := os.WriteFile(file, source, 0o644); err != nil {
		return nil, fmt.Errorf("could not write %s: %w", file, err)
	}

	result := &Result{
		File:         file,
		Manifest:     m,
		Domains:      len(domains),
		Declarations: len(m.Declarations),
		Size:         len(source),
	}

	opts.Logger.Info("generated bindings",
		zap.String("file", file),
		zap.Int("domains", result.Domains),
		zap.Int("declarations", result.Declarations),
	)

	return result, nil
}
