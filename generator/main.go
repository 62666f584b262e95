package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sqcrab/sqcrab/generator/config"
	"github.com/sqcrab/sqcrab/generator/generator"
	"github.com/sqcrab/sqcrab/generator/manifest"
)

var (
	fileName     string
	root         *string
	configFile   *string
	output       *string
	manifestFile *string
	fromManifest *string
	watch        *bool
	verbose      *bool
)

func init() {
	fileName = os.Getenv("GOFILE")
	root = flag.String("root", ".", "the directory of the package to generate bindings for")
	configFile = flag.String("config", "", "the project configuration, defaults to sqcrab.toml in the root")
	output = flag.String("o", "", "the output file, overrides the configuration")
	manifestFile = flag.String("manifest", "", "also write the scanned manifest to this file")
	fromManifest = flag.String("from-manifest", "", "generate from a manifest instead of scanning")
	watch = flag.Bool("watch", false, "regenerate whenever a source file changes")
	verbose = flag.Bool("v", false, "enable verbose logging")
}

func Usage() {
	fmt.Fprintf(os.Stderr, "Usage of sqcrab-gen:\n")
	fmt.Fprintf(os.Stderr, "  //go:generate go run github.com/sqcrab/sqcrab/generator [flags]\n\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = Usage
	flag.Parse()

	logConfig := zap.NewDevelopmentConfig()
	logConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if *verbose {
		logConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := logConfig.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dir, err := filepath.Abs(*root)
	if err != nil {
		logger.Fatal("could not resolve root", zap.Error(err))
	}

	cfg, err := loadConfig(dir)
	if err != nil {
		logger.Fatal("could not load configuration", zap.Error(err))
	}

	if fileName != "" {
		logger.Debug("invoked by go generate", zap.String("file", fileName))
	}

	opts := generator.Options{Dir: dir, Config: cfg, Logger: logger}

	if err := run(opts); err != nil {
		logger.Fatal("could not generate bindings", zap.Error(err))
	}

	if *watch {
		if err := watchSources(opts); err != nil {
			logger.Fatal("could not watch sources", zap.Error(err))
		}
	}
}

func loadConfig(dir string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.Load(*configFile)
	} else {
		cfg, err = config.LoadDir(dir)
	}
	if err != nil {
		return nil, err
	}

	if *output != "" {
		cfg.Output = *output
	}
	if *manifestFile != "" {
		cfg.Manifest = *manifestFile
	}
	return cfg, nil
}

func run(opts generator.Options) error {
	var result *generator.Result
	var err error
	if *fromManifest != "" {
		m, readErr := manifest.Read(*fromManifest)
		if readErr != nil {
			return readErr
		}
		result, err = generator.GenerateFromManifest(m, opts)
	} else {
		result, err = generator.Generate(opts)
	}
	if err != nil {
		return err
	}

	opts.Logger.Info("wrote output",
		zap.String("file", result.File),
		zap.String("size", units.HumanSize(float64(result.Size))),
	)
	return nil
}

// watchSources regenerates on every change below opts.Dir until the process
// is stopped. Bursts of events are flushed so one save regenerates once.
func watchSources(opts generator.Options) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	outputFile := filepath.Join(opts.Dir, opts.Config.OutputFile())
	relevant := func(event fsnotify.Event) bool {
		return strings.HasSuffix(event.Name, ".go") && event.Name != outputFile
	}

	addDirs := func() error {
		return filepath.WalkDir(opts.Dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			name := d.Name()
			if p != opts.Dir && (name == "testdata" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return watcher.Add(p)
		})
	}
	if err := addDirs(); err != nil {
		return err
	}

	opts.Logger.Info("watching sources", zap.String("dir", opts.Dir))

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event) {
				continue
			}

		flush:
			for {
				time.Sleep(10 * time.Millisecond)
				select {
				case <-watcher.Events:
				default:
					break flush
				}
			}

			opts.Logger.Debug("source changed", zap.String("file", event.Name))
			if err := run(opts); err != nil {
				opts.Logger.Error("could not generate bindings", zap.Error(err))
			}

			// Editors save by renaming, new directories need a watch too.
			if err := addDirs(); err != nil {
				opts.Logger.Warn("could not rewatch sources", zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			opts.Logger.Warn("watch error", zap.Error(err))
		}
	}
}
