// Package scanner finds the functions and methods marked for binding in a
// source tree and describes them in a manifest.
package scanner

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/mod/modfile"
	"golang.org/x/tools/go/ast/inspector"

	"github.com/sqcrab/sqcrab/generator/manifest"
)

var (
	ErrUnresolvableReceiver = errors.New("unresolvable receiver")
	ErrUnsupportedSignature = errors.New("unsupported signature")
)

// DefaultSlowScan is how long a scan may take before a warning is logged.
const DefaultSlowScan = 100 * time.Millisecond

type Config struct {
	// Root is the directory the generated file is written to. Its package is
	// the output package.
	Root string
	// Include limits the scan to matching files or directories, relative to
	// Root and slash separated.
	Include []string
	// Exclude lists files that are never scanned, like the generated output.
	Exclude []string
	// PackageName overrides the output package name.
	PackageName string
	Logger      *zap.Logger
	SlowScan    time.Duration
}

type localType struct {
	marked   bool
	generic  bool
	isStruct bool
}

type pkg struct {
	dir   string
	path  string
	name  string
	files []*ast.File
	types map[string]*localType
}

type scan struct {
	cfg    Config
	fset   *token.FileSet
	logger *zap.Logger
	module string
	modDir string
	root   string
}

// Scan walks cfg.Root and returns the manifest of every bound declaration.
// Any malformed directive or unsupported declaration aborts the scan.
func Scan(cfg Config) (*manifest.Manifest, error) {
	start := time.Now()

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("could not resolve root: %w", err)
	}

	s := &scan{
		cfg:    cfg,
		fset:   token.NewFileSet(),
		logger: cfg.Logger,
		root:   root,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	s.module, s.modDir, err = findModule(root)
	if err != nil {
		return nil, err
	}

	pkgs, fileCount, err := s.parse()
	if err != nil {
		return nil, err
	}

	rootPath, err := s.importPath(root)
	if err != nil {
		return nil, err
	}

	m := &manifest.Manifest{
		Module:      s.module,
		Package:     rootPath,
		PackageName: filepath.Base(root),
	}

	dirs := make([]string, 0, len(pkgs))
	for dir := range pkgs {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	for _, dir := range dirs {
		p := pkgs[dir]
		if dir == root {
			m.PackageName = p.name
			for name := range p.types {
				m.LocalTypes = append(m.LocalTypes, name)
			}
			sort.Strings(m.LocalTypes)
		}

		decls, err := s.declarations(p)
		if err != nil {
			return nil, err
		}
		m.Declarations = append(m.Declarations, decls...)
	}

	if cfg.PackageName != "" {
		m.PackageName = cfg.PackageName
	}

	slow := cfg.SlowScan
	if slow == 0 {
		slow = DefaultSlowScan
	}
	if elapsed := time.Since(start); elapsed > slow {
		s.logger.Warn("scanning took long, consider a narrower include list",
			zap.Duration("elapsed", elapsed),
			zap.Int("files", fileCount),
		)
	}

	s.logger.Debug("scanned sources",
		zap.Int("files", fileCount),
		zap.Int("declarations", len(m.Declarations)),
	)

	return m, nil
}

func findModule(dir string) (string, string, error) {
	for d := dir; ; d = filepath.Dir(d) {
		data, err := os.ReadFile(filepath.Join(d, "go.mod"))
		if err == nil {
			module := modfile.ModulePath(data)
			if module == "" {
				return "", "", fmt.Errorf("could not read module path from %s", filepath.Join(d, "go.mod"))
			}
			return module, d, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", "", fmt.Errorf("could not read go.mod: %w", err)
		}
		if filepath.Dir(d) == d {
			return "", "", fmt.Errorf("could not find go.mod above %s", dir)
		}
	}
}

func (s *scan) importPath(dir string) (string, error) {
	rel, err := filepath.Rel(s.modDir, dir)
	if err != nil {
		return "", fmt.Errorf("could not resolve import path of %s: %w", dir, err)
	}
	if rel == "." {
		return s.module, nil
	}
	return path.Join(s.module, filepath.ToSlash(rel)), nil
}

func (s *scan) included(rel string) bool {
	for _, ex := range s.cfg.Exclude {
		if rel == ex {
			return false
		}
	}

	if len(s.cfg.Include) == 0 {
		return true
	}

	dir := path.Dir(rel)
	for _, pattern := range s.cfg.Include {
		pattern = strings.TrimSuffix(pattern, "/")
		if ok, _ := path.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := path.Match(pattern, dir); ok {
			return true
		}
		if dir == pattern || strings.HasPrefix(dir, pattern+"/") {
			return true
		}
	}
	return false
}

func (s *scan) parse() (map[string]*pkg, int, error) {
	pkgs := map[string]*pkg{}
	count := 0

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if p != s.root && (name == "testdata" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		if !s.included(filepath.ToSlash(rel)) {
			return nil
		}

		file, err := parser.ParseFile(s.fset, p, nil, parser.ParseComments)
		if err != nil {
			return fmt.Errorf("could not parse %s: %w", rel, err)
		}
		count++

		dir := filepath.Dir(p)
		current, ok := pkgs[dir]
		if !ok {
			importPath, err := s.importPath(dir)
			if err != nil {
				return err
			}
			current = &pkg{dir: dir, path: importPath, name: file.Name.Name, types: map[string]*localType{}}
			pkgs[dir] = current
		}
		current.files = append(current.files, file)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("could not scan %s: %w", s.root, err)
	}

	for _, p := range pkgs {
		collectTypes(p)
	}

	return pkgs, count, nil
}

func hasDirective(groups ...*ast.CommentGroup) bool {
	for _, group := range groups {
		if group == nil {
			continue
		}
		for _, c := range group.List {
			if c.Text == hintDirective || strings.HasPrefix(c.Text, hintDirective+" ") {
				return true
			}
		}
	}
	return false
}

func collectTypes(p *pkg) {
	ins := inspector.New(p.files)
	ins.Preorder([]ast.Node{(*ast.GenDecl)(nil)}, func(n ast.Node) {
		decl := n.(*ast.GenDecl)
		if decl.Tok != token.TYPE {
			return
		}
		for _, spec := range decl.Specs {
			ts := spec.(*ast.TypeSpec)
			_, isStruct := ts.Type.(*ast.StructType)
			p.types[ts.Name.Name] = &localType{
				marked:   hasDirective(decl.Doc, ts.Doc),
				generic:  ts.TypeParams != nil && len(ts.TypeParams.List) > 0,
				isStruct: isStruct,
			}
		}
	})
}

// bindDirectiveOf returns the attribute text of the bind directive in doc.
func bindDirectiveOf(doc *ast.CommentGroup) (*ast.Comment, string, bool) {
	if doc == nil {
		return nil, "", false
	}
	for _, c := range doc.List {
		if c.Text == bindDirective {
			return c, "", true
		}
		if strings.HasPrefix(c.Text, bindDirective+" ") || strings.HasPrefix(c.Text, bindDirective+"\t") {
			return c, c.Text[len(bindDirective):], true
		}
	}
	return nil, "", false
}

func (s *scan) declarations(p *pkg) ([]manifest.BindingDeclaration, error) {
	var decls []manifest.BindingDeclaration
	var scanErr error

	ins := inspector.New(p.files)
	ins.WithStack([]ast.Node{(*ast.FuncDecl)(nil)}, func(n ast.Node, push bool, stack []ast.Node) bool {
		if !push || scanErr != nil {
			return false
		}

		fn := n.(*ast.FuncDecl)
		comment, text, ok := bindDirectiveOf(fn.Doc)
		if !ok {
			return false
		}

		at := s.fset.Position(comment.Slash)
		at.Column += len(bindDirective)
		at.Offset += len(bindDirective)
		attrs, err := ParseAttributes(text, at)
		if err != nil {
			scanErr = err
			return false
		}

		file := stack[0].(*ast.File)
		decl, skip, err := s.declaration(p, file, fn, attrs)
		if err != nil {
			scanErr = err
			return false
		}
		if !skip {
			decls = append(decls, decl)
		}
		return false
	})

	return decls, scanErr
}

func (s *scan) position(pos token.Pos) manifest.Position {
	p := s.fset.Position(pos)
	file := p.Filename
	if rel, err := filepath.Rel(s.root, file); err == nil {
		file = filepath.ToSlash(rel)
	}
	return manifest.Position{File: file, Line: p.Line, Column: p.Column}
}

func (s *scan) declaration(p *pkg, file *ast.File, fn *ast.FuncDecl, attrs Attributes) (manifest.BindingDeclaration, bool, error) {
	pos := s.position(fn.Pos())
	decl := manifest.BindingDeclaration{
		Kind:            manifest.KindFunction,
		Identifier:      fn.Name.Name,
		ScriptName:      attrs.Name,
		Domain:          attrs.Domain,
		TypeChecking:    attrs.TypeChecking,
		PointerLocality: attrs.LocalPointer,
		Package:         p.path,
		PackageName:     p.name,
		Return:          manifest.ReturnNone,
		Position:        pos,
	}
	if decl.ScriptName == "" {
		decl.ScriptName = decl.Identifier
	}
	if decl.Domain == "" {
		decl.Domain = manifest.DefaultDomain
	}

	if fn.Type.TypeParams != nil && len(fn.Type.TypeParams.List) > 0 {
		return decl, false, fmt.Errorf("%s: %w: %s is generic", pos, ErrUnsupportedSignature, fn.Name.Name)
	}

	resolver := &typeResolver{pkg: p, imports: importsOf(file)}

	if fn.Recv != nil && len(fn.Recv.List) > 0 {
		recv, marked, err := s.receiver(p, fn.Recv.List[0])
		if err != nil {
			return decl, false, fmt.Errorf("%s: %s: %w", pos, fn.Name.Name, err)
		}
		if !marked {
			s.logger.Warn("skipping bound method of a type without the sqcrab:hint marker",
				zap.String("method", fn.Name.Name),
				zap.String("type", recv.Type.String()),
				zap.Stringer("position", pos),
			)
			return decl, true, nil
		}
		decl.Kind = manifest.KindMethod
		decl.Receiver = recv
	}

	index := 0
	for _, field := range fn.Type.Params.List {
		if _, ok := field.Type.(*ast.Ellipsis); ok {
			return decl, false, fmt.Errorf("%s: %w: %s is variadic", pos, ErrUnsupportedSignature, fn.Name.Name)
		}

		t, err := resolver.resolve(field.Type)
		if err != nil {
			return decl, false, fmt.Errorf("%s: %s: %w", pos, fn.Name.Name, err)
		}

		names := field.Names
		if len(names) == 0 {
			names = []*ast.Ident{nil}
		}
		for _, name := range names {
			paramName := fmt.Sprintf("arg%d", index)
			if name != nil && name.Name != "_" {
				paramName = name.Name
			}
			decl.Parameters = append(decl.Parameters, manifest.Parameter{
				Role:        manifest.RoleValue,
				Name:        paramName,
				Type:        t,
				IsReference: resolver.isReference(t),
				IsMutable:   t.Kind == manifest.TypePointer,
			})
			index++
		}
	}

	var results []manifest.TypeRef
	if fn.Type.Results != nil {
		for _, field := range fn.Type.Results.List {
			n := len(field.Names)
			if n == 0 {
				n = 1
			}
			if ident, ok := field.Type.(*ast.Ident); ok && ident.Name == "error" {
				for i := 0; i < n; i++ {
					results = append(results, manifest.TypeRef{Kind: manifest.TypeBasic, Name: "error"})
				}
				continue
			}
			t, err := resolver.resolve(field.Type)
			if err != nil {
				return decl, false, fmt.Errorf("%s: %s: %w", pos, fn.Name.Name, err)
			}
			for i := 0; i < n; i++ {
				results = append(results, t)
			}
		}
	}

	if len(results) > 0 && isError(results[len(results)-1]) {
		decl.ReturnsError = true
		results = results[:len(results)-1]
	}
	switch len(results) {
	case 0:
	case 1:
		if isError(results[0]) {
			return decl, false, fmt.Errorf("%s: %w: %s returns more than one error", pos, ErrUnsupportedSignature, fn.Name.Name)
		}
		decl.Return = manifest.ReturnOne
		decl.ReturnType = &results[0]
	default:
		return decl, false, fmt.Errorf("%s: %w: %s returns more than one value", pos, ErrUnsupportedSignature, fn.Name.Name)
	}

	return decl, false, nil
}

func isError(t manifest.TypeRef) bool {
	return t.Kind == manifest.TypeBasic && t.Name == "error"
}

func (s *scan) receiver(p *pkg, field *ast.Field) (*manifest.Parameter, bool, error) {
	expr := field.Type
	pointer := false
	if star, ok := expr.(*ast.StarExpr); ok {
		pointer = true
		expr = star.X
	}

	ident, ok := expr.(*ast.Ident)
	if !ok {
		return nil, false, fmt.Errorf("%w: receiver is generic or not a named type", ErrUnresolvableReceiver)
	}

	local, ok := p.types[ident.Name]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s is not declared in package %s", ErrUnresolvableReceiver, ident.Name, p.name)
	}
	if local.generic {
		return nil, false, fmt.Errorf("%w: %s is generic", ErrUnresolvableReceiver, ident.Name)
	}

	name := "this"
	if len(field.Names) > 0 && field.Names[0].Name != "_" {
		name = field.Names[0].Name
	}

	t := manifest.TypeRef{Kind: manifest.TypeNamed, Name: ident.Name, Package: p.path}
	if pointer {
		t = manifest.TypeRef{Kind: manifest.TypePointer, Elem: &t}
	}

	return &manifest.Parameter{
		Role:        manifest.RoleReceiver,
		Name:        name,
		Type:        t,
		IsReference: true,
		IsMutable:   pointer,
	}, local.marked, nil
}
