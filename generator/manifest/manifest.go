// Package manifest holds the declarations found by the scanner. It is the
// boundary between scanning sources and emitting code, and can be stored on
// disk as TOML so both passes run on their own.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/btree"
)

var ErrDuplicateBinding = errors.New("duplicate binding")

const DefaultDomain = "Default"

type Kind string

const (
	KindFunction Kind = "function"
	KindMethod   Kind = "method"
)

type Role string

const (
	RoleReceiver Role = "receiver"
	RoleValue    Role = "value"
)

type TypeKind string

const (
	TypeBasic     TypeKind = "basic"
	TypeNamed     TypeKind = "named"
	TypePointer   TypeKind = "pointer"
	TypeSlice     TypeKind = "slice"
	TypeMap       TypeKind = "map"
	TypeInterface TypeKind = "interface"
)

// TypeRef describes a Go type well enough to write it out again.
type TypeRef struct {
	Kind    TypeKind `toml:"kind"`
	Name    string   `toml:"name,omitempty"`
	Package string   `toml:"package,omitempty"`
	Elem    *TypeRef `toml:"elem,omitempty"`
	Key     *TypeRef `toml:"key,omitempty"`
}

func (t TypeRef) String() string {
	switch t.Kind {
	case TypeNamed:
		if t.Package != "" {
			return path.Base(t.Package) + "." + t.Name
		}
		return t.Name
	case TypePointer:
		return "*" + t.Elem.String()
	case TypeSlice:
		return "[]" + t.Elem.String()
	case TypeMap:
		return "map[" + t.Key.String() + "]" + t.Elem.String()
	case TypeInterface:
		return "any"
	}
	return t.Name
}

type Parameter struct {
	Role        Role    `toml:"role"`
	Name        string  `toml:"name"`
	Type        TypeRef `toml:"type"`
	IsReference bool    `toml:"is_reference"`
	IsMutable   bool    `toml:"is_mutable"`
}

type ReturnShape string

const (
	ReturnNone ReturnShape = "none"
	ReturnOne  ReturnShape = "one"
)

type Position struct {
	File   string `toml:"file"`
	Line   int    `toml:"line"`
	Column int    `toml:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// BindingDeclaration is one function or method exposed to scripts.
type BindingDeclaration struct {
	Kind            Kind        `toml:"kind"`
	Identifier      string      `toml:"identifier"`
	ScriptName      string      `toml:"script_name"`
	Domain          string      `toml:"domain"`
	TypeChecking    bool        `toml:"type_checking"`
	PointerLocality bool        `toml:"pointer_locality"`
	Package         string      `toml:"package"`
	PackageName     string      `toml:"package_name"`
	Receiver        *Parameter  `toml:"receiver,omitempty"`
	Parameters      []Parameter `toml:"parameters"`
	Return          ReturnShape `toml:"return"`
	ReturnType      *TypeRef    `toml:"return_type,omitempty"`
	ReturnsError    bool        `toml:"returns_error"`
	Position        Position    `toml:"position"`
}

// Name is the script visible name.
func (d BindingDeclaration) Name() string {
	if d.ScriptName != "" {
		return d.ScriptName
	}
	return d.Identifier
}

func (d BindingDeclaration) DomainName() string {
	if d.Domain != "" {
		return d.Domain
	}
	return DefaultDomain
}

func (d BindingDeclaration) Validate() error {
	if d.Identifier == "" {
		return fmt.Errorf("%s: declaration without identifier", d.Position)
	}
	switch d.Kind {
	case KindFunction:
		if d.Receiver != nil {
			return fmt.Errorf("%s: function %s has a receiver", d.Position, d.Identifier)
		}
	case KindMethod:
		if d.Receiver == nil {
			return fmt.Errorf("%s: method %s has no receiver", d.Position, d.Identifier)
		}
	default:
		return fmt.Errorf("%s: unknown declaration kind %q", d.Position, d.Kind)
	}
	if d.Return == ReturnOne && d.ReturnType == nil {
		return fmt.Errorf("%s: %s returns a value of unknown type", d.Position, d.Identifier)
	}
	return nil
}

// Manifest is the result of one scan.
type Manifest struct {
	Module       string               `toml:"module"`
	Package      string               `toml:"package"`
	PackageName  string               `toml:"package_name"`
	LocalTypes   []string             `toml:"local_types"`
	Declarations []BindingDeclaration `toml:"declaration"`
}

func (m *Manifest) IsLocalType(name string) bool {
	for _, t := range m.LocalTypes {
		if t == name {
			return true
		}
	}
	return false
}

// Domain is the set of declarations registered together.
type Domain struct {
	Name         string
	Declarations []BindingDeclaration
}

type domainItem struct {
	domain string
	name   string
	decl   BindingDeclaration
}

func lessDomainItem(a, b domainItem) bool {
	if a.domain != b.domain {
		return a.domain < b.domain
	}
	return a.name < b.name
}

// Domains groups the declarations by domain, ordered by domain and script
// name. Two declarations with the same script name in one domain fail with
// ErrDuplicateBinding.
func (m *Manifest) Domains() ([]Domain, error) {
	tree := btree.NewG[domainItem](8, lessDomainItem)
	for _, decl := range m.Declarations {
		if err := decl.Validate(); err != nil {
			return nil, err
		}

		item := domainItem{domain: decl.DomainName(), name: decl.Name(), decl: decl}
		if prev, ok := tree.ReplaceOrInsert(item); ok {
			return nil, fmt.Errorf("%w: %s in domain %s is declared at %s and %s", ErrDuplicateBinding, item.name, item.domain, prev.decl.Position, decl.Position)
		}
	}

	var domains []Domain
	tree.Ascend(func(item domainItem) bool {
		if len(domains) == 0 || domains[len(domains)-1].Name != item.domain {
			domains = append(domains, Domain{Name: item.domain})
		}
		last := &domains[len(domains)-1]
		last.Declarations = append(last.Declarations, item.decl)
		return true
	})

	return domains, nil
}

func Decode(r io.Reader) (*Manifest, error) {
	m := &Manifest{}
	md, err := toml.NewDecoder(r).Decode(m)
	if err != nil {
		return nil, fmt.Errorf("could not decode manifest: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("could not decode manifest: unknown keys %s", strings.Join(keys, ", "))
	}

	return m, nil
}

func (m *Manifest) Encode(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(m); err != nil {
		return fmt.Errorf("could not encode manifest: %w", err)
	}
	return nil
}

func Read(file string) (*Manifest, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("could not open manifest: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

func (m *Manifest) Write(file string) error {
	f, err := os.Create(file)
	if err != nil {
		return fmt.Errorf("could not create manifest: %w", err)
	}

	if err := m.Encode(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
