package scanner

import (
	"fmt"
	goscanner "go/scanner"
	"go/token"
	"strconv"
)

const (
	bindDirective = "//sqcrab:bind"
	hintDirective = "//sqcrab:hint"
)

// Attributes are the settings of one bind directive.
type Attributes struct {
	Name         string
	Domain       string
	TypeChecking bool
	LocalPointer bool
}

// AttributeError reports a malformed bind directive.
type AttributeError struct {
	Pos token.Position
	Key string
	Msg string
}

func (e *AttributeError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: invalid sqcrab:bind attribute %q: %s", e.Pos, e.Key, e.Msg)
	}
	return fmt.Sprintf("%s: invalid sqcrab:bind attributes: %s", e.Pos, e.Msg)
}

type attributeKind int

const (
	stringAttribute attributeKind = iota
	boolAttribute
)

var attributeKinds = map[string]attributeKind{
	"name":          stringAttribute,
	"domain":        stringAttribute,
	"type_checking": boolAttribute,
	"local_pointer": boolAttribute,
}

// ParseAttributes parses the text after the directive: key=value pairs
// separated by spaces or commas. at is the position of the first byte of src.
func ParseAttributes(src string, at token.Position) (Attributes, error) {
	var attrs Attributes

	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))
	var scanErr *AttributeError
	var s goscanner.Scanner
	s.Init(file, []byte(src), func(pos token.Position, msg string) {
		if scanErr == nil {
			scanErr = &AttributeError{Pos: shift(at, pos), Msg: msg}
		}
	}, 0)

	seen := map[string]bool{}
	next := func() (token.Position, token.Token, string) {
		pos, tok, lit := s.Scan()
		// Automatic semicolons are inserted at the end of the text.
		for tok == token.SEMICOLON && lit == "\n" {
			pos, tok, lit = s.Scan()
		}
		return shift(at, fset.Position(pos)), tok, lit
	}

	for {
		pos, tok, lit := next()
		if scanErr != nil {
			return Attributes{}, scanErr
		}
		if tok == token.EOF {
			break
		}
		if tok == token.COMMA {
			continue
		}
		if tok != token.IDENT {
			return Attributes{}, &AttributeError{Pos: pos, Msg: fmt.Sprintf("expected a key, found %s", describe(tok, lit))}
		}

		key := lit
		kind, ok := attributeKinds[key]
		if !ok {
			return Attributes{}, &AttributeError{Pos: pos, Key: key, Msg: "unknown key"}
		}
		if seen[key] {
			return Attributes{}, &AttributeError{Pos: pos, Key: key, Msg: "set more than once"}
		}
		seen[key] = true

		if _, tok, lit := next(); tok != token.ASSIGN {
			return Attributes{}, &AttributeError{Pos: pos, Key: key, Msg: fmt.Sprintf("expected =, found %s", describe(tok, lit))}
		}

		vpos, tok, lit := next()
		if scanErr != nil {
			return Attributes{}, scanErr
		}

		switch kind {
		case stringAttribute:
			if tok != token.STRING {
				return Attributes{}, &AttributeError{Pos: vpos, Key: key, Msg: fmt.Sprintf("expected a string, found %s", describe(tok, lit))}
			}
			value, err := strconv.Unquote(lit)
			if err != nil {
				return Attributes{}, &AttributeError{Pos: vpos, Key: key, Msg: err.Error()}
			}
			if value == "" {
				return Attributes{}, &AttributeError{Pos: vpos, Key: key, Msg: "must not be empty"}
			}
			if key == "name" {
				attrs.Name = value
			} else {
				attrs.Domain = value
			}
		case boolAttribute:
			if tok != token.IDENT || (lit != "true" && lit != "false") {
				return Attributes{}, &AttributeError{Pos: vpos, Key: key, Msg: fmt.Sprintf("expected true or false, found %s", describe(tok, lit))}
			}
			if key == "type_checking" {
				attrs.TypeChecking = lit == "true"
			} else {
				attrs.LocalPointer = lit == "true"
			}
		}
	}

	return attrs, nil
}

func shift(at token.Position, pos token.Position) token.Position {
	return token.Position{
		Filename: at.Filename,
		Offset:   at.Offset + pos.Offset,
		Line:     at.Line,
		Column:   at.Column + pos.Column - 1,
	}
}

func describe(tok token.Token, lit string) string {
	if lit != "" {
		return fmt.Sprintf("%s %s", tok, lit)
	}
	return tok.String()
}
