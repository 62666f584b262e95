package sqcrab

import (
	"math"

	lua "github.com/yuin/gopher-lua"
)

// Kind is the type tag of a value on the VM stack.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNull
	KindBool
	KindInteger
	KindFloat
	KindString
	KindReference
	KindTable
	KindArray
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindReference:
		return "reference"
	case KindTable:
		return "table"
	case KindArray:
		return "array"
	case KindFunction:
		return "function"
	}
	return "unknown"
}

// KindOf classifies an engine value. Numbers without a fractional part are
// integers, tables whose keys are exactly 1..n are arrays.
func KindOf(lv lua.LValue) Kind {
	switch v := lv.(type) {
	case *lua.LNilType:
		return KindNull
	case lua.LBool:
		return KindBool
	case lua.LNumber:
		f := float64(v)
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return KindInteger
		}
		return KindFloat
	case lua.LString:
		return KindString
	case *lua.LUserData:
		if _, ok := v.Value.(*refHandle); ok {
			return KindReference
		}
		return KindUnknown
	case *lua.LTable:
		if isArrayTable(v) {
			return KindArray
		}
		return KindTable
	case *lua.LFunction:
		return KindFunction
	}
	return KindUnknown
}

func isArrayTable(tbl *lua.LTable) bool {
	n := tbl.Len()
	if n == 0 {
		return false
	}
	count := 0
	tbl.ForEach(func(lua.LValue, lua.LValue) {
		count++
	})
	return count == n
}

func mismatch(expected Kind, lv lua.LValue) *TypeMismatchError {
	return &TypeMismatchError{
		Expected: expected,
		Actual:   KindOf(lv),
	}
}
