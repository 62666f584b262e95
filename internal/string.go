package sqcrab

import (
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

type stringType struct {
	baseType
}

func (st *stringType) FromWire(vm *VM, lv lua.LValue, rt reflect.Type) (reflect.Value, error) {
	s, ok := lv.(lua.LString)
	if !ok {
		return reflect.Value{}, mismatch(KindString, lv)
	}

	out := reflect.New(rt).Elem()
	out.SetString(string(s))
	return out, nil
}

func (st *stringType) ToWire(vm *VM, rv reflect.Value) (lua.LValue, error) {
	return lua.LString(rv.String()), nil
}

// bytesType carries byte slices as engine strings, byte for byte.
type bytesType struct {
	baseType
}

func (bt *bytesType) FromWire(vm *VM, lv lua.LValue, rt reflect.Type) (reflect.Value, error) {
	s, ok := lv.(lua.LString)
	if !ok {
		return reflect.Value{}, mismatch(KindString, lv)
	}

	out := reflect.New(rt).Elem()
	out.SetBytes([]byte(s))
	return out, nil
}

func (bt *bytesType) ToWire(vm *VM, rv reflect.Value) (lua.LValue, error) {
	if rv.IsNil() {
		return lua.LNil, nil
	}
	return lua.LString(rv.Bytes()), nil
}
