package sqcrab

import (
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

type boolType struct {
	baseType
}

func (bt *boolType) FromWire(vm *VM, lv lua.LValue, rt reflect.Type) (reflect.Value, error) {
	b, ok := lv.(lua.LBool)
	if !ok {
		return reflect.Value{}, mismatch(KindBool, lv)
	}

	out := reflect.New(rt).Elem()
	out.SetBool(bool(b))
	return out, nil
}

func (bt *boolType) ToWire(vm *VM, rv reflect.Value) (lua.LValue, error) {
	return lua.LBool(rv.Bool()), nil
}
