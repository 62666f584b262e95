package sqcrab

import (
	"fmt"
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

// mapType converts string keyed maps to and from engine tables.
type mapType struct {
	baseType
	elem wireType
}

func (mt *mapType) FromWire(vm *VM, lv lua.LValue, rt reflect.Type) (reflect.Value, error) {
	tbl, ok := lv.(*lua.LTable)
	if !ok {
		return reflect.Value{}, mismatch(KindTable, lv)
	}
	release, err := vm.visit(tbl)
	if err != nil {
		return reflect.Value{}, err
	}
	defer release()

	out := reflect.MakeMap(rt)
	var convErr error
	tbl.ForEach(func(k lua.LValue, v lua.LValue) {
		if convErr != nil {
			return
		}

		key, ok := k.(lua.LString)
		if !ok {
			convErr = fmt.Errorf("table key %s is not a string", k)
			return
		}

		elem, err := mt.elem.FromWire(vm, v, rt.Elem())
		if err != nil {
			convErr = fmt.Errorf("could not convert field %s: %w", key, err)
			return
		}

		kv := reflect.New(rt.Key()).Elem()
		kv.SetString(string(key))
		out.SetMapIndex(kv, elem)
	})
	if convErr != nil {
		return reflect.Value{}, convErr
	}

	return out, nil
}

func (mt *mapType) ToWire(vm *VM, rv reflect.Value) (lua.LValue, error) {
	if rv.IsNil() {
		return lua.LNil, nil
	}
	release, err := vm.visit(hostTable{kind: reflect.Map, ptr: rv.Pointer()})
	if err != nil {
		return nil, err
	}
	defer release()

	tbl := vm.frame.CreateTable(0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		elem, err := mt.elem.ToWire(vm, iter.Value())
		if err != nil {
			return nil, fmt.Errorf("could not convert field %s: %w", iter.Key().String(), err)
		}
		tbl.RawSetString(iter.Key().String(), elem)
	}

	return tbl, nil
}
