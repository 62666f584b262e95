package sqcrab

import (
	"fmt"
	"reflect"

	lua "github.com/yuin/gopher-lua"
)

type sliceType struct {
	baseType
	elem wireType
}

func (st *sliceType) FromWire(vm *VM, lv lua.LValue, rt reflect.Type) (reflect.Value, error) {
	tbl, ok := lv.(*lua.LTable)
	if !ok {
		return reflect.Value{}, mismatch(KindArray, lv)
	}
	release, err := vm.visit(tbl)
	if err != nil {
		return reflect.Value{}, err
	}
	defer release()

	n := tbl.Len()
	out := reflect.MakeSlice(rt, n, n)
	for i := 0; i < n; i++ {
		elem, err := st.elem.FromWire(vm, tbl.RawGetInt(i+1), rt.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("could not convert element %d: %w", i, err)
		}
		out.Index(i).Set(elem)
	}

	return out, nil
}

func (st *sliceType) ToWire(vm *VM, rv reflect.Value) (lua.LValue, error) {
	if rv.IsNil() {
		return lua.LNil, nil
	}
	if rv.Len() > 0 {
		release, err := vm.visit(hostTable{kind: reflect.Slice, ptr: rv.Pointer()})
		if err != nil {
			return nil, err
		}
		defer release()
	}

	tbl := vm.frame.CreateTable(rv.Len(), 0)
	for i := 0; i < rv.Len(); i++ {
		elem, err := st.elem.ToWire(vm, rv.Index(i))
		if err != nil {
			return nil, fmt.Errorf("could not convert element %d: %w", i, err)
		}
		tbl.RawSetInt(i+1, elem)
	}

	return tbl, nil
}
