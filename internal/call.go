package sqcrab

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Call invokes the global script function name with args and returns its
// first result converted to its natural Go type.
func (vm *VM) Call(ctx context.Context, name string, args ...any) (any, error) {
	var result any
	err := vm.call(ctx, name, args, func() error {
		var err error
		result, err = Get[any](vm, 1)
		return err
	})

	return result, err
}

// CallAs is Call with the result converted to T.
func CallAs[T any](ctx context.Context, vm *VM, name string, args ...any) (T, error) {
	var result T
	err := vm.call(ctx, name, args, func() error {
		var err error
		result, err = Get[T](vm, 1)
		return err
	})

	return result, err
}

func (vm *VM) call(ctx context.Context, name string, args []any, read func() error) error {
	if err := vm.enter(); err != nil {
		return err
	}

	fn := vm.state.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}

	source, line := "", -1
	if lf, ok := fn.(*lua.LFunction); ok && lf.Proto != nil {
		source, line = lf.Proto.SourceName, lf.Proto.LineDefined
	}

	return vm.protect(ctx, func() error {
		L := vm.state
		L.Push(fn)
		for i := range args {
			if err := Push(vm, args[i]); err != nil {
				return fmt.Errorf("could not push argument %d of %s: %w", i, name, err)
			}
		}

		vm.callbacks.event(vm, EventCall, source, line, name)
		if err := L.PCall(len(args), 1, nil); err != nil {
			return vm.callFailure(name, err)
		}
		vm.callbacks.event(vm, EventReturn, source, line, name)

		return read()
	})
}

// callFailure turns an engine error into a CallError. Errors raised by
// bound functions are unwrapped back to the Go error they carried.
func (vm *VM) callFailure(function string, err error) error {
	callErr := &CallError{
		Function: function,
		Err:      err,
	}

	if apiErr, ok := err.(*lua.ApiError); ok {
		if vm.config.DebugInfo {
			callErr.Traceback = apiErr.StackTrace
		}
		if ud, ok := apiErr.Object.(*lua.LUserData); ok {
			if adapterErr, ok := ud.Value.(*AdapterError); ok {
				callErr.Err = adapterErr
			}
		}
	}

	vm.callbacks.reportError(callErr.Error())
	vm.callbacks.runtimeError(vm, callErr)
	vm.logger.Debug("script call failed", zap.String("function", function), zap.Error(callErr.Err))

	return callErr
}
