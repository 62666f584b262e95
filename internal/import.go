package sqcrab

import (
	"context"
	"errors"
	"fmt"
	"os"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// ImportText compiles src and runs it once, so its top level definitions
// become globals. An empty sourceName uses SourceName.
func (vm *VM) ImportText(ctx context.Context, src string, sourceName string) error {
	if err := vm.enter(); err != nil {
		return err
	}

	if sourceName == "" {
		sourceName = vm.SourceName()
	}

	proto, err := compileSource(src, sourceName)
	if err != nil {
		var cerr *CompileError
		if errors.As(err, &cerr) {
			vm.callbacks.compileError(cerr)
		}
		vm.logger.Debug("could not compile script", zap.String("source", sourceName), zap.Error(err))
		return err
	}

	return vm.run(ctx, sourceName, proto)
}

// ImportBytes runs a unit produced by Precompile.
func (vm *VM) ImportBytes(ctx context.Context, data []byte) error {
	if err := vm.enter(); err != nil {
		return err
	}

	unit, err := unpackUnit(data)
	if err != nil {
		return err
	}

	name := unit.Name
	if name == "" {
		name = vm.SourceName()
	}

	return vm.ImportText(ctx, unit.Source, name)
}

// ImportFile imports a script or a precompiled unit from disk.
func (vm *VM) ImportFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read %s: %w", path, err)
	}

	if IsPrecompiled(data) {
		return vm.ImportBytes(ctx, data)
	}

	return vm.ImportText(ctx, string(data), path)
}

func (vm *VM) run(ctx context.Context, sourceName string, proto *lua.FunctionProto) error {
	return vm.protect(ctx, func() error {
		L := vm.state
		L.Push(L.NewFunctionFromProto(proto))
		if err := L.PCall(0, 0, nil); err != nil {
			return vm.callFailure(sourceName, err)
		}
		return nil
	})
}
