package sqcrab

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Runtime owns the registry shared by the trampoline of every VM it builds.
type Runtime struct {
	registry *Registry
	logger   *zap.Logger
}

func NewRuntime(logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runtime{
		registry: NewRegistry(),
		logger:   logger,
	}
}

var (
	defaultRuntime     *Runtime
	defaultRuntimeOnce sync.Once
)

// DefaultRuntime returns the process wide runtime used by builders that were
// not given one.
func DefaultRuntime() *Runtime {
	defaultRuntimeOnce.Do(func() {
		defaultRuntime = NewRuntime(nil)
	})
	return defaultRuntime
}

// EngineVersion reports the language version implemented by the engine.
func EngineVersion() (major int, minor int) {
	if _, err := fmt.Sscanf(lua.LuaVersion, "Lua %d.%d", &major, &minor); err != nil {
		return 0, 0
	}
	return major, minor
}

func (rt *Runtime) Registry() *Registry {
	return rt.registry
}

func (rt *Runtime) Logger() *zap.Logger {
	return rt.logger
}

func (rt *Runtime) NewBuilder() *Builder {
	return NewBuilder().WithRuntime(rt)
}

func (rt *Runtime) Attach(ctx context.Context) context.Context {
	return context.WithValue(ctx, RuntimeKey{}, rt)
}

// RuntimeKey Use this key to add a runtime to your context:
// ctx = context.WithValue(ctx, sqcrab.RuntimeKey{}, runtime)
type RuntimeKey struct{}

func GetRuntimeFromContext(ctx context.Context) (*Runtime, error) {
	raw := ctx.Value(RuntimeKey{})
	if raw == nil {
		return nil, fmt.Errorf("sqcrab runtime not found in context")
	}

	value, ok := raw.(*Runtime)
	if !ok {
		return nil, fmt.Errorf("context value %v not of type %T", raw, value)
	}

	return value, nil
}

func MustGetRuntimeFromContext(ctx context.Context) *Runtime {
	rt, err := GetRuntimeFromContext(ctx)
	if err != nil {
		panic(fmt.Errorf("could not get sqcrab runtime from context: %w, make sure to attach it with \"ctx = runtime.Attach(ctx)\"", err))
	}

	return rt
}

// dispatch is the single native function behind every bound name. The name
// is carried as the first upvalue of the closure installed for it.
func (rt *Runtime) dispatch(L *lua.LState) int {
	name, ok := L.Get(lua.UpvalueIndex(1)).(lua.LString)
	if !ok {
		rt.logger.Debug("native call without a bound name")
		return 0
	}

	vm, adapter, ok := rt.registry.Lookup(L, string(name))
	if !ok {
		rt.logger.Debug("native call to unregistered function", zap.String("function", string(name)))
		return 0
	}

	return vm.invoke(L, string(name), adapter)
}

// print replaces the engine print and routes output to the print callback.
func (rt *Runtime) print(L *lua.LState) int {
	callbacks, ok := rt.registry.Callbacks(L)
	if !ok {
		return 0
	}

	n := L.GetTop()
	msg := ""
	for i := 1; i <= n; i++ {
		if i > 1 {
			msg += "\t"
		}
		msg += L.ToStringMeta(L.Get(i)).String()
	}

	callbacks.print(msg)
	return 0
}
