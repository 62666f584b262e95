package sqcrab

import (
	"fmt"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

const DefaultStackSize = 1024

// Config holds the engine options of a VM. It is the [vm] table of
// sqcrab.toml.
type Config struct {
	StackSize           int  `toml:"stack_size"`
	DebugInfo           bool `toml:"debug_info"`
	NotifyAllExceptions bool `toml:"notify_all_exceptions"`
	SkipOpenLibs        bool `toml:"skip_open_libs"`
}

func DefaultConfig() Config {
	return Config{
		StackSize: DefaultStackSize,
	}
}

// Builder configures a VM before it is created.
type Builder struct {
	config    Config
	callbacks DebugCallbacks
	runtime   *Runtime
	logger    *zap.Logger
}

func NewBuilder() *Builder {
	return &Builder{
		config: DefaultConfig(),
		callbacks: DebugCallbacks{
			flags: DefaultDebugFlags,
		},
	}
}

func (b *Builder) WithConfig(config Config) *Builder {
	b.config = config
	return b
}

func (b *Builder) WithStackSize(size int) *Builder {
	b.config.StackSize = size
	return b
}

func (b *Builder) WithDebugInfo(enabled bool) *Builder {
	b.config.DebugInfo = enabled
	return b
}

func (b *Builder) WithNotifyAllExceptions(enabled bool) *Builder {
	b.config.NotifyAllExceptions = enabled
	return b
}

func (b *Builder) WithPrint(fn PrintFunc) *Builder {
	b.callbacks.Print = fn
	return b
}

func (b *Builder) WithError(fn PrintFunc) *Builder {
	b.callbacks.Error = fn
	return b
}

func (b *Builder) WithCompileError(fn CompileErrorFunc) *Builder {
	b.callbacks.CompileError = fn
	return b
}

func (b *Builder) WithDebugHook(fn DebugHookFunc) *Builder {
	b.callbacks.DebugHook = fn
	return b
}

func (b *Builder) WithRuntimeError(fn RuntimeErrorFunc) *Builder {
	b.callbacks.RuntimeError = fn
	return b
}

func (b *Builder) WithBreakpoint(fn BreakpointFunc) *Builder {
	b.callbacks.Breakpoint = fn
	return b
}

func (b *Builder) WithDebugFlags(flags DebugFlags) *Builder {
	b.callbacks.flags = flags
	return b
}

func (b *Builder) WithRuntime(rt *Runtime) *Builder {
	b.runtime = rt
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// Build creates the VM and registers it with the runtime. The returned VM is
// running.
func (b *Builder) Build() (*VM, error) {
	if b.config.StackSize <= 0 {
		return nil, fmt.Errorf("stack size must be positive, is %d", b.config.StackSize)
	}

	rt := b.runtime
	if rt == nil {
		rt = DefaultRuntime()
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("could not generate vm id: %w", err)
	}

	logger := b.logger
	if logger == nil {
		logger = rt.logger
	}

	L := lua.NewState(lua.Options{
		RegistrySize:        b.config.StackSize,
		SkipOpenLibs:        b.config.SkipOpenLibs,
		IncludeGoStackTrace: b.config.DebugInfo,
	})

	callbacks := b.callbacks
	vm := &VM{
		id:        id,
		state:     L,
		frame:     L,
		runtime:   rt,
		config:    b.config,
		logger:    logger.With(zap.String("vm", id.String())),
		callbacks: &callbacks,
		status:    StatusRunning,
		refs:      &refArena{},
		constants: map[string]*registeredConstant{},
	}

	vm.refMeta = L.NewTable()
	vm.refMeta.RawSetString("__tostring", L.NewFunction(refToString))
	vm.errMeta = L.NewTable()
	vm.errMeta.RawSetString("__tostring", L.NewFunction(errorToString))

	L.SetGlobal("print", L.NewFunction(rt.print))
	if b.config.NotifyAllExceptions {
		vm.notifyProtectedCalls()
	}

	rt.registry.Insert(vm, vm.callbacks)
	vm.logger.Debug("built vm", zap.Int("stack_size", b.config.StackSize))

	return vm, nil
}

// notifyProtectedCalls wraps pcall so errors caught by scripts still reach
// the error callback.
func (vm *VM) notifyProtectedCalls() {
	L := vm.state
	pcall, ok := L.GetGlobal("pcall").(*lua.LFunction)
	if !ok {
		return
	}

	L.SetGlobal("pcall", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		L.Push(pcall)
		for i := 1; i <= n; i++ {
			L.Push(L.Get(i))
		}
		L.Call(n, lua.MultRet)

		results := L.GetTop() - n
		if results > 1 && L.Get(n+1) == lua.LFalse {
			callbacks, ok := vm.runtime.registry.Callbacks(L)
			if ok {
				callbacks.exception(L.ToStringMeta(L.Get(n + 2)).String())
			}
		}

		return results
	}))
}
