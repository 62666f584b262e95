package sqcrab

import (
	"context"

	"go.uber.org/zap"

	internal "github.com/sqcrab/sqcrab/internal"
)

type (
	VM               = internal.VM
	Builder          = internal.Builder
	Config           = internal.Config
	Runtime          = internal.Runtime
	RuntimeKey       = internal.RuntimeKey
	Registry         = internal.Registry
	Adapter          = internal.Adapter
	Registrar        = internal.Registrar
	Constant         = internal.Constant
	Status           = internal.Status
	Kind             = internal.Kind
	DebugEvent       = internal.DebugEvent
	DebugFlags       = internal.DebugFlags
	Breakpoint       = internal.Breakpoint
	PrintFunc        = internal.PrintFunc
	CompileErrorFunc = internal.CompileErrorFunc
	DebugHookFunc    = internal.DebugHookFunc
	RuntimeErrorFunc = internal.RuntimeErrorFunc
	BreakpointFunc   = internal.BreakpointFunc

	TypeMismatchError = internal.TypeMismatchError
	CompileError      = internal.CompileError
	CallError         = internal.CallError
	AdapterError      = internal.AdapterError
)

const (
	StatusRunning   = internal.StatusRunning
	StatusSuspended = internal.StatusSuspended
	StatusClosed    = internal.StatusClosed

	KindUnknown   = internal.KindUnknown
	KindNull      = internal.KindNull
	KindBool      = internal.KindBool
	KindInteger   = internal.KindInteger
	KindFloat     = internal.KindFloat
	KindString    = internal.KindString
	KindReference = internal.KindReference
	KindTable     = internal.KindTable
	KindArray     = internal.KindArray
	KindFunction  = internal.KindFunction

	EventCall   = internal.EventCall
	EventReturn = internal.EventReturn

	FlagPrint         = internal.FlagPrint
	FlagError         = internal.FlagError
	FlagCompileError  = internal.FlagCompileError
	FlagDebugHook     = internal.FlagDebugHook
	FlagException     = internal.FlagException
	DefaultDebugFlags = internal.DefaultDebugFlags

	DefaultStackSize = internal.DefaultStackSize
)

var (
	ErrFunctionExists    = internal.ErrFunctionExists
	ErrUnknownHandle     = internal.ErrUnknownHandle
	ErrOutOfFrame        = internal.ErrOutOfFrame
	ErrStaleReference    = internal.ErrStaleReference
	ErrNullReference     = internal.ErrNullReference
	ErrOutOfRange        = internal.ErrOutOfRange
	ErrNoReceiver        = internal.ErrNoReceiver
	ErrNoRefScope        = internal.ErrNoRefScope
	ErrUnsupportedType   = internal.ErrUnsupportedType
	ErrInvalidUnit       = internal.ErrInvalidUnit
	ErrFunctionNotFound  = internal.ErrFunctionNotFound
	ErrInvalidTransition = internal.ErrInvalidTransition
	ErrSuspended         = internal.ErrSuspended
	ErrClosed            = internal.ErrClosed
	ErrArity             = internal.ErrArity
)

func NewBuilder() *Builder {
	return internal.NewBuilder()
}

func DefaultConfig() Config {
	return internal.DefaultConfig()
}

func NewRuntime(logger *zap.Logger) *Runtime {
	return internal.NewRuntime(logger)
}

func DefaultRuntime() *Runtime {
	return internal.DefaultRuntime()
}

func NewRegistry() *Registry {
	return internal.NewRegistry()
}

func GetRuntimeFromContext(ctx context.Context) (*Runtime, error) {
	return internal.GetRuntimeFromContext(ctx)
}

func MustGetRuntimeFromContext(ctx context.Context) *Runtime {
	return internal.MustGetRuntimeFromContext(ctx)
}

func Push(vm *VM, v any) error {
	return internal.Push(vm, v)
}

func Get[T any](vm *VM, depth int) (T, error) {
	return internal.Get[T](vm, depth)
}

func This[T any](vm *VM) (T, error) {
	return internal.This[T](vm)
}

func CallAs[T any](ctx context.Context, vm *VM, name string, args ...any) (T, error) {
	return internal.CallAs[T](ctx, vm, name, args...)
}

func KindAt(vm *VM, depth int) (Kind, error) {
	return internal.KindAt(vm, depth)
}

func Top(vm *VM) int {
	return internal.Top(vm)
}

func EngineVersion() (major int, minor int) {
	return internal.EngineVersion()
}

func CheckArity(vm *VM, n int) error {
	return internal.CheckArity(vm, n)
}

func Precompile(src string, sourceName string) ([]byte, error) {
	return internal.Precompile(src, sourceName)
}

func IsPrecompiled(data []byte) bool {
	return internal.IsPrecompiled(data)
}
