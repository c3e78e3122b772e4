package engine

import (
	"errors"

	"github.com/bytecodealliance/wasmtime-go/v25"
	"github.com/filecoin-project/go-state-types/exitcode"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-fvm/pkg/vm/aerrors"
	"github.com/filecoin-project/go-fvm/pkg/vm/runtime"
)

const (
	invokeEntrypoint = "invoke"
	memoryExport     = "memory"
)

// Sandbox is one instantiated wasm module bound to one kernel, serving
// exactly one invocation. The guest only ever observes the host through
// the syscalls bound in defineSyscalls; it has no clock, no filesystem
// and no source of entropy beyond what the kernel hands it.
//
// Fuel protocol: the store is primed with the fuel the frame's remaining
// gas buys. On every host call the sandbox settles fuel burned since the
// last prime into the kernel's gas tracker, runs the syscall, then primes
// again with the new budget. Gas observed mid-call is therefore exact.
type Sandbox struct {
	store *wasmtime.Store
	inst  *wasmtime.Instance
	kern  Kernel

	// fuel the store held after the last prime; the delta against the
	// store's current fuel is what the guest burned since
	fuelPrimed uint64

	// recorded by an explicit vm.exit before its unwinding trap
	exit *sandboxExit
	// recorded by a syscall handler that failed non-recoverably
	hostErr aerrors.ActorError
}

type sandboxExit struct {
	code exitcode.ExitCode
	data uint32
	msg  string
}

func (e *Engine) newSandbox(module *wasmtime.Module, kern Kernel) (*Sandbox, error) {
	store := wasmtime.NewStore(e.wasm)
	store.Limiter(e.cfg.MaxMemoryBytes, e.cfg.MaxTableElements, e.cfg.MaxInstances, e.cfg.MaxTables, e.cfg.MaxMemories)

	sb := &Sandbox{store: store, kern: kern}

	linker := wasmtime.NewLinker(e.wasm)
	if err := sb.defineSyscalls(linker); err != nil {
		return nil, xerrors.Errorf("binding syscalls: %w", err)
	}

	// a start function runs during instantiation and burns fuel
	if err := sb.primeFuel(); err != nil {
		return nil, err
	}
	inst, err := linker.Instantiate(store, module)
	if serr := sb.settleFuel(); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		return nil, err
	}

	sb.inst = inst
	return sb, nil
}

// Invoke runs the guest entrypoint over the given params block handle and
// returns the handle holding the return value, 0 when the actor returned
// nothing. The returned error carries the frame's exit code.
func (sb *Sandbox) Invoke(paramsID uint32) (uint32, aerrors.ActorError) {
	fn := sb.inst.GetFunc(sb.store, invokeEntrypoint)
	if fn == nil {
		return 0, aerrors.Newf(exitcode.SysErrorIllegalActor, "bytecode does not export %q", invokeEntrypoint)
	}

	if err := sb.primeFuel(); err != nil {
		return 0, aerrors.Escalate(err, "priming fuel")
	}

	res, callErr := fn.Call(sb.store, int32(paramsID))

	if err := sb.settleFuel(); err != nil && callErr == nil {
		callErr = err
	}

	if callErr != nil {
		return sb.resolve(callErr)
	}

	ret, ok := res.(int32)
	if !ok {
		return 0, aerrors.Newf(exitcode.SysErrorIllegalActor, "invoke returned %T, expected a block handle", res)
	}
	return uint32(ret), nil
}

// resolve maps a failed call to its outcome. An explicit vm.exit wins
// over the trap that unwound the stack, then a recorded syscall failure,
// then the trap's own classification.
func (sb *Sandbox) resolve(callErr error) (uint32, aerrors.ActorError) {
	if sb.exit != nil {
		if sb.exit.code.IsSuccess() {
			return sb.exit.data, nil
		}
		if sb.exit.msg != "" {
			return 0, aerrors.Newf(sb.exit.code, "actor aborted: %s", sb.exit.msg)
		}
		return 0, aerrors.Newf(sb.exit.code, "actor aborted")
	}
	if sb.hostErr != nil {
		return 0, sb.hostErr
	}

	var trap *wasmtime.Trap
	if errors.As(callErr, &trap) {
		code := exitCodeForTrap(trap)
		if code == exitcode.SysErrOutOfGas {
			return 0, aerrors.Newf(code, "sandbox ran out of gas")
		}
		return 0, aerrors.Newf(code, "sandbox fault: %s", trap.Message())
	}
	return 0, aerrors.Escalate(callErr, "sandbox failure")
}

func (sb *Sandbox) primeFuel() error {
	budget := sb.kern.FuelBudget()
	if err := sb.store.SetFuel(budget); err != nil {
		return xerrors.Errorf("priming fuel: %w", err)
	}
	sb.fuelPrimed = budget
	return nil
}

// settleFuel charges the kernel for fuel burned since the last prime.
func (sb *Sandbox) settleFuel() error {
	remaining, err := sb.store.GetFuel()
	if err != nil {
		return xerrors.Errorf("reading fuel: %w", err)
	}
	var consumed uint64
	if remaining < sb.fuelPrimed {
		consumed = sb.fuelPrimed - remaining
	}
	sb.fuelPrimed = remaining
	return sb.kern.SettleFuel(consumed)
}

// hostcall wraps an errno-style syscall implementation with the protocol
// shared by every binding: settle guest fuel, run the implementation,
// re-prime, then map the result. A *runtime.SyscallError becomes the
// returned error number and the guest keeps running; any other error is
// recorded and unwinds the guest with a trap.
func (sb *Sandbox) hostcall(impl func(caller *wasmtime.Caller, args []wasmtime.Val) error) func(*wasmtime.Caller, []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
	return func(caller *wasmtime.Caller, args []wasmtime.Val) (rets []wasmtime.Val, trap *wasmtime.Trap) {
		defer func() {
			if r := recover(); r != nil {
				sb.recordPanic(r)
				rets, trap = nil, wasmtime.NewTrap("syscall aborted")
			}
		}()

		if err := sb.settleFuel(); err != nil {
			return sb.failure(err)
		}

		err := impl(caller, args)

		if perr := sb.primeFuel(); perr != nil && err == nil {
			err = perr
		}

		if err != nil {
			var serr *runtime.SyscallError
			if errors.As(err, &serr) {
				return []wasmtime.Val{wasmtime.ValI32(int32(serr.Number))}, nil
			}
			return sb.failure(err)
		}
		return []wasmtime.Val{wasmtime.ValI32(0)}, nil
	}
}

// hostvalue wraps a syscall that reads pure invocation context and
// returns a single value. These cannot fail recoverably.
func (sb *Sandbox) hostvalue(impl func(caller *wasmtime.Caller, args []wasmtime.Val) (wasmtime.Val, error)) func(*wasmtime.Caller, []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
	return func(caller *wasmtime.Caller, args []wasmtime.Val) (rets []wasmtime.Val, trap *wasmtime.Trap) {
		defer func() {
			if r := recover(); r != nil {
				sb.recordPanic(r)
				rets, trap = nil, wasmtime.NewTrap("syscall aborted")
			}
		}()

		if err := sb.settleFuel(); err != nil {
			return sb.failure(err)
		}

		val, err := impl(caller, args)
		if err == nil {
			err = sb.primeFuel()
		}
		if err != nil {
			return sb.failure(err)
		}
		return []wasmtime.Val{val}, nil
	}
}

// failure records a non-recoverable host-side error and returns the trap
// that unwinds the guest.
func (sb *Sandbox) failure(err error) ([]wasmtime.Val, *wasmtime.Trap) {
	if sb.hostErr == nil {
		var aerr aerrors.ActorError
		if errors.As(err, &aerr) {
			sb.hostErr = aerr
		} else {
			sb.hostErr = aerrors.Escalate(err, "syscall failed")
		}
	}
	return nil, wasmtime.NewTrap(err.Error())
}

func (sb *Sandbox) recordPanic(r interface{}) {
	if sb.hostErr != nil {
		return
	}
	switch e := r.(type) {
	case runtime.ExecutionPanic:
		sb.hostErr = aerrors.Newf(e.Code(), "aborted: %v", e)
	case error:
		sb.hostErr = aerrors.Escalate(e, "panic in syscall handler")
	default:
		sb.hostErr = aerrors.Fatalf("panic in syscall handler: %v", r)
	}
}

// memoryOf returns the guest's exported linear memory. The slice aliases
// guest memory directly and must not be retained across calls back into
// the guest.
func memoryOf(caller *wasmtime.Caller) ([]byte, error) {
	ext := caller.GetExport(memoryExport)
	if ext == nil || ext.Memory() == nil {
		return nil, aerrors.Newf(exitcode.SysErrorIllegalActor, "bytecode does not export linear memory")
	}
	return ext.Memory().UnsafeData(caller), nil
}

// guestBytes bounds-checks a guest pointer and returns the backing slice.
func guestBytes(mem []byte, off, length uint32) ([]byte, error) {
	end := uint64(off) + uint64(length)
	if end > uint64(len(mem)) {
		return nil, runtime.NewSyscallError(runtime.ErrIllegalArgument, "guest pointer out of bounds: %d+%d beyond %d", off, length, len(mem))
	}
	return mem[off:end:end], nil
}
