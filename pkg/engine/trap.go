package engine

import (
	"errors"

	"github.com/bytecodealliance/wasmtime-go/v25"
	"github.com/filecoin-project/go-state-types/exitcode"
)

// SysErrIllegalInstruction is the system exit code for a sandbox fault:
// unreachable, memory out of bounds, integer division by zero, stack
// overflow, indirect call type mismatch and every other wasm trap that is
// not fuel exhaustion.
const SysErrIllegalInstruction = exitcode.ExitCode(4)

// exitCodeForTrap maps a wasmtime trap to the system exit code the
// invocation resolves to. Running out of fuel is out-of-gas; everything
// else is a fault of the bytecode itself.
func exitCodeForTrap(trap *wasmtime.Trap) exitcode.ExitCode {
	if code := trap.Code(); code != nil && *code == wasmtime.OutOfFuel {
		return exitcode.SysErrOutOfGas
	}
	return SysErrIllegalInstruction
}

// ExitCodeForError reports the exit code for an instantiation or call
// error when it carries a wasm trap, and whether it did.
func ExitCodeForError(err error) (exitcode.ExitCode, bool) {
	var trap *wasmtime.Trap
	if errors.As(err, &trap) {
		return exitCodeForTrap(trap), true
	}
	return exitcode.Ok, false
}
