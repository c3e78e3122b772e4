package runtime

import (
	"fmt"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/filecoin-project/go-state-types/network"
)

// Runtime has access to the global state of the vm.
type Runtime interface {
	CurrentEpoch() abi.ChainEpoch
	NetworkVersion() network.Version
}

// MessageInfo is the message context exposed to an invocation.
type MessageInfo interface {
	// Caller is the immediate (resolved, ID) caller of the invocation.
	Caller() address.Address
	// Receiver is the address of the actor receiving the invocation.
	Receiver() address.Address
	// ValueReceived is the amount of FIL transferred with the invocation.
	ValueReceived() abi.TokenAmount
}

// ExecutionPanic is used to abort the execution of the current message.
// It is caught at the invocation boundary and converted into the frame's
// exit code; it must never escape the vm.
type ExecutionPanic struct {
	msg  string
	code exitcode.ExitCode
}

// Code is the code used to abort the execution (Check: ExitCode.IsSuccess()).
func (p ExecutionPanic) Code() exitcode.ExitCode {
	return p.code
}

func (p ExecutionPanic) String() string {
	if p.msg != "" {
		return p.msg
	}
	return fmt.Sprintf("ExitCode(%d)", p.Code())
}

// Abort aborts the current execution and sets the executing message return to the given `code`.
func Abort(code exitcode.ExitCode) {
	panic(ExecutionPanic{code: code})
}

// Abortf will stop the vm execution and return the error to the caller.
func Abortf(code exitcode.ExitCode, msg string, args ...interface{}) {
	panic(ExecutionPanic{code: code, msg: fmt.Sprintf(msg, args...)})
}
