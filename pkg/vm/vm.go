package vm

import (
	"context"

	"github.com/filecoin-project/go-fvm/pkg/vm/register"
	"github.com/filecoin-project/go-fvm/pkg/vm/vmcontext"
)

type (
	VmOption = vmcontext.VmOption //nolint
	Ret      = vmcontext.Ret
)

type (
	SyscallsImpl      = vmcontext.SyscallsImpl
	SyscallsStateView = vmcontext.SyscallsStateView
)

type (
	ExecCallBack         = vmcontext.ExecCallBack
	VmMessage            = vmcontext.VmMessage //nolint
	FakeSyscalls         = vmcontext.FakeSyscalls
	ChainRandomness      = vmcontext.HeadChainRandomness
	CircSupplyCalculator = vmcontext.CircSupplyCalculator
)

type Interface = vmcontext.Interface

type Interpreter = vmcontext.VMInterpreter

// NewVM creates a message interpreter with the default native actor
// registry installed.
func NewVM(ctx context.Context, opts VmOption) (Interpreter, error) {
	if opts.ActorCodeLoader == nil {
		opts.ActorCodeLoader = register.GetDefaultActors()
	}
	return vmcontext.NewVM(ctx, opts.ActorCodeLoader, opts)
}
