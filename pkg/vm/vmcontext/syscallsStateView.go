package vmcontext

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/network"

	"github.com/filecoin-project/go-fvm/pkg/state/tree"
)

// syscallsStateView lends the syscall implementations a gas-charged view of
// the state the current invocation runs over.
type syscallsStateView struct {
	ctx *invocationContext
	*VM
}

func newSyscallsStateView(ctx *invocationContext, vm *VM) *syscallsStateView {
	return &syscallsStateView{ctx: ctx, VM: vm}
}

var _ SyscallsStateView = (*syscallsStateView)(nil)

// ResolveToDeterministicAddress resolves accountAddr to its key address,
// reading actor state through the invocation's gas-charged store.
func (vm *syscallsStateView) ResolveToDeterministicAddress(ctx context.Context, accountAddr address.Address) (address.Address, error) {
	return ResolveToDeterministicAddress(ctx, vm.State, accountAddr, vm.ctx.gasIpld)
}

// GetNetworkVersion returns the network version active for the invocation.
func (vm *syscallsStateView) GetNetworkVersion(ctx context.Context, ce abi.ChainEpoch) network.Version {
	return vm.vmOption.NetworkVersion
}

// TotalFilCircSupply returns the circulating supply visible to the invocation.
func (vm *syscallsStateView) TotalFilCircSupply(height abi.ChainEpoch, st tree.Tree) (abi.TokenAmount, error) {
	return vm.GetCircSupply(context.TODO())
}
