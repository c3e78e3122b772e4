package register

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/builtin"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/go-fvm/pkg/vm/dispatch"
	"github.com/filecoin-project/go-fvm/pkg/vm/runtime"
)

// AccountActor stands behind an external key pair. It is instantiated
// implicitly when value is first sent to a pubkey address.
type AccountActor struct{}

// AccountState records the pubkey address the account answers for.
type AccountState struct {
	Address address.Address
}

var _ dispatch.Actor = AccountActor{}

func (a AccountActor) Code() cid.Cid {
	return AccountActorCodeID
}

func (a AccountActor) State() cbor.Er {
	return new(AccountState)
}

func (a AccountActor) Exports() []interface{} {
	return []interface{}{
		nil, // method 0 is a bare transfer
		a.Constructor,
		a.PubkeyAddress,
	}
}

// Constructor binds the account to its pubkey address. Accounts are only
// ever constructed by the system.
func (a AccountActor) Constructor(rt runtime.InvocationRuntime, params *address.Address) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.SystemActorAddr)
	switch params.Protocol() {
	case address.SECP256K1, address.BLS:
	default:
		runtime.Abortf(exitcode.ErrIllegalArgument, "address must use BLS or SECP protocol, got %v", params.Protocol())
	}
	rt.StateCreate(&AccountState{Address: *params})
	return nil
}

// PubkeyAddress returns the key address the account wraps.
func (a AccountActor) PubkeyAddress(rt runtime.InvocationRuntime, _ *abi.EmptyValue) *address.Address {
	rt.ValidateImmediateCallerAcceptAny()
	var st AccountState
	rt.StateReadonly(&st)
	return &st.Address
}
