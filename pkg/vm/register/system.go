package register

import (
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/builtin"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/go-fvm/pkg/vm/dispatch"
	"github.com/filecoin-project/go-fvm/pkg/vm/runtime"
)

// SystemActor is the distinguished actor at ID address 0. It carries no
// state of consequence but acts as the caller of implicit messages.
type SystemActor struct{}

type SystemState struct{}

var _ dispatch.Actor = SystemActor{}

func (s SystemActor) Code() cid.Cid {
	return SystemActorCodeID
}

func (s SystemActor) State() cbor.Er {
	return new(SystemState)
}

func (s SystemActor) Exports() []interface{} {
	return []interface{}{
		nil,
		s.Constructor,
	}
}

func (s SystemActor) Constructor(rt runtime.InvocationRuntime, _ *abi.EmptyValue) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.SystemActorAddr)
	rt.StateCreate(&SystemState{})
	return nil
}
