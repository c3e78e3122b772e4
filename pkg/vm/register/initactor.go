package register

import (
	"crypto/sha256"

	"github.com/filecoin-project/go-address"
	hamt "github.com/filecoin-project/go-hamt-ipld/v3"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/builtin"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"
	"github.com/pkg/errors"
	cbg "github.com/whyrusleeping/cbor-gen"

	"github.com/filecoin-project/go-fvm/pkg/vm/dispatch"
	"github.com/filecoin-project/go-fvm/pkg/vm/runtime"
)

// FirstNonSingletonActorID is the lowest actor ID handed out by the init
// actor. IDs below it are reserved for singletons.
const FirstNonSingletonActorID = 100

// BuiltinHamtOptions configure every HAMT the native actors put in the
// state. Using a fixed bitwidth and hash keeps the maps canonical.
var BuiltinHamtOptions = []hamt.Option{
	hamt.UseTreeBitWidth(builtin.DefaultHamtBitwidth),
	hamt.UseHashFunction(func(input []byte) []byte {
		res := sha256.Sum256(input)
		return res[:]
	}),
}

// InitActor hands out ID addresses and instantiates new actors.
type InitActor struct{}

// InitState is the init actor's state root.
type InitState struct {
	// AddressMap is a HAMT[address]abi.ActorID mapping stable addresses
	// to the IDs assigned for them.
	AddressMap  cid.Cid
	NextID      abi.ActorID
	NetworkName string
}

// InitConstructorParams carry the chain name at genesis.
type InitConstructorParams struct {
	NetworkName string
}

// InitExecParams ask the init actor to instantiate a new actor.
type InitExecParams struct {
	CodeCID           cid.Cid
	ConstructorParams []byte
}

// InitExecReturn names the actor Exec created.
type InitExecReturn struct {
	// IDAddress is the canonical ID address for the new actor.
	IDAddress address.Address
	// RobustAddress survives chain re-orgs.
	RobustAddress address.Address
}

var _ dispatch.Actor = InitActor{}

func (a InitActor) Code() cid.Cid {
	return InitActorCodeID
}

func (a InitActor) State() cbor.Er {
	return new(InitState)
}

func (a InitActor) Exports() []interface{} {
	return []interface{}{
		nil,
		a.Constructor,
		a.Exec,
	}
}

func (a InitActor) Constructor(rt runtime.InvocationRuntime, params *InitConstructorParams) *abi.EmptyValue {
	rt.ValidateImmediateCallerIs(builtin.SystemActorAddr)
	st, err := ConstructInitState(rt.Store(), params.NetworkName)
	if err != nil {
		runtime.Abortf(exitcode.ErrIllegalState, "failed to construct init state: %v", err)
	}
	rt.StateCreate(st)
	return nil
}

// Exec instantiates a new actor behind a fresh ID address and invokes its
// constructor, forwarding any value the caller attached.
func (a InitActor) Exec(rt runtime.InvocationRuntime, params *InitExecParams) *InitExecReturn {
	rt.ValidateImmediateCallerAcceptAny()

	if !canExec(params.CodeCID) {
		runtime.Abortf(exitcode.ErrForbidden, "cannot exec actor type %s", params.CodeCID)
	}

	// A re-org-stable address for the nascent actor, derived from the
	// origin of the call chain and its nonce.
	robustAddr := rt.NewActorAddress()

	var st InitState
	var idAddr address.Address
	rt.StateTransaction(&st, func() {
		var err error
		idAddr, err = st.MapAddressToNewID(rt.Store(), robustAddr)
		if err != nil {
			runtime.Abortf(exitcode.ErrIllegalState, "failed to allocate ID address: %v", err)
		}
	})

	rt.CreateActor(params.CodeCID, idAddr)

	_, code := rt.Send(idAddr, builtin.MethodConstructor, params.ConstructorParams, rt.Message().ValueReceived())
	if !code.IsSuccess() {
		runtime.Abort(code)
	}

	return &InitExecReturn{IDAddress: idAddr, RobustAddress: robustAddr}
}

// canExec rejects actor types that must not be created through Exec.
// Singletons exist from genesis, and accounts are created by the system
// on first send to a pubkey address.
func canExec(codeCID cid.Cid) bool {
	return !IsSingletonActor(codeCID) && !IsAccountActor(codeCID)
}

// ConstructInitState builds the genesis init state with an empty address
// map.
func ConstructInitState(store runtime.Store, networkName string) (*InitState, error) {
	m, err := hamt.NewNode(store, BuiltinHamtOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create empty address map")
	}
	emptyAddressMap, err := m.Write(store.Context())
	if err != nil {
		return nil, errors.Wrap(err, "failed to create empty address map")
	}
	return &InitState{
		AddressMap:  emptyAddressMap,
		NextID:      FirstNonSingletonActorID,
		NetworkName: networkName,
	}, nil
}

// ResolveAddress looks up the ID assigned for addr. ID addresses resolve
// to themselves. The second return is false when no mapping exists.
func (st *InitState) ResolveAddress(store runtime.Store, addr address.Address) (address.Address, bool, error) {
	if addr.Protocol() == address.ID {
		return addr, true, nil
	}

	m, err := hamt.LoadNode(store.Context(), store, st.AddressMap, BuiltinHamtOptions...)
	if err != nil {
		return address.Undef, false, errors.Wrap(err, "failed to load address map")
	}

	var actorID cbg.CborInt
	found, err := m.Find(store.Context(), string(addr.Bytes()), &actorID)
	if err != nil {
		return address.Undef, false, errors.Wrapf(err, "failed to find %s in address map", addr)
	}
	if !found {
		return address.Undef, false, nil
	}

	idAddr, err := address.NewIDAddress(uint64(actorID))
	if err != nil {
		return address.Undef, false, errors.Wrap(err, "failed to build ID address")
	}
	return idAddr, true, nil
}

// MapAddressToNewID assigns the next actor ID to addr and records the
// mapping in the address map.
func (st *InitState) MapAddressToNewID(store runtime.Store, addr address.Address) (address.Address, error) {
	actorID := cbg.CborInt(st.NextID)
	st.NextID++

	m, err := hamt.LoadNode(store.Context(), store, st.AddressMap, BuiltinHamtOptions...)
	if err != nil {
		return address.Undef, errors.Wrap(err, "failed to load address map")
	}
	if err := m.Set(store.Context(), string(addr.Bytes()), &actorID); err != nil {
		return address.Undef, errors.Wrapf(err, "failed to map %s to a new ID", addr)
	}
	amr, err := m.Write(store.Context())
	if err != nil {
		return address.Undef, errors.Wrap(err, "failed to write address map")
	}
	st.AddressMap = amr

	return address.NewIDAddress(uint64(actorID))
}
