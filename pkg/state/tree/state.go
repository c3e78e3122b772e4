package tree

import (
	"bytes"
	"context"
	"fmt"

	"github.com/filecoin-project/go-address"
	hamt "github.com/filecoin-project/go-hamt-ipld/v3"
	"github.com/filecoin-project/go-state-types/builtin"
	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	logging "github.com/ipfs/go-log/v2"
	cbg "github.com/whyrusleeping/cbor-gen"
	"go.opencensus.io/trace"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-fvm/pkg/types"
	"github.com/filecoin-project/go-fvm/pkg/vm/register"
	"github.com/filecoin-project/go-fvm/pkg/vm/runtime"
)

type ActorKey = address.Address

type Root = cid.Cid

// Tree is the view of the state tree the VM executes against.
type Tree interface {
	GetActor(ctx context.Context, addr ActorKey) (*types.Actor, bool, error)
	SetActor(ctx context.Context, addr ActorKey, act *types.Actor) error
	DeleteActor(ctx context.Context, addr ActorKey) error
	LookupID(addr ActorKey) (address.Address, error)

	Flush(ctx context.Context) (cid.Cid, error)
	Snapshot(ctx context.Context) error
	ClearSnapshot()
	Revert() error

	RegisterNewAddress(addr ActorKey) (address.Address, error)

	MutateActor(addr ActorKey, f func(*types.Actor) error) error
	ForEach(f func(ActorKey, *types.Actor) error) error
}

var log = logging.Logger("statetree")

// State stores actors state by their ID.
type State struct {
	root  *hamt.Node
	Store cbor.IpldStore

	snaps *stateSnaps
}

var _ Tree = (*State)(nil)

type stateSnaps struct {
	layers []*stateSnapLayer
}

type stateSnapLayer struct {
	actors       map[address.Address]streeOp
	resolveCache map[address.Address]address.Address
}

func newStateSnapLayer() *stateSnapLayer {
	return &stateSnapLayer{
		actors:       make(map[address.Address]streeOp),
		resolveCache: make(map[address.Address]address.Address),
	}
}

type streeOp struct {
	Act    types.Actor
	Delete bool
}

func newStateSnaps() *stateSnaps {
	ss := &stateSnaps{}
	ss.addLayer()
	return ss
}

func (ss *stateSnaps) addLayer() {
	ss.layers = append(ss.layers, newStateSnapLayer())
}

func (ss *stateSnaps) dropLayer() {
	ss.layers[len(ss.layers)-1] = nil // allow it to be GCed
	ss.layers = ss.layers[:len(ss.layers)-1]
}

func (ss *stateSnaps) mergeLastLayer() {
	last := ss.layers[len(ss.layers)-1]
	nextLast := ss.layers[len(ss.layers)-2]

	for k, v := range last.actors {
		nextLast.actors[k] = v
	}

	for k, v := range last.resolveCache {
		nextLast.resolveCache[k] = v
	}

	ss.dropLayer()
}

func (ss *stateSnaps) resolveAddress(addr address.Address) (address.Address, bool) {
	for i := len(ss.layers) - 1; i >= 0; i-- {
		resa, ok := ss.layers[i].resolveCache[addr]
		if ok {
			return resa, true
		}
	}
	return address.Undef, false
}

func (ss *stateSnaps) cacheResolveAddress(addr, resa address.Address) {
	ss.layers[len(ss.layers)-1].resolveCache[addr] = resa
}

// getActor walks the layers newest first. The second return distinguishes
// an actor deleted in some layer from one the snaps have never seen.
func (ss *stateSnaps) getActor(addr address.Address) (*types.Actor, bool) {
	for i := len(ss.layers) - 1; i >= 0; i-- {
		act, ok := ss.layers[i].actors[addr]
		if ok {
			if act.Delete {
				return nil, true
			}

			return &act.Act, false
		}
	}
	return nil, false
}

func (ss *stateSnaps) setActor(addr address.Address, act *types.Actor) {
	ss.layers[len(ss.layers)-1].actors[addr] = streeOp{Act: *act}
}

func (ss *stateSnaps) deleteActor(addr address.Address) {
	ss.layers[len(ss.layers)-1].actors[addr] = streeOp{Delete: true}
}

func NewState(cst cbor.IpldStore) *State {
	root, err := hamt.NewNode(cst, register.BuiltinHamtOptions...)
	if err != nil {
		panic(err)
	}
	return &State{
		root:  root,
		Store: cst,
		snaps: newStateSnaps(),
	}
}

func LoadState(ctx context.Context, cst cbor.IpldStore, c cid.Cid) (*State, error) {
	nd, err := hamt.LoadNode(ctx, cst, c, register.BuiltinHamtOptions...)
	if err != nil {
		log.Errorf("loading hamt node %s failed: %s", c, err)
		return nil, err
	}

	return &State{
		root:  nd,
		Store: cst,
		snaps: newStateSnaps(),
	}, nil
}

func (st *State) SetActor(ctx context.Context, addr ActorKey, act *types.Actor) error {
	iaddr, err := st.LookupID(addr)
	if err != nil {
		return xerrors.Errorf("ID lookup failed: %w", err)
	}
	addr = iaddr

	st.snaps.setActor(addr, act)
	return nil
}

// LookupID resolves `addr` to the ID address recorded for it in the init
// actor. Returns types.ErrActorNotFound when no mapping exists.
func (st *State) LookupID(addr ActorKey) (address.Address, error) {
	if addr.Protocol() == address.ID {
		return addr, nil
	}

	resa, ok := st.snaps.resolveAddress(addr)
	if ok {
		return resa, nil
	}

	act, found, err := st.GetActor(context.Background(), builtin.InitActorAddr)
	if err != nil {
		return address.Undef, xerrors.Errorf("getting init actor: %w", err)
	}
	if !found {
		return address.Undef, xerrors.Errorf("init actor not in state tree")
	}

	var ias register.InitState
	if err := st.Store.Get(context.TODO(), act.Head, &ias); err != nil {
		return address.Undef, xerrors.Errorf("loading init actor state: %w", err)
	}

	a, found, err := ias.ResolveAddress(&AdtStore{st.Store}, addr)
	if err == nil && !found {
		err = types.ErrActorNotFound
	}
	if err != nil {
		return address.Undef, xerrors.Errorf("resolve address %s: %w", addr, err)
	}

	st.snaps.cacheResolveAddress(addr, a)

	return a, nil
}

// GetActor returns the actor from any type of `addr` provided. A missing
// actor is not an error, the second return reports presence.
func (st *State) GetActor(ctx context.Context, addr ActorKey) (*types.Actor, bool, error) {
	if addr == address.Undef {
		return nil, false, fmt.Errorf("GetActor called on undefined address")
	}

	// Transform `addr` to its ID format.
	iaddr, err := st.LookupID(addr)
	if err != nil {
		if xerrors.Is(err, types.ErrActorNotFound) {
			return nil, false, nil
		}
		return nil, false, xerrors.Errorf("address resolution: %w", err)
	}
	addr = iaddr

	snapAct, deleted := st.snaps.getActor(addr)
	if deleted {
		return nil, false, nil
	}
	if snapAct != nil {
		return snapAct, true, nil
	}

	var act types.Actor
	if found, err := st.root.Find(ctx, string(addr.Bytes()), &act); err != nil {
		return nil, false, xerrors.Errorf("hamt find failed: %w", err)
	} else if !found {
		return nil, false, nil
	}

	st.snaps.setActor(addr, &act)

	return &act, true, nil
}

func (st *State) DeleteActor(ctx context.Context, addr ActorKey) error {
	if addr == address.Undef {
		return xerrors.Errorf("DeleteActor called on undefined address")
	}

	iaddr, err := st.LookupID(addr)
	if err != nil {
		return xerrors.Errorf("address resolution: %w", err)
	}
	addr = iaddr

	_, found, err := st.GetActor(ctx, addr)
	if err != nil {
		return err
	}
	if !found {
		return xerrors.Errorf("deleting actor %s: %w", addr, types.ErrActorNotFound)
	}

	st.snaps.deleteActor(addr)

	return nil
}

func (st *State) Flush(ctx context.Context) (cid.Cid, error) {
	ctx, span := trace.StartSpan(ctx, "stateTree.Flush") //nolint:staticcheck
	defer span.End()
	if len(st.snaps.layers) != 1 {
		return cid.Undef, xerrors.Errorf("tried to flush state tree with snapshots on the stack")
	}

	for addr, sto := range st.snaps.layers[0].actors {
		if sto.Delete {
			if _, err := st.root.Delete(ctx, string(addr.Bytes())); err != nil {
				return cid.Undef, err
			}
		} else {
			act := sto.Act
			if err := st.root.Set(ctx, string(addr.Bytes()), &act); err != nil {
				return cid.Undef, err
			}
		}
	}

	return st.root.Write(ctx)
}

func (st *State) Snapshot(ctx context.Context) error {
	_, span := trace.StartSpan(ctx, "stateTree.SnapShot") //nolint:staticcheck
	defer span.End()

	st.snaps.addLayer()

	return nil
}

func (st *State) ClearSnapshot() {
	st.snaps.mergeLastLayer()
}

func (st *State) Revert() error {
	st.snaps.dropLayer()
	st.snaps.addLayer()

	return nil
}

// RegisterNewAddress assigns an ID for addr in the init actor and writes
// the updated init state back.
func (st *State) RegisterNewAddress(addr ActorKey) (address.Address, error) {
	var out address.Address
	err := st.MutateActor(builtin.InitActorAddr, func(initact *types.Actor) error {
		var ias register.InitState
		if err := st.Store.Get(context.TODO(), initact.Head, &ias); err != nil {
			return err
		}

		oaddr, err := ias.MapAddressToNewID(&AdtStore{st.Store}, addr)
		if err != nil {
			return err
		}
		out = oaddr

		ncid, err := st.Store.Put(context.TODO(), &ias)
		if err != nil {
			return err
		}

		initact.Head = ncid
		return nil
	})
	if err != nil {
		return address.Undef, err
	}

	return out, nil
}

// AdtStore wraps an IpldStore with a context for actor state accessors.
type AdtStore struct{ cbor.IpldStore }

func (a *AdtStore) Context() context.Context {
	return context.TODO()
}

var _ runtime.Store = (*AdtStore)(nil)

func (st *State) MutateActor(addr ActorKey, f func(*types.Actor) error) error {
	act, found, err := st.GetActor(context.Background(), addr)
	if err != nil {
		return err
	}
	if !found {
		return xerrors.Errorf("mutating actor %s: %w", addr, types.ErrActorNotFound)
	}

	if err := f(act); err != nil {
		return err
	}

	return st.SetActor(context.Background(), addr, act)
}

func (st *State) ForEach(f func(ActorKey, *types.Actor) error) error {
	return st.root.ForEach(context.TODO(), func(k string, val *cbg.Deferred) error {
		addr, err := address.NewFromBytes([]byte(k))
		if err != nil {
			return xerrors.Errorf("invalid address (%x) found in state tree key: %w", []byte(k), err)
		}

		var act types.Actor
		if err := act.UnmarshalCBOR(bytes.NewReader(val.Raw)); err != nil {
			return xerrors.Errorf("invalid actor state at %s: %w", addr, err)
		}

		return f(addr, &act)
	})
}
