package dispatch

import (
	"fmt"

	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/ipfs/go-cid"

	"github.com/filecoin-project/go-fvm/pkg/vm/runtime"
)

// ActorPredicate reports whether an actor implementation may run under
// the current runtime. It is checked on every lookup so that registry
// entries can be windowed by network version.
type ActorPredicate func(rt runtime.Runtime, code cid.Cid) error

// NetworkVersionPredicate admits the actor between the two network
// versions, inclusive.
func NetworkVersionPredicate(from, to network.Version) ActorPredicate {
	return func(rt runtime.Runtime, code cid.Cid) error {
		nvk := rt.NetworkVersion()
		if nvk < from || nvk > to {
			return fmt.Errorf("actor %s not valid for network version %d", code, nvk)
		}
		return nil
	}
}

// AnyNetworkVersion admits the actor unconditionally.
func AnyNetworkVersion() ActorPredicate {
	return func(rt runtime.Runtime, code cid.Cid) error {
		return nil
	}
}

type dispatchEntry struct {
	predicate ActorPredicate
	vmActor   Actor
}

// CodeLoader allows you to load an actor's code based on its code cid.
type CodeLoader struct {
	actors map[cid.Cid]dispatchEntry
}

// GetActorImpl returns dispatchable code for the actor with the given
// code cid, or an error when no registry actor carries it.
func (cl CodeLoader) GetActorImpl(code cid.Cid, rt runtime.Runtime) (Dispatcher, *DispatchError) {
	entry, ok := cl.actors[code]
	if !ok {
		return nil, NewDispatchError(exitcode.SysErrorIllegalActor, "actor implementation not found for code %s", code)
	}
	if err := entry.predicate(rt, code); err != nil {
		return nil, NewDispatchError(exitcode.SysErrorIllegalActor, "actor rejected: %v", err)
	}
	return &actorDispatcher{code: code, actor: entry.vmActor}, nil
}

// GetVMActor returns the raw actor implementation without a runtime
// predicate check. Intended for tests and tools.
func (cl CodeLoader) GetVMActor(code cid.Cid) (Actor, error) {
	entry, ok := cl.actors[code]
	if !ok {
		return nil, fmt.Errorf("actor implementation not found for code %s", code)
	}
	return entry.vmActor, nil
}

// HasCode reports whether the registry carries the given code cid. Code
// cids outside the registry belong to sandboxed bytecode actors.
func (cl CodeLoader) HasCode(code cid.Cid) bool {
	_, ok := cl.actors[code]
	return ok
}

// CodeLoaderBuilder builds a CodeLoader.
type CodeLoaderBuilder struct {
	actors map[cid.Cid]dispatchEntry
}

func NewBuilder() *CodeLoaderBuilder {
	return &CodeLoaderBuilder{actors: map[cid.Cid]dispatchEntry{}}
}

// Add registers an actor under its own code cid.
func (b *CodeLoaderBuilder) Add(predicate ActorPredicate, actor Actor) *CodeLoaderBuilder {
	b.actors[actor.Code()] = dispatchEntry{predicate: predicate, vmActor: actor}
	return b
}

// AddMany registers a batch of actors under one predicate.
func (b *CodeLoaderBuilder) AddMany(predicate ActorPredicate, actors ...Actor) *CodeLoaderBuilder {
	for _, actor := range actors {
		b.Add(predicate, actor)
	}
	return b
}

// Build creates the code loader.
func (b *CodeLoaderBuilder) Build() CodeLoader {
	return CodeLoader{actors: b.actors}
}
