package register

import (
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// Code cids of the native registry actors. They are identity-hashed raw
// cids so their names are recoverable from state dumps. Any other code
// cid found in the state tree is treated as sandboxed bytecode.
var (
	SystemActorCodeID  cid.Cid
	InitActorCodeID    cid.Cid
	AccountActorCodeID cid.Cid

	builtinActors map[cid.Cid]string
)

func init() {
	builder := cid.V1Builder{Codec: cid.Raw, MhType: mh.IDENTITY}
	builtinActors = make(map[cid.Cid]string)

	for _, a := range []struct {
		name string
		out  *cid.Cid
	}{
		{"fil/fvm/system", &SystemActorCodeID},
		{"fil/fvm/init", &InitActorCodeID},
		{"fil/fvm/account", &AccountActorCodeID},
	} {
		c, err := builder.Sum([]byte(a.name))
		if err != nil {
			panic(err)
		}
		*a.out = c
		builtinActors[c] = a.name
	}
}

// IsBuiltinActor reports whether the code belongs to a native registry actor.
func IsBuiltinActor(code cid.Cid) bool {
	_, isBuiltin := builtinActors[code]
	return isBuiltin
}

// ActorNameByCode returns the friendly name of a native actor.
func ActorNameByCode(code cid.Cid) string {
	name, ok := builtinActors[code]
	if !ok {
		return "<unknown>"
	}
	return name
}

// IsAccountActor reports whether the code belongs to the account actor.
// Only account actors are valid top-level message senders.
func IsAccountActor(code cid.Cid) bool {
	return code == AccountActorCodeID
}

// IsSingletonActor reports whether the code may only ever be instantiated
// once, by the system itself.
func IsSingletonActor(code cid.Cid) bool {
	return code == SystemActorCodeID || code == InitActorCodeID
}
