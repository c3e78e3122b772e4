package register

import (
	"sync"

	"github.com/filecoin-project/go-fvm/pkg/vm/dispatch"
)

// DefaultActorBuilder collects the actors implemented natively rather than
// as sandboxed bytecode. Embedders may Add to it before the first call to
// GetDefaultActors.
var DefaultActorBuilder = dispatch.NewBuilder()

var (
	loadOnce      sync.Once
	defaultActors dispatch.CodeLoader
)

// GetDefaultActors builds the native actor registry on first use: the
// system, init and account actors, available at every network version.
func GetDefaultActors() *dispatch.CodeLoader {
	loadOnce.Do(func() {
		DefaultActorBuilder.AddMany(dispatch.AnyNetworkVersion(),
			SystemActor{},
			InitActor{},
			AccountActor{},
		)
		defaultActors = DefaultActorBuilder.Build()
	})
	return &defaultActors
}
