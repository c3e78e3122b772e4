package blockstoreutil

import (
	"context"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	ds "github.com/ipfs/go-datastore"
	bstore "github.com/ipfs/go-ipfs-blockstore"
	ipld "github.com/ipfs/go-ipld-format"
)

// Blockstore is the blockstore interface used by the VM. It is the
// go-ipfs-blockstore interface extended with the View and DeleteMany
// methods the execution paths want.
type Blockstore interface {
	DeleteBlock(ctx context.Context, c cid.Cid) error
	Has(ctx context.Context, c cid.Cid) (bool, error)
	Get(ctx context.Context, c cid.Cid) (blocks.Block, error)

	// GetSize returns the CIDs mapped BlockSize
	GetSize(ctx context.Context, c cid.Cid) (int, error)

	// Put puts a given block to the underlying datastore
	Put(ctx context.Context, b blocks.Block) error

	// PutMany puts a slice of blocks at the same time using batching
	// capabilities of the underlying datastore whenever possible.
	PutMany(ctx context.Context, bs []blocks.Block) error

	// AllKeysChan returns a channel from which
	// the CIDs in the Blockstore can be read. It should respect
	// the given context, closing the channel if it becomes Done.
	AllKeysChan(ctx context.Context) (<-chan cid.Cid, error)

	// HashOnRead specifies if every read block should be
	// rehashed to make sure it matches its CID.
	HashOnRead(enabled bool)

	// View accesses the block bytes without copying where the underlying
	// store supports it.
	View(ctx context.Context, c cid.Cid, callback func([]byte) error) error

	// DeleteMany deletes a slice of blocks.
	DeleteMany(ctx context.Context, cids []cid.Cid) error
}

// FromDatastore creates a Blockstore backed by the given datastore,
// with keys namespaced under the standard /blocks prefix.
func FromDatastore(dstore ds.Batching) Blockstore {
	return Adapt(bstore.NewBlockstore(dstore))
}

// Adapt wraps a plain ipfs blockstore into our interface, emulating View
// with a copying Get.
func Adapt(bs bstore.Blockstore) Blockstore {
	if ours, ok := bs.(Blockstore); ok {
		return ours
	}
	return &adaptedBlockstore{bs}
}

type adaptedBlockstore struct {
	bstore.Blockstore
}

var _ Blockstore = (*adaptedBlockstore)(nil)

func (a *adaptedBlockstore) View(ctx context.Context, c cid.Cid, callback func([]byte) error) error {
	blk, err := a.Get(ctx, c)
	if err != nil {
		return err
	}
	return callback(blk.RawData())
}

func (a *adaptedBlockstore) DeleteMany(ctx context.Context, cids []cid.Cid) error {
	for _, c := range cids {
		if err := a.DeleteBlock(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// IsNotFound reports whether err signals a missing block.
func IsNotFound(err error) bool {
	return ipld.IsNotFound(err)
}
