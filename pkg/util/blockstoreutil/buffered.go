package blockstoreutil

import (
	"context"
	"os"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	ipld "github.com/ipfs/go-ipld-format"
)

// BufferedBS is a blockstore that buffers writes in memory until they are
// flushed to the underlying read store. The VM executes against one of
// these so that nothing lands in the real store before commit.
type BufferedBS struct {
	read  Blockstore
	write Blockstore
}

func NewBufferedBstore(base Blockstore) *BufferedBS {
	var buf Blockstore
	if os.Getenv("GO_FVM_DISABLE_VM_BUF") == "iknowitsabadidea" {
		buf = base
	} else {
		buf = NewMemory()
	}

	return &BufferedBS{
		read:  base,
		write: buf,
	}
}

var _ Blockstore = (*BufferedBS)(nil)

// Read returns the backing store writes are flushed into.
func (bs *BufferedBS) Read() Blockstore {
	return bs.read
}

// Write returns the in-memory buffer holding uncommitted writes.
func (bs *BufferedBS) Write() Blockstore {
	return bs.write
}

func (bs *BufferedBS) AllKeysChan(ctx context.Context) (<-chan cid.Cid, error) {
	a, err := bs.read.AllKeysChan(ctx)
	if err != nil {
		return nil, err
	}

	b, err := bs.write.AllKeysChan(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan cid.Cid)
	go func() {
		defer close(out)
		for a != nil || b != nil {
			select {
			case val, ok := <-a:
				if !ok {
					a = nil
				} else {
					select {
					case out <- val:
					case <-ctx.Done():
						return
					}
				}
			case val, ok := <-b:
				if !ok {
					b = nil
				} else {
					select {
					case out <- val:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return out, nil
}

func (bs *BufferedBS) DeleteBlock(ctx context.Context, c cid.Cid) error {
	if err := bs.read.DeleteBlock(ctx, c); err != nil {
		return err
	}

	return bs.write.DeleteBlock(ctx, c)
}

func (bs *BufferedBS) DeleteMany(ctx context.Context, cids []cid.Cid) error {
	if err := bs.read.DeleteMany(ctx, cids); err != nil {
		return err
	}

	return bs.write.DeleteMany(ctx, cids)
}

func (bs *BufferedBS) View(ctx context.Context, c cid.Cid, callback func([]byte) error) error {
	// both stores are viewable.
	if err := bs.write.View(ctx, c, callback); err == nil {
		// found in write blockstore.
		return nil
	} else if !ipld.IsNotFound(err) {
		return err
	}
	// not found in write blockstore; fall through.
	return bs.read.View(ctx, c, callback)
}

func (bs *BufferedBS) Get(ctx context.Context, c cid.Cid) (blocks.Block, error) {
	if out, err := bs.write.Get(ctx, c); err != nil {
		if !ipld.IsNotFound(err) {
			return nil, err
		}
	} else {
		return out, nil
	}

	return bs.read.Get(ctx, c)
}

func (bs *BufferedBS) GetSize(ctx context.Context, c cid.Cid) (int, error) {
	s, err := bs.read.GetSize(ctx, c)
	if ipld.IsNotFound(err) || s == 0 {
		return bs.write.GetSize(ctx, c)
	}

	return s, err
}

func (bs *BufferedBS) Put(ctx context.Context, blk blocks.Block) error {
	has, err := bs.read.Has(ctx, blk.Cid()) // TODO: consider dropping this check
	if err != nil {
		return err
	}

	if has {
		return nil
	}

	return bs.write.Put(ctx, blk)
}

func (bs *BufferedBS) Has(ctx context.Context, c cid.Cid) (bool, error) {
	has, err := bs.write.Has(ctx, c)
	if err != nil {
		return false, err
	}
	if has {
		return true, nil
	}

	return bs.read.Has(ctx, c)
}

func (bs *BufferedBS) HashOnRead(hor bool) {
	bs.read.HashOnRead(hor)
	bs.write.HashOnRead(hor)
}

func (bs *BufferedBS) PutMany(ctx context.Context, blks []blocks.Block) error {
	return bs.write.PutMany(ctx, blks)
}
