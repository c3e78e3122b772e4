package blockstoreutil

import (
	"context"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	ipld "github.com/ipfs/go-ipld-format"
)

// TieredBstore is a hierarchical blockstore. Reads are served from r with
// a fallback to w, writes land in w only.
type TieredBstore struct {
	r Blockstore
	w Blockstore
}

func NewTieredBstore(r Blockstore, w Blockstore) Blockstore {
	return &TieredBstore{
		r: r,
		w: w,
	}
}

var _ Blockstore = (*TieredBstore)(nil)

func (t *TieredBstore) Has(ctx context.Context, c cid.Cid) (bool, error) {
	has, err := t.r.Has(ctx, c)
	if err != nil {
		return false, err
	}
	if has {
		return true, nil
	}
	return t.w.Has(ctx, c)
}

func (t *TieredBstore) Get(ctx context.Context, c cid.Cid) (blocks.Block, error) {
	blk, err := t.r.Get(ctx, c)
	if err == nil {
		return blk, nil
	}
	if !ipld.IsNotFound(err) {
		return nil, err
	}
	return t.w.Get(ctx, c)
}

func (t *TieredBstore) GetSize(ctx context.Context, c cid.Cid) (int, error) {
	s, err := t.r.GetSize(ctx, c)
	if err == nil {
		return s, nil
	}
	if !ipld.IsNotFound(err) {
		return 0, err
	}
	return t.w.GetSize(ctx, c)
}

func (t *TieredBstore) View(ctx context.Context, c cid.Cid, callback func([]byte) error) error {
	err := t.r.View(ctx, c, callback)
	if err == nil {
		return nil
	}
	if !ipld.IsNotFound(err) {
		return err
	}
	return t.w.View(ctx, c, callback)
}

func (t *TieredBstore) Put(ctx context.Context, blk blocks.Block) error {
	return t.w.Put(ctx, blk)
}

func (t *TieredBstore) PutMany(ctx context.Context, blks []blocks.Block) error {
	return t.w.PutMany(ctx, blks)
}

func (t *TieredBstore) DeleteBlock(ctx context.Context, c cid.Cid) error {
	return t.w.DeleteBlock(ctx, c)
}

func (t *TieredBstore) DeleteMany(ctx context.Context, cids []cid.Cid) error {
	return t.w.DeleteMany(ctx, cids)
}

func (t *TieredBstore) AllKeysChan(ctx context.Context) (<-chan cid.Cid, error) {
	return t.w.AllKeysChan(ctx)
}

func (t *TieredBstore) HashOnRead(enabled bool) {
	t.r.HashOnRead(enabled)
	t.w.HashOnRead(enabled)
}
