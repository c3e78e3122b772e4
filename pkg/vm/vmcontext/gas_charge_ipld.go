package vmcontext

import (
	"context"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"

	blockstoreutil "github.com/filecoin-project/go-fvm/pkg/util/blockstoreutil"
	"github.com/filecoin-project/go-fvm/pkg/vm/gas"
)

// GasChargeBlockStore charges the frame's gas pool for every block read and
// write that passes through it. State access by actor code always goes
// through a store of this kind; the vm's own bookkeeping reads the inner
// store directly.
type GasChargeBlockStore struct {
	gasTank   *gas.GasTracker
	pricelist gas.Pricelist
	inner     blockstoreutil.Blockstore
}

func NewGasChargeBlockStore(gasTank *gas.GasTracker, pricelist gas.Pricelist, inner blockstoreutil.Blockstore) *GasChargeBlockStore {
	return &GasChargeBlockStore{
		gasTank:   gasTank,
		pricelist: pricelist,
		inner:     inner,
	}
}

var _ blockstoreutil.Blockstore = (*GasChargeBlockStore)(nil)

// Get charges before reading: the price does not depend on the block size,
// so a failed charge must not leak whether the block exists.
func (bs *GasChargeBlockStore) Get(ctx context.Context, c cid.Cid) (blocks.Block, error) {
	bs.gasTank.Charge(bs.pricelist.OnIpldGet(), "storage get %s", c)
	return bs.inner.Get(ctx, c)
}

func (bs *GasChargeBlockStore) View(ctx context.Context, c cid.Cid, callback func([]byte) error) error {
	bs.gasTank.Charge(bs.pricelist.OnIpldGet(), "storage view %s", c)
	return bs.inner.View(ctx, c, callback)
}

// Put writes first and charges by the stored size after.
func (bs *GasChargeBlockStore) Put(ctx context.Context, blk blocks.Block) error {
	if err := bs.inner.Put(ctx, blk); err != nil {
		return err
	}
	bs.gasTank.Charge(bs.pricelist.OnIpldPut(len(blk.RawData())), "storage put %s %d bytes", blk.Cid(), len(blk.RawData()))
	return nil
}

func (bs *GasChargeBlockStore) PutMany(ctx context.Context, blks []blocks.Block) error {
	if err := bs.inner.PutMany(ctx, blks); err != nil {
		return err
	}
	for _, blk := range blks {
		bs.gasTank.Charge(bs.pricelist.OnIpldPut(len(blk.RawData())), "storage put %s %d bytes", blk.Cid(), len(blk.RawData()))
	}
	return nil
}

func (bs *GasChargeBlockStore) Has(ctx context.Context, c cid.Cid) (bool, error) {
	return bs.inner.Has(ctx, c)
}

func (bs *GasChargeBlockStore) GetSize(ctx context.Context, c cid.Cid) (int, error) {
	return bs.inner.GetSize(ctx, c)
}

func (bs *GasChargeBlockStore) DeleteBlock(ctx context.Context, c cid.Cid) error {
	return bs.inner.DeleteBlock(ctx, c)
}

func (bs *GasChargeBlockStore) DeleteMany(ctx context.Context, cids []cid.Cid) error {
	return bs.inner.DeleteMany(ctx, cids)
}

func (bs *GasChargeBlockStore) AllKeysChan(ctx context.Context) (<-chan cid.Cid, error) {
	return bs.inner.AllKeysChan(ctx)
}

func (bs *GasChargeBlockStore) HashOnRead(enabled bool) {
	bs.inner.HashOnRead(enabled)
}
