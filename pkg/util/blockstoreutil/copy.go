package blockstoreutil

import (
	"context"

	blocks "github.com/ipfs/go-block-format"
	mh "github.com/multiformats/go-multihash"
	"go.opencensus.io/trace"
	"golang.org/x/xerrors"
)

const batchSize = 100

// CopyBlockstore moves every block in from into to, batching the puts.
// Identity cids never hit the store, their payload is the cid itself.
func CopyBlockstore(ctx context.Context, from, to Blockstore) error {
	ctx, span := trace.StartSpan(ctx, "copyBlockstore")
	defer span.End()

	cids, err := from.AllKeysChan(ctx)
	if err != nil {
		return err
	}

	// TODO: should probably expose better methods on the blockstore for this operation
	batch := make([]blocks.Block, 0, batchSize)
	for c := range cids {
		if c.Prefix().MhType == mh.IDENTITY {
			continue
		}

		b, err := from.Get(ctx, c)
		if err != nil {
			return xerrors.Errorf("get %s: %w", c, err)
		}

		batch = append(batch, b)
		if len(batch) >= batchSize {
			if err := to.PutMany(ctx, batch); err != nil {
				return xerrors.Errorf("batch put: %w", err)
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := to.PutMany(ctx, batch); err != nil {
			return xerrors.Errorf("batch put: %w", err)
		}
	}

	return nil
}
