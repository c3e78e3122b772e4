package blockstoreutil

import (
	"context"
	"testing"

	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	datastore "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tf "github.com/filecoin-project/go-fvm/pkg/testhelpers/testflags"
)

func TestBufferedIsolatesWrites(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	base := NewMemory()
	buf := NewBufferedBstore(base)

	blk := blocks.NewBlock([]byte("uncommitted data"))
	require.NoError(t, buf.Put(ctx, blk))

	// visible through the buffer
	has, err := buf.Has(ctx, blk.Cid())
	require.NoError(t, err)
	assert.True(t, has)

	got, err := buf.Get(ctx, blk.Cid())
	require.NoError(t, err)
	assert.Equal(t, blk.RawData(), got.RawData())

	// but not in the base store until flushed
	has, err = base.Has(ctx, blk.Cid())
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, CopyBlockstore(ctx, buf.Write(), buf.Read()))

	has, err = base.Has(ctx, blk.Cid())
	require.NoError(t, err)
	assert.True(t, has)
}

func TestBufferedReadsThrough(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	base := NewMemory()
	blk := blocks.NewBlock([]byte("committed data"))
	require.NoError(t, base.Put(ctx, blk))

	buf := NewBufferedBstore(base)
	got, err := buf.Get(ctx, blk.Cid())
	require.NoError(t, err)
	assert.Equal(t, blk.RawData(), got.RawData())

	var viewed []byte
	require.NoError(t, buf.View(ctx, blk.Cid(), func(b []byte) error {
		viewed = append(viewed, b...)
		return nil
	}))
	assert.Equal(t, blk.RawData(), viewed)

	// a put of an already committed block does not buffer it again
	require.NoError(t, buf.Put(ctx, blk))
	has, err := buf.Write().Has(ctx, blk.Cid())
	require.NoError(t, err)
	assert.False(t, has)
}

func TestCopyBatches(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	from := NewMemory()
	to := NewMemory()

	var want int
	for i := 0; i < batchSize*2+7; i++ {
		blk := blocks.NewBlock([]byte{byte(i), byte(i >> 8), 'x'})
		require.NoError(t, from.Put(ctx, blk))
		want++
	}

	require.NoError(t, CopyBlockstore(ctx, from, to))
	assert.Len(t, to, want)
}

func TestTieredReadsFallBack(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	r := NewMemory()
	w := NewMemory()
	ts := NewTieredBstore(r, w)

	inR := blocks.NewBlock([]byte("in read tier"))
	inW := blocks.NewBlock([]byte("in write tier"))
	require.NoError(t, r.Put(ctx, inR))
	require.NoError(t, w.Put(ctx, inW))

	for _, blk := range []blocks.Block{inR, inW} {
		got, err := ts.Get(ctx, blk.Cid())
		require.NoError(t, err)
		assert.Equal(t, blk.RawData(), got.RawData())
	}

	// writes only land in the write tier
	blk := blocks.NewBlock([]byte("new write"))
	require.NoError(t, ts.Put(ctx, blk))
	has, err := r.Has(ctx, blk.Cid())
	require.NoError(t, err)
	assert.False(t, has)
	has, err = w.Has(ctx, blk.Cid())
	require.NoError(t, err)
	assert.True(t, has)
}

func TestFromDatastore(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	bs := FromDatastore(dssync.MutexWrap(datastore.NewMapDatastore()))

	blk := blocks.NewBlock([]byte("datastore backed"))
	require.NoError(t, bs.Put(ctx, blk))

	got, err := bs.Get(ctx, blk.Cid())
	require.NoError(t, err)
	assert.Equal(t, blk.RawData(), got.RawData())

	var viewed []byte
	require.NoError(t, bs.View(ctx, blk.Cid(), func(b []byte) error {
		viewed = append(viewed, b...)
		return nil
	}))
	assert.Equal(t, blk.RawData(), viewed)

	missing := blocks.NewBlock([]byte("never stored")).Cid()
	_, err = bs.Get(ctx, missing)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	// same bytes, same key: a second put is a no-op, not an error
	require.NoError(t, bs.Put(ctx, blk))
	keys, err := bs.AllKeysChan(ctx)
	require.NoError(t, err)
	var all []cid.Cid
	for c := range keys {
		all = append(all, c)
	}
	assert.Len(t, all, 1)
}

func TestSyncBlockstore(t *testing.T) {
	tf.UnitTest(t)

	ctx := context.Background()
	bs := NewTemporarySync()

	blk := blocks.NewBlock([]byte("synced"))
	require.NoError(t, bs.Put(ctx, blk))

	size, err := bs.GetSize(ctx, blk.Cid())
	require.NoError(t, err)
	assert.Equal(t, len(blk.RawData()), size)

	require.NoError(t, bs.DeleteBlock(ctx, blk.Cid()))
	has, err := bs.Has(ctx, blk.Cid())
	require.NoError(t, err)
	assert.False(t, has)
}
