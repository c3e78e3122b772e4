package engine

import (
	"context"
	goruntime "runtime"

	"github.com/bytecodealliance/wasmtime-go/v25"
	lru "github.com/hashicorp/golang-lru"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/go-fvm/pkg/util/blockstoreutil"
)

var log = logging.Logger("engine")

// Engine owns a wasmtime engine and a cache of compiled modules keyed by
// code CID. Compilation happens at most once per CID, concurrent requests
// for the same CID coalesce, and instantiation from a cache hit never
// recompiles. One Engine is meant to be shared by every machine and every
// sandbox in the process.
type Engine struct {
	wasm *wasmtime.Engine
	cfg  *Config

	modules *lru.TwoQueueCache
	loading singleflight.Group
}

// New creates an engine from the given configuration. Pass nil to get the
// deterministic defaults.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	cache, err := lru.New2Q(cfg.ModuleCacheSize)
	if err != nil {
		return nil, xerrors.Errorf("creating module cache: %w", err)
	}
	return &Engine{
		wasm:    wasmtime.NewEngineWithConfig(cfg.wasmConfig),
		cfg:     cfg,
		modules: cache,
	}, nil
}

// LoadModule returns the compiled module for the given code CID, reading
// the bytecode from the blockstore and compiling it on a cache miss.
func (e *Engine) LoadModule(ctx context.Context, bs blockstoreutil.Blockstore, code cid.Cid) (*wasmtime.Module, error) {
	key := code.KeyString()
	if mod, ok := e.modules.Get(key); ok {
		return mod.(*wasmtime.Module), nil
	}

	mod, err, _ := e.loading.Do(key, func() (interface{}, error) {
		// somebody may have populated the cache while we queued
		if mod, ok := e.modules.Get(key); ok {
			return mod, nil
		}

		blk, err := bs.Get(ctx, code)
		if err != nil {
			return nil, xerrors.Errorf("loading bytecode for %s: %w", code, err)
		}

		compiled, err := wasmtime.NewModule(e.wasm, blk.RawData())
		if err != nil {
			return nil, xerrors.Errorf("compiling module %s: %w", code, err)
		}
		log.Debugf("compiled module %s (%d bytes)", code, len(blk.RawData()))

		e.modules.Add(key, compiled)
		return compiled, nil
	})
	if err != nil {
		return nil, err
	}
	return mod.(*wasmtime.Module), nil
}

// Preload warms the module cache for a set of code CIDs, compiling
// concurrently. Missing or invalid bytecode fails the whole preload, so
// callers should only pass codes they know to be installed.
func (e *Engine) Preload(ctx context.Context, bs blockstoreutil.Blockstore, codes []cid.Cid) error {
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(goruntime.NumCPU())
	for _, code := range codes {
		code := code
		grp.Go(func() error {
			_, err := e.LoadModule(gctx, bs, code)
			return err
		})
	}
	return grp.Wait()
}

// Instantiate compiles (or fetches) the module for code and binds it to a
// fresh sandbox driven by the given kernel.
func (e *Engine) Instantiate(ctx context.Context, bs blockstoreutil.Blockstore, code cid.Cid, kern Kernel) (*Sandbox, error) {
	module, err := e.LoadModule(ctx, bs, code)
	if err != nil {
		return nil, err
	}
	return e.newSandbox(module, kern)
}
