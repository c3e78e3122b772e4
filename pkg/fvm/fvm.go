package fvm

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"

	"github.com/filecoin-project/go-fvm/pkg/engine"
	"github.com/filecoin-project/go-fvm/pkg/types"
	blockstoreutil "github.com/filecoin-project/go-fvm/pkg/util/blockstoreutil"
	"github.com/filecoin-project/go-fvm/pkg/vm"
)

// stat counters
var (
	StatApplied uint64
)

var fvmLog = logging.Logger("fvm")

var useMachineDebug = os.Getenv("GO_FVM_DEVELOPER_DEBUG") == "1"

// MachineOpts configures a Machine. A nil Engine is replaced with a freshly
// built one; every other field passes through to the interpreter untouched.
type MachineOpts = vm.VmOption

// Machine binds one engine, one pricelist selection and one buffered state
// tree to a fixed chain context: parent state root, epoch, timestamp, base
// fee and network version. Independent machines may run in parallel against
// independent roots, but a single Machine must not execute messages
// concurrently.
type Machine struct {
	vmi  vm.Interpreter
	root cid.Cid
}

// NewMachine builds a machine over opts. It fails when the network version
// has no price schedule or the engine cannot be constructed.
func NewMachine(ctx context.Context, opts MachineOpts) (*Machine, error) {
	if opts.Engine == nil {
		eng, err := engine.New(engine.NewConfig())
		if err != nil {
			return nil, fmt.Errorf("creating engine: %w", err)
		}
		opts.Engine = eng
	}

	vmi, err := vm.NewVM(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("creating machine context: %w", err)
	}

	return &Machine{vmi: vmi, root: opts.PRoot}, nil
}

// NewDebugMachine layers a throwaway write store over the caller's
// blockstore and switches actor debugging on. Nothing a debug machine
// writes reaches the backing store.
func NewDebugMachine(ctx context.Context, opts MachineOpts) (*Machine, error) {
	debugOpts := opts
	debugOpts.Bsstore = blockstoreutil.NewTieredBstore(opts.Bsstore, blockstoreutil.NewTemporarySync())
	debugOpts.ActorDebugging = true
	return NewMachine(ctx, debugOpts)
}

// NewExecutor returns the executor bound to this machine's chain context.
func (m *Machine) NewExecutor() *Executor {
	return &Executor{m: m}
}

// Flush settles all buffered writes into the backing store and returns the
// committed state root.
func (m *Machine) Flush(ctx context.Context) (cid.Cid, error) {
	root, err := m.vmi.Flush(ctx)
	if err != nil {
		return cid.Undef, fmt.Errorf("flushing machine: %w", err)
	}
	m.root = root
	return root, nil
}

// StateRoot returns the last committed root. Messages applied since then
// are not visible here until Flush.
func (m *Machine) StateRoot() cid.Cid {
	return m.root
}

// Interpreter exposes the underlying interpreter for setup flows that need
// genesis message application or direct state tree access.
func (m *Machine) Interpreter() vm.Interpreter {
	return m.vmi
}

// Executor drives messages through its machine one at a time.
type Executor struct {
	m *Machine
}

var _ vm.Interface = (*Executor)(nil)

func (e *Executor) ApplyMessage(ctx context.Context, cmsg types.ChainMsg) (*vm.Ret, error) {
	defer atomic.AddUint64(&StatApplied, 1)
	ret, err := e.m.vmi.ApplyMessage(ctx, cmsg)
	if err != nil {
		return nil, fmt.Errorf("applying msg: %w", err)
	}
	return ret, nil
}

func (e *Executor) ApplyImplicitMessage(ctx context.Context, cmsg types.ChainMsg) (*vm.Ret, error) {
	defer atomic.AddUint64(&StatApplied, 1)
	ret, err := e.m.vmi.ApplyImplicitMessage(ctx, cmsg)
	if err != nil {
		return nil, fmt.Errorf("applying implicit msg: %w", err)
	}
	return ret, nil
}

func (e *Executor) Flush(ctx context.Context) (cid.Cid, error) {
	return e.m.Flush(ctx)
}

// NewVM builds the execution interface used by chain processing: a machine
// plus its executor. GO_FVM_DEVELOPER_DEBUG=1 swaps in a debug machine.
func NewVM(ctx context.Context, opts vm.VmOption) (vm.Interface, error) {
	var (
		m   *Machine
		err error
	)
	if useMachineDebug {
		fvmLog.Info("using debug machine")
		m, err = NewDebugMachine(ctx, opts)
	} else {
		m, err = NewMachine(ctx, opts)
	}
	if err != nil {
		return nil, err
	}
	return m.NewExecutor(), nil
}
