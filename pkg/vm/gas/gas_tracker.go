package gas

import (
	"fmt"
	"time"

	"github.com/filecoin-project/go-state-types/exitcode"

	"github.com/filecoin-project/go-fvm/pkg/types"
	"github.com/filecoin-project/go-fvm/pkg/vm/runtime"
)

// GasTracker accumulates gas usage for one message execution. A single
// tracker is shared by every frame of the call stack, so nested sends
// draw down the same budget.
type GasTracker struct { //nolint
	GasAvailable int64
	GasUsed      int64

	// Tracing records every charge into ExecutionTrace. Off by default;
	// it allocates per charge.
	Tracing        bool
	ExecutionTrace types.ExecutionTrace

	lastGasCharge     *types.GasTrace
	lastGasChargeTime time.Time
}

// NewGasTracker returns a tracker with the given gas budget and nothing
// used yet.
func NewGasTracker(limit int64) *GasTracker {
	return &GasTracker{GasAvailable: limit}
}

// Charge deducts the gas charge, aborting the execution with
// SysErrOutOfGas when the budget cannot cover it.
func (t *GasTracker) Charge(gas GasCharge, msg string, args ...interface{}) {
	if ok := t.TryCharge(gas); !ok {
		fmsg := fmt.Sprintf(msg, args...)
		runtime.Abortf(exitcode.SysErrOutOfGas, "gas limit %d exceeded with charge of %d: %s", t.GasAvailable, gas.Total(), fmsg)
	}
}

// TryCharge deducts the gas charge and reports whether the budget
// covered it. On failure the tracker is left fully drained.
func (t *GasTracker) TryCharge(gasCharge GasCharge) bool {
	toUse := gasCharge.Total()
	if t.Tracing {
		t.recordTrace(gasCharge, toUse)
	}

	// overflow safe
	if t.GasUsed > t.GasAvailable-toUse {
		t.GasUsed = t.GasAvailable
		return false
	}
	t.GasUsed += toUse
	return true
}

func (t *GasTracker) recordTrace(gasCharge GasCharge, toUse int64) {
	now := time.Now()
	if t.lastGasCharge != nil {
		t.lastGasCharge.TimeTaken = now.Sub(t.lastGasChargeTime)
	}

	gasTrace := types.GasTrace{
		Name:  gasCharge.Name,
		Extra: gasCharge.Extra,

		TotalGas:   toUse,
		ComputeGas: gasCharge.ComputeGas,
		StorageGas: gasCharge.StorageGas,

		TotalVirtualGas:   gasCharge.VirtualCompute + gasCharge.VirtualStorage,
		VirtualComputeGas: gasCharge.VirtualCompute,
		VirtualStorageGas: gasCharge.VirtualStorage,
	}
	if gasTrace.VirtualStorageGas == 0 {
		gasTrace.VirtualStorageGas = gasTrace.StorageGas
	}
	if gasTrace.VirtualComputeGas == 0 {
		gasTrace.VirtualComputeGas = gasTrace.ComputeGas
	}

	t.ExecutionTrace.GasCharges = append(t.ExecutionTrace.GasCharges, &gasTrace)
	t.lastGasChargeTime = now
	t.lastGasCharge = &gasTrace
}
