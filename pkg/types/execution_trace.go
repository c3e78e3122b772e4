package types

import (
	"time"
)

// ExecutionTrace records one invocation frame and its nested sends. Only
// populated when detailed tracing is enabled.
type ExecutionTrace struct {
	Msg        *Message
	MsgRct     *MessageReceipt
	Error      string
	Duration   time.Duration
	GasCharges []*GasTrace

	Subcalls []ExecutionTrace
}

// GasTrace is one gas charge inside an execution trace.
type GasTrace struct {
	Name  string
	Extra interface{}

	TotalGas   int64
	ComputeGas int64
	StorageGas int64

	TotalVirtualGas   int64
	VirtualComputeGas int64
	VirtualStorageGas int64

	TimeTaken time.Duration
}
