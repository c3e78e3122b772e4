package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/ipfs/go-cid"
)

// MessageReceipt is the result of a message application.
type MessageReceipt struct {
	ExitCode exitcode.ExitCode
	Return   []byte
	GasUsed  int64
	// EventsRoot is the root of an AMT of the events emitted while applying
	// the message, or nil when none were emitted.
	EventsRoot *cid.Cid
}

func NewMessageReceipt(exitCode exitcode.ExitCode, ret []byte, gasUsed int64) MessageReceipt {
	return MessageReceipt{
		ExitCode: exitCode,
		Return:   ret,
		GasUsed:  gasUsed,
	}
}

func (r *MessageReceipt) String() string {
	errStr := "(error encoding MessageReceipt)"
	js, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errStr
	}
	return fmt.Sprintf("MessageReceipt: %s", string(js))
}

func (r *MessageReceipt) Equals(o *MessageReceipt) bool {
	eventsRootEq := r.EventsRoot == o.EventsRoot ||
		(r.EventsRoot != nil && o.EventsRoot != nil && *r.EventsRoot == *o.EventsRoot)
	return r.ExitCode == o.ExitCode && bytes.Equal(r.Return, o.Return) &&
		r.GasUsed == o.GasUsed && eventsRootEq
}
