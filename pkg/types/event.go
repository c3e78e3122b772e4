package types

import (
	"github.com/filecoin-project/go-state-types/abi"
)

// EventEntry flags.
const (
	EventFlagIndexedKey   = 0x01
	EventFlagIndexedValue = 0x02
)

// EventEntry is a typed key/value pair within an event.
type EventEntry struct {
	// Flags describe how the entry should be indexed.
	Flags uint8
	Key   string
	// Codec of the value, normally DAG-CBOR or Raw.
	Codec uint64
	Value []byte
}

// Event is emitted by an actor during execution. Events of one message are
// committed into an AMT whose root lands in the receipt.
type Event struct {
	// Emitter is the ID of the actor that emitted the event.
	Emitter abi.ActorID
	Entries []EventEntry
}
