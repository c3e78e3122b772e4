package runtime

import "fmt"

// ErrorNumber is a syscall-level failure reported to guest code. Error
// numbers are distinct from exit codes: an exit code ends a frame, an
// error number is the result of one syscall and the guest may recover
// from it.
type ErrorNumber uint32

const (
	// ErrIllegalArgument means a syscall parameter was invalid.
	ErrIllegalArgument ErrorNumber = 1
	// ErrIllegalOperation means the operation is not allowed in this context.
	ErrIllegalOperation ErrorNumber = 2
	// ErrLimitExceeded means some internal limit (e.g. call depth) was exceeded.
	ErrLimitExceeded ErrorNumber = 3
	// ErrAssertionFailed means the system failed an internal invariant check.
	ErrAssertionFailed ErrorNumber = 4
	// ErrInsufficientFunds means an attempted transfer exceeded the balance.
	ErrInsufficientFunds ErrorNumber = 5
	// ErrNotFound means the requested resource does not exist.
	ErrNotFound ErrorNumber = 6
	// ErrInvalidHandle means the block handle is not valid in this frame.
	ErrInvalidHandle ErrorNumber = 7
	// ErrIllegalCid means the cid could not be parsed or is not acceptable.
	ErrIllegalCid ErrorNumber = 8
	// ErrIllegalCodec means the ipld codec is not allowed here.
	ErrIllegalCodec ErrorNumber = 9
	// ErrSerialization means a value failed to serialize or deserialize.
	ErrSerialization ErrorNumber = 10
	// ErrForbidden means the caller may not perform the operation.
	ErrForbidden ErrorNumber = 11
	// ErrBufferTooSmall means the guest-supplied buffer cannot hold the result.
	ErrBufferTooSmall ErrorNumber = 12
)

func (e ErrorNumber) String() string {
	switch e {
	case ErrIllegalArgument:
		return "IllegalArgument"
	case ErrIllegalOperation:
		return "IllegalOperation"
	case ErrLimitExceeded:
		return "LimitExceeded"
	case ErrAssertionFailed:
		return "AssertionFailed"
	case ErrInsufficientFunds:
		return "InsufficientFunds"
	case ErrNotFound:
		return "NotFound"
	case ErrInvalidHandle:
		return "InvalidHandle"
	case ErrIllegalCid:
		return "IllegalCid"
	case ErrIllegalCodec:
		return "IllegalCodec"
	case ErrSerialization:
		return "Serialization"
	case ErrForbidden:
		return "Forbidden"
	case ErrBufferTooSmall:
		return "BufferTooSmall"
	default:
		return fmt.Sprintf("ErrorNumber(%d)", uint32(e))
	}
}

// SyscallError pairs an error number with human readable context. It is
// the error type surfaced by kernel operations whose failure the guest
// is allowed to observe.
type SyscallError struct {
	Number ErrorNumber
	Msg    string
}

func (e SyscallError) Error() string {
	return fmt.Sprintf("syscall error %s: %s", e.Number, e.Msg)
}

// NewSyscallError constructs a SyscallError with a formatted message.
func NewSyscallError(n ErrorNumber, msg string, args ...interface{}) *SyscallError {
	return &SyscallError{Number: n, Msg: fmt.Sprintf(msg, args...)}
}
