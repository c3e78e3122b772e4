package aerrors

import (
	"fmt"

	"github.com/filecoin-project/go-state-types/exitcode"
	"golang.org/x/xerrors"
)

// IsFatal reports whether the error underneath is a fatal (system) error.
// Fatal errors must never be converted into receipts; they abort the
// whole message application.
func IsFatal(err ActorError) bool {
	return err != nil && err.IsFatal()
}

// RetCode extracts the exit code that should land in the receipt.
func RetCode(err ActorError) exitcode.ExitCode {
	if err == nil {
		return 0
	}
	return err.RetCode()
}

// ActorError is an error attributable to actor execution, carrying the
// fatal-vs-exit-code distinction through the call stack.
type ActorError interface {
	error
	IsFatal() bool
	RetCode() exitcode.ExitCode
}

type actorError struct {
	fatal   bool
	retCode exitcode.ExitCode

	msg   string
	frame xerrors.Frame
	err   error
}

func (e *actorError) IsFatal() bool {
	return e.fatal
}

func (e *actorError) RetCode() exitcode.ExitCode {
	return e.retCode
}

func (e *actorError) Error() string {
	return fmt.Sprint(e)
}

func (e *actorError) Format(s fmt.State, v rune) {
	xerrors.FormatError(e, s, v)
}

func (e *actorError) FormatError(p xerrors.Printer) (next error) {
	p.Print(e.msg)
	if e.fatal {
		p.Print(" (FATAL)")
	} else {
		p.Printf(" (RetCode=%d)", e.retCode)
	}

	e.frame.Format(p)
	return e.err
}

func (e *actorError) Unwrap() error {
	return e.err
}
