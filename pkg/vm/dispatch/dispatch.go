package dispatch

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/cbor"
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/ipfs/go-cid"
)

// Actor is implemented by every native registry actor.
type Actor interface {
	// Exports lists the methods callable on the actor, indexed by method number.
	Exports() []interface{}
	// Code returns the code cid the actor is registered under.
	Code() cid.Cid
	// State returns an empty state object suitable for decoding the
	// actor's persisted state.
	State() cbor.Er
}

// Dispatcher invokes a method on a native actor by number, decoding the
// parameter bytes into the argument type the method declares.
type Dispatcher interface {
	// Dispatch calls the method. rt is passed through as the method's first
	// argument. params may be nil, raw cbor bytes, or an already-typed value.
	Dispatch(method abi.MethodNum, nv network.Version, rt interface{}, params interface{}) ([]byte, *DispatchError)
}

type actorDispatcher struct {
	code  cid.Cid
	actor Actor
}

var _ Dispatcher = (*actorDispatcher)(nil)

// Dispatch implements Dispatcher.
func (d *actorDispatcher) Dispatch(methodNum abi.MethodNum, nv network.Version, rt interface{}, params interface{}) ([]byte, *DispatchError) {
	m, derr := d.signature(methodNum)
	if derr != nil {
		return []byte{}, derr
	}

	// Parameter decode failures surfaced exit code 1 before serialization
	// errors got their own code.
	decodeErr := exitcode.ErrSerialization
	if nv < network.Version7 {
		decodeErr = 1
	}

	args := []reflect.Value{reflect.ValueOf(rt)}
	switch v := params.(type) {
	case nil:
		args = append(args, m.argNil())
	case []byte:
		obj, err := m.argValue(v)
		if err != nil {
			return []byte{}, NewDispatchError(decodeErr, "failed to decode params: %v", err)
		}
		args = append(args, reflect.ValueOf(obj))
	case cbor.Marshaler:
		buf := new(bytes.Buffer)
		if err := v.MarshalCBOR(buf); err != nil {
			return []byte{}, NewDispatchError(decodeErr, "failed to re-encode params: %v", err)
		}
		obj, err := m.argValue(buf.Bytes())
		if err != nil {
			return []byte{}, NewDispatchError(decodeErr, "failed to decode params: %v", err)
		}
		args = append(args, reflect.ValueOf(obj))
	default:
		args = append(args, reflect.ValueOf(params))
	}

	out := m.method.Call(args)

	// A unit return is a typed nil; IsNil is needed because an interface
	// holding a nil pointer does not compare equal to nil.
	if len(out) == 0 || (out[0].Kind() != reflect.Struct && out[0].IsNil()) {
		return nil, nil
	}

	switch ret := out[0].Interface().(type) {
	case []byte:
		return ret, nil
	case *abi.EmptyValue:
		return []byte{}, nil
	case cbor.Marshaler:
		buf := new(bytes.Buffer)
		if err := ret.MarshalCBOR(buf); err != nil {
			return []byte{}, NewDispatchError(exitcode.SysErrSenderStateInvalid, "failed to marshal return value: %v", err)
		}
		return buf.Bytes(), nil
	case nil:
		return []byte{}, nil
	default:
		return []byte{}, NewDispatchError(exitcode.SysErrInvalidMethod, "method returned an unhandled type")
	}
}

func (d *actorDispatcher) signature(methodNum abi.MethodNum) (*methodSignature, *DispatchError) {
	exports := d.actor.Exports()

	idx := int(methodNum)
	if idx >= len(exports) || exports[idx] == nil {
		return nil, NewDispatchError(exitcode.SysErrInvalidMethod, "method %d undefined on actor %s", methodNum, d.code)
	}
	return &methodSignature{method: reflect.ValueOf(exports[idx])}, nil
}

// DispatchError is an error raised while routing a call to a native actor,
// before or after the actor code itself runs.
type DispatchError struct {
	code exitcode.ExitCode
	msg  string
}

func NewDispatchError(code exitcode.ExitCode, msg string, args ...interface{}) *DispatchError {
	return &DispatchError{code: code, msg: fmt.Sprintf(msg, args...)}
}

func (err *DispatchError) ExitCode() exitcode.ExitCode {
	return err.code
}

func (err *DispatchError) Error() string {
	return err.msg
}
