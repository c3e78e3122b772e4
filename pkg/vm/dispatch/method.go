package dispatch

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/filecoin-project/go-state-types/cbor"
)

// methodSignature wraps one exported actor method and decodes raw
// parameter bytes into the argument type it declares.
type methodSignature struct {
	method reflect.Value
}

// argNil returns the zero value of the method's parameter type.
func (ms *methodSignature) argNil() reflect.Value {
	t := ms.method.Type().In(1)
	return reflect.New(t).Elem()
}

// argValue decodes raw into a freshly allocated value of the method's
// parameter type, which must be a pointer to a cbor-decodable struct.
func (ms *methodSignature) argValue(raw []byte) (interface{}, error) {
	t := ms.method.Type().In(1)
	if t.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("method argument must be a pointer, got %s", t.Kind())
	}

	obj := reflect.New(t.Elem()).Interface()
	um, ok := obj.(cbor.Unmarshaler)
	if !ok {
		return nil, fmt.Errorf("method argument %s cannot be decoded from cbor", t)
	}
	if err := um.UnmarshalCBOR(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return obj, nil
}
