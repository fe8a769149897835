package common

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrInvalidSchema      = errors.New("schema must have at least one field")
	ErrIndexOutOfRange    = errors.New("index out of range")
	ErrTypeMismatch       = errors.New("field type does not match schema")
	ErrElementNotFound    = errors.New("element not found")
	ErrUnsetField         = errors.New("field is not set")
	ErrPageOutOfRange     = errors.New("page is beyond the end of file")
	ErrWrongFile          = errors.New("page does not belong to this file")
	ErrMalformedFile      = errors.New("file length is not a multiple of page size")
	ErrIO                 = errors.New("io error")
	ErrSerialization      = errors.New("serialization error")
	ErrSchemaMismatch     = errors.New("tuple schema does not match file schema")
	ErrMissingLocationTag = errors.New("tuple has no record id")
	ErrDeadlock           = errors.New("deadlock detected")
	ErrBufferFull         = errors.New("all pages in buffer pool are dirty")
	ErrFileNotRegistered  = errors.New("file is not registered")
	ErrTxnNotActive       = errors.New("transaction is not active")
)

// ioError keeps the original os error as its cause while still matching ErrIO with errors.Is.
type ioError struct {
	msg   string
	cause error
}

func (e *ioError) Error() string {
	return fmt.Sprintf("%s: %v", e.msg, e.cause)
}

func (e *ioError) Unwrap() error {
	return e.cause
}

func (e *ioError) Is(target error) bool {
	return target == ErrIO
}

// WrapIO annotates an error returned by file operations. It returns nil if err is nil.
func WrapIO(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&ioError{msg: fmt.Sprintf(format, args...), cause: err})
}
