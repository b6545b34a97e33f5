package awg

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes orchestrator errors. Callers branch on the code, not
// the message.
type ErrorCode string

const (
	// ErrCodePrecondition marks a caller bug caught before any device
	// interaction: wrong program depth, mismatched channel routing, use of an
	// unsynchronized orchestrator. Never retried.
	ErrCodePrecondition ErrorCode = "PRECONDITION_VIOLATION"

	// ErrCodeNameCollision means a waveform or program name already exists
	// and neither overwrite nor force was requested. The target is untouched.
	ErrCodeNameCollision ErrorCode = "NAME_COLLISION"

	// ErrCodeUnknownReference means a sequencing element cites a waveform
	// name absent from both the store and the current upload batch.
	ErrCodeUnknownReference ErrorCode = "UNKNOWN_REFERENCE"

	// ErrCodeDeviceIO wraps a failed hardware-control call. Surfaced after
	// the current operation's compensations have run.
	ErrCodeDeviceIO ErrorCode = "DEVICE_IO"

	// ErrCodeUnknownProgram means the named program is not registered.
	ErrCodeUnknownProgram ErrorCode = "UNKNOWN_PROGRAM"

	// ErrCodeNotImplemented marks operations this package deliberately
	// rejects rather than approximates (cleanup, single-program removal,
	// snapshot restore).
	ErrCodeNotImplemented ErrorCode = "NOT_IMPLEMENTED"
)

// Error is the structured error every AWG operation returns on failure.
type Error struct {
	Code     ErrorCode
	Message  string
	Program  string // affected program name, if any
	Waveform string // affected waveform name, if any
	Err      error  // underlying cause, if any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Program != "" && e.Waveform != "":
		msg = fmt.Sprintf("%s (program=%s, waveform=%s)", msg, e.Program, e.Waveform)
	case e.Program != "":
		msg = fmt.Sprintf("%s (program=%s)", msg, e.Program)
	case e.Waveform != "":
		msg = fmt.Sprintf("%s (waveform=%s)", msg, e.Waveform)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// codeIs reports whether err is (or wraps) an *Error with the given code.
func codeIs(err error, code ErrorCode) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// IsPrecondition reports a precondition violation.
func IsPrecondition(err error) bool { return codeIs(err, ErrCodePrecondition) }

// IsNameCollision reports a waveform or program name collision.
func IsNameCollision(err error) bool { return codeIs(err, ErrCodeNameCollision) }

// IsUnknownReference reports a reference to an unknown waveform name.
func IsUnknownReference(err error) bool { return codeIs(err, ErrCodeUnknownReference) }

// IsDeviceIO reports a failed hardware-control call.
func IsDeviceIO(err error) bool { return codeIs(err, ErrCodeDeviceIO) }

// IsUnknownProgram reports an operation on an unregistered program.
func IsUnknownProgram(err error) bool { return codeIs(err, ErrCodeUnknownProgram) }

// IsNotImplemented reports a deliberately rejected operation.
func IsNotImplemented(err error) bool { return codeIs(err, ErrCodeNotImplemented) }

func preconditionErr(format string, args ...any) *Error {
	return &Error{Code: ErrCodePrecondition, Message: fmt.Sprintf(format, args...)}
}

func collisionErr(kind, name string) *Error {
	e := &Error{Code: ErrCodeNameCollision, Message: kind + " name already exists"}
	if kind == "program" {
		e.Program = name
	} else {
		e.Waveform = name
	}
	return e
}

func unknownReferenceErr(programName, waveformName string) *Error {
	return &Error{
		Code:     ErrCodeUnknownReference,
		Message:  "sequencing element references a waveform that is neither stored nor staged",
		Program:  programName,
		Waveform: waveformName,
	}
}

func deviceErr(op string, err error) *Error {
	return &Error{Code: ErrCodeDeviceIO, Message: op + " failed", Err: err}
}

func unknownProgramErr(name string) *Error {
	return &Error{Code: ErrCodeUnknownProgram, Message: "program is not registered", Program: name}
}

func notImplementedErr(op string) *Error {
	return &Error{Code: ErrCodeNotImplemented, Message: op + " is not implemented"}
}
