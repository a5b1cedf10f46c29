package protocol

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	// Rejected locally before any network call; never retried.
	ERR_INPUT    ErrorCode = "ERR_INPUT"
	ERR_ENCODING ErrorCode = "ERR_ENCODING"

	// Derivation ran out of bump candidates (all 256 digests on-curve).
	ERR_DERIVE_EXHAUSTED ErrorCode = "ERR_DERIVE_EXHAUSTED"

	// Wrong lifecycle state, expired window, too few oracles, deviation too high.
	ERR_PRECONDITION ErrorCode = "ERR_PRECONDITION"

	// Parsed from a failed dry-run: insufficient balance, custom program codes.
	ERR_SIMULATION ErrorCode = "ERR_SIMULATION"

	// RPC timeouts and dropped connections; eligible for bounded retry with a
	// fresh blockhash.
	ERR_NETWORK ErrorCode = "ERR_NETWORK"

	// Broadcast but not confirmed within the blockhash validity window.
	// Indeterminate: the caller must re-query state before assuming anything.
	ERR_UNCONFIRMED ErrorCode = "ERR_UNCONFIRMED"
)

type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func Errf(code ErrorCode, format string, args ...interface{}) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf returns the taxonomy code carried by err, or "" if err does not wrap
// a protocol error.
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
