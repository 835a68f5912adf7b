package engine

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// Code classifies a Status the way RocksDB status codes do.
type Code int

const (
	CodeOK Code = iota
	CodeNotFound
	CodeCorruption
	CodeNotSupported
	CodeInvalidArgument
	CodeIOError
	CodeAlreadyExists
	CodeReadOnly
	CodeClosed
)

var codePrefixes = [...]string{
	CodeOK:              "OK",
	CodeNotFound:        "NotFound: ",
	CodeCorruption:      "Corruption: ",
	CodeNotSupported:    "Not implemented: ",
	CodeInvalidArgument: "Invalid argument: ",
	CodeIOError:         "IO error: ",
	CodeAlreadyExists:   "Already exists: ",
	CodeReadOnly:        "Not implemented: ",
	CodeClosed:          "Shutdown in progress: ",
}

func (c Code) prefix() string {
	if c >= 0 && int(c) < len(codePrefixes) {
		return codePrefixes[c]
	}
	return "Unknown: "
}

// Status is the error type every Engine method returns.
type Status struct {
	Code  Code
	Msg   string
	cause error
}

func (s *Status) Error() string {
	return s.Code.prefix() + s.Msg
}

// Unwrap returns the underlying engine error, if any.
func (s *Status) Unwrap() error { return s.cause }

func newStatus(code Code, format string, args ...any) *Status {
	return &Status{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// StatusToString renders err the way RocksDB's Status::ToString does.
func StatusToString(err error) string {
	if err == nil {
		return "OK"
	}
	return Classify(err).Error()
}

// CodeOf returns the Code of err, CodeOK for nil.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	return Classify(err).Code
}

// Classify converts any error produced below the contract into a *Status.
// A *Status anywhere in the chain is returned as is.
func Classify(err error) *Status {
	if err == nil {
		return nil
	}
	var st *Status
	if errors.As(err, &st) {
		return st
	}

	code := CodeIOError
	switch {
	case errors.Is(err, pebble.ErrNotFound), errors.Is(err, pebble.ErrDBDoesNotExist):
		code = CodeNotFound
	case errors.Is(err, pebble.ErrDBAlreadyExists):
		code = CodeAlreadyExists
	case errors.Is(err, pebble.ErrReadOnly):
		code = CodeReadOnly
	case errors.Is(err, pebble.ErrClosed):
		code = CodeClosed
	case errors.Is(err, errCorruption), looksCorrupt(err):
		code = CodeCorruption
	}
	return &Status{Code: code, Msg: err.Error(), cause: err}
}

// Pebble reports most on-disk damage as plain wrapped errors.
func looksCorrupt(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "corrupt") ||
		strings.Contains(msg, "checksum mismatch") ||
		strings.Contains(msg, "invalid table")
}
