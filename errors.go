// Copyright 2025 Jonathan Amsterdam. All rights reserved.
// Use of this source code is governed by a
// license that can be found in the LICENSE file.

package tight

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/duke-git/lancet/v2/slice"
)

// A Status classifies the outcome of a [State.Compress] or [State.Decompress] call.
// The numeric values are used as process exit codes by the tight command.
type Status uint8

const (
	Ok Status = iota
	IoError
	CompressError
	DecompressError
	HeaderError
	VersionError
	MemoryError
	LimitError
)

var statusNames = [...]string{
	Ok:              "ok",
	IoError:         "I/O error",
	CompressError:   "compress error",
	DecompressError: "decompress error",
	HeaderError:     "header error",
	VersionError:    "version error",
	MemoryError:     "memory error",
	LimitError:      "limit error",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return "status(" + strconv.Itoa(int(s)) + ")"
}

// An Error is the error type returned by every failing operation in this package.
type Error struct {
	Status Status
	Msg    string
	Err    error // underlying cause, if any
	file   string
	line   int
}

func (e *Error) Error() string {
	s := "tight: " + e.Status.String() + ": " + e.Msg
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// String is Error with the source location that raised it, for debugging.
func (e *Error) String() string {
	return e.Error() + "\n" + e.file + ":" + strconv.Itoa(e.line)
}

func newError(status Status, msg string, errs ...error) *Error {
	e := &Error{Status: status, Msg: msg}
	if errs = slice.Compact(errs); len(errs) > 0 {
		e.Err = errs[0]
	}
	_, e.file, e.line, _ = runtime.Caller(2)
	return e
}

func ioError(msg string, errs ...error) *Error { return newError(IoError, msg, errs...) }

func compressError(format string, args ...any) *Error {
	return newError(CompressError, fmt.Sprintf(format, args...))
}

func decompressError(format string, args ...any) *Error {
	return newError(DecompressError, fmt.Sprintf(format, args...))
}

func headerError(format string, args ...any) *Error {
	return newError(HeaderError, fmt.Sprintf(format, args...))
}

func versionError(major byte) *Error {
	return newError(VersionError, fmt.Sprintf("unsupported major version %d (want %d)", major, Version[0]))
}

func limitError(what string, limit uint64) *Error {
	return newError(LimitError, fmt.Sprintf("%s exceeds limit %d", what, limit))
}

// StatusOf reports the Status carried by err.
// It returns Ok for a nil error and IoError for errors not raised by this package.
func StatusOf(err error) Status {
	if err == nil {
		return Ok
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return IoError
}
