// Copyright 2025 Jonathan Amsterdam. All rights reserved.
// Use of this source code is governed by a
// license that can be found in the LICENSE file.

// Package tight implements a single-file Huffman compressor.
//
// A compressed file starts with a header holding a magic number, the format
// version, the OS that wrote it, the compression mode, the Huffman tree and
// an MD5 digest of the tree. The payload that follows is the bit-packed
// sequence of codes, ended by a one or two byte trailer that records how many
// bits of the final bytes are significant.
package tight

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// A Phase is the position of a [State] in its call cycle.
type Phase uint8

const (
	Idle Phase = iota
	InProgress
	Done
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case InProgress:
		return "in progress"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", p)
}

// A State runs compressions and decompressions one at a time and remembers
// the outcome of the last one. It is not safe for concurrent use.
type State struct {
	log                 zerolog.Logger
	readSize, writeSize int

	phase Phase
	err   error
	// tree is the tree read from the header of the file being decompressed.
	tree *tree
	// Byte counts of the last successful call.
	in, written int64
}

// An Option configures a [State].
type Option func(*State)

// WithLogger sets the logger for tracing headers and outcomes.
// The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *State) { s.log = l }
}

// WithBufferSizes sets the sizes of the read and write buffers.
// Non-positive sizes select the default of 64KiB.
func WithBufferSizes(read, write int) Option {
	return func(s *State) {
		s.readSize = read
		s.writeSize = write
	}
}

// New returns an idle State.
func New(opts ...Option) *State {
	s := &State{log: zerolog.Nop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Compress writes the compressed form of r to w and returns the outcome.
// If freqs is nil, the codes are built from the byte counts of r itself;
// r is then read twice, by seeking back if it is an [io.Seeker] and from
// memory otherwise. A non-nil freqs must count every byte present in r.
func (s *State) Compress(w io.Writer, r io.Reader, mode Mode, freqs *FrequencyTable) Status {
	return s.protectedCall("compress", CompressError, func() error {
		return s.compress(w, r, mode, freqs)
	})
}

// Decompress reads a compressed file from r and writes its contents to w.
// r must be positioned at the start of the header; it is seeked to verify
// the header checksum.
func (s *State) Decompress(w io.Writer, r io.ReadSeeker) Status {
	return s.protectedCall("decompress", DecompressError, func() error {
		return s.decompress(w, r)
	})
}

// protectedCall runs f as the body of one call, then releases everything the
// call acquired and records its outcome, however f returned.
func (s *State) protectedCall(op string, busy Status, f func() error) (status Status) {
	if s.phase == InProgress {
		s.err = newError(busy, "state is busy with another call")
		return busy
	}
	s.phase = InProgress
	s.err = nil
	s.in, s.written = 0, 0
	defer func() {
		s.tree = nil
		if s.err != nil {
			s.phase = Failed
			s.log.Error().Err(s.err).Str("op", op).Stringer("status", status).Msg("failed")
			return
		}
		s.phase = Done
		s.log.Debug().Str("op", op).Int64("in", s.in).Int64("out", s.written).Msg("done")
	}()
	s.err = f()
	return StatusOf(s.err)
}

// Phase reports where s is in its call cycle.
func (s *State) Phase() Phase { return s.phase }

// Err returns the error of the last call, or nil if it succeeded.
func (s *State) Err() error { return s.err }

// LastErrorMessage returns the message of the last call's error,
// or the empty string if it succeeded.
func (s *State) LastErrorMessage() string {
	if s.err == nil {
		return ""
	}
	return s.err.Error()
}

// Counts returns the number of bytes read and written by the last successful call.
// For decompression the input count covers the payload only.
func (s *State) Counts() (in, out int64) { return s.in, s.written }

// Compress compresses r to w with a new [State]. See [State.Compress].
func Compress(w io.Writer, r io.Reader, mode Mode, freqs *FrequencyTable) error {
	s := New()
	s.Compress(w, r, mode, freqs)
	return s.Err()
}

// Decompress decompresses r to w with a new [State]. See [State.Decompress].
func Decompress(w io.Writer, r io.ReadSeeker) error {
	s := New()
	s.Decompress(w, r)
	return s.Err()
}

// CompressBytes returns the compressed form of data, with codes built from data.
func CompressBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := Compress(&buf, bytes.NewReader(data), ModeHuffman, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecompressBytes returns the contents of the compressed file data.
func DecompressBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := Decompress(&buf, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// IsFormatError reports whether err was caused by malformed compressed data
// rather than by I/O or resource limits.
func IsFormatError(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Status {
	case HeaderError, VersionError, DecompressError:
		return true
	}
	return false
}
