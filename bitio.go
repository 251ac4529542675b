// Copyright 2025 Jonathan Amsterdam. All rights reserved.
// Use of this source code is governed by a
// license that can be found in the LICENSE file.

package tight

import (
	"crypto/md5"
	"errors"
	"hash"
	"io"
)

const (
	// accBits is the width of the bit accumulators.
	accBits = 16

	defaultBufferSize = 64 << 10
)

// A bitWriter buffers bytes for its contained [io.Writer] and packs
// up to 16 bits at a time into an accumulator, low-order bits first.
// Write errors are sticky and reported by [bitWriter.Close]
// or [bitWriter.Err]; once an error occurs nothing more is written.
type bitWriter struct {
	err error
	w   io.Writer
	buf []byte // pending bytes; flushed to w when full
	n   int64  // bytes emitted, including those still in buf
	// bits holds unwritten bits. Only the low-order accBits bits are valid
	// between calls to writeBits.
	bits  uint32
	nbits int // number of valid bits in bits; always <= accBits
	// digest, when non-nil, sees every byte emitted.
	digest hash.Hash
}

func newBitWriter(w io.Writer, size int) *bitWriter {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &bitWriter{w: w, buf: make([]byte, 0, size)}
}

func (w *bitWriter) writeByte(b byte) {
	if w.err != nil {
		return
	}
	if len(w.buf) == cap(w.buf) {
		w.flush()
		if w.err != nil {
			return
		}
	}
	w.buf = append(w.buf, b)
	w.n++
	if w.digest != nil {
		w.digest.Write([]byte{b})
	}
}

// writeBits writes the n low-order bits of b, n <= 16.
func (w *bitWriter) writeBits(b uint32, n int) {
	if n < 0 || n > accBits {
		panic("bad number of bits to write")
	}
	w.bits |= lowOrderBits(b, n) << w.nbits
	w.nbits += n
	if w.nbits > accBits { // accumulator overflowed: emit its low 16 bits
		w.writeByte(byte(w.bits))
		w.writeByte(byte(w.bits >> 8))
		w.bits >>= accBits
		w.nbits -= accBits
	}
}

// flushPending zero-pads the accumulator to a byte boundary and emits it.
func (w *bitWriter) flushPending() {
	for w.nbits > 0 {
		w.writeByte(byte(w.bits))
		w.bits >>= 8
		w.nbits = max(w.nbits-8, 0)
	}
	w.bits = 0
}

// Bias added to the count of trailing payload bits stored in the
// low eofBits of the final byte.
const (
	eofBits = 3
	eofBias = 2
	// maxPackedBits is the most payload bits that share a byte with the marker.
	maxPackedBits = 8 - eofBits
)

// writeEOF drains the accumulator and terminates the stream with a
// trailer telling the decoder how many bits of the final byte(s) are payload.
//
// With n pending bits left after whole bytes are emitted:
//
//	n <= 5:  one byte, payload<<3 | (n + eofBias)
//	n >= 6:  the payload byte, then a byte holding n - (8 - eofBias)
//
// so a marker >= eofBias is always a packed trailer and a smaller
// one always refers to the byte before it.
func (w *bitWriter) writeEOF() {
	for w.nbits >= 8 {
		w.writeByte(byte(w.bits))
		w.bits >>= 8
		w.nbits -= 8
	}
	n := w.nbits
	payload := byte(lowOrderBits(w.bits, n))
	if n <= maxPackedBits {
		w.writeByte(payload<<eofBits | byte(n+eofBias))
	} else {
		w.writeByte(payload)
		w.writeByte(byte(n - (8 - eofBias)))
	}
	w.bits = 0
	w.nbits = 0
}

// beginDigest starts feeding emitted bytes to a fresh MD5 hash.
// Pending bits must have been flushed.
func (w *bitWriter) beginDigest() {
	if w.nbits != 0 {
		panic("beginDigest on a non-byte boundary")
	}
	w.digest = md5.New()
}

// endDigest stops digesting and returns the sum of the bytes emitted since beginDigest.
func (w *bitWriter) endDigest() [md5.Size]byte {
	var sum [md5.Size]byte
	w.digest.Sum(sum[:0])
	w.digest = nil
	return sum
}

// offset returns the number of bytes emitted so far.
func (w *bitWriter) offset() int64 { return w.n }

// flush writes the byte buffer to the underlying writer.
// Bits still in the accumulator are not written.
func (w *bitWriter) flush() {
	if w.err != nil || len(w.buf) == 0 {
		return
	}
	if _, err := w.w.Write(w.buf); err != nil {
		w.err = ioError("write error while writing output", err)
	}
	w.buf = w.buf[:0]
}

// Close flushes pending bits and buffered bytes.
func (w *bitWriter) Close() error {
	w.flushPending()
	w.flush()
	return w.err
}

func (w *bitWriter) Err() error {
	return w.err
}

// A bitReader serves bytes from a buffer refilled from its contained [io.Reader].
// While decoding the header it can also read up to 8 bits at a time
// through a 16-bit accumulator, low-order bits first.
type bitReader struct {
	r     io.Reader
	buf   []byte
	pos   int   // next unread byte in buf
	base  int64 // stream offset of buf[0]
	eof   bool
	bits  uint32 // unread header bits; only the low nbits are valid
	nbits int
}

// newBitReader returns a reader positioned at the current offset of r.
// If r is an [io.Seeker], offsets are absolute stream positions.
func newBitReader(r io.Reader, size int) (*bitReader, error) {
	if size <= 0 {
		size = defaultBufferSize
	}
	br := &bitReader{r: r, buf: make([]byte, 0, size)}
	if s, ok := r.(io.Seeker); ok {
		off, err := s.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, ioError("seek error in input", err)
		}
		br.base = off
	}
	return br, nil
}

// fill refills buf. It reports io.EOF when the underlying reader is exhausted.
func (r *bitReader) fill() error {
	if r.eof {
		return io.EOF
	}
	r.base += int64(len(r.buf))
	r.buf = r.buf[:cap(r.buf)]
	n, err := io.ReadAtLeast(r.r, r.buf, 1)
	r.buf = r.buf[:n]
	r.pos = 0
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		r.eof = true
		return io.EOF
	default:
		return ioError("read error while reading input", err)
	}
}

// readByte returns the next byte, or io.EOF at the end of input.
func (r *bitReader) readByte() (byte, error) {
	if r.pos == len(r.buf) {
		if err := r.fill(); err != nil {
			return 0, err
		}
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// readBits reads n bits, up to 8. It is only used for header fields;
// running out of input is a HeaderError.
func (r *bitReader) readBits(n int) (byte, error) {
	if n <= 0 || n > 8 {
		panic("bad number of bits to read")
	}
	if r.nbits < n {
		b, err := r.readByte()
		if err == io.EOF {
			return 0, headerError("missing tree bits")
		}
		if err != nil {
			return 0, err
		}
		r.bits |= uint32(b) << r.nbits
		r.nbits += 8
	}
	res := lowOrderBits(r.bits, n)
	r.bits >>= n
	r.nbits -= n
	return byte(res), nil
}

// readPending discards the bits left in the accumulator and returns
// them along with their count.
func (r *bitReader) readPending() (byte, int) {
	n := r.nbits
	res := byte(lowOrderBits(r.bits, n))
	r.bits = 0
	r.nbits = 0
	return res, n
}

// offset returns the stream offset of the next unread byte.
func (r *bitReader) offset() int64 {
	return r.base + int64(r.pos)
}

// seek repositions the underlying reader at off and discards buffered input.
func (r *bitReader) seek(off int64) error {
	s, ok := r.r.(io.Seeker)
	if !ok {
		return ioError("input is not seekable")
	}
	if _, err := s.Seek(off, io.SeekStart); err != nil {
		return ioError("seek error in input", err)
	}
	r.buf = r.buf[:0]
	r.pos = 0
	r.base = off
	r.eof = false
	r.bits = 0
	r.nbits = 0
	return nil
}

// digestRegion re-reads length bytes starting at start through a fresh
// buffer and returns their MD5 sum. Afterwards the reader is positioned
// at start+length.
func (r *bitReader) digestRegion(start, length int64) ([md5.Size]byte, error) {
	var sum [md5.Size]byte
	if err := r.seek(start); err != nil {
		return sum, err
	}
	h := md5.New()
	for length > 0 {
		if r.pos == len(r.buf) {
			if err := r.fill(); err == io.EOF {
				return sum, headerError("region to digest is truncated")
			} else if err != nil {
				return sum, err
			}
		}
		chunk := r.buf[r.pos:]
		if int64(len(chunk)) > length {
			chunk = chunk[:length]
		}
		h.Write(chunk)
		r.pos += len(chunk)
		length -= int64(len(chunk))
	}
	h.Sum(sum[:0])
	return sum, nil
}

// lowOrderBits returns the n low-order bits of u.
func lowOrderBits[T uint8 | uint16 | uint32 | uint64](u T, n int) T {
	return u & ((T(1) << n) - 1)
}
