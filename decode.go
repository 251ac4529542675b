// Copyright 2025 Jonathan Amsterdam. All rights reserved.
// Use of this source code is governed by a
// license that can be found in the LICENSE file.

package tight

import (
	"io"
)

// window is the number of bits the payload decoder keeps in view:
// two bytes, the second of which is only consumed once the next byte is known,
// so that the final one or two bytes can be read as the trailer.
const window = 16

// decompress reads a compressed file from r and writes its contents to w.
func (s *State) decompress(w io.Writer, r io.ReadSeeker) error {
	br, err := newBitReader(r, s.readSize)
	if err != nil {
		return err
	}
	_, t, err := readHeader(br, s.log)
	if err != nil {
		return err
	}
	s.tree = t
	bw := newBitWriter(w, s.writeSize)
	start := br.offset()
	if err := decodePayload(bw, br, t); err != nil {
		return err
	}
	bw.flush()
	if err := bw.Err(); err != nil {
		return err
	}
	s.in, s.written = br.offset()-start, bw.offset()
	return nil
}

// A walker decodes symbols by walking a tree one bit at a time.
// Its position persists between calls, so a code can be split
// across reads.
type walker struct {
	t    *tree
	at   int16 // checkpoint: where the next walk resumes
	code uint32
	left int // number of valid bits in code
}

func newWalker(t *tree) *walker {
	return &walker{t: t, at: t.root}
}

// walk consumes bits, starting at the checkpoint, until it reaches a leaf or
// only limit bits remain. It reports whether a symbol was found.
// The single leaf of a one-symbol tree is reached with a 0 bit.
func (d *walker) walk(limit int) (byte, bool, error) {
	if root := &d.t.nodes[d.t.root]; root.isLeaf() {
		if d.left <= limit {
			return 0, false, nil
		}
		bit := d.code & 1
		d.code >>= 1
		d.left--
		if bit != 0 {
			return 0, false, decompressError("invalid Huffman code")
		}
		return root.sym, true, nil
	}
	for {
		n := &d.t.nodes[d.at]
		if n.isLeaf() {
			d.at = d.t.root
			return n.sym, true, nil
		}
		if d.left <= limit {
			return 0, false, nil
		}
		if d.code&1 == 0 {
			d.at = n.left
		} else {
			d.at = n.right
		}
		d.code >>= 1
		d.left--
	}
}

// decodePayload decodes everything after the header.
func decodePayload(bw *bitWriter, br *bitReader, t *tree) error {
	d := newWalker(t)
	c1, err := br.readByte()
	if err == io.EOF {
		return decompressError("missing end-of-stream marker")
	}
	if err != nil {
		return err
	}
	c2, err := br.readByte()
	if err == io.EOF {
		// The whole payload is the trailer.
		m := c1 & (1<<eofBits - 1)
		if m < eofBias {
			return decompressError("truncated end-of-stream marker")
		}
		d.code = uint32(c1 >> eofBits)
		d.left = int(m - eofBias)
		return d.finish(bw)
	}
	if err != nil {
		return err
	}

	d.code = uint32(c2)<<8 | uint32(c1)
	d.left = window
	for {
		ahead, err := br.readByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		for {
			sym, ok, err := d.walk(window / 2)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			bw.writeByte(sym)
		}
		if err := bw.Err(); err != nil {
			return err
		}
		d.code |= uint32(ahead) << d.left
		d.left += 8
	}

	// The window now holds the last two bytes of the file.
	prev, last := byte(d.code), byte(d.code>>8)
	if m := last & (1<<eofBits - 1); m >= eofBias {
		n := int(m - eofBias)
		d.code = uint32(prev) | lowOrderBits(uint32(last>>eofBits), n)<<8
		d.left = 8 + n
	} else {
		n := int(m) + 8 - eofBias
		d.code = lowOrderBits(uint32(prev), n)
		d.left = n
	}
	return d.finish(bw)
}

// finish decodes the remaining bits, all of which must form complete codes.
func (d *walker) finish(bw *bitWriter) error {
	for d.left > 0 {
		sym, ok, err := d.walk(0)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		bw.writeByte(sym)
	}
	if d.at != d.t.root {
		return decompressError("invalid Huffman code at end of stream")
	}
	return bw.Err()
}
