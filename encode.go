// Copyright 2025 Jonathan Amsterdam. All rights reserved.
// Use of this source code is governed by a
// license that can be found in the LICENSE file.

package tight

import (
	"bytes"
	"io"
)

// compress writes the compressed form of r to w.
// If freqs is nil the input is counted first and then re-read.
func (s *State) compress(w io.Writer, r io.Reader, mode Mode, freqs *FrequencyTable) error {
	if mode&ModeRLE != 0 {
		return compressError("%s mode is not implemented", ModeRLE)
	}
	if mode != ModeHuffman {
		return compressError("invalid mode bits %#x", byte(mode))
	}
	if freqs == nil {
		var err error
		if r, freqs, err = s.countInput(r); err != nil {
			return err
		}
	}

	t, err := buildTree(freqs)
	if err != nil {
		return err
	}
	s.log.Debug().Int("symbols", freqs.Symbols()).Int("depth", t.depth()).Msg("built tree")
	code := newCode(t)
	bw := newBitWriter(w, s.writeSize)
	writeHeader(bw, t, mode, s.log)

	br, err := newBitReader(r, s.readSize)
	if err != nil {
		return err
	}
	var nin int64
	for {
		c, err := br.readByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		bc := code.codes[c]
		if bc.len == 0 {
			return compressError("byte %#02x at offset %d is not in the frequency table", c, nin)
		}
		bw.writeBits(bc.val, int(bc.len))
		if err := bw.Err(); err != nil {
			return err
		}
		nin++
	}
	bw.writeEOF()
	bw.flush()
	if err := bw.Err(); err != nil {
		return err
	}
	s.in, s.written = nin, bw.offset()
	return nil
}

// countInput counts the bytes of r and returns a reader that yields the same
// bytes again. Seekable inputs are rewound; others are held in memory.
func (s *State) countInput(r io.Reader) (io.Reader, *FrequencyTable, error) {
	var freqs FrequencyTable
	if rs, ok := r.(io.ReadSeeker); ok {
		start, err := rs.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, nil, ioError("seek error in input", err)
		}
		br, err := newBitReader(rs, s.readSize)
		if err != nil {
			return nil, nil, err
		}
		if err := freqs.add(br); err != nil {
			return nil, nil, err
		}
		if _, err := rs.Seek(start, io.SeekStart); err != nil {
			return nil, nil, ioError("seek error in input", err)
		}
		return rs, &freqs, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, ioError("read error while reading input", err)
	}
	for _, c := range data {
		freqs[c]++
	}
	return bytes.NewReader(data), &freqs, nil
}
