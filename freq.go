// Copyright 2025 Jonathan Amsterdam. All rights reserved.
// Use of this source code is governed by a
// license that can be found in the LICENSE file.

package tight

import "io"

// A FrequencyTable holds the number of occurrences of each byte value.
type FrequencyTable [256]uint64

// Count returns the byte frequencies of everything read from r.
func Count(r io.Reader) (FrequencyTable, error) {
	var freqs FrequencyTable
	br, err := newBitReader(r, 0)
	if err != nil {
		return freqs, err
	}
	err = freqs.add(br)
	return freqs, err
}

func (f *FrequencyTable) add(br *bitReader) error {
	for {
		c, err := br.readByte()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		f[c]++
	}
}

// Symbols returns the number of byte values with a non-zero count.
func (f *FrequencyTable) Symbols() int {
	n := 0
	for _, c := range f {
		if c != 0 {
			n++
		}
	}
	return n
}

// DefaultFrequencies is a table biased towards English text in which every
// byte value has a non-zero count, so it can encode any input.
// Pass it to [Compress] when the input is too short for its own
// statistics to pay for the tree stored in the header.
var DefaultFrequencies = func() FrequencyTable {
	var f FrequencyTable
	for i := range f {
		f[i] = 1
	}
	for i := ' '; i <= '~'; i++ {
		f[i] = 8
	}
	// Per-ten-thousand letter frequencies of English prose.
	lower := [26]uint64{
		817, 149, 278, 425, 1270, 223, 202, 609, 697, 15, 77, 403, 241,
		675, 751, 193, 10, 599, 633, 906, 276, 98, 236, 15, 197, 7,
	}
	for i, n := range lower {
		f['a'+i] = n
		f['A'+i] = n/10 + 8
	}
	for i := '0'; i <= '9'; i++ {
		f[i] = 40
	}
	f[' '] = 1800
	f['\n'] = 200
	f['.'] = 120
	f[','] = 110
	f['\t'] = 20
	f['\r'] = 10
	f[0] = 16
	return f
}()
