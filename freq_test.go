// Copyright 2025 Jonathan Amsterdam. All rights reserved.
// Use of this source code is governed by a
// license that can be found in the LICENSE file.

package tight

import (
	"strings"
	"testing"
)

func TestCount(t *testing.T) {
	for _, test := range []struct {
		in      string
		want    map[byte]uint64
		symbols int
	}{
		{"", nil, 0},
		{"abracadabra", map[byte]uint64{'a': 5, 'b': 2, 'r': 2, 'c': 1, 'd': 1}, 5},
		{"\x00\xff\x00", map[byte]uint64{0: 2, 0xff: 1}, 2},
	} {
		got, err := Count(strings.NewReader(test.in))
		if err != nil {
			t.Fatal(err)
		}
		var want FrequencyTable
		for b, n := range test.want {
			want[b] = n
		}
		if got != want {
			t.Errorf("%q: counts differ", test.in)
		}
		if n := got.Symbols(); n != test.symbols {
			t.Errorf("%q: got %d symbols, want %d", test.in, n, test.symbols)
		}
	}
}

func TestCountReadError(t *testing.T) {
	if _, err := Count(&errReader{}); StatusOf(err) != IoError {
		t.Errorf("got %v, want an I/O error", err)
	}
}

type errReader struct{}

func (*errReader) Read([]byte) (int, error) { return 0, errDiskFull }
