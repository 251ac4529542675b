// Copyright 2025 Jonathan Amsterdam. All rights reserved.
// Use of this source code is governed by a
// license that can be found in the LICENSE file.

package tight

import (
	"bytes"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"
)

func TestWriteBits(t *testing.T) {
	const N = 32
	for range 100 {
		// Two sets of inputs of every size from 1 to 16 bits.
		var bs [N]uint32
		var ns [N]int
		for i := range N {
			ns[i] = i%16 + 1
			bs[i] = masklow(rand.Uint32(), ns[i])
		}
		rand.Shuffle(N, func(i, j int) {
			bs[i], bs[j] = bs[j], bs[i]
			ns[i], ns[j] = ns[j], ns[i]
		})

		testBitWriter(t, bs[:], ns[:])
	}

	testBitWriter(t, []uint32{17, 12323, 1 << 15}, []int{16, 16, 16})
	testBitWriter(t, []uint32{0, 1, 1, 1, 0, 1}, []int{1, 1, 1, 1, 1, 1})
	testBitWriter(t, []uint32{0x7fff, 1, 3}, []int{15, 1, 2})
}

// preserve only the low-order n bits of u.
func masklow(u uint32, n int) uint32 {
	return u & ((uint32(1) << n) - 1)
}

func testBitWriter(t *testing.T, bs []uint32, ns []int) {
	t.Helper()
	var buf bytes.Buffer
	bw := newBitWriter(&buf, 3) // small, to exercise flushing
	for i := range len(bs) {
		if bs[i]&(^((1 << ns[i]) - 1)) != 0 {
			t.Fatalf("bad value: %d does not fit int %d bits", bs[i], ns[i])
		}
		bw.writeBits(bs[i], ns[i])
		if bw.nbits > accBits {
			t.Fatalf("accumulator holds %d bits", bw.nbits)
		}
	}
	if err := bw.Close(); err != nil {
		t.Fatal(err)
	}
	if bw.nbits != 0 {
		t.Errorf("after Close, %d bits pending", bw.nbits)
	}
	got := byteString(buf.Bytes())
	want := bitstring(bs, ns)
	if got != want {
		t.Errorf("\ngot  %s\nwant %s", got, want)
	}
}

func byteString(bs []byte) string {
	var sb strings.Builder
	for i, b := range bs {
		if i > 0 {
			sb.WriteByte(':')
		}
		sb.WriteString(fmt.Sprintf("%08b", b))
	}
	return sb.String()
}

func bitstring(bs []uint32, ns []int) string {
	var ss []string
	for i, b := range bs {
		s := fmt.Sprintf("%032b", b)
		// Take rightmost ns[i] bits.
		s = s[len(s)-ns[i]:]
		ss = append(ss, s)
	}
	slices.Reverse(ss)
	s := strings.Join(ss, "")
	var bytes []string
	for len(s) >= 8 {
		by := s[len(s)-8:]
		bytes = append(bytes, by)
		s = s[:len(s)-8]
	}
	if len(s) > 0 {
		for len(s) < 8 {
			s = "0" + s
		}
		bytes = append(bytes, s)
	}
	return strings.Join(bytes, ":")
}

func TestWriteEOF(t *testing.T) {
	for _, test := range []struct {
		bits uint32
		n    int
		want string
	}{
		{0, 0, "00000010"},
		{1, 1, "00001011"},
		{0b10101, 5, "10101111"},
		{0b101010, 6, "00101010:00000000"},
		{0b1111111, 7, "01111111:00000001"},
		{0xff, 8, "11111111:00000010"},
		{0x1ff, 9, "11111111:00001011"},
		{0x3fff, 14, "11111111:00111111:00000000"},
		{0xffff, 16, "11111111:11111111:00000010"},
	} {
		var buf bytes.Buffer
		bw := newBitWriter(&buf, 0)
		bw.writeBits(test.bits, test.n)
		bw.writeEOF()
		if err := bw.Close(); err != nil {
			t.Fatal(err)
		}
		if got := byteString(buf.Bytes()); got != test.want {
			t.Errorf("%d bits %b: got %s, want %s", test.n, test.bits, got, test.want)
		}
	}
}

var errDiskFull = errors.New("disk full")

type errWriter struct{ n int }

func (w *errWriter) Write(p []byte) (int, error) {
	w.n++
	return 0, errDiskFull
}

func TestWriteErrorIsSticky(t *testing.T) {
	ew := &errWriter{}
	bw := newBitWriter(ew, 1)
	for range 10 {
		bw.writeByte('x')
	}
	err := bw.Close()
	if StatusOf(err) != IoError {
		t.Fatalf("got %v, want an I/O error", err)
	}
	if ew.n != 1 {
		t.Errorf("underlying writer called %d times after failing, want 1", ew.n)
	}
}

func TestReadBits(t *testing.T) {
	var buf bytes.Buffer
	bw := newBitWriter(&buf, 0)
	var bs []uint32
	var ns []int
	for range 200 {
		n := rand.IntN(8) + 1
		b := masklow(rand.Uint32(), n)
		bs = append(bs, b)
		ns = append(ns, n)
		bw.writeBits(b, n)
	}
	if err := bw.Close(); err != nil {
		t.Fatal(err)
	}
	br, err := newBitReader(bytes.NewReader(buf.Bytes()), 7)
	if err != nil {
		t.Fatal(err)
	}
	for i, want := range bs {
		got, err := br.readBits(ns[i])
		if err != nil {
			t.Fatal(err)
		}
		if uint32(got) != want {
			t.Fatalf("#%d: got %b, want %b", i, got, want)
		}
	}
	br.readPending()
	if _, err := br.readByte(); err != io.EOF {
		t.Errorf("got %v, want EOF", err)
	}
	if _, err := br.readBits(1); StatusOf(err) != HeaderError {
		t.Errorf("reading bits past the end: got %v, want a header error", err)
	}
}

func TestReaderOffsetAndDigest(t *testing.T) {
	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i * 7)
	}
	r := bytes.NewReader(data)
	if _, err := r.Seek(10, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	br, err := newBitReader(r, 16)
	if err != nil {
		t.Fatal(err)
	}
	for range 90 {
		if _, err := br.readByte(); err != nil {
			t.Fatal(err)
		}
	}
	if got, want := br.offset(), int64(100); got != want {
		t.Errorf("offset: got %d, want %d", got, want)
	}
	sum, err := br.digestRegion(200, 300)
	if err != nil {
		t.Fatal(err)
	}
	if want := md5.Sum(data[200:500]); sum != want {
		t.Errorf("digest mismatch")
	}
	if got, want := br.offset(), int64(500); got != want {
		t.Errorf("offset after digest: got %d, want %d", got, want)
	}
	if _, err := br.digestRegion(900, 200); StatusOf(err) != HeaderError {
		t.Errorf("digest past the end: got %v, want a header error", err)
	}
	if err := br.seek(3); err != nil {
		t.Fatal(err)
	}
	if b, err := br.readByte(); err != nil || b != data[3] {
		t.Errorf("after seek: got %d, %v; want %d", b, err, data[3])
	}
}
