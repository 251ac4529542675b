// Copyright 2025 Jonathan Amsterdam. All rights reserved.
// Use of this source code is governed by a
// license that can be found in the LICENSE file.

package tight

import (
	"crypto/md5"
	"fmt"
	"io"
	"runtime"

	"github.com/rs/zerolog"
)

// A Mode selects the compression methods applied to a file.
type Mode byte

const (
	ModeHuffman Mode = 1 << iota
	// ModeRLE is reserved in the format but not implemented.
	ModeRLE

	modeAll = ModeHuffman | ModeRLE
)

func (m Mode) String() string {
	switch m {
	case ModeHuffman:
		return "huffman"
	case ModeRLE:
		return "rle"
	case modeAll:
		return "huffman+rle"
	}
	return fmt.Sprintf("mode(%#x)", byte(m))
}

// Magic identifies a compressed file.
var Magic = [8]byte{'T', 'I', 'G', 'H', 'T', 0, 0, 0}

// Version is the format version written to the header as major, minor, patch.
// Readers reject files with a different major version.
var Version = [3]byte{1, 0, 0}

// OS tags stored in the header. They are informational only.
const (
	OSLinux   byte = 0
	OSAndroid byte = 1
	OSWindows byte = 2
	OSDarwin  byte = 3
	OSFreeBSD byte = 4
	OSOther   byte = 0xff
)

func hostOS() byte {
	switch runtime.GOOS {
	case "linux":
		return OSLinux
	case "android":
		return OSAndroid
	case "windows":
		return OSWindows
	case "darwin":
		return OSDarwin
	case "freebsd":
		return OSFreeBSD
	}
	return OSOther
}

// Offsets of the fixed-size header fields.
const (
	versionOffset = len(Magic)
	osOffset      = versionOffset + len(Version)
	modeOffset    = osOffset + 1
	treeOffset    = modeOffset + 1
)

// A header is the decoded form of a file header.
type header struct {
	version  [3]byte
	os       byte
	mode     Mode
	treeSize int64
	checksum [md5.Size]byte
}

// writeHeader writes the magic, version, OS, mode, serialized tree and the
// MD5 digest of the serialized tree. The writer must be at the start of the file.
func writeHeader(bw *bitWriter, t *tree, mode Mode, log zerolog.Logger) {
	for _, b := range Magic {
		bw.writeByte(b)
	}
	for _, b := range Version {
		bw.writeByte(b)
	}
	bw.writeByte(hostOS())
	bw.writeByte(byte(mode))

	bw.beginDigest()
	start := bw.offset()
	writeTree(bw, t, t.root)
	bw.flushPending()
	size := bw.offset() - start
	sum := bw.endDigest()
	for _, b := range sum {
		bw.writeByte(b)
	}
	log.Debug().
		Stringer("mode", mode).
		Int64("treeBytes", size).
		Hex("checksum", sum[:]).
		Stringer("tree", t).
		Msg("wrote header")
}

// writeTree serializes the subtree at i in pre-order: an internal node is a 0 bit
// followed by its left and right subtrees, a leaf is a 1 bit followed by
// its 8-bit symbol.
func writeTree(bw *bitWriter, t *tree, i int16) {
	n := &t.nodes[i]
	if n.isLeaf() {
		bw.writeBits(1, 1)
		bw.writeBits(uint32(n.sym), 8)
		return
	}
	bw.writeBits(0, 1)
	writeTree(bw, t, n.left)
	writeTree(bw, t, n.right)
}

// readHeader reads and verifies a header. On success the reader is positioned
// at the first byte after the checksum.
func readHeader(br *bitReader, log zerolog.Logger) (*header, *tree, error) {
	h := &header{}
	if err := readMagic(br); err != nil {
		return nil, nil, err
	}
	for i := range h.version {
		b, err := readHeaderByte(br, "version")
		if err != nil {
			return nil, nil, err
		}
		h.version[i] = b
	}
	if h.version[0] != Version[0] {
		return nil, nil, versionError(h.version[0])
	}
	b, err := readHeaderByte(br, "OS")
	if err != nil {
		return nil, nil, err
	}
	h.os = b
	if b, err = readHeaderByte(br, "mode"); err != nil {
		return nil, nil, err
	}
	h.mode = Mode(b)
	switch {
	case h.mode&^modeAll != 0 || h.mode&ModeHuffman == 0:
		return nil, nil, headerError("invalid mode bits %#x", b)
	case h.mode&ModeRLE != 0:
		return nil, nil, decompressError("%s mode is not implemented", ModeRLE)
	}

	start := br.offset()
	t, err := readTree(br)
	if err != nil {
		return nil, nil, err
	}
	br.readPending() // padding
	h.treeSize = br.offset() - start

	for i := range h.checksum {
		b, err := readHeaderByte(br, "checksum")
		if err != nil {
			return nil, nil, err
		}
		h.checksum[i] = b
	}
	end := br.offset()
	sum, err := br.digestRegion(start, h.treeSize)
	if err != nil {
		return nil, nil, err
	}
	if sum != h.checksum {
		return nil, nil, headerError("checksum doesn't match")
	}
	if err := br.seek(end); err != nil {
		return nil, nil, err
	}
	log.Debug().
		Bytes("version", h.version[:]).
		Uint8("os", h.os).
		Stringer("mode", h.mode).
		Int64("treeBytes", h.treeSize).
		Hex("checksum", h.checksum[:]).
		Stringer("tree", t).
		Msg("read header")
	return h, t, nil
}

func readMagic(br *bitReader) error {
	for _, want := range Magic {
		b, err := br.readByte()
		if err == io.EOF {
			return headerError("missing magic bytes")
		}
		if err != nil {
			return err
		}
		if b != want {
			return headerError("invalid magic bytes")
		}
	}
	return nil
}

func readHeaderByte(br *bitReader, field string) (byte, error) {
	b, err := br.readByte()
	if err == io.EOF {
		return 0, headerError("missing %s bytes", field)
	}
	return b, err
}

// readTree deserializes a tree written by writeTree.
func readTree(br *bitReader) (*tree, error) {
	a := newNodeArena()
	root, err := readSubtree(br, a)
	if err != nil {
		return nil, err
	}
	return a.tree(root), nil
}

func readSubtree(br *bitReader, a *nodeArena) (int16, error) {
	if a.full() {
		return 0, headerError("malformed tree: more than %d nodes", maxNodes)
	}
	bit, err := br.readBits(1)
	if err != nil {
		return 0, err
	}
	if bit == 1 {
		sym, err := br.readBits(8)
		if err != nil {
			return 0, err
		}
		return a.newLeaf(sym, 0), nil
	}
	l, err := readSubtree(br, a)
	if err != nil {
		return 0, err
	}
	r, err := readSubtree(br, a)
	if err != nil {
		return 0, err
	}
	if a.full() {
		return 0, headerError("malformed tree: more than %d nodes", maxNodes)
	}
	return a.newParent(l, r), nil
}
