// Copyright 2025 Jonathan Amsterdam. All rights reserved.
// Use of this source code is governed by a
// license that can be found in the LICENSE file.

package tight

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

const (
	// maxNodes is the number of nodes in a full tree over all 256 byte values.
	maxNodes = 2*256 - 1

	// maxCodeLen is the longest code the bit writer can emit in one call.
	maxCodeLen = accBits

	// maxRescales bounds the rebuilds done to fit codes within maxCodeLen.
	maxRescales = 64
)

// noChild marks the child indexes of a leaf.
const noChild = -1

type node struct {
	freq        uint64
	left, right int16 // indexes of the children, noChild for leaves
	sym         byte
}

func (n *node) isLeaf() bool { return n.left == noChild }

// A tree is a Huffman tree whose nodes refer to each other by index.
// Children always precede their parents.
type tree struct {
	nodes []node
	root  int16
}

// A nodeArena hands out the nodes of one tree under construction.
// If construction fails the arena is simply dropped; on success
// its nodes become the tree.
type nodeArena struct {
	nodes []node
}

func newNodeArena() *nodeArena {
	return &nodeArena{nodes: make([]node, 0, maxNodes)}
}

func (a *nodeArena) full() bool { return len(a.nodes) == maxNodes }

func (a *nodeArena) newLeaf(sym byte, freq uint64) int16 {
	a.nodes = append(a.nodes, node{freq: freq, left: noChild, right: noChild, sym: sym})
	return int16(len(a.nodes) - 1)
}

// newParent returns a node with children l and r. The caller must have
// checked that their frequencies can be summed.
func (a *nodeArena) newParent(l, r int16) int16 {
	f := a.nodes[l].freq + a.nodes[r].freq
	a.nodes = append(a.nodes, node{freq: f, left: l, right: r})
	return int16(len(a.nodes) - 1)
}

func (a *nodeArena) tree(root int16) *tree {
	return &tree{nodes: a.nodes, root: root}
}

// buildTree constructs a Huffman tree for freqs whose codes are no longer
// than maxCodeLen bits. Trees that come out deeper are rebuilt from
// rescaled frequencies, which flattens them at a small cost in
// compression.
func buildTree(freqs *FrequencyTable) (*tree, error) {
	f := *freqs
	for range maxRescales {
		t, err := buildUnlimited(&f)
		if err != nil {
			return nil, err
		}
		if t.depth() <= maxCodeLen {
			return t, nil
		}
		for i, c := range f {
			if c != 0 {
				f[i] = c/2 + 1
			}
		}
	}
	return nil, limitError("Huffman code length", maxCodeLen)
}

// buildUnlimited builds a Huffman tree from a list of nodes kept sorted by
// descending frequency. It repeatedly merges the two nodes at the tail,
// which have the smallest frequencies, and inserts the result ahead of the
// first node with an equal or smaller frequency. Ties are thus broken by list
// position, never by symbol value, so the same table always yields the same tree.
func buildUnlimited(freqs *FrequencyTable) (*tree, error) {
	a := newNodeArena()
	var list []int16
	for i, f := range freqs {
		if f != 0 {
			list = append(list, a.newLeaf(byte(i), f))
		}
	}
	if len(list) == 0 {
		// Nothing to encode. Still emit a tree, so the header has the same shape.
		return a.tree(a.newLeaf(0, 0)), nil
	}
	slices.SortStableFunc(list, func(x, y int16) int {
		fx, fy := a.nodes[x].freq, a.nodes[y].freq
		switch {
		case fx > fy:
			return -1
		case fx < fy:
			return 1
		}
		return 0
	})
	for len(list) > 1 {
		l := list[len(list)-1]
		r := list[len(list)-2]
		list = list[:len(list)-2]
		if a.nodes[l].freq > math.MaxUint64-a.nodes[r].freq {
			return nil, limitError("combined symbol frequency", math.MaxUint64)
		}
		p := a.newParent(l, r)
		pf := a.nodes[p].freq
		i, _ := slices.BinarySearchFunc(list, pf, func(e int16, f uint64) int {
			if a.nodes[e].freq > f {
				return -1
			}
			return 1
		})
		list = slices.Insert(list, i, p)
	}
	return a.tree(list[0]), nil
}

// depth returns the length of the longest root-to-leaf path.
// A tree that is a single leaf has depth 1: its symbol still takes a bit.
func (t *tree) depth() int {
	var walk func(i int16) int
	walk = func(i int16) int {
		n := &t.nodes[i]
		if n.isLeaf() {
			return 0
		}
		return 1 + max(walk(n.left), walk(n.right))
	}
	return max(walk(t.root), 1)
}

// String renders the tree in the form [left, right], with leaves shown
// as printable characters or decimal byte values.
func (t *tree) String() string {
	var sb strings.Builder
	var walk func(i int16)
	walk = func(i int16) {
		n := &t.nodes[i]
		if n.isLeaf() {
			if n.sym > ' ' && n.sym < 0x7f {
				sb.WriteByte(n.sym)
			} else {
				sb.WriteString(strconv.Itoa(int(n.sym)))
			}
			return
		}
		sb.WriteByte('[')
		walk(n.left)
		sb.WriteString(", ")
		walk(n.right)
		sb.WriteByte(']')
	}
	walk(t.root)
	return sb.String()
}

// A Code maps each byte value to its bit sequence.
type Code struct {
	codes [256]bitcode
}

// A bitcode holds len significant low-order bits of val, in the order they
// are transmitted: bit 0 selects the root's child.
type bitcode struct {
	val uint32
	len uint8
}

// newCode assigns codes by walking from the root to every leaf,
// taking 0 for left and 1 for right. The only leaf of a single-leaf tree
// gets the one-bit code 0.
func newCode(t *tree) *Code {
	c := &Code{}
	if r := &t.nodes[t.root]; r.isLeaf() {
		c.codes[r.sym] = bitcode{0, 1}
		return c
	}
	var walk func(i int16, val uint32, depth uint8)
	walk = func(i int16, val uint32, depth uint8) {
		n := &t.nodes[i]
		if n.isLeaf() {
			c.codes[n.sym] = bitcode{val, depth}
			return
		}
		walk(n.left, val, depth+1)
		walk(n.right, val|1<<depth, depth+1)
	}
	walk(t.root, 0, 0)
	return c
}

// Len returns the code length of b in bits, or 0 if b has no code.
func (c *Code) Len(b byte) int { return int(c.codes[b].len) }

// Bits returns the code of b as a string of 0s and 1s in transmission order.
func (c *Code) Bits(b byte) string {
	bc := c.codes[b]
	var sb strings.Builder
	for i := range bc.len {
		sb.WriteByte('0' + byte(bc.val>>i&1))
	}
	return sb.String()
}

// NewCode returns the code that compression uses for freqs.
func NewCode(freqs *FrequencyTable) (*Code, error) {
	t, err := buildTree(freqs)
	if err != nil {
		return nil, err
	}
	return newCode(t), nil
}
