package prefixcode

import (
	"container/heap"
	"sort"
)

// noChild marks the child slots of a leaf node.
const noChild = int32(-1)

// node is one slot of a tree's arena. A leaf carries its symbol with both
// child indices set to noChild; an internal node references exactly two
// children by arena index.
type node struct {
	left   int32
	right  int32
	symbol Symbol
}

func (n node) leaf() bool { return n.left == noChild }

// Tree is an immutable prefix-code tree. Nodes live in a flat arena and
// reference their children by index rather than by pointer, so a built tree
// is acyclic by construction and never shares subtrees.
type Tree struct {
	nodes []node
	root  int32
}

// ========== Build ==========

// mergeEntry is a transient (weight, node) pair alive only while merging.
// The tag makes the heap order total: a leaf's tag is its symbol value and
// an internal node's tag is 256 plus its creation sequence, so equal
// weights resolve to the lowest symbol first, then to the earliest-created
// subtree, and every build of the same table is bit-for-bit reproducible.
type mergeEntry struct {
	weight uint64
	tag    int32
	node   int32
}

type mergeHeap []mergeEntry

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].weight != h[j].weight {
		return h[i].weight < h[j].weight
	}
	return h[i].tag < h[j].tag
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x interface{}) {
	*h = append(*h, x.(mergeEntry))
}

func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

var _ heap.Interface = (*mergeHeap)(nil)

// BuildTree builds an optimal prefix-code tree for freqs by the classic
// greedy merge: the two lowest-weight entries are repeatedly combined under
// a fresh internal node whose weight is their sum, until a single root
// remains. It fails with ErrEmptyFrequencyTable if freqs is empty.
//
// The first entry popped becomes the left child, so with the mergeEntry tie
// policy the same table always yields the same tree and the same codes.
func BuildTree(freqs FrequencyTable) (*Tree, error) {
	if len(freqs) == 0 {
		return nil, ErrEmptyFrequencyTable
	}

	t := &Tree{nodes: make([]node, 0, 2*len(freqs)-1)}

	h := make(mergeHeap, 0, len(freqs))
	for _, sym := range freqs.Symbols() {
		idx := t.push(node{left: noChild, right: noChild, symbol: sym})
		h = append(h, mergeEntry{weight: freqs[sym], tag: int32(sym), node: idx})
	}
	heap.Init(&h)

	nextTag := int32(256)
	for h.Len() > 1 {
		left := heap.Pop(&h).(mergeEntry)
		right := heap.Pop(&h).(mergeEntry)
		idx := t.push(node{left: left.node, right: right.node})
		heap.Push(&h, mergeEntry{weight: left.weight + right.weight, tag: nextTag, node: idx})
		nextTag++
	}

	t.root = h[0].node
	return t, nil
}

func (t *Tree) push(n node) int32 {
	t.nodes = append(t.nodes, n)
	return int32(len(t.nodes) - 1)
}

// ========== Inspection ==========

// LeafCount returns the number of leaves, one per distinct symbol.
func (t *Tree) LeafCount() int {
	// A strict binary tree with n leaves has 2n-1 nodes.
	return (len(t.nodes) + 1) / 2
}

// Symbols returns the symbols at the tree's leaves in ascending order.
func (t *Tree) Symbols() []Symbol {
	syms := make([]Symbol, 0, t.LeafCount())
	for _, n := range t.nodes {
		if n.leaf() {
			syms = append(syms, n.symbol)
		}
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })
	return syms
}

// leafDepths returns the root-to-leaf path length for each arena index that
// holds a leaf. The root of a single-leaf tree reports depth zero.
func (t *Tree) leafDepths() map[int32]int {
	out := make(map[int32]int, t.LeafCount())
	type frame struct {
		idx   int32
		depth int
	}
	stack := []frame{{idx: t.root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := t.nodes[f.idx]
		if n.leaf() {
			out[f.idx] = f.depth
			continue
		}
		stack = append(stack, frame{idx: n.right, depth: f.depth + 1})
		stack = append(stack, frame{idx: n.left, depth: f.depth + 1})
	}
	return out
}
