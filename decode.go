package prefixcode

// DecodeMode selects how the decoder treats input that ends in the middle
// of a code.
type DecodeMode int

const (
	// DecodeFlush pads the input with virtual zero bits until the one symbol
	// in flight at end of input is emitted. Input that ends exactly on a
	// symbol boundary gains nothing. Decoding in this mode is total: every
	// bit sequence, including the empty one, maps to some symbol sequence.
	DecodeFlush DecodeMode = iota

	// DecodeStrict requires the input to end exactly on a symbol boundary
	// and fails with ErrIncompleteCode otherwise.
	DecodeStrict
)

// Decoder walks a prefix-code tree bit by bit to recover symbols. The walk
// starts at the root, descends left on 0 and right on 1, and emits a leaf's
// symbol before resetting to the root.
//
// Decoding does not invert encoding in general: only input that was produced
// by the matching codebook and ends on a symbol boundary decodes back to the
// original bytes. Arbitrary input still decodes to something.
type Decoder struct {
	tree *Tree
}

// NewDecoder creates a decoder over the given tree.
func NewDecoder(tree *Tree) *Decoder {
	return &Decoder{tree: tree}
}

// Decode recovers the symbol sequence spelled by bits. In DecodeFlush mode
// it never fails; in DecodeStrict mode trailing bits that stop short of a
// leaf fail with an IncompleteCodeError and no partial output is returned.
func (d *Decoder) Decode(bits BitSeq, mode DecodeMode) ([]byte, error) {
	nodes := d.tree.nodes
	root := d.tree.root

	// Single-symbol alphabet: the root is itself a leaf, so every bit,
	// real or virtual, emits the lone symbol and resets the walk.
	if nodes[root].leaf() {
		sym := nodes[root].symbol
		out := make([]byte, bits.Len())
		for i := range out {
			out[i] = sym
		}
		return out, nil
	}

	var out []byte
	cur := root
	start := 0 // bit index where the code in flight began
	for i := 0; i < bits.Len(); i++ {
		n := nodes[cur]
		if bits.Bit(i) == 0 {
			cur = n.left
		} else {
			cur = n.right
		}
		if nodes[cur].leaf() {
			out = append(out, nodes[cur].symbol)
			cur = root
			start = i + 1
		}
	}

	if cur == root {
		return out, nil
	}

	// A code is still in flight past the end of the input.
	if mode == DecodeStrict {
		return nil, newIncompleteCodeError(start, bits.Len()-start)
	}
	for !nodes[cur].leaf() {
		cur = nodes[cur].left // virtual zero bit
	}
	out = append(out, nodes[cur].symbol)
	return out, nil
}
