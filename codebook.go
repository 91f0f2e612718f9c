package prefixcode

// CodeBook maps each symbol of a built tree to its bit code. Codes are
// root-to-leaf paths (left edge 0, right edge 1), so the set of codes is
// prefix-free: no code is a proper prefix of another. A codebook is derived
// once from its tree and never changes.
type CodeBook struct {
	codes   [256]BitSeq
	present [256]bool
	size    int
	minLen  int
	maxLen  int
}

// NewCodeBook derives the codebook for a built tree in a single depth-first
// walk: descending left appends a 0 bit, descending right a 1 bit, and each
// leaf records the accumulated path as its symbol's code.
func NewCodeBook(t *Tree) *CodeBook {
	cb := &CodeBook{}

	root := t.nodes[t.root]
	if root.leaf() {
		// Single-symbol alphabet: the lone code is the one-bit sequence 0,
		// never the empty sequence, so occurrence counts stay recoverable
		// from bit counts.
		cb.set(root.symbol, MakeBits(0))
		return cb
	}

	type frame struct {
		idx  int32
		path BitSeq
	}
	stack := []frame{{idx: t.root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := t.nodes[f.idx]
		if n.leaf() {
			cb.set(n.symbol, f.path)
			continue
		}
		lp := f.path.Clone()
		lp.AppendBit(0)
		rp := f.path.Clone()
		rp.AppendBit(1)
		stack = append(stack, frame{idx: n.right, path: rp})
		stack = append(stack, frame{idx: n.left, path: lp})
	}
	return cb
}

func (cb *CodeBook) set(sym Symbol, code BitSeq) {
	cb.codes[sym] = code
	cb.present[sym] = true
	cb.size++
	if cb.minLen == 0 || code.Len() < cb.minLen {
		cb.minLen = code.Len()
	}
	if code.Len() > cb.maxLen {
		cb.maxLen = code.Len()
	}
}

// Code returns the bit code for sym and whether the codebook contains it.
func (cb *CodeBook) Code(sym Symbol) (BitSeq, bool) {
	return cb.codes[sym], cb.present[sym]
}

// Len returns the number of symbols in the codebook.
func (cb *CodeBook) Len() int {
	return cb.size
}

// Symbols returns the codebook's symbols in ascending order.
func (cb *CodeBook) Symbols() []Symbol {
	syms := make([]Symbol, 0, cb.size)
	for i := 0; i < 256; i++ {
		if cb.present[i] {
			syms = append(syms, Symbol(i))
		}
	}
	return syms
}

// MinCodeLen returns the shortest code length in bits.
func (cb *CodeBook) MinCodeLen() int {
	return cb.minLen
}

// MaxCodeLen returns the longest code length in bits.
func (cb *CodeBook) MaxCodeLen() int {
	return cb.maxLen
}

// WeightedAverageLength returns the mean code length in bits weighted by the
// given table, the quantity the greedy merge minimizes. Symbols missing from
// the codebook contribute nothing; a zero-total table reports zero.
func (cb *CodeBook) WeightedAverageLength(freqs FrequencyTable) float64 {
	var bits, total uint64
	for sym, w := range freqs {
		if !cb.present[sym] {
			continue
		}
		bits += w * uint64(cb.codes[sym].Len())
		total += w
	}
	if total == 0 {
		return 0
	}
	return float64(bits) / float64(total)
}
