package prefixcode

import (
	"errors"
	"testing"
)

func TestBuildTree_EmptyTable(t *testing.T) {
	_, err := BuildTree(FrequencyTable{})
	if !errors.Is(err, ErrEmptyFrequencyTable) {
		t.Errorf("got %v, want ErrEmptyFrequencyTable", err)
	}
}

func TestBuildTree_LeafSetEqualsSymbolSet(t *testing.T) {
	tests := []struct {
		name  string
		freqs FrequencyTable
	}{
		{name: "single symbol", freqs: FrequencyTable{'x': 5}},
		{name: "two symbols", freqs: FrequencyTable{'a': 1, 'b': 9}},
		{name: "skewed", freqs: FrequencyTable{'a': 2, 'b': 1, 'c': 1}},
		{name: "english letters", freqs: EnglishLetterFrequencies()},
		{name: "binary data", freqs: CountFrequencies([]byte{0, 0, 1, 255, 255, 255, 7})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := BuildTree(tt.freqs)
			if err != nil {
				t.Fatalf("BuildTree failed: %v", err)
			}

			if got, want := tree.LeafCount(), len(tt.freqs); got != want {
				t.Errorf("leaf count: got %d, want %d", got, want)
			}

			got := tree.Symbols()
			want := tt.freqs.Symbols()
			if len(got) != len(want) {
				t.Fatalf("symbols: got %d, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("symbol %d: got %q, want %q", i, got[i], want[i])
				}
			}
		})
	}
}

func TestBuildTree_SingleSymbol(t *testing.T) {
	tree, err := BuildTree(FrequencyTable{'x': 5})
	if err != nil {
		t.Fatalf("BuildTree failed: %v", err)
	}

	if got := tree.LeafCount(); got != 1 {
		t.Errorf("leaf count: got %d, want 1", got)
	}
	if len(tree.nodes) != 1 {
		t.Errorf("node count: got %d, want 1", len(tree.nodes))
	}
	if !tree.nodes[tree.root].leaf() {
		t.Error("root of a single-symbol tree must be a leaf")
	}
}

func TestBuildTree_StrictBinary(t *testing.T) {
	tree, err := BuildTree(EnglishLetterFrequencies())
	if err != nil {
		t.Fatalf("BuildTree failed: %v", err)
	}

	for i, n := range tree.nodes {
		if n.leaf() {
			if n.right != noChild {
				t.Errorf("node %d: leaf with a right child", i)
			}
			continue
		}
		if n.left == noChild || n.right == noChild {
			t.Errorf("node %d: internal node missing a child", i)
		}
	}
}

func TestBuildTree_Deterministic(t *testing.T) {
	freqs := EnglishLetterFrequencies()

	first := NewCodeBook(mustBuildTree(t, freqs))
	// Go randomizes map iteration, so repeated builds only agree if the
	// tie-break policy really is independent of iteration order.
	for run := 0; run < 20; run++ {
		book := NewCodeBook(mustBuildTree(t, freqs))
		for _, sym := range freqs.Symbols() {
			a, _ := first.Code(sym)
			b, _ := book.Code(sym)
			if !a.Equal(b) {
				t.Fatalf("run %d: code for %c changed: %s vs %s", run, sym, a, b)
			}
		}
	}
}

func TestBuildTree_TieBreakAscendingSymbol(t *testing.T) {
	// b and c share the minimal weight, so they merge first with b on the
	// left; their parent then ties with a at weight 2 and a, being a leaf,
	// sorts ahead of it.
	book := NewCodeBook(mustBuildTree(t, FrequencyTable{'a': 2, 'b': 1, 'c': 1}))

	tests := []struct {
		sym  Symbol
		want string
	}{
		{sym: 'a', want: "0"},
		{sym: 'b', want: "10"},
		{sym: 'c', want: "11"},
	}
	for _, tt := range tests {
		code, ok := book.Code(tt.sym)
		if !ok {
			t.Fatalf("no code for %c", tt.sym)
		}
		if got := code.String(); got != tt.want {
			t.Errorf("code for %c: got %s, want %s", tt.sym, got, tt.want)
		}
	}
}

func TestTree_LeafDepthsMatchCodeLengths(t *testing.T) {
	freqs := FrequencyTable{'a': 10, 'b': 4, 'c': 2, 'd': 1, 'e': 1}
	tree := mustBuildTree(t, freqs)
	book := NewCodeBook(tree)

	depths := tree.leafDepths()
	if len(depths) != len(freqs) {
		t.Fatalf("leaf depths: got %d entries, want %d", len(depths), len(freqs))
	}
	for idx, depth := range depths {
		sym := tree.nodes[idx].symbol
		code, ok := book.Code(sym)
		if !ok {
			t.Fatalf("no code for %c", sym)
		}
		if code.Len() != depth {
			t.Errorf("symbol %c: code length %d, leaf depth %d", sym, code.Len(), depth)
		}
	}
}

func mustBuildTree(t *testing.T, freqs FrequencyTable) *Tree {
	t.Helper()
	tree, err := BuildTree(freqs)
	if err != nil {
		t.Fatalf("BuildTree failed: %v", err)
	}
	return tree
}
