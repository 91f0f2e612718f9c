package prefixcode

import (
	"math"
	"sort"
)

// Symbol is a single byte value coded by the engine.
type Symbol = byte

// FrequencyTable maps symbols to their nonnegative weights. Map keys keep
// symbols unique by construction; a table must be nonempty before it can
// build a tree.
type FrequencyTable map[Symbol]uint64

// Add increases the weight of sym by n.
func (t FrequencyTable) Add(sym Symbol, n uint64) {
	t[sym] += n
}

// Total returns the sum of all weights.
func (t FrequencyTable) Total() uint64 {
	var total uint64
	for _, w := range t {
		total += w
	}
	return total
}

// Symbols returns the table's symbols in ascending order.
func (t FrequencyTable) Symbols() []Symbol {
	syms := make([]Symbol, 0, len(t))
	for sym := range t {
		syms = append(syms, sym)
	}
	sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })
	return syms
}

// Clone returns a copy of the table.
func (t FrequencyTable) Clone() FrequencyTable {
	c := make(FrequencyTable, len(t))
	for sym, w := range t {
		c[sym] = w
	}
	return c
}

// Entropy returns the Shannon entropy of the table in bits per symbol, the
// floor for any prefix code's weighted average length. Zero-weight symbols
// contribute nothing; an empty or zero-total table reports zero.
func (t FrequencyTable) Entropy() float64 {
	total := t.Total()
	if total == 0 {
		return 0
	}
	var h float64
	for _, w := range t {
		if w == 0 {
			continue
		}
		p := float64(w) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// CountFrequencies tallies the occurrences of each byte in data.
func CountFrequencies(data []byte) FrequencyTable {
	t := make(FrequencyTable)
	for _, b := range data {
		t[b]++
	}
	return t
}

// EnglishLetterFrequencies returns relative occurrence weights for the
// lowercase English letters a-z, scaled per ten thousand. Text containing
// anything outside a-z needs a table of its own, usually from
// CountFrequencies over a representative sample.
func EnglishLetterFrequencies() FrequencyTable {
	return FrequencyTable{
		'e': 1270,
		't': 910,
		'a': 820,
		'o': 750,
		'i': 700,
		'n': 670,
		's': 630,
		'h': 610,
		'r': 600,
		'd': 430,
		'l': 400,
		'c': 280,
		'u': 280,
		'm': 240,
		'w': 240,
		'f': 220,
		'g': 200,
		'y': 200,
		'p': 190,
		'b': 150,
		'v': 98,
		'k': 77,
		'j': 15,
		'x': 15,
		'q': 9,
		'z': 7,
	}
}
