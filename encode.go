package prefixcode

// Encoder maps byte sequences to bit sequences through a codebook.
type Encoder struct {
	book *CodeBook
}

// NewEncoder creates an encoder over the given codebook.
func NewEncoder(book *CodeBook) *Encoder {
	return &Encoder{book: book}
}

// Encode concatenates the code of every byte of data in input order. It
// fails with an UnknownSymbolError when data contains a symbol the codebook
// does not cover; no partial output is returned.
func (e *Encoder) Encode(data []byte) (BitSeq, error) {
	var out BitSeq
	for i, sym := range data {
		code, ok := e.book.Code(sym)
		if !ok {
			return BitSeq{}, newUnknownSymbolError(sym, i)
		}
		out.AppendSeq(code)
	}
	return out, nil
}

// BitLen returns the bit length Encode would produce for data without
// materializing the sequence.
func (e *Encoder) BitLen(data []byte) (int, error) {
	total := 0
	for i, sym := range data {
		code, ok := e.book.Code(sym)
		if !ok {
			return 0, newUnknownSymbolError(sym, i)
		}
		total += code.Len()
	}
	return total, nil
}
