package prefixcode

import "fmt"

// Codec bundles the tree and codebook built from a single frequency table.
// Both are built together in one pass and never mutated afterward, so a
// Codec is safe for concurrent use.
type Codec struct {
	freqs FrequencyTable
	tree  *Tree
	book  *CodeBook
	enc   *Encoder
	dec   *Decoder
}

// NewCodec builds the tree and codebook for freqs. It fails with
// ErrEmptyFrequencyTable if freqs is empty. The table is copied; later
// changes to freqs do not affect the codec.
func NewCodec(freqs FrequencyTable) (*Codec, error) {
	tree, err := BuildTree(freqs)
	if err != nil {
		return nil, err
	}
	book := NewCodeBook(tree)
	return &Codec{
		freqs: freqs.Clone(),
		tree:  tree,
		book:  book,
		enc:   NewEncoder(book),
		dec:   NewDecoder(tree),
	}, nil
}

// Tree returns the codec's prefix-code tree.
func (c *Codec) Tree() *Tree {
	return c.tree
}

// CodeBook returns the codec's symbol-to-code mapping.
func (c *Codec) CodeBook() *CodeBook {
	return c.book
}

// Encode maps data to its bit sequence. See Encoder.Encode.
func (c *Codec) Encode(data []byte) (BitSeq, error) {
	return c.enc.Encode(data)
}

// Decode maps bits back to a symbol sequence. See Decoder.Decode.
func (c *Codec) Decode(bits BitSeq, mode DecodeMode) ([]byte, error) {
	return c.dec.Decode(bits, mode)
}

// EncodedBitLen returns the bit length Encode would produce for data.
func (c *Codec) EncodedBitLen(data []byte) (int, error) {
	return c.enc.BitLen(data)
}

// EncodePacked encodes data and packs the bits into bytes, padding the tail
// with zero bits up to the next byte boundary. It returns the packed buffer
// and the number of meaningful bits; callers that need the exact boundary
// back must carry the bit length alongside the bytes.
func (c *Codec) EncodePacked(data []byte) (packed []byte, bitLen int, err error) {
	bits, err := c.enc.Encode(data)
	if err != nil {
		return nil, 0, err
	}
	bitLen = bits.Len()
	for bits.Len()%8 != 0 {
		bits.AppendBit(0)
	}
	packed, err = BitsToBytes(bits)
	if err != nil {
		return nil, 0, err
	}
	return packed, bitLen, nil
}

// DecodePacked expands a packed buffer and decodes its first bitLen bits.
// A negative bitLen means the whole buffer.
func (c *Codec) DecodePacked(packed []byte, bitLen int, mode DecodeMode) ([]byte, error) {
	bits := BytesToBits(packed)
	if bitLen >= 0 {
		if bitLen > bits.Len() {
			return nil, fmt.Errorf("bit length %d exceeds %d packed bits", bitLen, bits.Len())
		}
		bits = bits.Prefix(bitLen)
	}
	return c.dec.Decode(bits, mode)
}

// CodecStats summarizes a built code.
type CodecStats struct {
	Symbols     int     `json:"symbols"`
	TotalWeight uint64  `json:"total_weight"`
	MinCodeLen  int     `json:"min_code_len"`
	MaxCodeLen  int     `json:"max_code_len"`
	WeightedLen float64 `json:"weighted_len"`
	Entropy     float64 `json:"entropy"`
}

// Stats reports size and length figures for the codec's code.
func (c *Codec) Stats() CodecStats {
	return CodecStats{
		Symbols:     c.book.Len(),
		TotalWeight: c.freqs.Total(),
		MinCodeLen:  c.book.MinCodeLen(),
		MaxCodeLen:  c.book.MaxCodeLen(),
		WeightedLen: c.book.WeightedAverageLength(c.freqs),
		Entropy:     c.freqs.Entropy(),
	}
}

// Encode builds a one-shot codec for freqs and encodes data with it.
func Encode(freqs FrequencyTable, data []byte) (BitSeq, error) {
	c, err := NewCodec(freqs)
	if err != nil {
		return BitSeq{}, err
	}
	return c.Encode(data)
}

// Decode builds a one-shot codec for freqs and decodes bits with it.
func Decode(freqs FrequencyTable, bits BitSeq, mode DecodeMode) ([]byte, error) {
	c, err := NewCodec(freqs)
	if err != nil {
		return nil, err
	}
	return c.Decode(bits, mode)
}
