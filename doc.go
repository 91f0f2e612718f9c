// Package prefixcode implements static Huffman prefix coding over byte
// streams, from frequency tables through code trees to packed wire bytes.
//
// A frequency table maps byte symbols to occurrence weights; building a
// codec turns the table into a prefix-free code where frequent symbols get
// short bit patterns. Codes are deterministic for a given table, so two
// processes sharing a frequency model can exchange packed payloads without
// shipping the tree.
//
// # Basic Usage
//
// Build a codec from a frequency table and encode:
//
//	codec, err := prefixcode.NewCodec(prefixcode.CountFrequencies(sample))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	packed, bitLen, err := codec.EncodePacked([]byte("hello"))
//
// Decode needs the bit length back, because packing pads the tail to a
// byte boundary:
//
//	data, err := codec.DecodePacked(packed, bitLen, prefixcode.DecodeStrict)
//
// Frequency tables travel as YAML or JSON documents ([FrequencyModel]) and
// persist in a [ModelStore] with memory, file, SQLite and S3 backends.
//
// # Features
//
// Coding engine:
//   - Heap-built Huffman trees with deterministic tie-breaking
//   - Bit-exact encode and decode with strict and flush modes
//   - Packed byte framing with explicit bit lengths
//   - Built-in English letter frequency model
//
// Service layer:
//   - Model persistence across memory, file, SQLite and S3 backends
//   - HTTP API for encoding, decoding and model management
//   - WebSocket streaming sessions for frame-by-frame encoding
//   - Compression advisor comparing Huffman against snappy
//   - Optional AES-256-GCM payload encryption
//
// # Configuration
//
// Use [Config] to run the service form:
//
//	cfg := prefixcode.DefaultConfig()
//	cfg.Store.Backend = "sqlite"
//	cfg.Store.SQLite.Path = "models.db"
//	cfg.HTTP.Enabled = true
//	srv, err := prefixcode.NewServer(cfg)
package prefixcode
