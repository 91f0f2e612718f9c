package prefixcode

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/golang/snappy"
)

// CompressionAdvisorConfig configures the compression advisor.
type CompressionAdvisorConfig struct {
	// SampleLimit caps the number of bytes analyzed per request.
	// Larger payloads are profiled on their first SampleLimit bytes.
	// Default: 64KB.
	SampleLimit int `yaml:"sample_limit,omitempty"`

	// MinGainPct is the minimum size reduction over the snappy baseline
	// before prefix coding is recommended. Default: 5.0
	MinGainPct float64 `yaml:"min_gain_pct,omitempty"`
}

// DefaultCompressionAdvisorConfig returns sensible defaults for the advisor.
func DefaultCompressionAdvisorConfig() CompressionAdvisorConfig {
	return CompressionAdvisorConfig{
		SampleLimit: 64 * 1024,
		MinGainPct:  5.0,
	}
}

// SampleProfile holds analyzed characteristics of a data sample.
type SampleProfile struct {
	SampleSize      int       `json:"sample_size"`
	Entropy         float64   `json:"entropy"` // bits per symbol
	DistinctSymbols int       `json:"distinct_symbols"`
	PrintableRatio  float64   `json:"printable_ratio"`
	RepeatRatio     float64   `json:"repeat_ratio"`
	ProfiledAt      time.Time `json:"profiled_at"`
}

// MethodBenchmark holds measured results for one method on a sample.
type MethodBenchmark struct {
	Method           string        `json:"method"`
	CompressedSize   int64         `json:"compressed_size"`
	OriginalSize     int64         `json:"original_size"`
	CompressionRatio float64       `json:"compression_ratio"`
	EncodeTime       time.Duration `json:"encode_time"`
	DecodeTime       time.Duration `json:"decode_time"`
	Lossless         bool          `json:"lossless"`
}

// CompressionReport is the advisor's verdict on a sample.
type CompressionReport struct {
	Profile     SampleProfile     `json:"profile"`
	Benchmarks  []MethodBenchmark `json:"benchmarks"`
	Recommended string            `json:"recommended"`
	Reasoning   string            `json:"reasoning"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// CompressionAdvisor profiles data samples and benchmarks prefix coding
// against a snappy baseline and the raw size. It holds no state between
// calls and is safe for concurrent use.
type CompressionAdvisor struct {
	config CompressionAdvisorConfig
}

// NewCompressionAdvisor creates a new compression advisor.
func NewCompressionAdvisor(cfg CompressionAdvisorConfig) *CompressionAdvisor {
	if cfg.SampleLimit <= 0 {
		cfg.SampleLimit = 64 * 1024
	}
	if cfg.MinGainPct <= 0 {
		cfg.MinGainPct = 5.0
	}
	return &CompressionAdvisor{config: cfg}
}

// Advise profiles the sample, benchmarks the available methods on it and
// returns a report with a recommendation.
func (ca *CompressionAdvisor) Advise(data []byte) (*CompressionReport, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no data to profile")
	}
	if len(data) > ca.config.SampleLimit {
		data = data[:ca.config.SampleLimit]
	}

	profile := ca.profile(data)

	benchmarks := []MethodBenchmark{rawBenchmark(data)}
	if b, err := huffmanBenchmark(data); err == nil {
		benchmarks = append(benchmarks, b)
	}
	benchmarks = append(benchmarks, snappyBenchmark(data))

	sort.Slice(benchmarks, func(i, j int) bool {
		return benchmarks[i].CompressedSize < benchmarks[j].CompressedSize
	})

	recommended, reasoning := ca.recommend(profile, benchmarks)

	return &CompressionReport{
		Profile:     profile,
		Benchmarks:  benchmarks,
		Recommended: recommended,
		Reasoning:   reasoning,
		GeneratedAt: time.Now(),
	}, nil
}

// profile analyzes the characteristics of a sample.
func (ca *CompressionAdvisor) profile(data []byte) SampleProfile {
	freqs := CountFrequencies(data)

	printable := 0
	for _, b := range data {
		if b >= 0x20 && b < 0x7f {
			printable++
		}
	}

	repeats := 0
	for i := 1; i < len(data); i++ {
		if data[i] == data[i-1] {
			repeats++
		}
	}
	repeatRatio := 0.0
	if len(data) > 1 {
		repeatRatio = float64(repeats) / float64(len(data)-1)
	}

	return SampleProfile{
		SampleSize:      len(data),
		Entropy:         freqs.Entropy(),
		DistinctSymbols: len(freqs),
		PrintableRatio:  float64(printable) / float64(len(data)),
		RepeatRatio:     repeatRatio,
		ProfiledAt:      time.Now(),
	}
}

func (ca *CompressionAdvisor) recommend(profile SampleProfile, benchmarks []MethodBenchmark) (string, string) {
	huffman := findBenchmark(benchmarks, "huffman")
	baseline := findBenchmark(benchmarks, "snappy")

	if profile.SampleSize < 16 {
		return "none", "Sample too small for coding overhead to pay off"
	}
	if huffman == nil || !huffman.Lossless {
		return "snappy", "Prefix coding unavailable for this sample"
	}

	rawSize := float64(profile.SampleSize)
	huffmanGain := 100 * (1 - float64(huffman.CompressedSize)/rawSize)
	baselineGain := 100 * (1 - float64(baseline.CompressedSize)/rawSize)
	if huffmanGain < ca.config.MinGainPct && baselineGain < ca.config.MinGainPct {
		return "none", fmt.Sprintf(
			"Neither method beats the raw size by %.1f%% at %.2f bits/symbol entropy",
			ca.config.MinGainPct, profile.Entropy)
	}

	gain := 100 * (1 - float64(huffman.CompressedSize)/float64(baseline.CompressedSize))
	if gain >= ca.config.MinGainPct {
		return "huffman", fmt.Sprintf(
			"Prefix coding is %.1f%% smaller than the snappy baseline at %.2f bits/symbol entropy",
			gain, profile.Entropy)
	}
	return "snappy", fmt.Sprintf(
		"Snappy is within %.1f%% of prefix coding and needs no frequency model", ca.config.MinGainPct)
}

func findBenchmark(benchmarks []MethodBenchmark, method string) *MethodBenchmark {
	for i := range benchmarks {
		if benchmarks[i].Method == method {
			return &benchmarks[i]
		}
	}
	return nil
}

func rawBenchmark(data []byte) MethodBenchmark {
	return MethodBenchmark{
		Method:           "none",
		CompressedSize:   int64(len(data)),
		OriginalSize:     int64(len(data)),
		CompressionRatio: 1.0,
		Lossless:         true,
	}
}

// huffmanBenchmark codes the sample with a codec built from its own
// frequencies and verifies the round trip.
func huffmanBenchmark(data []byte) (MethodBenchmark, error) {
	codec, err := NewCodec(CountFrequencies(data))
	if err != nil {
		return MethodBenchmark{}, err
	}

	encodeStart := time.Now()
	packed, bitLen, err := codec.EncodePacked(data)
	encodeTime := time.Since(encodeStart)
	if err != nil {
		return MethodBenchmark{}, err
	}

	decodeStart := time.Now()
	decoded, err := codec.DecodePacked(packed, bitLen, DecodeStrict)
	decodeTime := time.Since(decodeStart)

	return MethodBenchmark{
		Method:           "huffman",
		CompressedSize:   int64(len(packed)),
		OriginalSize:     int64(len(data)),
		CompressionRatio: ratioOf(len(data), len(packed)),
		EncodeTime:       encodeTime,
		DecodeTime:       decodeTime,
		Lossless:         err == nil && bytes.Equal(decoded, data),
	}, nil
}

func snappyBenchmark(data []byte) MethodBenchmark {
	encodeStart := time.Now()
	compressed := snappy.Encode(nil, data)
	encodeTime := time.Since(encodeStart)

	decodeStart := time.Now()
	decoded, err := snappy.Decode(nil, compressed)
	decodeTime := time.Since(decodeStart)

	return MethodBenchmark{
		Method:           "snappy",
		CompressedSize:   int64(len(compressed)),
		OriginalSize:     int64(len(data)),
		CompressionRatio: ratioOf(len(data), len(compressed)),
		EncodeTime:       encodeTime,
		DecodeTime:       decodeTime,
		Lossless:         err == nil && bytes.Equal(decoded, data),
	}
}

func ratioOf(original, compressed int) float64 {
	if compressed == 0 {
		return 0
	}
	return float64(original) / float64(compressed)
}
