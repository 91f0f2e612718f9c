package prefixcode

import (
	"bytes"
	"math/rand"
	"testing"
)

// englishLikeSample draws letters with realistic English weights so the
// sample is skewed but has no long repeats for a byte-matcher to exploit.
func englishLikeSample(n int, seed int64) []byte {
	freqs := EnglishLetterFrequencies()
	symbols := freqs.Symbols()

	var total uint64
	cumulative := make([]uint64, len(symbols))
	for i, sym := range symbols {
		total += freqs[sym]
		cumulative[i] = total
	}

	rng := rand.New(rand.NewSource(seed))
	sample := make([]byte, n)
	for i := range sample {
		pick := uint64(rng.Int63n(int64(total)))
		for j, bound := range cumulative {
			if pick < bound {
				sample[i] = symbols[j]
				break
			}
		}
	}
	return sample
}

func TestCompressionAdvisor_SkewedText(t *testing.T) {
	advisor := NewCompressionAdvisor(DefaultCompressionAdvisorConfig())
	sample := englishLikeSample(4096, 1)

	report, err := advisor.Advise(sample)
	if err != nil {
		t.Fatalf("Advise failed: %v", err)
	}

	if report.Recommended != "huffman" {
		t.Errorf("got recommendation %q, want huffman (reasoning: %s)",
			report.Recommended, report.Reasoning)
	}
	if len(report.Benchmarks) != 3 {
		t.Fatalf("got %d benchmarks, want 3", len(report.Benchmarks))
	}
	for i := 1; i < len(report.Benchmarks); i++ {
		if report.Benchmarks[i-1].CompressedSize > report.Benchmarks[i].CompressedSize {
			t.Error("benchmarks not sorted by compressed size")
		}
	}

	huffman := findBenchmark(report.Benchmarks, "huffman")
	if huffman == nil {
		t.Fatal("missing huffman benchmark")
	}
	if !huffman.Lossless {
		t.Error("huffman round trip not lossless")
	}
	if huffman.CompressedSize >= int64(len(sample)) {
		t.Errorf("huffman did not compress: %d >= %d", huffman.CompressedSize, len(sample))
	}

	if report.Profile.PrintableRatio != 1.0 {
		t.Errorf("got printable ratio %v, want 1.0", report.Profile.PrintableRatio)
	}
	if report.Profile.DistinctSymbols > 26 {
		t.Errorf("got %d distinct symbols, want at most 26", report.Profile.DistinctSymbols)
	}
	if report.Profile.Entropy <= 3.5 || report.Profile.Entropy >= 4.7 {
		t.Errorf("got entropy %v, want near 4.2 bits/symbol", report.Profile.Entropy)
	}
}

func TestCompressionAdvisor_RepetitiveData(t *testing.T) {
	advisor := NewCompressionAdvisor(DefaultCompressionAdvisorConfig())
	sample := bytes.Repeat([]byte("status=ok latency=12ms "), 200)

	report, err := advisor.Advise(sample)
	if err != nil {
		t.Fatalf("Advise failed: %v", err)
	}

	// A byte matcher collapses the repeats far below what per-symbol
	// coding can reach.
	if report.Recommended != "snappy" {
		t.Errorf("got recommendation %q, want snappy (reasoning: %s)",
			report.Recommended, report.Reasoning)
	}
	snappyBench := findBenchmark(report.Benchmarks, "snappy")
	huffmanBench := findBenchmark(report.Benchmarks, "huffman")
	if snappyBench == nil || huffmanBench == nil {
		t.Fatal("missing benchmarks")
	}
	if snappyBench.CompressedSize >= huffmanBench.CompressedSize {
		t.Errorf("expected snappy (%d bytes) to beat huffman (%d bytes)",
			snappyBench.CompressedSize, huffmanBench.CompressedSize)
	}
	if !snappyBench.Lossless {
		t.Error("snappy round trip not lossless")
	}
}

func TestCompressionAdvisor_RandomBytes(t *testing.T) {
	advisor := NewCompressionAdvisor(DefaultCompressionAdvisorConfig())

	rng := rand.New(rand.NewSource(7))
	sample := make([]byte, 4096)
	rng.Read(sample)

	report, err := advisor.Advise(sample)
	if err != nil {
		t.Fatalf("Advise failed: %v", err)
	}

	if report.Recommended != "none" {
		t.Errorf("got recommendation %q, want none (reasoning: %s)",
			report.Recommended, report.Reasoning)
	}
	if report.Profile.Entropy < 7.5 {
		t.Errorf("got entropy %v, want near 8 bits/symbol", report.Profile.Entropy)
	}
}

func TestCompressionAdvisor_TinySample(t *testing.T) {
	advisor := NewCompressionAdvisor(DefaultCompressionAdvisorConfig())

	report, err := advisor.Advise([]byte("hi"))
	if err != nil {
		t.Fatalf("Advise failed: %v", err)
	}
	if report.Recommended != "none" {
		t.Errorf("got recommendation %q for tiny sample, want none", report.Recommended)
	}
}

func TestCompressionAdvisor_EmptySample(t *testing.T) {
	advisor := NewCompressionAdvisor(DefaultCompressionAdvisorConfig())
	if _, err := advisor.Advise(nil); err == nil {
		t.Error("expected error for empty sample")
	}
}

func TestCompressionAdvisor_SampleLimit(t *testing.T) {
	advisor := NewCompressionAdvisor(CompressionAdvisorConfig{SampleLimit: 100})
	sample := englishLikeSample(1000, 2)

	report, err := advisor.Advise(sample)
	if err != nil {
		t.Fatalf("Advise failed: %v", err)
	}
	if report.Profile.SampleSize != 100 {
		t.Errorf("got sample size %d, want 100", report.Profile.SampleSize)
	}
}

func TestDefaultCompressionAdvisorConfig(t *testing.T) {
	cfg := DefaultCompressionAdvisorConfig()
	if cfg.SampleLimit != 64*1024 {
		t.Errorf("got sample limit %d, want 64KB", cfg.SampleLimit)
	}
	if cfg.MinGainPct != 5.0 {
		t.Errorf("got min gain %v, want 5.0", cfg.MinGainPct)
	}
}
