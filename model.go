package prefixcode

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	// ModelAPIVersion is the apiVersion of frequency model documents.
	ModelAPIVersion = "prefixcode/v1"
	// ModelKind is the kind of frequency model documents.
	ModelKind = "FrequencyModel"

	// EnglishModelName names the built-in English letter model.
	EnglishModelName = "english-letters"
)

// FrequencyModel is a YAML-friendly named frequency table.
type FrequencyModel struct {
	APIVersion string        `json:"apiVersion" yaml:"apiVersion"`
	Kind       string        `json:"kind" yaml:"kind"`
	Metadata   ModelMetadata `json:"metadata" yaml:"metadata"`
	Spec       ModelSpec     `json:"spec" yaml:"spec"`
}

// ModelMetadata identifies a frequency model.
type ModelMetadata struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// ModelSpec carries the model's frequency table. Keys are single printable
// characters or 0xNN byte escapes.
type ModelSpec struct {
	Frequencies map[string]uint64 `json:"frequencies" yaml:"frequencies"`
}

// NewFrequencyModel builds a model document from a frequency table.
func NewFrequencyModel(name string, freqs FrequencyTable) FrequencyModel {
	spec := ModelSpec{Frequencies: make(map[string]uint64, len(freqs))}
	for sym, w := range freqs {
		spec.Frequencies[formatSymbolKey(sym)] = w
	}
	return FrequencyModel{
		APIVersion: ModelAPIVersion,
		Kind:       ModelKind,
		Metadata:   ModelMetadata{Name: name},
		Spec:       spec,
	}
}

// EnglishLetterModel returns the built-in model for lowercase English text.
func EnglishLetterModel() FrequencyModel {
	m := NewFrequencyModel(EnglishModelName, EnglishLetterFrequencies())
	m.Metadata.Description = "Relative letter frequencies of lowercase English text"
	return m
}

// ParseModel parses and validates a frequency model document.
func ParseModel(data []byte) (FrequencyModel, error) {
	var m FrequencyModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return FrequencyModel{}, fmt.Errorf("%w: %v", ErrInvalidModel, err)
	}
	if err := m.Validate(); err != nil {
		return FrequencyModel{}, err
	}
	return m, nil
}

// MarshalModel serializes a model document as YAML.
func MarshalModel(m FrequencyModel) ([]byte, error) {
	return yaml.Marshal(m)
}

// Validate checks the document's shape. Empty apiVersion and kind are
// tolerated; wrong values are not.
func (m FrequencyModel) Validate() error {
	if m.APIVersion != "" && m.APIVersion != ModelAPIVersion {
		return fmt.Errorf("%w: unsupported apiVersion %q", ErrInvalidModel, m.APIVersion)
	}
	if m.Kind != "" && m.Kind != ModelKind {
		return fmt.Errorf("%w: unsupported kind %q", ErrInvalidModel, m.Kind)
	}
	if m.Metadata.Name == "" {
		return fmt.Errorf("%w: metadata.name is required", ErrInvalidModel)
	}
	if len(m.Spec.Frequencies) == 0 {
		return fmt.Errorf("%w: spec.frequencies must not be empty", ErrInvalidModel)
	}
	for key := range m.Spec.Frequencies {
		if _, err := parseSymbolKey(key); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidModel, err)
		}
	}
	return nil
}

// Table converts the document's frequencies into a FrequencyTable.
func (m FrequencyModel) Table() (FrequencyTable, error) {
	freqs := make(FrequencyTable, len(m.Spec.Frequencies))
	for key, w := range m.Spec.Frequencies {
		sym, err := parseSymbolKey(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidModel, err)
		}
		if _, dup := freqs[sym]; dup {
			return nil, fmt.Errorf("%w: duplicate symbol %s", ErrInvalidModel, formatSymbolKey(sym))
		}
		freqs[sym] = w
	}
	return freqs, nil
}

// Codec builds a codec from the model's table.
func (m FrequencyModel) Codec() (*Codec, error) {
	freqs, err := m.Table()
	if err != nil {
		return nil, err
	}
	return NewCodec(freqs)
}

// formatSymbolKey renders a symbol as a document key: the character itself
// when printable, a 0xNN escape otherwise.
func formatSymbolKey(sym Symbol) string {
	if sym > 0x20 && sym < 0x7f {
		return string(rune(sym))
	}
	return fmt.Sprintf("0x%02x", sym)
}

// parseSymbolKey reads a document key produced by formatSymbolKey. Single
// characters map to their byte value; 0xNN escapes cover the rest.
func parseSymbolKey(key string) (Symbol, error) {
	if len(key) == 1 {
		return key[0], nil
	}
	if len(key) == 4 && (key[:2] == "0x" || key[:2] == "0X") {
		v, err := strconv.ParseUint(key[2:], 16, 8)
		if err != nil {
			return 0, fmt.Errorf("bad symbol key %q", key)
		}
		return Symbol(v), nil
	}
	return 0, fmt.Errorf("bad symbol key %q: want a single character or 0xNN", key)
}
