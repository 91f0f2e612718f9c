package prefixcode

import (
	"errors"
	"fmt"
)

// Common sentinel errors for the prefixcode package.
var (
	// ErrEmptyFrequencyTable is returned when a tree build is attempted on an
	// empty frequency table.
	ErrEmptyFrequencyTable = errors.New("empty frequency table")

	// ErrUnknownSymbol is returned when encoding encounters a symbol that has
	// no entry in the codebook.
	ErrUnknownSymbol = errors.New("symbol not in codebook")

	// ErrUnalignedBitLength is returned when packing a bit sequence whose
	// length is not a multiple of 8.
	ErrUnalignedBitLength = errors.New("bit length not a multiple of 8")

	// ErrIncompleteCode is returned by strict decoding when the trailing bits
	// of the input do not complete a code.
	ErrIncompleteCode = errors.New("incomplete code at end of input")

	// ErrModelNotFound is returned when a named frequency model does not
	// exist in a store.
	ErrModelNotFound = errors.New("frequency model not found")

	// ErrModelExists is returned when creating a frequency model whose name
	// is already taken.
	ErrModelExists = errors.New("frequency model already exists")

	// ErrInvalidModel is returned for malformed frequency model documents.
	ErrInvalidModel = errors.New("invalid frequency model")

	// ErrStoreClosed is returned when operations are attempted on a closed
	// model store.
	ErrStoreClosed = errors.New("model store is closed")

	// ErrAuthenticationFailed is returned when decryption rejects tampered or
	// wrong-key ciphertext.
	ErrAuthenticationFailed = errors.New("ciphertext authentication failed")
)

// UnknownSymbolError reports a symbol that had no codebook entry.
type UnknownSymbolError struct {
	Symbol Symbol
	Offset int // byte offset of the symbol in the encoder input
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("symbol 0x%02x at offset %d not in codebook", e.Symbol, e.Offset)
}

// Is implements error matching for UnknownSymbolError.
func (e *UnknownSymbolError) Is(target error) bool {
	return target == ErrUnknownSymbol
}

// newUnknownSymbolError creates a new UnknownSymbolError.
func newUnknownSymbolError(sym Symbol, offset int) *UnknownSymbolError {
	return &UnknownSymbolError{Symbol: sym, Offset: offset}
}

// UnalignedBitLengthError reports a bit sequence that cannot be packed into
// whole bytes.
type UnalignedBitLengthError struct {
	Length int
}

func (e *UnalignedBitLengthError) Error() string {
	return fmt.Sprintf("cannot pack %d bits: length is not a multiple of 8", e.Length)
}

// Is implements error matching for UnalignedBitLengthError.
func (e *UnalignedBitLengthError) Is(target error) bool {
	return target == ErrUnalignedBitLength
}

// newUnalignedBitLengthError creates a new UnalignedBitLengthError.
func newUnalignedBitLengthError(length int) *UnalignedBitLengthError {
	return &UnalignedBitLengthError{Length: length}
}

// IncompleteCodeError reports trailing bits that strict decoding could not
// resolve to a symbol.
type IncompleteCodeError struct {
	// Offset is the bit index where the unfinished code started.
	Offset int
	// Remaining is the number of trailing bits consumed into the unfinished
	// code.
	Remaining int
}

func (e *IncompleteCodeError) Error() string {
	return fmt.Sprintf("incomplete code: %d trailing bits at offset %d do not reach a symbol", e.Remaining, e.Offset)
}

// Is implements error matching for IncompleteCodeError.
func (e *IncompleteCodeError) Is(target error) bool {
	return target == ErrIncompleteCode
}

// newIncompleteCodeError creates a new IncompleteCodeError.
func newIncompleteCodeError(offset, remaining int) *IncompleteCodeError {
	return &IncompleteCodeError{Offset: offset, Remaining: remaining}
}

// StoreError provides detailed information about model store failures.
type StoreError struct {
	Backend string
	Op      string
	Name    string
	Cause   error
}

func (e *StoreError) Error() string {
	if e.Name != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s store: %s %q: %v", e.Backend, e.Op, e.Name, e.Cause)
		}
		return fmt.Sprintf("%s store: %s %q", e.Backend, e.Op, e.Name)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s store: %s: %v", e.Backend, e.Op, e.Cause)
	}
	return fmt.Sprintf("%s store: %s", e.Backend, e.Op)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// newStoreError creates a new StoreError.
func newStoreError(backend, op, name string, cause error) *StoreError {
	return &StoreError{Backend: backend, Op: op, Name: name, Cause: cause}
}
