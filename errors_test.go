package prefixcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestUnknownSymbolError(t *testing.T) {
	err := newUnknownSymbolError('q', 12)
	if err.Symbol != 'q' {
		t.Errorf("expected symbol 'q', got %q", err.Symbol)
	}
	if err.Offset != 12 {
		t.Errorf("expected offset 12, got %d", err.Offset)
	}
	if !errors.Is(err, ErrUnknownSymbol) {
		t.Error("expected error to match ErrUnknownSymbol")
	}
	if errors.Is(err, ErrIncompleteCode) {
		t.Error("unknown symbol error should not match ErrIncompleteCode")
	}

	msg := err.Error()
	if msg != "symbol 0x71 at offset 12 not in codebook" {
		t.Errorf("unexpected message: %s", msg)
	}

	// Typed details survive wrapping.
	var use *UnknownSymbolError
	wrapped := fmt.Errorf("encode: %w", err)
	if !errors.As(wrapped, &use) {
		t.Error("expected wrapped error to unwrap to UnknownSymbolError")
	}
	if use.Offset != 12 {
		t.Errorf("expected offset 12 after unwrap, got %d", use.Offset)
	}
}

func TestUnalignedBitLengthError(t *testing.T) {
	err := newUnalignedBitLengthError(13)
	if err.Length != 13 {
		t.Errorf("expected length 13, got %d", err.Length)
	}
	if !errors.Is(err, ErrUnalignedBitLength) {
		t.Error("expected error to match ErrUnalignedBitLength")
	}
	if err.Error() == "" {
		t.Error("expected non-empty error message")
	}
}

func TestIncompleteCodeError(t *testing.T) {
	err := newIncompleteCodeError(40, 3)
	if err.Offset != 40 {
		t.Errorf("expected offset 40, got %d", err.Offset)
	}
	if err.Remaining != 3 {
		t.Errorf("expected 3 remaining bits, got %d", err.Remaining)
	}
	if !errors.Is(err, ErrIncompleteCode) {
		t.Error("expected error to match ErrIncompleteCode")
	}
	if errors.Is(err, ErrUnknownSymbol) {
		t.Error("incomplete code error should not match ErrUnknownSymbol")
	}
	if err.Error() == "" {
		t.Error("expected non-empty error message")
	}
}

func TestStoreError(t *testing.T) {
	cause := errors.New("disk full")

	// With a model name and a cause.
	err := newStoreError("file", "put", "english", cause)
	if !errors.Is(err, cause) {
		t.Error("expected error to unwrap to cause")
	}
	msg := err.Error()
	if msg != `file store: put "english": disk full` {
		t.Errorf("unexpected message: %s", msg)
	}

	// Without a name.
	err2 := newStoreError("sqlite", "list", "", cause)
	if err2.Error() != "sqlite store: list: disk full" {
		t.Errorf("unexpected message: %s", err2.Error())
	}

	// Without a cause.
	err3 := newStoreError("s3", "close", "", nil)
	if err3.Error() != "s3 store: close" {
		t.Errorf("unexpected message: %s", err3.Error())
	}
	if err3.Unwrap() != nil {
		t.Error("expected nil unwrap when there is no cause")
	}

	// Sentinel causes stay matchable through the wrapper.
	nf := newStoreError("memory", "get", "missing", ErrModelNotFound)
	if !errors.Is(nf, ErrModelNotFound) {
		t.Error("expected error to match ErrModelNotFound")
	}
}
