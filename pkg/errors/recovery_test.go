package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRecover_Panic(t *testing.T) {
	fn := func() (err error) {
		defer Recover(&err, "Conv2D.Forward")
		panic("index out of range")
	}

	err := fn()
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}
	if panicErr.Operation != "Conv2D.Forward" {
		t.Errorf("Operation = %q", panicErr.Operation)
	}
	if !strings.Contains(panicErr.String(), "Stack trace:") {
		t.Error("String() should include stack trace information")
	}
}

func TestRecover_KeepsExistingError(t *testing.T) {
	original := fmt.Errorf("batch failed")
	fn := func() (err error) {
		defer Recover(&err, "Fit")
		err = original
		panic("boom")
	}

	err := fn()
	if !errors.Is(err, original) {
		t.Fatalf("original error lost: %v", err)
	}
	if !strings.Contains(err.Error(), "panic in Fit: boom") {
		t.Errorf("panic info missing: %v", err)
	}
}

func TestSafeExecute(t *testing.T) {
	tests := []struct {
		name      string
		fn        func() error
		wantPanic bool
		wantErr   bool
	}{
		{name: "success", fn: func() error { return nil }},
		{name: "error", fn: func() error { return fmt.Errorf("plain") }, wantErr: true},
		{name: "panic", fn: func() error { panic(42) }, wantErr: true, wantPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SafeExecute("op", tt.fn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			var panicErr *PanicError
			if errors.As(err, &panicErr) != tt.wantPanic {
				t.Errorf("panic classification wrong for %v", err)
			}
		})
	}
}

func TestPanicError_UnwrapsErrorValues(t *testing.T) {
	cause := fmt.Errorf("matrix dimension error")
	panicErr := NewPanicError("Dense.Backward", cause)
	if !errors.Is(panicErr, cause) {
		t.Error("PanicError should unwrap an error panic value")
	}
	if NewPanicError("x", "text").Unwrap() != nil {
		t.Error("non-error panic values unwrap to nil")
	}
}
