package saga

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorTypes(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	tests := []struct {
		name     string
		err      error
		sentinel error
		code     string
	}{
		{"transport", NewTransportError("sagas", "http://x", cause), ErrTransport, ErrCodeTransport},
		{"http status", NewHTTPStatusError("sagas", "http://x", 502, "bad gateway"), ErrHTTPStatus, ErrCodeHTTPStatus},
		{"decode", NewDecodeError("sagas", "http://x", cause), ErrDecode, ErrCodeDecode},
		{"not found", NewNotFoundError("s-1"), ErrNotFound, ErrCodeNotFound},
		{"validation", NewValidationError("pago.monto", "must be positive, got %v", -1), ErrValidation, ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("expected errors.Is(%v) to match sentinel", tt.err)
			}
			if !strings.HasPrefix(tt.err.Error(), tt.code+":") {
				t.Errorf("expected message to start with %s, got %q", tt.code, tt.err.Error())
			}

			wrapped := fmt.Errorf("fetch: %w", tt.err)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Error("sentinel should match through wrapping")
			}
		})
	}
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("root cause")
	err := NewTransportError("payments", "http://x/pagos/", cause)

	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable via errors.Is")
	}
	if !strings.Contains(err.Error(), "root cause") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}
	if errors.Is(err, ErrDecode) {
		t.Error("transport error should not match ErrDecode")
	}
}

func TestHTTPStatusErrorMessage(t *testing.T) {
	err := NewHTTPStatusError("sagas", "http://x/saga/", 500, "")
	if strings.HasSuffix(err.Error(), ": ") {
		t.Errorf("empty detail should not leave a trailing separator: %q", err.Error())
	}
	err = NewHTTPStatusError("sagas", "http://x/saga/", 500, "Error interno")
	if !strings.HasSuffix(err.Error(), ": Error interno") {
		t.Errorf("expected detail in message, got %q", err.Error())
	}
}

func TestTruncateError(t *testing.T) {
	if TruncateError(nil) != "" {
		t.Error("nil error should truncate to empty string")
	}

	short := errors.New("short")
	if TruncateError(short) != "short" {
		t.Error("short messages should be unchanged")
	}

	long := errors.New(strings.Repeat("x", MaxErrorLength*2))
	got := TruncateError(long)
	if len(got) != MaxErrorLength {
		t.Errorf("expected length %d, got %d", MaxErrorLength, len(got))
	}
	if !strings.HasSuffix(got, "[TRUNCATED]") {
		t.Error("expected truncation marker")
	}
}
