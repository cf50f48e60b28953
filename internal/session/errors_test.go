package session

import (
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
	"testing"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func dialError(err error) error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: err}
}

func TestClassifyDialError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      ConnectErrorKind
		retryable bool
	}{
		{"unresolvable", &net.DNSError{Err: "no such host", Name: "gateway.invalid", IsNotFound: true}, KindUnresolvable, false},
		{"dns timeout", &net.DNSError{Err: "i/o timeout", Name: "gateway.lan", IsTimeout: true}, KindTimeout, true},
		{"refused", dialError(os.NewSyscallError("connect", syscall.ECONNREFUSED)), KindRefused, true},
		{"host unreachable", dialError(os.NewSyscallError("connect", syscall.EHOSTUNREACH)), KindHostUnreachable, true},
		{"host down", dialError(syscall.EHOSTDOWN), KindHostUnreachable, true},
		{"network unreachable", dialError(syscall.ENETUNREACH), KindNetworkUnreachable, true},
		{"network down", dialError(syscall.ENETDOWN), KindNetworkUnreachable, true},
		{"reset", dialError(syscall.ECONNRESET), KindReset, true},
		{"aborted", dialError(syscall.ECONNABORTED), KindReset, true},
		{"timeout", dialError(timeoutError{}), KindTimeout, true},
		{"other", errors.New("something odd"), KindUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyDialError(tt.err, "10.0.0.5:9200")
			if got == nil {
				t.Fatal("Expected ConnectError, got nil")
			}
			if got.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.kind)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tt.retryable)
			}
			if !errors.Is(got, tt.err) {
				t.Error("Expected the dial error to stay in the chain")
			}
			if got.Hint() == "" {
				t.Error("Expected a hint")
			}
		})
	}
}

func TestClassifyDialErrorNil(t *testing.T) {
	if got := ClassifyDialError(nil, "10.0.0.5:9200"); got != nil {
		t.Errorf("Expected nil, got %v", got)
	}
}

func TestConnectErrorMessage(t *testing.T) {
	err := ClassifyDialError(dialError(syscall.ECONNREFUSED), "10.0.0.5:9200")
	msg := err.Error()
	for _, want := range []string{"Connection Refused", "10.0.0.5:9200"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want it to contain %q", msg, want)
		}
	}
}

func TestCorrelationMismatchError(t *testing.T) {
	err := &CorrelationMismatchError{Want: 1, Got: 0}
	if got, want := err.Error(), "ability response for AC 0 while waiting for AC 1"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestConnectionLostErrorUnwraps(t *testing.T) {
	err := &ConnectionLostError{Err: syscall.ECONNRESET}
	if !errors.Is(err, syscall.ECONNRESET) {
		t.Error("Expected ConnectionLostError to unwrap to its cause")
	}
}
