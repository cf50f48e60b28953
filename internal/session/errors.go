package session

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

var (
	// ErrNotConnected is returned by sends on a session that is not running.
	ErrNotConnected = errors.New("session: not connected")
	// ErrStopped is returned by reads and waits interrupted by Stop.
	ErrStopped = errors.New("session: stopped")
	// ErrUnknownUnit is returned for ids the registry has not seen.
	ErrUnknownUnit = errors.New("session: unknown unit")
)

// ConnectErrorKind is the category of a failed dial.
type ConnectErrorKind int

const (
	// KindUnknown is any dial failure not listed below.
	KindUnknown ConnectErrorKind = iota
	// KindUnresolvable means the host name did not resolve.
	KindUnresolvable
	// KindRefused means nothing listens on the gateway port.
	KindRefused
	// KindHostUnreachable means no route to the gateway.
	KindHostUnreachable
	// KindNetworkUnreachable means the local network is down.
	KindNetworkUnreachable
	// KindTimeout means the dial did not complete in time.
	KindTimeout
	// KindReset means the gateway reset or aborted the connection.
	KindReset
)

func (k ConnectErrorKind) String() string {
	switch k {
	case KindUnresolvable:
		return "Unresolvable Address"
	case KindRefused:
		return "Connection Refused"
	case KindHostUnreachable:
		return "Host Unreachable"
	case KindNetworkUnreachable:
		return "Network Unreachable"
	case KindTimeout:
		return "Timeout"
	case KindReset:
		return "Connection Reset"
	case KindUnknown:
		return "Network Error"
	default:
		return fmt.Sprintf("ConnectErrorKind(%d)", int(k))
	}
}

// ConnectError describes a failed attempt to reach the gateway.
type ConnectError struct {
	Kind      ConnectErrorKind
	Addr      string
	Err       error
	Retryable bool
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("%s: connecting to %s: %v", e.Kind, e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Hint returns troubleshooting text for the user.
func (e *ConnectError) Hint() string {
	switch e.Kind {
	case KindUnresolvable:
		return "Check the gateway host name, or use its IP address."
	case KindRefused:
		return "The host is up but not accepting connections on this port. Check the port and the protocol generation."
	case KindHostUnreachable:
		return "The gateway is not reachable. Check it is powered on and on the same network."
	case KindNetworkUnreachable:
		return "The local network is down. Check your network connection."
	case KindTimeout:
		return "The gateway did not answer in time. Check the address and that no firewall drops the traffic."
	case KindReset:
		return "The gateway closed the connection. It may already be serving another client."
	default:
		return "Check the gateway address and your network connection."
	}
}

// ClassifyDialError maps a dial error to a *ConnectError. Only unresolvable
// addresses are not retryable.
func ClassifyDialError(err error, addr string) *ConnectError {
	if err == nil {
		return nil
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout && !dnsErr.IsTemporary {
		return &ConnectError{Kind: KindUnresolvable, Addr: addr, Err: err}
	}

	kind := KindUnknown
	switch {
	case os.IsTimeout(err), errors.Is(err, syscall.ETIMEDOUT):
		kind = KindTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		kind = KindRefused
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.EHOSTDOWN):
		kind = KindHostUnreachable
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.ENETDOWN):
		kind = KindNetworkUnreachable
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNABORTED):
		kind = KindReset
	}
	return &ConnectError{Kind: kind, Addr: addr, Err: err, Retryable: true}
}

// ConnectionLostError is returned by ReadExactly when the connection failed
// underneath the reader. The transport is already reconnecting.
type ConnectionLostError struct {
	Err error
}

func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("connection lost: %v", e.Err)
}

func (e *ConnectionLostError) Unwrap() error {
	return e.Err
}

// CorrelationMismatchError reports an ability response for an AC other than
// the one requested.
type CorrelationMismatchError struct {
	Want uint8
	Got  uint8
}

func (e *CorrelationMismatchError) Error() string {
	return fmt.Sprintf("ability response for AC %d while waiting for AC %d", e.Got, e.Want)
}
