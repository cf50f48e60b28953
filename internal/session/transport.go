package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Dialer opens connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Transport keeps one TCP connection to the gateway alive. A read or write
// failure closes the socket and starts a background reconnect; the handshake
// frames are written on every new connection before sends are released.
//
// ReadExactly must only be called from a single receive loop.
type Transport struct {
	cfg       Config
	addr      string
	dialer    Dialer
	log       *zap.Logger
	rec       Recorder
	handshake [][]byte

	mu       sync.Mutex
	state    State
	conn     net.Conn
	reader   *bufio.Reader
	ready    chan struct{} // closed once streaming
	lifetime context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	writeMu sync.Mutex
}

// NewTransport returns a disconnected transport.
func NewTransport(cfg Config, dialer Dialer, log *zap.Logger, rec Recorder, handshake ...[]byte) *Transport {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	cfg = cfg.withDefaults()
	return &Transport{
		cfg:       cfg,
		addr:      cfg.Addr(),
		dialer:    dialer,
		log:       log,
		rec:       rec,
		handshake: handshake,
		ready:     make(chan struct{}),
	}
}

// State returns the current state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Connect dials the gateway and writes the handshake. Transient failures
// are retried until ctx ends; an unresolvable address fails at once.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateDisconnected {
		t.mu.Unlock()
		return fmt.Errorf("connect: transport is %s", t.state)
	}
	t.lifetime, t.cancel = context.WithCancel(context.Background())
	t.ready = make(chan struct{})
	t.setStateLocked(StateConnecting)
	lifetime := t.lifetime
	t.mu.Unlock()

	dialCtx, stop := mergeDone(ctx, lifetime)
	defer stop()

	for {
		conn, err := t.dial(dialCtx, true)
		if err == nil {
			if err = t.establish(conn); err == nil {
				return nil
			}
			t.log.Warn("Handshake failed", zap.String("addr", t.addr), zap.Error(err))
		}
		if dialCtx.Err() != nil || !retryable(err) || !sleep(dialCtx.Done(), t.cfg.Backoff.Initial) {
			stopped := lifetime.Err() != nil
			t.abort()
			if stopped {
				return ErrStopped
			}
			return err
		}
	}
}

// Send writes b, waiting out a reconnect if one is in progress. A failed
// write triggers a reconnect and b is written again on the new connection.
func (t *Transport) Send(ctx context.Context, b []byte) error {
	for {
		t.mu.Lock()
		state, conn, ready, lifetime := t.state, t.conn, t.ready, t.lifetime
		t.mu.Unlock()

		if state == StateDisconnected {
			return ErrNotConnected
		}
		if conn == nil {
			select {
			case <-ready:
				continue
			case <-ctx.Done():
				return ctx.Err()
			case <-lifetime.Done():
				return ErrNotConnected
			}
		}

		t.writeMu.Lock()
		err := t.write(conn, b)
		t.writeMu.Unlock()
		if err == nil {
			return nil
		}
		if lifetime.Err() != nil {
			return ErrNotConnected
		}
		t.log.Debug("Write failed", zap.String("addr", t.addr), zap.Error(err))
		t.fail(conn, err)
	}
}

// ReadExactly reads n bytes from the current connection. When the read
// fails it starts a reconnect and returns *ConnectionLostError; the next
// call waits for the new connection.
func (t *Transport) ReadExactly(ctx context.Context, n int) ([]byte, error) {
	for {
		t.mu.Lock()
		state, conn, reader, ready, lifetime := t.state, t.conn, t.reader, t.ready, t.lifetime
		t.mu.Unlock()

		if state == StateDisconnected {
			return nil, ErrStopped
		}
		if conn == nil {
			select {
			case <-ready:
				continue
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-lifetime.Done():
				return nil, ErrStopped
			}
		}

		buf := make([]byte, n)
		unblock := context.AfterFunc(ctx, func() {
			_ = conn.SetReadDeadline(time.Unix(1, 0))
		})
		_, err := io.ReadFull(reader, buf)
		if !unblock() {
			_ = conn.SetReadDeadline(time.Time{})
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}
		if err == nil {
			return buf, nil
		}
		if lifetime.Err() != nil {
			return nil, ErrStopped
		}
		t.fail(conn, err)
		return nil, &ConnectionLostError{Err: err}
	}
}

// Stop closes the connection and ends any reconnect. It is safe to call
// more than once.
func (t *Transport) Stop() {
	t.mu.Lock()
	if t.state == StateDisconnected {
		t.mu.Unlock()
		return
	}
	t.cancel()
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn, t.reader = nil, nil
	}
	t.setStateLocked(StateDisconnected)
	t.mu.Unlock()

	t.wg.Wait()
}

// dial makes one connection, backing off between failed attempts. On the
// initial connect a non-retryable error is returned straight away.
func (t *Transport) dial(ctx context.Context, initial bool) (net.Conn, error) {
	b := newBackoff(t.cfg.Backoff)
	for attempt := 1; ; attempt++ {
		dctx, cancel := context.WithTimeout(ctx, t.cfg.DialTimeout)
		conn, err := t.dialer.DialContext(dctx, "tcp", t.addr)
		cancel()
		if err == nil {
			if attempt > 1 {
				t.log.Info("Connected after retrying", zap.String("addr", t.addr), zap.Int("attempts", attempt))
			}
			return conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		connErr := ClassifyDialError(err, t.addr)
		if initial && !connErr.Retryable {
			return nil, connErr
		}

		delay := b.NextBackOff()
		if shouldLogRetry(attempt) {
			t.log.Warn("Still trying to connect",
				zap.String("addr", t.addr),
				zap.Int("attempts", attempt),
				zap.Stringer("kind", connErr.Kind),
				zap.Duration("next_delay", delay),
				zap.Error(err),
			)
		} else {
			t.log.Debug("Connect attempt failed",
				zap.String("addr", t.addr),
				zap.Int("attempt", attempt),
				zap.Duration("next_delay", delay),
				zap.Error(err),
			)
		}
		if !sleep(ctx.Done(), delay) {
			return nil, ctx.Err()
		}
	}
}

// establish writes the handshake on conn and publishes it.
func (t *Transport) establish(conn net.Conn) error {
	for _, frame := range t.handshake {
		if err := t.write(conn, frame); err != nil {
			_ = conn.Close()
			return fmt.Errorf("handshake: %w", err)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lifetime.Err() != nil {
		_ = conn.Close()
		return ErrStopped
	}
	t.conn = conn
	t.reader = bufio.NewReader(conn)
	t.setStateLocked(StateStreaming)
	close(t.ready)
	t.log.Info("Connected", zap.String("addr", t.addr), zap.String("local_addr", conn.LocalAddr().String()))
	return nil
}

func (t *Transport) write(conn net.Conn, b []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout)); err != nil {
		return err
	}
	_, err := conn.Write(b)
	return err
}

// fail tears down conn and starts a reconnect, unless another caller has
// already done so for this connection.
func (t *Transport) fail(conn net.Conn, cause error) {
	t.mu.Lock()
	if t.conn != conn || t.state != StateStreaming {
		t.mu.Unlock()
		return
	}
	_ = conn.Close()
	t.conn, t.reader = nil, nil
	t.ready = make(chan struct{})
	t.setStateLocked(StateReconnecting)
	lifetime := t.lifetime
	t.wg.Add(1)
	t.mu.Unlock()

	t.log.Warn("Connection lost, reconnecting", zap.String("addr", t.addr), zap.Error(cause))
	t.rec.Reconnected()
	go t.reconnect(lifetime)
}

func (t *Transport) reconnect(lifetime context.Context) {
	defer t.wg.Done()
	for lifetime.Err() == nil {
		conn, err := t.dial(lifetime, false)
		if err != nil {
			return
		}
		if err := t.establish(conn); err != nil {
			if errors.Is(err, ErrStopped) {
				return
			}
			t.log.Warn("Handshake failed after reconnect", zap.String("addr", t.addr), zap.Error(err))
			if !sleep(lifetime.Done(), t.cfg.Backoff.Max) {
				return
			}
		}
	}
}

// abort returns a failed initial connect to Disconnected.
func (t *Transport) abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancel()
	t.setStateLocked(StateDisconnected)
}

func (t *Transport) setStateLocked(s State) {
	if t.state == s {
		return
	}
	t.log.Debug("Transport state changed",
		zap.String("addr", t.addr),
		zap.Stringer("from", t.state),
		zap.Stringer("to", s),
	)
	t.state = s
	t.rec.StateChanged(s)
}

// retryable reports whether a failed initial connect attempt may be repeated.
func retryable(err error) bool {
	var connErr *ConnectError
	if errors.As(err, &connErr) {
		return connErr.Retryable
	}
	return !errors.Is(err, ErrStopped)
}

// mergeDone returns a context that ends when either parent ends.
func mergeDone(ctx, other context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(other, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
