package simulator

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// server is the listener and connection bookkeeping shared by both gateways.
type server struct {
	name   string
	log    *zap.Logger
	handle func(c *conn)

	listener net.Listener
	wg       sync.WaitGroup

	mu       sync.Mutex
	conns    map[*conn]struct{}
	requests map[string]int
	accepted int
}

// conn is one client connection with serialized writes.
type conn struct {
	net.Conn
	writeMu sync.Mutex
}

func (c *conn) send(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.Write(b)
	return err
}

func newServer(name string, log *zap.Logger) *server {
	if log == nil {
		log = zap.NewNop()
	}
	return &server{
		name:     name,
		log:      log.With(zap.String("simulator", name)),
		conns:    make(map[*conn]struct{}),
		requests: make(map[string]int),
	}
}

// Start listens on addr, for example "127.0.0.1:0", and serves in the
// background.
func (s *server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.log.Info("Simulator listening", zap.String("addr", listener.Addr().String()))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptConnections()
	}()
	return nil
}

// Addr returns the listening address.
func (s *server) Addr() string {
	return s.listener.Addr().String()
}

// Host returns the listening IP.
func (s *server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listening port.
func (s *server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	n, _ := strconv.Atoi(port)
	return n
}

func (s *server) acceptConnections() {
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Error("Failed to accept connection", zap.Error(err))
			continue
		}

		c := &conn{Conn: nc}
		s.mu.Lock()
		s.conns[c] = struct{}{}
		s.accepted++
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.forget(c)
			s.log.Debug("Client connected", zap.String("remote_addr", nc.RemoteAddr().String()))
			s.handle(c)
		}()
	}
}

func (s *server) forget(c *conn) {
	_ = c.Close()
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.log.Debug("Client disconnected", zap.String("remote_addr", c.RemoteAddr().String()))
}

// DropConnections closes every client connection, as a gateway reboot
// would. The listener stays open.
func (s *server) DropConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.log.Info("Dropped all connections", zap.Int("count", len(s.conns)))
}

// Connections returns the number of open client connections.
func (s *server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Accepted returns the number of connections accepted so far.
func (s *server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Requests returns how often a request of kind has been received.
func (s *server) Requests(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[kind]
}

func (s *server) count(kind string) {
	s.mu.Lock()
	s.requests[kind]++
	s.mu.Unlock()
}

// WriteRaw sends b unchanged to every client.
func (s *server) WriteRaw(b []byte) {
	s.broadcast(b)
}

func (s *server) broadcast(b []byte) {
	s.mu.Lock()
	targets := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		if err := c.send(b); err != nil {
			s.log.Debug("Broadcast failed", zap.String("remote_addr", c.RemoteAddr().String()), zap.Error(err))
		}
	}
}

// Close stops listening, closes every connection and waits for the
// handlers to finish.
func (s *server) Close() error {
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	s.DropConnections()
	s.wg.Wait()
	return err
}
