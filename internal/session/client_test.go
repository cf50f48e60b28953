package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/muurk/airtouch/internal/protocol"
	"github.com/muurk/airtouch/internal/simulator"
)

const (
	waitFor = 3 * time.Second
	tick    = 5 * time.Millisecond
)

type listener interface {
	Host() string
	Port() int
}

func testConfig(gw listener) Config {
	cfg := DefaultConfig(gw.Host(), gw.Port())
	cfg.DialTimeout = time.Second
	cfg.WriteTimeout = time.Second
	cfg.Backoff = BackoffConfig{Initial: time.Millisecond, Multiplier: 2, Max: 20 * time.Millisecond}
	cfg.AbilityRetryInterval = 50 * time.Millisecond
	cfg.CommandTimeout = time.Second
	return cfg
}

func startGateway(t *testing.T) *simulator.Gateway {
	t.Helper()
	gw := simulator.NewGateway(simulator.DefaultState(), simulator.WithLogger(zap.NewNop()))
	require.NoError(t, gw.Start("127.0.0.1:0"))
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

// startClient connects a client to gw, runs its receive loop and waits for
// the first AC.
func startClient(t *testing.T, cfg Config, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	c := NewClient(cfg, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, c.Connect(ctx))

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	t.Cleanup(func() {
		c.Stop()
		assert.NoError(t, <-done)
	})

	require.NoError(t, c.WaitForAC(ctx))
	return c
}

// recorder counts session events.
type recorder struct {
	mu         sync.Mutex
	frames     map[string]int
	abilities  map[string]int
	reconnects int
}

func newRecorder() *recorder {
	return &recorder{frames: make(map[string]int), abilities: make(map[string]int)}
}

func (r *recorder) FrameReceived(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames[result]++
}

func (r *recorder) AbilityRequest(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abilities[result]++
}

func (r *recorder) Reconnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconnects++
}

func (r *recorder) MessageDecoded(string) {}
func (r *recorder) StateChanged(State)    {}
func (r *recorder) Units(string, int)     {}

func (r *recorder) frame(result string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames[result]
}

func (r *recorder) ability(result string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.abilities[result]
}

func (r *recorder) reconnectCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reconnects
}

func waitForAbilities(t *testing.T, c *Client) {
	t.Helper()
	require.Eventually(t, func() bool {
		acs := c.ACs()
		for _, ac := range acs {
			if ac.Ability == nil {
				return false
			}
		}
		return len(acs) == 2
	}, waitFor, tick)
}

func TestClientDiscoversUnits(t *testing.T) {
	gw := startGateway(t)
	c := startClient(t, testConfig(gw))

	waitForAbilities(t, c)
	require.Eventually(t, func() bool {
		groups := c.Groups()
		return len(groups) == 4 && groups[3].Name == "Bed 2"
	}, waitFor, tick)

	acs := c.ACs()
	assert.Equal(t, "Downstairs", acs[0].Name)
	assert.True(t, acs[0].On())
	assert.Equal(t, protocol.ACModeCool, acs[0].Mode)
	assert.Equal(t, 24.0, acs[0].Setpoint)
	assert.Equal(t, 26.5, acs[0].Temperature)
	assert.Equal(t, []protocol.FanSpeed{protocol.FanSpeedAuto, protocol.FanSpeedLow, protocol.FanSpeedMedium, protocol.FanSpeedHigh}, acs[0].FanSpeeds)

	assert.Equal(t, "Upstairs", acs[1].Name)
	assert.False(t, acs[1].On())
	require.NotNil(t, acs[1].Ability)
	assert.True(t, acs[1].Ability.Dual)

	groups := c.Groups()
	assert.Equal(t, "Living", groups[0].Name)
	assert.Equal(t, 100, groups[0].Damper)
	assert.True(t, groups[0].SupportsTurbo)
	assert.False(t, groups[2].On())

	assert.Equal(t, 1, gw.Requests(simulator.RequestGroupNames))
	assert.Equal(t, StateStreaming, c.State())
}

func TestClientKeepsRegistryAfterStop(t *testing.T) {
	gw := startGateway(t)
	c := startClient(t, testConfig(gw))
	waitForAbilities(t, c)

	c.Stop()
	assert.Equal(t, StateDisconnected, c.State())
	assert.Len(t, c.ACs(), 2)
	assert.ErrorIs(t, c.SetACPower(context.Background(), 0, false), ErrNotConnected)
}

func TestClientNotifiesObservers(t *testing.T) {
	gw := startGateway(t)
	c := startClient(t, testConfig(gw))

	var (
		mu    sync.Mutex
		calls []string
		last  ACState
	)
	_, err := c.SubscribeAC(0, func(s ACState) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, "first")
		last = s
	})
	require.NoError(t, err)
	second, err := c.SubscribeAC(0, func(ACState) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, "second")
	})
	require.NoError(t, err)

	var otherCalls atomic.Int32
	_, err = c.SubscribeAC(1, func(ACState) { otherCalls.Add(1) })
	require.NoError(t, err)

	gw.UpdateAC(0, func(s *protocol.ACStatus) { s.Setpoint = 120 })
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last.Setpoint == 22
	}, waitFor, tick)

	mu.Lock()
	assert.Equal(t, []string{"first", "second"}, calls[len(calls)-2:])
	mu.Unlock()

	require.True(t, c.Unsubscribe(second))
	mu.Lock()
	calls = nil
	mu.Unlock()

	gw.UpdateAC(0, func(s *protocol.ACStatus) { s.Setpoint = 130 })
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last.Setpoint == 23
	}, waitFor, tick)

	mu.Lock()
	assert.NotContains(t, calls, "second")
	mu.Unlock()
	assert.Zero(t, otherCalls.Load())
}

func TestClientCommands(t *testing.T) {
	gw := startGateway(t)
	c := startClient(t, testConfig(gw))
	waitForAbilities(t, c)
	ctx := context.Background()

	require.NoError(t, c.SetACPower(ctx, 1, true))
	require.NoError(t, c.SetACMode(ctx, 1, protocol.ACSetModeCool))
	require.NoError(t, c.SetACFanSpeed(ctx, 1, protocol.FanSpeedHigh))
	require.NoError(t, c.SetACSetpoint(ctx, 1, 19.5))
	require.NoError(t, c.SetGroupPower(ctx, 2, true))
	require.NoError(t, c.SetGroupDamper(ctx, 2, 35))

	require.Eventually(t, func() bool {
		ac, _ := c.AC(1)
		g, _ := c.Group(2)
		return ac.On() && ac.Mode == protocol.ACModeCool && ac.FanSpeed == protocol.FanSpeedHigh &&
			ac.Setpoint == 19.5 && g.On() && g.Damper == 35
	}, waitFor, tick)

	ac, ok := gw.AC(1)
	require.True(t, ok)
	assert.Equal(t, protocol.ACPowerOn, ac.Status.Power)
	assert.Equal(t, 4, gw.Requests(simulator.RequestACControl))
	assert.Equal(t, 2, gw.Requests(simulator.RequestGroupControl))
}

func TestClientRejectsUnsupportedSettings(t *testing.T) {
	gw := startGateway(t)
	c := startClient(t, testConfig(gw))
	waitForAbilities(t, c)
	ctx := context.Background()

	var verr *protocol.ValidationError
	assert.ErrorAs(t, c.SetACFanSpeed(ctx, 1, protocol.FanSpeedAuto), &verr)
	assert.ErrorAs(t, c.SetACMode(ctx, 1, protocol.ACSetModeDry), &verr)
	// AC 1 heats between 16 and 26.
	assert.ErrorAs(t, c.SetACSetpoint(ctx, 1, 28), &verr)
	assert.ErrorAs(t, c.SetGroupDamper(ctx, 0, 101), &verr)
	assert.ErrorAs(t, c.ControlAC(ctx), &verr)

	assert.Zero(t, gw.Requests(simulator.RequestACControl))
}

func TestClientReconnectReplaysHandshake(t *testing.T) {
	gw := startGateway(t)
	rec := newRecorder()
	c := startClient(t, testConfig(gw), WithRecorder(rec))
	waitForAbilities(t, c)

	require.Equal(t, 1, gw.Requests(simulator.RequestACStatus))
	require.Equal(t, 1, gw.Requests(simulator.RequestGroupStatus))

	gw.DropConnections()

	require.Eventually(t, func() bool {
		return gw.Accepted() == 2 &&
			gw.Requests(simulator.RequestACStatus) == 2 &&
			gw.Requests(simulator.RequestGroupStatus) == 2
	}, waitFor, tick)
	require.Eventually(t, func() bool { return c.State() == StateStreaming }, waitFor, tick)
	assert.Equal(t, 1, rec.reconnectCount())

	// Registries survive the reconnect and no new group name request is made.
	assert.Len(t, c.ACs(), 2)
	assert.Len(t, c.Groups(), 4)
	assert.Equal(t, 1, gw.Requests(simulator.RequestGroupNames))

	require.NoError(t, c.SetACPower(context.Background(), 1, true))
	require.Eventually(t, func() bool {
		ac, _ := c.AC(1)
		return ac.On()
	}, waitFor, tick)
}

func TestClientConcurrentAbilityRequests(t *testing.T) {
	gw := startGateway(t)
	rec := newRecorder()
	c := startClient(t, testConfig(gw), WithRecorder(rec))
	waitForAbilities(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	const rounds = 5
	var wg sync.WaitGroup
	errs := make(chan error, 2*rounds)
	for range rounds {
		for id := range uint8(2) {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ability, err := c.RequestAbility(ctx, id)
				if err != nil {
					errs <- err
					return
				}
				if ability.ID != id {
					errs <- &CorrelationMismatchError{Want: id, Got: ability.ID}
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assert.GreaterOrEqual(t, rec.ability("matched"), 2*rounds)
}

func TestClientDiscardsMismatchedAbility(t *testing.T) {
	gw := startGateway(t)
	rec := newRecorder()
	c := startClient(t, testConfig(gw), WithRecorder(rec))
	waitForAbilities(t, c)

	gw.SetAbilityResponses(false)
	before := gw.Requests(simulator.RequestACAbility)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	type result struct {
		ability protocol.ACAbility
		err     error
	}
	done := make(chan result, 1)
	go func() {
		a, err := c.RequestAbility(ctx, 1)
		done <- result{a, err}
	}()

	require.Eventually(t, func() bool { return gw.Requests(simulator.RequestACAbility) > before }, waitFor, tick)

	other, ok := gw.AC(0)
	require.True(t, ok)
	require.NoError(t, gw.Push(protocol.ACAbilityMessage{Abilities: []protocol.ACAbility{other.Ability}}))
	require.Eventually(t, func() bool { return rec.ability("mismatch") == 1 }, waitFor, tick)

	select {
	case r := <-done:
		t.Fatalf("request returned early: %+v", r)
	case <-time.After(20 * time.Millisecond):
	}

	gw.SetAbilityResponses(true)
	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, uint8(1), r.ability.ID)
		assert.Equal(t, "Upstairs", r.ability.Name.String())
	case <-ctx.Done():
		t.Fatal("ability request was never answered")
	}
	assert.Positive(t, rec.ability("retry"))
}

func TestClientDropsCorruptedFrame(t *testing.T) {
	gw := startGateway(t)
	rec := newRecorder()
	c := startClient(t, testConfig(gw), WithRecorder(rec))

	var (
		mu        sync.Mutex
		setpoints []float64
	)
	_, err := c.SubscribeAC(0, func(s ACState) {
		mu.Lock()
		defer mu.Unlock()
		setpoints = append(setpoints, s.Setpoint)
	})
	require.NoError(t, err)

	status, ok := gw.AC(0)
	require.True(t, ok)

	corrupt := status.Status
	corrupt.Setpoint = 80 // 18.0
	bad, err := protocol.EncodeMessage(protocol.ACStatusMessage{Statuses: []protocol.ACStatus{corrupt}}, protocol.FromGateway)
	require.NoError(t, err)
	bad[len(bad)-1] ^= 0xFF

	good := status.Status
	good.Setpoint = 90 // 19.0
	goodFrame, err := protocol.EncodeMessage(protocol.ACStatusMessage{Statuses: []protocol.ACStatus{good}}, protocol.FromGateway)
	require.NoError(t, err)

	gw.WriteRaw(append([]byte{0x00, 0x55, 0x13}, append(bad, goodFrame...)...))

	require.Eventually(t, func() bool {
		ac, _ := c.AC(0)
		return ac.Setpoint == 19
	}, waitFor, tick)
	assert.Equal(t, 1, rec.frame("checksum"))

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, setpoints, 18.0)
}

func TestClientDumpsFrames(t *testing.T) {
	gw := startGateway(t)
	cfg := testConfig(gw)
	cfg.DumpDir = t.TempDir()
	c := startClient(t, cfg)
	waitForAbilities(t, c)

	d := c.dumper
	require.NotNil(t, d)
	assert.GreaterOrEqual(t, d.seq.Load(), uint64(3))
}

// flakyDialer fails a fixed number of times before dialling for real.
type flakyDialer struct {
	failures int
	err      error
	attempts atomic.Int32
}

func (d *flakyDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if int(d.attempts.Add(1)) <= d.failures {
		return nil, d.err
	}
	var nd net.Dialer
	return nd.DialContext(ctx, network, addr)
}

func TestConnectRetriesRefused(t *testing.T) {
	gw := startGateway(t)
	dialer := &flakyDialer{failures: 3, err: dialError(syscall.ECONNREFUSED)}
	c := startClient(t, testConfig(gw), WithDialer(dialer))

	assert.Equal(t, int32(4), dialer.attempts.Load())
	assert.Len(t, c.ACs(), 2)
}

func TestConnectFailsFastWhenUnresolvable(t *testing.T) {
	dialer := &flakyDialer{failures: 100, err: &net.DNSError{Err: "no such host", Name: "gateway.invalid", IsNotFound: true}}
	c := NewClient(DefaultConfig("gateway.invalid", protocol.DefaultPort), WithDialer(dialer))

	err := c.Connect(context.Background())
	var connErr *ConnectError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, KindUnresolvable, connErr.Kind)
	assert.False(t, connErr.Retryable)
	assert.Equal(t, int32(1), dialer.attempts.Load())
	assert.Equal(t, StateDisconnected, c.State())
}

func TestConnectHonoursContext(t *testing.T) {
	dialer := &flakyDialer{failures: 1000, err: dialError(syscall.EHOSTUNREACH)}
	cfg := DefaultConfig("10.255.255.1", protocol.DefaultPort)
	tr := NewTransport(cfg, dialer, zaptest.NewLogger(t), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	err := tr.Connect(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Equal(t, StateDisconnected, tr.State())
	// 1ms, 10ms and 100ms delays fit in the deadline, the 1s one does not.
	assert.Equal(t, int32(4), dialer.attempts.Load())
}

func TestTransportStopUnblocksReader(t *testing.T) {
	gw := startGateway(t)
	tr := NewTransport(testConfig(gw), nil, zaptest.NewLogger(t), nil)
	require.NoError(t, tr.Connect(context.Background()))

	done := make(chan error, 1)
	go func() {
		// Nothing is sent without a handshake, so this blocks.
		_, err := tr.ReadExactly(context.Background(), 1)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	tr.Stop()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(waitFor):
		t.Fatal("reader still blocked after Stop")
	}
	assert.ErrorIs(t, tr.Send(context.Background(), protocol.RequestACStatus()), ErrNotConnected)
}

func TestTransportReadHonoursContext(t *testing.T) {
	gw := startGateway(t)
	tr := NewTransport(testConfig(gw), nil, zaptest.NewLogger(t), nil)
	require.NoError(t, tr.Connect(context.Background()))
	defer tr.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tr.ReadExactly(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateStreaming, tr.State())

	// The connection is still usable.
	require.NoError(t, tr.Send(context.Background(), protocol.RequestACStatus()))
	frame, err := protocol.ReadFrame(context.Background(), tr, protocol.FromGateway)
	require.NoError(t, err)
	msg, err := protocol.DecodeMessage(frame)
	require.NoError(t, err)
	assert.IsType(t, protocol.ACStatusMessage{}, msg)
}
