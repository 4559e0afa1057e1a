package scanner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scanner-service/internal/bridge"
)

type fakeEnumerator struct {
	mu      sync.Mutex
	devices []AttachedDevice
	err     error
}

func (f *fakeEnumerator) ListAttached(_ context.Context) ([]AttachedDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]AttachedDevice, len(f.devices))
	copy(out, f.devices)
	return out, nil
}

func (f *fakeEnumerator) set(devices []AttachedDevice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = devices
}

type fakeBeeper struct {
	beeps atomic.Int32
}

func (b *fakeBeeper) PlayBeep() {
	b.beeps.Add(1)
}

func compatibleDevice() AttachedDevice {
	return AttachedDevice{ID: defaultIdentifiers[0], DisplayName: "test scanner"}
}

func newTestManager(cfg Config, devices ...AttachedDevice) (*Manager, *bridge.Bus, *fakeEnumerator, *fakeBeeper) {
	bus := bridge.NewBus(zap.NewNop())
	enum := &fakeEnumerator{devices: devices}
	beeper := &fakeBeeper{}
	m := NewManager(cfg, bus, enum, beeper, zap.NewNop())
	return m, bus, enum, beeper
}

type scanResult struct {
	payload string
	err     error
}

func startScan(m *Manager) <-chan scanResult {
	ch := make(chan scanResult, 1)
	go func() {
		payload, err := m.Scan(context.Background())
		ch <- scanResult{payload: payload, err: err}
	}()
	return ch
}

// publishUntil keeps publishing a payload until the scan resolves, so the
// test does not depend on observing exactly when the session subscribed.
func publishUntil(t *testing.T, bus *bridge.Bus, payload string, results <-chan scanResult) scanResult {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case res := <-results:
			return res
		case <-deadline:
			t.Fatal("scan did not resolve in time")
		case <-time.After(5 * time.Millisecond):
			bus.Publish(TopicScanResult, bridge.Event{Payload: payload})
		}
	}
}

func TestScan_EndToEnd_PreferExternal(t *testing.T) {
	m, bus, _, beeper := newTestManager(DefaultConfig(), compatibleDevice())

	preview, err := m.PreviewOptimal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TypeExternal, preview)
	assert.Equal(t, TypeNone, m.ActiveType(), "preview must not commit")

	selected, err := m.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TypeExternal, selected)
	assert.Equal(t, TypeExternal, m.ActiveType())

	results := startScan(m)
	res := publishUntil(t, bus, "ABC123", results)
	require.NoError(t, res.err)
	assert.Equal(t, "ABC123", res.payload)
	assert.Equal(t, int32(1), beeper.beeps.Load())

	// Completion timestamp recorded: an immediate second request is
	// inside the 2s cooldown window.
	_, err = m.Scan(context.Background())
	assert.ErrorIs(t, err, ErrCooldownActive)
	assert.False(t, m.Cancel(), "cooldown rejection must not leave a session armed")
}

func TestScan_SecondScanCancelsFirst(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cooldown = time.Millisecond
	m, bus, _, _ := newTestManager(cfg, compatibleDevice())

	first := startScan(m)
	time.Sleep(100 * time.Millisecond)

	second := startScan(m)

	select {
	case res := <-first:
		assert.ErrorIs(t, res.err, ErrScanCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("first scan was not cancelled")
	}

	res := publishUntil(t, bus, "XYZ789", second)
	require.NoError(t, res.err)
	assert.Equal(t, "XYZ789", res.payload)
}

func TestScan_Timeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cooldown = time.Millisecond
	cfg.DefaultTimeout = 80 * time.Millisecond
	m, _, _, _ := newTestManager(cfg, compatibleDevice())

	start := time.Now()
	_, err := m.Scan(context.Background())
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrScanTimeout)
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond, "must not reject before the deadline")
	assert.False(t, m.Cancel(), "timed-out session must be fully disarmed")
}

func TestScan_ConfiguredTimeoutRespected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cooldown = time.Millisecond
	cfg.Mode = ModeContinuous
	m, _, _, _ := newTestManager(cfg, compatibleDevice())

	require.NoError(t, m.SetTimeout(60*time.Millisecond))

	start := time.Now()
	_, err := m.Scan(context.Background())
	assert.ErrorIs(t, err, ErrScanTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestScan_PayloadFilter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cooldown = time.Millisecond
	m, bus, _, _ := newTestManager(cfg, compatibleDevice())

	results := startScan(m)
	time.Sleep(50 * time.Millisecond)

	// Malformed or unrelated broadcast traffic must not resolve (or
	// abort) the session.
	invalid := []string{"", "   ", "\t\n", strings.Repeat("x", 4297)}
	for i := 0; i < 10; i++ {
		for _, payload := range invalid {
			bus.Publish(TopicScanResult, bridge.Event{Payload: payload})
		}
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case res := <-results:
		t.Fatalf("session resolved on invalid payload: %+v", res)
	default:
	}

	// A maximum-length payload is still accepted
	valid := strings.Repeat("y", 4296)
	res := publishUntil(t, bus, valid, results)
	require.NoError(t, res.err)
	assert.Equal(t, valid, res.payload)
}

func TestValidPayload_Boundaries(t *testing.T) {
	max := 4296

	assert.False(t, ValidPayload("", max))
	assert.False(t, ValidPayload("   ", max))
	assert.False(t, ValidPayload("\t \n", max))
	assert.False(t, ValidPayload(strings.Repeat("a", 4297), max))

	assert.True(t, ValidPayload("a", max))
	assert.True(t, ValidPayload(strings.Repeat("a", 4296), max))
}

func TestCancel_RejectsInFlightSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cooldown = time.Millisecond
	m, _, _, _ := newTestManager(cfg, compatibleDevice())

	results := startScan(m)
	time.Sleep(100 * time.Millisecond)

	assert.True(t, m.Cancel())

	select {
	case res := <-results:
		assert.ErrorIs(t, res.err, ErrScanCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled scan did not resolve")
	}

	assert.False(t, m.Cancel(), "second cancel must find nothing armed")
}

func TestScan_ContextCancellation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cooldown = time.Millisecond
	m, _, _, _ := newTestManager(cfg, compatibleDevice())

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan scanResult, 1)
	go func() {
		payload, err := m.Scan(ctx)
		ch <- scanResult{payload: payload, err: err}
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case res := <-ch:
		assert.ErrorIs(t, res.err, ErrScanCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not resolve after context cancellation")
	}
}

func TestInitialize_NoScannersAvailable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy = PolicyExternalOnly
	m, _, _, _ := newTestManager(cfg) // nothing attached

	_, err := m.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrNoScannersAvailable)

	// Lazy initialization inside Scan hits the same terminal error
	_, err = m.Scan(context.Background())
	assert.ErrorIs(t, err, ErrNoScannersAvailable)
}

func TestInitialize_EnumeratorErrorPassesThrough(t *testing.T) {
	m, _, enum, _ := newTestManager(DefaultConfig())
	transportErr := errors.New("usb subsystem not accessible")
	enum.err = transportErr

	_, err := m.Initialize(context.Background())
	assert.ErrorIs(t, err, transportErr)
	assert.Empty(t, CodeOf(err), "transport errors carry no session code")
}

func TestSetPriorityPolicy_Reevaluation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy = PolicyPreferBuiltIn
	m, _, _, _ := newTestManager(cfg, compatibleDevice())

	selected, err := m.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TypeBuiltIn, selected)

	selected, err = m.SetPriorityPolicy(context.Background(), PolicyExternalOnly)
	require.NoError(t, err)
	assert.Equal(t, TypeExternal, selected)
	assert.Equal(t, TypeExternal, m.ActiveType())
}

func TestSetPriorityPolicy_InvalidPolicy(t *testing.T) {
	m, _, _, _ := newTestManager(DefaultConfig())

	_, err := m.SetPriorityPolicy(context.Background(), PriorityPolicy("BOGUS"))
	assert.ErrorIs(t, err, ErrScanError)
}

func TestSetOperationMode(t *testing.T) {
	m, _, _, _ := newTestManager(DefaultConfig(), compatibleDevice())

	require.NoError(t, m.SetOperationMode(ModeContinuous))
	assert.Equal(t, ModeContinuous, m.OperationMode())

	assert.ErrorIs(t, m.SetOperationMode(OperationMode("BOGUS")), ErrScanError)
	assert.Equal(t, ModeContinuous, m.OperationMode())
}

func TestBuiltIn_ModeCommandsSentOnScan(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cooldown = time.Millisecond
	cfg.Policy = PolicyBuiltInOnly
	m, bus, _, _ := newTestManager(cfg)

	// Initialize first so the scan itself produces exactly one
	// configuration sequence on the command topic.
	_, err := m.Initialize(context.Background())
	require.NoError(t, err)

	sub := bus.Subscribe(TopicSerialCommand)
	defer bus.Unsubscribe(sub)

	results := startScan(m)
	time.Sleep(50 * time.Millisecond)

	expected := ModeCommands(ModeTriggered)
	var frames [][]byte
	for len(frames) < len(expected) {
		select {
		case ev := <-sub.C():
			frames = append(frames, ev.Data)
		case <-time.After(5 * time.Second):
			t.Fatal("mode command sequence not observed")
		}
	}
	for i, cmd := range expected {
		assert.Equal(t, cmd.Frame(), frames[i])
	}

	// Leaving a triggered-mode session sends the single stop command
	require.True(t, m.Cancel())
	<-results

	select {
	case ev := <-sub.C():
		assert.Equal(t, CmdDisableTrigger().Frame(), ev.Data)
	case <-time.After(5 * time.Second):
		t.Fatal("stop command not observed")
	}
}

func TestBuiltIn_TriggeredModeUsesQuietWindowTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cooldown = time.Millisecond
	cfg.Policy = PolicyBuiltInOnly
	m, bus, _, _ := newTestManager(cfg)

	// The configured default must be ignored on the built-in triggered
	// path; the session stays armed well past it.
	require.NoError(t, m.SetTimeout(20*time.Millisecond))

	results := startScan(m)
	time.Sleep(150 * time.Millisecond)

	select {
	case res := <-results:
		t.Fatalf("triggered session resolved early: %+v", res)
	default:
	}

	res := publishUntil(t, bus, "CODE42", results)
	require.NoError(t, res.err)
	assert.Equal(t, "CODE42", res.payload)
}

func TestTeardown_CancelsInFlightSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cooldown = time.Millisecond
	m, _, _, _ := newTestManager(cfg, compatibleDevice())

	results := startScan(m)
	time.Sleep(100 * time.Millisecond)

	m.Teardown()

	select {
	case res := <-results:
		assert.ErrorIs(t, res.err, ErrScanCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("teardown did not resolve the pending scan")
	}
	assert.Equal(t, TypeNone, m.ActiveType())
}

func TestLifecycleEventsPublished(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cooldown = time.Millisecond
	m, bus, _, _ := newTestManager(cfg, compatibleDevice())

	sub := bus.Subscribe(TopicLifecycle)
	defer bus.Unsubscribe(sub)

	results := startScan(m)
	res := publishUntil(t, bus, "EVT1", results)
	require.NoError(t, res.err)

	select {
	case ev := <-sub.C():
		assert.Equal(t, EventScanCompleted, ev.Kind)
		assert.Equal(t, "EVT1", ev.Payload)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle event not observed")
	}
}

func TestSettings(t *testing.T) {
	m, _, _, _ := newTestManager(DefaultConfig())

	assert.ErrorIs(t, m.SetTimeout(0), ErrScanError)
	assert.ErrorIs(t, m.SetTimeout(-time.Second), ErrScanError)
	require.NoError(t, m.SetTimeout(15*time.Second))
	assert.Equal(t, 15*time.Second, m.Timeout())

	m.SetBeepEnabled(false)
	assert.False(t, m.BeepEnabled())

	m.SetToastEnabled(false)
	assert.False(t, m.ToastEnabled())
	m.SetToastEnabled(true)
	assert.True(t, m.ToastEnabled())
}

func TestBeepSuppressedWhenDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cooldown = time.Millisecond
	cfg.BeepEnabled = false
	m, bus, _, beeper := newTestManager(cfg, compatibleDevice())

	results := startScan(m)
	res := publishUntil(t, bus, "QUIET1", results)
	require.NoError(t, res.err)
	assert.Equal(t, int32(0), beeper.beeps.Load())
}

func TestRegistryOperationsThroughManager(t *testing.T) {
	m, _, enum, _ := newTestManager(DefaultConfig())

	custom := Identifier{VendorID: 0x4242, ProductID: 0x0042}
	assert.True(t, m.AddCompatibleIdentifier(custom))
	assert.False(t, m.AddCompatibleIdentifier(custom))

	enum.set([]AttachedDevice{{ID: custom, DisplayName: "custom scanner"}})
	devices, err := m.ListAttachedHardware(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, custom, devices[0].ID)

	assert.True(t, m.RemoveCompatibleIdentifier(custom))
	devices, err = m.ListAttachedHardware(context.Background())
	require.NoError(t, err)
	assert.Empty(t, devices)

	m.ResetCompatibleIdentifiers()
	assert.Equal(t, len(defaultIdentifiers), len(m.ListCompatibleIdentifiers()))
}
