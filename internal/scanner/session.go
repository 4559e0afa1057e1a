// internal/scanner/session.go
package scanner

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scanner-service/internal/bridge"
)

// Logical channels on the event bridge. The session consumes scan
// results and emits serial configuration/command traffic; observers
// (websocket clients, UI toasts) watch the lifecycle topic.
const (
	TopicScanResult    = "scanner.result"
	TopicSerialConfig  = "scanner.serial.config"
	TopicSerialCommand = "scanner.serial.command"
	TopicLifecycle     = "scanner.lifecycle"
)

// Lifecycle event kinds published on TopicLifecycle
const (
	EventScanCompleted = "scan_completed"
	EventScanTimeout   = "scan_timeout"
	EventScanCancelled = "scan_cancelled"
)

// EventBridge is the broadcast capability the session consumes: topic
// subscription for inbound scan results and a send primitive for
// outbound configuration commands.
type EventBridge interface {
	Subscribe(topic string) *bridge.Subscription
	Unsubscribe(sub *bridge.Subscription)
	Publish(topic string, ev bridge.Event)
	Send(topic string, data []byte) error
}

// Config holds the session manager's tunables
type Config struct {
	Cooldown       time.Duration
	DefaultTimeout time.Duration
	MaxPayloadLen  int
	Mode           OperationMode
	Policy         PriorityPolicy
	BeepEnabled    bool
	ToastEnabled   bool
}

// DefaultConfig returns the manager defaults
func DefaultConfig() Config {
	return Config{
		Cooldown:       2 * time.Second,
		DefaultTimeout: 10 * time.Second,
		MaxPayloadLen:  4296,
		Mode:           ModeTriggered,
		Policy:         PolicyPreferExternal,
		BeepEnabled:    true,
		ToastEnabled:   true,
	}
}

type outcome struct {
	payload string
	err     error
}

// session is the single in-flight scan request. At most one exists; its
// timer and subscription are always released together on the terminal
// transition, which runs exactly once.
type session struct {
	id      string
	mode    OperationMode
	scanner Type
	sub     *bridge.Subscription
	timer   *time.Timer
	result  chan outcome
	done    bool
}

// Manager owns the scan session state machine: scanner selection,
// cooldown enforcement, the at-most-one-pending invariant, and routing
// of asynchronous scan results back to the waiting caller. All public
// operations are safe for concurrent use.
type Manager struct {
	mu sync.Mutex

	bridge     EventBridge
	enumerator HardwareEnumerator
	beeper     Beeper
	logger     *zap.Logger

	registry *Registry

	cooldown      time.Duration
	maxPayloadLen int

	initialized    bool
	selected       Type
	mode           OperationMode
	policy         PriorityPolicy
	defaultTimeout time.Duration
	beepEnabled    bool
	toastEnabled   bool

	active     *session
	lastScanAt time.Time
}

// NewManager creates a scan session manager. The beeper may be nil when
// audio feedback is unavailable.
func NewManager(cfg Config, br EventBridge, enum HardwareEnumerator, beeper Beeper, logger *zap.Logger) *Manager {
	return &Manager{
		bridge:         br,
		enumerator:     enum,
		beeper:         beeper,
		logger:         logger.With(zap.String("component", "scan-session")),
		registry:       NewRegistry(),
		cooldown:       cfg.Cooldown,
		maxPayloadLen:  cfg.MaxPayloadLen,
		selected:       TypeNone,
		mode:           cfg.Mode,
		policy:         cfg.Policy,
		defaultTimeout: cfg.DefaultTimeout,
		beepEnabled:    cfg.BeepEnabled,
		toastEnabled:   cfg.ToastEnabled,
	}
}

// Initialize runs detection and selection and commits the result as the
// active scanner type. Returns ErrNoScannersAvailable when selection
// yields none; enumeration errors pass through unchanged.
func (m *Manager) Initialize(ctx context.Context) (Type, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initializeLocked(ctx)
}

func (m *Manager) initializeLocked(ctx context.Context) (Type, error) {
	snapshot, err := m.enumerator.ListAttached(ctx)
	if err != nil {
		return TypeNone, err
	}

	matched := DetectExternal(snapshot, m.registry)
	selected := SelectOptimal(len(matched) > 0, BuiltInAvailable(), m.policy)
	if selected == TypeNone {
		return TypeNone, ErrNoScannersAvailable
	}

	m.selected = selected
	m.initialized = true
	m.applyModeLocked()

	m.logger.Info("Scanner selected",
		zap.String("type", string(selected)),
		zap.String("policy", string(m.policy)),
		zap.Int("external_matches", len(matched)),
	)
	return selected, nil
}

// Scan requests a single scan result. It blocks until a validated
// payload arrives, the mode-appropriate deadline expires, the session is
// cancelled or superseded, or ctx is done. An armed earlier session is
// unconditionally cancelled before the new one is armed.
func (m *Manager) Scan(ctx context.Context) (string, error) {
	m.mu.Lock()

	if !m.initialized {
		if _, err := m.initializeLocked(ctx); err != nil {
			m.mu.Unlock()
			return "", err
		}
	}

	if !m.lastScanAt.IsZero() && time.Since(m.lastScanAt) < m.cooldown {
		m.mu.Unlock()
		return "", ErrCooldownActive
	}

	if m.active != nil {
		m.finishLocked(m.active, "", ErrScanCancelled)
	}

	if m.selected != TypeExternal && m.selected != TypeBuiltIn {
		m.mu.Unlock()
		return "", ErrScanError
	}

	m.applyModeLocked()

	// The external path deliberately ignores the triggered/continuous
	// timeout distinction and always uses the configurable default.
	timeout := m.defaultTimeout
	if m.selected == TypeBuiltIn {
		timeout = ModeTimeout(m.mode, m.defaultTimeout)
	}

	sess := &session{
		id:      uuid.New().String(),
		mode:    m.mode,
		scanner: m.selected,
		sub:     m.bridge.Subscribe(TopicScanResult),
		result:  make(chan outcome, 1),
	}
	sess.timer = time.AfterFunc(timeout, func() { m.expire(sess) })
	m.active = sess
	go m.listen(sess)

	m.logger.Debug("Scan session armed",
		zap.String("session_id", sess.id),
		zap.String("scanner", string(sess.scanner)),
		zap.Duration("timeout", timeout),
	)
	m.mu.Unlock()

	select {
	case out := <-sess.result:
		return out.payload, out.err
	case <-ctx.Done():
		m.mu.Lock()
		m.finishLocked(sess, "", ErrScanCancelled)
		m.mu.Unlock()
		out := <-sess.result
		return out.payload, out.err
	}
}

// Cancel aborts the in-flight scan session, if any. The waiting caller
// is rejected with ErrScanCancelled; Cancel itself reports whether a
// session was cancelled.
func (m *Manager) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return false
	}
	m.finishLocked(m.active, "", ErrScanCancelled)
	return true
}

// Teardown cancels any in-flight session, sends the triggered-mode stop
// command if applicable, and returns the manager to the unselected state.
func (m *Manager) Teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		m.finishLocked(m.active, "", ErrScanCancelled)
	} else if m.initialized && m.selected == TypeBuiltIn {
		m.sendCommandsLocked(StopCommands(m.mode))
	}

	m.initialized = false
	m.selected = TypeNone
	m.logger.Info("Scanner manager torn down")
}

// listen consumes inbound scan-result events for a session. Invalid
// payloads are dropped silently so unrelated broadcast traffic cannot
// abort a real scan in progress; the loop ends when the subscription is
// closed by the session's terminal transition.
func (m *Manager) listen(sess *session) {
	for ev := range sess.sub.C() {
		if !ValidPayload(ev.Payload, m.maxPayloadLen) {
			continue
		}
		m.mu.Lock()
		m.finishLocked(sess, ev.Payload, nil)
		m.mu.Unlock()
		return
	}
}

// expire is the timer callback for a session's deadline
func (m *Manager) expire(sess *session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finishLocked(sess, "", ErrScanTimeout)
}

// finishLocked performs the terminal transition for a session exactly
// once: disarms the timer, removes the listener, records the completion
// timestamp on success, and resolves or rejects the pending request.
// Idempotent; later timer fires or event arrivals for a closed session
// are no-ops.
func (m *Manager) finishLocked(sess *session, payload string, err error) {
	if sess.done {
		return
	}
	sess.done = true

	sess.timer.Stop()
	m.bridge.Unsubscribe(sess.sub)
	if m.active == sess {
		m.active = nil
	}

	if err == nil {
		m.lastScanAt = time.Now()
		if m.beepEnabled && m.beeper != nil {
			m.beeper.PlayBeep()
		}
	}

	if sess.scanner == TypeBuiltIn {
		m.sendCommandsLocked(StopCommands(sess.mode))
	}

	m.publishLifecycleLocked(sess, payload, err)
	sess.result <- outcome{payload: payload, err: err}
}

func (m *Manager) publishLifecycleLocked(sess *session, payload string, err error) {
	kind := EventScanCompleted
	switch {
	case err == nil:
	case CodeOf(err) == CodeScanTimeout:
		kind = EventScanTimeout
	default:
		kind = EventScanCancelled
	}

	ev := bridge.Event{Kind: kind, Payload: payload}
	if err != nil {
		ev.Payload = string(CodeOf(err))
	}
	m.bridge.Publish(TopicLifecycle, ev)
}

// applyModeLocked pushes the current mode configuration to the selected
// scanner. The built-in scanner takes the framed command sequence; the
// external scanner takes a fixed broadcast toggling keyboard emulation
// off so results arrive as events rather than synthetic keystrokes.
func (m *Manager) applyModeLocked() {
	switch m.selected {
	case TypeBuiltIn:
		m.sendCommandsLocked(ModeCommands(m.mode))
	case TypeExternal:
		m.bridge.Publish(TopicSerialConfig, bridge.Event{
			Kind:    "external_mode",
			Payload: "keyboard_emulation_off",
		})
	}
}

// sendCommandsLocked frames and sends a command sequence. Send failures
// are swallowed: scanner firmware tolerates occasional malformed control
// messages, but a caller must never be left waiting on a send error.
func (m *Manager) sendCommandsLocked(cmds []Command) {
	for _, cmd := range cmds {
		if err := m.bridge.Send(TopicSerialCommand, cmd.Frame()); err != nil {
			m.logger.Warn("Serial command send failed",
				zap.String("command", cmd.Name),
				zap.Error(err),
			)
		}
	}
}

// ValidPayload applies the inbound payload gate: non-empty, not
// all-whitespace, and at most maxLen characters.
func ValidPayload(payload string, maxLen int) bool {
	if payload == "" || len(payload) > maxLen {
		return false
	}
	return strings.TrimSpace(payload) != ""
}

// SetOperationMode changes the logical operation mode and reconfigures
// the selected scanner when one is committed.
func (m *Manager) SetOperationMode(mode OperationMode) error {
	if !ValidMode(mode) {
		return ErrScanError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.mode = mode
	if m.initialized {
		m.applyModeLocked()
	}
	return nil
}

// OperationMode returns the current operation mode
func (m *Manager) OperationMode() OperationMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// SetPriorityPolicy changes the selection policy. When a scanner is
// already committed the selection is re-evaluated; hardware is
// reconfigured only if the newly selected type differs, and an in-flight
// session on the old type is left untouched.
func (m *Manager) SetPriorityPolicy(ctx context.Context, policy PriorityPolicy) (Type, error) {
	if !ValidPolicy(policy) {
		return TypeNone, ErrScanError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.policy = policy
	if !m.initialized {
		return m.selected, nil
	}

	snapshot, err := m.enumerator.ListAttached(ctx)
	if err != nil {
		return m.selected, err
	}
	matched := DetectExternal(snapshot, m.registry)
	selected := SelectOptimal(len(matched) > 0, BuiltInAvailable(), m.policy)
	if selected != m.selected {
		m.selected = selected
		m.applyModeLocked()
	}
	return m.selected, nil
}

// PriorityPolicy returns the current selection policy
func (m *Manager) PriorityPolicy() PriorityPolicy {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy
}

// ActiveType returns the committed scanner type, TypeNone before
// initialization.
func (m *Manager) ActiveType() Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected
}

// PreviewOptimal re-derives the selection for the current policy from a
// fresh hardware snapshot without committing it.
func (m *Manager) PreviewOptimal(ctx context.Context) (Type, error) {
	snapshot, err := m.enumerator.ListAttached(ctx)
	if err != nil {
		return TypeNone, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	matched := DetectExternal(snapshot, m.registry)
	return SelectOptimal(len(matched) > 0, BuiltInAvailable(), m.policy), nil
}

// ListAttachedHardware returns the attached devices recognized as
// compatible external scanners, freshly enumerated.
func (m *Manager) ListAttachedHardware(ctx context.Context) ([]AttachedDevice, error) {
	snapshot, err := m.enumerator.ListAttached(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return DetectExternal(snapshot, m.registry), nil
}

// AddCompatibleIdentifier registers an external scanner model
func (m *Manager) AddCompatibleIdentifier(id Identifier) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Add(id)
}

// RemoveCompatibleIdentifier unregisters an external scanner model
func (m *Manager) RemoveCompatibleIdentifier(id Identifier) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Remove(id)
}

// ListCompatibleIdentifiers returns the registered models in insertion order
func (m *Manager) ListCompatibleIdentifiers() []Identifier {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.List()
}

// ResetCompatibleIdentifiers restores the default identifier list
func (m *Manager) ResetCompatibleIdentifiers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry.Reset()
}

// SetTimeout sets the configurable session timeout used by continuous
// mode and by the external scanner path.
func (m *Manager) SetTimeout(d time.Duration) error {
	if d <= 0 {
		return ErrScanError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultTimeout = d
	return nil
}

// Timeout returns the configurable session timeout
func (m *Manager) Timeout() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaultTimeout
}

// SetBeepEnabled toggles audio feedback on successful scans
func (m *Manager) SetBeepEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beepEnabled = enabled
}

// BeepEnabled reports whether audio feedback is enabled
func (m *Manager) BeepEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beepEnabled
}

// SetToastEnabled toggles the UI toast hint carried on lifecycle events
func (m *Manager) SetToastEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toastEnabled = enabled
}

// ToastEnabled reports whether the UI toast hint is enabled
func (m *Manager) ToastEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.toastEnabled
}
