package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"peira/internal/device"
	"peira/internal/storage"
	"peira/internal/timing"
)

type Config struct {
	Store        storage.Store
	Devices      []device.Device
	DataSinks    []io.Closer
	ArtifactsDir string
	Clock        timing.Clock
	Logger       *slog.Logger
	Supervisor   SupervisorPolicy
}

type StopReason string

const (
	ReasonNormal   StopReason = "normal"
	ReasonAbort    StopReason = "abort"
	ReasonError    StopReason = "error"
	ReasonShutdown StopReason = "shutdown"
)

// Session owns the resources of one recording run: the trial store, the
// instruments named by the rig, and any data sinks still pending flush.
// Resources open in configuration order and close in reverse, so a device
// that depends on an earlier one is always torn down first.
type Session struct {
	store  storage.Store
	clock  timing.Clock
	logger *slog.Logger
	pumps  *Supervisor

	mu sync.RWMutex

	id             string
	startedAt      time.Time
	started        bool
	lastStopReason StopReason
	devices        map[string]device.Device
	openOrder      []string
	sinks          []io.Closer

	config Config
}

var (
	defaultSessionMu sync.Mutex
	defaultSession   *Session
)

func New(cfg Config) *Session {
	clock := cfg.Clock
	if clock == nil {
		clock = timing.SystemClock{}
	}
	s := &Session{
		store:          cfg.Store,
		clock:          clock,
		logger:         cfg.Logger,
		devices:        make(map[string]device.Device),
		config:         cfg,
		lastStopReason: ReasonNormal,
	}
	s.pumps = NewSupervisorWithHooks(cfg.Supervisor, SupervisorHooks{
		OnPumpRestart: func(name string, err error, restartCount int) {
			s.logWarn("device pump restarted", slog.String("pump", name), slog.Int("restarts", restartCount), slog.Any("error", err))
		},
		OnPumpFailure: func(name string, err error, restartCount int) {
			s.logWarn("device pump gave up", slog.String("pump", name), slog.Int("restarts", restartCount), slog.Any("error", err))
		},
	})
	return s
}

func StartDefault(ctx context.Context, cfg Config) (*Session, error) {
	defaultSessionMu.Lock()
	defer defaultSessionMu.Unlock()

	if defaultSession != nil && defaultSession.Started() {
		return defaultSession, nil
	}

	s := New(cfg)
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	defaultSession = s
	return defaultSession, nil
}

func Default() (*Session, bool) {
	defaultSessionMu.Lock()
	s := defaultSession
	defaultSessionMu.Unlock()

	if s == nil || !s.Started() {
		return nil, false
	}
	return s, true
}

func CleanupDefault(ctx context.Context, reason StopReason) error {
	defaultSessionMu.Lock()
	s := defaultSession
	defaultSessionMu.Unlock()
	if s == nil {
		return nil
	}
	if err := s.CleanupWithReason(ctx, reason); err != nil {
		return err
	}
	defaultSessionMu.Lock()
	if defaultSession == s {
		defaultSession = nil
	}
	defaultSessionMu.Unlock()
	return nil
}

func (s *Session) Init(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("store is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.store.Init(ctx); err != nil {
		return err
	}
	if s.config.ArtifactsDir != "" {
		if err := os.MkdirAll(s.config.ArtifactsDir, 0o755); err != nil {
			return fmt.Errorf("create artifacts dir: %w", err)
		}
	}

	opened := make([]device.Device, 0, len(s.config.Devices))
	for i, dev := range s.config.Devices {
		if dev == nil {
			closeDevices(ctx, opened)
			s.devices = make(map[string]device.Device)
			s.openOrder = nil
			return fmt.Errorf("device is nil at index %d", i)
		}
		name := dev.Name()
		if name == "" {
			closeDevices(ctx, opened)
			s.devices = make(map[string]device.Device)
			s.openOrder = nil
			return fmt.Errorf("device name is required at index %d", i)
		}
		if _, exists := s.devices[name]; exists {
			closeDevices(ctx, opened)
			s.devices = make(map[string]device.Device)
			s.openOrder = nil
			return fmt.Errorf("duplicate device: %s", name)
		}
		if err := dev.Open(ctx); err != nil {
			closeDevices(ctx, opened)
			s.devices = make(map[string]device.Device)
			s.openOrder = nil
			return fmt.Errorf("open device %s: %w", name, err)
		}
		s.devices[name] = dev
		s.openOrder = append(s.openOrder, name)
		opened = append(opened, dev)
	}

	s.id = uuid.NewString()
	s.startedAt = s.clock.Now()
	s.sinks = append([]io.Closer(nil), s.config.DataSinks...)
	s.started = true
	s.logInfo("session initialized", slog.String("session", s.id), slog.Int("devices", len(s.openOrder)))
	return nil
}

func (s *Session) Cleanup(ctx context.Context) error {
	return s.CleanupWithReason(ctx, ReasonNormal)
}

func (s *Session) Shutdown(ctx context.Context) error {
	return s.CleanupWithReason(ctx, ReasonShutdown)
}

// CleanupWithReason tears the session down: pumps stop first, then devices
// close in reverse open order, then data sinks, then the store. Each failure
// is logged and teardown continues so a wedged instrument cannot strand the
// ones behind it. The first error is returned once everything has been
// attempted. Calling it again after a completed cleanup is a no-op.
func (s *Session) CleanupWithReason(ctx context.Context, reason StopReason) error {
	if reason == "" {
		reason = ReasonNormal
	}
	if !isValidStopReason(reason) {
		return fmt.Errorf("unsupported stop reason: %s", reason)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}

	s.pumps.StopAll()

	var firstErr error
	for i := len(s.openOrder) - 1; i >= 0; i-- {
		name := s.openOrder[i]
		dev, ok := s.devices[name]
		if !ok {
			continue
		}
		var err error
		if withReason, ok := dev.(reasonAwareDevice); ok {
			err = withReason.CloseWithReason(ctx, reason)
		} else {
			err = dev.Close(ctx)
		}
		if err != nil {
			s.logWarn("close device failed", slog.String("device", name), slog.Any("error", err))
			if firstErr == nil {
				firstErr = fmt.Errorf("close device %s: %w", name, err)
			}
		}
	}
	for i := len(s.sinks) - 1; i >= 0; i-- {
		sink := s.sinks[i]
		if sink == nil {
			continue
		}
		if err := sink.Close(); err != nil {
			s.logWarn("close data sink failed", slog.Int("sink", i), slog.Any("error", err))
			if firstErr == nil {
				firstErr = fmt.Errorf("close data sink %d: %w", i, err)
			}
		}
	}
	if err := storage.CloseIfSupported(s.store); err != nil {
		s.logWarn("close store failed", slog.Any("error", err))
		if firstErr == nil {
			firstErr = fmt.Errorf("close store: %w", err)
		}
	}

	s.started = false
	s.lastStopReason = reason
	s.devices = make(map[string]device.Device)
	s.openOrder = nil
	s.sinks = nil
	s.logInfo("session cleaned up", slog.String("session", s.id), slog.String("reason", string(reason)))
	return firstErr
}

// Reset clears the store and relaunches the session lifecycle.
func (s *Session) Reset(ctx context.Context) error {
	_ = s.CleanupWithReason(ctx, ReasonShutdown)
	if resetter, ok := s.store.(storage.Resetter); ok {
		if err := resetter.Reset(ctx); err != nil {
			return err
		}
	}
	return s.Init(ctx)
}

// AttachDevice opens dev and adds it to the cleanup order of a running
// session.
func (s *Session) AttachDevice(ctx context.Context, dev device.Device) error {
	if dev == nil {
		return fmt.Errorf("device is nil")
	}
	name := dev.Name()
	if name == "" {
		return fmt.Errorf("device name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return fmt.Errorf("session is not initialized")
	}
	if _, exists := s.devices[name]; exists {
		return fmt.Errorf("duplicate device: %s", name)
	}
	if err := dev.Open(ctx); err != nil {
		return fmt.Errorf("open device %s: %w", name, err)
	}
	s.devices[name] = dev
	s.openOrder = append(s.openOrder, name)
	return nil
}

// DetachDevice closes one named device ahead of the session-wide cleanup.
func (s *Session) DetachDevice(ctx context.Context, name string, reason StopReason) error {
	if reason == "" {
		reason = ReasonNormal
	}
	if !isValidStopReason(reason) {
		return fmt.Errorf("unsupported stop reason: %s", reason)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return fmt.Errorf("session is not initialized")
	}
	dev, ok := s.devices[name]
	if !ok {
		return fmt.Errorf("device not attached: %s", name)
	}
	var closeErr error
	if withReason, ok := dev.(reasonAwareDevice); ok {
		closeErr = withReason.CloseWithReason(ctx, reason)
	} else {
		closeErr = dev.Close(ctx)
	}
	delete(s.devices, name)
	for i, n := range s.openOrder {
		if n == name {
			s.openOrder = append(s.openOrder[:i], s.openOrder[i+1:]...)
			break
		}
	}
	if closeErr != nil {
		return fmt.Errorf("close device %s: %w", name, closeErr)
	}
	return nil
}

func (s *Session) Device(name string) (device.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dev, ok := s.devices[name]
	return dev, ok
}

func (s *Session) Output(name string) (device.OutputDevice, bool) {
	dev, ok := s.Device(name)
	if !ok {
		return nil, false
	}
	out, ok := dev.(device.OutputDevice)
	return out, ok
}

func (s *Session) Input(name string) (device.InputDevice, bool) {
	dev, ok := s.Device(name)
	if !ok {
		return nil, false
	}
	in, ok := dev.(device.InputDevice)
	return in, ok
}

// FirstOutput returns the earliest-opened output device still attached.
func (s *Session) FirstOutput() (device.OutputDevice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, name := range s.openOrder {
		if out, ok := s.devices[name].(device.OutputDevice); ok {
			return out, true
		}
	}
	return nil, false
}

// FirstInput returns the earliest-opened input device still attached.
func (s *Session) FirstInput() (device.InputDevice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, name := range s.openOrder {
		if in, ok := s.devices[name].(device.InputDevice); ok {
			return in, true
		}
	}
	return nil, false
}

func (s *Session) AttachedDevices() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.devices))
	for name := range s.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

func (s *Session) StartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}

func (s *Session) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

func (s *Session) LastStopReason() StopReason {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastStopReason
}

func (s *Session) ArtifactsDir() string {
	return s.config.ArtifactsDir
}

func (s *Session) Clock() timing.Clock {
	return s.clock
}

// Pumps exposes the supervisor that restarts background device readers.
func (s *Session) Pumps() *Supervisor {
	return s.pumps
}

func (s *Session) logInfo(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Session) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

// reasonAwareDevice is an optional device capability for hardware that wants
// to know why it is being shut down, for example a trigger box that flushes
// an abort code on abnormal teardown.
type reasonAwareDevice interface {
	device.Device
	CloseWithReason(ctx context.Context, reason StopReason) error
}

func isValidStopReason(reason StopReason) bool {
	switch reason {
	case ReasonNormal, ReasonAbort, ReasonError, ReasonShutdown:
		return true
	default:
		return false
	}
}

func closeDevices(ctx context.Context, devices []device.Device) {
	for i := len(devices) - 1; i >= 0; i-- {
		_ = devices[i].Close(ctx)
	}
}
