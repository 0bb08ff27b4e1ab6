package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"peira/internal/device"
)

type SupervisorPolicy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	MaxRestarts    int
	Strategy       SupervisorStrategy
}

type SupervisorStrategy string

const (
	StrategyOneForOne SupervisorStrategy = "one_for_one"
	StrategyOneForAll SupervisorStrategy = "one_for_all"
)

type RestartPolicy string

const (
	RestartPermanent RestartPolicy = "permanent"
	RestartTransient RestartPolicy = "transient"
	RestartTemporary RestartPolicy = "temporary"
)

type PumpSpec struct {
	Name    string
	Group   string
	Restart RestartPolicy

	// OnStreamEnd runs when a device pump sees its event stream close,
	// before the pump reports device.ErrInputClosed to the restart policy.
	// A pump relaunched against a closed stream fires it again, so the
	// callback must tolerate repeats.
	OnStreamEnd func()
}

type PumpStatus struct {
	Name            string        `json:"name"`
	Group           string        `json:"group,omitempty"`
	RestartPolicy   RestartPolicy `json:"restart_policy"`
	RestartCount    int           `json:"restart_count"`
	LastError       string        `json:"last_error,omitempty"`
	PermanentFailed bool          `json:"permanent_failed"`
}

type SupervisorHooks struct {
	OnPumpRestart func(name string, err error, restartCount int)
	OnPumpFailure func(name string, err error, restartCount int)
}

// PumpHandler consumes one input event drained by a device pump.
type PumpHandler func(ctx context.Context, ev device.InputEvent) error

func defaultSupervisorPolicy() SupervisorPolicy {
	return SupervisorPolicy{
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     200 * time.Millisecond,
		BackoffFactor:  2.0,
		MaxRestarts:    0,
		Strategy:       StrategyOneForOne,
	}
}

func normalizeSupervisorPolicy(policy SupervisorPolicy) SupervisorPolicy {
	def := defaultSupervisorPolicy()
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = def.InitialBackoff
	}
	if policy.MaxBackoff <= 0 {
		policy.MaxBackoff = def.MaxBackoff
	}
	if policy.MaxBackoff < policy.InitialBackoff {
		policy.MaxBackoff = policy.InitialBackoff
	}
	if policy.BackoffFactor < 1 {
		policy.BackoffFactor = def.BackoffFactor
	}
	if policy.Strategy == "" {
		policy.Strategy = def.Strategy
	}
	switch policy.Strategy {
	case StrategyOneForOne, StrategyOneForAll:
	default:
		policy.Strategy = def.Strategy
	}
	return policy
}

// Supervisor keeps background device readers alive across transient faults.
// A pump that returns an error is relaunched with exponential backoff until
// its restart budget runs out; under the one_for_all strategy its siblings
// restart with it so paired instruments stay in step.
type Supervisor struct {
	policy SupervisorPolicy
	hooks  SupervisorHooks

	mu       sync.Mutex
	pumps    map[string]*pumpTask
	finished map[string]PumpStatus
}

type pumpTask struct {
	cancel context.CancelFunc
	done   chan struct{}
	spec   PumpSpec
	run    func(ctx context.Context) error

	restartCount    int
	lastErr         error
	permanentFailed bool
}

func NewSupervisor(policy SupervisorPolicy) *Supervisor {
	return NewSupervisorWithHooks(policy, SupervisorHooks{})
}

func NewSupervisorWithHooks(policy SupervisorPolicy, hooks SupervisorHooks) *Supervisor {
	return &Supervisor{
		policy:   normalizeSupervisorPolicy(policy),
		hooks:    hooks,
		pumps:    make(map[string]*pumpTask),
		finished: make(map[string]PumpStatus),
	}
}

func (s *Supervisor) Start(name string, run func(ctx context.Context) error) error {
	spec := PumpSpec{
		Name:    name,
		Restart: RestartPermanent,
	}
	return s.StartSpec(spec, run)
}

// StartPump drains events from an input device and feeds them to handle. The
// pump exits with an error when the event stream closes, which lets the
// restart policy decide whether to reattach.
func (s *Supervisor) StartPump(spec PumpSpec, in device.InputDevice, handle PumpHandler) error {
	if in == nil {
		return errors.New("pump input device is required")
	}
	if handle == nil {
		return errors.New("pump handler is required")
	}
	if spec.Name == "" {
		spec.Name = in.Name()
	}
	return s.StartSpec(spec, func(ctx context.Context) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev, ok := <-in.Events():
				if !ok {
					if spec.OnStreamEnd != nil {
						spec.OnStreamEnd()
					}
					return device.ErrInputClosed
				}
				if err := handle(ctx, ev); err != nil {
					return err
				}
			}
		}
	})
}

func (s *Supervisor) StartSpec(spec PumpSpec, run func(ctx context.Context) error) error {
	if spec.Name == "" {
		return errors.New("pump name is required")
	}
	if run == nil {
		return errors.New("pump runner is required")
	}
	if spec.Restart == "" {
		spec.Restart = RestartPermanent
	}
	switch spec.Restart {
	case RestartPermanent, RestartTransient, RestartTemporary:
	default:
		spec.Restart = RestartPermanent
	}

	s.mu.Lock()
	if _, exists := s.pumps[spec.Name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("pump already running: %s", spec.Name)
	}
	delete(s.finished, spec.Name)
	ctx, cancel := context.WithCancel(context.Background())
	task := &pumpTask{
		cancel: cancel,
		done:   make(chan struct{}),
		spec:   spec,
		run:    run,
	}
	s.pumps[spec.Name] = task
	s.mu.Unlock()

	go s.runPump(spec.Name, task, ctx, run)
	return nil
}

func (s *Supervisor) runPump(name string, task *pumpTask, ctx context.Context, run func(ctx context.Context) error) {
	defer func() {
		s.mu.Lock()
		if current, ok := s.pumps[name]; ok && current == task {
			if retainFinishedStatus(task) {
				s.finished[name] = PumpStatus{
					Name:            task.spec.Name,
					Group:           task.spec.Group,
					RestartPolicy:   task.spec.Restart,
					RestartCount:    task.restartCount,
					LastError:       errString(task.lastErr),
					PermanentFailed: task.permanentFailed,
				}
			}
			delete(s.pumps, name)
		}
		s.mu.Unlock()
		close(task.done)
	}()

	backoff := s.policy.InitialBackoff

	for {
		err := run(ctx)
		if ctx.Err() != nil {
			return
		}
		if !shouldRestart(pumpRestartPolicy(task), err) {
			return
		}
		s.mu.Lock()
		task.lastErr = err
		restarts := task.restartCount
		s.mu.Unlock()
		if s.policy.MaxRestarts > 0 && restarts >= s.policy.MaxRestarts {
			s.mu.Lock()
			task.permanentFailed = true
			task.restartCount = restarts
			s.mu.Unlock()
			if s.hooks.OnPumpFailure != nil {
				go s.hooks.OnPumpFailure(name, err, restarts)
			}
			if s.policy.Strategy == StrategyOneForAll {
				s.stopAllExcept(name)
			}
			return
		}
		restarts++
		s.mu.Lock()
		task.restartCount = restarts
		s.mu.Unlock()
		if s.policy.Strategy == StrategyOneForAll {
			s.restartSiblings(name, err)
		}
		if s.hooks.OnPumpRestart != nil {
			s.hooks.OnPumpRestart(name, err, restarts)
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		next := time.Duration(float64(backoff) * s.policy.BackoffFactor)
		if next > s.policy.MaxBackoff {
			next = s.policy.MaxBackoff
		}
		backoff = next
	}
}

type siblingRestart struct {
	name         string
	previousTask *pumpTask
	spec         PumpSpec
	run          func(ctx context.Context) error
	restarts     int
}

func (s *Supervisor) restartSiblings(excludedName string, triggeringErr error) {
	s.mu.Lock()
	restarts := make([]siblingRestart, 0, len(s.pumps))
	for name, task := range s.pumps {
		if name == excludedName {
			continue
		}
		restarts = append(restarts, siblingRestart{
			name:         name,
			previousTask: task,
			spec:         task.spec,
			run:          task.run,
			restarts:     task.restartCount,
		})
		task.cancel()
	}
	s.mu.Unlock()

	for _, sibling := range restarts {
		<-sibling.previousTask.done
	}

	restartErr := triggeringErr
	if restartErr == nil {
		restartErr = errors.New("one_for_all restart")
	}

	for _, sibling := range restarts {
		if !shouldRestart(sibling.spec.Restart, restartErr) {
			continue
		}
		ctx, cancel := context.WithCancel(context.Background())
		nextTask := &pumpTask{
			cancel:       cancel,
			done:         make(chan struct{}),
			spec:         sibling.spec,
			run:          sibling.run,
			restartCount: sibling.restarts + 1,
			lastErr:      restartErr,
		}
		s.mu.Lock()
		current, exists := s.pumps[sibling.name]
		if exists && current != sibling.previousTask {
			s.mu.Unlock()
			cancel()
			continue
		}
		s.pumps[sibling.name] = nextTask
		s.mu.Unlock()
		if s.hooks.OnPumpRestart != nil {
			s.hooks.OnPumpRestart(sibling.name, restartErr, nextTask.restartCount)
		}
		go s.runPump(sibling.name, nextTask, ctx, sibling.run)
	}
}

func pumpRestartPolicy(task *pumpTask) RestartPolicy {
	if task == nil {
		return RestartPermanent
	}
	if task.spec.Restart == "" {
		return RestartPermanent
	}
	return task.spec.Restart
}

func shouldRestart(policy RestartPolicy, err error) bool {
	switch policy {
	case RestartPermanent:
		return true
	case RestartTransient:
		return err != nil
	case RestartTemporary:
		return false
	default:
		return true
	}
}

func (s *Supervisor) stopAllExcept(excludedName string) {
	s.mu.Lock()
	entries := make([]*pumpTask, 0, len(s.pumps))
	for name, task := range s.pumps {
		if name == excludedName {
			continue
		}
		entries = append(entries, task)
	}
	s.mu.Unlock()

	for _, task := range entries {
		task.cancel()
	}
	for _, task := range entries {
		<-task.done
	}
}

func (s *Supervisor) Stop(name string) {
	s.mu.Lock()
	task, ok := s.pumps[name]
	delete(s.finished, name)
	s.mu.Unlock()
	if !ok {
		return
	}
	task.cancel()
	<-task.done
}

func (s *Supervisor) StopAll() {
	s.mu.Lock()
	tasks := make([]*pumpTask, 0, len(s.pumps))
	for _, task := range s.pumps {
		tasks = append(tasks, task)
	}
	s.finished = make(map[string]PumpStatus)
	s.mu.Unlock()

	for _, task := range tasks {
		task.cancel()
	}
	for _, task := range tasks {
		<-task.done
	}
}

func (s *Supervisor) ActivePumps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.pumps))
	for name := range s.pumps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Statuses reports active pumps plus finished ones that failed or restarted,
// so diagnostics can show what fell over after the fact.
func (s *Supervisor) Statuses() []PumpStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.pumps)+len(s.finished))
	for name := range s.pumps {
		names = append(names, name)
	}
	for name := range s.finished {
		if _, active := s.pumps[name]; active {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]PumpStatus, 0, len(names))
	for _, name := range names {
		if task, ok := s.pumps[name]; ok {
			out = append(out, PumpStatus{
				Name:            task.spec.Name,
				Group:           task.spec.Group,
				RestartPolicy:   task.spec.Restart,
				RestartCount:    task.restartCount,
				LastError:       errString(task.lastErr),
				PermanentFailed: task.permanentFailed,
			})
			continue
		}
		if finished, ok := s.finished[name]; ok {
			out = append(out, finished)
		}
	}
	return out
}

func retainFinishedStatus(task *pumpTask) bool {
	if task == nil {
		return false
	}
	return task.permanentFailed || task.restartCount > 0 || task.lastErr != nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
