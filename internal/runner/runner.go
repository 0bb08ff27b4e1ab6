package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"peira/internal/device"
	"peira/internal/model"
	"peira/internal/paradigm"
	"peira/internal/schedule"
	"peira/internal/storage"
	"peira/internal/timing"
)

// TrialStartMarker is the event code emitted at every trial boundary, ahead
// of the stimulus-specific code.
const TrialStartMarker = 1

type Config struct {
	Clock    timing.Clock
	Store    storage.Store
	Paradigm paradigm.Paradigm
	Input    paradigm.Collector
	Output   device.OutputDevice
	Logger   *slog.Logger
}

// Runner drives one session through its trial plan: wait out the
// inter-trial interval, mark the boundary, present, collect, persist.
type Runner struct {
	clock    timing.Clock
	store    storage.Store
	paradigm paradigm.Paradigm
	input    paradigm.Collector
	output   device.OutputDevice
	logger   *slog.Logger
}

func New(cfg Config) (*Runner, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Paradigm == nil {
		return nil, errors.New("paradigm is required")
	}
	if cfg.Input == nil {
		return nil, errors.New("input collector is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timing.SystemClock{}
	}
	return &Runner{
		clock:    clock,
		store:    cfg.Store,
		paradigm: cfg.Paradigm,
		input:    cfg.Input,
		output:   cfg.Output,
		logger:   cfg.Logger,
	}, nil
}

// Run executes the plan trial by trial. Inter-trial waits are non-slip, so
// presentation overhead inside one trial shortens the following interval
// instead of accumulating. Each trial is bounded by its MaxTimeSeconds
// through the collect context. Cancellation stops the run between phases;
// on error the returned summary covers the trials that completed, and
// whatever was persisted stays in the store.
func (r *Runner) Run(ctx context.Context, session model.SessionRecord, plan []model.TrialPlan) (model.RunSummary, error) {
	if session.ID == "" {
		return model.RunSummary{}, fmt.Errorf("session id is required")
	}
	if len(plan) == 0 {
		return model.RunSummary{}, fmt.Errorf("trial plan is empty")
	}

	if session.StartedAtUTC == "" {
		session.StartedAtUTC = r.clock.Now().UTC().Format(time.RFC3339Nano)
	}
	if session.SchemaVersion == 0 {
		session.VersionedRecord = versionedRecord()
	}
	if err := r.paradigm.Prepare(ctx, plan); err != nil {
		return model.RunSummary{}, fmt.Errorf("prepare paradigm: %w", err)
	}
	if err := r.store.SaveSession(ctx, session); err != nil {
		return model.RunSummary{}, fmt.Errorf("save session: %w", err)
	}

	summary := model.RunSummary{
		VersionedRecord: versionedRecord(),
		SessionID:       session.ID,
	}
	var rtSum float64
	var rtCount int

	for i := range plan {
		trial := plan[i]
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := r.applyMode(trial); err != nil {
			return summary, fmt.Errorf("set paradigm mode for trial %d: %w", trial.Index, err)
		}
		if err := timing.Wait(ctx, r.clock, durationSeconds(trial.ITISeconds)); err != nil {
			return summary, err
		}
		if err := r.emit(ctx, device.Marker{Code: TrialStartMarker, Label: "trial"}); err != nil {
			return summary, fmt.Errorf("emit trial marker %d: %w", trial.Index, err)
		}

		stimulus, err := r.paradigm.Present(ctx, trial)
		if err != nil {
			return summary, fmt.Errorf("present trial %d: %w", trial.Index, err)
		}
		if stimulus.Marker != 0 {
			if err := r.emit(ctx, device.Marker{Code: stimulus.Marker, Label: stimulus.Kind}); err != nil {
				return summary, fmt.Errorf("emit stimulus marker %d: %w", trial.Index, err)
			}
		}
		record := model.TrialRecord{
			VersionedRecord: versionedRecord(),
			SessionID:       session.ID,
			Index:           trial.Index,
			Condition:       trial.Condition,
			ITISeconds:      trial.ITISeconds,
			OnsetUTC:        r.clock.Now().UTC().Format(time.RFC3339Nano),
			Stimulus:        stimulus,
		}
		if err := r.store.SaveTrial(ctx, record); err != nil {
			return summary, fmt.Errorf("save trial %d: %w", trial.Index, err)
		}

		collectCtx := ctx
		cancel := context.CancelFunc(func() {})
		if trial.MaxTimeSeconds > 0 {
			collectCtx, cancel = context.WithTimeout(ctx, durationSeconds(trial.MaxTimeSeconds))
		}
		response, err := r.paradigm.Collect(collectCtx, r.input)
		cancel()
		if err != nil {
			return summary, fmt.Errorf("collect trial %d: %w", trial.Index, err)
		}
		response.VersionedRecord = versionedRecord()
		response.SessionID = session.ID
		response.Trial = trial.Index
		if err := r.store.SaveResponse(ctx, response); err != nil {
			return summary, fmt.Errorf("save response %d: %w", trial.Index, err)
		}

		summary.Trials++
		if response.Skipped {
			summary.Skipped++
		} else {
			summary.Responses++
			rtSum += response.RTSeconds
			rtCount++
		}
		if response.TimedOut {
			summary.TimedOut++
		}
		r.logDebug("trial complete",
			slog.Int("trial", trial.Index),
			slog.Float64("rt_seconds", response.RTSeconds),
			slog.Bool("skipped", response.Skipped),
			slog.Bool("timed_out", response.TimedOut))
	}

	if rtCount > 0 {
		summary.MeanRTSeconds = rtSum / float64(rtCount)
	}
	if err := r.store.SaveRunSummary(ctx, summary); err != nil {
		return summary, fmt.Errorf("save run summary: %w", err)
	}
	r.logInfo("run complete",
		slog.String("session", session.ID),
		slog.Int("trials", summary.Trials),
		slog.Int("responses", summary.Responses),
		slog.Int("skipped", summary.Skipped),
		slog.Int("timed_out", summary.TimedOut))
	return summary, nil
}

// applyMode routes practice-phase trials to mode-aware paradigms so their
// marker codes and scoring flip together.
func (r *Runner) applyMode(trial model.TrialPlan) error {
	aware, ok := r.paradigm.(paradigm.ModeAware)
	if !ok {
		return nil
	}
	mode := paradigm.ModeScored
	if trial.Condition[schedule.PhaseKey] == schedule.PracticePhase {
		mode = paradigm.ModePractice
	}
	if aware.Mode() == mode {
		return nil
	}
	return aware.SetMode(mode)
}

func (r *Runner) emit(ctx context.Context, marker device.Marker) error {
	if r.output == nil {
		return nil
	}
	return r.output.Emit(ctx, marker)
}

func (r *Runner) logInfo(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

func (r *Runner) logDebug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func versionedRecord() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: storage.CurrentSchemaVersion,
		CodecVersion:  storage.CurrentCodecVersion,
	}
}

func durationSeconds(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
