// Package peira embeds the experiment toolkit behind one client: construct
// it over a store and an artifacts directory, then run sessions, generate
// jitter plans, list recorded runs and export their artifacts.
package peira

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"peira/internal/device"
	"peira/internal/model"
	"peira/internal/paradigm"
	"peira/internal/paradigmid"
	"peira/internal/rating"
	"peira/internal/report"
	"peira/internal/rig"
	"peira/internal/runner"
	"peira/internal/schedule"
	"peira/internal/session"
	"peira/internal/stimgen"
	"peira/internal/storage"
	"peira/internal/timing"
)

const (
	defaultStoreKind    = "memory"
	defaultDBPath       = "peira.db"
	defaultArtifactsDir = "artifacts"
	defaultExportsDir   = "exports"

	defaultTrials         = 10
	defaultMaxTimeSeconds = 2.0
	defaultPressHold      = 50 * time.Millisecond

	inputPumpName = "subject-input"
)

// ErrNoAcceptableSequence reports a jitter request whose tolerance was not
// met within the attempt budget. The result still carries the sampling
// report.
var ErrNoAcceptableSequence = stimgen.ErrNoAcceptableSequence

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	// Seed is the fallback for requests that leave their own seed zero.
	Seed   int64
	Logger *slog.Logger
}

type Client struct {
	store        storage.Store
	artifactsDir string
	seed         int64
	logger       *slog.Logger

	mu         sync.Mutex
	storeReady bool
	closed     bool
}

type RunRequest struct {
	SessionID  string
	Paradigm   string
	RigProfile string
	Seed       int64

	// SchedulePath names a CSV or YAML conditions table. When empty an
	// inline table of Trials rows is built, the first PracticeTrials of
	// which run as warm-up.
	SchedulePath   string
	Trials         int
	PracticeTrials int
	Repeats        int
	Shuffle        bool

	// MaxTimeSeconds bounds the response window of trials whose table row
	// carries no max_time of its own.
	MaxTimeSeconds float64

	// Jitter fields configure the inter-trial interval sampler. Zero
	// fields inherit the family defaults.
	JitterDistribution string
	JitterMean         float64
	JitterMin          float64
	JitterMax          float64
	JitterDiscrete     bool
	JitterTolerance    float64
	JitterAttempts     int

	// Rating fields configure the scale for rating runs. A zero
	// RatingMinTimeSeconds keeps the stock minimum; a negative value
	// disables it.
	RatingLow            int
	RatingHigh           int
	RatingPrecision      int
	RatingBoundLower     float64
	RatingBoundUpper     float64
	RatingMarkerStart    *float64
	RatingMinTimeSeconds float64
	RatingMaxTimeSeconds float64
	RatingAcceptKeys     []string
	RatingSkipKeys       []string
	RatingSingleClick    bool

	DetectionKeys []string

	// WaitForPress holds the run until the subject presses and releases
	// any key. The gating press is consumed before the first trial.
	WaitForPress bool

	// Script queues subject presses ahead of the run, consumed in order
	// across trials. An empty script leaves every trial to its deadline.
	Script []KeyPress
}

// KeyPress is one scripted press. The matching release is queued
// HoldSeconds later; AtSeconds offsets the event stamp from run start.
type KeyPress struct {
	Key         string
	AtSeconds   float64
	HoldSeconds float64
}

type RunSummary struct {
	SessionID     string
	ArtifactsDir  string
	Trials        int
	Responses     int
	Skipped       int
	TimedOut      int
	MeanRTSeconds float64
	StopReason    string
}

type JitterRequest struct {
	Trials       int
	Distribution string
	Mean         float64
	Min          float64
	Max          float64
	Discrete     bool
	Tolerance    float64
	MaxAttempts  int
	Seed         int64
	Persist      bool
}

type JitterResult struct {
	PlanID           string
	Distribution     string
	Values           []float64
	AttemptsPlanned  int
	AttemptsExecuted int
	Accepted         bool
	ObservedMean     float64
	ObservedMax      float64
}

type RunItem struct {
	SessionID     string
	Paradigm      string
	Rig           string
	Seed          int64
	Trials        int
	Responses     int
	MeanRTSeconds float64
	CreatedAtUTC  string
}

type ExportRequest struct {
	SessionID string
	Latest    bool
	OutDir    string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = defaultStoreKind
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		artifactsDir: artifactsDir,
		seed:         opts.Seed,
		logger:       opts.Logger,
	}, nil
}

// Close sweeps up a dangling default session and releases the store. It is
// safe to call more than once.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := session.CleanupDefault(ctx, session.ReasonShutdown)
	if cerr := storage.CloseIfSupported(c.store); err == nil {
		err = cerr
	}
	return err
}

func (c *Client) ensureStore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("client is closed")
	}
	if c.storeReady {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.storeReady = true
	return nil
}

// RunSession drives one recorded session end to end: schedule, jitter,
// rig devices, trial loop, artifacts. The session is cleaned up on every
// path out, and a cancelled run is recorded as aborted rather than lost.
func (c *Client) RunSession(ctx context.Context, req RunRequest) (summary RunSummary, err error) {
	if req.Paradigm == "" {
		req.Paradigm = "rating"
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	if req.Seed == 0 {
		req.Seed = c.seed
	}
	if req.Trials <= 0 {
		req.Trials = defaultTrials
	}
	if req.PracticeTrials < 0 {
		return RunSummary{}, errors.New("practice trials must be >= 0")
	}
	if req.Repeats <= 0 {
		req.Repeats = 1
	}
	if req.MaxTimeSeconds <= 0 {
		req.MaxTimeSeconds = defaultMaxTimeSeconds
	}
	if req.JitterTolerance <= 0 {
		req.JitterTolerance = stimgen.DefaultTolerance
	}
	if req.JitterAttempts <= 0 {
		req.JitterAttempts = stimgen.DefaultMaxAttempts
	}
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	clock := timing.SystemClock{}
	paradigmName := paradigmid.Normalize(req.Paradigm)
	experimentRig, err := rig.ConstructRig(paradigmName, req.RigProfile)
	if err != nil {
		return RunSummary{}, err
	}
	task, err := paradigmForRun(req, clock)
	if err != nil {
		return RunSummary{}, err
	}

	table, err := loadConditions(req)
	if err != nil {
		return RunSummary{}, err
	}
	if req.Repeats > 1 {
		if err := schedule.Repeat(&table, req.Repeats); err != nil {
			return RunSummary{}, err
		}
	}
	rng := rand.New(rand.NewSource(req.Seed))
	if req.Shuffle {
		if err := schedule.Shuffle(&table, rng); err != nil {
			return RunSummary{}, err
		}
	}

	sampler, _, err := samplerFromSpec(jitterSpec{
		distribution: req.JitterDistribution,
		mean:         req.JitterMean,
		min:          req.JitterMin,
		max:          req.JitterMax,
		discrete:     req.JitterDiscrete,
		tolerance:    req.JitterTolerance,
		maxAttempts:  req.JitterAttempts,
	}, rng)
	if err != nil {
		return RunSummary{}, err
	}
	itis, _, err := sampler.Sample(ctx, len(table.Rows))
	if err != nil {
		return RunSummary{}, fmt.Errorf("sample inter-trial intervals: %w", err)
	}

	plan, err := schedule.BuildTrials(table, itis)
	if err != nil {
		return RunSummary{}, err
	}
	for i := range plan {
		if plan[i].MaxTimeSeconds <= 0 {
			plan[i].MaxTimeSeconds = req.MaxTimeSeconds
		}
	}

	devices, err := devicesForRig(experimentRig, paradigmName)
	if err != nil {
		return RunSummary{}, err
	}

	sess := session.New(session.Config{
		Store:        sharedStore{c.store},
		Devices:      devices,
		ArtifactsDir: c.artifactsDir,
		Clock:        clock,
		Logger:       c.logger,
	})
	if err := sess.Init(ctx); err != nil {
		return RunSummary{}, fmt.Errorf("initialize session: %w", err)
	}
	reason := session.ReasonError
	defer func() {
		if cerr := sess.CleanupWithReason(context.WithoutCancel(ctx), reason); cerr != nil && err == nil {
			summary = RunSummary{}
			err = fmt.Errorf("clean up session: %w", cerr)
		}
	}()

	in, ok := sess.FirstInput()
	if !ok {
		return RunSummary{}, fmt.Errorf("rig %s provides no input device", experimentRig.Name())
	}
	if err := scriptPresses(in, clock, req.Script); err != nil {
		return RunSummary{}, err
	}
	if req.WaitForPress {
		if _, _, err := device.WaitForPress(ctx, in, clock); err != nil {
			return RunSummary{}, fmt.Errorf("wait for start press: %w", err)
		}
	}
	collector := paradigm.NewPumpedCollector(clock, 0)
	err = sess.Pumps().StartPump(session.PumpSpec{
		Name:        inputPumpName,
		Restart:     session.RestartTemporary,
		OnStreamEnd: collector.CloseFeed,
	}, in, collector.Feed)
	if err != nil {
		return RunSummary{}, fmt.Errorf("start input pump: %w", err)
	}
	out, _ := sess.FirstOutput()

	drive, err := runner.New(runner.Config{
		Clock:    clock,
		Store:    c.store,
		Paradigm: task,
		Input:    collector,
		Output:   out,
		Logger:   c.logger,
	})
	if err != nil {
		return RunSummary{}, err
	}

	record := model.SessionRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		ID:           req.SessionID,
		Paradigm:     paradigmName,
		Rig:          experimentRig.Name(),
		Seed:         req.Seed,
		StartedAtUTC: clock.Now().UTC().Format(time.RFC3339Nano),
	}
	runSummary, err := drive.Run(ctx, record, plan)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			reason = session.ReasonAbort
		}
		return RunSummary{}, fmt.Errorf("run session %s: %w", req.SessionID, err)
	}
	reason = session.ReasonNormal

	record.StoppedAtUTC = clock.Now().UTC().Format(time.RFC3339Nano)
	record.StopReason = string(session.ReasonNormal)
	if err := c.store.SaveSession(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("record session stop: %w", err)
	}

	artifacts, err := report.CollectSessionArtifacts(ctx, c.store, req.SessionID)
	if err != nil {
		return RunSummary{}, fmt.Errorf("collect session artifacts: %w", err)
	}
	sessionDir, err := report.WriteSessionArtifacts(c.artifactsDir, artifacts)
	if err != nil {
		return RunSummary{}, fmt.Errorf("write session artifacts: %w", err)
	}
	if err := report.AppendRunIndex(c.artifactsDir, report.IndexEntryForRun(artifacts.Session, artifacts.Summary)); err != nil {
		return RunSummary{}, fmt.Errorf("append run index: %w", err)
	}

	return RunSummary{
		SessionID:     req.SessionID,
		ArtifactsDir:  filepath.Clean(sessionDir),
		Trials:        runSummary.Trials,
		Responses:     runSummary.Responses,
		Skipped:       runSummary.Skipped,
		TimedOut:      runSummary.TimedOut,
		MeanRTSeconds: runSummary.MeanRTSeconds,
		StopReason:    string(session.ReasonNormal),
	}, nil
}

// GenerateJitter samples one inter-trial interval sequence. A sequence that
// misses its tolerance budget comes back with ErrNoAcceptableSequence and
// the report of the attempt.
func (c *Client) GenerateJitter(ctx context.Context, req JitterRequest) (JitterResult, error) {
	if req.Trials <= 0 {
		req.Trials = defaultTrials
	}
	if req.Tolerance <= 0 {
		req.Tolerance = stimgen.DefaultTolerance
	}
	if req.MaxAttempts <= 0 {
		req.MaxAttempts = stimgen.DefaultMaxAttempts
	}
	if req.Seed == 0 {
		req.Seed = c.seed
	}
	if req.Persist {
		if err := c.ensureStore(ctx); err != nil {
			return JitterResult{}, err
		}
	}

	rng := rand.New(rand.NewSource(req.Seed))
	sampler, name, err := samplerFromSpec(jitterSpec{
		distribution: req.Distribution,
		mean:         req.Mean,
		min:          req.Min,
		max:          req.Max,
		discrete:     req.Discrete,
		tolerance:    req.Tolerance,
		maxAttempts:  req.MaxAttempts,
	}, rng)
	if err != nil {
		return JitterResult{}, err
	}

	values, sampleReport, err := sampler.Sample(ctx, req.Trials)
	result := JitterResult{
		Distribution:     name,
		Values:           values,
		AttemptsPlanned:  sampleReport.AttemptsPlanned,
		AttemptsExecuted: sampleReport.AttemptsExecuted,
		Accepted:         sampleReport.Accepted,
		ObservedMean:     sampleReport.ObservedMean,
		ObservedMax:      sampleReport.ObservedMax,
	}
	if err != nil {
		return result, fmt.Errorf("generate jitter: %w", err)
	}
	if !req.Persist {
		return result, nil
	}

	plan := model.JitterPlanRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		ID:           uuid.NewString(),
		Distribution: name,
		Mean:         req.Mean,
		Min:          req.Min,
		Max:          req.Max,
		Tolerance:    req.Tolerance,
		Discrete:     req.Discrete || name == stimgen.DistributionGeometric,
		Seed:         req.Seed,
		Attempts:     sampleReport.AttemptsExecuted,
		Values:       values,
	}
	if err := c.store.SaveJitterPlan(ctx, plan); err != nil {
		return result, fmt.Errorf("persist jitter plan: %w", err)
	}
	result.PlanID = plan.ID
	return result, nil
}

// ListRuns returns the run index newest first.
func (c *Client) ListRuns(_ context.Context) ([]RunItem, error) {
	entries, err := report.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	items := make([]RunItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, RunItem{
			SessionID:     entry.SessionID,
			Paradigm:      entry.Paradigm,
			Rig:           entry.Rig,
			Seed:          entry.Seed,
			Trials:        entry.Trials,
			Responses:     entry.Responses,
			MeanRTSeconds: entry.MeanRTSeconds,
			CreatedAtUTC:  entry.CreatedAtUTC,
		})
	}
	return items, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) error {
	if req.SessionID != "" && req.Latest {
		return errors.New("use either session id or latest, not both")
	}
	if req.SessionID == "" && !req.Latest {
		return errors.New("export requires a session id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = defaultExportsDir
	}
	if req.Latest {
		entries, err := report.ListRunIndex(c.artifactsDir)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return errors.New("no runs available to export")
		}
		req.SessionID = entries[0].SessionID
	}
	_, err := report.ExportSessionArtifacts(c.artifactsDir, req.SessionID, req.OutDir)
	return err
}

// sharedStore hides the close method of the client store so per-run session
// cleanup cannot tear down a store the client still owns.
type sharedStore struct {
	storage.Store
}

type jitterSpec struct {
	distribution string
	mean         float64
	min          float64
	max          float64
	discrete     bool
	tolerance    float64
	maxAttempts  int
}

func samplerFromSpec(spec jitterSpec, rng *rand.Rand) (stimgen.Sampler, string, error) {
	name := stimgen.NormalizeDistributionName(spec.distribution)
	params := stimgen.Params{
		Rand:        rng,
		Discrete:    spec.discrete,
		Tolerance:   spec.tolerance,
		MaxAttempts: spec.maxAttempts,
	}
	if spec.mean != 0 {
		params.Mean = &spec.mean
	}
	if spec.min != 0 {
		params.Min = &spec.min
	}
	if spec.max != 0 {
		params.Max = &spec.max
	}
	sampler, err := stimgen.SamplerFromConfig(name, params)
	if err != nil {
		return nil, "", err
	}
	return sampler, name, nil
}

func paradigmForRun(req RunRequest, clock timing.Clock) (paradigm.Paradigm, error) {
	switch paradigmid.Normalize(req.Paradigm) {
	case "rating":
		scaleCfg := rating.Config{
			Low:         req.RatingLow,
			High:        req.RatingHigh,
			Precision:   req.RatingPrecision,
			MarkerStart: req.RatingMarkerStart,
			MinTime:     durationSeconds(req.RatingMinTimeSeconds),
			MaxTime:     durationSeconds(req.RatingMaxTimeSeconds),
			AcceptKeys:  req.RatingAcceptKeys,
			SkipKeys:    req.RatingSkipKeys,
			SingleClick: req.RatingSingleClick,
			Clock:       clock,
		}
		if req.RatingBoundLower != 0 || req.RatingBoundUpper != 0 {
			scaleCfg.Bounds = &rating.Bounds{Lower: req.RatingBoundLower, Upper: req.RatingBoundUpper}
		}
		return paradigm.NewRatingParadigm(paradigm.RatingConfig{Scale: scaleCfg, Clock: clock})
	case "detection":
		return paradigm.NewDetectionParadigm(paradigm.DetectionConfig{Keys: req.DetectionKeys, Clock: clock})
	default:
		return nil, fmt.Errorf("unsupported paradigm: %s", req.Paradigm)
	}
}

func loadConditions(req RunRequest) (schedule.ConditionsTable, error) {
	if req.SchedulePath != "" {
		switch strings.ToLower(filepath.Ext(req.SchedulePath)) {
		case ".yaml", ".yml":
			return schedule.ReadYAMLFile(req.SchedulePath)
		default:
			return schedule.ReadCSVFile(req.SchedulePath)
		}
	}
	if req.PracticeTrials > req.Trials {
		return schedule.ConditionsTable{}, fmt.Errorf("practice trials %d exceed trial count %d", req.PracticeTrials, req.Trials)
	}
	rows := make([][]string, req.Trials)
	for i := range rows {
		rows[i] = []string{strconv.Itoa(i + 1)}
	}
	return schedule.ConditionsTable{
		Info:    schedule.TableInfo{Name: "inline", Trials: req.Trials, PracticeEnd: req.PracticeTrials},
		Columns: []string{"trial"},
		Rows:    rows,
	}, nil
}

func devicesForRig(r rig.Rig, paradigmName string) ([]device.Device, error) {
	var devices []device.Device
	for _, name := range r.Outputs() {
		out, err := device.ResolveOutput(name, paradigmName)
		if err != nil {
			return nil, fmt.Errorf("resolve output %s: %w", name, err)
		}
		devices = append(devices, out)
	}
	for _, name := range r.Inputs() {
		in, err := device.ResolveInput(name, paradigmName)
		if err != nil {
			return nil, fmt.Errorf("resolve input %s: %w", name, err)
		}
		devices = append(devices, in)
	}
	return devices, nil
}

func scriptPresses(in device.InputDevice, clock timing.Clock, script []KeyPress) error {
	if len(script) == 0 {
		return nil
	}
	keypad, ok := in.(interface {
		Press(key string, at time.Time, hold time.Duration) error
	})
	if !ok {
		return fmt.Errorf("input device %s does not accept scripted presses", in.Name())
	}
	base := clock.Now()
	for _, press := range script {
		if strings.TrimSpace(press.Key) == "" {
			return errors.New("scripted press key must be non-empty")
		}
		hold := durationSeconds(press.HoldSeconds)
		if hold <= 0 {
			hold = defaultPressHold
		}
		if err := keypad.Press(press.Key, base.Add(durationSeconds(press.AtSeconds)), hold); err != nil {
			return err
		}
	}
	return nil
}

func durationSeconds(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
