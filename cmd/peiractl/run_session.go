package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"peira/internal/config"
	peiraapi "peira/pkg/peira"
)

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config JSON path")
	sessionID := fs.String("session-id", "", "explicit session id (optional)")
	paradigmName := fs.String("paradigm", "rating", "paradigm: rating|detection")
	rigProfile := fs.String("rig", "", "rig profile (paradigm default when empty)")
	seed := fs.Int64("seed", 0, "rng seed")
	schedulePath := fs.String("schedule", "", "conditions table path (.csv, .yaml)")
	trials := fs.Int("trials", 0, "inline trial count when no schedule file is given")
	practice := fs.Int("practice", 0, "leading warm-up trials of an inline schedule")
	repeats := fs.Int("repeats", 1, "repeat the conditions table N times")
	shuffle := fs.Bool("shuffle", false, "shuffle scored trials (seeded)")
	maxTime := fs.Float64("max-time", 0, "response window in seconds for rows without max_time")
	jitterDist := fs.String("jitter-dist", "", "inter-trial interval distribution: geometric|exponential|uniform")
	jitterMean := fs.Float64("jitter-mean", 0, "target mean inter-trial interval in seconds")
	jitterMin := fs.Float64("jitter-min", 0, "minimum inter-trial interval in seconds")
	jitterMax := fs.Float64("jitter-max", 0, "maximum inter-trial interval in seconds")
	jitterDiscrete := fs.Bool("jitter-discrete", false, "draw whole-second intervals")
	jitterTolerance := fs.Float64("jitter-tolerance", 0, "acceptable deviation from the target mean")
	jitterAttempts := fs.Int("jitter-attempts", 0, "candidate sequence attempt budget")
	ratingLow := fs.Int("rating-low", 0, "rating scale low anchor")
	ratingHigh := fs.Int("rating-high", 0, "rating scale high anchor")
	ratingPrecision := fs.Int("rating-precision", 0, "rating fractional sensitivity: 1|10|100")
	boundMin := fs.Float64("bound-min", 0, "lowest acceptable rating response")
	boundMax := fs.Float64("bound-max", 0, "highest acceptable rating response")
	markerStart := fs.Float64("marker-start", 0, "pre-place the rating marker at a value")
	ratingMinTime := fs.Float64("rating-min-time", 0, "seconds before a rating can be accepted")
	ratingMaxTime := fs.Float64("rating-max-time", 0, "seconds before the current rating auto-finalizes")
	singleClick := fs.Bool("single-click", false, "accept a rating on first placement")
	detectKeys := fs.String("detect-keys", "", "comma-separated detection response keys (any key when empty)")
	waitPress := fs.Bool("wait-press", false, "hold the run until any key is pressed and released")
	script := fs.String("script", "", "scripted presses: key@at[+hold],... (seconds from run start)")
	storeKind := fs.String("store", "", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "", "sqlite database path")
	artifactsDir := fs.String("artifacts", "", "artifacts directory")
	logLevel := fs.String("log-level", "", "log level: debug|info|warn|error")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if setFlags["store"] {
		cfg.StoreKind = *storeKind
	}
	if setFlags["db-path"] {
		cfg.DBPath = *dbPath
	}
	if setFlags["artifacts"] {
		cfg.ArtifactsDir = *artifactsDir
	}
	if setFlags["paradigm"] {
		cfg.Paradigm = *paradigmName
	}
	if setFlags["rig"] {
		cfg.RigProfile = *rigProfile
	}
	if setFlags["seed"] {
		cfg.Seed = *seed
	}
	if setFlags["log-level"] {
		cfg.LogLevel = *logLevel
	}
	if setFlags["jitter-dist"] {
		cfg.Jitter.Distribution = *jitterDist
	}
	if setFlags["jitter-mean"] {
		cfg.Jitter.Mean = jitterMean
	}
	if setFlags["jitter-min"] {
		cfg.Jitter.Min = jitterMin
	}
	if setFlags["jitter-max"] {
		cfg.Jitter.Max = jitterMax
	}
	if setFlags["jitter-discrete"] {
		cfg.Jitter.Discrete = *jitterDiscrete
	}
	if setFlags["jitter-tolerance"] {
		cfg.Jitter.Tolerance = *jitterTolerance
	}
	if setFlags["jitter-attempts"] {
		cfg.Jitter.MaxAttempts = *jitterAttempts
	}
	if setFlags["rating-low"] {
		cfg.Rating.Low = *ratingLow
	}
	if setFlags["rating-high"] {
		cfg.Rating.High = *ratingHigh
	}
	if setFlags["rating-precision"] {
		cfg.Rating.Precision = *ratingPrecision
	}
	if setFlags["bound-min"] {
		cfg.Rating.BoundMin = boundMin
	}
	if setFlags["bound-max"] {
		cfg.Rating.BoundMax = boundMax
	}
	if setFlags["rating-min-time"] {
		cfg.Rating.MinTimeSeconds = *ratingMinTime
	}
	if setFlags["rating-max-time"] {
		cfg.Rating.MaxTimeSeconds = *ratingMaxTime
	}
	if setFlags["single-click"] {
		cfg.Rating.SingleClick = *singleClick
	}

	presses, err := parseScript(*script)
	if err != nil {
		return err
	}

	req := peiraapi.RunRequest{
		SessionID:            *sessionID,
		Paradigm:             cfg.Paradigm,
		RigProfile:           cfg.RigProfile,
		Seed:                 cfg.Seed,
		SchedulePath:         *schedulePath,
		Trials:               *trials,
		PracticeTrials:       *practice,
		Repeats:              *repeats,
		Shuffle:              *shuffle,
		MaxTimeSeconds:       *maxTime,
		JitterDistribution:   cfg.Jitter.Distribution,
		JitterDiscrete:       cfg.Jitter.Discrete,
		JitterTolerance:      cfg.Jitter.Tolerance,
		JitterAttempts:       cfg.Jitter.MaxAttempts,
		RatingLow:            cfg.Rating.Low,
		RatingHigh:           cfg.Rating.High,
		RatingPrecision:      cfg.Rating.Precision,
		RatingMinTimeSeconds: cfg.Rating.MinTimeSeconds,
		RatingMaxTimeSeconds: cfg.Rating.MaxTimeSeconds,
		RatingAcceptKeys:     cfg.Rating.AcceptKeys,
		RatingSkipKeys:       cfg.Rating.SkipKeys,
		RatingSingleClick:    cfg.Rating.SingleClick,
		DetectionKeys:        splitKeys(*detectKeys),
		WaitForPress:         *waitPress,
		Script:               presses,
	}
	if cfg.Jitter.Mean != nil {
		req.JitterMean = *cfg.Jitter.Mean
	}
	if cfg.Jitter.Min != nil {
		req.JitterMin = *cfg.Jitter.Min
	}
	if cfg.Jitter.Max != nil {
		req.JitterMax = *cfg.Jitter.Max
	}
	if cfg.Rating.BoundMin != nil {
		req.RatingBoundLower = *cfg.Rating.BoundMin
		if cfg.Rating.BoundMax == nil {
			// Leave the upper side open; the scale clamps it to its range.
			req.RatingBoundUpper = math.Inf(1)
		}
	}
	if cfg.Rating.BoundMax != nil {
		req.RatingBoundUpper = *cfg.Rating.BoundMax
	}
	if setFlags["marker-start"] {
		req.RatingMarkerStart = markerStart
	}

	client, err := peiraapi.New(peiraapi.Options{
		StoreKind:    cfg.StoreKind,
		DBPath:       cfg.DBPath,
		ArtifactsDir: cfg.ArtifactsDir,
		Seed:         cfg.Seed,
		Logger:       newLogger(cfg),
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close(ctx)
	}()

	summary, err := client.RunSession(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(summary)
	}

	fmt.Printf("session completed session_id=%s paradigm=%s trials=%d responses=%d skipped=%d timed_out=%d mean_rt=%.3fs stop=%s\n",
		summary.SessionID,
		cfg.Paradigm,
		summary.Trials,
		summary.Responses,
		summary.Skipped,
		summary.TimedOut,
		summary.MeanRTSeconds,
		summary.StopReason,
	)
	fmt.Printf("artifacts_dir=%s\n", summary.ArtifactsDir)
	return nil
}

// parseScript decodes a comma-separated press list. Each entry is
// key@at[+hold] with at and hold in seconds; at defaults to 0 and hold to
// the library default when omitted.
func parseScript(raw string) ([]peiraapi.KeyPress, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var presses []peiraapi.KeyPress
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		press := peiraapi.KeyPress{Key: entry}
		if at := strings.Index(entry, "@"); at >= 0 {
			press.Key = entry[:at]
			timing := entry[at+1:]
			if plus := strings.Index(timing, "+"); plus >= 0 {
				hold, err := strconv.ParseFloat(timing[plus+1:], 64)
				if err != nil {
					return nil, fmt.Errorf("parse script hold %q: %w", entry, err)
				}
				press.HoldSeconds = hold
				timing = timing[:plus]
			}
			if timing != "" {
				atSeconds, err := strconv.ParseFloat(timing, 64)
				if err != nil {
					return nil, fmt.Errorf("parse script offset %q: %w", entry, err)
				}
				press.AtSeconds = atSeconds
			}
		}
		if press.Key == "" {
			return nil, fmt.Errorf("script entry %q names no key", entry)
		}
		presses = append(presses, press)
	}
	return presses, nil
}

func splitKeys(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var keys []string
	for _, key := range strings.Split(raw, ",") {
		key = strings.TrimSpace(key)
		if key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
