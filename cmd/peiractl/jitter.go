package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"peira/internal/config"
	peiraapi "peira/pkg/peira"
)

func runJitter(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("jitter", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config JSON path")
	trials := fs.Int("n", 10, "sequence length")
	distribution := fs.String("dist", "", "distribution: geometric|exponential|uniform")
	mean := fs.Float64("mean", 0, "target mean interval in seconds")
	minITI := fs.Float64("min", 0, "minimum interval in seconds")
	maxITI := fs.Float64("max", 0, "maximum interval in seconds")
	discrete := fs.Bool("discrete", false, "draw whole-second intervals")
	tolerance := fs.Float64("tolerance", 0, "acceptable deviation from the target mean")
	attempts := fs.Int("attempts", 0, "candidate sequence attempt budget")
	seed := fs.Int64("seed", 0, "rng seed")
	persist := fs.Bool("persist", false, "save the plan to the store")
	storeKind := fs.String("store", "", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "", "sqlite database path")
	jsonOut := fs.Bool("json", false, "emit the result as JSON")
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
	if setFlags["seed"] {
		cfg.Seed = *seed
	}
	if setFlags["dist"] {
		cfg.Jitter.Distribution = *distribution
	}
	if setFlags["mean"] {
		cfg.Jitter.Mean = mean
	}
	if setFlags["min"] {
		cfg.Jitter.Min = minITI
	}
	if setFlags["max"] {
		cfg.Jitter.Max = maxITI
	}
	if setFlags["discrete"] {
		cfg.Jitter.Discrete = *discrete
	}
	if setFlags["tolerance"] {
		cfg.Jitter.Tolerance = *tolerance
	}
	if setFlags["attempts"] {
		cfg.Jitter.MaxAttempts = *attempts
	}

	req := peiraapi.JitterRequest{
		Trials:       *trials,
		Distribution: cfg.Jitter.Distribution,
		Discrete:     cfg.Jitter.Discrete,
		Tolerance:    cfg.Jitter.Tolerance,
		MaxAttempts:  cfg.Jitter.MaxAttempts,
		Seed:         cfg.Seed,
		Persist:      *persist,
	}
	if cfg.Jitter.Mean != nil {
		req.Mean = *cfg.Jitter.Mean
	}
	if cfg.Jitter.Min != nil {
		req.Min = *cfg.Jitter.Min
	}
	if cfg.Jitter.Max != nil {
		req.Max = *cfg.Jitter.Max
	}

	client, err := peiraapi.New(peiraapi.Options{
		StoreKind: cfg.StoreKind,
		DBPath:    cfg.DBPath,
		Seed:      cfg.Seed,
		Logger:    newLogger(cfg),
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close(ctx)
	}()

	result, err := client.GenerateJitter(ctx, req)
	if err != nil && !errors.Is(err, peiraapi.ErrNoAcceptableSequence) {
		return err
	}
	if *jsonOut && err == nil {
		return printJSON(result)
	}

	fmt.Printf("jitter distribution=%s n=%d accepted=%t attempts=%d/%d observed_mean=%.4f observed_max=%.4f\n",
		result.Distribution,
		*trials,
		result.Accepted,
		result.AttemptsExecuted,
		result.AttemptsPlanned,
		result.ObservedMean,
		result.ObservedMax,
	)
	if err != nil {
		return err
	}

	values := make([]string, 0, len(result.Values))
	for _, v := range result.Values {
		values = append(values, fmt.Sprintf("%.3f", v))
	}
	fmt.Printf("values: %s\n", strings.Join(values, " "))
	if result.PlanID != "" {
		fmt.Printf("plan_id=%s\n", result.PlanID)
	}
	return nil
}
