package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lmittmann/tint"

	"peira/internal/config"
	"peira/internal/device"
	"peira/internal/paradigm"
	"peira/internal/report"
	"peira/internal/rig"
	"peira/internal/session"
	"peira/internal/stimgen"
	"peira/internal/storage"
)

const (
	defaultConfigFile = "peira.json"
	defaultExportsDir = "exports"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "jitter":
		return runJitter(ctx, args[1:])
	case "schedule":
		return runSchedule(ctx, args[1:])
	case "rate":
		return runRate(ctx, args[1:])
	case "devices":
		return runDevices(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "cleanup":
		return runCleanup(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: peiractl <init|run|jitter|schedule|rate|devices|runs|export|diagnostics|cleanup> [flags]", msg)
}

func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      cfg.SlogLevel(),
		TimeFormat: time.Kitchen,
	}))
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigFile, "config file to write")
	storeKind := fs.String("store", "", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "", "sqlite database path")
	artifactsDir := fs.String("artifacts", "", "artifacts directory")
	paradigmName := fs.String("paradigm", "", "default paradigm: rating|detection")
	rigProfile := fs.String("rig", "", "default rig profile")
	seed := fs.Int64("seed", 0, "default rng seed")
	logLevel := fs.String("log-level", "", "log level: debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *storeKind != "" {
		cfg.StoreKind = *storeKind
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *artifactsDir != "" {
		cfg.ArtifactsDir = *artifactsDir
	}
	if *paradigmName != "" {
		cfg.Paradigm = *paradigmName
	}
	if *rigProfile != "" {
		cfg.RigProfile = *rigProfile
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	if err := config.Save(*configPath, cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.MkdirAll(cfg.ArtifactsDir, 0o755); err != nil {
		return fmt.Errorf("create artifacts dir: %w", err)
	}

	store, err := storage.NewStore(cfg.StoreKind, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()
	if err := store.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized config=%s store=%s artifacts=%s\n", *configPath, cfg.StoreKind, cfg.ArtifactsDir)
	return nil
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	artifactsDir := fs.String("artifacts", "artifacts", "artifacts directory")
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return fmt.Errorf("limit must be > 0")
	}

	entries, err := report.ListRunIndex(*artifactsDir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if len(entries) > *limit {
		entries = entries[:*limit]
	}
	if *jsonOut {
		return printJSON(entries)
	}

	for _, e := range entries {
		age := "unknown age"
		if created, err := time.Parse(time.RFC3339Nano, e.CreatedAtUTC); err == nil {
			age = humanize.Time(created)
		}
		fmt.Printf("session_id=%s paradigm=%s rig=%s seed=%d trials=%d responses=%d mean_rt=%.3fs created=%s (%s)\n",
			e.SessionID,
			e.Paradigm,
			e.Rig,
			e.Seed,
			e.Trials,
			e.Responses,
			e.MeanRTSeconds,
			e.CreatedAtUTC,
			age,
		)
	}
	return nil
}

func runExport(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	sessionID := fs.String("session-id", "", "session id")
	latest := fs.Bool("latest", false, "export the most recent session from the run index")
	artifactsDir := fs.String("artifacts", "artifacts", "artifacts directory")
	outDir := fs.String("out", defaultExportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sessionID != "" && *latest {
		return fmt.Errorf("use either --session-id or --latest, not both")
	}
	if *sessionID == "" && !*latest {
		return fmt.Errorf("export requires --session-id or --latest")
	}
	if *latest {
		entries, err := report.ListRunIndex(*artifactsDir)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return fmt.Errorf("no runs available to export")
		}
		*sessionID = entries[0].SessionID
	}

	exportedDir, err := report.ExportSessionArtifacts(*artifactsDir, *sessionID, *outDir)
	if err != nil {
		return err
	}

	fmt.Printf("exported session_id=%s to=%s\n", *sessionID, filepath.Clean(exportedDir))
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config JSON path")
	storeKind := fs.String("store", "", "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "", "sqlite database path")
	artifactsDir := fs.String("artifacts", "", "artifacts directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *storeKind != "" {
		cfg.StoreKind = *storeKind
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *artifactsDir != "" {
		cfg.ArtifactsDir = *artifactsDir
	}

	storeStatus := "ok"
	store, err := storage.NewStore(cfg.StoreKind, cfg.DBPath)
	if err != nil {
		storeStatus = err.Error()
	} else {
		if err := store.Init(ctx); err != nil {
			storeStatus = err.Error()
		}
		_ = storage.CloseIfSupported(store)
	}
	fmt.Printf("store kind=%s path=%s status=%s\n", cfg.StoreKind, cfg.DBPath, storeStatus)

	runCount := 0
	artifactsStatus := "ok"
	if _, err := os.Stat(cfg.ArtifactsDir); err != nil {
		artifactsStatus = "missing"
	} else if entries, err := report.ListRunIndex(cfg.ArtifactsDir); err != nil {
		artifactsStatus = err.Error()
	} else {
		runCount = len(entries)
	}
	fmt.Printf("artifacts dir=%s status=%s runs=%d size=%s\n",
		cfg.ArtifactsDir, artifactsStatus, runCount, humanize.Bytes(dirSize(cfg.ArtifactsDir)))

	for _, name := range paradigm.List() {
		fmt.Printf("paradigm name=%s rigs=%s inputs=%s outputs=%s\n",
			name,
			strings.Join(rig.AvailableRigProfiles(name), ","),
			strings.Join(device.ListInputsForParadigm(name), ","),
			strings.Join(device.ListOutputsForParadigm(name), ","),
		)
	}
	fmt.Printf("jitter distributions=%s\n", strings.Join(stimgen.AvailableDistributions(), ","))

	if _, ok := session.Default(); ok {
		fmt.Println("default session=active")
	} else {
		fmt.Println("default session=none")
	}
	return nil
}

func runCleanup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	reasonName := fs.String("reason", string(session.ReasonShutdown), "stop reason: normal|abort|error|shutdown")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reason := session.StopReason(*reasonName)
	switch reason {
	case session.ReasonNormal, session.ReasonAbort, session.ReasonError, session.ReasonShutdown:
	default:
		return fmt.Errorf("unknown stop reason: %s", *reasonName)
	}

	if err := session.CleanupDefault(ctx, reason); err != nil {
		return err
	}
	fmt.Printf("cleanup complete reason=%s\n", reason)
	return nil
}

func dirSize(dir string) uint64 {
	var total uint64
	_ = filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}
