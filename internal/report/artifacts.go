package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"peira/internal/model"
	"peira/internal/storage"
)

const runIndexFile = "run_index.json"

// SessionDocument is the session.json payload: the session record together
// with its run summary and the reaction-time statistics recomputed from the
// persisted responses. An aborted run leaves Summary zero while Stats still
// covers whatever responses landed before the stop.
type SessionDocument struct {
	Session model.SessionRecord `json:"session"`
	Summary model.RunSummary    `json:"summary"`
	Stats   SessionStats        `json:"stats"`
}

// SessionArtifacts bundles everything one recorded session leaves on disk.
type SessionArtifacts struct {
	Session    model.SessionRecord
	Summary    model.RunSummary
	Trials     []model.TrialRecord
	Responses  []model.ResponseRecord
	JitterPlan *model.JitterPlanRecord
}

type RunIndexEntry struct {
	SessionID     string  `json:"session_id"`
	Paradigm      string  `json:"paradigm"`
	Rig           string  `json:"rig"`
	Seed          int64   `json:"seed"`
	Trials        int     `json:"trials"`
	Responses     int     `json:"responses"`
	MeanRTSeconds float64 `json:"mean_rt_seconds"`
	CreatedAtUTC  string  `json:"created_at_utc"`
}

func IndexEntryForRun(session model.SessionRecord, summary model.RunSummary) RunIndexEntry {
	return RunIndexEntry{
		SessionID:     session.ID,
		Paradigm:      session.Paradigm,
		Rig:           session.Rig,
		Seed:          session.Seed,
		Trials:        summary.Trials,
		Responses:     summary.Responses,
		MeanRTSeconds: summary.MeanRTSeconds,
		CreatedAtUTC:  session.StartedAtUTC,
	}
}

// CollectSessionArtifacts pulls one session's records out of the store. The
// session itself must exist; trials, responses and the summary may be absent
// when a run stopped early. Jitter plans are keyed independently, so callers
// that hold one attach it themselves.
func CollectSessionArtifacts(ctx context.Context, store storage.Store, sessionID string) (SessionArtifacts, error) {
	if sessionID == "" {
		return SessionArtifacts{}, fmt.Errorf("session id is required")
	}

	session, ok, err := store.GetSession(ctx, sessionID)
	if err != nil {
		return SessionArtifacts{}, err
	}
	if !ok {
		return SessionArtifacts{}, fmt.Errorf("session not found: %s", sessionID)
	}
	artifacts := SessionArtifacts{Session: session}

	if summary, ok, err := store.GetRunSummary(ctx, sessionID); err != nil {
		return SessionArtifacts{}, err
	} else if ok {
		artifacts.Summary = summary
	}
	if trials, ok, err := store.GetTrials(ctx, sessionID); err != nil {
		return SessionArtifacts{}, err
	} else if ok {
		artifacts.Trials = trials
	}
	if responses, ok, err := store.GetResponses(ctx, sessionID); err != nil {
		return SessionArtifacts{}, err
	} else if ok {
		artifacts.Responses = responses
	}
	return artifacts, nil
}

func WriteSessionArtifacts(baseDir string, artifacts SessionArtifacts) (string, error) {
	if artifacts.Session.ID == "" {
		return "", fmt.Errorf("session id is required")
	}

	sessionDir := filepath.Join(baseDir, artifacts.Session.ID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return "", err
	}

	doc := SessionDocument{
		Session: artifacts.Session,
		Summary: artifacts.Summary,
		Stats:   BuildSessionStats(artifacts.Responses),
	}
	if err := writeJSON(filepath.Join(sessionDir, "session.json"), doc); err != nil {
		return "", err
	}
	if err := writeTrialsCSV(filepath.Join(sessionDir, "trials.csv"), artifacts.Trials); err != nil {
		return "", err
	}
	if err := writeResponsesCSV(filepath.Join(sessionDir, "responses.csv"), artifacts.Responses); err != nil {
		return "", err
	}
	if artifacts.JitterPlan != nil {
		if err := writeJSON(filepath.Join(sessionDir, "jitter.json"), artifacts.JitterPlan); err != nil {
			return "", err
		}
	}

	return sessionDir, nil
}

func ReadSessionDocument(baseDir, sessionID string) (SessionDocument, bool, error) {
	path := filepath.Join(baseDir, sessionID, "session.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return SessionDocument{}, false, nil
		}
		return SessionDocument{}, false, err
	}

	var doc SessionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return SessionDocument{}, false, err
	}
	return doc, true, nil
}

func ReadJitterPlan(baseDir, sessionID string) (model.JitterPlanRecord, bool, error) {
	path := filepath.Join(baseDir, sessionID, "jitter.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.JitterPlanRecord{}, false, nil
		}
		return model.JitterPlanRecord{}, false, err
	}

	var plan model.JitterPlanRecord
	if err := json.Unmarshal(data, &plan); err != nil {
		return model.JitterPlanRecord{}, false, err
	}
	return plan, true, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].SessionID == entry.SessionID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first. Timestamps are compared
// as parsed times because RFC3339Nano drops trailing fractional zeros, which
// breaks lexical ordering inside a second. Entries without a parseable
// timestamp sort last; full ties order by session id.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		ti, iok := parseIndexTime(entries[i].CreatedAtUTC)
		tj, jok := parseIndexTime(entries[j].CreatedAtUTC)
		switch {
		case iok && jok:
			if ti.Equal(tj) {
				return entries[i].SessionID < entries[j].SessionID
			}
			return ti.After(tj)
		case iok:
			return true
		case jok:
			return false
		default:
			if entries[i].CreatedAtUTC == entries[j].CreatedAtUTC {
				return entries[i].SessionID < entries[j].SessionID
			}
			return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
		}
	})
	return entries, nil
}

func ExportSessionArtifacts(baseDir, sessionID, outDir string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("session id is required")
	}

	src := filepath.Join(baseDir, sessionID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, sessionID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	files := []string{"session.json", "trials.csv", "responses.csv"}
	for _, file := range files {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	jitterPath := filepath.Join(src, "jitter.json")
	if _, err := os.Stat(jitterPath); err == nil {
		if err := copyFile(jitterPath, filepath.Join(dst, "jitter.json")); err != nil {
			return "", err
		}
	} else if err != nil && !os.IsNotExist(err) {
		return "", err
	}

	return dst, nil
}

func writeTrialsCSV(path string, trials []model.TrialRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"index", "onset_utc", "kind", "payload", "marker", "iti_seconds", "condition"}); err != nil {
		return err
	}
	for _, trial := range trials {
		if err := writer.Write([]string{
			strconv.Itoa(trial.Index),
			trial.OnsetUTC,
			trial.Stimulus.Kind,
			trial.Stimulus.Payload,
			strconv.Itoa(trial.Stimulus.Marker),
			strconv.FormatFloat(trial.ITISeconds, 'f', -1, 64),
			encodeCondition(trial.Condition),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadTrialsCSV(baseDir, sessionID string) ([]model.TrialRecord, bool, error) {
	path := filepath.Join(baseDir, sessionID, "trials.csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.TrialRecord{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 7 {
		return nil, false, fmt.Errorf("trials header must have at least 7 columns")
	}

	trials := make([]model.TrialRecord, 0, 64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 7 {
			return nil, false, fmt.Errorf("trials row must have at least 7 columns")
		}
		index, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, false, err
		}
		marker, err := strconv.Atoi(record[4])
		if err != nil {
			return nil, false, err
		}
		iti, err := strconv.ParseFloat(record[5], 64)
		if err != nil {
			return nil, false, err
		}
		trials = append(trials, model.TrialRecord{
			SessionID:  sessionID,
			Index:      index,
			Condition:  decodeCondition(record[6]),
			ITISeconds: iti,
			OnsetUTC:   record[1],
			Stimulus: model.StimulusRecord{
				Kind:    record[2],
				Payload: record[3],
				Marker:  marker,
			},
		})
	}
	return trials, true, nil
}

func writeResponsesCSV(path string, responses []model.ResponseRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"trial", "rating", "rt_seconds", "key", "skipped", "timed_out"}); err != nil {
		return err
	}
	for _, response := range responses {
		if err := writer.Write([]string{
			strconv.Itoa(response.Trial),
			strconv.FormatFloat(response.Rating, 'f', -1, 64),
			strconv.FormatFloat(response.RTSeconds, 'f', -1, 64),
			response.Key,
			strconv.FormatBool(response.Skipped),
			strconv.FormatBool(response.TimedOut),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadResponsesCSV(baseDir, sessionID string) ([]model.ResponseRecord, bool, error) {
	path := filepath.Join(baseDir, sessionID, "responses.csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.ResponseRecord{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 6 {
		return nil, false, fmt.Errorf("responses header must have at least 6 columns")
	}

	responses := make([]model.ResponseRecord, 0, 64)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 6 {
			return nil, false, fmt.Errorf("responses row must have at least 6 columns")
		}
		trial, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, false, err
		}
		rating, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		rt, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, false, err
		}
		skipped, err := strconv.ParseBool(record[4])
		if err != nil {
			return nil, false, err
		}
		timedOut, err := strconv.ParseBool(record[5])
		if err != nil {
			return nil, false, err
		}
		responses = append(responses, model.ResponseRecord{
			SessionID: sessionID,
			Trial:     trial,
			Rating:    rating,
			RTSeconds: rt,
			Key:       record[3],
			Skipped:   skipped,
			TimedOut:  timedOut,
		})
	}
	return responses, true, nil
}

func encodeCondition(condition map[string]string) string {
	if len(condition) == 0 {
		return ""
	}
	keys := make([]string, 0, len(condition))
	for key := range condition {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+condition[key])
	}
	return strings.Join(pairs, ";")
}

func decodeCondition(encoded string) map[string]string {
	if encoded == "" {
		return nil
	}
	condition := make(map[string]string)
	for _, pair := range strings.Split(encoded, ";") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		condition[key] = value
	}
	if len(condition) == 0 {
		return nil
	}
	return condition
}

func parseIndexTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
