package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type SessionRecord struct {
	VersionedRecord
	ID           string `json:"id"`
	Paradigm     string `json:"paradigm"`
	Rig          string `json:"rig"`
	Seed         int64  `json:"seed"`
	StartedAtUTC string `json:"started_at_utc"`
	StoppedAtUTC string `json:"stopped_at_utc,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
}

// TrialPlan is the pre-run description of a single trial: its condition row
// from the schedule plus the inter-trial interval preceding it.
type TrialPlan struct {
	Index          int               `json:"index"`
	Condition      map[string]string `json:"condition,omitempty"`
	ITISeconds     float64           `json:"iti_seconds"`
	MaxTimeSeconds float64           `json:"max_time_seconds,omitempty"`
}

type StimulusRecord struct {
	Kind    string `json:"kind"`
	Payload string `json:"payload,omitempty"`
	Marker  int    `json:"marker,omitempty"`
}

type TrialRecord struct {
	VersionedRecord
	SessionID  string            `json:"session_id"`
	Index      int               `json:"index"`
	Condition  map[string]string `json:"condition,omitempty"`
	ITISeconds float64           `json:"iti_seconds"`
	OnsetUTC   string            `json:"onset_utc"`
	Stimulus   StimulusRecord    `json:"stimulus"`
}

type ResponseRecord struct {
	VersionedRecord
	SessionID string  `json:"session_id"`
	Trial     int     `json:"trial"`
	Rating    float64 `json:"rating"`
	RTSeconds float64 `json:"rt_seconds"`
	Key       string  `json:"key,omitempty"`
	Skipped   bool    `json:"skipped,omitempty"`
	TimedOut  bool    `json:"timed_out,omitempty"`
}

type JitterPlanRecord struct {
	VersionedRecord
	ID           string    `json:"id"`
	Distribution string    `json:"distribution"`
	Mean         float64   `json:"mean"`
	Min          float64   `json:"min"`
	Max          float64   `json:"max"`
	Tolerance    float64   `json:"tolerance"`
	Discrete     bool      `json:"discrete"`
	Seed         int64     `json:"seed"`
	Attempts     int       `json:"attempts"`
	Values       []float64 `json:"values"`
}

type RunSummary struct {
	VersionedRecord
	SessionID     string  `json:"session_id"`
	Trials        int     `json:"trials"`
	Responses     int     `json:"responses"`
	Skipped       int     `json:"skipped"`
	TimedOut      int     `json:"timed_out"`
	MeanRTSeconds float64 `json:"mean_rt_seconds"`
}
