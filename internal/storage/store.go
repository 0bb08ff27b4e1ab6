package storage

import (
	"context"

	"peira/internal/model"
)

// Store defines persistence operations for session, trial, and response data.
type Store interface {
	Init(ctx context.Context) error
	SaveSession(ctx context.Context, session model.SessionRecord) error
	GetSession(ctx context.Context, id string) (model.SessionRecord, bool, error)
	ListSessions(ctx context.Context) ([]model.SessionRecord, error)
	SaveTrial(ctx context.Context, trial model.TrialRecord) error
	GetTrials(ctx context.Context, sessionID string) ([]model.TrialRecord, bool, error)
	SaveResponse(ctx context.Context, response model.ResponseRecord) error
	GetResponses(ctx context.Context, sessionID string) ([]model.ResponseRecord, bool, error)
	SaveJitterPlan(ctx context.Context, plan model.JitterPlanRecord) error
	GetJitterPlan(ctx context.Context, id string) (model.JitterPlanRecord, bool, error)
	SaveRunSummary(ctx context.Context, summary model.RunSummary) error
	GetRunSummary(ctx context.Context, sessionID string) (model.RunSummary, bool, error)
}

// Resetter is an optional store capability that drops all persisted records
// while leaving the store initialized and usable.
type Resetter interface {
	Reset(ctx context.Context) error
}
