package storage

import (
	"context"
	"sort"
	"sync"

	"peira/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	sessions    map[string]model.SessionRecord
	trials      map[string][]model.TrialRecord
	responses   map[string][]model.ResponseRecord
	jitterPlans map[string]model.JitterPlanRecord
	summaries   map[string]model.RunSummary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.sessions = make(map[string]model.SessionRecord)
	s.trials = make(map[string][]model.TrialRecord)
	s.responses = make(map[string][]model.ResponseRecord)
	s.jitterPlans = make(map[string]model.JitterPlanRecord)
	s.summaries = make(map[string]model.RunSummary)
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	return s.Init(ctx)
}

func (s *MemoryStore) SaveSession(_ context.Context, session model.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = session
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (model.SessionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	return session, ok, nil
}

func (s *MemoryStore) ListSessions(_ context.Context) ([]model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]model.SessionRecord, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].StartedAtUTC == sessions[j].StartedAtUTC {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].StartedAtUTC > sessions[j].StartedAtUTC
	})
	return sessions, nil
}

func (s *MemoryStore) SaveTrial(_ context.Context, trial model.TrialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trials := s.trials[trial.SessionID]
	replaced := false
	for i := range trials {
		if trials[i].Index == trial.Index {
			trials[i] = trial
			replaced = true
			break
		}
	}
	if !replaced {
		trials = append(trials, trial)
	}
	s.trials[trial.SessionID] = trials
	return nil
}

func (s *MemoryStore) GetTrials(_ context.Context, sessionID string) ([]model.TrialRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trials, ok := s.trials[sessionID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.TrialRecord, len(trials))
	copy(copied, trials)
	sort.Slice(copied, func(i, j int) bool { return copied[i].Index < copied[j].Index })
	return copied, true, nil
}

func (s *MemoryStore) SaveResponse(_ context.Context, response model.ResponseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	responses := s.responses[response.SessionID]
	replaced := false
	for i := range responses {
		if responses[i].Trial == response.Trial {
			responses[i] = response
			replaced = true
			break
		}
	}
	if !replaced {
		responses = append(responses, response)
	}
	s.responses[response.SessionID] = responses
	return nil
}

func (s *MemoryStore) GetResponses(_ context.Context, sessionID string) ([]model.ResponseRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	responses, ok := s.responses[sessionID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.ResponseRecord, len(responses))
	copy(copied, responses)
	sort.Slice(copied, func(i, j int) bool { return copied[i].Trial < copied[j].Trial })
	return copied, true, nil
}

func (s *MemoryStore) SaveJitterPlan(_ context.Context, plan model.JitterPlanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := plan
	stored.Values = append([]float64(nil), plan.Values...)
	s.jitterPlans[plan.ID] = stored
	return nil
}

func (s *MemoryStore) GetJitterPlan(_ context.Context, id string) (model.JitterPlanRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, ok := s.jitterPlans[id]
	if !ok {
		return model.JitterPlanRecord{}, false, nil
	}
	copied := plan
	copied.Values = append([]float64(nil), plan.Values...)
	return copied, true, nil
}

func (s *MemoryStore) SaveRunSummary(_ context.Context, summary model.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summaries[summary.SessionID] = summary
	return nil
}

func (s *MemoryStore) GetRunSummary(_ context.Context, sessionID string) (model.RunSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.summaries[sessionID]
	return summary, ok, nil
}
