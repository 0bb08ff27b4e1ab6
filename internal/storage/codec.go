package storage

import (
	"encoding/json"
	"errors"

	"peira/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeSession(s model.SessionRecord) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSession(data []byte) (model.SessionRecord, error) {
	var session model.SessionRecord
	if err := json.Unmarshal(data, &session); err != nil {
		return model.SessionRecord{}, err
	}
	if err := checkVersion(session.VersionedRecord); err != nil {
		return model.SessionRecord{}, err
	}
	return session, nil
}

func EncodeTrials(trials []model.TrialRecord) ([]byte, error) {
	return json.Marshal(trials)
}

func DecodeTrials(data []byte) ([]model.TrialRecord, error) {
	var trials []model.TrialRecord
	if err := json.Unmarshal(data, &trials); err != nil {
		return nil, err
	}
	for _, trial := range trials {
		if err := checkVersion(trial.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return trials, nil
}

func EncodeResponses(responses []model.ResponseRecord) ([]byte, error) {
	return json.Marshal(responses)
}

func DecodeResponses(data []byte) ([]model.ResponseRecord, error) {
	var responses []model.ResponseRecord
	if err := json.Unmarshal(data, &responses); err != nil {
		return nil, err
	}
	for _, response := range responses {
		if err := checkVersion(response.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return responses, nil
}

func EncodeJitterPlan(p model.JitterPlanRecord) ([]byte, error) {
	return json.Marshal(p)
}

func DecodeJitterPlan(data []byte) (model.JitterPlanRecord, error) {
	var plan model.JitterPlanRecord
	if err := json.Unmarshal(data, &plan); err != nil {
		return model.JitterPlanRecord{}, err
	}
	if err := checkVersion(plan.VersionedRecord); err != nil {
		return model.JitterPlanRecord{}, err
	}
	return plan, nil
}

func EncodeRunSummary(s model.RunSummary) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeRunSummary(data []byte) (model.RunSummary, error) {
	var summary model.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return model.RunSummary{}, err
	}
	if err := checkVersion(summary.VersionedRecord); err != nil {
		return model.RunSummary{}, err
	}
	return summary, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
