package store

import "context"

// Memory is an in-process GroundTruthRecorder + NotificationRecorder used by
// tests and by any deployment that runs without DATABASE_URL configured but
// still wants the ground-truth scoring harness to see something locally.
type Memory struct {
	GroundTruth   map[[2]string]struct{}
	Notifications map[[3]string]float64
}

// NewMemory returns an empty in-process recorder pair.
func NewMemory() *Memory {
	return &Memory{
		GroundTruth:   make(map[[2]string]struct{}),
		Notifications: make(map[[3]string]float64),
	}
}

func (m *Memory) RecordGroundTruth(_ context.Context, experimentID, measurementID string) error {
	m.GroundTruth[[2]string{experimentID, measurementID}] = struct{}{}
	return nil
}

func (m *Memory) RecordNotification(_ context.Context, experimentID, measurementID, groupID string, latencySeconds float64) error {
	key := [3]string{experimentID, measurementID, groupID}
	if _, exists := m.Notifications[key]; exists {
		return nil // ON CONFLICT DO NOTHING
	}
	m.Notifications[key] = latencySeconds
	return nil
}
