package service

import "assessd/internal/model"

// Event types pushed to session watchers
const (
	EventProgress  = "assessment_progress"
	EventCompleted = "assessment_completed"
)

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	BroadcastToWatchers(sessionID string, msgType string, payload interface{})
	DisconnectSession(sessionID string)
}

// ProgressEvent is sent after every accepted response or removal
type ProgressEvent struct {
	SessionID  string               `json:"sessionId"`
	SubjectRef string               `json:"subjectRef"`
	Instrument model.InstrumentType `json:"instrument"`
	Progress   model.Progress       `json:"progress"`
}

// CompletedEvent is sent once a session is finalized
type CompletedEvent struct {
	SessionID string             `json:"sessionId"`
	Result    *model.ScoreResult `json:"result"`
}
