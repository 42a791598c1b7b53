package model

import "time"

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

// Slot is one position in a sequence: an item to answer in a given block
type Slot struct {
	Phase  Phase  `json:"phase" bson:"phase"`
	ItemID string `json:"itemId" bson:"itemId"`
	Block  Block  `json:"block" bson:"block"`
}

// Key returns the ledger key answered by this slot
func (s Slot) Key() ResponseKey {
	return ResponseKey{Phase: s.Phase, ItemID: s.ItemID, Block: s.Block}
}

// Sequence is the read-only presentation order produced once per session.
// Slots are the required answers in order. Descriptors lists the descriptor
// ids open for selection in each block of a PI session; it is empty for DISC.
type Sequence struct {
	Instrument  InstrumentType `json:"instrument" bson:"instrument"`
	Slots       []Slot         `json:"slots" bson:"slots"`
	Blocks      []Block        `json:"blocks" bson:"blocks"`
	Descriptors []string       `json:"descriptors,omitempty" bson:"descriptors,omitempty"`
}

// Session is the persisted form of an assessment session. Result is set
// iff Status is completed.
type Session struct {
	ID          string         `json:"id" bson:"_id"`
	Instrument  InstrumentType `json:"instrument" bson:"instrument"`
	SubjectRef  string         `json:"subjectRef" bson:"subjectRef"`
	Status      SessionStatus  `json:"status" bson:"status"`
	Sequence    Sequence       `json:"sequence" bson:"sequence"`
	Result      *ScoreResult   `json:"result,omitempty" bson:"result,omitempty"`
	CreatedAt   time.Time      `json:"createdAt" bson:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
}

// BlockProgress counts answered slots in one block
type BlockProgress struct {
	Block       Block `json:"block"`
	Answered    int   `json:"answered"`
	Required    int   `json:"required"`
	Descriptors int   `json:"descriptors,omitempty"` // PI only: selected descriptors
}

// Progress summarizes how far a session is. Navigation state stays with the caller.
type Progress struct {
	Blocks   []BlockProgress `json:"blocks"`
	Answered int             `json:"answered"`
	Required int             `json:"required"`
	Percent  int             `json:"percent"`
	Complete bool            `json:"complete"`
}
