package model

import "time"

// GapSeverity classifies the aggregate natural/adapted gap
type GapSeverity string

const (
	GapSustainable    GapSeverity = "sustainable"     // 0-10
	GapNeedsAttention GapSeverity = "needs_attention" // 11-25
	GapHighEffort     GapSeverity = "high_effort"     // 26+
)

// TraitProfile is the static interpretive text attached to a primary trait
type TraitProfile struct {
	Description        string   `json:"description" bson:"description"`
	Strengths          []string `json:"strengths" bson:"strengths"`
	Challenges         []string `json:"challenges" bson:"challenges"`
	WorkStyle          string   `json:"workStyle" bson:"workStyle"`
	CommunicationStyle string   `json:"communicationStyle" bson:"communicationStyle"`
}

// TraitScores holds one integer per DISC trait
type TraitScores struct {
	D int `json:"D" bson:"D"`
	I int `json:"I" bson:"I"`
	S int `json:"S" bson:"S"`
	C int `json:"C" bson:"C"`
}

// Get returns the value for t
func (s TraitScores) Get(t Trait) int {
	switch t {
	case TraitD:
		return s.D
	case TraitI:
		return s.I
	case TraitS:
		return s.S
	case TraitC:
		return s.C
	}
	return 0
}

// Add increments the value for t by n
func (s *TraitScores) Add(t Trait, n int) {
	switch t {
	case TraitD:
		s.D += n
	case TraitI:
		s.I += n
	case TraitS:
		s.S += n
	case TraitC:
		s.C += n
	}
}

// Sum returns D+I+S+C
func (s TraitScores) Sum() int {
	return s.D + s.I + s.S + s.C
}

// DISCResult is the single-profile score
type DISCResult struct {
	Counts         TraitScores  `json:"counts" bson:"counts"`
	Percentages    TraitScores  `json:"percentages" bson:"percentages"`
	TotalAnswered  int          `json:"totalAnswered" bson:"totalAnswered"`
	PrimaryTrait   Trait        `json:"primaryTrait" bson:"primaryTrait"`
	SecondaryTrait Trait        `json:"secondaryTrait" bson:"secondaryTrait"`
	OverallScore   int          `json:"overallScore" bson:"overallScore"` // max percentage
	Profile        TraitProfile `json:"profile" bson:"profile"`
}

// AxisScore is one axis of the dual-profile score
type AxisScore struct {
	Axis         Axis `json:"axis" bson:"axis"`
	NaturalScore int  `json:"naturalScore" bson:"naturalScore"`
	AdaptedScore int  `json:"adaptedScore" bson:"adaptedScore"`
	Gap          int  `json:"gap" bson:"gap"` // adapted - natural
}

// PIResult is the dual-profile score
type PIResult struct {
	Axes          []AxisScore `json:"axes" bson:"axes"`
	MaxAbsGap     int         `json:"maxAbsGap" bson:"maxAbsGap"`
	Severity      GapSeverity `json:"severity" bson:"severity"`
	SeverityNote  string      `json:"severityNote" bson:"severityNote"`
	DescriptorWt  float64     `json:"descriptorWeight" bson:"descriptorWeight"`
	SituationalWt float64     `json:"situationalWeight" bson:"situationalWeight"`
}

// Axis returns the score for a, or false if absent
func (r *PIResult) Axis(a Axis) (AxisScore, bool) {
	for _, s := range r.Axes {
		if s.Axis == a {
			return s, true
		}
	}
	return AxisScore{}, false
}

// ScoreResult is the immutable outcome of a finalized session.
// Exactly one of DISC or PI is set.
type ScoreResult struct {
	SessionID  string         `json:"sessionId" bson:"sessionId"`
	SubjectRef string         `json:"subjectRef" bson:"subjectRef"`
	Instrument InstrumentType `json:"instrument" bson:"instrument"`
	DISC       *DISCResult    `json:"disc,omitempty" bson:"disc,omitempty"`
	PI         *PIResult      `json:"pi,omitempty" bson:"pi,omitempty"`
	ComputedAt time.Time      `json:"computedAt" bson:"computedAt"`
}

// Clone returns a deep copy of r. Nil stays nil.
func (r *ScoreResult) Clone() *ScoreResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.DISC != nil {
		disc := *r.DISC
		disc.Profile.Strengths = append([]string(nil), r.DISC.Profile.Strengths...)
		disc.Profile.Challenges = append([]string(nil), r.DISC.Profile.Challenges...)
		out.DISC = &disc
	}
	if r.PI != nil {
		pi := *r.PI
		pi.Axes = append([]AxisScore(nil), r.PI.Axes...)
		out.PI = &pi
	}
	return &out
}
