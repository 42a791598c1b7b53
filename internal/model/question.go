package model

// TraitOption is one forced-choice answer coded to a trait
type TraitOption struct {
	Text  string `json:"text" bson:"text" yaml:"text"`
	Trait Trait  `json:"trait" bson:"trait" yaml:"trait"`
}

// QuestionItem is a single-profile question with four trait-coded options
type QuestionItem struct {
	ID      string        `json:"id" bson:"_id" yaml:"id"`
	Ordinal int           `json:"ordinal" bson:"ordinal" yaml:"ordinal"`
	Prompt  string        `json:"prompt" bson:"prompt" yaml:"prompt"`
	Options []TraitOption `json:"options" bson:"options" yaml:"options"`
	Active  bool          `json:"-" bson:"active" yaml:"-"`
}

// Offers reports whether one of the options is coded to t
func (q *QuestionItem) Offers(t Trait) bool {
	for _, o := range q.Options {
		if o.Trait == t {
			return true
		}
	}
	return false
}

// Descriptor is a free-form adjective the candidate may select in the PI descriptor phase
type Descriptor struct {
	ID       string `json:"id" bson:"_id" yaml:"id"`
	Text     string `json:"text" bson:"text" yaml:"text"`
	Axis     Axis   `json:"axis" bson:"axis" yaml:"axis"`
	Position int    `json:"position" bson:"position" yaml:"position"`
	Active   bool   `json:"-" bson:"active" yaml:"-"`
}

// AxisOption is one situational answer coded to an axis
type AxisOption struct {
	Text string `json:"text" bson:"text" yaml:"text"`
	Axis Axis   `json:"axis" bson:"axis" yaml:"axis"`
}

// SituationalItem is a PI forced-choice scenario. Axes may repeat across options.
type SituationalItem struct {
	ID      string       `json:"id" bson:"_id" yaml:"id"`
	Ordinal int          `json:"ordinal" bson:"ordinal" yaml:"ordinal"`
	Prompt  string       `json:"prompt" bson:"prompt" yaml:"prompt"`
	Options []AxisOption `json:"options" bson:"options" yaml:"options"`
	Active  bool         `json:"-" bson:"active" yaml:"-"`
}

// Offers reports whether one of the options is coded to a
func (q *SituationalItem) Offers(a Axis) bool {
	for _, o := range q.Options {
		if o.Axis == a {
			return true
		}
	}
	return false
}

// Catalog is the externally supplied item bank for one instrument.
// DISC catalogs use Questions; PI catalogs use Descriptors and Situational.
type Catalog struct {
	Instrument  InstrumentType    `json:"instrument" yaml:"instrument"`
	Questions   []QuestionItem    `json:"questions,omitempty" yaml:"questions,omitempty"`
	Descriptors []Descriptor      `json:"descriptors,omitempty" yaml:"descriptors,omitempty"`
	Situational []SituationalItem `json:"situational,omitempty" yaml:"situational,omitempty"`
}
