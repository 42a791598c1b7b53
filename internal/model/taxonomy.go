package model

// InstrumentType identifies an assessment family
type InstrumentType string

const (
	InstrumentDISC InstrumentType = "disc" // single-profile forced choice
	InstrumentPI   InstrumentType = "pi"   // dual-profile natural/adapted
)

// Valid reports whether the instrument is known
func (i InstrumentType) Valid() bool {
	return i == InstrumentDISC || i == InstrumentPI
}

// Trait is one of the four single-profile categories
type Trait string

const (
	TraitD Trait = "D" // dominance
	TraitI Trait = "I" // influence
	TraitS Trait = "S" // steadiness
	TraitC Trait = "C" // conscientiousness
)

// Traits lists the traits in tie-break order
var Traits = []Trait{TraitD, TraitI, TraitS, TraitC}

// Valid reports whether t is one of D, I, S, C
func (t Trait) Valid() bool {
	switch t {
	case TraitD, TraitI, TraitS, TraitC:
		return true
	}
	return false
}

// Axis is one of the four dual-profile dimensions
type Axis string

const (
	AxisDirection    Axis = "direction"
	AxisSocialEnergy Axis = "social_energy"
	AxisPace         Axis = "pace"
	AxisStructure    Axis = "structure"
)

// Axes lists the axes in report order
var Axes = []Axis{AxisDirection, AxisSocialEnergy, AxisPace, AxisStructure}

// Valid reports whether a is a known axis
func (a Axis) Valid() bool {
	switch a {
	case AxisDirection, AxisSocialEnergy, AxisPace, AxisStructure:
		return true
	}
	return false
}

// Block says which pass or profile a response belongs to.
// DISC uses pass1/pass2, PI uses natural/adapted.
type Block string

const (
	BlockPass1   Block = "pass1"
	BlockPass2   Block = "pass2"
	BlockNatural Block = "natural"
	BlockAdapted Block = "adapted"
)

// Phase distinguishes the kinds of items a candidate answers
type Phase string

const (
	PhaseForcedChoice Phase = "forced_choice" // DISC questions
	PhaseDescriptor   Phase = "descriptor"    // PI free descriptor selection
	PhaseSituational  Phase = "situational"   // PI situational questions
)

// TraitMeta is display metadata for a trait
type TraitMeta struct {
	Trait       Trait  `json:"trait" yaml:"trait"`
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description" yaml:"description"`
}

// AxisMeta is display metadata for an axis, with the meaning of each pole
type AxisMeta struct {
	Axis      Axis   `json:"axis" yaml:"axis"`
	Label     string `json:"label" yaml:"label"`
	LowPole   string `json:"lowPole" yaml:"lowPole"`
	HighPole  string `json:"highPole" yaml:"highPole"`
	Narrative string `json:"narrative" yaml:"narrative"`
}

var traitMeta = map[Trait]TraitMeta{
	TraitD: {Trait: TraitD, Label: "Dominance", Description: "Drive for results, control and direct challenge."},
	TraitI: {Trait: TraitI, Label: "Influence", Description: "Drive to persuade, connect and energize people."},
	TraitS: {Trait: TraitS, Label: "Steadiness", Description: "Preference for cooperation, consistency and support."},
	TraitC: {Trait: TraitC, Label: "Conscientiousness", Description: "Preference for accuracy, structure and quality."},
}

var axisMeta = map[Axis]AxisMeta{
	AxisDirection: {
		Axis: AxisDirection, Label: "Direction",
		LowPole: "Execution-oriented", HighPole: "Influence and control",
		Narrative: "How much the person seeks to set the course for others.",
	},
	AxisSocialEnergy: {
		Axis: AxisSocialEnergy, Label: "Social energy",
		LowPole: "Reserved", HighPole: "Expressive",
		Narrative: "How much the person draws energy from interaction.",
	},
	AxisPace: {
		Axis: AxisPace, Label: "Pace",
		LowPole: "Constancy", HighPole: "Acceleration",
		Narrative: "Preferred speed of work and tolerance for urgency.",
	},
	AxisStructure: {
		Axis: AxisStructure, Label: "Structure",
		LowPole: "Flexible", HighPole: "Structured",
		Narrative: "Need for rules, process and predictability.",
	},
}

// MetaForTrait returns the display metadata for t
func MetaForTrait(t Trait) TraitMeta {
	return traitMeta[t]
}

// MetaForAxis returns the display metadata for a
func MetaForAxis(a Axis) AxisMeta {
	return axisMeta[a]
}
