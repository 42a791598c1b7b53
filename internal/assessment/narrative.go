package assessment

import "assessd/internal/model"

var discProfiles = map[model.Trait]model.TraitProfile{
	model.TraitD: {
		Description:        "A natural leader, direct and focused on results. Enjoys challenges and prefers to be in control of situations.",
		Strengths:          []string{"Leadership", "Fast decision making", "Confidence", "Results focus"},
		Challenges:         []string{"Can be impatient", "May overlook details", "Can come across as insensitive", "Finds it hard to delegate"},
		WorkStyle:          "Works best with autonomy, real challenges and clear accountability. Prefers quick results.",
		CommunicationStyle: "Direct, objective, focused on outcomes",
	},
	model.TraitI: {
		Description:        "Enthusiastic and sociable, with a strong ability to influence. Motivates others and looks for meaningful relationships.",
		Strengths:          []string{"Communication", "Inspiring others", "Networking", "Creativity"},
		Challenges:         []string{"Can be impulsive", "Low attention to detail", "Struggles to keep focus", "Over-optimism"},
		WorkStyle:          "Works best in collaborative settings with plenty of interaction. Needs variety and recognition.",
		CommunicationStyle: "Enthusiastic, expressive, focused on relationships",
	},
	model.TraitS: {
		Description:        "Stable and dependable, prefers harmony and cooperation. A strong supporter of the team.",
		Strengths:          []string{"Loyalty", "Patience", "Cooperation", "Reliability"},
		Challenges:         []string{"Can be passive", "Finds change difficult", "Low initiative", "Struggles with assertiveness"},
		WorkStyle:          "Works best with consistent processes in stable teams. Values security and long-term relationships.",
		CommunicationStyle: "Calm, a good listener, focused on cooperation",
	},
	model.TraitC: {
		Description:        "Detail-oriented and quality-driven, looking for excellence. Prefers structured, logical environments.",
		Strengths:          []string{"Attention to detail", "Critical analysis", "Quality", "Precision"},
		Challenges:         []string{"Can be perfectionist", "Finds change difficult", "Can be overly critical", "Analysis paralysis"},
		WorkStyle:          "Works best with data, structure and clarity. Prefers predictable settings and well defined procedures.",
		CommunicationStyle: "Logical, precise, focused on facts",
	},
}

var severityNotes = map[model.GapSeverity]string{
	model.GapSustainable:    "Sustainable role fit: the role asks for behavior close to the natural profile.",
	model.GapNeedsAttention: "Requires attention: the role asks for noticeable adaptation; adjust context and support.",
	model.GapHighEffort:     "High sustained effort: the role asks for strong adaptation with risk of burnout.",
}

// ProfileFor returns the interpretive text for a primary trait
func ProfileFor(t model.Trait) model.TraitProfile {
	p := discProfiles[t]
	p.Strengths = append([]string(nil), p.Strengths...)
	p.Challenges = append([]string(nil), p.Challenges...)
	return p
}

// SeverityNote returns the interpretation of a gap severity band
func SeverityNote(s model.GapSeverity) string {
	return severityNotes[s]
}
