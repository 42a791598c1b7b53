package assessment

import (
	"assessd/internal/model"
)

// ValidateCatalog checks that the catalog for its instrument is non-empty,
// has no duplicate ids and only uses known traits and axes.
func ValidateCatalog(c *model.Catalog) error {
	if c == nil {
		return catalogErr("no catalog")
	}
	switch c.Instrument {
	case model.InstrumentDISC:
		return validateQuestions(c.Questions)
	case model.InstrumentPI:
		if err := validateDescriptors(c.Descriptors); err != nil {
			return err
		}
		return validateSituational(c.Situational)
	default:
		return catalogErr("unknown instrument %q", c.Instrument)
	}
}

func validateQuestions(items []model.QuestionItem) error {
	if len(items) == 0 {
		return catalogErr("no questions")
	}
	seen := make(map[string]bool, len(items))
	for _, q := range items {
		if q.ID == "" {
			return catalogErr("question at ordinal %d has no id", q.Ordinal)
		}
		if seen[q.ID] {
			return catalogErr("duplicate question id %q", q.ID)
		}
		seen[q.ID] = true
		if len(q.Options) == 0 {
			return catalogErr("question %q has no options", q.ID)
		}
		for _, o := range q.Options {
			if !o.Trait.Valid() {
				return catalogErr("question %q option codes unknown trait %q", q.ID, o.Trait)
			}
		}
	}
	return nil
}

func validateDescriptors(items []model.Descriptor) error {
	if len(items) == 0 {
		return catalogErr("no descriptors")
	}
	seen := make(map[string]bool, len(items))
	for _, d := range items {
		if d.ID == "" {
			return catalogErr("descriptor at position %d has no id", d.Position)
		}
		if seen[d.ID] {
			return catalogErr("duplicate descriptor id %q", d.ID)
		}
		seen[d.ID] = true
		if !d.Axis.Valid() {
			return catalogErr("descriptor %q codes unknown axis %q", d.ID, d.Axis)
		}
	}
	return nil
}

func validateSituational(items []model.SituationalItem) error {
	if len(items) == 0 {
		return catalogErr("no situational questions")
	}
	seen := make(map[string]bool, len(items))
	for _, q := range items {
		if q.ID == "" {
			return catalogErr("situational question at ordinal %d has no id", q.Ordinal)
		}
		if seen[q.ID] {
			return catalogErr("duplicate situational question id %q", q.ID)
		}
		seen[q.ID] = true
		if len(q.Options) == 0 {
			return catalogErr("situational question %q has no options", q.ID)
		}
		for _, o := range q.Options {
			if !o.Axis.Valid() {
				return catalogErr("situational question %q option codes unknown axis %q", q.ID, o.Axis)
			}
		}
	}
	return nil
}
