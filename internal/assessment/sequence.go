package assessment

import (
	"math/rand/v2"
	"slices"

	"assessd/internal/model"
)

// Shuffler permutes n elements through swap. *rand.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// Sequencer builds the ordered list of slots a candidate answers
type Sequencer struct {
	shuffler Shuffler
}

// NewSequencer returns a sequencer using s for the second DISC pass.
// A nil s uses the global math/rand source.
func NewSequencer(s Shuffler) *Sequencer {
	if s == nil {
		s = globalShuffler{}
	}
	return &Sequencer{shuffler: s}
}

// Build validates the catalog and produces its sequence
func (sq *Sequencer) Build(c *model.Catalog) (model.Sequence, error) {
	if err := ValidateCatalog(c); err != nil {
		return model.Sequence{}, err
	}
	if c.Instrument == model.InstrumentDISC {
		return sq.disc(c.Questions), nil
	}
	return pi(c.Descriptors, c.Situational), nil
}

// disc lays out pass1 in ordinal order followed by a shuffled pass2. If the
// shuffle puts the last pass1 item first in pass2, the first two pass2
// entries are swapped once.
func (sq *Sequencer) disc(items []model.QuestionItem) model.Sequence {
	ordered := slices.Clone(items)
	slices.SortStableFunc(ordered, func(a, b model.QuestionItem) int { return a.Ordinal - b.Ordinal })

	ids := make([]string, len(ordered))
	for i, q := range ordered {
		ids[i] = q.ID
	}
	second := slices.Clone(ids)
	sq.shuffler.Shuffle(len(second), func(i, j int) { second[i], second[j] = second[j], second[i] })
	if len(second) > 1 && second[0] == ids[len(ids)-1] {
		second[0], second[1] = second[1], second[0]
	}

	slots := make([]model.Slot, 0, 2*len(ids))
	for _, id := range ids {
		slots = append(slots, model.Slot{Phase: model.PhaseForcedChoice, ItemID: id, Block: model.BlockPass1})
	}
	for _, id := range second {
		slots = append(slots, model.Slot{Phase: model.PhaseForcedChoice, ItemID: id, Block: model.BlockPass2})
	}
	return model.Sequence{
		Instrument: model.InstrumentDISC,
		Slots:      slots,
		Blocks:     []model.Block{model.BlockPass1, model.BlockPass2},
	}
}

// pi presents every descriptor in each block and the situational catalog
// once per block, natural first, in catalog order.
func pi(descriptors []model.Descriptor, situational []model.SituationalItem) model.Sequence {
	descs := slices.Clone(descriptors)
	slices.SortStableFunc(descs, func(a, b model.Descriptor) int { return a.Position - b.Position })
	descIDs := make([]string, len(descs))
	for i, d := range descs {
		descIDs[i] = d.ID
	}

	items := slices.Clone(situational)
	slices.SortStableFunc(items, func(a, b model.SituationalItem) int { return a.Ordinal - b.Ordinal })

	blocks := []model.Block{model.BlockNatural, model.BlockAdapted}
	slots := make([]model.Slot, 0, len(blocks)*len(items))
	for _, b := range blocks {
		for _, q := range items {
			slots = append(slots, model.Slot{Phase: model.PhaseSituational, ItemID: q.ID, Block: b})
		}
	}
	return model.Sequence{
		Instrument:  model.InstrumentPI,
		Slots:       slots,
		Blocks:      blocks,
		Descriptors: descIDs,
	}
}
