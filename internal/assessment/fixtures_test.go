package assessment

import (
	"fmt"
	"time"

	"assessd/internal/model"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// reverseShuffler reverses instead of shuffling, which always puts the last
// pass1 item first before the corrective swap.
type reverseShuffler struct{}

func (reverseShuffler) Shuffle(n int, swap func(i, j int)) {
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		swap(i, j)
	}
}

type noopShuffler struct{}

func (noopShuffler) Shuffle(int, func(i, j int)) {}

func testEngine() *Engine {
	sc := NewScorer(DefaultWeights)
	sc.now = func() time.Time { return fixedNow }
	return &Engine{
		Sequencer: NewSequencer(noopShuffler{}),
		Scorer:    sc,
		Now:       func() time.Time { return fixedNow },
	}
}

// discCatalog returns n questions offering all four traits, listed in
// reverse ordinal order.
func discCatalog(n int) *model.Catalog {
	c := &model.Catalog{Instrument: model.InstrumentDISC}
	for i := n; i >= 1; i-- {
		c.Questions = append(c.Questions, model.QuestionItem{
			ID:      fmt.Sprintf("q%02d", i),
			Ordinal: i,
			Prompt:  fmt.Sprintf("Question %d", i),
			Options: []model.TraitOption{
				{Text: "direct", Trait: model.TraitD},
				{Text: "lively", Trait: model.TraitI},
				{Text: "patient", Trait: model.TraitS},
				{Text: "precise", Trait: model.TraitC},
			},
			Active: true,
		})
	}
	return c
}

// piCatalog has two descriptors per axis (d1,d2 direction ... d7,d8
// structure) and four situational items offering every axis.
func piCatalog() *model.Catalog {
	c := &model.Catalog{Instrument: model.InstrumentPI}
	for i, a := range model.Axes {
		for j := 1; j <= 2; j++ {
			pos := i*2 + j
			c.Descriptors = append(c.Descriptors, model.Descriptor{
				ID:       fmt.Sprintf("d%d", pos),
				Text:     fmt.Sprintf("%s %d", a, j),
				Axis:     a,
				Position: pos,
				Active:   true,
			})
		}
	}
	for i := 1; i <= 4; i++ {
		item := model.SituationalItem{ID: fmt.Sprintf("s%d", i), Ordinal: i, Prompt: fmt.Sprintf("Scenario %d", i), Active: true}
		for _, a := range model.Axes {
			item.Options = append(item.Options, model.AxisOption{Text: string(a), Axis: a})
		}
		c.Situational = append(c.Situational, item)
	}
	return c
}

// answerDISC fills every slot of seq, choosing the trait pick(i) for the i-th slot
func answerDISC(seq model.Sequence, pick func(i int) model.Trait) []model.Response {
	out := make([]model.Response, 0, len(seq.Slots))
	for i, s := range seq.Slots {
		out = append(out, model.Response{Phase: s.Phase, ItemID: s.ItemID, Block: s.Block, Trait: pick(i), AnsweredAt: fixedNow})
	}
	return out
}

func descriptor(id string, axis model.Axis, b model.Block) model.Response {
	return model.Response{Phase: model.PhaseDescriptor, ItemID: id, Block: b, Axis: axis, AnsweredAt: fixedNow}
}

// answerSituational answers every situational slot of block b with axis a
func answerSituational(seq model.Sequence, b model.Block, a model.Axis) []model.Response {
	var out []model.Response
	for _, s := range seq.Slots {
		if s.Block == b && s.Phase == model.PhaseSituational {
			out = append(out, model.Response{Phase: s.Phase, ItemID: s.ItemID, Block: b, Axis: a, AnsweredAt: fixedNow})
		}
	}
	return out
}

func always(t model.Trait) func(int) model.Trait {
	return func(int) model.Trait { return t }
}
