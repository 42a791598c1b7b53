package assessment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"assessd/internal/model"
)

func TestLedgerRecordReplacesSameKey(t *testing.T) {
	l := NewLedger()
	l.Record(model.Response{Phase: model.PhaseForcedChoice, ItemID: "q01", Block: model.BlockPass1, Trait: model.TraitD})
	l.Record(model.Response{Phase: model.PhaseForcedChoice, ItemID: "q01", Block: model.BlockPass1, Trait: model.TraitC})
	l.Record(model.Response{Phase: model.PhaseForcedChoice, ItemID: "q01", Block: model.BlockPass2, Trait: model.TraitS})

	require.Equal(t, 2, l.Len())
	r, ok := l.Get(model.ResponseKey{Phase: model.PhaseForcedChoice, ItemID: "q01", Block: model.BlockPass1})
	require.True(t, ok)
	require.Equal(t, model.TraitC, r.Trait)
	require.Equal(t, 1, l.Count(model.PhaseForcedChoice, model.BlockPass2))
}

func TestLedgerRemoveAndClone(t *testing.T) {
	k := model.ResponseKey{Phase: model.PhaseDescriptor, ItemID: "d1", Block: model.BlockNatural}
	l := NewLedger(descriptor("d1", model.AxisDirection, model.BlockNatural))
	c := l.Clone()

	require.True(t, l.Remove(k))
	require.False(t, l.Remove(k))
	require.Equal(t, 0, l.Len())
	require.Equal(t, 1, c.Len())
}

func TestLedgerIsComplete(t *testing.T) {
	seq, err := NewSequencer(noopShuffler{}).Build(discCatalog(3))
	require.NoError(t, err)

	l := NewLedger()
	for _, r := range answerDISC(seq, always(model.TraitI))[:3] {
		l.Record(r)
	}
	require.True(t, l.IsComplete(seq, model.BlockPass1))
	require.False(t, l.IsComplete(seq, model.BlockPass2))
	require.False(t, l.IsComplete(seq, ""))

	for _, r := range answerDISC(seq, always(model.TraitI)) {
		l.Record(r)
	}
	require.True(t, l.IsComplete(seq, ""))
	require.Equal(t, 6, l.Len())
}

func TestLedgerResponsesAreOrdered(t *testing.T) {
	l := NewLedger(
		descriptor("d3", model.AxisSocialEnergy, model.BlockNatural),
		descriptor("d1", model.AxisDirection, model.BlockAdapted),
		descriptor("d1", model.AxisDirection, model.BlockNatural),
	)
	rs := l.Responses()
	require.Len(t, rs, 3)
	require.Equal(t, model.BlockAdapted, rs[0].Block)
	require.Equal(t, "d1", rs[1].ItemID)
	require.Equal(t, "d3", rs[2].ItemID)
}
