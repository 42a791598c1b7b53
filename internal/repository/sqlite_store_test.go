package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"assessd/internal/assessment"
	"assessd/internal/model"
)

var t0 = time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "assessd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testSession(id, subject string, created time.Time) *model.Session {
	return &model.Session{
		ID:         id,
		Instrument: model.InstrumentDISC,
		SubjectRef: subject,
		Status:     model.SessionInProgress,
		Sequence: model.Sequence{
			Instrument: model.InstrumentDISC,
			Slots: []model.Slot{
				{Phase: model.PhaseForcedChoice, ItemID: "q01", Block: model.BlockPass1},
				{Phase: model.PhaseForcedChoice, ItemID: "q01", Block: model.BlockPass2},
			},
			Blocks: []model.Block{model.BlockPass1, model.BlockPass2},
		},
		CreatedAt: created,
	}
}

func testResult(id string) *model.ScoreResult {
	return &model.ScoreResult{
		SessionID:  id,
		Instrument: model.InstrumentDISC,
		DISC: &model.DISCResult{
			Counts:         model.TraitScores{D: 2},
			Percentages:    model.TraitScores{D: 100},
			TotalAnswered:  2,
			PrimaryTrait:   model.TraitD,
			SecondaryTrait: model.TraitI,
			OverallScore:   100,
			Profile:        assessment.ProfileFor(model.TraitD),
		},
		ComputedAt: t0.Add(time.Hour),
	}
}

func TestSQLiteStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	in := testSession("s1", "cand-1", t0)
	require.NoError(t, s.Create(ctx, in))

	got, err := s.GetByID(ctx, "s1")
	require.NoError(t, err)
	if diff := cmp.Diff(in, got); diff != "" {
		t.Fatalf("session mismatch (-want +got):\n%s", diff)
	}

	missing, err := s.GetByID(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestSQLiteStoreLatestBySubject(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Create(ctx, testSession("old", "cand-1", t0)))
	require.NoError(t, s.Create(ctx, testSession("new", "cand-1", t0.Add(time.Minute))))
	other := testSession("pi", "cand-1", t0.Add(time.Hour))
	other.Instrument = model.InstrumentPI
	require.NoError(t, s.Create(ctx, other))

	got, err := s.LatestBySubject(ctx, "cand-1", model.InstrumentDISC)
	require.NoError(t, err)
	require.Equal(t, "new", got.ID)

	got, err = s.LatestBySubject(ctx, "cand-1", "")
	require.NoError(t, err)
	require.Equal(t, "pi", got.ID)

	got, err = s.LatestBySubject(ctx, "cand-2", "")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSQLiteStoreResponsesUpsertByKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Create(ctx, testSession("s1", "cand-1", t0)))

	r := model.Response{Phase: model.PhaseForcedChoice, ItemID: "q01", Block: model.BlockPass1, Trait: model.TraitD, AnsweredAt: t0}
	require.NoError(t, s.Upsert(ctx, "s1", r))
	r.Trait = model.TraitC
	require.NoError(t, s.Upsert(ctx, "s1", r))
	r2 := model.Response{Phase: model.PhaseForcedChoice, ItemID: "q01", Block: model.BlockPass2, Trait: model.TraitI, AnsweredAt: t0}
	require.NoError(t, s.Upsert(ctx, "s1", r2))

	got, err := s.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, []model.Response{r, r2}, got)

	require.NoError(t, s.Delete(ctx, "s1", r.Key()))
	got, err = s.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, []model.Response{r2}, got)

	// absent key on an open session
	require.NoError(t, s.Delete(ctx, "s1", r.Key()))

	err = s.Upsert(ctx, "ghost", r)
	require.ErrorIs(t, err, assessment.ErrSessionNotFound)
	err = s.Delete(ctx, "ghost", r.Key())
	require.ErrorIs(t, err, assessment.ErrSessionNotFound)
}

func TestSQLiteStoreCompleteOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Create(ctx, testSession("s1", "cand-1", t0)))

	first := testResult("s1")
	stored, err := s.Complete(ctx, "s1", first)
	require.NoError(t, err)
	require.Same(t, first, stored)

	second := testResult("s1")
	second.DISC.PrimaryTrait = model.TraitC
	stored, err = s.Complete(ctx, "s1", second)
	require.ErrorIs(t, err, assessment.ErrAlreadyCompleted)
	if diff := cmp.Diff(first, stored); diff != "" {
		t.Fatalf("loser did not get the stored result (-want +got):\n%s", diff)
	}

	ms, err := s.GetByID(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, model.SessionCompleted, ms.Status)
	require.Equal(t, first.ComputedAt, *ms.CompletedAt)

	err = s.Upsert(ctx, "s1", model.Response{Phase: model.PhaseForcedChoice, ItemID: "q01", Block: model.BlockPass1, Trait: model.TraitS, AnsweredAt: t0})
	require.ErrorIs(t, err, assessment.ErrSessionClosed)
	err = s.Delete(ctx, "s1", model.ResponseKey{Phase: model.PhaseForcedChoice, ItemID: "q01", Block: model.BlockPass1})
	require.ErrorIs(t, err, assessment.ErrSessionClosed)

	_, err = s.Complete(ctx, "ghost", first)
	require.ErrorIs(t, err, assessment.ErrSessionNotFound)
}
