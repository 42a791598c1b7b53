package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"assessd/internal/assessment"
	"assessd/internal/cache"
	"assessd/internal/catalog"
	"assessd/internal/model"
	"assessd/internal/repository"
)

type event struct {
	sessionID string
	msgType   string
	payload   interface{}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []event
}

func (b *recordingBroadcaster) BroadcastToWatchers(sessionID, msgType string, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event{sessionID, msgType, payload})
}

func (b *recordingBroadcaster) DisconnectSession(string) {}

func (b *recordingBroadcaster) count(msgType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.msgType == msgType {
			n++
		}
	}
	return n
}

func testDISC(n int) model.Catalog {
	c := model.Catalog{Instrument: model.InstrumentDISC}
	for i := 1; i <= n; i++ {
		c.Questions = append(c.Questions, model.QuestionItem{
			ID:      fmt.Sprintf("q%d", i),
			Ordinal: i,
			Prompt:  fmt.Sprintf("Question %d", i),
			Options: []model.TraitOption{
				{Text: "a", Trait: model.TraitD},
				{Text: "b", Trait: model.TraitI},
				{Text: "c", Trait: model.TraitS},
				{Text: "d", Trait: model.TraitC},
			},
			Active: true,
		})
	}
	return c
}

func testPI() model.Catalog {
	c := model.Catalog{Instrument: model.InstrumentPI}
	for i, a := range model.Axes {
		c.Descriptors = append(c.Descriptors, model.Descriptor{
			ID: fmt.Sprintf("d%d", i+1), Text: string(a), Axis: a, Position: i + 1, Active: true,
		})
	}
	for i := 1; i <= 2; i++ {
		item := model.SituationalItem{ID: fmt.Sprintf("s%d", i), Ordinal: i, Prompt: "Scenario", Active: true}
		for _, a := range model.Axes {
			item.Options = append(item.Options, model.AxisOption{Text: string(a), Axis: a})
		}
		c.Situational = append(c.Situational, item)
	}
	return c
}

type fixture struct {
	svc   *AssessmentService
	store *repository.SQLiteStore
	bc    *recordingBroadcaster
	mr    *miniredis.Miniredis
}

func newFixture(t *testing.T, wrap func(*repository.SQLiteStore) (repository.SessionRepo, repository.ResponseRepo)) *fixture {
	t.Helper()
	store, err := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	// wrap swaps a repo for a faulty one while reads still go to store
	var sessions repository.SessionRepo = store
	var responses repository.ResponseRepo = store
	if wrap != nil {
		sessions, responses = wrap(store)
	}

	svc := NewAssessmentService(
		sessions,
		responses,
		catalog.NewStaticProvider(testDISC(3), testPI()),
		cache.NewResultCache(rdb, time.Hour),
		assessment.NewEngine(),
		zaptest.NewLogger(t),
		nil,
	)
	bc := &recordingBroadcaster{}
	svc.SetBroadcaster(bc)
	return &fixture{svc: svc, store: store, bc: bc, mr: mr}
}

func answerAll(t *testing.T, svc *AssessmentService, subject string, v *SessionView, trait model.Trait) {
	t.Helper()
	for _, slot := range v.Sequence.Slots {
		_, err := svc.RecordResponse(context.Background(), subject, v.ID, model.Response{
			Phase: slot.Phase, ItemID: slot.ItemID, Block: slot.Block, Trait: trait,
		})
		require.NoError(t, err)
	}
}

func TestDISCSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	v, err := f.svc.Start(ctx, "cand-1", model.InstrumentDISC)
	require.NoError(t, err)
	require.Equal(t, model.SessionInProgress, v.Status)
	require.Len(t, v.Sequence.Slots, 6)
	require.Empty(t, v.Responses)

	answerAll(t, f.svc, "cand-1", v, model.TraitS)
	require.Equal(t, 6, f.bc.count(EventProgress))

	got, err := f.svc.Get(ctx, "cand-1", v.ID)
	require.NoError(t, err)
	require.True(t, got.Progress.Complete)
	require.Len(t, got.Responses, 6)

	res, err := f.svc.Finalize(ctx, "cand-1", v.ID)
	require.NoError(t, err)
	require.Equal(t, "cand-1", res.SubjectRef)
	require.Equal(t, model.TraitS, res.DISC.PrimaryTrait)
	require.Equal(t, 100, res.DISC.OverallScore)
	require.Equal(t, 1, f.bc.count(EventCompleted))
	require.True(t, f.mr.Exists("assessment:result:"+v.ID))

	again, err := f.svc.Finalize(ctx, "cand-1", v.ID)
	require.NoError(t, err)
	require.Equal(t, res.DISC, again.DISC)
	require.Equal(t, 1, f.bc.count(EventCompleted))

	stored, err := f.svc.Result(ctx, "", v.ID)
	require.NoError(t, err)
	require.Equal(t, model.TraitS, stored.DISC.PrimaryTrait)

	_, err = f.svc.RecordResponse(ctx, "cand-1", v.ID, model.Response{
		Phase: model.PhaseForcedChoice, ItemID: "q1", Block: model.BlockPass1, Trait: model.TraitD,
	})
	require.ErrorIs(t, err, assessment.ErrSessionClosed)
}

func TestSessionsAreHiddenFromOtherSubjects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	v, err := f.svc.Start(ctx, "cand-1", model.InstrumentDISC)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, "cand-2", v.ID)
	require.ErrorIs(t, err, assessment.ErrSessionNotFound)

	_, err = f.svc.RecordResponse(ctx, "cand-2", v.ID, model.Response{
		Phase: model.PhaseForcedChoice, ItemID: "q1", Block: model.BlockPass1, Trait: model.TraitD,
	})
	require.ErrorIs(t, err, assessment.ErrSessionNotFound)

	answerAll(t, f.svc, "cand-1", v, model.TraitD)
	_, err = f.svc.Finalize(ctx, "cand-1", v.ID)
	require.NoError(t, err)

	_, err = f.svc.Finalize(ctx, "cand-2", v.ID)
	require.ErrorIs(t, err, assessment.ErrSessionNotFound)
	_, err = f.svc.Result(ctx, "cand-2", v.ID)
	require.ErrorIs(t, err, assessment.ErrSessionNotFound)

	recruiter, err := f.svc.Get(ctx, "", v.ID)
	require.NoError(t, err)
	require.Equal(t, model.SessionCompleted, recruiter.Status)
}

func TestFinalizeIncompleteKeepsSessionOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	v, err := f.svc.Start(ctx, "cand-1", model.InstrumentDISC)
	require.NoError(t, err)

	_, err = f.svc.Finalize(ctx, "cand-1", v.ID)
	require.ErrorIs(t, err, assessment.ErrIncompleteAssessment)
	_, err = f.svc.Result(ctx, "cand-1", v.ID)
	require.ErrorIs(t, err, assessment.ErrIncompleteAssessment)

	answerAll(t, f.svc, "cand-1", v, model.TraitC)
	res, err := f.svc.Finalize(ctx, "cand-1", v.ID)
	require.NoError(t, err)
	require.Equal(t, model.TraitC, res.DISC.PrimaryTrait)
}

type countingSessions struct {
	repository.SessionRepo
	completes atomic.Int32
}

func (c *countingSessions) Complete(ctx context.Context, id string, r *model.ScoreResult) (*model.ScoreResult, error) {
	c.completes.Add(1)
	return c.SessionRepo.Complete(ctx, id, r)
}

func TestConcurrentFinalizeCompletesOnce(t *testing.T) {
	ctx := context.Background()
	counting := &countingSessions{}
	f := newFixture(t, func(s *repository.SQLiteStore) (repository.SessionRepo, repository.ResponseRepo) {
		counting.SessionRepo = s
		return counting, s
	})

	v, err := f.svc.Start(ctx, "cand-1", model.InstrumentDISC)
	require.NoError(t, err)
	answerAll(t, f.svc, "cand-1", v, model.TraitI)

	const n = 8
	results := make([]*model.ScoreResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.Finalize(ctx, "cand-1", v.ID)
			if err == nil {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, int32(1), counting.completes.Load())
	for _, res := range results {
		require.NotNil(t, res)
		require.True(t, res.ComputedAt.Equal(results[0].ComputedAt))
		require.Equal(t, model.TraitI, res.DISC.PrimaryTrait)
	}
	require.Equal(t, 1, f.bc.count(EventCompleted))
}

// racingSessions completes the session with winner just before the
// service's own commit, as another process would.
type racingSessions struct {
	repository.SessionRepo
	winner *model.ScoreResult
}

func (r *racingSessions) Complete(ctx context.Context, id string, res *model.ScoreResult) (*model.ScoreResult, error) {
	w := *r.winner
	w.SessionID = id
	if _, err := r.SessionRepo.Complete(ctx, id, &w); err != nil {
		return nil, err
	}
	return r.SessionRepo.Complete(ctx, id, res)
}

func TestFinalizeLosingRaceReturnsStoredResult(t *testing.T) {
	ctx := context.Background()
	winner := &model.ScoreResult{
		SubjectRef: "cand-1",
		Instrument: model.InstrumentDISC,
		DISC:       &model.DISCResult{PrimaryTrait: model.TraitC, OverallScore: 42},
		ComputedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	f := newFixture(t, func(s *repository.SQLiteStore) (repository.SessionRepo, repository.ResponseRepo) {
		return &racingSessions{SessionRepo: s, winner: winner}, s
	})

	v, err := f.svc.Start(ctx, "cand-1", model.InstrumentDISC)
	require.NoError(t, err)
	answerAll(t, f.svc, "cand-1", v, model.TraitD)

	res, err := f.svc.Finalize(ctx, "cand-1", v.ID)
	require.NoError(t, err)
	require.Equal(t, model.TraitC, res.DISC.PrimaryTrait)
	require.Equal(t, 42, res.DISC.OverallScore)

	stored, err := f.store.GetByID(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, model.SessionCompleted, stored.Status)
	require.Equal(t, model.TraitC, stored.Result.DISC.PrimaryTrait)
}

type failingResponses struct {
	repository.ResponseRepo
}

func (failingResponses) Upsert(context.Context, string, model.Response) error {
	return errors.New("disk full")
}

func TestRecordPersistenceFailureLeavesSessionUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(s *repository.SQLiteStore) (repository.SessionRepo, repository.ResponseRepo) {
		return s, failingResponses{s}
	})

	v, err := f.svc.Start(ctx, "cand-1", model.InstrumentDISC)
	require.NoError(t, err)

	_, err = f.svc.RecordResponse(ctx, "cand-1", v.ID, model.Response{
		Phase: model.PhaseForcedChoice, ItemID: "q1", Block: model.BlockPass1, Trait: model.TraitD,
	})
	require.ErrorIs(t, err, assessment.ErrPersistenceFailed)
	require.Zero(t, f.bc.count(EventProgress))

	got, err := f.svc.Get(ctx, "cand-1", v.ID)
	require.NoError(t, err)
	require.Zero(t, got.Progress.Answered)
}

func TestRecordRejectsInvalidResponse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	v, err := f.svc.Start(ctx, "cand-1", model.InstrumentDISC)
	require.NoError(t, err)

	_, err = f.svc.RecordResponse(ctx, "cand-1", v.ID, model.Response{
		Phase: model.PhaseForcedChoice, ItemID: "q99", Block: model.BlockPass1, Trait: model.TraitD,
	})
	require.ErrorIs(t, err, assessment.ErrInvalidResponse)
}

func TestPIDescriptorSelection(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	v, err := f.svc.Start(ctx, "cand-1", model.InstrumentPI)
	require.NoError(t, err)
	require.Equal(t, []model.Block{model.BlockNatural, model.BlockAdapted}, v.Sequence.Blocks)

	rec, err := f.svc.RecordResponse(ctx, "cand-1", v.ID, model.Response{
		Phase: model.PhaseDescriptor, ItemID: "d1", Block: model.BlockNatural,
	})
	require.NoError(t, err)
	require.Equal(t, model.AxisDirection, rec.Response.Axis)
	require.Equal(t, 1, rec.Progress.Blocks[0].Descriptors)

	key := model.ResponseKey{Phase: model.PhaseDescriptor, ItemID: "d1", Block: model.BlockNatural}
	rm, err := f.svc.RemoveResponse(ctx, "cand-1", v.ID, key)
	require.NoError(t, err)
	require.True(t, rm.Removed)
	require.Zero(t, rm.Progress.Blocks[0].Descriptors)

	rm, err = f.svc.RemoveResponse(ctx, "cand-1", v.ID, key)
	require.NoError(t, err)
	require.False(t, rm.Removed)

	_, err = f.svc.RemoveResponse(ctx, "cand-1", v.ID, model.ResponseKey{
		Phase: model.PhaseSituational, ItemID: "s1", Block: model.BlockNatural,
	})
	require.ErrorIs(t, err, assessment.ErrInvalidResponse)
}

func TestPISessionScoresGap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	v, err := f.svc.Start(ctx, "cand-1", model.InstrumentPI)
	require.NoError(t, err)

	record := func(r model.Response) {
		_, err := f.svc.RecordResponse(ctx, "cand-1", v.ID, r)
		require.NoError(t, err)
	}
	record(model.Response{Phase: model.PhaseDescriptor, ItemID: "d1", Block: model.BlockNatural})
	record(model.Response{Phase: model.PhaseDescriptor, ItemID: "d1", Block: model.BlockAdapted})
	for _, slot := range v.Sequence.Slots {
		axis := model.AxisDirection
		if slot.Block == model.BlockAdapted {
			axis = model.AxisStructure
		}
		record(model.Response{Phase: slot.Phase, ItemID: slot.ItemID, Block: slot.Block, Axis: axis})
	}

	res, err := f.svc.Finalize(ctx, "cand-1", v.ID)
	require.NoError(t, err)
	require.NotNil(t, res.PI)

	dir, ok := res.PI.Axis(model.AxisDirection)
	require.True(t, ok)
	require.Equal(t, 100, dir.NaturalScore)
	require.Equal(t, 40, dir.AdaptedScore)
	require.Equal(t, -60, dir.Gap)
	require.Equal(t, model.GapHighEffort, res.PI.Severity)
}

func TestLatestBySubject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, err := f.svc.LatestBySubject(ctx, "cand-1", "")
	require.ErrorIs(t, err, assessment.ErrSessionNotFound)

	first, err := f.svc.Start(ctx, "cand-1", model.InstrumentDISC)
	require.NoError(t, err)
	second, err := f.svc.Start(ctx, "cand-1", model.InstrumentPI)
	require.NoError(t, err)

	latest, err := f.svc.LatestBySubject(ctx, "cand-1", "")
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)

	disc, err := f.svc.LatestBySubject(ctx, "cand-1", model.InstrumentDISC)
	require.NoError(t, err)
	require.Equal(t, first.ID, disc.ID)

	_, err = f.svc.LatestBySubject(ctx, "cand-1", "mbti")
	require.ErrorIs(t, err, ErrUnknownInstrument)
}

func TestStartRejectsUnknownInstrument(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Start(context.Background(), "cand-1", "mbti")
	require.ErrorIs(t, err, ErrUnknownInstrument)
}

func TestFinalizeRefusesInvalidCatalog(t *testing.T) {
	dup := testDISC(3)
	dup.Questions = append(dup.Questions, dup.Questions[0])

	cases := map[string]model.Catalog{
		"empty":     {Instrument: model.InstrumentDISC},
		"duplicate": dup,
	}
	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, nil)

			v, err := f.svc.Start(ctx, "cand-1", model.InstrumentDISC)
			require.NoError(t, err)
			answerAll(t, f.svc, "cand-1", v, model.TraitD)

			// the bank changes underneath the running session
			f.svc.catalogs = catalog.NewStaticProvider(bad, testPI())

			_, err = f.svc.Finalize(ctx, "cand-1", v.ID)
			require.ErrorIs(t, err, assessment.ErrInvalidCatalog)
			_, err = f.svc.RecordResponse(ctx, "cand-1", v.ID, model.Response{
				Phase: model.PhaseForcedChoice, ItemID: "q1", Block: model.BlockPass1, Trait: model.TraitS,
			})
			require.ErrorIs(t, err, assessment.ErrInvalidCatalog)
			_, err = f.svc.Start(ctx, "cand-1", model.InstrumentDISC)
			require.ErrorIs(t, err, assessment.ErrInvalidCatalog)

			stored, err := f.store.GetByID(ctx, v.ID)
			require.NoError(t, err)
			require.Equal(t, model.SessionInProgress, stored.Status)
			require.Zero(t, f.bc.count(EventCompleted))
		})
	}
}
