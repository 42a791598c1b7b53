package service

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"assessd/internal/assessment"
	"assessd/internal/cache"
	"assessd/internal/metrics"
	"assessd/internal/model"
	"assessd/internal/repository"
)

var ErrUnknownInstrument = errors.New("unknown instrument")

// SessionView is a session with its responses and progress, as presented
// to candidates and recruiters.
type SessionView struct {
	model.Session
	Progress  model.Progress   `json:"progress"`
	Responses []model.Response `json:"responses"`
}

// RecordResult is returned after a response is accepted or removed
type RecordResult struct {
	Response *model.Response `json:"response,omitempty"`
	Removed  bool            `json:"removed,omitempty"`
	Progress model.Progress  `json:"progress"`
}

const lockStripes = 64

// AssessmentService runs sessions on top of the stores. Mutations of one
// session are serialized within the process; finalize additionally relies
// on the store's conditional completion across processes.
type AssessmentService struct {
	sessions    repository.SessionRepo
	responses   repository.ResponseRepo
	catalogs    repository.CatalogRepo
	results     cache.ResultCache
	engine      *assessment.Engine
	metrics     *metrics.Collector
	log         *zap.Logger
	broadcaster Broadcaster

	finalizeGroup singleflight.Group
	locks         [lockStripes]sync.Mutex
	newID         func() string
}

// NewAssessmentService wires the service. A nil results cache, logger or
// metrics collector disables that concern.
func NewAssessmentService(
	sessions repository.SessionRepo,
	responses repository.ResponseRepo,
	catalogs repository.CatalogRepo,
	results cache.ResultCache,
	engine *assessment.Engine,
	logger *zap.Logger,
	m *metrics.Collector,
) *AssessmentService {
	if results == nil {
		results = cache.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = assessment.NewEngine()
	}
	return &AssessmentService{
		sessions:  sessions,
		responses: responses,
		catalogs:  catalogs,
		results:   results,
		engine:    engine,
		metrics:   m,
		log:       logger,
		newID:     uuid.NewString,
	}
}

// SetBroadcaster sets the broadcaster for real-time updates
func (s *AssessmentService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

func (s *AssessmentService) lock(sessionID string) func() {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Catalog returns the active item bank so clients can render prompts
func (s *AssessmentService) Catalog(ctx context.Context, instrument model.InstrumentType) (*model.Catalog, error) {
	if !instrument.Valid() {
		return nil, ErrUnknownInstrument
	}
	c, err := s.catalogs.Load(ctx, instrument)
	if errors.Is(err, assessment.ErrInvalidCatalog) {
		return nil, err
	}
	if err != nil {
		return nil, s.persistence("load catalog", err)
	}
	// stores drop inactive items, which can leave a bank empty
	if err := assessment.ValidateCatalog(c); err != nil {
		s.log.Error("catalog rejected", zap.String("instrument", string(instrument)), zap.Error(err))
		return nil, err
	}
	return c, nil
}

// Start creates a session for subjectRef with a freshly built sequence
func (s *AssessmentService) Start(ctx context.Context, subjectRef string, instrument model.InstrumentType) (*SessionView, error) {
	c, err := s.Catalog(ctx, instrument)
	if err != nil {
		return nil, err
	}
	sess, err := s.engine.Start(s.newID(), subjectRef, c)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, sess.Model()); err != nil {
		return nil, s.persistence("create session", err)
	}

	s.metrics.SessionStarted(string(instrument))
	s.log.Info("session started",
		zap.String("session_id", sess.ID),
		zap.String("instrument", string(instrument)),
		zap.String("subject", subjectRef),
		zap.Int("slots", len(sess.Sequence.Slots)),
	)
	return view(sess), nil
}

// Get returns a session owned by subjectRef. An empty subjectRef skips the
// ownership check and is reserved for recruiter access.
func (s *AssessmentService) Get(ctx context.Context, subjectRef, sessionID string) (*SessionView, error) {
	sess, err := s.load(ctx, subjectRef, sessionID)
	if err != nil {
		return nil, err
	}
	return view(sess), nil
}

// LatestBySubject returns the most recently created session of subjectRef.
// An empty instrument matches any.
func (s *AssessmentService) LatestBySubject(ctx context.Context, subjectRef string, instrument model.InstrumentType) (*SessionView, error) {
	if instrument != "" && !instrument.Valid() {
		return nil, ErrUnknownInstrument
	}
	ms, err := s.sessions.LatestBySubject(ctx, subjectRef, instrument)
	if err != nil {
		return nil, s.persistence("latest session", err)
	}
	if ms == nil {
		return nil, assessment.ErrSessionNotFound
	}
	sess, err := s.restore(ctx, ms)
	if err != nil {
		return nil, err
	}
	return view(sess), nil
}

// RecordResponse validates r, stores it and applies it to the session
func (s *AssessmentService) RecordResponse(ctx context.Context, subjectRef, sessionID string, r model.Response) (*RecordResult, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	sess, err := s.load(ctx, subjectRef, sessionID)
	if err != nil {
		return nil, err
	}
	stored, err := sess.Record(r, func(r model.Response) error {
		return s.responses.Upsert(ctx, sessionID, r)
	})
	if err != nil {
		return nil, s.observe(sessionID, "record response", err)
	}

	s.metrics.ResponseRecorded(string(stored.Phase))
	res := &RecordResult{Response: &stored, Progress: sess.Progress()}
	s.broadcastProgress(sess, res.Progress)
	return res, nil
}

// RemoveResponse deselects a descriptor
func (s *AssessmentService) RemoveResponse(ctx context.Context, subjectRef, sessionID string, key model.ResponseKey) (*RecordResult, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	sess, err := s.load(ctx, subjectRef, sessionID)
	if err != nil {
		return nil, err
	}
	removed, err := sess.Remove(key, func(k model.ResponseKey) error {
		return s.responses.Delete(ctx, sessionID, k)
	})
	if err != nil {
		return nil, s.observe(sessionID, "remove response", err)
	}

	res := &RecordResult{Removed: removed, Progress: sess.Progress()}
	if removed {
		s.broadcastProgress(sess, res.Progress)
	}
	return res, nil
}

// Finalize scores and completes a session. Calling it again, or losing a
// race against a concurrent finalize, returns the stored result.
func (s *AssessmentService) Finalize(ctx context.Context, subjectRef, sessionID string) (*model.ScoreResult, error) {
	if res, ok := s.cached(ctx, subjectRef, sessionID); ok {
		s.metrics.Finalized(string(res.Instrument), "cached")
		return res, nil
	}
	// the shared finalize below runs without a subject, so check ownership first
	if subjectRef != "" {
		if _, err := s.owned(ctx, subjectRef, sessionID); err != nil {
			return nil, err
		}
	}

	v, err, _ := s.finalizeGroup.Do(sessionID, func() (interface{}, error) {
		return s.finalize(context.WithoutCancel(ctx), sessionID)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*model.ScoreResult)
	if subjectRef != "" && res.SubjectRef != subjectRef {
		return nil, assessment.ErrSessionNotFound
	}
	return res, nil
}

func (s *AssessmentService) finalize(ctx context.Context, sessionID string) (*model.ScoreResult, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	sess, err := s.load(ctx, "", sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status() == model.SessionCompleted {
		res, _ := sess.Result()
		s.cacheResult(ctx, res)
		return res, nil
	}

	raced := false
	res, err := sess.Finalize(func(r *model.ScoreResult) (*model.ScoreResult, error) {
		stored, err := s.sessions.Complete(ctx, sessionID, r)
		if errors.Is(err, assessment.ErrAlreadyCompleted) {
			raced = true
		}
		return stored, err
	})
	if err != nil {
		outcome := "failed"
		if errors.Is(err, assessment.ErrIncompleteAssessment) {
			outcome = "incomplete"
		}
		s.metrics.Finalized(string(sess.Instrument), outcome)
		return nil, s.observe(sessionID, "complete session", err)
	}

	fields := []zap.Field{
		zap.String("session_id", sessionID),
		zap.String("instrument", string(sess.Instrument)),
		zap.String("subject", sess.SubjectRef),
	}
	if raced {
		s.metrics.FinalizeRace()
		s.log.Warn("finalize lost race, using stored result", fields...)
	} else {
		s.metrics.Finalized(string(sess.Instrument), "completed")
		if res.PI != nil {
			s.metrics.Severity(string(res.PI.Severity))
		}
		s.log.Info("session completed", fields...)
	}

	s.cacheResult(ctx, res)
	if s.broadcaster != nil {
		s.broadcaster.BroadcastToWatchers(sessionID, EventCompleted, CompletedEvent{SessionID: sessionID, Result: res})
		s.broadcaster.DisconnectSession(sessionID)
	}
	return res, nil
}

// Result returns the stored result of a completed session, or
// ErrIncompleteAssessment while it is still in progress.
func (s *AssessmentService) Result(ctx context.Context, subjectRef, sessionID string) (*model.ScoreResult, error) {
	if res, ok := s.cached(ctx, subjectRef, sessionID); ok {
		return res, nil
	}
	ms, err := s.owned(ctx, subjectRef, sessionID)
	if err != nil {
		return nil, err
	}
	if ms.Status != model.SessionCompleted || ms.Result == nil {
		return nil, assessment.ErrIncompleteAssessment
	}
	s.cacheResult(ctx, ms.Result)
	return ms.Result, nil
}

func (s *AssessmentService) cached(ctx context.Context, subjectRef, sessionID string) (*model.ScoreResult, bool) {
	res, err := s.results.Get(ctx, sessionID)
	if err != nil {
		s.log.Warn("result cache read failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, false
	}
	if res == nil || (subjectRef != "" && res.SubjectRef != subjectRef) {
		return nil, false
	}
	return res, true
}

func (s *AssessmentService) cacheResult(ctx context.Context, res *model.ScoreResult) {
	if res == nil {
		return
	}
	if err := s.results.Set(ctx, res); err != nil {
		s.log.Warn("result cache write failed", zap.String("session_id", res.SessionID), zap.Error(err))
	}
}

// owned loads the stored session and hides sessions of other subjects
func (s *AssessmentService) owned(ctx context.Context, subjectRef, sessionID string) (*model.Session, error) {
	ms, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, s.persistence("load session", err)
	}
	if ms == nil || (subjectRef != "" && ms.SubjectRef != subjectRef) {
		return nil, assessment.ErrSessionNotFound
	}
	return ms, nil
}

func (s *AssessmentService) load(ctx context.Context, subjectRef, sessionID string) (*assessment.Session, error) {
	ms, err := s.owned(ctx, subjectRef, sessionID)
	if err != nil {
		return nil, err
	}
	return s.restore(ctx, ms)
}

func (s *AssessmentService) restore(ctx context.Context, ms *model.Session) (*assessment.Session, error) {
	responses, err := s.responses.ListBySession(ctx, ms.ID)
	if err != nil {
		return nil, s.persistence("list responses", err)
	}
	var c *model.Catalog
	if ms.Status == model.SessionInProgress {
		if c, err = s.Catalog(ctx, ms.Instrument); err != nil {
			return nil, err
		}
	}
	return s.engine.Restore(ms, responses, c)
}

func (s *AssessmentService) broadcastProgress(sess *assessment.Session, p model.Progress) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastToWatchers(sess.ID, EventProgress, ProgressEvent{
		SessionID:  sess.ID,
		SubjectRef: sess.SubjectRef,
		Instrument: sess.Instrument,
		Progress:   p,
	})
}

// persistence wraps a store error and records it
func (s *AssessmentService) persistence(op string, err error) error {
	return s.observe("", op, assessment.Persistence(op, err))
}

// observe counts and logs persistence failures and passes err through
func (s *AssessmentService) observe(sessionID, op string, err error) error {
	if errors.Is(err, assessment.ErrPersistenceFailed) {
		s.metrics.PersistFailure(op)
		s.log.Error("persistence failed",
			zap.String("session_id", sessionID),
			zap.String("op", op),
			zap.Error(err),
		)
	}
	return err
}

func view(sess *assessment.Session) *SessionView {
	responses := sess.Responses()
	if responses == nil {
		responses = []model.Response{}
	}
	return &SessionView{
		Session:   *sess.Model(),
		Progress:  sess.Progress(),
		Responses: responses,
	}
}
