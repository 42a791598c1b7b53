package assessment

import (
	"errors"
	"sync"
	"time"

	"assessd/internal/model"
)

// State is the lifecycle variant of a session: InProgress or Completed.
// A Completed state always carries a result.
type State interface {
	Status() model.SessionStatus
	responses() *Ledger
}

// InProgress accepts responses
type InProgress struct {
	Ledger *Ledger
}

func (InProgress) Status() model.SessionStatus { return model.SessionInProgress }
func (s InProgress) responses() *Ledger        { return s.Ledger }

// Completed is terminal. Its ledger and result never change.
type Completed struct {
	Ledger *Ledger
	Result *model.ScoreResult
}

func (Completed) Status() model.SessionStatus { return model.SessionCompleted }
func (s Completed) responses() *Ledger        { return s.Ledger }

// PersistFunc stores a validated response before the session applies it
type PersistFunc func(model.Response) error

// RemoveFunc deletes a stored response before the session drops it
type RemoveFunc func(model.ResponseKey) error

// CommitFunc atomically marks the session completed in storage with result.
// It returns the result that is stored afterwards. When another finalize won
// the race it returns that winner's result together with ErrAlreadyCompleted.
type CommitFunc func(result *model.ScoreResult) (*model.ScoreResult, error)

// Engine creates and restores sessions sharing one sequencer and scorer
type Engine struct {
	Sequencer *Sequencer
	Scorer    *Scorer
	Now       func() time.Time
}

// NewEngine returns an engine with a random sequencer and default weights
func NewEngine() *Engine {
	return &Engine{
		Sequencer: NewSequencer(nil),
		Scorer:    NewScorer(DefaultWeights),
		Now:       time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

// Start builds the sequence for c and returns a new in-progress session
func (e *Engine) Start(id, subjectRef string, c *model.Catalog) (*Session, error) {
	seq, err := e.Sequencer.Build(c)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:         id,
		Instrument: c.Instrument,
		SubjectRef: subjectRef,
		Sequence:   seq,
		CreatedAt:  e.now(),
		index:      indexCatalog(c),
		scorer:     e.Scorer,
		now:        e.now,
		state:      InProgress{Ledger: NewLedger()},
	}, nil
}

// Restore rebuilds a session from its stored form and responses. The stored
// sequence is reused as is; c is only needed to validate new responses and
// may be nil for completed sessions. A non-nil c must pass ValidateCatalog.
func (e *Engine) Restore(ms *model.Session, responses []model.Response, c *model.Catalog) (*Session, error) {
	if ms == nil {
		return nil, ErrSessionNotFound
	}
	if c != nil {
		if err := ValidateCatalog(c); err != nil {
			return nil, err
		}
	}
	s := &Session{
		ID:          ms.ID,
		Instrument:  ms.Instrument,
		SubjectRef:  ms.SubjectRef,
		Sequence:    ms.Sequence,
		CreatedAt:   ms.CreatedAt,
		CompletedAt: ms.CompletedAt,
		index:       indexCatalog(c),
		scorer:      e.Scorer,
		now:         e.now,
	}
	ledger := NewLedger(responses...)
	switch ms.Status {
	case model.SessionCompleted:
		if ms.Result == nil {
			return nil, Persistence("restore session", errors.New("completed session has no result"))
		}
		s.state = Completed{Ledger: ledger, Result: ms.Result}
	default:
		s.state = InProgress{Ledger: ledger}
	}
	return s, nil
}

// Session is one candidate's run through an instrument. It is safe for
// concurrent use, but the storage callbacks run while it is locked.
type Session struct {
	ID          string
	Instrument  model.InstrumentType
	SubjectRef  string
	Sequence    model.Sequence
	CreatedAt   time.Time
	CompletedAt *time.Time

	mu     sync.Mutex
	index  catalogIndex
	scorer *Scorer
	now    func() time.Time
	state  State
}

// State returns the current lifecycle variant
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Status() model.SessionStatus {
	return s.State().Status()
}

// Responses returns the recorded responses in stable order
func (s *Session) Responses() []model.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.responses().Responses()
}

// Model returns the storable form of the session
func (s *Session) Model() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := &model.Session{
		ID:          s.ID,
		Instrument:  s.Instrument,
		SubjectRef:  s.SubjectRef,
		Status:      s.state.Status(),
		Sequence:    s.Sequence,
		CreatedAt:   s.CreatedAt,
		CompletedAt: s.CompletedAt,
	}
	if c, ok := s.state.(Completed); ok {
		ms.Result = c.Result.Clone()
	}
	return ms
}

// Record validates r against the sequence and catalog, hands it to persist
// and only then applies it to the ledger. A response under an existing key
// replaces the old one. If persist fails the ledger is unchanged.
func (s *Session) Record(r model.Response, persist PersistFunc) (model.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state.(InProgress)
	if !ok {
		return model.Response{}, ErrSessionClosed
	}
	r, err := s.normalize(r)
	if err != nil {
		return model.Response{}, err
	}
	if persist != nil {
		if err := persist(r); err != nil {
			return model.Response{}, Persistence("record response", err)
		}
	}
	st.Ledger.Record(r)
	return r, nil
}

// Remove deselects a descriptor. Other phases only allow replacing an
// answer, never clearing it. Removing an absent key is a no-op.
func (s *Session) Remove(k model.ResponseKey, persist RemoveFunc) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state.(InProgress)
	if !ok {
		return false, ErrSessionClosed
	}
	if k.Phase != model.PhaseDescriptor {
		return false, responseErr("only descriptor selections can be removed")
	}
	if _, ok := st.Ledger.Get(k); !ok {
		return false, nil
	}
	if persist != nil {
		if err := persist(k); err != nil {
			return false, Persistence("remove response", err)
		}
	}
	return st.Ledger.Remove(k), nil
}

// Finalize scores the session and commits the result. A completed session
// returns its stored result without recomputing. Scoring failures leave the
// session in progress, as do commit failures other than ErrAlreadyCompleted.
// The returned result is a copy; the session keeps its own.
func (s *Session) Finalize(commit CommitFunc) (*model.ScoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch st := s.state.(type) {
	case Completed:
		return st.Result.Clone(), nil
	case InProgress:
		result, err := s.scorer.Score(s.ID, s.Sequence, st.Ledger)
		if err != nil {
			return nil, err
		}
		result.SubjectRef = s.SubjectRef
		stored := result
		if commit != nil {
			got, err := commit(result)
			switch {
			case err == nil:
			case errors.Is(err, ErrAlreadyCompleted) && got != nil:
			default:
				return nil, Persistence("complete session", err)
			}
			if got != nil {
				stored = got
			}
		}
		completedAt := stored.ComputedAt
		s.CompletedAt = &completedAt
		s.state = Completed{Ledger: st.Ledger, Result: stored.Clone()}
		return stored, nil
	}
	return nil, ErrSessionClosed
}

// Result returns a copy of the stored result, or ErrIncompleteAssessment
// while the session is in progress.
func (s *Session) Result() (*model.ScoreResult, error) {
	if c, ok := s.State().(Completed); ok {
		return c.Result.Clone(), nil
	}
	return nil, ErrIncompleteAssessment
}

// Progress counts answered slots per block. In a PI block the descriptor
// step counts as one more required answer, satisfied by any selection.
func (s *Session) Progress() model.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger := s.state.responses()
	p := model.Progress{Blocks: make([]model.BlockProgress, 0, len(s.Sequence.Blocks))}
	for _, b := range s.Sequence.Blocks {
		bp := model.BlockProgress{Block: b}
		for _, slot := range s.Sequence.Slots {
			if slot.Block != b {
				continue
			}
			bp.Required++
			if _, ok := ledger.Get(slot.Key()); ok {
				bp.Answered++
			}
		}
		if s.Instrument == model.InstrumentPI {
			bp.Descriptors = ledger.Count(model.PhaseDescriptor, b)
			bp.Required++
			if bp.Descriptors > 0 {
				bp.Answered++
			}
		}
		p.Answered += bp.Answered
		p.Required += bp.Required
		p.Blocks = append(p.Blocks, bp)
	}
	if p.Required > 0 {
		p.Percent = p.Answered * 100 / p.Required
	}
	p.Complete = p.Required > 0 && p.Answered == p.Required
	return p
}

func (s *Session) normalize(r model.Response) (model.Response, error) {
	if r.ItemID == "" {
		return r, responseErr("missing item id")
	}
	if r.AnsweredAt.IsZero() {
		r.AnsweredAt = s.now()
	}
	switch r.Phase {
	case model.PhaseForcedChoice:
		if s.Instrument != model.InstrumentDISC || !s.inSequence(r.Key()) {
			return r, responseErr("item %q is not in block %q", r.ItemID, r.Block)
		}
		q, ok := s.index.questions[r.ItemID]
		if !ok || !q.Offers(r.Trait) {
			return r, responseErr("item %q does not offer trait %q", r.ItemID, r.Trait)
		}
		r.Axis = ""
	case model.PhaseSituational:
		if s.Instrument != model.InstrumentPI || !s.inSequence(r.Key()) {
			return r, responseErr("item %q is not in block %q", r.ItemID, r.Block)
		}
		q, ok := s.index.situational[r.ItemID]
		if !ok || !q.Offers(r.Axis) {
			return r, responseErr("item %q does not offer axis %q", r.ItemID, r.Axis)
		}
		r.Trait = ""
	case model.PhaseDescriptor:
		if s.Instrument != model.InstrumentPI || !s.hasBlock(r.Block) || !s.hasDescriptor(r.ItemID) {
			return r, responseErr("descriptor %q is not open in block %q", r.ItemID, r.Block)
		}
		d, ok := s.index.descriptors[r.ItemID]
		if !ok {
			return r, responseErr("unknown descriptor %q", r.ItemID)
		}
		if r.Axis != "" && r.Axis != d.Axis {
			return r, responseErr("descriptor %q codes axis %q, not %q", r.ItemID, d.Axis, r.Axis)
		}
		r.Axis = d.Axis
		r.Trait = ""
	default:
		return r, responseErr("unknown phase %q", r.Phase)
	}
	return r, nil
}

func (s *Session) inSequence(k model.ResponseKey) bool {
	for _, slot := range s.Sequence.Slots {
		if slot.Key() == k {
			return true
		}
	}
	return false
}

func (s *Session) hasBlock(b model.Block) bool {
	for _, sb := range s.Sequence.Blocks {
		if sb == b {
			return true
		}
	}
	return false
}

func (s *Session) hasDescriptor(id string) bool {
	for _, d := range s.Sequence.Descriptors {
		if d == id {
			return true
		}
	}
	return false
}

type catalogIndex struct {
	questions   map[string]model.QuestionItem
	descriptors map[string]model.Descriptor
	situational map[string]model.SituationalItem
}

func indexCatalog(c *model.Catalog) catalogIndex {
	idx := catalogIndex{
		questions:   map[string]model.QuestionItem{},
		descriptors: map[string]model.Descriptor{},
		situational: map[string]model.SituationalItem{},
	}
	if c == nil {
		return idx
	}
	for _, q := range c.Questions {
		idx.questions[q.ID] = q
	}
	for _, d := range c.Descriptors {
		idx.descriptors[d.ID] = d
	}
	for _, q := range c.Situational {
		idx.situational[q.ID] = q
	}
	return idx
}
