package session

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/mcoot/chesschain-go/internal/dependencies/clock"
	"github.com/mcoot/chesschain-go/internal/dependencies/random"
	"github.com/mcoot/chesschain-go/internal/model"
)

// Store owns the set of live sessions. Each session has its own mutex so that
// operations on one session are serialized while different sessions proceed
// in parallel.
type Store struct {
	mu            sync.RWMutex
	entries       map[model.SessionID]*entry
	byParticipant map[model.ParticipantID]map[model.SessionID]struct{}

	clock  clock.Clock
	random random.Random
	logger *slog.Logger
}

type entry struct {
	mu      sync.Mutex
	session *model.Session
}

// NewStore creates an empty Store
func NewStore(clk clock.Clock, rnd random.Random, logger *slog.Logger) *Store {
	return &Store{
		entries:       make(map[model.SessionID]*entry),
		byParticipant: make(map[model.ParticipantID]map[model.SessionID]struct{}),
		clock:         clk,
		random:        rnd,
		logger:        logger.With(slog.String("component", "session_store")),
	}
}

// Create registers a new active session with white moving first
func (s *Store) Create(white, black model.SessionSlot) (*model.Session, error) {
	now := s.clock.Now()
	sess := &model.Session{
		ID:        model.SessionID(s.random.NewID()),
		Status:    model.SessionStatusPending,
		White:     white,
		Black:     black,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := sess.CheckInvariants(); err != nil {
		return nil, err
	}
	sess.Status = model.SessionStatusActive

	s.mu.Lock()
	if _, exists := s.entries[sess.ID]; exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: duplicate session id %s", model.ErrInvariantViolation, sess.ID)
	}
	s.entries[sess.ID] = &entry{session: sess}
	s.index(white.Participant, sess.ID)
	s.index(black.Participant, sess.ID)
	total := len(s.entries)
	s.mu.Unlock()

	s.logger.Info("session created",
		slog.String("session_id", string(sess.ID)),
		slog.String("white", string(white.Participant)),
		slog.String("black", string(black.Participant)),
		slog.Int("total_sessions", total))

	return sess.Clone(), nil
}

// Get returns a snapshot of the session
func (s *Store) Get(id model.SessionID) (*model.Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

// Update runs fn with exclusive access to the session. fn must not block on
// I/O. If the session's invariants do not hold, it is marked abandoned and
// ErrInvariantViolation is returned without calling fn.
func (s *Store) Update(id model.SessionID, fn func(sess *model.Session) error) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := s.guard(e.session); err != nil {
		return err
	}
	if err := fn(e.session); err != nil {
		return err
	}
	return s.guard(e.session)
}

// ForEachInvolving calls fn with exclusive access to every session the participant sits in
func (s *Store) ForEachInvolving(participant model.ParticipantID, fn func(sess *model.Session)) {
	s.mu.RLock()
	var targets []*entry
	for id := range s.byParticipant[participant] {
		if e, ok := s.entries[id]; ok {
			targets = append(targets, e)
		}
	}
	s.mu.RUnlock()

	for _, e := range targets {
		e.mu.Lock()
		fn(e.session)
		e.mu.Unlock()
	}
}

// SetConnected flags the participant's seat in every session they sit in.
// Status is never changed. Returns snapshots of the active sessions whose
// flag actually changed, so callers can notify opponents.
func (s *Store) SetConnected(participant model.ParticipantID, connected bool) []*model.Session {
	now := s.clock.Now()
	var changed []*model.Session
	s.ForEachInvolving(participant, func(sess *model.Session) {
		side, ok := sess.SideOf(participant)
		if !ok {
			return
		}
		slot := sess.Slot(side)
		if slot.Connected == connected {
			return
		}
		slot.Connected = connected
		if connected {
			slot.DisconnectedAt = nil
		} else {
			at := now
			slot.DisconnectedAt = &at
		}
		if sess.IsActive() {
			changed = append(changed, sess.Clone())
		}
	})
	return changed
}

// Evict removes a session from the store
func (s *Store) Evict(id model.SessionID) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.entries, id)
	// seat identities never change after Create
	s.unindex(e.session.White.Participant, id)
	s.unindex(e.session.Black.Participant, id)
	total := len(s.entries)
	s.mu.Unlock()

	s.logger.Info("session evicted",
		slog.String("session_id", string(id)),
		slog.Int("total_sessions", total))
	return true
}

// Count returns the number of live sessions
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) lookup(id model.SessionID) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return e, nil
}

// guard abandons a session whose invariants are broken. Caller holds e.mu.
func (s *Store) guard(sess *model.Session) error {
	err := sess.CheckInvariants()
	if err == nil {
		return nil
	}
	if sess.Status != model.SessionStatusAbandoned {
		sess.Status = model.SessionStatusAbandoned
		sess.DrawOfferBy = ""
		sess.UpdatedAt = s.clock.Now()
		s.logger.Error("session abandoned",
			slog.String("session_id", string(sess.ID)),
			slog.String("error", err.Error()))
	}
	return err
}

// Caller holds s.mu for writing.
func (s *Store) index(participant model.ParticipantID, id model.SessionID) {
	set, ok := s.byParticipant[participant]
	if !ok {
		set = make(map[model.SessionID]struct{})
		s.byParticipant[participant] = set
	}
	set[id] = struct{}{}
}

// Caller holds s.mu for writing.
func (s *Store) unindex(participant model.ParticipantID, id model.SessionID) {
	set, ok := s.byParticipant[participant]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(s.byParticipant, participant)
	}
}
