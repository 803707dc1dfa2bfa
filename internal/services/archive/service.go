package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcoot/chesschain-go/internal/dependencies/clock"
	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/services/integrity"
	"github.com/mcoot/chesschain-go/internal/services/session"
	"github.com/mcoot/chesschain-go/internal/storage"
)

// Config controls the archive hand-off
type Config struct {
	// Retention is how long a successfully archived session stays queryable in memory
	Retention time.Duration
	// Timeout bounds one hand-off
	Timeout time.Duration
	// QueueSize is the number of completed sessions that can wait for the worker
	QueueSize int
	// EnqueueWait bounds how long Submit blocks on a full queue before dropping
	EnqueueWait time.Duration
}

// DefaultConfig returns sensible defaults for the archive hand-off
func DefaultConfig() Config {
	return Config{
		Retention:   5 * time.Minute,
		Timeout:     10 * time.Second,
		QueueSize:   256,
		EnqueueWait: time.Second,
	}
}

// Service writes completed sessions to storage off the request path
type Service struct {
	storage storage.Storage
	store   *session.Store
	clock   clock.Clock
	cfg     Config
	logger  *slog.Logger

	pending chan *model.Session
}

// New creates an archive Service
func New(storage storage.Storage, store *session.Store, clock clock.Clock, cfg Config, logger *slog.Logger) *Service {
	def := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.EnqueueWait <= 0 {
		cfg.EnqueueWait = def.EnqueueWait
	}
	return &Service{
		storage: storage,
		store:   store,
		clock:   clock,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "archive")),
		pending: make(chan *model.Session, cfg.QueueSize),
	}
}

// Submit queues a completed session snapshot for archiving. On a full queue
// it waits up to EnqueueWait and then drops the hand-off; the completed
// session stays in memory and is not evicted.
func (s *Service) Submit(sess *model.Session) {
	select {
	case s.pending <- sess:
		return
	default:
	}

	timer := time.NewTimer(s.cfg.EnqueueWait)
	defer timer.Stop()
	select {
	case s.pending <- sess:
	case <-timer.C:
		s.logger.Error("archive queue full, dropping hand-off",
			slog.String("session_id", string(sess.ID)),
			slog.Int("queue_size", cap(s.pending)))
	}
}

// Run archives submitted sessions until ctx is cancelled, then drains what is queued
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("archive worker started")
	for {
		select {
		case sess := <-s.pending:
			s.handle(ctx, sess)
		case <-ctx.Done():
			s.drain()
			s.logger.Info("archive worker stopped")
			return nil
		}
	}
}

func (s *Service) drain() {
	for {
		select {
		case sess := <-s.pending:
			s.handle(context.Background(), sess)
		default:
			return
		}
	}
}

func (s *Service) handle(ctx context.Context, sess *model.Session) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Timeout)
	defer cancel()

	if _, err := s.Archive(ctx, sess); err != nil {
		// the in-memory result stands and the session is not evicted
		s.logger.Error("failed to archive session",
			slog.String("session_id", string(sess.ID)),
			slog.String("error", err.Error()))
		return
	}

	s.clock.AfterFunc(s.cfg.Retention, func() {
		s.store.Evict(sess.ID)
	})
}

// Archive persists a completed session, its move log and digest, and updates
// both participants' records
func (s *Service) Archive(ctx context.Context, sess *model.Session) (*model.ArchivedSession, error) {
	ids := []model.ParticipantID{sess.White.Participant, sess.Black.Participant}
	if err := s.storage.EnsureParticipantsExist(ctx, ids); err != nil {
		return nil, fmt.Errorf("ensure participants: %w", err)
	}
	if err := s.storage.SaveMoves(ctx, sess.ID, sess.Moves); err != nil {
		return nil, fmt.Errorf("save moves: %w", err)
	}

	archived := &model.ArchivedSession{
		Session:    *sess.Clone(),
		Digest:     integrity.DigestHex(sess.Moves),
		ArchivedAt: s.clock.Now(),
	}
	if err := s.storage.SaveCompletedSession(ctx, archived); err != nil {
		return nil, fmt.Errorf("save completed session: %w", err)
	}

	if sess.Result != nil {
		if err := s.updateRecords(ctx, sess); err != nil {
			return nil, fmt.Errorf("update records: %w", err)
		}
	}

	s.logger.Info("session archived",
		slog.String("session_id", string(sess.ID)),
		slog.Int("moves", len(sess.Moves)),
		slog.String("digest", archived.Digest))
	return archived, nil
}

func (s *Service) updateRecords(ctx context.Context, sess *model.Session) error {
	white, black := sess.White.Participant, sess.Black.Participant
	meta, err := s.storage.FetchParticipantMetadata(ctx, []model.ParticipantID{white, black})
	if err != nil {
		return err
	}
	w, ok := meta[white]
	if !ok {
		w = model.PlaceholderMetadata(white)
	}
	b, ok := meta[black]
	if !ok {
		b = model.PlaceholderMetadata(black)
	}

	w, b = applyResult(w, b, sess.Result)
	if err := s.storage.SaveParticipantMetadata(ctx, white, w); err != nil {
		return err
	}
	return s.storage.SaveParticipantMetadata(ctx, black, b)
}
