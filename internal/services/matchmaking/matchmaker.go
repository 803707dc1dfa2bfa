package matchmaking

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/chesschain-go/internal/model"
)

// Presence reports whether a participant still has a live connection
type Presence interface {
	IsConnected(id model.ParticipantID) bool
}

// SessionStarter creates a session for a matched pair
type SessionStarter interface {
	StartSession(ctx context.Context, white, black model.ParticipantID) (*model.Session, error)
}

// Matchmaker periodically drains the queue into sessions
type Matchmaker struct {
	queue    *Queue
	presence Presence
	starter  SessionStarter
	interval time.Duration
	logger   *slog.Logger

	// sweeps never overlap
	sweepMu sync.Mutex
}

// NewMatchmaker creates a Matchmaker sweeping at the given interval
func NewMatchmaker(queue *Queue, presence Presence, starter SessionStarter, interval time.Duration, logger *slog.Logger) *Matchmaker {
	return &Matchmaker{
		queue:    queue,
		presence: presence,
		starter:  starter,
		interval: interval,
		logger:   logger.With(slog.String("component", "matchmaker")),
	}
}

// Run sweeps on every tick until ctx is cancelled
func (m *Matchmaker) Run(ctx context.Context) error {
	m.logger.Info("matchmaker started", slog.Duration("interval", m.interval))
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("matchmaker stopped")
			return nil
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep pairs the two oldest connected entries until fewer than two remain.
// If either of a popped pair has disconnected it is dropped. A survivor goes
// back to the front and the sweep ends so it keeps its place for the next
// sweep; when both were gone the sweep carries on with the entries behind them.
// The first dequeued participant plays white.
func (m *Matchmaker) Sweep(ctx context.Context) []*model.Session {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	var created []*model.Session
	for ctx.Err() == nil {
		first, second, ok := m.queue.popPair()
		if !ok {
			break
		}

		firstLive := m.presence.IsConnected(first.Participant)
		secondLive := m.presence.IsConnected(second.Participant)
		if !firstLive || !secondLive {
			var survivors []model.QueueEntry
			for _, e := range []struct {
				entry model.QueueEntry
				live  bool
			}{{first, firstLive}, {second, secondLive}} {
				if e.live {
					survivors = append(survivors, e.entry)
					continue
				}
				m.logger.Info("dropping disconnected participant from queue",
					slog.String("participant_id", string(e.entry.Participant)))
			}
			if len(survivors) == 0 {
				continue
			}
			m.queue.pushFront(survivors...)
			break
		}

		sess, err := m.starter.StartSession(ctx, first.Participant, second.Participant)
		if err != nil {
			m.logger.Error("failed to start session, requeueing pair",
				slog.String("white", string(first.Participant)),
				slog.String("black", string(second.Participant)),
				slog.String("error", err.Error()))
			m.queue.pushFront(first, second)
			break
		}
		m.logger.Info("match formed",
			slog.String("session_id", string(sess.ID)),
			slog.Duration("white_wait", sess.CreatedAt.Sub(first.EnqueuedAt)),
			slog.Duration("black_wait", sess.CreatedAt.Sub(second.EnqueuedAt)))
		created = append(created, sess)
	}
	return created
}
