package matchmaking

import (
	"sync"

	"github.com/mcoot/chesschain-go/internal/dependencies/clock"
	"github.com/mcoot/chesschain-go/internal/model"
)

// Queue is a FIFO waiting list with at most one entry per participant
type Queue struct {
	mu      sync.Mutex
	entries []model.QueueEntry
	queued  map[model.ParticipantID]struct{}
	clock   clock.Clock
}

// NewQueue creates an empty Queue
func NewQueue(clk clock.Clock) *Queue {
	return &Queue{
		queued: make(map[model.ParticipantID]struct{}),
		clock:  clk,
	}
}

// Enqueue appends id. Returns false, changing nothing, if id is already queued.
func (q *Queue) Enqueue(id model.ParticipantID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queued[id]; ok {
		return false
	}
	q.queued[id] = struct{}{}
	q.entries = append(q.entries, model.QueueEntry{Participant: id, EnqueuedAt: q.clock.Now()})
	return true
}

// Remove drops id from wherever it sits in the queue
func (q *Queue) Remove(id model.ParticipantID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queued[id]; !ok {
		return false
	}
	delete(q.queued, id)
	for i, e := range q.entries {
		if e.Participant == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports whether id is waiting
func (q *Queue) Contains(id model.ParticipantID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.queued[id]
	return ok
}

// Len returns the number of waiting participants
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot returns the waiting participants oldest first
func (q *Queue) Snapshot() []model.ParticipantID {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]model.ParticipantID, len(q.entries))
	for i, e := range q.entries {
		ids[i] = e.Participant
	}
	return ids
}

// popPair removes the two oldest entries
func (q *Queue) popPair() (first, second model.QueueEntry, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) < 2 {
		return first, second, false
	}
	first, second = q.entries[0], q.entries[1]
	q.entries = q.entries[2:]
	delete(q.queued, first.Participant)
	delete(q.queued, second.Participant)
	return first, second, true
}

// pushFront returns entries to the head of the queue in the given order,
// keeping their original enqueue time. Entries re-queued in the meantime are skipped.
func (q *Queue) pushFront(entries ...model.QueueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var head []model.QueueEntry
	for _, e := range entries {
		if _, ok := q.queued[e.Participant]; ok {
			continue
		}
		q.queued[e.Participant] = struct{}{}
		head = append(head, e)
	}
	q.entries = append(head, q.entries...)
}
