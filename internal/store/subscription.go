package store

import (
	"go.uber.org/zap"

	"github.com/sadopc/nutrilog/internal/record"
)

// Subscription is a handle on a user's live record set. Each delivery on
// Updates is the full current set ordered by recency, never a delta. An
// unconsumed snapshot is replaced when a newer one arrives, so a slow
// consumer only ever sees the latest state.
type Subscription struct {
	store  *Store
	userID string
	ch     chan []record.Record
	closed bool // guarded by store.mu
}

// Subscribe opens a snapshot stream for userID. The current record set is
// delivered immediately; every Append for the user delivers a fresh one.
// Callers must Close the subscription when the consuming view goes away.
func (s *Store) Subscribe(userID string) (*Subscription, error) {
	recs, err := s.ListRecords(userID)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{store: s, userID: userID, ch: make(chan []record.Record, 1)}
	s.mu.Lock()
	s.subs[userID] = append(s.subs[userID], sub)
	sub.push(recs)
	s.mu.Unlock()

	return sub, nil
}

// Updates delivers full snapshots. The channel is closed when the
// subscription is closed.
func (sub *Subscription) Updates() <-chan []record.Record {
	return sub.ch
}

// Close releases the subscription. Idempotent.
func (sub *Subscription) Close() {
	s := sub.store
	s.mu.Lock()
	if sub.closed {
		s.mu.Unlock()
		return
	}
	sub.closed = true
	list := s.subs[sub.userID]
	for i, other := range list {
		if other == sub {
			s.subs[sub.userID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	close(sub.ch)
	s.mu.Unlock()
}

// markClosed is called by Store.Close after the subscriber map has been
// detached.
func (sub *Subscription) markClosed() {
	sub.store.mu.Lock()
	defer sub.store.mu.Unlock()
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
}

// push replaces any unconsumed snapshot with the newer one. Caller must
// hold store.mu.
func (sub *Subscription) push(recs []record.Record) {
	if sub.closed {
		return
	}
	select {
	case <-sub.ch:
	default:
	}
	sub.ch <- recs
}

// notify re-reads the user's record set and fans it out to subscribers.
func (s *Store) notify(userID string) {
	s.mu.Lock()
	n := len(s.subs[userID])
	s.mu.Unlock()
	if n == 0 {
		return
	}

	recs, err := s.ListRecords(userID)
	if err != nil {
		// Subscribers keep their previous snapshot; the next Append
		// retries the read.
		s.logger.Error("snapshot refresh failed, update dropped",
			zap.String("user_id", userID), zap.Error(err))
		return
	}

	s.mu.Lock()
	for _, sub := range s.subs[userID] {
		sub.push(recs)
	}
	s.mu.Unlock()
}
