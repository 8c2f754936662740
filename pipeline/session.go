package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status of one upload session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Terminal reports whether no further snapshots will follow.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// Snapshot is the client-visible progress of one upload session.
type Snapshot struct {
	Status Status `json:"status"`
	Saved  int    `json:"saved"`
	Total  int    `json:"total"`
	Error  string `json:"error"`
}

const subscriberBuffer = 16

type session struct {
	snap      Snapshot
	subs      map[int]chan Snapshot
	nextSub   int
	updatedAt time.Time
}

// Registry is the process-wide, session-keyed progress tracker. The
// orchestrator publishes snapshots; zero or more stream handlers
// subscribe. Publishing never blocks on a slow subscriber: a full
// subscriber channel is drained so it always holds the latest snapshots.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*session)}
}

// Create registers a new pending session and returns its id.
func (r *Registry) Create() string {
	id := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = &session{
		snap:      Snapshot{Status: StatusPending},
		subs:      make(map[int]chan Snapshot),
		updatedAt: time.Now(),
	}
	return id
}

// Get returns the current snapshot for a session.
func (r *Registry) Get(id string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	if !ok {
		return Snapshot{}, false
	}
	return sess.snap, true
}

// Update mutates the session snapshot and publishes it to all
// subscribers. A terminal snapshot closes the subscriber channels after
// the final delivery.
func (r *Registry) Update(id string, mutate func(*Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return
	}

	mutate(&sess.snap)
	sess.updatedAt = time.Now()

	for _, ch := range sess.subs {
		publish(ch, sess.snap)
	}
	if sess.snap.Status.Terminal() {
		for key, ch := range sess.subs {
			close(ch)
			delete(sess.subs, key)
		}
	}
}

// publish delivers without blocking: if the buffer is full the oldest
// snapshot is dropped so the subscriber converges on the latest state.
func publish(ch chan Snapshot, snap Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// Subscribe attaches a progress listener. The current snapshot is
// replayed immediately so late subscribers see state without waiting for
// the next batch. The returned cancel func deregisters the subscriber;
// it is safe to call after the channel was closed by a terminal update.
func (r *Registry) Subscribe(id string) (<-chan Snapshot, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if !ok {
		return nil, nil, ErrSessionNotFound
	}

	ch := make(chan Snapshot, subscriberBuffer)
	ch <- sess.snap
	if sess.snap.Status.Terminal() {
		close(ch)
		return ch, func() {}, nil
	}

	key := sess.nextSub
	sess.nextSub++
	sess.subs[key] = ch

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if sess, ok := r.sessions[id]; ok {
			if ch, ok := sess.subs[key]; ok {
				delete(sess.subs, key)
				close(ch)
			}
		}
	}
	return ch, cancel, nil
}

// Sweep drops terminal sessions idle beyond the grace period and returns
// how many were removed. In-flight sessions are never touched.
func (r *Registry) Sweep(grace time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-grace)
	for id, sess := range r.sessions {
		if sess.snap.Status.Terminal() && sess.updatedAt.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
