// Package stream multiplexes per-session events to any number of
// subscribers. Workers publish without blocking: each subscriber has a
// bounded buffer, and a subscriber that falls too far behind is
// detached with an explicit error rather than stalling the producer.
package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/aspendos/council/internal/models"
)

var (
	// ErrBacklogExceeded marks a subscriber detached because its
	// buffer overflowed.
	ErrBacklogExceeded = errors.New("subscriber backlog exceeded")

	// ErrUnknownSession is returned when subscribing to a session the
	// broker never opened.
	ErrUnknownSession = errors.New("unknown session stream")
)

// Broker owns one topic per session. Events carry a per-session
// monotonic sequence number assigned at publish time; a bounded replay
// window lets reconnecting subscribers resume from where they left off.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]*topic

	bufCap int
	replay int
}

// NewBroker builds a broker whose subscribers buffer up to bufCap
// events and whose topics retain the last replay events. bufCap must
// be at least replay so a fresh subscription can always absorb a full
// replay without overflowing.
func NewBroker(bufCap, replay int) *Broker {
	return &Broker{
		topics: make(map[string]*topic),
		bufCap: bufCap,
		replay: replay,
	}
}

type topic struct {
	mu      sync.Mutex
	nextSeq int64
	ring    []models.Event
	subs    map[*Subscriber]struct{}
	closed  bool
}

// Subscriber receives one session's events in publish order.
type Subscriber struct {
	ch   chan models.Event
	gap  bool
	once sync.Once

	mu  sync.Mutex
	err error
}

// Events yields events in order. The channel closes when the topic
// closes, the subscriber is canceled, or the subscriber is detached;
// check Err after the channel closes.
func (s *Subscriber) Events() <-chan models.Event { return s.ch }

// Err reports why the channel closed. Nil means a normal topic close
// or cancellation.
func (s *Subscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Gap reports that the requested resume point had already aged out of
// the replay window, so some events were skipped.
func (s *Subscriber) Gap() bool { return s.gap }

func (s *Subscriber) detach(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.ch)
	})
}

// Open creates the topic for a session. Publishing or subscribing
// before Open is an error.
func (b *Broker) Open(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.topics[sessionID]; !ok {
		b.topics[sessionID] = &topic{subs: make(map[*Subscriber]struct{})}
	}
}

// Publish stamps the event with the next sequence number and fans it
// out. A subscriber whose buffer is full is detached with
// ErrBacklogExceeded; Publish itself never blocks. Publishing to a
// closed or unknown topic is a no-op returning 0.
func (b *Broker) Publish(sessionID string, ev models.Event) int64 {
	b.mu.RLock()
	t := b.topics[sessionID]
	b.mu.RUnlock()
	if t == nil {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0
	}

	t.nextSeq++
	ev.Seq = t.nextSeq
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	t.ring = append(t.ring, ev)
	if len(t.ring) > b.replay {
		t.ring = t.ring[len(t.ring)-b.replay:]
	}

	for sub := range t.subs {
		select {
		case sub.ch <- ev:
		default:
			delete(t.subs, sub)
			sub.detach(ErrBacklogExceeded)
		}
	}
	return ev.Seq
}

// Subscribe attaches to a session's stream, replaying any retained
// events with sequence numbers greater than after (pass 0 for the full
// window). Subscribing to a closed topic replays the window and then
// closes the channel.
func (b *Broker) Subscribe(sessionID string, after int64) (*Subscriber, error) {
	b.mu.RLock()
	t := b.topics[sessionID]
	b.mu.RUnlock()
	if t == nil {
		return nil, ErrUnknownSession
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	sub := &Subscriber{ch: make(chan models.Event, b.bufCap)}

	// The resume point is lost when events between after and the start
	// of the retained window were already trimmed.
	oldest := t.nextSeq + 1
	if len(t.ring) > 0 {
		oldest = t.ring[0].Seq
	}
	sub.gap = after < oldest-1
	for _, ev := range t.ring {
		if ev.Seq > after {
			sub.ch <- ev
		}
	}

	if t.closed {
		close(sub.ch)
		return sub, nil
	}

	t.subs[sub] = struct{}{}
	return sub, nil
}

// Unsubscribe detaches a subscriber and closes its channel.
func (b *Broker) Unsubscribe(sessionID string, sub *Subscriber) {
	b.mu.RLock()
	t := b.topics[sessionID]
	b.mu.RUnlock()
	if t == nil {
		sub.detach(nil)
		return
	}

	t.mu.Lock()
	delete(t.subs, sub)
	t.mu.Unlock()
	sub.detach(nil)
}

// Close seals a topic after its terminal event: live subscribers get a
// normal channel close, the replay window stays available for late
// subscribers until Remove.
func (b *Broker) Close(sessionID string) {
	b.mu.RLock()
	t := b.topics[sessionID]
	b.mu.RUnlock()
	if t == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for sub := range t.subs {
		delete(t.subs, sub)
		sub.detach(nil)
	}
}

// Remove drops a topic entirely, releasing its replay window.
func (b *Broker) Remove(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.topics, sessionID)
}
