package changefeed

import (
	"errors"
	"sync"
)

// Stream names. Inserts and read-watermark updates for one aggregate share a
// stream so a subscriber observes them in commit order relative to each other.
const (
	StreamNotifications = "notifications"
	StreamIncidents     = "incident_recipients"
	StreamMessages      = "messages"
	StreamAvailability  = "availability"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
)

// Event is one committed change on a stream. Key is the routing key the
// publisher chose (the user whose state the change affects, or the
// institution for institution-wide streams).
type Event struct {
	Stream  string
	Op      Op
	Seq     uint64
	Key     uint
	Payload interface{}
}

// Predicate filters events for one subscriber.
type Predicate func(Event) bool

// KeyIs matches events routed to a single key.
func KeyIs(key uint) Predicate {
	return func(ev Event) bool { return ev.Key == key }
}

// ErrSlowConsumer is reported by a subscription that was dropped because its
// buffer overflowed. The subscriber must resubscribe and refetch its state:
// missed events are not replayed.
var ErrSlowConsumer = errors.New("changefeed: subscriber too slow, dropped")

// Subscription is one independent, ordered sequence of events. Events
// published before Subscribe returned are never delivered, so a subscriber
// loads its snapshot after subscribing and applies deltas from there.
type Subscription struct {
	stream string
	pred   Predicate

	ch   chan Event
	done chan struct{}

	mu     sync.Mutex
	closed bool
	err    error
}

// C is the ordered event sequence. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Event { return s.ch }

// Stream returns the name of the stream this subscription listens on.
func (s *Subscription) Stream() string { return s.stream }

// Done is closed when the subscription is cancelled or dropped.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns ErrSlowConsumer if the transport dropped the subscription, nil
// after a plain Close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) close(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	s.mu.Unlock()
	close(s.done)
	close(s.ch)
}

type stream struct {
	mu   sync.Mutex
	seq  uint64
	subs map[*Subscription]struct{}
}

// Feed is the in-process change-feed transport: named streams, per-stream
// commit order, one buffered delivery channel per subscriber. Publishers are
// the repositories' callers (services), after the store write committed.
type Feed struct {
	mu      sync.RWMutex
	buffer  int
	streams map[string]*stream
}

func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = 256
	}
	return &Feed{
		buffer:  buffer,
		streams: make(map[string]*stream),
	}
}

func (f *Feed) stream(name string) *stream {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.streams[name]
	if !ok {
		st = &stream{subs: make(map[*Subscription]struct{})}
		f.streams[name] = st
	}
	return st
}

// Subscribe registers a new subscriber on the named stream. Delivery starts
// with the first event published after Subscribe returns; the caller fetches
// its initial snapshot afterwards and treats the subscription as connected
// from that point.
func (f *Feed) Subscribe(name string, pred Predicate) *Subscription {
	if pred == nil {
		pred = func(Event) bool { return true }
	}
	sub := &Subscription{
		stream: name,
		pred:   pred,
		ch:     make(chan Event, f.buffer),
		done:   make(chan struct{}),
	}
	st := f.stream(name)
	st.mu.Lock()
	st.subs[sub] = struct{}{}
	st.mu.Unlock()
	return sub
}

// Unsubscribe tears the subscription down. Safe to call more than once.
func (f *Feed) Unsubscribe(sub *Subscription) {
	st := f.stream(sub.stream)
	st.mu.Lock()
	delete(st.subs, sub)
	st.mu.Unlock()
	sub.close(nil)
}

// Publish assigns the next commit sequence on the stream and hands the event
// to every matching subscriber. Delivery never blocks the publisher: a
// subscriber whose buffer is full is dropped with ErrSlowConsumer and must
// resubscribe with a full refetch.
func (f *Feed) Publish(name string, op Op, key uint, payload interface{}) {
	st := f.stream(name)
	st.mu.Lock()
	st.seq++
	ev := Event{Stream: name, Op: op, Seq: st.seq, Key: key, Payload: payload}
	var dropped []*Subscription
	for sub := range st.subs {
		if !sub.pred(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			dropped = append(dropped, sub)
		}
	}
	for _, sub := range dropped {
		delete(st.subs, sub)
	}
	st.mu.Unlock()
	for _, sub := range dropped {
		sub.close(ErrSlowConsumer)
	}
}
