package service

import (
	"log"
	"sync"

	"convive/internal/changefeed"
)

// BadgeCounters is the live badge snapshot pushed to one client: unread
// notifications, unseen DEC cases, and per-conversation unread chat.
type BadgeCounters struct {
	Notifications int64          `json:"notifications"`
	Cases         int64          `json:"cases"`
	Chat          map[uint]int64 `json:"chat"`
}

func (b BadgeCounters) clone() BadgeCounters {
	chat := make(map[uint]int64, len(b.Chat))
	for k, v := range b.Chat {
		chat[k] = v
	}
	return BadgeCounters{Notifications: b.Notifications, Cases: b.Cases, Chat: chat}
}

// BadgeSink receives every new snapshot. It must not block.
type BadgeSink func(BadgeCounters)

// BadgeSession keeps one connected client's badges current. It is owned by
// the connection: initialized on connect, torn down on disconnect, never
// shared across sessions.
//
// Each counter is fetched authoritatively from the store right after its
// change-feed subscription opens, then kept current by applying events as
// clamped deltas. A local mark call zeroes the counter before the store
// confirms; the service's own confirmation event then decrements an
// already-zero counter, which the clamp turns into a no-op, so the optimistic
// zero is never overwritten by anything but genuinely new inserts. A dropped
// subscription resubscribes and refetches, because events missed while
// disconnected are not replayed.
type BadgeSession struct {
	userID        uint
	notifications *NotificationService
	incidents     *IncidentService
	chat          *ChatService
	feed          *changefeed.Feed
	sink          BadgeSink

	mu       sync.Mutex
	counters BadgeCounters

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewBadgeSession(userID uint, notifications *NotificationService, incidents *IncidentService, chat *ChatService, feed *changefeed.Feed, sink BadgeSink) *BadgeSession {
	return &BadgeSession{
		userID:        userID,
		notifications: notifications,
		incidents:     incidents,
		chat:          chat,
		feed:          feed,
		sink:          sink,
		counters:      BadgeCounters{Chat: make(map[uint]int64)},
		done:          make(chan struct{}),
	}
}

// Start opens the three stream loops. The sink receives a first snapshot per
// counter once its authoritative fetch lands.
func (s *BadgeSession) Start() {
	streams := []struct {
		name    string
		refetch func() error
	}{
		{changefeed.StreamNotifications, s.refetchNotifications},
		{changefeed.StreamIncidents, s.refetchCases},
		{changefeed.StreamMessages, s.refetchChat},
	}
	for _, st := range streams {
		s.wg.Add(1)
		go s.run(st.name, st.refetch)
	}
}

// Close tears down the subscriptions and waits for the loops to stop.
func (s *BadgeSession) Close() {
	s.closeOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}

// Snapshot returns the current counters.
func (s *BadgeSession) Snapshot() BadgeCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters.clone()
}

func (s *BadgeSession) run(stream string, refetch func() error) {
	defer s.wg.Done()
	for {
		sub := s.feed.Subscribe(stream, changefeed.KeyIs(s.userID))
		// Snapshot is loaded after subscribing, so no committed change can
		// fall between the snapshot and the first delivered event.
		if err := refetch(); err != nil {
			log.Printf("badge session user=%d stream=%s refetch: %v", s.userID, stream, err)
		}
		s.emit()
		if !s.consume(sub) {
			return
		}
	}
}

// consume drains the subscription. It returns true when the subscription was
// dropped by the transport (resubscribe with refetch) and false when the
// session itself closed.
func (s *BadgeSession) consume(sub *changefeed.Subscription) bool {
	for {
		select {
		case <-s.done:
			s.feed.Unsubscribe(sub)
			return false
		case ev, ok := <-sub.C():
			if !ok {
				if err := sub.Err(); err != nil {
					log.Printf("badge session user=%d stream=%s: %v", s.userID, sub.Stream(), err)
				}
				return true
			}
			s.apply(ev)
			s.emit()
		}
	}
}

func (s *BadgeSession) apply(ev changefeed.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch p := ev.Payload.(type) {
	case changefeed.NotificationInserted:
		s.counters.Notifications++
	case changefeed.NotificationsRead:
		s.counters.Notifications -= p.Count
		if s.counters.Notifications < 0 {
			s.counters.Notifications = 0
		}
	case changefeed.IncidentAssigned:
		s.counters.Cases++
	case changefeed.IncidentsSeen:
		s.counters.Cases -= p.Count
		if s.counters.Cases < 0 {
			s.counters.Cases = 0
		}
	case changefeed.MessageInserted:
		s.counters.Chat[p.ConversationID]++
	case changefeed.ConversationRead:
		delete(s.counters.Chat, p.ConversationID)
	}
}

func (s *BadgeSession) emit() {
	if s.sink == nil {
		return
	}
	s.sink(s.Snapshot())
}

func (s *BadgeSession) refetchNotifications() error {
	n, err := s.notifications.UnreadCount(s.userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.counters.Notifications = n
	s.mu.Unlock()
	return nil
}

func (s *BadgeSession) refetchCases() error {
	n, err := s.incidents.UnseenCount(s.userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.counters.Cases = n
	s.mu.Unlock()
	return nil
}

func (s *BadgeSession) refetchChat() error {
	counts, err := s.chat.UnreadCounts(s.userID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.counters.Chat = counts
	s.mu.Unlock()
	return nil
}

// MarkNotificationsRead performs the user's mark action through this session:
// the badge zeroes before the store write confirms (an all-selector zeroes
// the whole counter; narrower selectors reconcile through their confirmation
// event). The local zero is a later, stronger fact than any event already in
// flight for the same action.
func (s *BadgeSession) MarkNotificationsRead(sel ReadSelector) {
	if sel.All {
		s.mu.Lock()
		s.counters.Notifications = 0
		s.mu.Unlock()
		s.emit()
	}
	if _, err := s.notifications.MarkRead(s.userID, sel); err != nil {
		log.Printf("badge session user=%d mark read: %v", s.userID, err)
	}
}

// MarkCasesSeen acknowledges DEC cases; a nil incident id means all of them.
func (s *BadgeSession) MarkCasesSeen(incidentID *uint) {
	if incidentID == nil {
		s.mu.Lock()
		s.counters.Cases = 0
		s.mu.Unlock()
		s.emit()
	}
	if _, err := s.incidents.MarkSeen(s.userID, incidentID); err != nil {
		log.Printf("badge session user=%d mark seen: %v", s.userID, err)
	}
}

// MarkConversationRead zeroes one conversation's unread badge optimistically,
// then moves the durable watermark.
func (s *BadgeSession) MarkConversationRead(conversationID uint) {
	s.mu.Lock()
	delete(s.counters.Chat, conversationID)
	s.mu.Unlock()
	s.emit()
	if err := s.chat.MarkConversationRead(conversationID, s.userID); err != nil {
		log.Printf("badge session user=%d conversation=%d mark read: %v", s.userID, conversationID, err)
	}
}
