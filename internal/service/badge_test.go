package service

import (
	"sync/atomic"
	"testing"
	"time"

	"convive/internal/changefeed"
	"convive/internal/domain"
	"convive/internal/models"
	"convive/internal/repository"

	"gorm.io/gorm"
)

type badgeFixture struct {
	db     *gorm.DB
	feed   *changefeed.Feed
	notifs *NotificationService
	cases  *IncidentService
	chat   *ChatService
}

func newBadgeFixture(t *testing.T, buffer int) *badgeFixture {
	t.Helper()
	db := newTestDB(t)
	feed := changefeed.NewFeed(buffer)
	return &badgeFixture{
		db:     db,
		feed:   feed,
		notifs: NewNotificationService(repository.NewNotificationRepository(db), repository.NewUserRepository(db), feed),
		cases:  NewIncidentService(repository.NewIncidentRepository(db), feed),
		chat:   NewChatService(repository.NewChatRepository(db), feed),
	}
}

// session starts a badge session and blocks until all three stream loops have
// subscribed and loaded their first authoritative snapshot, so events
// published afterwards are guaranteed to be delivered.
func (f *badgeFixture) session(t *testing.T, userID uint) *BadgeSession {
	t.Helper()
	var emits atomic.Int64
	s := NewBadgeSession(userID, f.notifs, f.cases, f.chat, f.feed, func(BadgeCounters) {
		emits.Add(1)
	})
	s.Start()
	t.Cleanup(s.Close)
	waitFor(t, "initial snapshots", func() bool { return emits.Load() >= 3 })
	return s
}

func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", desc)
}

func TestBadgeSession_InitializesFromStore(t *testing.T) {
	f := newBadgeFixture(t, 16)
	f.notifs.CreateMany(1, []uint{7}, domain.NotifAviso, "a", "", nil, "")
	f.notifs.CreateMany(1, []uint{7}, domain.NotifAviso, "b", "", nil, "")
	if err := f.cases.AddRecipients(40, []uint{7}, domain.RoleDupla); err != nil {
		t.Fatalf("add recipients: %v", err)
	}

	s := f.session(t, 7)
	snap := s.Snapshot()
	if snap.Notifications != 2 || snap.Cases != 1 {
		t.Fatalf("snapshot = %+v, want 2 notifications and 1 case", snap)
	}
}

func TestBadgeSession_InsertEventsIncrement(t *testing.T) {
	f := newBadgeFixture(t, 16)
	s := f.session(t, 7)

	f.notifs.CreateMany(1, []uint{7}, domain.NotifDecNuevo, "nuevo", "", nil, "")
	waitFor(t, "increment", func() bool { return s.Snapshot().Notifications == 1 })

	// Someone else's fan-out must not move this user's badge.
	f.notifs.CreateMany(1, []uint{9}, domain.NotifDecNuevo, "ajeno", "", nil, "")
	time.Sleep(50 * time.Millisecond)
	if n := s.Snapshot().Notifications; n != 1 {
		t.Fatalf("notifications = %d after another user's event, want 1", n)
	}
}

func TestBadgeSession_OptimisticZeroSurvivesConfirmation(t *testing.T) {
	f := newBadgeFixture(t, 16)
	f.cases.AddRecipients(40, []uint{7}, domain.RoleDupla)
	f.cases.AddRecipients(41, []uint{7}, domain.RoleDupla)

	s := f.session(t, 7)
	if n := s.Snapshot().Cases; n != 2 {
		t.Fatalf("cases = %d, want 2", n)
	}

	s.MarkCasesSeen(nil)
	if n := s.Snapshot().Cases; n != 0 {
		t.Fatalf("cases = %d immediately after mark-all-seen, want optimistic 0", n)
	}

	// The store-side confirmation event lands after the optimistic zero; the
	// clamp turns the decrement into a no-op instead of going negative.
	time.Sleep(50 * time.Millisecond)
	if n := s.Snapshot().Cases; n != 0 {
		t.Fatalf("cases = %d after confirmation, want 0", n)
	}

	// An insert for a different user leaves this session untouched.
	f.cases.AddRecipients(42, []uint{9}, domain.RoleDupla)
	time.Sleep(50 * time.Millisecond)
	if n := s.Snapshot().Cases; n != 0 {
		t.Fatalf("cases = %d after unrelated insert, want 0", n)
	}

	// A genuinely new case for this user increments again.
	f.cases.AddRecipients(43, []uint{7}, domain.RoleDupla)
	waitFor(t, "new case", func() bool { return s.Snapshot().Cases == 1 })
}

func TestBadgeSession_DuplicateCaseTriggerDoesNotInflate(t *testing.T) {
	f := newBadgeFixture(t, 16)
	s := f.session(t, 7)

	if err := f.cases.AddRecipients(40, []uint{7}, domain.RoleDupla); err != nil {
		t.Fatalf("add recipients: %v", err)
	}
	waitFor(t, "first trigger", func() bool { return s.Snapshot().Cases == 1 })

	// A retry of the same trigger finds the slot already present; the badge
	// must stay at the store's truth, not count the retry again.
	if err := f.cases.AddRecipients(40, []uint{7}, domain.RoleDupla); err != nil {
		t.Fatalf("duplicate trigger: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if n := s.Snapshot().Cases; n != 1 {
		t.Fatalf("cases = %d after duplicate trigger, want 1", n)
	}
	unseen, err := f.cases.UnseenCount(7)
	if err != nil {
		t.Fatalf("unseen count: %v", err)
	}
	if unseen != 1 {
		t.Fatalf("store unseen = %d, want 1", unseen)
	}
}

func TestBadgeSession_CrossTabMarkReadDecrements(t *testing.T) {
	f := newBadgeFixture(t, 16)
	f.notifs.CreateMany(1, []uint{7}, domain.NotifAviso, "a", "", nil, "")
	f.notifs.CreateMany(1, []uint{7}, domain.NotifAviso, "b", "", nil, "")

	s := f.session(t, 7)
	if n := s.Snapshot().Notifications; n != 2 {
		t.Fatalf("notifications = %d, want 2", n)
	}

	// Another tab marks everything read over plain HTTP; this session
	// converges through the update event alone.
	if _, err := f.notifs.MarkRead(7, ReadSelector{All: true}); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	waitFor(t, "converge to zero", func() bool { return s.Snapshot().Notifications == 0 })
}

func TestBadgeSession_ChatCountersPerConversation(t *testing.T) {
	f := newBadgeFixture(t, 16)
	s := f.session(t, 8)

	d := f.chat.DeliverAsMessage(3, 8, &models.Notification{Title: "hola"})
	if d == nil {
		t.Fatal("delivery failed")
	}
	waitFor(t, "one unread", func() bool { return s.Snapshot().Chat[d.ConversationID] == 1 })

	if _, err := f.chat.SendMessage(d.ConversationID, 3, "otra"); err != nil {
		t.Fatalf("send: %v", err)
	}
	waitFor(t, "two unread", func() bool { return s.Snapshot().Chat[d.ConversationID] == 2 })

	s.MarkConversationRead(d.ConversationID)
	if n := s.Snapshot().Chat[d.ConversationID]; n != 0 {
		t.Fatalf("chat unread = %d immediately after mark, want optimistic 0", n)
	}
	time.Sleep(50 * time.Millisecond)
	if n := s.Snapshot().Chat[d.ConversationID]; n != 0 {
		t.Fatalf("chat unread = %d after confirmation, want 0", n)
	}
}

func TestBadgeSession_RefetchesAfterSubscriptionDrop(t *testing.T) {
	f := newBadgeFixture(t, 1)

	// A sink gated on a channel stalls the stream loops on demand, so the
	// one-slot buffer overflows deterministically and the transport drops the
	// subscriber mid-burst.
	gate := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		gate <- struct{}{}
	}
	s := NewBadgeSession(7, f.notifs, f.cases, f.chat, f.feed, func(BadgeCounters) {
		<-gate
	})
	s.Start()
	t.Cleanup(s.Close)
	waitFor(t, "initial snapshots", func() bool { return len(gate) == 0 })

	// Three inserts against a stalled consumer: at most one fits the buffer,
	// the rest are lost and the subscription is torn down.
	for i := 0; i < 3; i++ {
		f.notifs.CreateMany(1, []uint{7}, domain.NotifAviso, "x", "", nil, "")
	}
	close(gate)

	// The session must converge through an authoritative refetch after the
	// drop rather than trust its stale delta state.
	waitFor(t, "authoritative recovery", func() bool { return s.Snapshot().Notifications == 3 })
	time.Sleep(50 * time.Millisecond)
	if n := s.Snapshot().Notifications; n != 3 {
		t.Fatalf("notifications = %d after recovery, want 3", n)
	}
}
