package ws

import (
	"sort"
	"sync"
	"time"
)

// PresenceChange is announced to an institution when a user's first session
// appears or last session disappears.
type PresenceChange struct {
	InstitutionID uint
	UserID        uint
	Online        bool
	OnlineAt      time.Time
}

// PresenceHub is the ephemeral online roster, one entry set per institution.
// Membership is keyed by connection session: an entry exists while at least
// one session holds it and disappears when the last session untracks, with no
// stored row. Sessions renew a lastSeen on heartbeat and a sweeper expires
// entries that stopped renewing, so an ungraceful disconnect cannot leave a
// stale "online" behind the transport's close notification.
type PresenceHub struct {
	ttl      time.Duration
	onChange func(PresenceChange)

	mu           sync.RWMutex
	institutions map[uint]map[uint]*presenceEntry // institution -> user -> entry

	stop     chan struct{}
	stopOnce sync.Once
}

type presenceEntry struct {
	onlineAt time.Time
	sessions map[string]time.Time // session id -> last renewal
}

func NewPresenceHub(ttl time.Duration, sweepInterval time.Duration, onChange func(PresenceChange)) *PresenceHub {
	h := &PresenceHub{
		ttl:          ttl,
		onChange:     onChange,
		institutions: make(map[uint]map[uint]*presenceEntry),
		stop:         make(chan struct{}),
	}
	if ttl > 0 {
		if sweepInterval <= 0 {
			sweepInterval = ttl / 3
		}
		go h.sweep(sweepInterval)
	}
	return h
}

// Track registers a session for the user. The first session for a user
// announces them online to the institution.
func (h *PresenceHub) Track(institutionID, userID uint, sessionID string) {
	now := time.Now()
	h.mu.Lock()
	users := h.institutions[institutionID]
	if users == nil {
		users = make(map[uint]*presenceEntry)
		h.institutions[institutionID] = users
	}
	entry := users[userID]
	wasOnline := entry != nil
	if entry == nil {
		entry = &presenceEntry{onlineAt: now, sessions: make(map[string]time.Time)}
		users[userID] = entry
	}
	entry.sessions[sessionID] = now
	h.mu.Unlock()
	if !wasOnline && h.onChange != nil {
		h.onChange(PresenceChange{InstitutionID: institutionID, UserID: userID, Online: true, OnlineAt: now})
	}
}

// Heartbeat renews the session's liveness.
func (h *PresenceHub) Heartbeat(institutionID, userID uint, sessionID string) {
	h.mu.Lock()
	if users := h.institutions[institutionID]; users != nil {
		if entry := users[userID]; entry != nil {
			if _, ok := entry.sessions[sessionID]; ok {
				entry.sessions[sessionID] = time.Now()
			}
		}
	}
	h.mu.Unlock()
}

// Untrack drops a session immediately; closing a connection removes its user
// from the roster for all observers with no grace period once it was the
// last session.
func (h *PresenceHub) Untrack(institutionID, userID uint, sessionID string) {
	h.mu.Lock()
	wentOffline := false
	if users := h.institutions[institutionID]; users != nil {
		if entry := users[userID]; entry != nil {
			delete(entry.sessions, sessionID)
			if len(entry.sessions) == 0 {
				delete(users, userID)
				wentOffline = true
			}
		}
		if len(users) == 0 {
			delete(h.institutions, institutionID)
		}
	}
	h.mu.Unlock()
	if wentOffline && h.onChange != nil {
		h.onChange(PresenceChange{InstitutionID: institutionID, UserID: userID, Online: false})
	}
}

// IsOnline is a pure lookup.
func (h *PresenceHub) IsOnline(institutionID, userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := h.institutions[institutionID]
	if users == nil {
		return false
	}
	_, ok := users[userID]
	return ok
}

// Online returns the institution's currently tracked user ids, sorted for
// stable output.
func (h *PresenceHub) Online(institutionID uint) []uint {
	h.mu.RLock()
	users := h.institutions[institutionID]
	ids := make([]uint, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (h *PresenceHub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *PresenceHub) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.expire(time.Now().Add(-h.ttl))
		}
	}
}

// expire drops sessions whose last renewal predates the cutoff.
func (h *PresenceHub) expire(cutoff time.Time) {
	var changes []PresenceChange
	h.mu.Lock()
	for instID, users := range h.institutions {
		for userID, entry := range users {
			for sessionID, last := range entry.sessions {
				if last.Before(cutoff) {
					delete(entry.sessions, sessionID)
				}
			}
			if len(entry.sessions) == 0 {
				delete(users, userID)
				changes = append(changes, PresenceChange{InstitutionID: instID, UserID: userID, Online: false})
			}
		}
		if len(users) == 0 {
			delete(h.institutions, instID)
		}
	}
	h.mu.Unlock()
	if h.onChange != nil {
		for _, ch := range changes {
			h.onChange(ch)
		}
	}
}
