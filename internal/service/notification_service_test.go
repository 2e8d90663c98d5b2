package service

import (
	"testing"

	"convive/internal/changefeed"
	"convive/internal/domain"
	"convive/internal/models"
	"convive/internal/repository"

	"gorm.io/gorm"
)

func newNotificationService(db *gorm.DB) *NotificationService {
	return NewNotificationService(
		repository.NewNotificationRepository(db),
		repository.NewUserRepository(db),
		changefeed.NewFeed(16),
	)
}

func countNotifications(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.Notification{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestCreateMany_EmptyRecipientsPerformsZeroWrites(t *testing.T) {
	db := newTestDB(t)
	svc := newNotificationService(db)

	svc.CreateMany(1, nil, domain.NotifAviso, "t", "m", nil, "")
	svc.CreateMany(1, []uint{}, domain.NotifAviso, "t", "m", nil, "")

	if n := countNotifications(t, db); n != 0 {
		t.Fatalf("notifications = %d, want 0", n)
	}
}

func TestCreateMany_OneRowPerRecipient(t *testing.T) {
	db := newTestDB(t)
	svc := newNotificationService(db)

	svc.CreateMany(1, []uint{10, 11, 12}, domain.NotifDecNuevo, "Nuevo DEC", "detalle", nil, "/dec/5")

	if n := countNotifications(t, db); n != 3 {
		t.Fatalf("notifications = %d, want 3", n)
	}
	for _, id := range []uint{10, 11, 12} {
		c, err := svc.UnreadCount(id)
		if err != nil {
			t.Fatalf("unread count: %v", err)
		}
		if c != 1 {
			t.Fatalf("user %d unread = %d, want 1", id, c)
		}
	}
}

func TestNotifyRoles_SkipsInactiveAndOtherInstitutions(t *testing.T) {
	db := newTestDB(t)
	svc := newNotificationService(db)

	a := seedUser(t, db, 1, domain.RoleDupla, true, nil)
	b := seedUser(t, db, 1, domain.RoleDupla, true, nil)
	c := seedUser(t, db, 1, domain.RoleDupla, true, nil)
	inactive := seedUser(t, db, 1, domain.RoleDupla, false, nil)
	elsewhere := seedUser(t, db, 2, domain.RoleDupla, true, nil)

	if err := svc.NotifyRoles(1, []string{domain.RoleDupla}, 0, domain.NotifDecNuevo, "Nuevo DEC", "", nil, ""); err != nil {
		t.Fatalf("notify roles: %v", err)
	}

	for _, u := range []*models.User{a, b, c} {
		n, _ := svc.UnreadCount(u.ID)
		if n != 1 {
			t.Fatalf("active dupla %d unread = %d, want 1", u.ID, n)
		}
	}
	for _, u := range []*models.User{inactive, elsewhere} {
		n, _ := svc.UnreadCount(u.ID)
		if n != 0 {
			t.Fatalf("user %d unread = %d, want 0", u.ID, n)
		}
	}
}

func TestMarkRead_ByIDs_IsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := newNotificationService(db)
	svc.CreateMany(1, []uint{5}, domain.NotifAviso, "a", "", nil, "")
	svc.CreateMany(1, []uint{5}, domain.NotifAviso, "b", "", nil, "")

	var rows []models.Notification
	db.Find(&rows)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	target := rows[0].ID

	n, err := svc.MarkRead(5, ReadSelector{IDs: []uint{target}})
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 1 {
		t.Fatalf("first call marked %d, want 1", n)
	}
	n, err = svc.MarkRead(5, ReadSelector{IDs: []uint{target}})
	if err != nil {
		t.Fatalf("mark read again: %v", err)
	}
	if n != 0 {
		t.Fatalf("second call marked %d, want 0", n)
	}
	unread, _ := svc.UnreadCount(5)
	if unread != 1 {
		t.Fatalf("unread = %d, want 1", unread)
	}
}

func TestMarkRead_SelectorPrecedence_AllWinsOverIDs(t *testing.T) {
	db := newTestDB(t)
	svc := newNotificationService(db)
	svc.CreateMany(1, []uint{5}, domain.NotifAviso, "a", "", nil, "")
	svc.CreateMany(1, []uint{5}, domain.NotifAviso, "b", "", nil, "")
	svc.CreateMany(1, []uint{5}, domain.NotifAviso, "c", "", nil, "")

	var first models.Notification
	db.First(&first)

	n, err := svc.MarkRead(5, ReadSelector{All: true, IDs: []uint{first.ID}})
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 3 {
		t.Fatalf("marked %d, want 3 (all wins over ids)", n)
	}
	unread, _ := svc.UnreadCount(5)
	if unread != 0 {
		t.Fatalf("unread = %d, want 0", unread)
	}
}

func TestMarkRead_TypesWinOverURLPrefix(t *testing.T) {
	db := newTestDB(t)
	svc := newNotificationService(db)
	svc.CreateMany(1, []uint{5}, domain.NotifDecNuevo, "a", "", nil, "/dec/1")
	svc.CreateMany(1, []uint{5}, domain.NotifAviso, "b", "", nil, "/avisos/1")

	n, err := svc.MarkRead(5, ReadSelector{Types: []string{domain.NotifAviso}, URLPrefix: "/dec"})
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 1 {
		t.Fatalf("marked %d, want only the type match", n)
	}
	var row models.Notification
	db.Where("type = ?", domain.NotifDecNuevo).First(&row)
	if row.Read {
		t.Fatal("url-prefix row was marked despite types taking precedence")
	}
}

func TestMarkRead_URLPrefix(t *testing.T) {
	db := newTestDB(t)
	svc := newNotificationService(db)
	svc.CreateMany(1, []uint{5}, domain.NotifDecNuevo, "a", "", nil, "/dec/1")
	svc.CreateMany(1, []uint{5}, domain.NotifDecNuevo, "b", "", nil, "/dec/2")
	svc.CreateMany(1, []uint{5}, domain.NotifAviso, "c", "", nil, "/avisos/9")

	n, err := svc.MarkRead(5, ReadSelector{URLPrefix: "/dec"})
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 2 {
		t.Fatalf("marked %d, want 2", n)
	}
}

func TestMarkRead_EmptySelectorIsNoOp(t *testing.T) {
	db := newTestDB(t)
	svc := newNotificationService(db)
	svc.CreateMany(1, []uint{5}, domain.NotifAviso, "a", "", nil, "")

	n, err := svc.MarkRead(5, ReadSelector{})
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 0 {
		t.Fatalf("marked %d, want 0", n)
	}
	unread, _ := svc.UnreadCount(5)
	if unread != 1 {
		t.Fatalf("unread = %d, want 1", unread)
	}
}

func TestMarkRead_OnlyTouchesOwnRows(t *testing.T) {
	db := newTestDB(t)
	svc := newNotificationService(db)
	svc.CreateMany(1, []uint{5, 6}, domain.NotifAviso, "a", "", nil, "")

	if _, err := svc.MarkRead(5, ReadSelector{All: true}); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	other, _ := svc.UnreadCount(6)
	if other != 1 {
		t.Fatalf("other user's unread = %d, want 1", other)
	}
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	db := newTestDB(t)
	svc := newNotificationService(db)
	for i := 0; i < 40; i++ {
		svc.CreateMany(1, []uint{5}, domain.NotifAviso, "x", "", nil, "")
	}
	list, err := svc.List(5, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 30 {
		t.Fatalf("len = %d, want default limit 30", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.After(list[i-1].CreatedAt) {
			t.Fatal("list not ordered newest first")
		}
	}
}
