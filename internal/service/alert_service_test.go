package service

import (
	"sync"
	"testing"

	"convive/internal/domain"
	"convive/internal/models"
	"convive/internal/repository"
)

func TestCreateIfAbsent_SecondTriggerIsFree(t *testing.T) {
	db := newTestDB(t)
	svc := NewAlertService(repository.NewAlertRepository(db))

	first, created, err := svc.CreateIfAbsent(1, 100, domain.AlertRegistrosNegativos, "tres registros negativos", "")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if !created {
		t.Fatal("first call did not create")
	}
	if first.TriggeredBy != "system" {
		t.Fatalf("triggered_by = %q, want default", first.TriggeredBy)
	}

	second, created, err := svc.CreateIfAbsent(1, 100, domain.AlertRegistrosNegativos, "otra descripcion", "docente")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Fatal("second call created a duplicate")
	}
	if second.ID != first.ID {
		t.Fatalf("second call returned row %d, want surviving row %d", second.ID, first.ID)
	}
	if second.Description != "tres registros negativos" {
		t.Fatalf("description = %q, want the first writer's", second.Description)
	}

	var n int64
	db.Model(&models.Alert{}).Where("student_id = ? AND type = ? AND resolved = ?", 100, domain.AlertRegistrosNegativos, false).Count(&n)
	if n != 1 {
		t.Fatalf("unresolved rows = %d, want exactly 1", n)
	}
}

func TestCreateIfAbsent_DifferentTypeOrStudentIsIndependent(t *testing.T) {
	db := newTestDB(t)
	svc := NewAlertService(repository.NewAlertRepository(db))

	if _, created, _ := svc.CreateIfAbsent(1, 100, domain.AlertRegistrosNegativos, "", ""); !created {
		t.Fatal("baseline create failed")
	}
	if _, created, err := svc.CreateIfAbsent(1, 100, domain.AlertSinRegistro, "", ""); err != nil || !created {
		t.Fatalf("other type: created=%v err=%v", created, err)
	}
	if _, created, err := svc.CreateIfAbsent(1, 101, domain.AlertRegistrosNegativos, "", ""); err != nil || !created {
		t.Fatalf("other student: created=%v err=%v", created, err)
	}
}

func TestCreateIfAbsent_ResolvedSlotReopens(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewAlertRepository(db)
	svc := NewAlertService(repo)

	a, _, err := svc.CreateIfAbsent(1, 100, domain.AlertDecRepetido, "primera", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Resolve(a.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	b, created, err := svc.CreateIfAbsent(1, 100, domain.AlertDecRepetido, "segunda", "")
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if !created {
		t.Fatal("resolved slot did not reopen")
	}
	if b.ID == a.ID {
		t.Fatal("expected a new row, got the resolved one")
	}

	var total, unresolved int64
	db.Model(&models.Alert{}).Where("student_id = ?", 100).Count(&total)
	db.Model(&models.Alert{}).Where("student_id = ? AND resolved = ?", 100, false).Count(&unresolved)
	if total != 2 || unresolved != 1 {
		t.Fatalf("total = %d unresolved = %d, want 2 and 1", total, unresolved)
	}
}

func TestCreateIfAbsent_ConcurrentTriggersKeepInvariant(t *testing.T) {
	db := newTestDB(t)
	svc := NewAlertService(repository.NewAlertRepository(db))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.CreateIfAbsent(1, 200, domain.AlertDiscrepanciaDocente, "desc", "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent create: %v", err)
		}
	}

	var n int64
	db.Model(&models.Alert{}).Where("student_id = ? AND type = ? AND resolved = ?", 200, domain.AlertDiscrepanciaDocente, false).Count(&n)
	if n != 1 {
		t.Fatalf("unresolved rows = %d, want exactly 1", n)
	}
}
