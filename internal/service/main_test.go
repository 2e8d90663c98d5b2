package service

import (
	"fmt"
	"strings"
	"testing"

	"convive/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name))
	db, err := gorm.Open(dsn, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Notification{},
		&models.Alert{},
		&models.IncidentRecipient{},
		&models.Conversation{},
		&models.Message{},
		&models.MessageRead{},
		&models.AvailabilityStatus{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, institutionID uint, role string, active bool, courseID *uint) *models.User {
	t.Helper()
	var n int64
	db.Model(&models.User{}).Count(&n)
	u := &models.User{
		InstitutionID: institutionID,
		Name:          fmt.Sprintf("%s-%d", role, n+1),
		Email:         fmt.Sprintf("user%d@test.local", n+1),
		Role:          role,
		Active:        active,
		CourseID:      courseID,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}
