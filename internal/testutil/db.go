// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"

	"tokenguard/config"
	"tokenguard/internal/database"
	"tokenguard/internal/domain"
	"tokenguard/internal/models"

	"gorm.io/gorm"
)

// NewDB returns a migrated in-memory SQLite database closed at test cleanup.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.NewDB(&config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with the given role and starting balance.
func CreateUser(t testing.TB, db *gorm.DB, email, role string, balance int64) *models.User {
	t.Helper()
	if role == "" {
		role = domain.RoleUser
	}
	u := &models.User{Email: email, DisplayName: email, Role: role}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	acct := &models.CreditAccount{UserID: u.ID, Balance: balance}
	if err := db.Create(acct).Error; err != nil {
		t.Fatalf("create credit account: %v", err)
	}
	return u
}
