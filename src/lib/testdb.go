package lib

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/theleywin/Collab-Nest/src/config"
	"github.com/theleywin/Collab-Nest/src/models"
)

// OpenTestDB returns a migrated in-memory SQLite database private to t.
// A single connection serialises writers the way a real server's row locks would.
func OpenTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := ConnectDB(config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// OpenFileTestDB returns a migrated SQLite file database in t's temp dir with a
// pool of maxOpenConns connections, for tests that need real writer contention.
func OpenFileTestDB(t testing.TB, maxOpenConns int) *gorm.DB {
	t.Helper()

	db, err := ConnectDB(config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "collab.db"),
		MaxOpenConns: maxOpenConns,
		MaxIdleConns: maxOpenConns,
	})
	if err != nil {
		t.Fatalf("open file test db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate file test db: %v", err)
	}
	return db
}

// SeedUser inserts an account for tests.
func SeedUser(t testing.TB, db *gorm.DB, username string) models.User {
	t.Helper()

	u := models.User{
		Name:     strings.ToUpper(username[:1]) + username[1:],
		Username: username,
		Email:    username + "@example.com",
		Role:     models.RoleInfluencer,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}
