// Package dbtest opens throwaway in-memory databases for service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sunes26/SummaryGenie-Page-sub000/internal/models"
	"github.com/sunes26/SummaryGenie-Page-sub000/pkg/tool"
)

// New returns a migrated in-memory sqlite database private to t. The pool is
// capped at one connection so every statement sees the same memory database;
// never issue queries on the parent handle from inside a Transaction callback.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", tool.GenerateUUIDV7())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(models.All()...))
	return gdb
}

// SeedUser inserts a free user profile.
func SeedUser(t testing.TB, gdb *gorm.DB, id string) *models.UserProfile {
	t.Helper()
	u := &models.UserProfile{ID: id, Email: id + "@example.com", Premium: models.PremiumFlag{Plan: "free"}}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

// LoadUser reads the profile back, failing the test when it is missing.
func LoadUser(t testing.TB, gdb *gorm.DB, id string) *models.UserProfile {
	t.Helper()
	var u models.UserProfile
	require.NoError(t, gdb.First(&u, "id = ?", id).Error)
	return &u
}
