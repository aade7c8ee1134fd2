package testutil

import (
	"testing"

	"github.com/brewbuds/server/cache"
	"github.com/brewbuds/server/config"
	dbadapter "github.com/brewbuds/server/db"
	"github.com/brewbuds/server/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupTestDB opens a private in-memory SQLite database and runs
// AutoMigrate. Each call gets its own database so tests can run in parallel.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := dbadapter.Open(config.DatabaseConfig{
		Mode:       dbadapter.ModeSQLite,
		SQLitePath: "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	}, zap.NewNop())
	require.NoError(t, err, "SetupTestDB: Open")
	require.NoError(t, model.AutoMigrate(db), "SetupTestDB: AutoMigrate")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SetupTestCache creates LocalCache and LocalPubSub (no Redis required).
func SetupTestCache(t *testing.T) (cache.Cache, cache.PubSub) {
	t.Helper()
	cfg := cache.CacheConfig{} // empty RedisAddr → LocalCache
	c, err := cache.NewCache(cfg)
	require.NoError(t, err, "SetupTestCache: NewCache")
	ps, err := cache.NewPubSub(cfg)
	require.NoError(t, err, "SetupTestCache: NewPubSub")
	return c, ps
}

// CreateUser inserts an active app user with the given nickname.
func CreateUser(t *testing.T, db *gorm.DB, nickname string) *model.User {
	t.Helper()
	u := &model.User{
		Email:     nickname + "@brewbuds.dev",
		Nickname:  nickname,
		LoginType: model.LoginTypeApp,
		IsActive:  true,
	}
	require.NoError(t, db.Create(u).Error, "CreateUser")
	return u
}

// CreateBean inserts an official single-origin bean.
func CreateBean(t *testing.T, db *gorm.DB, name string) *model.Bean {
	t.Helper()
	b := &model.Bean{Name: name, BeanType: model.BeanTypeSingle, IsOfficial: true}
	require.NoError(t, db.Create(b).Error, "CreateBean")
	return b
}
