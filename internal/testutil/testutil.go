// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/savings-circle/backend/internal/db"
	"github.com/savings-circle/backend/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// NewDB returns an isolated in-memory SQLite database with the full schema
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return gdb
}

// NewRedis starts a miniredis server and returns a client bound to it
func NewRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

// CreateUser inserts a user with a unique email
func CreateUser(t *testing.T, gdb *gorm.DB, fid *int64) *models.User {
	t.Helper()

	user := &models.User{
		Name:  "member",
		Email: uuid.NewString() + "@example.com",
		Fid:   fid,
	}
	require.NoError(t, gdb.Create(user).Error)
	return user
}

// CreateGroup inserts a group owned by creator
func CreateGroup(t *testing.T, gdb *gorm.DB, creator *models.User, address string) *models.Group {
	t.Helper()

	group := &models.Group{
		Name:         "Lagos Friends",
		Description:  "weekly circle",
		CreatorID:    creator.ID,
		GroupAddress: models.NormalizeAddress(address),
	}
	require.NoError(t, gdb.Create(group).Error)
	return group
}

// CreateParticipant inserts a participant row with the given flags
func CreateParticipant(t *testing.T, gdb *gorm.DB, groupID uuid.UUID, address string, accepted, paid bool) *models.Participant {
	t.Helper()

	now := time.Now()
	p := &models.Participant{
		GroupID:     groupID,
		UserAddress: models.NormalizeAddress(address),
	}
	p.SetAccepted(accepted, now)
	p.SetPaid(paid, now)
	require.NoError(t, gdb.Create(p).Error)
	return p
}

// Int64 returns a pointer to v
func Int64(v int64) *int64 {
	return &v
}
