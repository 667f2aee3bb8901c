package services

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrGroupNotFound            = errors.New("group not found")
	ErrParticipantNotFound      = errors.New("participant not found")
	ErrUserNotFound             = errors.New("user not found")
	ErrForbidden                = errors.New("only the group creator can modify this group")
	ErrParticipantExists        = errors.New("participant already exists in this group")
	ErrAllParticipantsExist     = errors.New("All participants already exist")
	ErrParticipantGroupMismatch = errors.New("participant does not belong to this group")
	ErrInvalidAddress           = errors.New("address is required")
	ErrNoParticipants           = errors.New("at least one participant is required")

	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrUserBanned      = errors.New("user is banned")

	ErrCircleUnavailable = errors.New("on-chain circle data is unavailable")
	ErrCircleNotDeployed = errors.New("group address is not a contract address")
	ErrInvalidViewer     = errors.New("viewer must be a 0x-prefixed 20-byte hex address")
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// isUniqueViolation recognises both gorm's translated error and a raw Postgres 23505
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// isRetryable reports transaction conflicts worth retrying
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected)
}

// withRetry re-runs fn on Postgres serialization failures and deadlocks
func withRetry(ctx context.Context, fn func() error) error {
	const maxRetries = 3

	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err = fn(); err == nil || !isRetryable(err) {
			return err
		}

		backoff := time.Duration(attempt*100+rand.Intn(100)) * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return err
}
