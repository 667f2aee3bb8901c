package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/savings-circle/backend/internal/models"
	"gorm.io/gorm"
)

// SessionService resolves server-side session tokens
type SessionService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSessionService(db *gorm.DB) *SessionService {
	return &SessionService{db: db, now: time.Now}
}

// Resolve returns the user owning token.
// Fails with ErrSessionNotFound, ErrSessionExpired or ErrUserBanned.
func (s *SessionService) Resolve(ctx context.Context, token string) (*models.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionNotFound
	}

	var session models.Session
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("token = ?", token).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}

	now := s.now()
	if !now.Before(session.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	if session.User == nil {
		return nil, ErrSessionNotFound
	}
	if session.User.IsBanned(now) {
		return nil, ErrUserBanned
	}
	return session.User, nil
}
