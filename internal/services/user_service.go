/**
 * @description
 * User Service for local identities.
 * Resolves users by id or Farcaster fid and links first-time Farcaster sign-ins.
 *
 * @dependencies
 * - gorm.io/gorm
 * - backend/internal/models
 *
 * @notes
 * - Users are never deleted; banning is the only way to revoke access.
 * - Farcaster users get a synthetic unique email, the auth tables require one.
 */

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/savings-circle/backend/internal/models"
	"gorm.io/gorm"
)

const farcasterEmailDomain = "farcaster.emails"

// FarcasterProfile is the identity data captured when linking a fid
type FarcasterProfile struct {
	Fid         int64
	Username    string
	DisplayName string
	PfpURL      string
}

// UserService handles user lookups and Farcaster linking
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a new UserService
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// GetByID returns the user or ErrUserNotFound
func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.first(s.db.WithContext(ctx).Where("id = ?", id))
}

// FindByFid returns the user linked to fid or ErrUserNotFound
func (s *UserService) FindByFid(ctx context.Context, fid int64) (*models.User, error) {
	return s.first(s.db.WithContext(ctx).Where("fid = ?", fid))
}

func (s *UserService) first(query *gorm.DB) (*models.User, error) {
	var user models.User
	if err := query.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &user, nil
}

// EnsureFarcasterUser returns the user linked to profile.Fid, creating the user
// and its farcaster link on first sign-in. Profile fields refresh on every call.
func (s *UserService) EnsureFarcasterUser(ctx context.Context, profile FarcasterProfile) (*models.User, error) {
	if profile.Fid <= 0 {
		return nil, fmt.Errorf("invalid fid %d", profile.Fid)
	}

	var user models.User
	err := withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return ensureFarcasterUser(tx, profile, &user)
		})
	})
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent first sign-in created the row, read it back
			return s.FindByFid(ctx, profile.Fid)
		}
		return nil, fmt.Errorf("failed to link farcaster user: %w", err)
	}
	return &user, nil
}

func ensureFarcasterUser(tx *gorm.DB, profile FarcasterProfile, user *models.User) error {
	err := tx.Where("fid = ?", profile.Fid).First(user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		*user = models.User{
			Name:  displayName(profile),
			Email: fmt.Sprintf("%d@%s", profile.Fid, farcasterEmailDomain),
			Fid:   &profile.Fid,
			Role:  models.RoleUser,
		}
		if profile.PfpURL != "" {
			user.Image = &profile.PfpURL
		}
		if err := tx.Create(user).Error; err != nil {
			return err
		}
	case err != nil:
		return err
	}

	var link models.FarcasterAccount
	err = tx.Where("fid = ?", profile.Fid).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		link = models.FarcasterAccount{
			UserID:      user.ID,
			Fid:         profile.Fid,
			Username:    profile.Username,
			DisplayName: profile.DisplayName,
			PfpURL:      profile.PfpURL,
		}
		return tx.Create(&link).Error
	}
	if err != nil {
		return err
	}

	if profile.Username == "" {
		return nil
	}
	return tx.Model(&link).Updates(map[string]interface{}{
		"username":     profile.Username,
		"display_name": profile.DisplayName,
		"pfp_url":      profile.PfpURL,
		"updated_at":   time.Now(),
	}).Error
}

func displayName(p FarcasterProfile) string {
	switch {
	case p.DisplayName != "":
		return p.DisplayName
	case p.Username != "":
		return p.Username
	default:
		return fmt.Sprintf("fid:%d", p.Fid)
	}
}
