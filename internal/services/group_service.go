/**
 * @description
 * Group Service for savings circle CRUD.
 * Encapsulates query shape; ownership is the only rule enforced here.
 *
 * @dependencies
 * - gorm.io/gorm
 * - backend/internal/models
 */

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/savings-circle/backend/internal/models"
	"gorm.io/gorm"
)

// GroupService handles group persistence
type GroupService struct {
	db *gorm.DB
}

// NewGroupService creates a new GroupService
func NewGroupService(db *gorm.DB) *GroupService {
	return &GroupService{db: db}
}

type CreateGroupInput struct {
	Name         string
	Description  string
	GroupAddress string
	CreatorID    uuid.UUID
}

// GroupUpdate carries the fields of a partial update; nil means untouched
type GroupUpdate struct {
	Name         *string
	Description  *string
	GroupAddress *string
}

func (u GroupUpdate) empty() bool {
	return u.Name == nil && u.Description == nil && u.GroupAddress == nil
}

// Create inserts a group owned by in.CreatorID.
// The same contract address may back several groups.
func (s *GroupService) Create(ctx context.Context, in CreateGroupInput) (*models.Group, error) {
	group := &models.Group{
		Name:         strings.TrimSpace(in.Name),
		Description:  strings.TrimSpace(in.Description),
		CreatorID:    in.CreatorID,
		GroupAddress: models.NormalizeAddress(in.GroupAddress),
	}
	if group.GroupAddress == "" {
		return nil, ErrInvalidAddress
	}

	if err := s.db.WithContext(ctx).Create(group).Error; err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	return group, nil
}

// GetByID returns the group or ErrGroupNotFound
func (s *GroupService) GetByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	return s.first(s.db.WithContext(ctx).Where("id = ?", id))
}

// GetWithParticipants returns the group with its participants preloaded
func (s *GroupService) GetWithParticipants(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	return s.first(s.db.WithContext(ctx).
		Preload("Participants", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC").Order("user_address ASC")
		}).
		Where("id = ?", id))
}

// GetByAddress returns the oldest group backed by the contract address
func (s *GroupService) GetByAddress(ctx context.Context, address string) (*models.Group, error) {
	address = models.NormalizeAddress(address)
	if address == "" {
		return nil, ErrInvalidAddress
	}
	return s.first(s.db.WithContext(ctx).Where("group_address = ?", address).Order("created_at ASC").Order("id ASC"))
}

func (s *GroupService) first(query *gorm.DB) (*models.Group, error) {
	var group models.Group
	if err := query.First(&group).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to fetch group: %w", err)
	}
	return &group, nil
}

// RequireCreator loads the group and checks userID owns it.
// Returns ErrGroupNotFound or ErrForbidden.
func (s *GroupService) RequireCreator(ctx context.Context, groupID, userID uuid.UUID) (*models.Group, error) {
	group, err := s.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group.CreatorID != userID {
		return nil, ErrForbidden
	}
	return group, nil
}

// Update applies a partial update on behalf of actorID, who must be the creator
func (s *GroupService) Update(ctx context.Context, groupID, actorID uuid.UUID, upd GroupUpdate) (*models.Group, error) {
	var updated *models.Group
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.Where("id = ?", groupID).First(&group).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}
		if group.CreatorID != actorID {
			return ErrForbidden
		}

		if !upd.empty() {
			changes := map[string]interface{}{"updated_at": time.Now()}
			if upd.Name != nil {
				changes["name"] = strings.TrimSpace(*upd.Name)
			}
			if upd.Description != nil {
				changes["description"] = strings.TrimSpace(*upd.Description)
			}
			if upd.GroupAddress != nil {
				changes["group_address"] = models.NormalizeAddress(*upd.GroupAddress)
			}
			if err := tx.Model(&group).Updates(changes).Error; err != nil {
				return err
			}
			if err := tx.Where("id = ?", groupID).First(&group).Error; err != nil {
				return err
			}
		}

		updated = &group
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrGroupNotFound) || errors.Is(err, ErrForbidden) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update group: %w", err)
	}
	return updated, nil
}

// ListByCreator returns groups created by userID, newest first
func (s *GroupService) ListByCreator(ctx context.Context, userID uuid.UUID) ([]models.Group, error) {
	var groups []models.Group
	if err := s.db.WithContext(ctx).
		Where("creator_id = ?", userID).
		Order("created_at DESC").
		Order("id ASC").
		Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// ListByParticipant returns the groups address is a participant of
func (s *GroupService) ListByParticipant(ctx context.Context, address string) ([]models.Group, error) {
	address = models.NormalizeAddress(address)
	if address == "" {
		return nil, ErrInvalidAddress
	}

	memberships := s.db.Model(&models.Participant{}).
		Select("group_id").
		Where("user_address = ?", address)

	var groups []models.Group
	if err := s.db.WithContext(ctx).
		Where("id IN (?)", memberships).
		Order("created_at DESC").
		Order("id ASC").
		Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// ListAll returns every group, oldest first
func (s *GroupService) ListAll(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	if err := s.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}
