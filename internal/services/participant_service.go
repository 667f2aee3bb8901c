/**
 * @description
 * Participant Service for circle membership records.
 * Handles single and batch inserts, flag updates and payout eligibility.
 *
 * @dependencies
 * - gorm.io/gorm
 * - backend/internal/models
 *
 * @notes
 * - Existence checks and inserts share one transaction; the unique index on
 *   (group_id, user_address) turns any remaining race into ErrParticipantExists.
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

// ParticipantService handles participant persistence
type ParticipantService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewParticipantService creates a new ParticipantService
func NewParticipantService(db *gorm.DB) *ParticipantService {
	return &ParticipantService{db: db, now: time.Now}
}

// ParticipantInput describes one participant to add; nil flags default to false
type ParticipantInput struct {
	UserAddress string
	Accepted    *bool
	Paid        *bool
	Contributed *bool
}

// TimeOverride is an explicitly supplied timestamp; a nil Value means "set to null"
type TimeOverride struct {
	Value *time.Time
}

// ParticipantUpdate carries a partial update. Nil fields are untouched.
// AcceptedAt/PaidAt, when supplied, override the timestamp derived from Accepted/Paid.
type ParticipantUpdate struct {
	Accepted    *bool
	Paid        *bool
	Contributed *bool
	AcceptedAt  *TimeOverride
	PaidAt      *TimeOverride
}

// BatchResult reports the outcome of CreateBatch
type BatchResult struct {
	Participants []models.Participant `json:"participants"`
	Created      int                  `json:"created"`
	Skipped      int                  `json:"skipped"`
}

func (in ParticipantInput) build(groupID uuid.UUID, now time.Time) models.Participant {
	p := models.Participant{
		GroupID:     groupID,
		UserAddress: models.NormalizeAddress(in.UserAddress),
	}
	if in.Accepted != nil {
		p.SetAccepted(*in.Accepted, now)
	}
	if in.Paid != nil {
		p.SetPaid(*in.Paid, now)
	}
	if in.Contributed != nil {
		p.Contributed = *in.Contributed
	}
	return p
}

// ListByGroup returns every participant of the group by creation time.
// Rows created in the same batch share a timestamp and fall back to address order.
func (s *ParticipantService) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Participant, error) {
	participants := []models.Participant{}
	if err := s.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Order("user_address ASC").
		Find(&participants).Error; err != nil {
		return nil, err
	}
	return participants, nil
}

// GetByID returns the participant or ErrParticipantNotFound
func (s *ParticipantService) GetByID(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	var p models.Participant
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to fetch participant: %w", err)
	}
	return &p, nil
}

// Create adds one participant, failing with ErrParticipantExists on a duplicate address
func (s *ParticipantService) Create(ctx context.Context, groupID uuid.UUID, in ParticipantInput) (*models.Participant, error) {
	p := in.build(groupID, s.now())
	if p.UserAddress == "" {
		return nil, ErrInvalidAddress
	}

	err := withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&models.Participant{}).
				Where("group_id = ? AND user_address = ?", groupID, p.UserAddress).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return ErrParticipantExists
			}
			return tx.Create(&p).Error
		})
	})
	if err != nil {
		if errors.Is(err, ErrParticipantExists) || isUniqueViolation(err) {
			return nil, ErrParticipantExists
		}
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}
	return &p, nil
}

// CreateBatch inserts the inputs whose address is not yet in the group.
// The participant matching adminAddress is always created accepted.
// Fails with ErrAllParticipantsExist when nothing would be inserted.
func (s *ParticipantService) CreateBatch(ctx context.Context, groupID uuid.UUID, inputs []ParticipantInput, adminAddress string) (*BatchResult, error) {
	if len(inputs) == 0 {
		return nil, ErrNoParticipants
	}

	now := s.now()
	admin := models.NormalizeAddress(adminAddress)

	addresses := make([]string, 0, len(inputs))
	for _, in := range inputs {
		addr := models.NormalizeAddress(in.UserAddress)
		if addr == "" {
			return nil, ErrInvalidAddress
		}
		addresses = append(addresses, addr)
	}

	result := &BatchResult{}
	err := withRetry(ctx, func() error {
		*result = BatchResult{}
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.insertNew(tx, groupID, inputs, addresses, admin, now, result)
		})
	})

	if err != nil {
		if errors.Is(err, ErrAllParticipantsExist) {
			return nil, err
		}
		if isUniqueViolation(err) {
			// Lost a race with a concurrent insert; the caller can retry
			return nil, ErrParticipantExists
		}
		return nil, fmt.Errorf("failed to create participants: %w", err)
	}
	return result, nil
}

// insertNew inserts the inputs not already present, recording counts in result
func (s *ParticipantService) insertNew(tx *gorm.DB, groupID uuid.UUID, inputs []ParticipantInput, addresses []string, admin string, now time.Time, result *BatchResult) error {
	var existing []string
	if err := tx.Model(&models.Participant{}).
		Where("group_id = ? AND user_address IN ?", groupID, addresses).
		Pluck("user_address", &existing).Error; err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(existing)+len(inputs))
	for _, addr := range existing {
		seen[addr] = struct{}{}
	}

	toInsert := make([]models.Participant, 0, len(inputs))
	for _, in := range inputs {
		p := in.build(groupID, now)
		if _, dup := seen[p.UserAddress]; dup {
			result.Skipped++
			continue
		}
		seen[p.UserAddress] = struct{}{}

		if admin != "" && p.UserAddress == admin {
			p.SetAccepted(true, now)
		}
		toInsert = append(toInsert, p)
	}

	if len(toInsert) == 0 {
		return ErrAllParticipantsExist
	}

	if err := tx.Create(&toInsert).Error; err != nil {
		return err
	}
	result.Participants = toInsert
	result.Created = len(toInsert)
	return nil
}

// Update applies upd to the participant, which must belong to groupID.
// Returns ErrParticipantNotFound or ErrParticipantGroupMismatch.
func (s *ParticipantService) Update(ctx context.Context, groupID, participantID uuid.UUID, upd ParticipantUpdate) (*models.Participant, error) {
	now := s.now()

	var updated models.Participant
	err := withRetry(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.applyUpdate(tx, groupID, participantID, upd, now, &updated)
		})
	})
	if err != nil {
		if errors.Is(err, ErrParticipantNotFound) || errors.Is(err, ErrParticipantGroupMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update participant: %w", err)
	}
	return &updated, nil
}

func (s *ParticipantService) applyUpdate(tx *gorm.DB, groupID, participantID uuid.UUID, upd ParticipantUpdate, now time.Time, updated *models.Participant) error {
	if err := tx.Where("id = ?", participantID).First(updated).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParticipantNotFound
		}
		return err
	}
	if updated.GroupID != groupID {
		return ErrParticipantGroupMismatch
	}

	changes := participantChanges(upd, now)
	if len(changes) == 0 {
		return nil
	}
	changes["updated_at"] = now

	if err := tx.Model(updated).Updates(changes).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", participantID).First(updated).Error
}

// participantChanges builds the column map. Derived timestamps are written
// first so explicit overrides replace them.
func participantChanges(upd ParticipantUpdate, now time.Time) map[string]interface{} {
	changes := map[string]interface{}{}

	if upd.Accepted != nil {
		changes["accepted"] = *upd.Accepted
		changes["accepted_at"] = derivedTimestamp(*upd.Accepted, now)
	}
	if upd.Paid != nil {
		changes["paid"] = *upd.Paid
		changes["paid_at"] = derivedTimestamp(*upd.Paid, now)
	}
	if upd.Contributed != nil {
		changes["contributed"] = *upd.Contributed
	}
	if upd.AcceptedAt != nil {
		changes["accepted_at"] = timeOrNull(upd.AcceptedAt.Value)
	}
	if upd.PaidAt != nil {
		changes["paid_at"] = timeOrNull(upd.PaidAt.Value)
	}

	return changes
}

func derivedTimestamp(flag bool, now time.Time) interface{} {
	if flag {
		return now
	}
	return nil
}

func timeOrNull(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// ListPayoutEligible returns participants that accepted and have not been paid yet
func (s *ParticipantService) ListPayoutEligible(ctx context.Context, groupID uuid.UUID) ([]models.Participant, error) {
	var participants []models.Participant
	if err := s.db.WithContext(ctx).
		Where("group_id = ? AND accepted = ? AND paid = ?", groupID, true, false).
		Order("created_at ASC").
		Order("user_address ASC").
		Find(&participants).Error; err != nil {
		return nil, err
	}
	return participants, nil
}
