package services

import (
	"context"
	"errors"

	"github.com/savings-circle/backend/internal/logger"
	"github.com/savings-circle/backend/internal/models"
)

// CreatorResolver maps a wallet address to the local user that owns it
type CreatorResolver interface {
	LocalUserForAddress(ctx context.Context, address string) (*models.User, error)
}

// ListForAddress returns the groups the address participates in plus the
// groups created by its owner, deduplicated by id. Participant groups come first.
// Failing to resolve the owner only drops the created groups.
func (s *GroupService) ListForAddress(ctx context.Context, address string, owners CreatorResolver) ([]models.Group, error) {
	address = models.NormalizeAddress(address)
	if address == "" {
		return nil, ErrInvalidAddress
	}

	groups, err := s.ListByParticipant(ctx, address)
	if err != nil {
		return nil, err
	}
	if owners == nil {
		return groups, nil
	}

	owner, err := owners.LocalUserForAddress(ctx, address)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			logger.Warn("GroupService: Could not resolve owner of %s: %v", address, err)
		}
		return groups, nil
	}

	created, err := s.ListByCreator(ctx, owner.ID)
	if err != nil {
		logger.Warn("GroupService: Could not list groups created by %s: %v", owner.ID, err)
		return groups, nil
	}

	seen := make(map[string]struct{}, len(groups)+len(created))
	for _, g := range groups {
		seen[g.ID.String()] = struct{}{}
	}
	for _, g := range created {
		if _, dup := seen[g.ID.String()]; dup {
			continue
		}
		seen[g.ID.String()] = struct{}{}
		groups = append(groups, g)
	}
	return groups, nil
}
