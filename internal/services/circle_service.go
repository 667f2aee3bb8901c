/**
 * @description
 * Circle Service for on-chain circle state.
 * Reads the circle contract behind a group, derives the display status and
 * participant states, and caches the results in Redis.
 *
 * @dependencies
 * - backend/internal/chain
 * - backend/internal/circle
 * - github.com/redis/go-redis/v9
 * - golang.org/x/sync/errgroup
 *
 * @notes
 * - The chain path never writes to Postgres; stored flags and on-chain facts meet only here.
 * - RefreshAll is single-writer across workers via a Postgres advisory lock.
 */

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/savings-circle/backend/internal/chain"
	"github.com/savings-circle/backend/internal/circle"
	"github.com/savings-circle/backend/internal/logger"
	"github.com/savings-circle/backend/internal/metrics"
	"github.com/savings-circle/backend/internal/models"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	// CircleUpdateChannel carries CircleSnapshot JSON published by the worker
	CircleUpdateChannel = "circles:updates"

	DefaultCircleCacheTTL = 30 * time.Second

	circleRefreshLockKey int64 = 0x53434952 // "SCIR"

	// parallel contract reads per refresh run
	refreshConcurrency = 4
)

// ErrRefreshInProgress means another worker holds the refresh lock
var ErrRefreshInProgress = errors.New("circle refresh already running")

// CircleChainReader is the contract read surface the service needs
type CircleChainReader interface {
	ReadCircle(ctx context.Context, contract, viewer string) (circle.Reads, error)
	ReadMembers(ctx context.Context, contract string, addresses []string) (map[string]chain.MemberFacts, error)
}

// CircleSnapshot is a derived circle view tied to its group
type CircleSnapshot struct {
	GroupID      uuid.UUID `json:"groupId"`
	GroupAddress string    `json:"groupAddress"`
	Viewer       string    `json:"viewer,omitempty"`
	circle.View
	CurrentPotFormatted      string    `json:"currentPotFormatted"`
	RecurringAmountFormatted string    `json:"recurringAmountFormatted"`
	UpdatedAt                time.Time `json:"updatedAt"`
}

// ParticipantStatusView is one participant's derived lifecycle state
type ParticipantStatusView struct {
	ParticipantID uuid.UUID               `json:"participantId"`
	UserAddress   string                  `json:"userAddress"`
	Status        circle.ParticipantState `json:"status"`
	Message       string                  `json:"message"`
	OnChain       bool                    `json:"onChain"`
}

// CircleServiceOptions tunes formatting and caching
type CircleServiceOptions struct {
	TokenDecimals int32
	CacheTTL      time.Duration
}

// CircleService combines stored groups with contract reads
type CircleService struct {
	db           *gorm.DB
	groups       *GroupService
	participants *ParticipantService
	reader       CircleChainReader
	redis        *redis.Client

	decimals int32
	ttl      time.Duration
	now      func() time.Time
}

// NewCircleService creates a new CircleService. reader may be nil when no RPC
// endpoint is configured; views then report ErrCircleUnavailable.
func NewCircleService(db *gorm.DB, groups *GroupService, participants *ParticipantService, reader CircleChainReader, rdb *redis.Client, opts CircleServiceOptions) *CircleService {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCircleCacheTTL
	}
	return &CircleService{
		db:           db,
		groups:       groups,
		participants: participants,
		reader:       reader,
		redis:        rdb,
		decimals:     opts.TokenDecimals,
		ttl:          ttl,
		now:          time.Now,
	}
}

func circleViewKey(groupAddress, viewer string) string {
	return fmt.Sprintf("circle:view:%s:%s", groupAddress, viewer)
}

// GetView returns the derived circle view of a group as seen by viewer (may be empty).
// A viewer that is not a hex address fails with ErrInvalidViewer.
func (s *CircleService) GetView(ctx context.Context, groupID uuid.UUID, viewer string) (*CircleSnapshot, error) {
	viewer = models.NormalizeAddress(viewer)
	if viewer != "" && !chain.IsAddress(viewer) {
		return nil, ErrInvalidViewer
	}

	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}

	// Cached per contract, so the group fields are stamped on the way out
	key := circleViewKey(group.GroupAddress, viewer)
	cached, err := getFromCache[CircleSnapshot](ctx, s.redis, key)
	if err != nil {
		logger.Error("CircleService: Cache error: %v", err)
	}
	if cached != nil {
		cached.GroupID = group.ID
		return cached, nil
	}

	snapshot, err := s.snapshot(ctx, group, viewer)
	if err != nil {
		return nil, err
	}

	if err := setInCache(ctx, s.redis, key, snapshot, s.ttl); err != nil {
		logger.Error("CircleService: Failed to cache view: %v", err)
	}
	return snapshot, nil
}

func (s *CircleService) snapshot(ctx context.Context, group *models.Group, viewer string) (*CircleSnapshot, error) {
	view, at, err := s.readView(ctx, group.GroupAddress, viewer)
	if err != nil {
		return nil, err
	}
	return s.newSnapshot(group, viewer, view, at), nil
}

// readView reads the contract at address and derives its view
func (s *CircleService) readView(ctx context.Context, address, viewer string) (circle.View, time.Time, error) {
	if s.reader == nil {
		return circle.View{}, time.Time{}, ErrCircleUnavailable
	}
	if !chain.IsAddress(address) {
		return circle.View{}, time.Time{}, ErrCircleNotDeployed
	}

	reads, err := s.reader.ReadCircle(ctx, address, viewer)
	if err != nil {
		metrics.RecordChainRead("error")
		logger.Warn("CircleService: Read failed for %s: %v", address, err)
		if errors.Is(err, chain.ErrInvalidAddress) {
			return circle.View{}, time.Time{}, fmt.Errorf("%w: %w", ErrInvalidViewer, err)
		}
		return circle.View{}, time.Time{}, fmt.Errorf("%w: %w", ErrCircleUnavailable, err)
	}

	now := s.now()
	view, ok := circle.Derive(reads, now)
	if !ok {
		metrics.RecordChainRead("incomplete")
		return circle.View{}, time.Time{}, ErrCircleUnavailable
	}
	metrics.RecordChainRead("ok")
	return view, now, nil
}

func (s *CircleService) newSnapshot(group *models.Group, viewer string, view circle.View, at time.Time) *CircleSnapshot {
	return &CircleSnapshot{
		GroupID:                  group.ID,
		GroupAddress:             group.GroupAddress,
		Viewer:                   viewer,
		View:                     view,
		CurrentPotFormatted:      circle.FormatUnits(view.CurrentPot, s.decimals),
		RecurringAmountFormatted: circle.FormatUnits(view.RecurringAmount, s.decimals),
		UpdatedAt:                at,
	}
}

// ParticipantStatuses derives every participant's state. On-chain facts are
// best effort; without them the stored flags decide.
func (s *CircleService) ParticipantStatuses(ctx context.Context, groupID uuid.UUID) ([]ParticipantStatusView, error) {
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	participants, err := s.participants.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	facts := map[string]chain.MemberFacts{}
	if s.reader != nil && len(participants) > 0 && chain.IsAddress(group.GroupAddress) {
		addresses := make([]string, len(participants))
		for i, p := range participants {
			addresses[i] = p.UserAddress
		}
		read, err := s.reader.ReadMembers(ctx, group.GroupAddress, addresses)
		if err != nil {
			logger.Warn("CircleService: Member reads failed for %s: %v", group.GroupAddress, err)
		} else {
			facts = read
		}
	}

	statuses := make([]ParticipantStatusView, 0, len(participants))
	for _, p := range participants {
		f, onChain := facts[p.UserAddress]
		state, msg := circle.ParticipantStatus(circle.ParticipantFacts{
			Accepted:     p.Accepted,
			Paid:         p.Paid,
			Contributed:  p.Contributed,
			IsMember:     f.IsMember,
			HasDeposited: f.HasDeposited,
		})
		statuses = append(statuses, ParticipantStatusView{
			ParticipantID: p.ID,
			UserAddress:   p.UserAddress,
			Status:        state,
			Message:       msg,
			OnChain:       onChain,
		})
	}
	return statuses, nil
}

// RefreshAll recomputes the viewer-less view of every circle contract, caches it
// and publishes one snapshot per group on CircleUpdateChannel. Groups sharing a
// contract share one read. Returns the number of contracts refreshed.
func (s *CircleService) RefreshAll(ctx context.Context) (int, error) {
	var refreshed int
	err := s.withRefreshLock(ctx, func() error {
		groups, err := s.groups.ListAll(ctx)
		if err != nil {
			return err
		}

		byAddress := make(map[string][]*models.Group, len(groups))
		var addresses []string
		for i := range groups {
			addr := groups[i].GroupAddress
			if _, ok := byAddress[addr]; !ok {
				addresses = append(addresses, addr)
			}
			byAddress[addr] = append(byAddress[addr], &groups[i])
		}

		var refreshedCount atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(refreshConcurrency)
		for _, addr := range addresses {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				view, at, err := s.readView(gctx, addr, "")
				if err != nil {
					logger.Warn("CircleService: Skipping %s: %v", addr, err)
					return nil
				}

				members := byAddress[addr]
				s.cache(gctx, s.newSnapshot(members[0], "", view, at))
				for _, group := range members {
					s.publish(gctx, s.newSnapshot(group, "", view, at))
				}
				refreshedCount.Add(1)
				return nil
			})
		}
		err = g.Wait()
		refreshed = int(refreshedCount.Load())
		return err
	})
	return refreshed, err
}

func (s *CircleService) cache(ctx context.Context, snapshot *CircleSnapshot) {
	if s.redis == nil {
		return
	}
	if err := setInCache(ctx, s.redis, circleViewKey(snapshot.GroupAddress, ""), snapshot, s.ttl); err != nil {
		logger.Error("CircleService: Failed to cache view: %v", err)
	}
}

func (s *CircleService) publish(ctx context.Context, snapshot *CircleSnapshot) {
	if s.redis == nil {
		return
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		logger.Error("CircleService: Failed to encode snapshot: %v", err)
		return
	}
	if err := s.redis.Publish(ctx, CircleUpdateChannel, payload).Err(); err != nil {
		logger.Error("CircleService: Failed to publish snapshot: %v", err)
	}
}

// withRefreshLock runs fn while holding the session-level advisory lock on one
// pinned connection. Non-Postgres databases (tests) run fn unlocked.
func (s *CircleService) withRefreshLock(ctx context.Context, fn func() error) error {
	if s.db == nil || s.db.Dialector.Name() != "postgres" {
		return fn()
	}

	return s.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		var locked bool
		if err := conn.Raw("SELECT pg_try_advisory_lock(?)", circleRefreshLockKey).Scan(&locked).Error; err != nil {
			return err
		}
		if !locked {
			return ErrRefreshInProgress
		}
		defer func() {
			if err := conn.Exec("SELECT pg_advisory_unlock(?)", circleRefreshLockKey).Error; err != nil {
				logger.Error("CircleService: Failed to release refresh lock: %v", err)
			}
		}()
		return fn()
	})
}
