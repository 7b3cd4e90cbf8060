package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/haven/pkg/observability"
	"github.com/platinummonkey/haven/pkg/storage/postgres"
)

const entitlementCacheTTL = 30 * time.Second

// Service layers subscription rules and entitlement caching over the
// billing store
type Service struct {
	store  *Store
	redis  *postgres.RedisClient
	logger *observability.Logger
}

// NewService creates a billing service. redis may be nil, entitlement
// lookups then always hit the database.
func NewService(store *Store, redis *postgres.RedisClient, logger *observability.Logger) *Service {
	return &Service{
		store:  store,
		redis:  redis,
		logger: logger,
	}
}

// Store exposes the underlying store for plan administration
func (s *Service) Store() *Store {
	return s.store
}

// Subscribe starts a subscription to an active plan. The term length
// comes from the plan's billing interval.
func (s *Service) Subscribe(ctx context.Context, userID, planID, provider string) (*UserSubscription, error) {
	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive() {
		return nil, ErrPlanArchived
	}

	now := time.Now().UTC()
	sub := &UserSubscription{
		UserID:   userID,
		PlanID:   planID,
		StartAt:  now,
		EndAt:    termEnd(now, plan.Interval),
		Provider: provider,
	}
	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	s.invalidateEntitlements(ctx, userID)
	return sub, nil
}

// AssignPlan grants a subscription without a payment provider, for
// admin comps and migrations
func (s *Service) AssignPlan(ctx context.Context, userID, planID string) (*UserSubscription, error) {
	return s.Subscribe(ctx, userID, planID, "admin")
}

// CancelSubscription cancels an active subscription. Canceling a
// subscription that is already canceled or expired is an error.
func (s *Service) CancelSubscription(ctx context.Context, subscriptionID string) error {
	sub, err := s.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}
	if !sub.IsActive() {
		return fmt.Errorf("subscription %s is %s: %w", subscriptionID, sub.Status, ErrSubscriptionNotFound)
	}

	if err := s.store.SetSubscriptionStatus(ctx, subscriptionID, SubscriptionCanceled); err != nil {
		return err
	}

	s.invalidateEntitlements(ctx, sub.UserID)
	return nil
}

// ListSubscriptions returns a user's full subscription history
func (s *Service) ListSubscriptions(ctx context.Context, userID string) ([]UserSubscription, error) {
	return s.store.ListSubscriptions(ctx, userID)
}

// ActiveEntitlements returns the user's live entitlements, consulting
// the Redis cache when one is configured. Cache failures fall through
// to the database.
func (s *Service) ActiveEntitlements(ctx context.Context, userID string) ([]Entitlement, error) {
	key := entitlementKey(userID)

	if s.redis != nil {
		var cached []Entitlement
		found, err := s.redis.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("Entitlement cache read failed")
		} else if found {
			return cached, nil
		}
	}

	entitlements, err := s.store.ActiveEntitlements(ctx, userID)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if err := s.redis.SetJSON(ctx, key, entitlements, entitlementCacheTTL); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("Entitlement cache write failed")
		}
	}
	return entitlements, nil
}

// ExpireOverdue sweeps past-term subscriptions to expired. Scheduled
// from the binary, safe to run concurrently with traffic.
func (s *Service) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	userIDs, err := s.store.ExpireOverdue(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, userID := range userIDs {
		s.invalidateEntitlements(ctx, userID)
	}
	if len(userIDs) > 0 {
		s.logger.WithField("users", len(userIDs)).Info("Expired overdue subscriptions")
	}
	return len(userIDs), nil
}

func (s *Service) invalidateEntitlements(ctx context.Context, userID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Delete(ctx, entitlementKey(userID)); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Entitlement cache invalidation failed")
	}
}

func entitlementKey(userID string) string {
	return "haven:entitlements:" + userID
}

func termEnd(start time.Time, interval PlanInterval) time.Time {
	if interval == IntervalYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
