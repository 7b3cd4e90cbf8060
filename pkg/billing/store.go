package billing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store persists plans and subscriptions
type Store struct {
	db *sql.DB
}

// NewStore creates a new billing store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreatePlan inserts a new plan. Workspace-scoped plans must name a
// workspace; global plans must not.
func (s *Store) CreatePlan(ctx context.Context, plan *Plan) error {
	if plan.Scope == "" {
		plan.Scope = ScopeGlobal
	}
	if plan.Scope == ScopeWorkspace && plan.WorkspaceID == "" {
		return ErrWorkspaceRequired
	}
	if plan.Scope == ScopeGlobal {
		plan.WorkspaceID = ""
	}
	if plan.Interval == "" {
		plan.Interval = IntervalMonthly
	}
	if plan.Currency == "" {
		plan.Currency = "usd"
	}

	plan.ID = uuid.New().String()
	plan.Status = PlanActive
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plans (id, name, scope, workspace_id, status, billing_interval, price_cents, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		plan.ID, plan.Name, plan.Scope, nullIfEmpty(plan.WorkspaceID), plan.Status,
		plan.Interval, plan.PriceCents, plan.Currency, plan.CreatedAt, plan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	return nil
}

// GetPlan retrieves a plan by ID
func (s *Store) GetPlan(ctx context.Context, planID string) (*Plan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, scope, workspace_id, status, billing_interval, price_cents, currency, created_at, updated_at
		FROM plans WHERE id = $1`, planID)
	return scanPlan(row)
}

func scanPlan(row *sql.Row) (*Plan, error) {
	var plan Plan
	var workspaceID sql.NullString
	err := row.Scan(&plan.ID, &plan.Name, &plan.Scope, &workspaceID, &plan.Status,
		&plan.Interval, &plan.PriceCents, &plan.Currency, &plan.CreatedAt, &plan.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	plan.WorkspaceID = workspaceID.String
	return &plan, nil
}

// UpdatePlan modifies a plan's name, price and currency. Scope and
// workspace are fixed at creation so existing entitlements cannot be
// silently widened.
func (s *Store) UpdatePlan(ctx context.Context, plan *Plan) error {
	plan.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE plans SET name = $1, billing_interval = $2, price_cents = $3, currency = $4, updated_at = $5
		WHERE id = $6`,
		plan.Name, plan.Interval, plan.PriceCents, plan.Currency, plan.UpdatedAt, plan.ID)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrPlanNotFound
	}
	return nil
}

// SetPlanStatus archives or reactivates a plan
func (s *Store) SetPlanStatus(ctx context.Context, planID string, status PlanStatus) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE plans SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), planID)
	if err != nil {
		return fmt.Errorf("failed to set plan status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrPlanNotFound
	}
	return nil
}

// ListPlans returns plans matching the filter
func (s *Store) ListPlans(ctx context.Context, filter ListPlansFilter) ([]Plan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, scope, workspace_id, status, billing_interval, price_cents, currency, created_at, updated_at
		FROM plans
		WHERE ($1 = '' OR scope = $1)
		  AND ($2 = '' OR workspace_id = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY created_at`,
		string(filter.Scope), filter.WorkspaceID, string(filter.Status))
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []Plan
	for rows.Next() {
		var plan Plan
		var workspaceID sql.NullString
		if err := rows.Scan(&plan.ID, &plan.Name, &plan.Scope, &workspaceID, &plan.Status,
			&plan.Interval, &plan.PriceCents, &plan.Currency, &plan.CreatedAt, &plan.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plan.WorkspaceID = workspaceID.String
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// CreateSubscription inserts a subscription row
func (s *Store) CreateSubscription(ctx context.Context, sub *UserSubscription) error {
	sub.ID = uuid.New().String()
	sub.Status = SubscriptionActive
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	if sub.Provider == "" {
		sub.Provider = "manual"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_subscriptions (id, user_id, plan_id, status, start_at, end_at, provider, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sub.ID, sub.UserID, sub.PlanID, sub.Status, sub.StartAt, sub.EndAt, sub.Provider, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// GetSubscription retrieves a subscription by ID
func (s *Store) GetSubscription(ctx context.Context, subscriptionID string) (*UserSubscription, error) {
	var sub UserSubscription
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, plan_id, status, start_at, end_at, provider, created_at, updated_at
		FROM user_subscriptions WHERE id = $1`, subscriptionID).
		Scan(&sub.ID, &sub.UserID, &sub.PlanID, &sub.Status, &sub.StartAt, &sub.EndAt,
			&sub.Provider, &sub.CreatedAt, &sub.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return &sub, nil
}

// SetSubscriptionStatus transitions a subscription
func (s *Store) SetSubscriptionStatus(ctx context.Context, subscriptionID string, status SubscriptionStatus) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE user_subscriptions SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to set subscription status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// ListSubscriptions returns all of a user's subscriptions, newest first
func (s *Store) ListSubscriptions(ctx context.Context, userID string) ([]UserSubscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, plan_id, status, start_at, end_at, provider, created_at, updated_at
		FROM user_subscriptions WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []UserSubscription
	for rows.Next() {
		var sub UserSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.PlanID, &sub.Status, &sub.StartAt,
			&sub.EndAt, &sub.Provider, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// ActiveEntitlements returns the user's active subscriptions joined
// with their plans. Only active plans count, an archived plan grants
// nothing even while its subscriptions live on.
func (s *Store) ActiveEntitlements(ctx context.Context, userID string) ([]Entitlement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.user_id, s.plan_id, s.status, s.start_at, s.end_at, s.provider, s.created_at, s.updated_at,
		       p.id, p.name, p.scope, p.workspace_id, p.status, p.billing_interval, p.price_cents, p.currency, p.created_at, p.updated_at
		FROM user_subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.user_id = $1 AND s.status = 'active' AND p.status = 'active'
		ORDER BY s.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entitlements: %w", err)
	}
	defer rows.Close()

	var entitlements []Entitlement
	for rows.Next() {
		var e Entitlement
		var workspaceID sql.NullString
		if err := rows.Scan(
			&e.Subscription.ID, &e.Subscription.UserID, &e.Subscription.PlanID, &e.Subscription.Status,
			&e.Subscription.StartAt, &e.Subscription.EndAt, &e.Subscription.Provider,
			&e.Subscription.CreatedAt, &e.Subscription.UpdatedAt,
			&e.Plan.ID, &e.Plan.Name, &e.Plan.Scope, &workspaceID, &e.Plan.Status,
			&e.Plan.Interval, &e.Plan.PriceCents, &e.Plan.Currency, &e.Plan.CreatedAt, &e.Plan.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entitlement: %w", err)
		}
		e.Plan.WorkspaceID = workspaceID.String
		entitlements = append(entitlements, e)
	}
	return entitlements, rows.Err()
}

// ExpireOverdue flips active subscriptions whose term has passed to
// expired, returning the affected user IDs so caches can be dropped.
func (s *Store) ExpireOverdue(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT user_id FROM user_subscriptions
		WHERE status = 'active' AND end_at < $1`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to find overdue subscriptions: %w", err)
	}

	var userIDs []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan overdue user: %w", err)
		}
		userIDs = append(userIDs, userID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(userIDs) == 0 {
		return nil, nil
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE user_subscriptions SET status = 'expired', updated_at = $1
		WHERE status = 'active' AND end_at < $2`, time.Now().UTC(), now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to expire subscriptions: %w", err)
	}
	return userIDs, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
