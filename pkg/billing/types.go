package billing

import (
	"errors"
	"time"
)

// PlanScope determines which workspaces a plan unlocks
type PlanScope string

const (
	// ScopeGlobal plans unlock premium content in every workspace
	ScopeGlobal PlanScope = "global"

	// ScopeWorkspace plans unlock premium content in one workspace
	ScopeWorkspace PlanScope = "workspace"
)

// PlanStatus is the lifecycle state of a plan
type PlanStatus string

const (
	PlanActive   PlanStatus = "active"
	PlanArchived PlanStatus = "archived"
)

// PlanInterval is the billing period of a plan
type PlanInterval string

const (
	IntervalMonthly PlanInterval = "monthly"
	IntervalYearly  PlanInterval = "yearly"
)

// Plan represents a subscription plan
type Plan struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Scope       PlanScope    `json:"scope"`
	WorkspaceID string       `json:"workspace_id,omitempty"`
	Status      PlanStatus   `json:"status"`
	Interval    PlanInterval `json:"interval"`
	PriceCents  int64        `json:"price_cents"`
	Currency    string       `json:"currency"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// IsActive reports whether the plan can grant entitlements
func (p *Plan) IsActive() bool {
	return p.Status == PlanActive
}

// Unlocks reports whether the plan grants premium access in the given
// workspace
func (p *Plan) Unlocks(workspaceID string) bool {
	if p.Scope == ScopeGlobal {
		return true
	}
	return p.WorkspaceID == workspaceID
}

// SubscriptionStatus is the lifecycle state of a subscription
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionExpired  SubscriptionStatus = "expired"
)

// UserSubscription ties a user to a plan for a term
type UserSubscription struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	PlanID    string             `json:"plan_id"`
	Status    SubscriptionStatus `json:"status"`
	StartAt   time.Time          `json:"start_at"`
	EndAt     time.Time          `json:"end_at"`
	Provider  string             `json:"provider"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// IsActive reports whether the subscription is in good standing
func (s *UserSubscription) IsActive() bool {
	return s.Status == SubscriptionActive
}

// Entitlement is an active subscription joined with its plan
type Entitlement struct {
	Subscription UserSubscription `json:"subscription"`
	Plan         Plan             `json:"plan"`
}

// ListPlansFilter narrows ListPlans results. Zero values match
// everything.
type ListPlansFilter struct {
	Scope       PlanScope
	WorkspaceID string
	Status      PlanStatus
}

// Store errors
var (
	ErrPlanNotFound         = errors.New("plan not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPlanArchived         = errors.New("plan is archived")
	ErrWorkspaceRequired    = errors.New("workspace-scoped plans need a workspace id")
)
