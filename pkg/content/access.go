package content

import (
	"context"

	"github.com/platinummonkey/haven/pkg/billing"
	"github.com/platinummonkey/haven/pkg/observability"
	"github.com/platinummonkey/haven/pkg/rbac"
)

// EntitlementSource answers entitlement queries for the gate. Both the
// billing service and its raw store satisfy it.
type EntitlementSource interface {
	ActiveEntitlements(ctx context.Context, userID string) ([]billing.Entitlement, error)
}

// Gate decides whether a viewer may access an item. CanAccess is
// total; failures in the underlying stores deny rather than error so
// an outage can never unlock premium content.
type Gate struct {
	checker      rbac.Checker
	entitlements EntitlementSource
	logger       *observability.Logger
	metrics      *observability.Metrics
}

// NewGate creates an access gate. metrics may be nil.
func NewGate(checker rbac.Checker, entitlements EntitlementSource, logger *observability.Logger, metrics *observability.Metrics) *Gate {
	return &Gate{
		checker:      checker,
		entitlements: entitlements,
		logger:       logger,
		metrics:      metrics,
	}
}

// CanAccess reports whether the viewer may see the item. An empty
// userID means an anonymous visitor.
func (g *Gate) CanAccess(ctx context.Context, userID string, item *Item) bool {
	allowed := g.canAccess(ctx, userID, item)
	if g.metrics != nil {
		g.metrics.RecordGateDecision(string(item.Access), allowed)
	}
	return allowed
}

func (g *Gate) canAccess(ctx context.Context, userID string, item *Item) bool {
	if item.Access == AccessFree {
		return true
	}
	if userID == "" {
		return false
	}
	if g.checker.IsSuperAdmin(ctx, userID) {
		return true
	}

	entitlements, err := g.entitlements.ActiveEntitlements(ctx, userID)
	if err != nil {
		g.logger.WithError(err).WithFields(map[string]interface{}{
			"user_id": userID,
			"item_id": item.ID,
		}).Error("Entitlement lookup failed, denying access")
		return false
	}

	for _, e := range entitlements {
		if e.Plan.Unlocks(item.WorkspaceID) {
			return true
		}
	}
	return false
}
