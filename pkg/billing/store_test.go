package billing

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func mustCreatePlan(t *testing.T, store *Store, plan *Plan) *Plan {
	t.Helper()
	if err := store.CreatePlan(context.Background(), plan); err != nil {
		t.Fatalf("CreatePlan failed: %v", err)
	}
	return plan
}

func TestStore_PlanCRUD(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	plan := mustCreatePlan(t, store, &Plan{Name: "All Access", PriceCents: 999})
	if plan.ID == "" {
		t.Error("Expected plan ID to be set")
	}
	if plan.Scope != ScopeGlobal || plan.Interval != IntervalMonthly || plan.Currency != "usd" {
		t.Errorf("Defaults not applied: %+v", plan)
	}
	if plan.Status != PlanActive {
		t.Errorf("New plans should be active, got %s", plan.Status)
	}

	got, err := store.GetPlan(ctx, plan.ID)
	if err != nil {
		t.Fatalf("GetPlan failed: %v", err)
	}
	if got.Name != "All Access" || got.PriceCents != 999 {
		t.Errorf("Unexpected plan: %+v", got)
	}

	got.Name = "All Access Annual"
	got.Interval = IntervalYearly
	got.PriceCents = 9900
	if err := store.UpdatePlan(ctx, got); err != nil {
		t.Fatalf("UpdatePlan failed: %v", err)
	}
	updated, _ := store.GetPlan(ctx, plan.ID)
	if updated.Interval != IntervalYearly || updated.PriceCents != 9900 {
		t.Errorf("Update not persisted: %+v", updated)
	}

	if _, err := store.GetPlan(ctx, "missing"); !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("Expected ErrPlanNotFound, got %v", err)
	}
}

func TestStore_WorkspacePlanRequiresWorkspace(t *testing.T) {
	store := NewStore(setupTestDB(t))

	err := store.CreatePlan(context.Background(), &Plan{Name: "Kids Only", Scope: ScopeWorkspace})
	if !errors.Is(err, ErrWorkspaceRequired) {
		t.Errorf("Expected ErrWorkspaceRequired, got %v", err)
	}

	// Global plans never carry a workspace
	plan := mustCreatePlan(t, store, &Plan{Name: "All Access", Scope: ScopeGlobal, WorkspaceID: "ws-1"})
	if plan.WorkspaceID != "" {
		t.Errorf("Global plan should drop workspace_id, got %q", plan.WorkspaceID)
	}
}

func TestStore_ListPlansFilters(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	global := mustCreatePlan(t, store, &Plan{Name: "All Access"})
	scoped := mustCreatePlan(t, store, &Plan{Name: "Kids Only", Scope: ScopeWorkspace, WorkspaceID: "ws-kids"})
	if err := store.SetPlanStatus(ctx, global.ID, PlanArchived); err != nil {
		t.Fatalf("SetPlanStatus failed: %v", err)
	}

	all, err := store.ListPlans(ctx, ListPlansFilter{})
	if err != nil {
		t.Fatalf("ListPlans failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 plans, got %d", len(all))
	}

	active, _ := store.ListPlans(ctx, ListPlansFilter{Status: PlanActive})
	if len(active) != 1 || active[0].ID != scoped.ID {
		t.Errorf("Expected only the active scoped plan, got %+v", active)
	}

	byWorkspace, _ := store.ListPlans(ctx, ListPlansFilter{WorkspaceID: "ws-kids"})
	if len(byWorkspace) != 1 || byWorkspace[0].ID != scoped.ID {
		t.Errorf("Expected the workspace plan, got %+v", byWorkspace)
	}
}

func TestStore_ActiveEntitlements(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	plan := mustCreatePlan(t, store, &Plan{Name: "All Access"})
	archived := mustCreatePlan(t, store, &Plan{Name: "Legacy"})

	now := time.Now().UTC()
	active := &UserSubscription{UserID: "user-1", PlanID: plan.ID, StartAt: now, EndAt: now.AddDate(0, 1, 0)}
	if err := store.CreateSubscription(ctx, active); err != nil {
		t.Fatalf("CreateSubscription failed: %v", err)
	}
	onArchived := &UserSubscription{UserID: "user-1", PlanID: archived.ID, StartAt: now, EndAt: now.AddDate(0, 1, 0)}
	if err := store.CreateSubscription(ctx, onArchived); err != nil {
		t.Fatalf("CreateSubscription failed: %v", err)
	}
	canceled := &UserSubscription{UserID: "user-1", PlanID: plan.ID, StartAt: now, EndAt: now.AddDate(0, 1, 0)}
	if err := store.CreateSubscription(ctx, canceled); err != nil {
		t.Fatalf("CreateSubscription failed: %v", err)
	}
	if err := store.SetSubscriptionStatus(ctx, canceled.ID, SubscriptionCanceled); err != nil {
		t.Fatalf("SetSubscriptionStatus failed: %v", err)
	}
	if err := store.SetPlanStatus(ctx, archived.ID, PlanArchived); err != nil {
		t.Fatalf("SetPlanStatus failed: %v", err)
	}

	entitlements, err := store.ActiveEntitlements(ctx, "user-1")
	if err != nil {
		t.Fatalf("ActiveEntitlements failed: %v", err)
	}
	if len(entitlements) != 1 {
		t.Fatalf("Expected 1 entitlement, got %d", len(entitlements))
	}
	if entitlements[0].Subscription.ID != active.ID || entitlements[0].Plan.ID != plan.ID {
		t.Errorf("Unexpected entitlement: %+v", entitlements[0])
	}

	none, _ := store.ActiveEntitlements(ctx, "user-2")
	if len(none) != 0 {
		t.Errorf("Expected no entitlements for other user, got %d", len(none))
	}
}

func TestStore_ExpireOverdue(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	plan := mustCreatePlan(t, store, &Plan{Name: "All Access"})

	now := time.Now().UTC()
	overdue := &UserSubscription{UserID: "user-1", PlanID: plan.ID, StartAt: now.AddDate(0, -2, 0), EndAt: now.AddDate(0, -1, 0)}
	current := &UserSubscription{UserID: "user-2", PlanID: plan.ID, StartAt: now, EndAt: now.AddDate(0, 1, 0)}
	for _, sub := range []*UserSubscription{overdue, current} {
		if err := store.CreateSubscription(ctx, sub); err != nil {
			t.Fatalf("CreateSubscription failed: %v", err)
		}
	}

	userIDs, err := store.ExpireOverdue(ctx, now)
	if err != nil {
		t.Fatalf("ExpireOverdue failed: %v", err)
	}
	if len(userIDs) != 1 || userIDs[0] != "user-1" {
		t.Errorf("Expected user-1 affected, got %v", userIDs)
	}

	expired, _ := store.GetSubscription(ctx, overdue.ID)
	if expired.Status != SubscriptionExpired {
		t.Errorf("Overdue subscription should be expired, got %s", expired.Status)
	}
	untouched, _ := store.GetSubscription(ctx, current.ID)
	if untouched.Status != SubscriptionActive {
		t.Errorf("Current subscription should stay active, got %s", untouched.Status)
	}

	// Second sweep finds nothing
	userIDs, err = store.ExpireOverdue(ctx, now)
	if err != nil {
		t.Fatalf("ExpireOverdue failed: %v", err)
	}
	if len(userIDs) != 0 {
		t.Errorf("Expected no users on second sweep, got %v", userIDs)
	}
}
