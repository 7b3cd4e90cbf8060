package billing

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/haven/pkg/audit"
	"github.com/platinummonkey/haven/pkg/contextkeys"
	"github.com/platinummonkey/haven/pkg/httputil"
)

// Handlers provides HTTP handlers for plan and subscription management
type Handlers struct {
	service     *Service
	auditLogger audit.Logger
}

// NewHandlers creates new billing handlers
func NewHandlers(service *Service, auditLogger audit.Logger) *Handlers {
	return &Handlers{
		service:     service,
		auditLogger: auditLogger,
	}
}

// RegisterRoutes registers all billing routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	h.RegisterPlanRoutes(router)
	h.RegisterSubscriptionRoutes(router)
}

// RegisterPlanRoutes registers plan administration routes, so they can
// be guarded separately from subscription management
func (h *Handlers) RegisterPlanRoutes(router *mux.Router) {
	router.HandleFunc("/billing/plans", h.CreatePlan).Methods("POST")
	router.HandleFunc("/billing/plans", h.ListPlans).Methods("GET")
	router.HandleFunc("/billing/plans/{id}", h.GetPlan).Methods("GET")
	router.HandleFunc("/billing/plans/{id}", h.UpdatePlan).Methods("PUT")
	router.HandleFunc("/billing/plans/{id}/archive", h.ArchivePlan).Methods("POST")
}

// RegisterSubscriptionRoutes registers subscription management routes
func (h *Handlers) RegisterSubscriptionRoutes(router *mux.Router) {
	router.HandleFunc("/billing/subscriptions", h.Subscribe).Methods("POST")
	router.HandleFunc("/billing/subscriptions/{id}/cancel", h.CancelSubscription).Methods("POST")
	router.HandleFunc("/billing/users/{id}/subscriptions", h.ListSubscriptions).Methods("GET")
	router.HandleFunc("/billing/users/{id}/entitlements", h.ListEntitlements).Methods("GET")
}

// CreatePlan creates a subscription plan
func (h *Handlers) CreatePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		Name        string `json:"name"`
		Scope       string `json:"scope"`
		WorkspaceID string `json:"workspace_id"`
		Interval    string `json:"interval"`
		PriceCents  int64  `json:"price_cents"`
		Currency    string `json:"currency"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}
	switch PlanScope(req.Scope) {
	case ScopeGlobal, ScopeWorkspace, "":
	default:
		httputil.WriteBadRequest(w, "scope must be global or workspace")
		return
	}
	switch PlanInterval(req.Interval) {
	case IntervalMonthly, IntervalYearly, "":
	default:
		httputil.WriteBadRequest(w, "interval must be monthly or yearly")
		return
	}
	if req.PriceCents < 0 {
		httputil.WriteBadRequest(w, "price_cents must not be negative")
		return
	}

	plan := &Plan{
		Name:        req.Name,
		Scope:       PlanScope(req.Scope),
		WorkspaceID: req.WorkspaceID,
		Interval:    PlanInterval(req.Interval),
		PriceCents:  req.PriceCents,
		Currency:    req.Currency,
	}
	if err := h.service.Store().CreatePlan(ctx, plan); err != nil {
		if errors.Is(err, ErrWorkspaceRequired) {
			httputil.WriteBadRequest(w, "workspace-scoped plans need a workspace_id")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.auditLogger.LogChange(ctx, audit.EventTypePlanCreate, contextkeys.UserID(ctx), plan.WorkspaceID, audit.ResourceTypePlan, plan.ID, "created plan "+plan.Name)

	httputil.WriteCreated(w, plan)
}

// ListPlans lists plans, optionally filtered by scope, workspace and
// status
func (h *Handlers) ListPlans(w http.ResponseWriter, r *http.Request) {
	filter := ListPlansFilter{
		Scope:       PlanScope(httputil.QueryParam(r, "scope", "")),
		WorkspaceID: httputil.QueryParam(r, "workspace_id", ""),
		Status:      PlanStatus(httputil.QueryParam(r, "status", "")),
	}

	plans, err := h.service.Store().ListPlans(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if plans == nil {
		plans = []Plan{}
	}
	httputil.WriteSuccess(w, plans)
}

// GetPlan retrieves a plan by ID
func (h *Handlers) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.service.Store().GetPlan(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			httputil.WriteNotFoundError(w, "plan not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, plan)
}

// UpdatePlan modifies a plan's name and pricing. Scope is immutable.
func (h *Handlers) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	plan, err := h.service.Store().GetPlan(ctx, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			httputil.WriteNotFoundError(w, "plan not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	var req struct {
		Name       string `json:"name"`
		Interval   string `json:"interval"`
		PriceCents *int64 `json:"price_cents"`
		Currency   string `json:"currency"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if req.Name != "" {
		plan.Name = req.Name
	}
	if req.Interval != "" {
		switch PlanInterval(req.Interval) {
		case IntervalMonthly, IntervalYearly:
			plan.Interval = PlanInterval(req.Interval)
		default:
			httputil.WriteBadRequest(w, "interval must be monthly or yearly")
			return
		}
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			httputil.WriteBadRequest(w, "price_cents must not be negative")
			return
		}
		plan.PriceCents = *req.PriceCents
	}
	if req.Currency != "" {
		plan.Currency = req.Currency
	}

	if err := h.service.Store().UpdatePlan(ctx, plan); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	h.auditLogger.LogChange(ctx, audit.EventTypePlanUpdate, contextkeys.UserID(ctx), plan.WorkspaceID, audit.ResourceTypePlan, plan.ID, "updated plan "+plan.Name)

	httputil.WriteSuccess(w, plan)
}

// ArchivePlan retires a plan. Existing subscriptions stay on the
// books but stop granting entitlements.
func (h *Handlers) ArchivePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	planID := mux.Vars(r)["id"]

	if err := h.service.Store().SetPlanStatus(ctx, planID, PlanArchived); err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			httputil.WriteNotFoundError(w, "plan not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.auditLogger.LogChange(ctx, audit.EventTypePlanUpdate, contextkeys.UserID(ctx), "", audit.ResourceTypePlan, planID, "archived plan")

	httputil.WriteSuccess(w, map[string]string{"id": planID, "status": string(PlanArchived)})
}

// Subscribe starts a subscription for a user
func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		UserID   string `json:"user_id"`
		PlanID   string `json:"plan_id"`
		Provider string `json:"provider"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID == "" || req.PlanID == "" {
		httputil.WriteBadRequest(w, "user_id and plan_id are required")
		return
	}

	sub, err := h.service.Subscribe(ctx, req.UserID, req.PlanID, req.Provider)
	if err != nil {
		switch {
		case errors.Is(err, ErrPlanNotFound):
			httputil.WriteNotFoundError(w, "plan not found")
		case errors.Is(err, ErrPlanArchived):
			httputil.WriteConflict(w, "plan is archived")
		default:
			httputil.WriteInternalError(w, err)
		}
		return
	}

	h.auditLogger.LogChange(ctx, audit.EventTypeSubscriptionCreate, contextkeys.UserID(ctx), "", audit.ResourceTypeSubscription, sub.ID, "subscribed user "+req.UserID+" to plan "+req.PlanID)

	httputil.WriteCreated(w, sub)
}

// CancelSubscription cancels an active subscription
func (h *Handlers) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subscriptionID := mux.Vars(r)["id"]

	if err := h.service.CancelSubscription(ctx, subscriptionID); err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			httputil.WriteNotFoundError(w, "active subscription not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.auditLogger.LogChange(ctx, audit.EventTypeSubscriptionCancel, contextkeys.UserID(ctx), "", audit.ResourceTypeSubscription, subscriptionID, "canceled subscription")

	httputil.WriteSuccess(w, map[string]string{"id": subscriptionID, "status": string(SubscriptionCanceled)})
}

// ListSubscriptions lists a user's subscription history
func (h *Handlers) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.ListSubscriptions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if subs == nil {
		subs = []UserSubscription{}
	}
	httputil.WriteSuccess(w, subs)
}

// ListEntitlements lists a user's live entitlements
func (h *Handlers) ListEntitlements(w http.ResponseWriter, r *http.Request) {
	entitlements, err := h.service.ActiveEntitlements(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if entitlements == nil {
		entitlements = []Entitlement{}
	}
	httputil.WriteSuccess(w, entitlements)
}
