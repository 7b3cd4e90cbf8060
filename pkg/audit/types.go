package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthLogin       EventType = "auth.login"
	EventTypeAuthLogout      EventType = "auth.logout"
	EventTypeAuthLoginFailed EventType = "auth.login_failed"

	// Authorization events
	EventTypeRoleAssign    EventType = "authz.role_assign"
	EventTypeRoleDisable   EventType = "authz.role_disable"
	EventTypeRoleEnable    EventType = "authz.role_enable"
	EventTypeRoleUpdate    EventType = "authz.role_update"
	EventTypeAccessDenied  EventType = "authz.access_denied"

	// Account events
	EventTypeUserCreate  EventType = "users.create"
	EventTypeUserUpdate  EventType = "users.update"
	EventTypeUserDisable EventType = "users.disable"
	EventTypeUserEnable  EventType = "users.enable"

	// Tenancy events
	EventTypeWorkspaceCreate  EventType = "tenancy.workspace_create"
	EventTypeWorkspaceUpdate  EventType = "tenancy.workspace_update"
	EventTypeWorkspaceDisable EventType = "tenancy.workspace_disable"
	EventTypeDomainCreate     EventType = "tenancy.domain_create"
	EventTypeDomainDelete     EventType = "tenancy.domain_delete"
	EventTypeDomainSetPrimary EventType = "tenancy.domain_set_primary"

	// Billing events
	EventTypeSubscriptionCreate EventType = "billing.subscription_create"
	EventTypeSubscriptionCancel EventType = "billing.subscription_cancel"
	EventTypeSubscriptionExpire EventType = "billing.subscription_expire"
	EventTypePlanCreate         EventType = "billing.plan_create"
	EventTypePlanUpdate         EventType = "billing.plan_update"

	// Content events
	EventTypeContentCreate EventType = "content.item_create"
	EventTypeContentUpdate EventType = "content.item_update"
	EventTypeContentDelete EventType = "content.item_delete"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource an event concerns
type ResourceType string

const (
	ResourceTypeWorkspace    ResourceType = "workspace"
	ResourceTypeDomain       ResourceType = "domain"
	ResourceTypeUser         ResourceType = "user"
	ResourceTypeRole         ResourceType = "role"
	ResourceTypeAssignment   ResourceType = "assignment"
	ResourceTypePlan         ResourceType = "plan"
	ResourceTypeSubscription ResourceType = "subscription"
	ResourceTypeItem         ResourceType = "item"
	ResourceTypeSession      ResourceType = "session"
)

// Event represents a single audit log entry
type Event struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor
	ActorID     string `json:"actor_id,omitempty"`
	WorkspaceID string `json:"workspace_id,omitempty"`

	// Resource
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	IPAddress string `json:"ip_address,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
