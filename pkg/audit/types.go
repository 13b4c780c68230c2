package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthRegister    EventType = "auth.register"
	EventTypeAuthLogin       EventType = "auth.login"
	EventTypeAuthLoginFailed EventType = "auth.login_failed"

	// Authorization events
	EventTypeAuthzAccessDenied     EventType = "authz.access_denied"
	EventTypeAuthzPermissionGrant  EventType = "authz.permission_grant"
	EventTypeAuthzPermissionRevoke EventType = "authz.permission_revoke"

	// Board events
	EventTypeBoardCreate        EventType = "board.create"
	EventTypeBoardColumnCreate  EventType = "board.column.create"
	EventTypeBoardColumnReorder EventType = "board.column.reorder"
	EventTypeBoardColumnDelete  EventType = "board.column.delete"
	EventTypeBoardDnDMove       EventType = "board.dnd.move"
	EventTypeBoardDnDReorder    EventType = "board.dnd.reorder"

	// Issue events
	EventTypeIssueCreate     EventType = "issue.create"
	EventTypeIssueUpdate     EventType = "issue.update"
	EventTypeIssueTransition EventType = "issue.transition"
	EventTypeIssueDelete     EventType = "issue.delete"

	// Workspace, project and sprint events
	EventTypeWorkspaceCreate   EventType = "workspace.create"
	EventTypeProjectCreate     EventType = "project.create"
	EventTypeSprintCreate      EventType = "sprint.create"
	EventTypeSprintStateUpdate EventType = "sprint.state.update"
	EventTypeSprintComplete    EventType = "sprint.complete"

	// Automation and notification events
	EventTypeAutomationRun        EventType = "automation.run"
	EventTypeNotificationDispatch EventType = "notification.dispatch"

	// Configuration events
	EventTypeWebhookCreate EventType = "webhook.create"
	EventTypeWebhookDelete EventType = "webhook.delete"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being accessed
type ResourceType string

const (
	ResourceTypeBoard        ResourceType = "board"
	ResourceTypeIssue        ResourceType = "issue"
	ResourceTypeWorkspace    ResourceType = "workspace"
	ResourceTypeProject      ResourceType = "project"
	ResourceTypeSprint       ResourceType = "sprint"
	ResourceTypeUser         ResourceType = "user"
	ResourceTypeRole         ResourceType = "role"
	ResourceTypePermission   ResourceType = "permission"
	ResourceTypeRule         ResourceType = "automation_rule"
	ResourceTypeWebhook      ResourceType = "webhook"
	ResourceTypeNotification ResourceType = "notification"
)

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor
	UserID string `json:"user_id,omitempty"`

	// Resource
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	IPAddress string `json:"ip_address,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	Message      string                 `json:"message,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	UserID     string
	EventTypes []EventType
	Status     *EventStatus

	ResourceType ResourceType
	ResourceID   string

	Limit  int
	Offset int
}
