// Package audit records security and mutation events.
//
// # Event Types
//
// Authentication: auth.register, auth.login, auth.login_failed
// Authorization: authz.access_denied, authz.permission_grant, authz.permission_revoke
// Boards: board.create, board.column.*, board.dnd.move, board.dnd.reorder
// Issues: issue.create, issue.update, issue.transition, issue.delete
// Automation: automation.run
//
// # Usage
//
// Handlers build an event from the request context and hand it off without
// waiting for the write:
//
//	event := audit.NewEvent(ctx, audit.EventTypeBoardDnDMove, audit.EventStatusSuccess)
//	event.ResourceType = audit.ResourceTypeIssue
//	event.ResourceID = issueID
//	audit.Record(ctx, logger, event)
//
// Record never fails the caller. A write error is logged by the background
// goroutine and dropped.
//
// # Backends
//
// DBLogger stores events in the audit_logs table and supports Search.
// LogLogger emits them as structured log lines. MultiLogger combines both.
package audit
