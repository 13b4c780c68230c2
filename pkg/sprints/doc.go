// Package sprints runs the sprint lifecycle of a project.
//
// A sprint starts "planned", becomes "started" and ends "completed".
// Completing a sprint carries its unfinished issues over in the same
// transaction: back to the backlog (sprint_id cleared) or into the project's
// next planned sprint. Issues whose status is "done" or "completed" stay with
// the finished sprint.
//
// Lifecycle events go to the project's realtime room:
//
//	sprint:created, sprint:updated, sprint:completed
package sprints
