// Package issues stores project issues and runs their lifecycle.
//
// Issue keys are sequential per project. Every change is audited and pushed to
// the project's realtime room, and creation fires the "issue.created"
// automation trigger. The service also satisfies the board status updater and
// the automation field updater.
package issues
