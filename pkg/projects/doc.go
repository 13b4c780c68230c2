// Package projects manages workspaces and the projects inside them.
//
// A workspace groups projects and has a globally unique key. A project key is
// unique within its workspace. Issues, boards and sprints reference projects
// by id; the other packages check those references through
// Service.ValidateProject.
package projects
