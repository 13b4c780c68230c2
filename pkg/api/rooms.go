package api

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/platinummonkey/sprintflow/pkg/auth"
	"github.com/platinummonkey/sprintflow/pkg/rbac"
	"github.com/platinummonkey/sprintflow/pkg/realtime"
)

// authorizeRoom maps a websocket room to the permission its events require.
// A user room is open to its owner and to settings admins.
func (s *Server) authorizeRoom(r *http.Request, room string) error {
	ctx := r.Context()
	p := auth.PrincipalFromContext(ctx)
	if room == realtime.GlobalRoom {
		return nil
	}

	kind, id, ok := strings.Cut(room, ":")
	if !ok || id == "" {
		return apperr.BadRequest("Unknown room: %s", room)
	}
	switch kind {
	case "board":
		return s.deps.Gate.Require(ctx, p, rbac.PermBoardRead)
	case "project":
		return s.deps.Gate.Require(ctx, p, rbac.PermProjectRead)
	case "user":
		if p != nil && p.UserID == id {
			return nil
		}
		return s.deps.Gate.Require(ctx, p, rbac.PermSettingsAdmin)
	default:
		return apperr.BadRequest("Unknown room: %s", room)
	}
}
