// Package realtime pushes domain events to websocket clients grouped in rooms.
//
// Rooms are plain strings. The services use "board:{id}", "project:{id}",
// "user:{id}" and "global". A client joins rooms when it connects:
//
//	GET /ws?room=board:42&room=user:7
//
// Hub.Handler checks each requested room with a RoomAuthorizer before the
// upgrade.
package realtime
