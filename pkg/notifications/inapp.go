package notifications

import (
	"context"
	"errors"
)

// EventNotify is the realtime event carrying in-app notifications
const EventNotify = "notify"

// InAppChannel emits notifications into realtime rooms
type InAppChannel struct {
	emitter Emitter
}

// NewInAppChannel creates the in-app channel
func NewInAppChannel(emitter Emitter) *InAppChannel {
	return &InAppChannel{emitter: emitter}
}

// Name returns the channel name
func (c *InAppChannel) Name() string {
	return ChannelInApp
}

// Rooms returns the rooms named by the recipients, or the global room
func Rooms(recipients []Recipient) []string {
	var rooms []string
	for _, r := range recipients {
		switch {
		case r.UserSocketRoom != "":
			rooms = append(rooms, r.UserSocketRoom)
		case r.ProjectSocketRoom != "":
			rooms = append(rooms, r.ProjectSocketRoom)
		}
	}
	if len(rooms) == 0 {
		return []string{"global"}
	}
	return rooms
}

// Deliver emits the notification to each room
func (c *InAppChannel) Deliver(ctx context.Context, req *Request) (*Delivery, error) {
	if c.emitter == nil {
		return nil, errors.New("realtime hub not configured")
	}

	payload := map[string]interface{}{
		"type":     req.EventType,
		"priority": priorityOf(req),
		"data":     req.Data,
	}
	rooms := Rooms(req.Recipients)
	for _, room := range rooms {
		c.emitter.Emit(room, EventNotify, payload)
	}
	return &Delivery{Provider: "websocket", SentTo: rooms}, nil
}
