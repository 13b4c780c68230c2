package notifications

import (
	"context"
	"errors"
	"sync"
)

type emitted struct {
	room    string
	event   string
	payload interface{}
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *recordingEmitter) Emit(room, event string, payload interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{room, event, payload})
}

func (e *recordingEmitter) byEvent(event string) []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []emitted
	for _, ev := range e.events {
		if ev.event == event {
			out = append(out, ev)
		}
	}
	return out
}

type recordingSender struct {
	mu   sync.Mutex
	sent []*EmailMessage
	fail bool
}

func (s *recordingSender) Send(ctx context.Context, msg *EmailMessage) error {
	if s.fail {
		return errors.New("smtp unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) Provider() string {
	return "test-email"
}
