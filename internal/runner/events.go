package runner

import (
	"github.com/starford/fitrunner/internal/models"
	"github.com/starford/fitrunner/internal/results"
)

// EventType names a run lifecycle event.
type EventType string

const (
	SuiteStarted      EventType = "suite.started"
	DocumentStarted   EventType = "document.started"
	DocumentProgress  EventType = "document.progress"
	DocumentCompleted EventType = "document.completed"
	SuiteCompleted    EventType = "suite.completed"
	SuiteFailed       EventType = "suite.failed"
)

// Event is emitted by the coordinator's driver goroutine. Events of one run
// arrive in ordinal order.
type Event struct {
	Type    EventType       `json:"type"`
	RunID   string          `json:"run_id"`
	Root    models.PagePath `json:"root"`
	Total   int             `json:"total,omitempty"`
	Ordinal int             `json:"ordinal,omitempty"`
	Path    models.PagePath `json:"path,omitempty"`
	// Partial is the running suite summary at the time of the event.
	Partial  models.Summary          `json:"partial"`
	Document *results.DocumentResult `json:"document,omitempty"`
	Result   *results.SuiteResult    `json:"result,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// Listener receives run events. Implementations must not block; slow
// consumers should buffer or drop.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(e Event) { f(e) }

type listeners []Listener

func (ls listeners) emit(e Event) {
	for _, l := range ls {
		if l != nil {
			l.OnEvent(e)
		}
	}
}
