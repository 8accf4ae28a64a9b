// Package model holds the event vocabulary shared by pipe channels and the
// components that observe them (audit log, metrics).
package model

import "time"

// EventKind names what happened on a channel.
type EventKind string

const (
	EventOpen   EventKind = "open"
	EventSend   EventKind = "send"
	EventReject EventKind = "reject"
	EventAttach EventKind = "attach"
	EventDetach EventKind = "detach"
	EventClose  EventKind = "close"
)

// Event is one observable step in a channel's life.
type Event struct {
	Kind       EventKind `json:"kind"`
	Channel    string    `json:"channel"`
	Width      int       `json:"width"`
	PacketID   int64     `json:"packet_id,omitempty"`
	Bytes      int       `json:"bytes,omitempty"`
	Outflow    int64     `json:"outflow"`
	MaxOutflow int64     `json:"max_outflow"`
	Driver     string    `json:"driver,omitempty"`
	State      string    `json:"state,omitempty"`
	Op         string    `json:"op,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// Failed reports whether the event records a rejected operation.
func (e Event) Failed() bool {
	return e.Kind == EventReject
}

// Observer receives channel events synchronously. Implementations must
// not block for long and must not call back into the channel.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Observers fans one event out to several observers in order.
type Observers []Observer

func (o Observers) Observe(e Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(e)
		}
	}
}
