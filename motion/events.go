package motion

import (
	"github.com/cyclopcam/logs"
	"github.com/google/uuid"
)

// Event is raised by the Source or the Coordinator for the owning layer to observe.
type Event interface {
	eventName() string
}

// FrameShape is the size of corrected frames.
type FrameShape struct {
	Width    int
	Height   int
	Channels int
}

// StreamProps are reported once when a video is opened.
type StreamProps struct {
	Shape      FrameShape
	FrameRate  float64
	FrameCount int
}

type StreamOpened struct {
	Path  string
	Props StreamProps
}

type StreamFinished struct {
	Path string
}

type AddTrackerFailed struct {
	Name  string
	ID    uuid.UUID
	Cause error
}

type TrackingFailed struct {
	Name    string
	ID      uuid.UUID
	FrameNo int
	Cause   error
}

type ReachedEnd struct {
	FrameNo int
}

func (StreamOpened) eventName() string     { return "StreamOpened" }
func (StreamFinished) eventName() string   { return "StreamFinished" }
func (AddTrackerFailed) eventName() string { return "AddTrackerFailed" }
func (TrackingFailed) eventName() string   { return "TrackingFailed" }
func (ReachedEnd) eventName() string       { return "ReachedEnd" }

// eventBus delivers events without ever blocking the emitting loop.
type eventBus struct {
	log logs.Log
	ch  chan Event
}

func newEventBus(log logs.Log, size int) *eventBus {
	if size <= 0 {
		size = 64
	}
	return &eventBus{
		log: log,
		ch:  make(chan Event, size),
	}
}

func (bus *eventBus) emit(e Event) {
	select {
	case bus.ch <- e:
	default:
		bus.log.Warnf("Event queue full, dropping %s", e.eventName())
	}
}
