package core

import "github.com/google/uuid"

// Destination controls where a packet is routed after a handler emits it.
type Destination int

const (
	// DestinationNext sends the packet to the next handler in the pipeline.
	DestinationNext Destination = iota
	// DestinationTop sends the packet to the screen-level channel,
	// bypassing the remaining pipeline handlers.
	DestinationTop
)

// EventPacket wraps an event with routing metadata as it moves through the
// pipeline.
type EventPacket struct {
	Event       IEvent
	Destination Destination
	Uid         string
	Relayer     string
}

func NewEventPacket(event IEvent, destination Destination, relayer string) *EventPacket {
	return &EventPacket{
		Event:       event,
		Destination: destination,
		Uid:         uuid.NewString(),
		Relayer:     relayer,
	}
}
