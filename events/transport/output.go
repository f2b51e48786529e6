// Package transport defines the events produced by the transport input
// handler from decoded client messages.
package transport

import "pocketsocrates/core"

// TextInputEvent is raw user input, not yet classified as a command or a
// dialogue turn.
type TextInputEvent struct {
	Text string
}

func (e *TextInputEvent) GetId() string {
	return "transport.text_input"
}

func (e *TextInputEvent) ExternalType() string {
	return "text_input"
}

type RecordStartEvent struct{}

func (e *RecordStartEvent) GetId() string {
	return "transport.record_start"
}

type RecordChunkEvent struct {
	Chunk core.AudioChunk
}

func (e *RecordChunkEvent) GetId() string {
	return "transport.record_chunk"
}

type RecordStopEvent struct{}

func (e *RecordStopEvent) GetId() string {
	return "transport.record_stop"
}

// PlaybackFinishedEvent reports that the client finished playing a speech
// payload.
type PlaybackFinishedEvent struct{}

func (e *PlaybackFinishedEvent) GetId() string {
	return "transport.playback_finished"
}

// ControlEvent is a client message addressed to the screen rather than the
// pipeline: session CRUD, chat selection and instruction edits. Payload is
// the undecoded envelope payload.
type ControlEvent struct {
	Type    string
	Payload []byte
}

func (e *ControlEvent) GetId() string {
	return "transport.control"
}
