// Package dialogue defines the events emitted by the dialogue turn
// coordinator.
package dialogue

import (
	"pocketsocrates/chat"
	"pocketsocrates/takeaways"
)

// MessageAddedEvent reports a message committed to a session's history,
// user and assistant turns alike.
type MessageAddedEvent struct {
	SessionID string
	Message   chat.Message
}

func (e *MessageAddedEvent) GetId() string {
	return "dialogue.message_added"
}

// SpeakCandidateEvent offers a completed assistant reply to the speech
// handler. Whether it is actually synthesized depends on the voice and mute
// gates there.
type SpeakCandidateEvent struct {
	Text string
}

func (e *SpeakCandidateEvent) GetId() string {
	return "dialogue.speak_candidate"
}

// TakeawaysReadyEvent carries the parsed session summary after a /close.
type TakeawaysReadyEvent struct {
	SessionID string
	Result    takeaways.Result
}

func (e *TakeawaysReadyEvent) GetId() string {
	return "dialogue.takeaways_ready"
}
