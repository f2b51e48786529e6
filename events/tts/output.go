package tts

import "pocketsocrates/core"

// SpeechReadyEvent carries a synthesized assistant reply for client
// playback.
type SpeechReadyEvent struct {
	Text  string
	Audio core.AudioChunk
}

func (e *SpeechReadyEvent) GetId() string {
	return "tts.speech_ready"
}
