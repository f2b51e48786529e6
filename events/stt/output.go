package stt

// TranscriptReadyEvent carries the transcription of a finished recording.
// It only populates the client's pending input field; the user still has to
// press send.
type TranscriptReadyEvent struct {
	Text string
}

func (e *TranscriptReadyEvent) GetId() string {
	return "stt.transcript_ready"
}
