// Package stt owns audio capture and transcription. It accumulates recorded
// chunks between record_start and record_stop and hands the combined audio
// to the transcription service.
package stt

import (
	"context"
	"sync"
	"time"

	"pocketsocrates/core"
	"pocketsocrates/events/stt"
	"pocketsocrates/events/transport"
	"pocketsocrates/utils/audio"
)

// CaptureState tracks the recording lifecycle.
type CaptureState int

const (
	StateIdle CaptureState = iota
	StateRecording
	StateTranscribing
)

type ISTTService interface {
	core.IService
	Transcribe(ctx context.Context, chunk core.AudioChunk) (string, error)
}

type STTConfig struct {
	// TranscribeTimeout bounds one transcription call, in nanoseconds when set via JSON.
	TranscribeTimeout time.Duration `json:"transcribe_timeout,omitempty"`
}

func DefaultSTTConfig() STTConfig {
	return STTConfig{TranscribeTimeout: 30 * time.Second}
}

type STTHandler struct {
	core.BaseHandler
	config STTConfig

	mu     sync.Mutex
	state  CaptureState
	chunks []core.AudioChunk
}

func NewSTTHandler(service ISTTService, backupServices []ISTTService, config STTConfig, logger *core.Logger) *STTHandler {
	typedServices := make([]core.IService, len(backupServices))
	for i, s := range backupServices {
		typedServices[i] = s
	}
	if config.TranscribeTimeout <= 0 {
		config.TranscribeTimeout = DefaultSTTConfig().TranscribeTimeout
	}
	h := &STTHandler{
		BaseHandler: *core.NewBaseHandler(service, typedServices, logger),
		config:      config,
	}
	h.SetHandleEventFunc(h.HandleEvent)
	return h
}

func (h *STTHandler) HandleEvent(eventPacket *core.EventPacket) error {
	switch event := eventPacket.Event.(type) {
	case *transport.RecordStartEvent:
		h.startCapture()
	case *transport.RecordChunkEvent:
		h.appendChunk(event.Chunk)
	case *transport.RecordStopEvent:
		h.stopCapture()
	default:
		h.SendPacket(eventPacket)
	}
	return nil
}

// State reports the current capture state.
func (h *STTHandler) State() CaptureState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *STTHandler) startCapture() {
	h.mu.Lock()
	if h.state != StateIdle {
		h.mu.Unlock()
		// capture is exclusive; a second start changes nothing
		h.notify("A recording is already in progress.")
		return
	}
	h.state = StateRecording
	h.chunks = nil
	h.mu.Unlock()
}

func (h *STTHandler) appendChunk(chunk core.AudioChunk) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateRecording {
		return
	}
	h.chunks = append(h.chunks, chunk)
}

func (h *STTHandler) stopCapture() {
	h.mu.Lock()
	if h.state != StateRecording {
		h.mu.Unlock()
		return
	}
	h.state = StateTranscribing
	chunks := h.chunks
	h.chunks = nil
	h.mu.Unlock()

	if len(chunks) == 0 {
		h.release()
		h.notify("No audio was captured.")
		return
	}

	combined, err := audio.Concat(chunks)
	if err != nil {
		h.release()
		h.Logger.Errorf("combining recorded audio: %v", err)
		h.notify("The recording could not be processed. Please try again.")
		return
	}

	go h.transcribe(combined)
}

func (h *STTHandler) transcribe(chunk core.AudioChunk) {
	// capture is released no matter how transcription ends
	defer h.release()

	ctx, cancel := context.WithTimeout(h.Ctx, h.config.TranscribeTimeout)
	defer cancel()

	text, err := h.Service.(ISTTService).Transcribe(ctx, chunk)
	if err != nil {
		h.Logger.Errorf("transcription via %s failed: %v", h.Service.Name(), err)
		if switchErr := h.SwitchToBackupService(); switchErr == nil {
			text, err = h.Service.(ISTTService).Transcribe(ctx, chunk)
		}
	}
	if err != nil {
		h.notify("Transcription failed. Please try again.")
		return
	}
	if text == "" {
		h.notify("The recording produced no transcript.")
		return
	}

	h.SendPacket(core.NewEventPacket(
		&stt.TranscriptReadyEvent{Text: text},
		core.DestinationNext,
		"STTHandler",
	))
}

func (h *STTHandler) release() {
	h.mu.Lock()
	h.state = StateIdle
	h.mu.Unlock()
}

func (h *STTHandler) notify(text string) {
	h.SendPacket(core.NewEventPacket(
		&core.Notice{Text: text},
		core.DestinationNext,
		"STTHandler",
	))
}
