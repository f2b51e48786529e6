// Package tts turns assistant replies into audio when voice mode is on.
// Synthesis runs detached from the dialogue turn: a failed synthesis never
// fails the turn that produced the text.
package tts

import (
	"context"
	"strings"
	"sync"
	"time"

	"pocketsocrates/core"
	"pocketsocrates/events/command"
	"pocketsocrates/events/dialogue"
	"pocketsocrates/events/transport"
	"pocketsocrates/events/tts"
	"pocketsocrates/utils/text"
)

// AudioState tracks the speech lifecycle.
type AudioState int

const (
	StateIdle AudioState = iota
	StateSynthesizing
	StateSpeaking
)

type ISynthesisService interface {
	core.IService
	Synthesize(ctx context.Context, text string) (core.AudioChunk, error)
}

type TTSConfig struct {
	// SynthesizeTimeout bounds one synthesis call, in nanoseconds when set via JSON.
	SynthesizeTimeout time.Duration `json:"synthesize_timeout,omitempty"`
	// PlaybackTimeout bounds how long the handler waits for the client's
	// playback_finished frame. When it elapses the speech state resets to
	// idle so a lost frame cannot block all future synthesis.
	PlaybackTimeout time.Duration `json:"playback_timeout,omitempty"`
}

func DefaultTTSConfig() TTSConfig {
	return TTSConfig{
		SynthesizeTimeout: 30 * time.Second,
		PlaybackTimeout:   2 * time.Minute,
	}
}

type TTSHandler struct {
	core.BaseHandler
	config TTSConfig

	mu            sync.Mutex
	state         AudioState
	voiceEnabled  bool
	muted         bool
	playbackTimer *time.Timer
}

func NewTTSHandler(service ISynthesisService, backupServices []ISynthesisService, config TTSConfig, logger *core.Logger) *TTSHandler {
	typedServices := make([]core.IService, len(backupServices))
	for i, s := range backupServices {
		typedServices[i] = s
	}
	if config.SynthesizeTimeout <= 0 {
		config.SynthesizeTimeout = DefaultTTSConfig().SynthesizeTimeout
	}
	if config.PlaybackTimeout <= 0 {
		config.PlaybackTimeout = DefaultTTSConfig().PlaybackTimeout
	}
	h := &TTSHandler{
		BaseHandler: *core.NewBaseHandler(service, typedServices, logger),
		config:      config,
	}
	h.SetHandleEventFunc(h.HandleEvent)
	return h
}

func (h *TTSHandler) HandleEvent(eventPacket *core.EventPacket) error {
	switch event := eventPacket.Event.(type) {
	case *dialogue.SpeakCandidateEvent:
		h.maybeSynthesize(event.Text)
	case *command.VoiceToggledEvent:
		h.mu.Lock()
		h.voiceEnabled = event.Enabled
		h.mu.Unlock()
	case *command.MuteToggledEvent:
		// gates future syntheses only; running playback is never cut off
		h.mu.Lock()
		h.muted = event.Muted
		h.mu.Unlock()
	case *transport.PlaybackFinishedEvent:
		h.mu.Lock()
		if h.state == StateSpeaking {
			h.state = StateIdle
		}
		h.stopPlaybackTimerLocked()
		h.mu.Unlock()
	default:
		h.SendPacket(eventPacket)
	}
	return nil
}

// State reports the current speech state.
func (h *TTSHandler) State() AudioState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *TTSHandler) maybeSynthesize(raw string) {
	h.mu.Lock()
	if !h.voiceEnabled || h.muted {
		h.mu.Unlock()
		return
	}
	if h.state != StateIdle {
		h.mu.Unlock()
		h.Logger.Debugf("skipping synthesis, speech already %v", h.state)
		return
	}
	h.state = StateSynthesizing
	h.mu.Unlock()

	spoken := text.NormalizeForSpeech(raw)
	if strings.TrimSpace(spoken) == "" {
		h.setState(StateIdle)
		return
	}

	go h.synthesize(raw, spoken)
}

func (h *TTSHandler) synthesize(original, spoken string) {
	ctx, cancel := context.WithTimeout(h.Ctx, h.config.SynthesizeTimeout)
	defer cancel()

	chunk, err := h.Service.(ISynthesisService).Synthesize(ctx, spoken)
	if err != nil {
		h.Logger.Errorf("synthesis via %s failed: %v", h.Service.Name(), err)
		if switchErr := h.SwitchToBackupService(); switchErr == nil {
			chunk, err = h.Service.(ISynthesisService).Synthesize(ctx, spoken)
		}
	}
	if err != nil {
		h.setState(StateIdle)
		h.sendNext(&core.Notice{Text: "Speech could not be produced for that reply."})
		return
	}

	h.enterSpeaking()
	h.sendNext(&tts.SpeechReadyEvent{Text: original, Audio: chunk})
}

func (h *TTSHandler) setState(state AudioState) {
	h.mu.Lock()
	h.state = state
	h.mu.Unlock()
}

// enterSpeaking marks speech in progress and arms the playback watchdog.
// The client normally disarms it with playback_finished; when that frame
// never arrives the watchdog releases the state so later replies can speak.
func (h *TTSHandler) enterSpeaking() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = StateSpeaking
	h.stopPlaybackTimerLocked()
	h.playbackTimer = time.AfterFunc(h.config.PlaybackTimeout, h.playbackExpired)
}

func (h *TTSHandler) playbackExpired() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateSpeaking {
		return
	}
	h.state = StateIdle
	h.Logger.Warnf("no playback_finished within %s, releasing speech state", h.config.PlaybackTimeout)
}

func (h *TTSHandler) stopPlaybackTimerLocked() {
	if h.playbackTimer != nil {
		h.playbackTimer.Stop()
		h.playbackTimer = nil
	}
}

func (h *TTSHandler) sendNext(event core.IEvent) {
	h.SendPacket(core.NewEventPacket(event, core.DestinationNext, "TTSHandler"))
}
