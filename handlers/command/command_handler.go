// Package command classifies user text input. Slash commands turn into
// control events; everything else flows on to the dialogue coordinator.
package command

import (
	"sync"

	"pocketsocrates/commands"
	"pocketsocrates/core"
	"pocketsocrates/events/command"
	"pocketsocrates/events/transport"
	"pocketsocrates/store"
)

type CommandHandler struct {
	core.BaseHandler
	store *store.Store

	mu           sync.Mutex
	voiceEnabled bool
	muted        bool
}

func NewCommandHandler(sessionStore *store.Store, logger *core.Logger) *CommandHandler {
	h := &CommandHandler{
		BaseHandler: *core.NewBaseHandler(nil, nil, logger),
		store:       sessionStore,
	}
	h.SetHandleEventFunc(h.HandleEvent)
	return h
}

func (h *CommandHandler) HandleEvent(eventPacket *core.EventPacket) error {
	event, ok := eventPacket.Event.(*transport.TextInputEvent)
	if !ok {
		h.SendPacket(eventPacket)
		return nil
	}

	privileged := false
	if active := h.store.Active(); active != nil {
		privileged = active.Privileged
	}

	cmd, isCommand := commands.Interpret(event.Text, privileged)
	if !isCommand {
		h.sendNext(&command.DialogueTextEvent{Text: event.Text})
		return nil
	}

	switch cmd {
	case commands.Close:
		h.sendNext(&command.CloseRequestedEvent{})
	case commands.New:
		h.sendTop(&command.CreateSessionRequestedEvent{})
	case commands.Voice:
		h.toggleVoice()
	case commands.Mute:
		h.toggleMute()
	case commands.Clear:
		h.sendTop(&command.ClearRequestedEvent{})
	case commands.About:
		h.sendTop(&command.ShowPanelEvent{Panel: "about"})
	case commands.Help:
		h.sendTop(&command.ShowPanelEvent{Panel: "help"})
	case commands.EditInstructions:
		h.sendTop(&command.ShowPanelEvent{Panel: "instructions"})
	}
	return nil
}

func (h *CommandHandler) toggleVoice() {
	h.mu.Lock()
	h.voiceEnabled = !h.voiceEnabled
	enabled := h.voiceEnabled
	h.mu.Unlock()

	h.sendNext(&command.VoiceToggledEvent{Enabled: enabled})
	if enabled {
		h.sendNext(&core.Notice{Text: "Voice mode enabled."})
	} else {
		h.sendNext(&core.Notice{Text: "Voice mode disabled."})
	}
}

func (h *CommandHandler) toggleMute() {
	h.mu.Lock()
	h.muted = !h.muted
	muted := h.muted
	h.mu.Unlock()

	h.sendNext(&command.MuteToggledEvent{Muted: muted})
	if muted {
		h.sendNext(&core.Notice{Text: "Speech muted."})
	} else {
		h.sendNext(&core.Notice{Text: "Speech unmuted."})
	}
}

func (h *CommandHandler) sendNext(event core.IEvent) {
	h.SendPacket(core.NewEventPacket(event, core.DestinationNext, "CommandHandler"))
}

func (h *CommandHandler) sendTop(event core.IEvent) {
	h.SendPacket(core.NewEventPacket(event, core.DestinationTop, "CommandHandler"))
}
