// Package command defines the events the command handler emits after
// classifying user input.
package command

// DialogueTextEvent is input that was not consumed as a command and flows
// on to the dialogue turn coordinator.
type DialogueTextEvent struct {
	Text string
}

func (e *DialogueTextEvent) GetId() string {
	return "command.dialogue_text"
}

// CloseRequestedEvent asks the dialogue handler to summarize and close the
// active session.
type CloseRequestedEvent struct{}

func (e *CloseRequestedEvent) GetId() string {
	return "command.close_requested"
}

// CreateSessionRequestedEvent signals the owning screen that the user wants
// a new session.
type CreateSessionRequestedEvent struct{}

func (e *CreateSessionRequestedEvent) GetId() string {
	return "command.create_session_requested"
}

// ClearRequestedEvent asks the owning screen to empty the active session's
// history.
type ClearRequestedEvent struct{}

func (e *ClearRequestedEvent) GetId() string {
	return "command.clear_requested"
}

// ShowPanelEvent asks the owning screen to surface a static panel
// ("help", "about", "new_chat", "instructions").
type ShowPanelEvent struct {
	Panel string
}

func (e *ShowPanelEvent) GetId() string {
	return "command.show_panel"
}

// VoiceToggledEvent carries the new voice-mode state to the speech handler.
type VoiceToggledEvent struct {
	Enabled bool
}

func (e *VoiceToggledEvent) GetId() string {
	return "command.voice_toggled"
}

// MuteToggledEvent carries the new mute state to the speech handler.
// Muting gates future syntheses only; started playback is never cut off.
type MuteToggledEvent struct {
	Muted bool
}

func (e *MuteToggledEvent) GetId() string {
	return "command.mute_toggled"
}
