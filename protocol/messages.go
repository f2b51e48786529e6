// Package protocol defines the JSON wire protocol between the UI client and
// the session server.
package protocol

import (
	"encoding/json"
	"time"

	"pocketsocrates/core"
)

// MessageType enumerates all wire message types.
type MessageType string

const (
	// Client -> Server
	MsgTextInput        MessageType = "text_input"
	MsgRecordStart      MessageType = "record_start"
	MsgRecordChunk      MessageType = "record_chunk"
	MsgRecordStop       MessageType = "record_stop"
	MsgPlaybackFinished MessageType = "playback_finished"
	MsgCreateChat       MessageType = "create_chat"
	MsgEditChat         MessageType = "edit_chat"
	MsgDeleteChat       MessageType = "delete_chat"
	MsgSelectChat       MessageType = "select_chat"
	MsgListChats        MessageType = "list_chats"
	MsgGetInstructions  MessageType = "get_instructions"
	MsgSetInstructions  MessageType = "set_instructions"

	// Server -> Client
	MsgMessage      MessageType = "message"
	MsgNotice       MessageType = "notice"
	MsgTranscript   MessageType = "transcript"
	MsgSpeech       MessageType = "speech"
	MsgTakeaways    MessageType = "takeaways"
	MsgShowPanel    MessageType = "show_panel"
	MsgChats        MessageType = "chats"
	MsgChatSelected MessageType = "chat_selected"
	MsgAgeWarning   MessageType = "age_warning"
	MsgInstructions MessageType = "instructions"
	MsgCleared      MessageType = "cleared"
)

// Envelope is the outer JSON wrapper for all WebSocket messages.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- Client -> Server payloads ---

type TextInputPayload struct {
	Text string `json:"text"`
}

// RecordChunkPayload carries one slice of captured audio. Data travels
// base64-encoded (the JSON []byte encoding).
type RecordChunkPayload struct {
	Data       []byte `json:"data"`
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

type CreateChatPayload struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

type EditChatPayload struct {
	ChatID string `json:"chat_id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
}

type DeleteChatPayload struct {
	ChatID string `json:"chat_id"`
}

type SelectChatPayload struct {
	ChatID string `json:"chat_id"`
}

type SetInstructionsPayload struct {
	Text string `json:"text"`
}

// --- Server -> Client payloads ---

// WireMessage is one dialogue message as shown in the UI.
type WireMessage struct {
	ID        string    `json:"id"`
	Role      core.Role `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type MessagePayload struct {
	ChatID  string      `json:"chat_id"`
	Message WireMessage `json:"message"`
}

type NoticePayload struct {
	Text string `json:"text"`
}

type TranscriptPayload struct {
	Text string `json:"text"`
}

// SpeechPayload carries synthesized assistant speech for client playback.
type SpeechPayload struct {
	Text       string `json:"text"`
	Audio      []byte `json:"audio"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

type TakeawaysPayload struct {
	Points     []string `json:"points"`
	Reflection string   `json:"reflection"`
}

// ShowPanelPayload asks the client to open a static panel. Commands is only
// populated for the help panel.
type ShowPanelPayload struct {
	Panel    string            `json:"panel"`
	Commands map[string]string `json:"commands,omitempty"`
}

// WireChat is the sidebar view of a session.
type WireChat struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	UserName    string    `json:"user_name"`
	UserAge     int       `json:"user_age"`
	Privileged  bool      `json:"privileged"`
	CreatedAt   time.Time `json:"created_at"`
}

type ChatsPayload struct {
	Chats []WireChat `json:"chats"`
	// ActiveChatID is always present; empty means no chat is selected.
	ActiveChatID string `json:"active_chat_id"`
}

type ChatSelectedPayload struct {
	Chat     WireChat      `json:"chat"`
	Messages []WireMessage `json:"messages"`
}

type AgeWarningPayload struct {
	Age  int    `json:"age"`
	Text string `json:"text"`
}

type InstructionsPayload struct {
	Text string `json:"text"`
}

type ClearedPayload struct {
	ChatID string `json:"chat_id"`
}
