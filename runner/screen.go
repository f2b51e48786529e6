package runner

import (
	"context"
	"errors"
	"strings"

	"pocketsocrates/chat"
	"pocketsocrates/commands"
	"pocketsocrates/core"
	"pocketsocrates/events/command"
	"pocketsocrates/events/transport"
	"pocketsocrates/protocol"
	"pocketsocrates/store"
)

type ScreenConfig struct {
	// KeeperName grants privileged status to sessions created under this
	// declared name.
	KeeperName string `json:"keeper_name"`
}

// Sender pushes wire messages to the connected client.
type Sender interface {
	Send(data []byte) error
}

// Screen coordinates one client above the handler chain: session CRUD,
// panel requests, instruction edits and critical failures. It talks to the
// client directly, outside the pipeline.
type Screen struct {
	config       ScreenConfig
	store        *store.Store
	instructions store.InstructionStore
	sender       Sender
	logger       *core.Logger

	ctx  context.Context
	stop func()
}

func NewScreen(
	config ScreenConfig,
	sessionStore *store.Store,
	instructions store.InstructionStore,
	sender Sender,
	logger *core.Logger,
) *Screen {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Screen{
		config:       config,
		store:        sessionStore,
		instructions: instructions,
		sender:       sender,
		logger:       logger,
		// replaced by the session context in Open; control frames that
		// race ahead of Open must still find a usable context
		ctx: context.Background(),
	}
}

// SetStopFunc registers the session teardown invoked on critical errors.
func (s *Screen) SetStopFunc(stop func()) {
	s.stop = stop
}

// Open loads persisted sessions, seeds the demo session on first run and
// pushes the initial state to the client.
func (s *Screen) Open(ctx context.Context) error {
	s.ctx = ctx
	if err := s.store.Load(ctx); err != nil {
		return err
	}
	if err := s.store.Bootstrap(ctx); err != nil {
		return err
	}
	s.sendChats()
	s.sendSelected()
	return nil
}

func (s *Screen) HandleTop(packet *core.EventPacket) {
	switch event := packet.Event.(type) {
	case *transport.ControlEvent:
		s.handleControl(event)
	case *command.CreateSessionRequestedEvent:
		s.sendShowPanel("new_chat", nil)
	case *command.ClearRequestedEvent:
		s.clearActive()
	case *command.ShowPanelEvent:
		s.showPanel(event.Panel)
	case *core.EndSession:
		s.logger.Info("session closed", "wants_takeaways", event.WantsTakeaways)
		if event.WantsTakeaways {
			// the takeaways payload itself arrives through the pipeline's
			// output handler; the panel tells the client to present it
			s.sendShowPanel("takeaways", nil)
		}
	case *core.CriticalError:
		s.logger.Errorf("critical error, ending session: %v", event.Err)
		s.sendNotice("Something went wrong and the session must end. Please reconnect.")
		if s.stop != nil {
			s.stop()
		}
	default:
		s.logger.Debugf("unhandled top-level event: %s", packet.Event.GetId())
	}
}

// MergeRemoteInsert folds a message from the realtime feed into local state
// and forwards it to the client when it belongs to the visible session.
func (s *Screen) MergeRemoteInsert(sessionID string, msg chat.Message) {
	session := s.store.Get(sessionID)
	if session != nil && session.HasMessage(msg.ID) {
		return
	}
	s.store.MergeInserted(sessionID, msg)

	active := s.store.Active()
	if active == nil || active.ID != sessionID {
		return
	}
	s.send(protocol.MsgMessage, protocol.MessagePayload{
		ChatID:  sessionID,
		Message: wireMessage(msg),
	})
}

func (s *Screen) handleControl(event *transport.ControlEvent) {
	switch protocol.MessageType(event.Type) {
	case protocol.MsgCreateChat:
		payload, err := protocol.UnmarshalPayload[protocol.CreateChatPayload](event.Payload)
		if err != nil {
			s.logger.Warnf("malformed create_chat payload: %v", err)
			return
		}
		s.createChat(payload)

	case protocol.MsgEditChat:
		payload, err := protocol.UnmarshalPayload[protocol.EditChatPayload](event.Payload)
		if err != nil {
			s.logger.Warnf("malformed edit_chat payload: %v", err)
			return
		}
		s.editChat(payload)

	case protocol.MsgDeleteChat:
		payload, err := protocol.UnmarshalPayload[protocol.DeleteChatPayload](event.Payload)
		if err != nil {
			s.logger.Warnf("malformed delete_chat payload: %v", err)
			return
		}
		s.deleteChat(payload.ChatID)

	case protocol.MsgSelectChat:
		payload, err := protocol.UnmarshalPayload[protocol.SelectChatPayload](event.Payload)
		if err != nil {
			s.logger.Warnf("malformed select_chat payload: %v", err)
			return
		}
		s.selectChat(payload.ChatID)

	case protocol.MsgListChats:
		s.sendChats()

	case protocol.MsgGetInstructions:
		s.sendInstructions()

	case protocol.MsgSetInstructions:
		payload, err := protocol.UnmarshalPayload[protocol.SetInstructionsPayload](event.Payload)
		if err != nil {
			s.logger.Warnf("malformed set_instructions payload: %v", err)
			return
		}
		s.setInstructions(payload.Text)

	default:
		s.logger.Warnf("unknown control message type %q", event.Type)
	}
}

func (s *Screen) createChat(payload protocol.CreateChatPayload) {
	privileged := s.isKeeper(payload.Name)
	_, err := s.store.Create(s.ctx, payload.Name, payload.Age, privileged)
	if err != nil {
		var ageErr *chat.AgeError
		if errors.As(err, &ageErr) {
			s.send(protocol.MsgAgeWarning, protocol.AgeWarningPayload{Age: ageErr.Age, Text: ageErr.Error()})
			return
		}
		s.logger.Errorf("creating chat: %v", err)
		s.sendNotice("The chat could not be created.")
		return
	}
	s.sendChats()
	s.sendSelected()
}

func (s *Screen) editChat(payload protocol.EditChatPayload) {
	if err := s.store.Edit(s.ctx, payload.ChatID, payload.Name, payload.Age); err != nil {
		var ageErr *chat.AgeError
		if errors.As(err, &ageErr) {
			s.send(protocol.MsgAgeWarning, protocol.AgeWarningPayload{Age: ageErr.Age, Text: ageErr.Error()})
			return
		}
		s.logger.Errorf("editing chat %s: %v", payload.ChatID, err)
		s.sendNotice("The chat could not be updated.")
		return
	}
	s.sendChats()
	if active := s.store.Active(); active != nil && active.ID == payload.ChatID {
		s.sendSelected()
	}
}

func (s *Screen) deleteChat(id string) {
	if err := s.store.Delete(s.ctx, id); err != nil {
		s.logger.Errorf("deleting chat %s: %v", id, err)
		s.sendNotice("The chat could not be deleted.")
		return
	}
	s.sendChats()
	s.sendSelected()
}

func (s *Screen) selectChat(id string) {
	if err := s.store.Select(id); err != nil {
		s.logger.Warnf("selecting chat %s: %v", id, err)
		s.sendNotice("That chat no longer exists.")
		return
	}
	s.sendChats()
	s.sendSelected()
}

func (s *Screen) clearActive() {
	active := s.store.Active()
	if active == nil {
		s.sendNotice("There is no chat to clear.")
		return
	}
	if err := s.store.ClearMessages(s.ctx, active.ID); err != nil {
		s.logger.Errorf("clearing chat %s: %v", active.ID, err)
		s.sendNotice("The chat could not be cleared.")
		return
	}
	s.send(protocol.MsgCleared, protocol.ClearedPayload{ChatID: active.ID})
}

func (s *Screen) showPanel(panel string) {
	switch panel {
	case "help":
		described := make(map[string]string, len(commands.Description))
		for cmd, desc := range commands.Description {
			described[string(cmd)] = desc
		}
		s.sendShowPanel("help", described)
	case "instructions":
		s.sendInstructions()
	default:
		s.sendShowPanel(panel, nil)
	}
}

func (s *Screen) sendInstructions() {
	if !s.activePrivileged() {
		s.sendNotice("Only the keeper may view the instructions.")
		return
	}
	text, err := s.instructions.Get(s.ctx)
	if err != nil {
		s.logger.Errorf("loading instructions: %v", err)
		s.sendNotice("The instructions could not be loaded.")
		return
	}
	s.send(protocol.MsgInstructions, protocol.InstructionsPayload{Text: text})
}

func (s *Screen) setInstructions(text string) {
	if !s.activePrivileged() {
		s.sendNotice("Only the keeper may change the instructions.")
		return
	}
	if strings.TrimSpace(text) == "" {
		s.sendNotice("The instructions cannot be empty.")
		return
	}
	if err := s.instructions.Set(s.ctx, text); err != nil {
		s.logger.Errorf("saving instructions: %v", err)
		s.sendNotice("The instructions could not be saved.")
		return
	}
	s.sendNotice("Instructions updated.")
}

func (s *Screen) activePrivileged() bool {
	active := s.store.Active()
	return active != nil && active.Privileged
}

func (s *Screen) isKeeper(name string) bool {
	return s.config.KeeperName != "" && strings.EqualFold(strings.TrimSpace(name), s.config.KeeperName)
}

func (s *Screen) sendChats() {
	sessions := s.store.Sessions()
	wire := make([]protocol.WireChat, 0, len(sessions))
	for _, session := range sessions {
		wire = append(wire, wireChat(session))
	}
	activeID := ""
	if active := s.store.Active(); active != nil {
		activeID = active.ID
	}
	s.send(protocol.MsgChats, protocol.ChatsPayload{Chats: wire, ActiveChatID: activeID})
}

func (s *Screen) sendSelected() {
	active := s.store.Active()
	if active == nil {
		return
	}
	messages := make([]protocol.WireMessage, 0, len(active.Messages))
	for _, msg := range active.Messages {
		messages = append(messages, wireMessage(msg))
	}
	s.send(protocol.MsgChatSelected, protocol.ChatSelectedPayload{
		Chat:     wireChat(active),
		Messages: messages,
	})
}

func (s *Screen) sendShowPanel(panel string, described map[string]string) {
	s.send(protocol.MsgShowPanel, protocol.ShowPanelPayload{Panel: panel, Commands: described})
}

func (s *Screen) sendNotice(text string) {
	s.send(protocol.MsgNotice, protocol.NoticePayload{Text: text})
}

func (s *Screen) send(msgType protocol.MessageType, payload interface{}) {
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		s.logger.Errorf("marshaling %s: %v", msgType, err)
		return
	}
	if err := s.sender.Send(data); err != nil {
		s.logger.Warnf("sending %s to client: %v", msgType, err)
	}
}

func wireChat(session *chat.Session) protocol.WireChat {
	return protocol.WireChat{
		ID:          session.ID,
		DisplayName: session.DisplayName,
		UserName:    session.UserName,
		UserAge:     session.UserAge,
		Privileged:  session.Privileged,
		CreatedAt:   session.CreatedAt,
	}
}

func wireMessage(msg chat.Message) protocol.WireMessage {
	return protocol.WireMessage{
		ID:        msg.ID,
		Role:      msg.Role,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
}
