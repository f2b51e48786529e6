package runner

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketsocrates/chat"
	"pocketsocrates/core"
	"pocketsocrates/events/command"
	"pocketsocrates/events/transport"
	"pocketsocrates/protocol"
	"pocketsocrates/store"
)

type sentMessage struct {
	msgType protocol.MessageType
	payload []byte
}

type fakeSender struct {
	messages []sentMessage
}

func (f *fakeSender) Send(data []byte) error {
	msgType, payload, err := protocol.Unmarshal(data)
	if err != nil {
		return err
	}
	f.messages = append(f.messages, sentMessage{msgType: msgType, payload: payload})
	return nil
}

func (f *fakeSender) last(t *testing.T, msgType protocol.MessageType) []byte {
	t.Helper()
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].msgType == msgType {
			return f.messages[i].payload
		}
	}
	t.Fatalf("no %s message sent (got %d messages)", msgType, len(f.messages))
	return nil
}

func newScreen(t *testing.T, keeperName string) (*Screen, *fakeSender, *store.Store) {
	t.Helper()
	sender := &fakeSender{}
	sessionStore := store.NewStore(nil, nil)
	screen := NewScreen(ScreenConfig{KeeperName: keeperName}, sessionStore, store.NewMemoryInstructionStore(), sender, nil)
	require.NoError(t, screen.Open(context.Background()))
	return screen, sender, sessionStore
}

func controlPacket(t *testing.T, msgType protocol.MessageType, payload interface{}) *core.EventPacket {
	t.Helper()
	data, err := protocol.Marshal(msgType, payload)
	require.NoError(t, err)
	_, raw, err := protocol.Unmarshal(data)
	require.NoError(t, err)
	return core.NewEventPacket(&transport.ControlEvent{Type: string(msgType), Payload: raw}, core.DestinationTop, "test")
}

func TestOpenBootstrapsDemoSession(t *testing.T) {
	_, sender, sessionStore := newScreen(t, "")

	chats, err := protocol.UnmarshalPayload[protocol.ChatsPayload](sender.last(t, protocol.MsgChats))
	require.NoError(t, err)
	require.Len(t, chats.Chats, 1)
	assert.Equal(t, store.DemoSessionName, chats.Chats[0].UserName)
	assert.Equal(t, chats.Chats[0].ID, chats.ActiveChatID)

	selected, err := protocol.UnmarshalPayload[protocol.ChatSelectedPayload](sender.last(t, protocol.MsgChatSelected))
	require.NoError(t, err)
	require.Len(t, selected.Messages, 1)
	assert.Equal(t, core.RoleAssistant, selected.Messages[0].Role)

	assert.NotNil(t, sessionStore.Active())
}

func TestCreateChatForKeeperIsPrivileged(t *testing.T) {
	screen, sender, sessionStore := newScreen(t, "Aspasia")

	screen.HandleTop(controlPacket(t, protocol.MsgCreateChat, protocol.CreateChatPayload{Name: "aspasia", Age: 35}))

	selected, err := protocol.UnmarshalPayload[protocol.ChatSelectedPayload](sender.last(t, protocol.MsgChatSelected))
	require.NoError(t, err)
	assert.True(t, selected.Chat.Privileged)
	assert.Contains(t, selected.Chat.DisplayName, "Keeper of the Agora")
	assert.True(t, sessionStore.Active().Privileged)
}

func TestCreateChatWithNegativeAgeWarns(t *testing.T) {
	screen, sender, sessionStore := newScreen(t, "")
	before := len(sessionStore.Sessions())

	screen.HandleTop(controlPacket(t, protocol.MsgCreateChat, protocol.CreateChatPayload{Name: "Chronos", Age: -3}))

	warning, err := protocol.UnmarshalPayload[protocol.AgeWarningPayload](sender.last(t, protocol.MsgAgeWarning))
	require.NoError(t, err)
	assert.Equal(t, -3, warning.Age)
	assert.Contains(t, warning.Text, "you will be born 3 years after today")
	assert.Len(t, sessionStore.Sessions(), before)
}

func TestClearRequestedEmptiesActiveChat(t *testing.T) {
	screen, sender, sessionStore := newScreen(t, "")
	active := sessionStore.Active()
	require.NotNil(t, active)

	screen.HandleTop(core.NewEventPacket(&command.ClearRequestedEvent{}, core.DestinationTop, "test"))

	cleared, err := protocol.UnmarshalPayload[protocol.ClearedPayload](sender.last(t, protocol.MsgCleared))
	require.NoError(t, err)
	assert.Equal(t, active.ID, cleared.ChatID)
	assert.Empty(t, sessionStore.Get(active.ID).Messages)
}

func TestHelpPanelCarriesAllCommands(t *testing.T) {
	screen, sender, _ := newScreen(t, "")

	screen.HandleTop(core.NewEventPacket(&command.ShowPanelEvent{Panel: "help"}, core.DestinationTop, "test"))

	panel, err := protocol.UnmarshalPayload[protocol.ShowPanelPayload](sender.last(t, protocol.MsgShowPanel))
	require.NoError(t, err)
	assert.Equal(t, "help", panel.Panel)
	assert.Len(t, panel.Commands, 7)
	assert.Contains(t, panel.Commands, "/close")
}

func TestInstructionsAreGated(t *testing.T) {
	screen, sender, _ := newScreen(t, "Aspasia")

	// the demo session is not privileged
	screen.HandleTop(controlPacket(t, protocol.MsgGetInstructions, nil))
	notice, err := protocol.UnmarshalPayload[protocol.NoticePayload](sender.last(t, protocol.MsgNotice))
	require.NoError(t, err)
	assert.Contains(t, notice.Text, "keeper")

	screen.HandleTop(controlPacket(t, protocol.MsgCreateChat, protocol.CreateChatPayload{Name: "Aspasia", Age: 35}))
	screen.HandleTop(controlPacket(t, protocol.MsgGetInstructions, nil))

	instructions, err := protocol.UnmarshalPayload[protocol.InstructionsPayload](sender.last(t, protocol.MsgInstructions))
	require.NoError(t, err)
	assert.Contains(t, instructions.Text, "You are Socrates")

	screen.HandleTop(controlPacket(t, protocol.MsgSetInstructions, protocol.SetInstructionsPayload{Text: "You are Diogenes."}))
	screen.HandleTop(controlPacket(t, protocol.MsgGetInstructions, nil))

	instructions, err = protocol.UnmarshalPayload[protocol.InstructionsPayload](sender.last(t, protocol.MsgInstructions))
	require.NoError(t, err)
	assert.Equal(t, "You are Diogenes.", instructions.Text)
}

func TestDeleteActiveChatSelectsRemaining(t *testing.T) {
	screen, sender, sessionStore := newScreen(t, "")
	screen.HandleTop(controlPacket(t, protocol.MsgCreateChat, protocol.CreateChatPayload{Name: "Meno", Age: 22}))

	active := sessionStore.Active()
	require.Equal(t, "Meno", active.UserName)

	screen.HandleTop(controlPacket(t, protocol.MsgDeleteChat, protocol.DeleteChatPayload{ChatID: active.ID}))

	chats, err := protocol.UnmarshalPayload[protocol.ChatsPayload](sender.last(t, protocol.MsgChats))
	require.NoError(t, err)
	require.Len(t, chats.Chats, 1)
	assert.Equal(t, store.DemoSessionName, chats.Chats[0].UserName)
	assert.Equal(t, chats.Chats[0].ID, chats.ActiveChatID)
}

func TestCriticalErrorStopsSession(t *testing.T) {
	screen, sender, _ := newScreen(t, "")
	stopped := false
	screen.SetStopFunc(func() { stopped = true })

	screen.HandleTop(core.NewEventPacket(&core.CriticalError{Err: assert.AnError}, core.DestinationTop, "test"))

	notice, err := protocol.UnmarshalPayload[protocol.NoticePayload](sender.last(t, protocol.MsgNotice))
	require.NoError(t, err)
	assert.Contains(t, notice.Text, "session must end")
	assert.True(t, stopped)
}

func TestMergeRemoteInsertForwardsActiveSessionMessages(t *testing.T) {
	screen, sender, sessionStore := newScreen(t, "")
	active := sessionStore.Active()
	require.NotNil(t, active)

	screen.MergeRemoteInsert(active.ID, chat.Message{ID: "remote-1", Role: core.RoleUser, Content: "from elsewhere"})

	payload, err := protocol.UnmarshalPayload[protocol.MessagePayload](sender.last(t, protocol.MsgMessage))
	require.NoError(t, err)
	assert.Equal(t, "remote-1", payload.Message.ID)
	assert.True(t, sessionStore.Get(active.ID).HasMessage("remote-1"))
}

func TestEndSessionSurfacesTakeawaysPanel(t *testing.T) {
	screen, sender, _ := newScreen(t, "")

	screen.HandleTop(core.NewEventPacket(&core.EndSession{WantsTakeaways: true}, core.DestinationTop, "test"))

	panel, err := protocol.UnmarshalPayload[protocol.ShowPanelPayload](sender.last(t, protocol.MsgShowPanel))
	require.NoError(t, err)
	assert.Equal(t, "takeaways", panel.Panel)
}

func TestChatsPayloadAlwaysCarriesActiveChatID(t *testing.T) {
	screen, sender, sessionStore := newScreen(t, "")
	active := sessionStore.Active()
	require.NotNil(t, active)

	// deleting the last chat leaves no selection; the field must still be
	// on the wire so the client can tell "none" from a stale value
	screen.HandleTop(controlPacket(t, protocol.MsgDeleteChat, protocol.DeleteChatPayload{ChatID: active.ID}))

	raw := sender.last(t, protocol.MsgChats)
	assert.Contains(t, string(raw), `"active_chat_id":""`)

	chats, err := protocol.UnmarshalPayload[protocol.ChatsPayload](raw)
	require.NoError(t, err)
	assert.Empty(t, chats.Chats)
	assert.Empty(t, chats.ActiveChatID)
}

// recordingPersistence captures the context passed to CreateSession.
type recordingPersistence struct {
	mu        sync.Mutex
	createCtx context.Context
}

func (p *recordingPersistence) LoadSessions(context.Context) ([]*chat.Session, error) {
	return nil, nil
}

func (p *recordingPersistence) CreateSession(ctx context.Context, _ *chat.Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createCtx = ctx
	return nil
}

func (p *recordingPersistence) DeleteSession(context.Context, string) error           { return nil }
func (p *recordingPersistence) UpdateSession(context.Context, *chat.Session) error    { return nil }
func (p *recordingPersistence) InsertMessage(context.Context, string, chat.Message) error {
	return nil
}
func (p *recordingPersistence) DeleteMessages(context.Context, string) error { return nil }

func TestControlFrameBeforeOpenStillCarriesContext(t *testing.T) {
	sender := &fakeSender{}
	persistence := &recordingPersistence{}
	sessionStore := store.NewStore(persistence, nil)
	screen := NewScreen(ScreenConfig{}, sessionStore, store.NewMemoryInstructionStore(), sender, nil)

	// a fast client can race its first frame ahead of Open
	screen.HandleTop(controlPacket(t, protocol.MsgCreateChat, protocol.CreateChatPayload{Name: "Meno", Age: 22}))

	persistence.mu.Lock()
	createCtx := persistence.createCtx
	persistence.mu.Unlock()
	require.NotNil(t, createCtx, "persistence must never see a nil context")
	assert.NotNil(t, sessionStore.Active())
}

type discardSender struct{}

func (discardSender) Send([]byte) error { return nil }

func TestSelectionUpdatesWhileDialogueAppends(t *testing.T) {
	sessionStore := store.NewStore(nil, nil)
	screen := NewScreen(ScreenConfig{}, sessionStore, store.NewMemoryInstructionStore(), discardSender{}, nil)
	require.NoError(t, screen.Open(context.Background()))
	active := sessionStore.Active()
	require.NotNil(t, active)

	// the dialogue goroutine appends while the screen pushes the selected
	// chat's history to the client
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = sessionStore.AppendMessage(context.Background(), active.ID, chat.NewMessage(core.RoleUser, "turn"))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			screen.sendSelected()
		}
	}()
	wg.Wait()

	assert.Len(t, sessionStore.Get(active.ID).Messages, 201)
}
