package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketsocrates/core"
	"pocketsocrates/events/command"
	"pocketsocrates/events/transport"
	"pocketsocrates/store"
)

func startHandler(t *testing.T, sessionStore *store.Store) (chan *core.EventPacket, chan *core.EventPacket, chan *core.EventPacket) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	handler := NewCommandHandler(sessionStore, nil)
	inputChan := make(chan *core.EventPacket, 16)
	nextChan := make(chan *core.EventPacket, 16)
	topChan := make(chan *core.EventPacket, 16)
	require.NoError(t, handler.Initialize(inputChan, nextChan, topChan, ctx))
	require.NoError(t, handler.Start())
	return inputChan, nextChan, topChan
}

func recvPacket(t *testing.T, ch <-chan *core.EventPacket) *core.EventPacket {
	t.Helper()
	select {
	case packet := <-ch:
		return packet
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for packet")
		return nil
	}
}

func textPacket(text string) *core.EventPacket {
	return core.NewEventPacket(&transport.TextInputEvent{Text: text}, core.DestinationNext, "test")
}

func TestPlainTextBecomesDialogueText(t *testing.T) {
	inputChan, nextChan, _ := startHandler(t, store.NewStore(nil, nil))

	inputChan <- textPacket("what is courage?")

	out := recvPacket(t, nextChan)
	event, ok := out.Event.(*command.DialogueTextEvent)
	require.True(t, ok)
	assert.Equal(t, "what is courage?", event.Text)
}

func TestCloseGoesDownThePipeline(t *testing.T) {
	inputChan, nextChan, topChan := startHandler(t, store.NewStore(nil, nil))

	inputChan <- textPacket("/close")

	out := recvPacket(t, nextChan)
	assert.IsType(t, &command.CloseRequestedEvent{}, out.Event)
	assert.Empty(t, topChan)
}

func TestScreenCommandsGoToTop(t *testing.T) {
	inputChan, nextChan, topChan := startHandler(t, store.NewStore(nil, nil))

	inputChan <- textPacket("/new")
	out := recvPacket(t, topChan)
	assert.IsType(t, &command.CreateSessionRequestedEvent{}, out.Event)

	inputChan <- textPacket("/clear")
	out = recvPacket(t, topChan)
	assert.IsType(t, &command.ClearRequestedEvent{}, out.Event)

	inputChan <- textPacket("/help")
	out = recvPacket(t, topChan)
	panel, ok := out.Event.(*command.ShowPanelEvent)
	require.True(t, ok)
	assert.Equal(t, "help", panel.Panel)
	assert.Empty(t, nextChan)
}

func TestVoiceToggleFlipsState(t *testing.T) {
	inputChan, nextChan, _ := startHandler(t, store.NewStore(nil, nil))

	inputChan <- textPacket("/voice")
	out := recvPacket(t, nextChan)
	toggle, ok := out.Event.(*command.VoiceToggledEvent)
	require.True(t, ok)
	assert.True(t, toggle.Enabled)

	notice := recvPacket(t, nextChan)
	assert.IsType(t, &core.Notice{}, notice.Event)

	inputChan <- textPacket("/voice")
	out = recvPacket(t, nextChan)
	toggle, ok = out.Event.(*command.VoiceToggledEvent)
	require.True(t, ok)
	assert.False(t, toggle.Enabled)
}

func TestInstructionsRequiresPrivilegedSession(t *testing.T) {
	sessionStore := store.NewStore(nil, nil)
	_, err := sessionStore.Create(context.Background(), "Crito", 41, false)
	require.NoError(t, err)

	inputChan, nextChan, topChan := startHandler(t, sessionStore)

	inputChan <- textPacket("system instructions")
	out := recvPacket(t, nextChan)
	event, ok := out.Event.(*command.DialogueTextEvent)
	require.True(t, ok)
	assert.Equal(t, "system instructions", event.Text)
	assert.Empty(t, topChan)
}

func TestInstructionsOpensForKeeper(t *testing.T) {
	sessionStore := store.NewStore(nil, nil)
	_, err := sessionStore.Create(context.Background(), "Keeper", 41, true)
	require.NoError(t, err)

	inputChan, _, topChan := startHandler(t, sessionStore)

	inputChan <- textPacket("instructions")
	out := recvPacket(t, topChan)
	panel, ok := out.Event.(*command.ShowPanelEvent)
	require.True(t, ok)
	assert.Equal(t, "instructions", panel.Panel)
}
