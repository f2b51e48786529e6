package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketsocrates/chat"
	"pocketsocrates/core"
	"pocketsocrates/events/dialogue"
	"pocketsocrates/events/transport"
	"pocketsocrates/protocol"
)

type fakeTransport struct {
	recv chan []byte
	sent chan []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		recv: make(chan []byte, 16),
		sent: make(chan []byte, 16),
	}
}

func (f *fakeTransport) Init(ctx context.Context) error { return nil }
func (f *fakeTransport) Cleanup() error                 { return nil }
func (f *fakeTransport) Reset() error                   { return nil }
func (f *fakeTransport) Name() string                   { return "fake-transport" }

func (f *fakeTransport) Send(data []byte) error {
	f.sent <- data
	return nil
}

func (f *fakeTransport) StartReceiving(dataChan chan<- []byte, errChan chan<- error) {
	for data := range f.recv {
		dataChan <- data
	}
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

func recvBytes(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case data := <-ch:
		return data
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for wire data")
		return nil
	}
}

func TestInputHandlerDecodesPipelineMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := newFakeTransport()
	handler := NewHandlerWrapper(fake, nil).InputHandler()

	inputChan := make(chan *core.EventPacket, 4)
	nextChan := make(chan *core.EventPacket, 4)
	topChan := make(chan *core.EventPacket, 4)
	require.NoError(t, handler.Initialize(inputChan, nextChan, topChan, ctx))
	require.NoError(t, handler.Start())

	data, err := protocol.Marshal(protocol.MsgTextInput, protocol.TextInputPayload{Text: "what is virtue?"})
	require.NoError(t, err)
	fake.recv <- data

	packet := recvPacket(t, nextChan)
	event, ok := packet.Event.(*transport.TextInputEvent)
	require.True(t, ok)
	assert.Equal(t, "what is virtue?", event.Text)

	data, err = protocol.Marshal(protocol.MsgRecordStart, nil)
	require.NoError(t, err)
	fake.recv <- data

	packet = recvPacket(t, nextChan)
	assert.IsType(t, &transport.RecordStartEvent{}, packet.Event)
}

func TestInputHandlerRoutesControlMessagesToScreen(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := newFakeTransport()
	handler := NewHandlerWrapper(fake, nil).InputHandler()

	nextChan := make(chan *core.EventPacket, 4)
	topChan := make(chan *core.EventPacket, 4)
	require.NoError(t, handler.Initialize(make(chan *core.EventPacket), nextChan, topChan, ctx))
	require.NoError(t, handler.Start())

	data, err := protocol.Marshal(protocol.MsgCreateChat, protocol.CreateChatPayload{Name: "Plato", Age: 28})
	require.NoError(t, err)
	fake.recv <- data

	packet := recvPacket(t, topChan)
	event, ok := packet.Event.(*transport.ControlEvent)
	require.True(t, ok)
	assert.Equal(t, string(protocol.MsgCreateChat), event.Type)

	payload, err := protocol.UnmarshalPayload[protocol.CreateChatPayload](event.Payload)
	require.NoError(t, err)
	assert.Equal(t, "Plato", payload.Name)
	assert.Equal(t, 28, payload.Age)
	assert.Empty(t, nextChan)
}

func TestOutputHandlerSerializesEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := newFakeTransport()
	handler := NewHandlerWrapper(fake, nil).OutputHandler()

	inputChan := make(chan *core.EventPacket, 4)
	require.NoError(t, handler.Initialize(inputChan, make(chan *core.EventPacket, 4), make(chan *core.EventPacket, 4), ctx))
	require.NoError(t, handler.Start())

	inputChan <- core.NewEventPacket(&core.Notice{Text: "only one recording at a time"}, core.DestinationNext, "test")

	msgType, raw, err := protocol.Unmarshal(recvBytes(t, fake.sent))
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgNotice, msgType)

	notice, err := protocol.UnmarshalPayload[protocol.NoticePayload](raw)
	require.NoError(t, err)
	assert.Equal(t, "only one recording at a time", notice.Text)
}

func TestOutputHandlerSerializesMessageAdded(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := newFakeTransport()
	handler := NewHandlerWrapper(fake, nil).OutputHandler()

	inputChan := make(chan *core.EventPacket, 4)
	require.NoError(t, handler.Initialize(inputChan, make(chan *core.EventPacket, 4), make(chan *core.EventPacket, 4), ctx))
	require.NoError(t, handler.Start())

	now := time.Now().UTC()
	inputChan <- core.NewEventPacket(&dialogue.MessageAddedEvent{
		SessionID: "s1",
		Message:   chat.Message{ID: "m1", Role: core.RoleUser, Content: "hello", CreatedAt: now},
	}, core.DestinationNext, "test")

	msgType, raw, err := protocol.Unmarshal(recvBytes(t, fake.sent))
	require.NoError(t, err)
	assert.Equal(t, protocol.MsgMessage, msgType)

	payload, err := protocol.UnmarshalPayload[protocol.MessagePayload](raw)
	require.NoError(t, err)
	assert.Equal(t, "s1", payload.ChatID)
	assert.Equal(t, "m1", payload.Message.ID)
	assert.Equal(t, core.RoleUser, payload.Message.Role)
	assert.Equal(t, "hello", payload.Message.Content)
}
