package dialogue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pocketsocrates/chat"
	"pocketsocrates/core"
	"pocketsocrates/events/command"
	"pocketsocrates/events/dialogue"
	"pocketsocrates/store"
)

type fakeGeneration struct {
	mu      sync.Mutex
	content string
	err     error
	block   chan struct{}
	reqs    []core.GenerationRequest
}

func (f *fakeGeneration) Init(ctx context.Context) error { return nil }
func (f *fakeGeneration) Cleanup() error                 { return nil }
func (f *fakeGeneration) Reset() error                   { return nil }
func (f *fakeGeneration) Name() string                   { return "fake-generation" }

func (f *fakeGeneration) Generate(ctx context.Context, req core.GenerationRequest) (core.GenerationResponse, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	block := f.block
	content, err := f.content, f.err
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return core.GenerationResponse{}, err
	}
	return core.GenerationResponse{Content: content}, nil
}

func (f *fakeGeneration) requests() []core.GenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.GenerationRequest(nil), f.reqs...)
}

func startDialogue(t *testing.T, service IGenerationService, sessionStore *store.Store) (*DialogueHandler, chan *core.EventPacket, chan *core.EventPacket, chan *core.EventPacket) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	handler := NewDialogueHandler(service, nil, sessionStore, store.NewMemoryInstructionStore(), DefaultDialogueConfig(), nil)
	inputChan := make(chan *core.EventPacket, 16)
	nextChan := make(chan *core.EventPacket, 16)
	topChan := make(chan *core.EventPacket, 16)
	require.NoError(t, handler.Initialize(inputChan, nextChan, topChan, ctx))
	require.NoError(t, handler.Start())
	return handler, inputChan, nextChan, topChan
}

func storeWithSession(t *testing.T) (*store.Store, *chat.Session) {
	t.Helper()
	sessionStore := store.NewStore(nil, nil)
	session, err := sessionStore.Create(context.Background(), "Phaedrus", 25, false)
	require.NoError(t, err)
	return sessionStore, session
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
	return core.NewEventPacket(&command.DialogueTextEvent{Text: text}, core.DestinationNext, "test")
}

func TestTurnCommitsUserThenAssistant(t *testing.T) {
	sessionStore, session := storeWithSession(t)
	service := &fakeGeneration{content: "What do you mean by courage?"}
	_, inputChan, nextChan, _ := startDialogue(t, service, sessionStore)

	inputChan <- textPacket("what is courage?")

	first := recvPacket(t, nextChan)
	userAdded, ok := first.Event.(*dialogue.MessageAddedEvent)
	require.True(t, ok)
	assert.Equal(t, core.RoleUser, userAdded.Message.Role)
	assert.Equal(t, "what is courage?", userAdded.Message.Content)

	second := recvPacket(t, nextChan)
	assistantAdded, ok := second.Event.(*dialogue.MessageAddedEvent)
	require.True(t, ok)
	assert.Equal(t, core.RoleAssistant, assistantAdded.Message.Role)
	assert.False(t, assistantAdded.Message.CreatedAt.Before(userAdded.Message.CreatedAt))

	third := recvPacket(t, nextChan)
	speak, ok := third.Event.(*dialogue.SpeakCandidateEvent)
	require.True(t, ok)
	assert.Equal(t, "What do you mean by courage?", speak.Text)

	stored := sessionStore.Get(session.ID)
	require.Len(t, stored.Messages, 3) // welcome + user + assistant
	assert.Equal(t, core.RoleUser, stored.Messages[1].Role)
	assert.Equal(t, core.RoleAssistant, stored.Messages[2].Role)
}

func TestSystemPromptCarriesUserMetadata(t *testing.T) {
	sessionStore, _ := storeWithSession(t)
	service := &fakeGeneration{content: "Indeed."}
	_, inputChan, nextChan, _ := startDialogue(t, service, sessionStore)

	inputChan <- textPacket("hello")
	recvPacket(t, nextChan) // user added
	recvPacket(t, nextChan) // assistant added

	reqs := service.requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].SystemPrompt, "You are Socrates")
	assert.Contains(t, reqs[0].SystemPrompt, "Phaedrus, who is 25 years old")
	// history includes the seeded welcome and the new user turn
	require.GreaterOrEqual(t, len(reqs[0].Messages), 2)
	last := reqs[0].Messages[len(reqs[0].Messages)-1]
	assert.Equal(t, core.RoleUser, last.Role)
	assert.Equal(t, "hello", last.Content)
}

func TestBlankInputIsIgnored(t *testing.T) {
	sessionStore, session := storeWithSession(t)
	service := &fakeGeneration{content: "unused"}
	_, inputChan, nextChan, _ := startDialogue(t, service, sessionStore)

	inputChan <- textPacket("   ")

	select {
	case out := <-nextChan:
		t.Fatalf("unexpected packet %s", out.Event.GetId())
	case <-time.After(100 * time.Millisecond):
	}
	assert.Len(t, sessionStore.Get(session.ID).Messages, 1)
}

func TestNoActiveSessionIgnoresInput(t *testing.T) {
	service := &fakeGeneration{content: "unused"}
	_, inputChan, nextChan, _ := startDialogue(t, service, store.NewStore(nil, nil))

	inputChan <- textPacket("anyone there?")

	select {
	case out := <-nextChan:
		t.Fatalf("unexpected packet %s", out.Event.GetId())
	case <-time.After(100 * time.Millisecond):
	}
	assert.Empty(t, service.requests())
}

func TestSecondSendWhileInFlightIsDropped(t *testing.T) {
	sessionStore, session := storeWithSession(t)
	block := make(chan struct{})
	service := &fakeGeneration{content: "slow reply", block: block}
	handler, inputChan, nextChan, _ := startDialogue(t, service, sessionStore)

	inputChan <- textPacket("first")
	recvPacket(t, nextChan) // first user message committed

	require.Eventually(t, func() bool {
		return handler.State() == StateSending
	}, time.Second, 10*time.Millisecond)

	inputChan <- textPacket("second")
	// give the input loop time to consume and drop the second send
	time.Sleep(100 * time.Millisecond)
	close(block)

	recvPacket(t, nextChan) // assistant added
	recvPacket(t, nextChan) // speak candidate

	require.Eventually(t, func() bool {
		return handler.State() == StateIdle
	}, time.Second, 10*time.Millisecond)

	messages := sessionStore.Get(session.ID).Messages
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[1].Content)
	assert.Equal(t, int32(1), int32(len(service.requests())))
}

func TestGenerationFailureKeepsUserMessage(t *testing.T) {
	sessionStore, session := storeWithSession(t)
	service := &fakeGeneration{err: errors.New("backend down")}
	handler, inputChan, nextChan, _ := startDialogue(t, service, sessionStore)

	inputChan <- textPacket("a doomed question")
	recvPacket(t, nextChan) // user added

	out := recvPacket(t, nextChan)
	notice, ok := out.Event.(*core.Notice)
	require.True(t, ok)
	assert.Contains(t, notice.Text, "lost in thought")

	require.Eventually(t, func() bool {
		return handler.State() == StateIdle
	}, time.Second, 10*time.Millisecond)

	messages := sessionStore.Get(session.ID).Messages
	require.Len(t, messages, 2)
	assert.Equal(t, "a doomed question", messages[1].Content)

	// a new turn works once the backend recovers
	service.mu.Lock()
	service.err = nil
	service.content = "recovered"
	service.mu.Unlock()

	inputChan <- textPacket("try again")
	recvPacket(t, nextChan) // user added
	out = recvPacket(t, nextChan)
	added, ok := out.Event.(*dialogue.MessageAddedEvent)
	require.True(t, ok)
	assert.Equal(t, "recovered", added.Message.Content)
}

func TestCloseWithoutDialogueNotifies(t *testing.T) {
	sessionStore, _ := storeWithSession(t)
	service := &fakeGeneration{content: "unused"}
	_, inputChan, nextChan, topChan := startDialogue(t, service, sessionStore)

	inputChan <- core.NewEventPacket(&command.CloseRequestedEvent{}, core.DestinationNext, "test")

	out := recvPacket(t, nextChan)
	notice, ok := out.Event.(*core.Notice)
	require.True(t, ok)
	assert.Contains(t, notice.Text, "nothing to summarize")
	assert.Empty(t, topChan)
	assert.Empty(t, service.requests())
}

func TestCloseProducesTakeaways(t *testing.T) {
	sessionStore, session := storeWithSession(t)
	require.NoError(t, sessionStore.AppendMessage(context.Background(), session.ID, chat.NewMessage(core.RoleUser, "what is justice?")))
	require.NoError(t, sessionStore.AppendMessage(context.Background(), session.ID, chat.NewMessage(core.RoleAssistant, "Let us examine it together.")))

	service := &fakeGeneration{content: "- Justice is harmony of the soul\n- Questions beat answers\nREFLECTION: The search continues."}
	_, inputChan, nextChan, topChan := startDialogue(t, service, sessionStore)

	inputChan <- core.NewEventPacket(&command.CloseRequestedEvent{}, core.DestinationNext, "test")

	out := recvPacket(t, nextChan)
	ready, ok := out.Event.(*dialogue.TakeawaysReadyEvent)
	require.True(t, ok)
	assert.Equal(t, []string{"Justice is harmony of the soul", "Questions beat answers"}, ready.Result.Points)
	assert.Equal(t, "The search continues.", ready.Result.Reflection)

	top := recvPacket(t, topChan)
	end, ok := top.Event.(*core.EndSession)
	require.True(t, ok)
	assert.True(t, end.WantsTakeaways)

	reqs := service.requests()
	require.Len(t, reqs, 1)
	last := reqs[0].Messages[len(reqs[0].Messages)-1]
	assert.Equal(t, core.RoleUser, last.Role)
	assert.Contains(t, last.Content, "REFLECTION:")
}

func TestGenerationFailsOverToBackupService(t *testing.T) {
	sessionStore, _ := storeWithSession(t)
	primary := &fakeGeneration{err: errors.New("upstream down")}
	backup := &fakeGeneration{content: "Courage is knowing what not to fear."}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	handler := NewDialogueHandler(primary, []IGenerationService{backup}, sessionStore, store.NewMemoryInstructionStore(), DefaultDialogueConfig(), nil)
	inputChan := make(chan *core.EventPacket, 16)
	nextChan := make(chan *core.EventPacket, 16)
	require.NoError(t, handler.Initialize(inputChan, nextChan, make(chan *core.EventPacket, 16), ctx))
	require.NoError(t, handler.Start())

	inputChan <- textPacket("what is courage?")

	recvPacket(t, nextChan) // user message
	out := recvPacket(t, nextChan)
	added, ok := out.Event.(*dialogue.MessageAddedEvent)
	require.True(t, ok, "got %s instead of the assistant reply", out.Event.GetId())
	assert.Equal(t, core.RoleAssistant, added.Message.Role)
	assert.Equal(t, "Courage is knowing what not to fear.", added.Message.Content)
	assert.Len(t, primary.requests(), 1)
	assert.Len(t, backup.requests(), 1)
}
