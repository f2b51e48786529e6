// Package dialogue coordinates conversation turns: it commits user input to
// the active session, asks the generation backend for the reply and commits
// that too. It also produces the closing session summary.
package dialogue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"pocketsocrates/chat"
	"pocketsocrates/core"
	"pocketsocrates/events/command"
	"pocketsocrates/events/dialogue"
	"pocketsocrates/store"
	"pocketsocrates/takeaways"
)

// TurnState tracks whether a generation call is in flight.
type TurnState int

const (
	StateIdle TurnState = iota
	StateSending
)

type IGenerationService interface {
	core.IService
	Generate(ctx context.Context, req core.GenerationRequest) (core.GenerationResponse, error)
}

type DialogueConfig struct {
	// GenerateTimeout bounds one generation call, in nanoseconds when set via JSON.
	GenerateTimeout time.Duration `json:"generate_timeout,omitempty"`
}

func DefaultDialogueConfig() DialogueConfig {
	return DialogueConfig{GenerateTimeout: 30 * time.Second}
}

// summaryPrompt is appended as a final user turn when a session closes with
// takeaways. Its format matches what the takeaways extractor parses.
const summaryPrompt = `Our dialogue is ending. Summarize the key insights we reached as a short list of bullet points, each on its own line starting with "- ". Then add one final line starting with "REFLECTION:" followed by a single closing thought in your own voice.`

type DialogueHandler struct {
	core.BaseHandler
	config       DialogueConfig
	store        *store.Store
	instructions store.InstructionStore

	mu    sync.Mutex
	state TurnState
}

func NewDialogueHandler(
	service IGenerationService,
	backupServices []IGenerationService,
	sessionStore *store.Store,
	instructions store.InstructionStore,
	config DialogueConfig,
	logger *core.Logger,
) *DialogueHandler {
	typedServices := make([]core.IService, len(backupServices))
	for i, s := range backupServices {
		typedServices[i] = s
	}
	if config.GenerateTimeout <= 0 {
		config.GenerateTimeout = DefaultDialogueConfig().GenerateTimeout
	}
	h := &DialogueHandler{
		BaseHandler:  *core.NewBaseHandler(service, typedServices, logger),
		config:       config,
		store:        sessionStore,
		instructions: instructions,
	}
	h.SetHandleEventFunc(h.HandleEvent)
	return h
}

func (h *DialogueHandler) HandleEvent(eventPacket *core.EventPacket) error {
	switch event := eventPacket.Event.(type) {
	case *command.DialogueTextEvent:
		h.startTurn(event.Text)
	case *command.CloseRequestedEvent:
		h.closeSession()
	default:
		h.SendPacket(eventPacket)
	}
	return nil
}

// State reports whether a turn is in flight.
func (h *DialogueHandler) State() TurnState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *DialogueHandler) startTurn(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	session := h.store.Active()
	if session == nil {
		return
	}
	if !h.enterSending() {
		// a turn is already in flight; the input is dropped silently
		return
	}

	// the user message is committed before generation starts so it survives
	// a failed turn
	userMessage := chat.NewMessage(core.RoleUser, text)
	if err := h.store.AppendMessage(h.Ctx, session.ID, userMessage); err != nil {
		h.leaveSending()
		h.Logger.Errorf("storing user message: %v", err)
		h.notify("Your message could not be saved. Please try again.")
		return
	}
	h.sendNext(&dialogue.MessageAddedEvent{SessionID: session.ID, Message: userMessage})

	go h.runTurn(session.ID)
}

func (h *DialogueHandler) runTurn(sessionID string) {
	defer h.leaveSending()

	session := h.store.Get(sessionID)
	if session == nil {
		return
	}

	req := core.GenerationRequest{
		SystemPrompt: h.systemPrompt(session),
		Messages:     toGenerationMessages(session.Messages),
	}

	ctx, cancel := context.WithTimeout(h.Ctx, h.config.GenerateTimeout)
	defer cancel()

	resp, err := h.generate(ctx, req)
	if err != nil {
		h.notify("Socrates is lost in thought. Please try again.")
		return
	}

	reply := chat.NewMessage(core.RoleAssistant, resp.Content)
	if err := h.store.AppendMessage(h.Ctx, sessionID, reply); err != nil {
		h.Logger.Errorf("storing assistant message: %v", err)
		h.notify("The reply could not be saved.")
		return
	}
	h.sendNext(&dialogue.MessageAddedEvent{SessionID: sessionID, Message: reply})
	h.sendNext(&dialogue.SpeakCandidateEvent{Text: resp.Content})
}

func (h *DialogueHandler) closeSession() {
	session := h.store.Active()
	if session == nil {
		h.notify("There is no chat to close.")
		return
	}
	if !hasUserTurns(session.Messages) {
		h.notify("There is nothing to summarize yet.")
		return
	}
	if !h.enterSending() {
		return
	}

	go h.runSummary(session.ID)
}

func (h *DialogueHandler) runSummary(sessionID string) {
	defer h.leaveSending()

	session := h.store.Get(sessionID)
	if session == nil {
		return
	}

	messages := toGenerationMessages(session.Messages)
	messages = append(messages, core.GenerationMessage{Role: core.RoleUser, Content: summaryPrompt})
	req := core.GenerationRequest{
		SystemPrompt: h.systemPrompt(session),
		Messages:     messages,
	}

	ctx, cancel := context.WithTimeout(h.Ctx, h.config.GenerateTimeout)
	defer cancel()

	resp, err := h.generate(ctx, req)
	if err != nil {
		h.notify("The summary could not be produced. The dialogue remains open.")
		return
	}

	result := takeaways.Extract(resp.Content)
	h.sendNext(&dialogue.TakeawaysReadyEvent{SessionID: sessionID, Result: result})
	h.SendPacket(core.NewEventPacket(
		&core.EndSession{WantsTakeaways: true},
		core.DestinationTop,
		"DialogueHandler",
	))
}

// generate runs one generation call, retrying once on the next backup
// service when the primary fails.
func (h *DialogueHandler) generate(ctx context.Context, req core.GenerationRequest) (core.GenerationResponse, error) {
	resp, err := h.Service.(IGenerationService).Generate(ctx, req)
	if err != nil {
		h.Logger.Errorf("generation via %s failed: %v", h.Service.Name(), err)
		if switchErr := h.SwitchToBackupService(); switchErr == nil {
			resp, err = h.Service.(IGenerationService).Generate(ctx, req)
		}
	}
	return resp, err
}

func (h *DialogueHandler) systemPrompt(session *chat.Session) string {
	prompt, err := h.instructions.Get(h.Ctx)
	if err != nil || prompt == "" {
		if err != nil {
			h.Logger.Warnf("loading instructions: %v", err)
		}
		prompt = store.DefaultInstructions
	}
	if session.UserName != "" {
		prompt += fmt.Sprintf("\n\nYou are speaking with %s, who is %d years old.", session.UserName, session.UserAge)
	}
	return prompt
}

func (h *DialogueHandler) enterSending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateIdle {
		return false
	}
	h.state = StateSending
	return true
}

func (h *DialogueHandler) leaveSending() {
	h.mu.Lock()
	h.state = StateIdle
	h.mu.Unlock()
}

func (h *DialogueHandler) notify(text string) {
	h.sendNext(&core.Notice{Text: text})
}

func (h *DialogueHandler) sendNext(event core.IEvent) {
	h.SendPacket(core.NewEventPacket(event, core.DestinationNext, "DialogueHandler"))
}

func toGenerationMessages(messages []chat.Message) []core.GenerationMessage {
	out := make([]core.GenerationMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, core.GenerationMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func hasUserTurns(messages []chat.Message) bool {
	for _, m := range messages {
		if m.Role == core.RoleUser {
			return true
		}
	}
	return false
}
