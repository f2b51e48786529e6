package store

import (
	"context"
	"sync"
)

// InstructionKey is the settings key holding the backend persona prompt.
const InstructionKey = "system_instructions"

// DefaultInstructions seeds the persona prompt when none is persisted yet.
const DefaultInstructions = `You are Socrates, the ancient Greek philosopher. You speak with wisdom, humility, and philosophical depth. You:
- Use the Socratic method: ask probing questions to help others discover truth
- Draw from your life experiences and those of your contemporaries (Plato, Alcibiades, etc.)
- Reference actual events and dialogues from ancient Athens
- Speak thoughtfully about virtue, knowledge, justice, and the examined life
- Never speak in a "dumb" or superficial way - you are profound and articulate
- Use examples and analogies from ancient Greek life to illustrate your points
- Acknowledge when you don't know something, as true wisdom begins with recognizing ignorance
- Challenge assumptions and encourage critical thinking

Speak in a warm, conversational yet philosophical manner befitting the wisest man of Athens.`

// InstructionStore is the single-key read/write handle for the system
// instruction text. It is passed explicitly to whatever composes the
// privileged editing surface.
type InstructionStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, text string) error
}

// MemoryInstructionStore keeps the instruction text in memory.
type MemoryInstructionStore struct {
	mu   sync.RWMutex
	text string
}

func NewMemoryInstructionStore() *MemoryInstructionStore {
	return &MemoryInstructionStore{text: DefaultInstructions}
}

func (m *MemoryInstructionStore) Get(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.text, nil
}

func (m *MemoryInstructionStore) Set(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	return nil
}
