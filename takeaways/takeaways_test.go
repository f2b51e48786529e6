package takeaways

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		points     []string
		reflection string
	}{
		{
			name:       "bullets and reflection",
			input:      "- A\n- B\nREFLECTION: C",
			points:     []string{"A", "B"},
			reflection: "C",
		},
		{
			name:       "no marker",
			input:      "no marker here",
			points:     nil,
			reflection: FallbackReflection,
		},
		{
			name:       "marker with empty reflection",
			input:      "- insight\nREFLECTION:   ",
			points:     []string{"insight"},
			reflection: FallbackReflection,
		},
		{
			name:       "non bullet lines dropped",
			input:      "Here are your takeaways:\n- virtue is knowledge\nsome aside\n- courage requires wisdom\nREFLECTION: Know thyself.",
			points:     []string{"virtue is knowledge", "courage requires wisdom"},
			reflection: "Know thyself.",
		},
		{
			name:       "indented bullets",
			input:      "  - padded \nREFLECTION: done",
			points:     []string{"padded"},
			reflection: "done",
		},
		{
			name:       "empty input",
			input:      "",
			points:     nil,
			reflection: FallbackReflection,
		},
		{
			name:       "marker only",
			input:      "REFLECTION: the whole point",
			points:     nil,
			reflection: "the whole point",
		},
		{
			name:       "bullets after marker belong to reflection",
			input:      "- before\nREFLECTION: - after",
			points:     []string{"before"},
			reflection: "- after",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.input)
			assert.Equal(t, tt.points, got.Points)
			assert.Equal(t, tt.reflection, got.Reflection)
		})
	}
}
