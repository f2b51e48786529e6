package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpret(t *testing.T) {
	tests := []struct {
		input      string
		privileged bool
		want       Command
		consumed   bool
	}{
		{"/mute", false, Mute, true},
		{"/MUTE", false, Mute, true},
		{"  /close  ", false, Close, true},
		{"/flute", false, "", false},
		{"/closet", false, "", false},
		{"/", false, "", false},
		{"what is justice?", false, "", false},
		{"/help", true, Help, true},
		{"instructions", true, EditInstructions, true},
		{"System Instructions", true, EditInstructions, true},
		{"instructions", false, "", false},
		{"system instructions", false, "", false},
		{"", false, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, consumed := Interpret(tt.input, tt.privileged)
			assert.Equal(t, tt.consumed, consumed)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescriptionCoversSlashTable(t *testing.T) {
	for raw, cmd := range table {
		assert.NotEmpty(t, Description[cmd], "missing description for %s", raw)
	}
	assert.Len(t, Description, 7)
}
