// Package commands classifies raw user input as either a control command or
// ordinary dialogue text.
package commands

import "strings"

// Command is one recognized control command.
type Command string

const (
	Close Command = "/close"
	New   Command = "/new"
	Voice Command = "/voice"
	Mute  Command = "/mute"
	Clear Command = "/clear"
	About Command = "/about"
	Help  Command = "/help"

	// EditInstructions is the privileged pseudo-command that opens the
	// system-instruction editor. It has no slash form.
	EditInstructions Command = "instructions"
)

// Description maps each slash command to its help-panel description.
var Description = map[Command]string{
	Close: "End the current chat session and view takeaways from your dialogue",
	New:   "Start a brand-new conversation with Socrates",
	Voice: "Toggle interactive voice mode — Socrates will speak his replies aloud",
	Mute:  "Mute or unmute Socrates' audio while keeping text responses visible",
	Clear: "Clear the visible conversation history while keeping the chat session active",
	About: "Learn about Socrates of Athens and his philosophical legacy",
	Help:  "Display this list of available commands",
}

var table = map[string]Command{
	string(Close): Close,
	string(New):   New,
	string(Voice): Voice,
	string(Mute):  Mute,
	string(Clear): Clear,
	string(About): About,
	string(Help):  Help,
}

// Interpret classifies input. The second return reports whether the input
// was consumed as a command; when false the text is an ordinary dialogue
// turn. Unknown slash strings deliberately fall through: a leading "/" may
// be punctuation, not a failed command.
func Interpret(input string, privileged bool) (Command, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(input))

	if cmd, ok := table[trimmed]; ok {
		return cmd, true
	}
	if privileged && (trimmed == "system instructions" || trimmed == "instructions") {
		return EditInstructions, true
	}
	return "", false
}
