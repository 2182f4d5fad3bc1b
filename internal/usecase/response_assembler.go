package usecase

import "strings"

// responseAssembler accumulates streamed tokens for the in-flight turn.
type responseAssembler struct {
	partial  strings.Builder
	turnOpen bool
}

// Begin opens a new turn and clears any previous partial text.
func (a *responseAssembler) Begin() {
	a.partial.Reset()
	a.turnOpen = true
}

// Append adds a token, opening a turn if the server started one on its own.
func (a *responseAssembler) Append(token string) string {
	if !a.turnOpen {
		a.Begin()
	}
	a.partial.WriteString(token)
	return a.partial.String()
}

// Finish closes the turn. The server's full text wins over the assembled
// tokens. ok is false for a terminal event with no open turn and no full
// text, so a turn is promoted at most once.
func (a *responseAssembler) Finish(fullText string) (content string, ok bool) {
	fullText = strings.TrimSpace(fullText)
	if !a.turnOpen && fullText == "" {
		return "", false
	}
	content = fullText
	if content == "" {
		content = strings.TrimSpace(a.partial.String())
	}
	a.turnOpen = false
	return content, true
}

// Abandon closes the turn without promoting anything.
func (a *responseAssembler) Abandon() {
	a.turnOpen = false
}

// Reset forgets the partial text and closes the turn.
func (a *responseAssembler) Reset() {
	a.partial.Reset()
	a.turnOpen = false
}

func (a *responseAssembler) Partial() string {
	return a.partial.String()
}

func (a *responseAssembler) TurnOpen() bool {
	return a.turnOpen
}
