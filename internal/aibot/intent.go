package aibot

import "strings"

type Intent string

const (
	IntentChat      Intent = "chat"
	IntentDiagnosis Intent = "diagnosis"
)

// ParseIntent routes a chat message: anything asking for a diagnosis goes
// to the diagnosis prompt, everything else is general chat.
func ParseIntent(text string) Intent {
	lowered := strings.ToLower(text)
	if strings.Contains(lowered, "diagnose") || strings.Contains(lowered, "what's wrong") {
		return IntentDiagnosis
	}
	return IntentChat
}
