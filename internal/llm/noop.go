package llm

import (
	"context"
	"strings"
)

// Noop answers offline so the service can start without a model account.
// It never accepts anything: yes/no questions get NO, the confidence check
// gets NOT_CONFIDENT and every other prompt fails with auth_error.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (n *Noop) Name() string  { return string(KindNoop) }
func (n *Noop) Model() string { return "noop" }

func (n *Noop) Complete(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "NOT_CONFIDENT"):
		return "NOT_CONFIDENT", nil
	case strings.Contains(prompt, "YES or NO"):
		return "NO", nil
	default:
		return "", &ProviderError{Provider: n.Name(), Kind: ErrAuth, Message: "no model configured"}
	}
}
