package persona

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/suPer8Hu/persona-chat/internal/ai"
)

type Reformulator struct {
	provider ai.Provider
	timeout  time.Duration
}

func NewReformulator(provider ai.Provider, timeout time.Duration) *Reformulator {
	return &Reformulator{provider: provider, timeout: timeout}
}

// Reformulate rewrites question so it stands on its own. With no prior turns
// there is nothing to resolve and the model is not called.
func (r *Reformulator) Reformulate(ctx context.Context, question string, history []ai.Message) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	msgs := make([]ai.Message, 0, len(history)+2)
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: reformulatePrompt})
	msgs = append(msgs, history...)
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: question})

	out, err := chat(ctx, r.provider, r.timeout, msgs)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: empty reformulation", ErrGeneration)
	}
	return out, nil
}
