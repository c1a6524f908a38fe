package persona

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/suPer8Hu/persona-chat/internal/ai"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type Translator struct {
	provider ai.Provider
	org      string
	timeout  time.Duration
}

func NewTranslator(provider ai.Provider, org string, timeout time.Duration) *Translator {
	return &Translator{provider: provider, org: org, timeout: timeout}
}

// LanguageName renders a BCP 47 code ("kn") as an English name ("Kannada").
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// Translate renders text into target. Identical languages and blank text are
// returned as-is without a model call.
func (t *Translator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" || strings.EqualFold(source, target) {
		return text, nil
	}
	system := fill(translatePrompt, "target", LanguageName(target), "org", t.org)
	out, err := chat(ctx, t.provider, t.timeout, []ai.Message{
		{Role: ai.RoleSystem, Content: system},
		{Role: ai.RoleUser, Content: text},
	})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: empty translation", ErrGeneration)
	}
	return out, nil
}
