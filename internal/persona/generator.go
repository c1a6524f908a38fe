package persona

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/suPer8Hu/persona-chat/internal/ai"
	"github.com/suPer8Hu/persona-chat/internal/grounding"
)

// Reply is a tagged generation result. For refusal kinds Text is the fixed
// template, never model prose.
type Reply struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

type GenerateInput struct {
	Question       string
	Passages       []grounding.Passage
	History        []ai.Message
	StudentName    string
	InstructorName string
}

type Generator struct {
	provider ai.Provider
	org      string
	timeout  time.Duration
}

func NewGenerator(provider ai.Provider, org string, timeout time.Duration) *Generator {
	return &Generator{provider: provider, org: org, timeout: timeout}
}

func (g *Generator) Generate(ctx context.Context, in GenerateInput) (Reply, error) {
	var ctxText strings.Builder
	for i, p := range in.Passages {
		if i > 0 {
			ctxText.WriteString("\n\n")
		}
		ctxText.WriteString(strings.TrimSpace(p.Text))
	}

	system := fill(personaPrompt,
		"student", DisplayName(in.StudentName),
		"instructor", in.InstructorName,
		"org", g.org,
		"context", ctxText.String(),
	)

	msgs := make([]ai.Message, 0, len(in.History)+2)
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: system})
	msgs = append(msgs, in.History...)
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: in.Question})

	raw, err := chat(ctx, g.provider, g.timeout, msgs)
	if err != nil {
		return Reply{}, err
	}
	return ParseReply(raw, g.org)
}

var (
	leadingMarkerRe = regexp.MustCompile(`^\[\[\s*([A-Za-z_]+)\s*\]\]`)
	markerRe        = regexp.MustCompile(`\[\[\s*[A-Za-z_]+\s*\]\]`)
)

// ParseReply reads the [[kind]] marker that opens the reply. Refusal kinds map
// to their template; an answer, an unknown kind or a missing marker keep the
// model text. A marker further into the text never decides the kind.
func ParseReply(raw, org string) (Reply, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Reply{}, fmt.Errorf("%w: empty reply", ErrGeneration)
	}

	kind := KindAnswer
	if loc := leadingMarkerRe.FindStringSubmatchIndex(text); loc != nil {
		k := Kind(strings.ToLower(text[loc[2]:loc[3]]))
		if refusal := RefusalText(k, org); refusal != "" {
			return Reply{Kind: k, Text: refusal}, nil
		}
		text = text[loc[1]:]
	}
	// any other marker is the model echoing the list
	text = strings.TrimSpace(markerRe.ReplaceAllString(text, ""))

	if text == "" {
		return Reply{}, fmt.Errorf("%w: empty reply", ErrGeneration)
	}
	return Reply{Kind: kind, Text: text}, nil
}

// chat runs one bounded model call and maps every failure to ErrGeneration.
func chat(ctx context.Context, p ai.Provider, timeout time.Duration, msgs []ai.Message) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	out, err := p.Chat(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return out, nil
}
