package persona

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/suPer8Hu/persona-chat/internal/ai"
)

const DefaultSuggestionCount = 4

type Suggester struct {
	provider ai.Provider
	org      string
	timeout  time.Duration
}

func NewSuggester(provider ai.Provider, org string, timeout time.Duration) *Suggester {
	return &Suggester{provider: provider, org: org, timeout: timeout}
}

// Suggest proposes up to count next questions for the instructor. Output that
// cannot be parsed gives an empty list; only a failed model call is an error.
func (s *Suggester) Suggest(ctx context.Context, transcript []ai.Message, studentName string, count int) ([]string, error) {
	if count <= 0 {
		count = DefaultSuggestionCount
	}
	student := DisplayName(studentName)

	system := fill(suggestPrompt,
		"org", s.org,
		"student", student,
		"history", formatTranscript(transcript, student),
		"count", strconv.Itoa(count),
	)
	msgs := []ai.Message{
		{Role: ai.RoleSystem, Content: system},
		{Role: ai.RoleUser, Content: "Your set of relevant next " + strconv.Itoa(count) + " questions:"},
	}

	out, err := chat(ctx, s.provider, s.timeout, msgs)
	if err != nil {
		return nil, err
	}
	return ParseQuestions(out, count), nil
}

func formatTranscript(transcript []ai.Message, student string) string {
	var sb strings.Builder
	for _, m := range transcript {
		speaker := "You"
		if m.Role == ai.RoleAssistant {
			speaker = student
		}
		sb.WriteString(speaker)
		sb.WriteString(": ")
		sb.WriteString(strings.TrimSpace(m.Content))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

var listRe = regexp.MustCompile(`(?s)\[.*?\]`)

// ParseQuestions extracts the first bracketed list literal, JSON or
// single-quoted, and keeps at most count non-empty items.
func ParseQuestions(raw string, count int) []string {
	lit := listRe.FindString(raw)
	if lit == "" {
		return []string{}
	}

	var items []string
	if err := json.Unmarshal([]byte(lit), &items); err != nil {
		items, err = parseQuotedList(lit)
		if err != nil {
			return []string{}
		}
	}

	out := make([]string, 0, min(len(items), count))
	for _, q := range items {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		out = append(out, q)
		if len(out) == count {
			break
		}
	}
	return out
}

var errBadList = errors.New("not a list of strings")

// parseQuotedList reads ['a', "b"] with backslash escapes inside quotes.
func parseQuotedList(lit string) ([]string, error) {
	rs := []rune(strings.TrimSpace(lit))
	if len(rs) < 2 || rs[0] != '[' || rs[len(rs)-1] != ']' {
		return nil, errBadList
	}
	rs = rs[1 : len(rs)-1]

	var items []string
	i := 0
	skipSpace := func() {
		for i < len(rs) && unicode.IsSpace(rs[i]) {
			i++
		}
	}
	for {
		skipSpace()
		if i >= len(rs) {
			return items, nil
		}
		quote := rs[i]
		if quote != '\'' && quote != '"' {
			return nil, errBadList
		}
		i++
		var sb strings.Builder
		closed := false
		for i < len(rs) {
			c := rs[i]
			if c == '\\' && i+1 < len(rs) {
				sb.WriteRune(rs[i+1])
				i += 2
				continue
			}
			i++
			if c == quote {
				closed = true
				break
			}
			sb.WriteRune(c)
		}
		if !closed {
			return nil, errBadList
		}
		items = append(items, sb.String())

		skipSpace()
		if i >= len(rs) {
			return items, nil
		}
		if rs[i] != ',' {
			return nil, errBadList
		}
		i++
	}
}
