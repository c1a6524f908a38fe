package persona

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/persona-chat/internal/ai"
	"github.com/suPer8Hu/persona-chat/internal/grounding"
)

const org = "Agastya International Foundation"

type recordingProvider struct {
	reply string
	err   error
	calls int
	last  []ai.Message
}

func (p *recordingProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	p.calls++
	p.last = append([]ai.Message(nil), messages...)
	return p.reply, p.err
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Asha Kumar", DisplayName("asha-kumar"))
	assert.Equal(t, "Asha", FirstName("asha-kumar"))
	assert.Equal(t, "Ravi", FirstName("ravi"))
	assert.Equal(t, "Mary Ann Joseph", DisplayName("mary--ann-joseph"))
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Reply
	}{
		{"answer marker", "[[answer]]\nI like cricket.", Reply{Kind: KindAnswer, Text: "I like cricket."}},
		{"no marker", "I like cricket.", Reply{Kind: KindAnswer, Text: "I like cricket."}},
		{"other person", "[[other_person]]", Reply{Kind: KindOtherPerson, Text: RefusalText(KindOtherPerson, org)}},
		{"refusal ignores prose", "[[ private ]]\nMy address is 12 Main St.", Reply{Kind: KindPrivate, Text: RefusalText(KindPrivate, org)}},
		{"uppercase", "[[NOT_LEARNED]]", Reply{Kind: KindNotLearned, Text: RefusalText(KindNotLearned, org)}},
		{"unknown kind keeps text", "[[happy]] We grow ragi at home.", Reply{Kind: KindAnswer, Text: "We grow ragi at home."}},
		{"marker after prose is not a kind", "We grow ragi at home. [[private]]", Reply{Kind: KindAnswer, Text: "We grow ragi at home."}},
		{"marker mid reply is not a kind", "I like maths.\n[[other_person]]\nMy friend likes art.", Reply{Kind: KindAnswer, Text: "I like maths.\n\nMy friend likes art."}},
		{"leading whitespace before marker", "  \n[[not_learned]]", Reply{Kind: KindNotLearned, Text: RefusalText(KindNotLearned, org)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReply(tt.raw, org)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReply_EmptyIsGenerationError(t *testing.T) {
	for _, raw := range []string{"", "   \n", "[[answer]]", "[[answer]]\n  "} {
		_, err := ParseReply(raw, org)
		assert.ErrorIs(t, err, ErrGeneration, "raw=%q", raw)
	}
}

func TestRefusalTemplatesMentionOrganization(t *testing.T) {
	assert.Contains(t, RefusalText(KindLimitedKnowledge, org), org)
	assert.Contains(t, RefusalText(KindOtherPerson, org), org)
	assert.Empty(t, RefusalText(KindAnswer, org))
	assert.NotContains(t, RefusalText(KindOtherPerson, org), "{org}")
}

func TestGenerator_QuestionAboutPeerUsesTemplate(t *testing.T) {
	prov := &recordingProvider{reply: "[[other_person]]\nRavi likes maths."}
	g := NewGenerator(prov, org, time.Second)

	got, err := g.Generate(context.Background(), GenerateInput{
		Question:       "What is your friend Ravi's favorite subject?",
		StudentName:    "asha-kumar",
		InstructorName: "Priya Rao",
	})
	require.NoError(t, err)
	assert.Equal(t, KindOtherPerson, got.Kind)
	assert.Equal(t, RefusalText(KindOtherPerson, org), got.Text)
	assert.NotContains(t, got.Text, "Ravi")
}

func TestGenerator_BuildsPersonaPrompt(t *testing.T) {
	prov := &recordingProvider{reply: "[[answer]]\nI walk to school with my brother."}
	g := NewGenerator(prov, org, time.Second)

	history := []ai.Message{
		{Role: ai.RoleUser, Content: "Hello"},
		{Role: ai.RoleAssistant, Content: "Hello!"},
	}
	got, err := g.Generate(context.Background(), GenerateInput{
		Question:       "How do you get to school?",
		Passages:       []grounding.Passage{{ID: "c1", Text: "Asha walks 2km to school."}},
		History:        history,
		StudentName:    "asha-kumar",
		InstructorName: "Priya Rao",
	})
	require.NoError(t, err)
	assert.Equal(t, Reply{Kind: KindAnswer, Text: "I walk to school with my brother."}, got)

	require.Len(t, prov.last, 4)
	system := prov.last[0]
	assert.Equal(t, ai.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "You are Asha Kumar")
	assert.Contains(t, system.Content, "Asha walks 2km to school.")
	assert.Contains(t, system.Content, "[[other_person]]")
	assert.NotContains(t, system.Content, "{student}")
	assert.Equal(t, history, prov.last[1:3])
	assert.Equal(t, ai.Message{Role: ai.RoleUser, Content: "How do you get to school?"}, prov.last[3])
}

func TestGenerator_EmptyContextStillAnswers(t *testing.T) {
	prov := &recordingProvider{reply: "[[limited_knowledge]]"}
	g := NewGenerator(prov, org, time.Second)

	got, err := g.Generate(context.Background(), GenerateInput{Question: "What is quantum gravity?", StudentName: "asha-kumar"})
	require.NoError(t, err)
	assert.NotEmpty(t, got.Text)
	assert.Equal(t, KindLimitedKnowledge, got.Kind)
}

func TestGenerator_ProviderFailure(t *testing.T) {
	g := NewGenerator(&recordingProvider{err: errors.New("503")}, org, time.Second)
	_, err := g.Generate(context.Background(), GenerateInput{Question: "hi", StudentName: "asha-kumar"})
	assert.ErrorIs(t, err, ErrGeneration)

	g = NewGenerator(&recordingProvider{reply: ""}, org, time.Second)
	_, err = g.Generate(context.Background(), GenerateInput{Question: "hi", StudentName: "asha-kumar"})
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestGenerator_Timeout(t *testing.T) {
	slow := ai.ProviderFunc(func(ctx context.Context, messages []ai.Message) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	g := NewGenerator(slow, org, 10*time.Millisecond)
	_, err := g.Generate(context.Background(), GenerateInput{Question: "hi", StudentName: "asha-kumar"})
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestReformulator(t *testing.T) {
	prov := &recordingProvider{reply: "  What subject does Asha like?  "}
	r := NewReformulator(prov, time.Second)

	got, err := r.Reformulate(context.Background(), "Why do you like it?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Why do you like it?", got)
	assert.Equal(t, 0, prov.calls)

	history := []ai.Message{{Role: ai.RoleUser, Content: "Favourite subject?"}, {Role: ai.RoleAssistant, Content: "Science."}}
	got, err = r.Reformulate(context.Background(), "Why do you like it?", history)
	require.NoError(t, err)
	assert.Equal(t, "What subject does Asha like?", got)
	assert.Equal(t, ai.RoleSystem, prov.last[0].Role)
	assert.Equal(t, "Why do you like it?", prov.last[len(prov.last)-1].Content)

	prov.reply = " "
	_, err = r.Reformulate(context.Background(), "Why?", history)
	assert.ErrorIs(t, err, ErrGeneration)

	prov.err = errors.New("boom")
	_, err = r.Reformulate(context.Background(), "Why?", history)
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestParseQuestions(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		count int
		want  []string
	}{
		{"json", `Sure! ["A?", "B?", "C?", "D?"]`, 4, []string{"A?", "B?", "C?", "D?"}},
		{"single quoted", `['What is your name?', 'Where do you live?']`, 4, []string{"What is your name?", "Where do you live?"}},
		{"escaped quote", `['Don\'t you like maths?', "Why?"]`, 4, []string{"Don't you like maths?", "Why?"}},
		{"capped", `["1", "2", "3", "4", "5", "6"]`, 4, []string{"1", "2", "3", "4"}},
		{"multiline", "[\n  \"A?\",\n  \"B?\"\n]", 4, []string{"A?", "B?"}},
		{"no list", "I cannot think of any.", 4, []string{}},
		{"not strings", "[1, 2, 3]", 4, []string{}},
		{"unterminated quote", `['A?, 'B?']`, 4, []string{}},
		{"blank items dropped", `["A?", " ", "B?"]`, 4, []string{"A?", "B?"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseQuestions(tt.raw, tt.count)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseQuestions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSuggester(t *testing.T) {
	prov := &recordingProvider{reply: `["How was your day?", "What do you like to read?", "Who is your favourite teacher?", "What did you build at the science fair?", "Extra?"]`}
	s := NewSuggester(prov, org, time.Second)

	got, err := s.Suggest(context.Background(), []ai.Message{
		{Role: ai.RoleUser, Content: "Tell me about yourself"},
		{Role: ai.RoleAssistant, Content: "I like cricket."},
	}, "asha-kumar", 4)
	require.NoError(t, err)
	assert.Len(t, got, 4)

	system := prov.last[0].Content
	assert.Contains(t, system, "You: Tell me about yourself")
	assert.Contains(t, system, "Asha Kumar: I like cricket.")
	assert.Contains(t, system, "exactly 4 strings")

	prov.reply = "no idea"
	got, err = s.Suggest(context.Background(), nil, "asha-kumar", 4)
	require.NoError(t, err)
	assert.Empty(t, got)

	prov.err = errors.New("down")
	_, err = s.Suggest(context.Background(), nil, "asha-kumar", 4)
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestTranslator(t *testing.T) {
	assert.Equal(t, "Kannada", LanguageName("kn"))
	assert.Equal(t, "English", LanguageName("en"))

	prov := &recordingProvider{reply: "ನಮಸ್ಕಾರ"}
	tr := NewTranslator(prov, org, time.Second)

	got, err := tr.Translate(context.Background(), "Hello", "en", "kn")
	require.NoError(t, err)
	assert.Equal(t, "ನಮಸ್ಕಾರ", got)
	assert.True(t, strings.Contains(prov.last[0].Content, "Kannada"))

	got, err = tr.Translate(context.Background(), "Hello", "en", "en")
	require.NoError(t, err)
	assert.Equal(t, "Hello", got)
	assert.Equal(t, 1, prov.calls)
}
