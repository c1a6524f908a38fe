package chat

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/persona-chat/internal/grounding"
)

func TestTranscriptKey(t *testing.T) {
	at := time.Date(2024, time.March, 5, 23, 0, 0, 0, time.UTC)
	assert.Equal(t,
		"chat-transcripts/priya@example.org/2024/March/05/L1.json",
		TranscriptKey("/chat-transcripts/", "priya@example.org", "L1", at))
}

func TestExporter_WritesEveryLoginSession(t *testing.T) {
	h := newHarness(t, 20, nil)
	ctx := context.Background()

	_, _, err := h.svc.Start(ctx, startInput("L1", "C1", "asha-kumar"))
	require.NoError(t, err)
	_, err = h.svc.HandleTurn(ctx, turn("L1", "C1", "What do you grow?"))
	require.NoError(t, err)
	_, _, err = h.svc.Start(ctx, startInput("L1", "C2", "ravi-gowda"))
	require.NoError(t, err)
	_, _, err = h.svc.Start(ctx, startInput("L2", "C3", "asha-kumar"))
	require.NoError(t, err)
	require.NoError(t, h.svc.End(ctx, "priya@example.org", "L1", "C1"))

	root := t.TempDir()
	exp := NewExporter(h.repo, grounding.NewFSStore(root), "chat-transcripts", nil)
	exp.now = func() time.Time { return time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC) }

	key, err := exp.Export(ctx, "priya@example.org", "L1")
	require.NoError(t, err)
	assert.Equal(t, "chat-transcripts/priya@example.org/2024/March/05/L1.json", key)

	body, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
	require.NoError(t, err)
	var doc Transcript
	require.NoError(t, json.Unmarshal(body, &doc))

	assert.Equal(t, "Priya Rao", doc.UserFullName)
	require.Len(t, doc.Sessions, 2)

	first := doc.Sessions[0]
	assert.Equal(t, "C1", first.ChatSessionID)
	assert.Equal(t, "Asha Kumar", first.StudentName)
	assert.Equal(t, StatusEnded, first.Status)
	assert.Equal(t, 4, first.MessageCount)
	// the opener pair stays out of the export
	require.Len(t, first.Messages, 2)
	assert.Equal(t, RoleUser, first.Messages[0].Role)
	assert.Equal(t, "What do you grow?", first.Messages[0].Content)
	assert.Equal(t, string(SourceTypedPrimary), first.Messages[0].InputSource)
	assert.Equal(t, RoleAssistant, first.Messages[1].Role)

	second := doc.Sessions[1]
	assert.Equal(t, "Ravi Gowda", second.StudentName)
	assert.Equal(t, StatusActive, second.Status)
	assert.Empty(t, second.Messages)
}

func TestExporter_NoSessionsWritesNothing(t *testing.T) {
	h := newHarness(t, 20, nil)
	root := t.TempDir()
	exp := NewExporter(h.repo, grounding.NewFSStore(root), "chat-transcripts", nil)

	key, err := exp.Export(context.Background(), "priya@example.org", "unknown")
	require.NoError(t, err)
	assert.Empty(t, key)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = exp.Export(context.Background(), "", "L1")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

type failingStore struct{}

func (failingStore) Put(ctx context.Context, key string, data []byte) error {
	return errors.New("bucket unreachable")
}

func TestExporter_StoreFailureIsReturned(t *testing.T) {
	h := newHarness(t, 20, nil)
	ctx := context.Background()
	_, _, err := h.svc.Start(ctx, startInput("L1", "C1", "asha-kumar"))
	require.NoError(t, err)

	_, err = NewExporter(h.repo, failingStore{}, "chat-transcripts", nil).Export(ctx, "priya@example.org", "L1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unreachable")
}
