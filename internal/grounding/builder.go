package grounding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/suPer8Hu/persona-chat/internal/ai"
	"go.uber.org/zap"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	embedBatchSize      = 32
	corpusFileName      = "chunks.jsonl"
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Document is one source text fed to the Builder.
type Document struct {
	Source string
	Text   string
}

// Builder turns documents into a student's corpus and uploads it.
type Builder struct {
	store     ObjectStore
	embedder  ai.Embedder
	prefix    string
	chunkSize int
	overlap   int
	log       *zap.Logger
}

func NewBuilder(store ObjectStore, embedder ai.Embedder, prefix string, log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		store:     store,
		embedder:  embedder,
		prefix:    prefix,
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		log:       log,
	}
}

// Build splits, embeds and uploads docs as <prefix>/<student>/chunks.jsonl,
// replacing any previous file of that name. It returns the chunk count.
func (b *Builder) Build(ctx context.Context, student string, docs []Document) (int, error) {
	if student == "" || strings.ContainsAny(student, "/\\") {
		return 0, fmt.Errorf("invalid student name %q", student)
	}

	var chunks []Chunk
	for _, d := range docs {
		for _, piece := range SplitText(d.Text, b.chunkSize, b.overlap) {
			chunks = append(chunks, Chunk{ID: uuid.NewString(), Text: piece, Source: d.Source})
		}
	}

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		vectors, err := b.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed chunks %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(texts) {
			return 0, fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end, len(vectors))
		}
		for i, v := range vectors {
			chunks[start+i].Embedding = v
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, c := range chunks {
		if err := enc.Encode(c); err != nil {
			return 0, err
		}
	}

	key := path.Join(b.prefix, student, corpusFileName)
	if err := b.store.Put(ctx, key, buf.Bytes()); err != nil {
		return 0, err
	}
	b.log.Info("grounding: corpus uploaded", zap.String("student", student), zap.String("key", key), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// SplitText is a recursive character splitter: it splits on the coarsest
// separator present, recurses into pieces that are still too long, and merges
// small pieces back into chunks of at most size runes with overlap carried
// between neighbours.
func SplitText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return splitRecursive(text, defaultSeparators, size, overlap)
}

func splitRecursive(text string, seps []string, size, overlap int) []string {
	sep := seps[len(seps)-1]
	var rest []string
	for i, s := range seps {
		if s == "" || strings.Contains(text, s) {
			sep = s
			rest = seps[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
	} else {
		pieces = strings.Split(text, sep)
	}

	var out, small []string
	for _, p := range pieces {
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) < size {
			small = append(small, p)
			continue
		}
		if len(small) > 0 {
			out = append(out, mergeSplits(small, sep, size, overlap)...)
			small = nil
		}
		if len(rest) == 0 {
			out = append(out, p)
		} else {
			out = append(out, splitRecursive(p, rest, size, overlap)...)
		}
	}
	if len(small) > 0 {
		out = append(out, mergeSplits(small, sep, size, overlap)...)
	}
	return out
}

func mergeSplits(splits []string, sep string, size, overlap int) []string {
	sepLen := utf8.RuneCountInString(sep)
	joinCost := func(cur []string) int {
		if len(cur) > 0 {
			return sepLen
		}
		return 0
	}

	var docs, cur []string
	total := 0
	flush := func() {
		if doc := strings.TrimSpace(strings.Join(cur, sep)); doc != "" {
			docs = append(docs, doc)
		}
	}

	for _, s := range splits {
		n := utf8.RuneCountInString(s)
		if len(cur) > 0 && total+n+joinCost(cur) > size {
			flush()
			for len(cur) > 0 && (total > overlap || total+n+joinCost(cur) > size) {
				total -= utf8.RuneCountInString(cur[0])
				if len(cur) > 1 {
					total -= sepLen
				}
				cur = cur[1:]
			}
		}
		total += n + joinCost(cur)
		cur = append(cur, s)
	}
	flush()
	return docs
}
