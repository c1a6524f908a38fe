package grounding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/suPer8Hu/persona-chat/internal/ai"
	"go.uber.org/zap"
)

const (
	ModeVector = "vector"
	ModeHybrid = "hybrid"

	DefaultTopK = 4

	// candidates pulled from each ranker before fusion
	hybridCandidates = 50
)

type Retriever struct {
	loader   *Loader
	embedder ai.Embedder
	k        int
	mode     string
	timeout  time.Duration
	log      *zap.Logger
}

func NewRetriever(loader *Loader, embedder ai.Embedder, k int, mode string, timeout time.Duration, log *zap.Logger) *Retriever {
	if k <= 0 {
		k = DefaultTopK
	}
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode != ModeHybrid {
		mode = ModeVector
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Retriever{loader: loader, embedder: embedder, k: k, mode: mode, timeout: timeout, log: log}
}

func (r *Retriever) TopK() int { return r.k }

// Retrieve returns at most TopK passages for the student, best first. An
// empty corpus yields an empty slice and no embedding call.
func (r *Retriever) Retrieve(ctx context.Context, student, query string) ([]Passage, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	ix, err := r.loader.Load(ctx, student)
	if err != nil {
		return nil, err
	}
	if ix.Len() == 0 {
		return []Passage{}, nil
	}

	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrRetrieval, err)
	}

	if r.mode == ModeVector {
		out, err := ix.SearchVector(vec, r.k)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
		}
		return out, nil
	}

	byVector, err := ix.SearchVector(vec, hybridCandidates)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	byKeyword, err := ix.SearchKeyword(query, hybridCandidates)
	if err != nil {
		// keyword ranking only sharpens the vector ranking
		r.log.Warn("grounding: bm25 search failed", zap.String("student", student), zap.Error(err))
		byKeyword = nil
	}
	return fuseRRF(r.k, byVector, byKeyword), nil
}
