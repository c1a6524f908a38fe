package grounding

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// Chunk is one line of a corpus *.jsonl file.
type Chunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	Source    string    `json:"source,omitempty"`
}

// Passage is a retrieved chunk with its score, highest first.
type Passage struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Source string  `json:"source,omitempty"`
	Score  float64 `json:"score"`
}

// ParseChunks reads JSON lines. Blank lines are skipped.
func ParseChunks(r io.Reader) ([]Chunk, error) {
	sc := bufio.NewScanner(r)
	// embeddings make for long lines
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var chunks []Chunk
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var c Chunk
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if c.Text == "" || len(c.Embedding) == 0 {
			return nil, fmt.Errorf("line %d: chunk needs text and embedding", line)
		}
		if c.ID == "" {
			c.ID = fmt.Sprintf("chunk-%d", line)
		}
		chunks = append(chunks, c)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return chunks, nil
}

// Index is a student's loaded corpus. It is read-only once built and safe to
// share across sessions.
type Index struct {
	Student string
	chunks  []Chunk
	byID    map[string]int

	kwOnce sync.Once
	kw     bleve.Index
	kwErr  error
}

func NewIndex(student string, chunks []Chunk) *Index {
	byID := make(map[string]int, len(chunks))
	for i, c := range chunks {
		byID[c.ID] = i
	}
	return &Index{Student: student, chunks: chunks, byID: byID}
}

func (ix *Index) Len() int { return len(ix.chunks) }

func (ix *Index) passage(i int, score float64) Passage {
	c := ix.chunks[i]
	return Passage{ID: c.ID, Text: c.Text, Source: c.Source, Score: score}
}

// SearchVector ranks chunks by cosine similarity to q.
func (ix *Index) SearchVector(q []float32, k int) ([]Passage, error) {
	if k <= 0 || len(ix.chunks) == 0 {
		return []Passage{}, nil
	}

	type scored struct {
		i     int
		score float64
	}
	all := make([]scored, 0, len(ix.chunks))
	for i, c := range ix.chunks {
		s, err := cosineSimilarity(q, c.Embedding)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", c.ID, err)
		}
		all = append(all, scored{i: i, score: s})
	}
	sort.SliceStable(all, func(a, b int) bool { return all[a].score > all[b].score })

	if len(all) > k {
		all = all[:k]
	}
	out := make([]Passage, 0, len(all))
	for _, s := range all {
		out = append(out, ix.passage(s.i, s.score))
	}
	return out, nil
}

// SearchKeyword runs a BM25 match query over chunk text. The bleve index is
// built in memory on first use.
func (ix *Index) SearchKeyword(query string, k int) ([]Passage, error) {
	if k <= 0 || len(ix.chunks) == 0 {
		return []Passage{}, nil
	}
	ix.kwOnce.Do(ix.buildKeyword)
	if ix.kwErr != nil {
		return nil, ix.kwErr
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), k, 0, false)
	res, err := ix.kw.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}

	out := make([]Passage, 0, len(res.Hits))
	for _, hit := range res.Hits {
		i, ok := ix.byID[hit.ID]
		if !ok {
			continue
		}
		out = append(out, ix.passage(i, hit.Score))
	}
	return out, nil
}

func (ix *Index) buildKeyword() {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		ix.kwErr = fmt.Errorf("create bm25 index: %w", err)
		return
	}
	batch := idx.NewBatch()
	for _, c := range ix.chunks {
		if err := batch.Index(c.ID, map[string]any{"text": c.Text}); err != nil {
			ix.kwErr = fmt.Errorf("index chunk %s: %w", c.ID, err)
			return
		}
	}
	if err := idx.Batch(batch); err != nil {
		ix.kwErr = fmt.Errorf("bm25 batch: %w", err)
		return
	}
	ix.kw = idx
}

const rrfOffset = 60.0

// fuseRRF merges ranked lists by reciprocal rank fusion.
func fuseRRF(k int, lists ...[]Passage) []Passage {
	scores := make(map[string]float64)
	first := make(map[string]Passage)
	for _, list := range lists {
		for rank, p := range list {
			scores[p.ID] += 1.0 / (rrfOffset + float64(rank+1))
			if _, ok := first[p.ID]; !ok {
				first[p.ID] = p
			}
		}
	}

	out := make([]Passage, 0, len(scores))
	for id, s := range scores {
		p := first[id]
		p.Score = s
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("vectors cannot be empty")
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB)), nil
}
