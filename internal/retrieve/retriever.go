// Package retrieve finds the SOP chunks most relevant to a complaint.
// Ranking is cosine similarity over term-frequency vectors of the
// chunk text, with an optional category filter applied before scoring.
package retrieve

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/complaintops/copilot/internal/models"
	"github.com/complaintops/copilot/internal/store"
)

// DefaultTopK is how many snippets a query returns by default.
const DefaultTopK = 3

// Retriever ranks stored SOP chunks against a query.
type Retriever struct {
	store store.Store
	topK  int
}

// NewRetriever creates a Retriever returning at most topK snippets per
// query. Non-positive topK falls back to DefaultTopK.
func NewRetriever(s store.Store, topK int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{store: s, topK: topK}
}

// tokenize lowercases and splits on anything that is not a letter or
// digit. Single-character tokens carry no signal and are dropped.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func termFreq(tokens []string) map[string]float64 {
	tf := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

// cosine computes cosine similarity between two term-frequency vectors.
func cosine(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for t, wa := range a {
		normA += wa * wa
		if wb, ok := b[t]; ok {
			dot += wa * wb
		}
	}
	for _, wb := range b {
		normB += wb * wb
	}
	if dot == 0 || normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

type scoredChunk struct {
	chunk *models.SOPChunk
	score float64
}

// Retrieve returns up to topK snippets relevant to the query, best
// first. An empty category means no filter; chunks without a category
// always qualify. Queries that match nothing return an empty slice,
// never an error.
func (r *Retriever) Retrieve(ctx context.Context, query, category string) ([]models.Snippet, error) {
	chunks, err := r.store.ListSOPChunks(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("retrieve sop chunks: %w", err)
	}

	qv := termFreq(tokenize(query))
	if len(qv) == 0 {
		return []models.Snippet{}, nil
	}

	scored := make([]scoredChunk, 0, len(chunks))
	for _, c := range chunks {
		score := cosine(qv, termFreq(tokenize(c.Text)))
		if score > 0 {
			scored = append(scored, scoredChunk{chunk: c, score: score})
		}
	}

	// Stable order for equal scores: chunk id breaks ties.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score == scored[j].score {
			return scored[i].chunk.ChunkID < scored[j].chunk.ChunkID
		}
		return scored[i].score > scored[j].score
	})

	if len(scored) > r.topK {
		scored = scored[:r.topK]
	}

	snippets := make([]models.Snippet, len(scored))
	for i, sc := range scored {
		snippets[i] = models.Snippet{
			Snippet: sc.chunk.Text,
			Source:  sc.chunk.Source,
			DocName: sc.chunk.DocName,
			ChunkID: sc.chunk.ChunkID,
		}
	}
	return snippets, nil
}
