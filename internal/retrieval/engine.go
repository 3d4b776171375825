// Package retrieval turns a raw user utterance into a ranked, budget-limited
// set of medical reference chunks. Failures in embedding or vector search
// degrade to an empty result: a turn proceeds ungrounded rather than failing.
package retrieval

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/acuity/internal/index"
)

const (
	// DefaultK is the number of chunks returned per turn.
	DefaultK = 5

	// overfetchFactor over-queries the index so the metadata filter and the
	// lexical rerank have candidates to work with.
	overfetchFactor = 2

	// rerankLexicalWeight scales the term-overlap bonus layered on top of
	// vector similarity. Overlap is in [0,1], similarity in [-1,1].
	rerankLexicalWeight = 0.25

	// minUsefulChunkChars is the smallest partial chunk worth keeping when
	// hard-truncating to fit the context budget.
	minUsefulChunkChars = 200
)

// Embedder converts text into fixed-dimension vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Hit is one retrieved chunk with its final (reranked) score.
type Hit struct {
	Chunk     index.Chunk
	Score     float64
	Truncated bool
}

// Result is the ephemeral outcome of one retrieval pass.
type Result struct {
	Hits []Hit
}

// Empty reports whether retrieval produced no usable context.
func (r *Result) Empty() bool { return r == nil || len(r.Hits) == 0 }

// ContextBlock renders the hits as a reference block for prompt assembly.
func (r *Result) ContextBlock() string {
	if r.Empty() {
		return ""
	}
	var sb strings.Builder
	for i, h := range r.Hits {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("[Source: ")
		sb.WriteString(h.Chunk.Source)
		sb.WriteString("]\n")
		sb.WriteString(h.Chunk.Content)
	}
	return sb.String()
}

// Engine builds queries, searches the index, and reranks results.
type Engine struct {
	embedder Embedder
	index    *index.Index
	logger   log.Logger
	k        int
}

// NewEngine creates a retrieval engine. k <= 0 selects DefaultK.
func NewEngine(embedder Embedder, ix *index.Index, logger log.Logger, k int) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	if k <= 0 {
		k = DefaultK
	}
	return &Engine{embedder: embedder, index: ix, logger: logger, k: k}
}

// BuildQuery expands the raw utterance with clinical synonyms and with
// entity-vocabulary terms seen in prior turns. Expansion is additive and
// order-preserving: the original text always comes first.
func (e *Engine) BuildQuery(raw string, prior []string) string {
	lowRaw := strings.ToLower(raw)

	var extra []string
	seen := map[string]struct{}{}
	appendTerm := func(term string) {
		low := strings.ToLower(term)
		if _, ok := seen[low]; ok {
			return
		}
		if strings.Contains(lowRaw, low) {
			return
		}
		seen[low] = struct{}{}
		extra = append(extra, term)
	}

	for phrase, expansions := range synonyms {
		if strings.Contains(lowRaw, phrase) {
			for _, term := range expansions {
				appendTerm(term)
			}
		}
	}

	// Carry salient entity terms from earlier turns so retrieval stays
	// anchored to the whole complaint.
	history := strings.ToLower(strings.Join(prior, " "))
	for _, terms := range entityVocabulary {
		for _, term := range terms {
			if strings.Contains(history, term) {
				appendTerm(term)
			}
		}
	}

	if len(extra) == 0 {
		return raw
	}
	// Map iteration order is random; keep the expansion deterministic.
	sort.Strings(extra)
	return raw + " " + strings.Join(extra, " ")
}

// Retrieve runs a retrieval pass with no metadata filter.
func (e *Engine) Retrieve(ctx context.Context, raw string, prior []string) *Result {
	return e.RetrieveFiltered(ctx, raw, prior, nil)
}

// RetrieveFiltered embeds the built query, over-fetches from the index,
// applies the optional metadata filter, reranks with a lexical overlap bonus
// against the raw text, and returns the top k hits. On embedding or search
// failure it returns an empty Result.
func (e *Engine) RetrieveFiltered(ctx context.Context, raw string, prior []string, filter func(*index.Chunk) bool) *Result {
	query := e.BuildQuery(raw, prior)

	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) == 0 {
		e.logger.Warn(ctx, "retrieval degraded: embedding failed", "error", err)
		return &Result{}
	}

	scored, err := e.index.Search(vecs[0], e.k*overfetchFactor)
	if err != nil {
		e.logger.Warn(ctx, "retrieval degraded: index search failed", "error", err)
		return &Result{}
	}

	hits := make([]Hit, 0, len(scored))
	for _, s := range scored {
		if filter != nil && !filter(&s.Chunk) {
			continue
		}
		score := s.Score + rerankLexicalWeight*lexicalOverlap(raw, s.Chunk.Content)
		hits = append(hits, Hit{Chunk: s.Chunk, Score: score})
	}

	sortHits(hits)
	if len(hits) > e.k {
		hits = hits[:e.k]
	}
	return &Result{Hits: hits}
}

// TruncateToBudget limits the result to maxChars of chunk content, greedily
// in rank order. The chunk that would overflow is hard-truncated when at
// least minUsefulChunkChars of budget remain, otherwise dropped.
func TruncateToBudget(r *Result, maxChars int) *Result {
	if r.Empty() || maxChars <= 0 {
		return &Result{}
	}

	out := &Result{}
	remaining := maxChars
	for _, h := range r.Hits {
		if len(h.Chunk.Content) <= remaining {
			out.Hits = append(out.Hits, h)
			remaining -= len(h.Chunk.Content)
			continue
		}
		if remaining >= minUsefulChunkChars {
			partial := h
			partial.Chunk.Content = cutOnRuneBoundary(h.Chunk.Content, remaining)
			partial.Truncated = true
			out.Hits = append(out.Hits, partial)
		}
		break
	}
	return out
}

// cutOnRuneBoundary returns at most n bytes of s without splitting a
// multibyte rune.
func cutOnRuneBoundary(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// lexicalOverlap scores how many distinct query terms appear in the content,
// normalised to [0,1]. It backstops embedding blind spots for rare terms.
func lexicalOverlap(query, content string) float64 {
	terms := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) > 2 {
			terms[w] = struct{}{}
		}
	}
	if len(terms) == 0 {
		return 0
	}

	low := strings.ToLower(content)
	matched := 0
	for w := range terms {
		if strings.Contains(low, w) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

func sortHits(hits []Hit) {
	// Stable keeps vector rank for equal combined scores.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
}
