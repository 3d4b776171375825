package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/acuity/internal/index"
)

// mockEmbedder returns scripted vectors, or an error.
type mockEmbedder struct {
	vec []float32
	err error
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.vec
	}
	return out, nil
}

func unitVec(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

func populatedIndex(t *testing.T) *index.Index {
	t.Helper()
	ix := index.New(4)
	chunks := []index.Chunk{
		{ID: "c1", Content: "Pyrexia above 39C in adults warrants same-day assessment.", Source: "general.jsonl", Embedding: unitVec(4, 0)},
		{ID: "c2", Content: "A high fever with stiff neck suggests meningitis.", Source: "neuro.jsonl", Embedding: []float32{0.9, 0.1, 0, 0}},
		{ID: "c3", Content: "Ankle sprains respond to rest and elevation.", Source: "msk.jsonl", Embedding: unitVec(4, 1)},
		{ID: "c4", Content: "Chest pain radiating to the arm is a cardiac red flag.", Source: "cardio.jsonl", Embedding: unitVec(4, 2)},
	}
	if err := ix.Add(chunks); err != nil {
		t.Fatalf("Add: %v", err)
	}
	return ix
}

func TestBuildQuery_SynonymExpansion(t *testing.T) {
	t.Parallel()

	e := NewEngine(&mockEmbedder{}, index.New(4), log.Nop(), 0)

	got := e.BuildQuery("I have a high fever", nil)
	if !strings.HasPrefix(got, "I have a high fever") {
		t.Errorf("expansion must preserve the raw text prefix: %q", got)
	}
	for _, term := range []string{"pyrexia", "elevated body temperature"} {
		if !strings.Contains(got, term) {
			t.Errorf("query %q missing expansion %q", got, term)
		}
	}
}

func TestBuildQuery_NoExpansionUnchanged(t *testing.T) {
	t.Parallel()

	e := NewEngine(&mockEmbedder{}, index.New(4), log.Nop(), 0)
	raw := "my elbow itches"
	if got := e.BuildQuery(raw, nil); got != raw {
		t.Errorf("BuildQuery = %q, want unchanged raw text", got)
	}
}

func TestBuildQuery_PriorTurnEntities(t *testing.T) {
	t.Parallel()

	e := NewEngine(&mockEmbedder{}, index.New(4), log.Nop(), 0)

	prior := []string{"It started with chest pain yesterday", "The pain is sudden and sharp"}
	got := e.BuildQuery("now my arm is numb", prior)
	for _, term := range []string{"chest pain", "sudden"} {
		if !strings.Contains(got, term) {
			t.Errorf("query %q missing prior-turn entity %q", got, term)
		}
	}
}

func TestBuildQuery_NoDuplicateTerms(t *testing.T) {
	t.Parallel()

	e := NewEngine(&mockEmbedder{}, index.New(4), log.Nop(), 0)

	// "fever" is already in the raw text; the fever entity must not repeat.
	got := e.BuildQuery("I have a fever", []string{"fever started yesterday"})
	if n := strings.Count(strings.ToLower(got), "fever"); n != 1 {
		t.Errorf("query %q mentions fever %d times, want 1", got, n)
	}
}

func TestBuildQuery_Deterministic(t *testing.T) {
	t.Parallel()

	e := NewEngine(&mockEmbedder{}, index.New(4), log.Nop(), 0)
	prior := []string{"sudden chest pain with nausea and vomiting"}

	first := e.BuildQuery("still hurting", prior)
	for range 20 {
		if got := e.BuildQuery("still hurting", prior); got != first {
			t.Fatalf("BuildQuery not deterministic: %q vs %q", got, first)
		}
	}
}

func TestRetrieve_RanksAndLimits(t *testing.T) {
	t.Parallel()

	ix := populatedIndex(t)
	e := NewEngine(&mockEmbedder{vec: unitVec(4, 0)}, ix, log.Nop(), 2)

	r := e.Retrieve(context.Background(), "high fever", nil)
	if r.Empty() {
		t.Fatal("expected hits")
	}
	if len(r.Hits) != 2 {
		t.Fatalf("len(Hits) = %d, want k=2", len(r.Hits))
	}
	// c2 mentions "high fever" verbatim; the lexical bonus should put it
	// ahead of c1 despite the slightly lower vector similarity.
	if r.Hits[0].Chunk.ID != "c2" {
		t.Errorf("top hit = %s, want c2 via lexical rerank", r.Hits[0].Chunk.ID)
	}
	if r.Hits[0].Score < r.Hits[1].Score {
		t.Error("hits not sorted by score")
	}
}

func TestRetrieve_EmbedderFailureDegrades(t *testing.T) {
	t.Parallel()

	ix := populatedIndex(t)
	e := NewEngine(&mockEmbedder{err: errors.New("provider down")}, ix, log.Nop(), 0)

	r := e.Retrieve(context.Background(), "high fever", nil)
	if !r.Empty() {
		t.Errorf("expected empty result on embedder failure, got %d hits", len(r.Hits))
	}
}

func TestRetrieve_EmptyIndexDegrades(t *testing.T) {
	t.Parallel()

	e := NewEngine(&mockEmbedder{vec: unitVec(4, 0)}, index.New(4), log.Nop(), 0)

	r := e.Retrieve(context.Background(), "anything", nil)
	if !r.Empty() {
		t.Error("expected empty result from empty index")
	}
}

func TestRetrieveFiltered(t *testing.T) {
	t.Parallel()

	ix := populatedIndex(t)
	e := NewEngine(&mockEmbedder{vec: unitVec(4, 0)}, ix, log.Nop(), 4)

	r := e.RetrieveFiltered(context.Background(), "fever", nil, func(c *index.Chunk) bool {
		return c.Source == "neuro.jsonl"
	})
	if len(r.Hits) != 1 || r.Hits[0].Chunk.ID != "c2" {
		t.Errorf("filtered hits = %+v, want only c2", r.Hits)
	}
}

func TestContextBlock(t *testing.T) {
	t.Parallel()

	r := &Result{Hits: []Hit{
		{Chunk: index.Chunk{Content: "first chunk", Source: "a.jsonl"}},
		{Chunk: index.Chunk{Content: "second chunk", Source: "b.jsonl"}},
	}}
	got := r.ContextBlock()
	if !strings.Contains(got, "[Source: a.jsonl]\nfirst chunk") {
		t.Errorf("missing first block in %q", got)
	}
	if !strings.Contains(got, "[Source: b.jsonl]\nsecond chunk") {
		t.Errorf("missing second block in %q", got)
	}

	var empty *Result
	if empty.ContextBlock() != "" {
		t.Error("nil result should render empty")
	}
}

func TestTruncateToBudget(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 600)
	r := &Result{Hits: []Hit{
		{Chunk: index.Chunk{Content: long, Source: "x"}},
		{Chunk: index.Chunk{Content: long, Source: "y"}},
		{Chunk: index.Chunk{Content: long, Source: "z"}},
	}}

	t.Run("fits entirely", func(t *testing.T) {
		t.Parallel()
		got := TruncateToBudget(r, 2000)
		if len(got.Hits) != 3 {
			t.Errorf("len = %d, want 3", len(got.Hits))
		}
	})

	t.Run("hard truncates the overflowing chunk", func(t *testing.T) {
		t.Parallel()
		got := TruncateToBudget(r, 900)
		if len(got.Hits) != 2 {
			t.Fatalf("len = %d, want 2", len(got.Hits))
		}
		if !got.Hits[1].Truncated {
			t.Error("second hit should be marked truncated")
		}
		if len(got.Hits[1].Chunk.Content) != 300 {
			t.Errorf("truncated length = %d, want 300", len(got.Hits[1].Chunk.Content))
		}
	})

	t.Run("drops a sliver remainder", func(t *testing.T) {
		t.Parallel()
		got := TruncateToBudget(r, 650)
		if len(got.Hits) != 1 {
			t.Fatalf("len = %d, want 1 (50-char sliver dropped)", len(got.Hits))
		}
		if got.Hits[0].Truncated {
			t.Error("fully included chunk must not be marked truncated")
		}
	})

	t.Run("total never exceeds budget", func(t *testing.T) {
		t.Parallel()
		for _, budget := range []int{1, 199, 200, 600, 601, 1199, 1800} {
			got := TruncateToBudget(r, budget)
			total := 0
			for _, h := range got.Hits {
				total += len(h.Chunk.Content)
			}
			if total > budget {
				t.Errorf("budget %d: total %d exceeds it", budget, total)
			}
		}
	})

	t.Run("never splits a multibyte rune", func(t *testing.T) {
		t.Parallel()
		multi := &Result{Hits: []Hit{
			{Chunk: index.Chunk{Content: "aaaa" + strings.Repeat("°", 200), Source: "temp.jsonl"}},
		}}
		got := TruncateToBudget(multi, 205)
		if len(got.Hits) != 1 || !got.Hits[0].Truncated {
			t.Fatalf("hits = %+v, want one truncated hit", got.Hits)
		}
		content := got.Hits[0].Chunk.Content
		if !utf8.ValidString(content) {
			t.Errorf("truncated content is not valid UTF-8: %q", content)
		}
		if len(content) > 205 {
			t.Errorf("truncated length = %d, exceeds budget 205", len(content))
		}
	})

	t.Run("zero budget", func(t *testing.T) {
		t.Parallel()
		if got := TruncateToBudget(r, 0); !got.Empty() {
			t.Error("zero budget should produce an empty result")
		}
	})

	// The input result is never mutated.
	if len(r.Hits[0].Chunk.Content) != 600 {
		t.Error("TruncateToBudget mutated its input")
	}
}

func TestLexicalOverlap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		query   string
		content string
		want    float64
	}{
		{"full overlap", "severe headache", "a severe headache since morning", 1},
		{"no overlap", "ankle sprain", "cardiac arrhythmia management", 0},
		{"half overlap", "fever cough", "persistent cough at night", 0.5},
		{"short words ignored", "is my an", "is my an", 0},
		{"punctuation stripped", "fever, cough!", "fever and cough", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := lexicalOverlap(tt.query, tt.content); got != tt.want {
				t.Errorf("lexicalOverlap(%q, %q) = %v, want %v", tt.query, tt.content, got, tt.want)
			}
		})
	}
}
