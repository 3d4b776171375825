package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/acuity/internal/index"
)

// mockEmbedder returns a constant-dimension vector per text.
type mockEmbedder struct {
	dim   int
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, m.dim)
		vec[0] = 1
		out[i] = vec
	}
	return out, nil
}

func TestChunkText(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		if got := chunkText("   ", 100, 10); got != nil {
			t.Errorf("chunkText = %v, want nil", got)
		}
	})

	t.Run("short text single chunk", func(t *testing.T) {
		t.Parallel()
		got := chunkText("a short document", 100, 10)
		if len(got) != 1 || got[0] != "a short document" {
			t.Errorf("chunkText = %v, want single chunk", got)
		}
	})

	t.Run("splits at word boundaries", func(t *testing.T) {
		t.Parallel()
		text := strings.Repeat("alpha beta gamma delta ", 20)
		got := chunkText(text, 50, 10)
		if len(got) < 2 {
			t.Fatalf("expected multiple chunks, got %d", len(got))
		}
		for i, c := range got {
			if len(c) > 50 {
				t.Errorf("chunk %d length %d exceeds size", i, len(c))
			}
			if strings.HasPrefix(c, " ") || strings.HasSuffix(c, " ") {
				t.Errorf("chunk %d not trimmed: %q", i, c)
			}
		}
	})

	t.Run("overlap carries text", func(t *testing.T) {
		t.Parallel()
		text := strings.Repeat("word ", 40)
		got := chunkText(text, 60, 20)
		if len(got) < 2 {
			t.Fatalf("expected multiple chunks, got %d", len(got))
		}
		// Each chunk after the first should start inside the previous one.
		for i := 1; i < len(got); i++ {
			tail := got[i-1][len(got[i-1])-10:]
			if !strings.Contains(got[i], strings.TrimSpace(tail)) {
				t.Errorf("chunk %d does not overlap previous", i)
			}
		}
	})

	t.Run("terminates without word boundaries", func(t *testing.T) {
		t.Parallel()
		text := strings.Repeat("x", 1000)
		got := chunkText(text, 100, 50)
		if len(got) == 0 {
			t.Fatal("expected chunks for unbroken text")
		}
		joined := strings.Join(got, "")
		if len(joined) < len(text) {
			t.Errorf("chunks cover %d chars, want at least %d", len(joined), len(text))
		}
	})
}

func TestIngestDocument(t *testing.T) {
	t.Parallel()

	ix := index.New(4)
	in := New(&mockEmbedder{dim: 4}, ix, log.Nop(), 50, 10)

	doc := &Document{
		Text:       strings.Repeat("fever and chills after travel ", 10),
		Source:     "infectious.jsonl",
		EntityTags: []string{"symptom:fever"},
		Metadata:   map[string]string{"topic": "infectious"},
	}
	n, err := in.IngestDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("IngestDocument: %v", err)
	}
	if n < 2 {
		t.Fatalf("chunks added = %d, want several", n)
	}
	if ix.Len() != n {
		t.Errorf("index.Len() = %d, want %d", ix.Len(), n)
	}
}

func TestIngestDocument_EmbedFailure(t *testing.T) {
	t.Parallel()

	ix := index.New(4)
	in := New(&mockEmbedder{dim: 4, err: errors.New("provider down")}, ix, log.Nop(), 0, 0)

	_, err := in.IngestDocument(context.Background(), &Document{Text: "some content"})
	if err == nil {
		t.Fatal("expected error from failing embedder")
	}
	if ix.Len() != 0 {
		t.Errorf("index.Len() = %d, want 0 after failure", ix.Len())
	}
}

func TestIngestFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.jsonl")
	content := `{"text": "chest pain radiating to the left arm suggests cardiac origin", "source": "cardio.jsonl"}
not valid json
{"text": "a mild sore throat usually resolves on its own"}

{"text": ""}
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	ix := index.New(4)
	in := New(&mockEmbedder{dim: 4}, ix, log.Nop(), 0, 0)

	n, err := in.IngestFile(context.Background(), path)
	if err != nil {
		t.Fatalf("IngestFile: %v", err)
	}
	// Two valid non-empty documents, one chunk each at default size.
	if n != 2 {
		t.Errorf("chunks = %d, want 2", n)
	}
}

func TestIngestFile_DefaultsSourceToFilename(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "resp.jsonl")
	if err := os.WriteFile(path, []byte(`{"text": "wheezing on exertion"}`+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ix := index.New(4)
	in := New(&mockEmbedder{dim: 4}, ix, log.Nop(), 0, 0)
	if _, err := in.IngestFile(context.Background(), path); err != nil {
		t.Fatalf("IngestFile: %v", err)
	}

	vec := make([]float32, 4)
	vec[0] = 1
	hits, err := ix.Search(vec, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits[0].Chunk.Source != "resp.jsonl" {
		t.Errorf("Source = %q, want resp.jsonl", hits[0].Chunk.Source)
	}
}

func TestIngestDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := map[string]string{
		"a.jsonl":    `{"text": "document one"}`,
		"b.jsonl":    `{"text": "document two"}`,
		"ignore.txt": "not a corpus file",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body+"\n"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	ix := index.New(4)
	in := New(&mockEmbedder{dim: 4}, ix, log.Nop(), 0, 0)

	n, err := in.IngestDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("IngestDir: %v", err)
	}
	if n != 2 {
		t.Errorf("chunks = %d, want 2 (txt file ignored)", n)
	}
}
