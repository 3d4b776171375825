// Package ingest loads the medical reference corpus into the vector index.
// Documents arrive as JSONL files, one document per line; each document is
// split into overlapping chunks, embedded in batches, and added to the index.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/acuity/internal/index"
	"github.com/linnemanlabs/acuity/internal/retrieval"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 500

	// DefaultChunkOverlap is carried between adjacent chunks so sentences
	// split at a boundary stay retrievable.
	DefaultChunkOverlap = 50

	// embedBatchSize bounds how many chunk texts go to the embedder at once.
	embedBatchSize = 64
)

// Document is one line of a corpus JSONL file.
type Document struct {
	Text       string            `json:"text"`
	Source     string            `json:"source"`
	EntityTags []string          `json:"entity_tags,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Ingester chunks, embeds, and indexes corpus documents.
type Ingester struct {
	embedder     retrieval.Embedder
	index        *index.Index
	logger       log.Logger
	chunkSize    int
	chunkOverlap int
}

// New creates an ingester. Non-positive sizes select the defaults.
func New(embedder retrieval.Embedder, ix *index.Index, logger log.Logger, chunkSize, chunkOverlap int) *Ingester {
	if logger == nil {
		logger = log.Nop()
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}
	return &Ingester{
		embedder:     embedder,
		index:        ix,
		logger:       logger,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// IngestDocument chunks and indexes a single document. Returns the number of
// chunks added.
func (in *Ingester) IngestDocument(ctx context.Context, doc *Document) (int, error) {
	pieces := chunkText(doc.Text, in.chunkSize, in.chunkOverlap)
	if len(pieces) == 0 {
		return 0, nil
	}

	added := 0
	for start := 0; start < len(pieces); start += embedBatchSize {
		end := min(start+embedBatchSize, len(pieces))
		batch := pieces[start:end]

		vecs, err := in.embedder.Embed(ctx, batch)
		if err != nil {
			return added, fmt.Errorf("embed batch: %w", err)
		}
		if len(vecs) != len(batch) {
			return added, fmt.Errorf("embed batch: got %d vectors, want %d", len(vecs), len(batch))
		}

		chunks := make([]index.Chunk, len(batch))
		for i, content := range batch {
			chunks[i] = index.Chunk{
				ID:         ulid.Make().String(),
				Content:    content,
				Embedding:  vecs[i],
				Source:     doc.Source,
				ChunkIndex: start + i,
				EntityTags: doc.EntityTags,
				Metadata:   doc.Metadata,
			}
		}
		if err := in.index.Add(chunks); err != nil {
			return added, fmt.Errorf("index chunks: %w", err)
		}
		added += len(chunks)
	}
	return added, nil
}

// IngestFile reads a JSONL corpus file. Malformed lines and per-document
// failures are logged and skipped; the rest of the file still loads.
func (in *Ingester) IngestFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open corpus file: %w", err)
	}
	defer f.Close()

	L := in.logger.With("file", filepath.Base(path))

	total := 0
	lineNo := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		var doc Document
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			L.Warn(ctx, "skipping malformed corpus line", "line", lineNo, "error", err)
			continue
		}
		if doc.Source == "" {
			doc.Source = filepath.Base(path)
		}

		n, err := in.IngestDocument(ctx, &doc)
		if err != nil {
			L.Warn(ctx, "skipping document", "line", lineNo, "error", err)
			continue
		}
		total += n
	}
	if err := sc.Err(); err != nil {
		return total, fmt.Errorf("read corpus file: %w", err)
	}

	L.Info(ctx, "corpus file ingested", "chunks", total, "lines", lineNo)
	return total, nil
}

// IngestDir loads every .jsonl file under dir. A failing file is logged and
// skipped so one bad file cannot block startup.
func (in *Ingester) IngestDir(ctx context.Context, dir string) (int, error) {
	total := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".jsonl") {
			return nil
		}
		n, ferr := in.IngestFile(ctx, path)
		total += n
		if ferr != nil {
			in.logger.Warn(ctx, "skipping corpus file", "file", path, "error", ferr)
		}
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("walk corpus dir: %w", err)
	}

	in.logger.Info(ctx, "corpus ingested", "dir", dir, "chunks", total)
	return total, nil
}

// chunkText splits content into overlapping chunks, breaking at word
// boundaries where possible.
func chunkText(content string, size, overlap int) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	var chunks []string
	start := 0
	for start < len(content) {
		end := min(start+size, len(content))

		// Prefer a word boundary for the cut.
		if end < len(content) {
			if lastSpace := strings.LastIndex(content[start:end], " "); lastSpace > 0 {
				end = start + lastSpace
			}
		}

		if piece := strings.TrimSpace(content[start:end]); piece != "" {
			chunks = append(chunks, piece)
		}

		if end == len(content) {
			break
		}
		next := end - overlap
		// Always make forward progress, overlap notwithstanding.
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}
