// Package ingest loads SOP documents into the snippet index. Documents
// are YAML files with a name, source label, optional category, and a
// body that is split into overlapping word-window chunks.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/complaintops/copilot/internal/models"
	"github.com/complaintops/copilot/internal/store"
)

// Defaults match the chunking the snippet index was tuned for.
const (
	DefaultMaxWords = 120
	DefaultOverlap  = 20
)

// Document is one SOP file on disk.
type Document struct {
	Name     string `yaml:"name"`
	Source   string `yaml:"source"`
	Category string `yaml:"category"`
	Body     string `yaml:"body"`
}

// ChunkText splits text into word windows of at most maxWords words,
// with consecutive windows sharing overlap words. The final window may
// be shorter; text at or under maxWords yields a single chunk.
func ChunkText(text string, maxWords, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	if overlap < 0 || overlap >= maxWords {
		overlap = DefaultOverlap
		if overlap >= maxWords {
			// Windows must always advance, whatever maxWords is.
			overlap = maxWords - 1
		}
	}

	var chunks []string
	start := 0
	for start < len(words) {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
		start = end - overlap
	}
	return chunks
}

// Ingestor chunks documents and writes them to the store.
type Ingestor struct {
	store    store.Store
	maxWords int
	overlap  int
}

// NewIngestor creates an Ingestor with the default chunking window.
func NewIngestor(s store.Store) *Ingestor {
	return &Ingestor{store: s, maxWords: DefaultMaxWords, overlap: DefaultOverlap}
}

// IngestDocument chunks one document and replaces its stored chunks.
func (in *Ingestor) IngestDocument(ctx context.Context, doc Document) (int, error) {
	if doc.Name == "" {
		return 0, fmt.Errorf("document has no name")
	}
	if strings.TrimSpace(doc.Body) == "" {
		return 0, fmt.Errorf("document %s has no body", doc.Name)
	}
	if doc.Source == "" {
		doc.Source = "unknown"
	}

	pieces := ChunkText(doc.Body, in.maxWords, in.overlap)
	chunks := make([]*models.SOPChunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = &models.SOPChunk{
			ChunkID:  fmt.Sprintf("%s_chunk_%d", doc.Name, i),
			DocName:  doc.Name,
			Source:   doc.Source,
			Category: doc.Category,
			Text:     text,
			Ordinal:  i,
		}
	}

	if err := in.store.PutSOPChunks(ctx, doc.Name, chunks); err != nil {
		return 0, fmt.Errorf("ingest %s: %w", doc.Name, err)
	}
	return len(chunks), nil
}

// IngestFile parses a YAML SOP file and ingests it. A file may hold a
// single document or a list of documents.
func (in *Ingestor) IngestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	docs, err := parseDocuments(data)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	total := 0
	for _, doc := range docs {
		n, err := in.IngestDocument(ctx, doc)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// IngestDir ingests every .yaml/.yml file in a directory.
func (in *Ingestor) IngestDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read sop dir: %w", err)
	}

	total := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		n, err := in.IngestFile(ctx, filepath.Join(dir, entry.Name()))
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func parseDocuments(data []byte) ([]Document, error) {
	var docs []Document
	if err := yaml.Unmarshal(data, &docs); err == nil {
		return docs, nil
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return []Document{doc}, nil
}
