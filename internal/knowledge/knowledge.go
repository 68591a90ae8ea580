// Package knowledge indexes local documents into a SQLite vector index
// and answers similarity queries over them.
package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/hession/filedesk/internal/logger"
)

const (
	// DefaultChunkSize characters per segment
	DefaultChunkSize = 1000
	// DefaultChunkOverlap characters shared between adjacent segments
	DefaultChunkOverlap = 200
	// DefaultBatchSize segments embedded per API call
	DefaultBatchSize = 16
)

// Manager ties the embedding client and the vector index together
type Manager struct {
	embedder      EmbeddingClient
	index         *SQLiteVectorIndex
	chunkSize     int
	chunkOverlap  int
	batchSize     int
	maxResults    int
	minSimilarity float64
}

// NewManager creates a knowledge manager. maxResults caps how many
// segments a single search may return; 0 means no cap.
func NewManager(embedder EmbeddingClient, index *SQLiteVectorIndex, maxResults int, minSimilarity float64) *Manager {
	return &Manager{
		embedder:      embedder,
		index:         index,
		chunkSize:     DefaultChunkSize,
		chunkOverlap:  DefaultChunkOverlap,
		batchSize:     DefaultBatchSize,
		maxResults:    maxResults,
		minSimilarity: minSimilarity,
	}
}

// IngestDir walks a directory, splitting every .txt and .md file into
// segments and indexing them. Returns the number of segments indexed.
func (m *Manager) IngestDir(ctx context.Context, dir string) (int, error) {
	total := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" {
			return nil
		}

		n, err := m.IngestFile(ctx, path)
		if err != nil {
			logger.Warn("Skipping document %s: %v", path, err)
			return nil
		}
		total += n
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("failed to walk documents directory: %w", err)
	}

	return total, nil
}

// IngestFile splits one document into segments and indexes them,
// replacing any segments previously loaded from the same file
func (m *Manager) IngestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read document: %w", err)
	}
	if !utf8.Valid(data) {
		return 0, fmt.Errorf("document is not valid UTF-8 text")
	}

	source := filepath.Base(path)
	chunks := splitText(string(data), m.chunkSize, m.chunkOverlap)
	if len(chunks) == 0 {
		return 0, nil
	}

	if err := m.index.DeleteSource(source); err != nil {
		return 0, err
	}

	segments := make([]Segment, len(chunks))
	for i, chunk := range chunks {
		segments[i] = Segment{
			ID:      fmt.Sprintf("%s#%d", source, i),
			Source:  source,
			Content: chunk,
		}
	}

	for i := 0; i < len(segments); i += m.batchSize {
		end := i + m.batchSize
		if end > len(segments) {
			end = len(segments)
		}
		batch := segments[i:end]

		texts := make([]string, len(batch))
		for j, seg := range batch {
			texts[j] = seg.Content
		}

		vectors, err := m.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("failed to embed segments: %w", err)
		}

		if err := m.index.StoreBatch(batch, vectors); err != nil {
			return 0, err
		}
	}

	logger.Info("Indexed %d segments from %s", len(segments), source)
	return len(segments), nil
}

// Search embeds the query and returns the text of the k most similar
// segments, best first
func (m *Manager) Search(query string, k int) ([]string, error) {
	if m.maxResults > 0 && k > m.maxResults {
		k = m.maxResults
	}

	queryVec, err := m.embedder.Embed(context.Background(), query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := m.index.SearchSimilar(queryVec, k, m.minSimilarity)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Segment.Content
	}
	return texts, nil
}

// Stats returns index statistics
func (m *Manager) Stats() (*IndexStats, error) {
	return m.index.Stats()
}

// Close closes the underlying index
func (m *Manager) Close() error {
	return m.index.Close()
}

// splitText chops text into chunks of at most chunkSize runes with the
// given overlap between consecutive chunks
func splitText(text string, chunkSize, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}

	return chunks
}
