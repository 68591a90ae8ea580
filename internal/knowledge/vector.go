package knowledge

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrSegmentNotFound segment does not exist in the index
var ErrSegmentNotFound = errors.New("segment not found")

// Segment one indexed chunk of a source document
type Segment struct {
	ID      string
	Source  string
	Content string
}

// SearchResult a segment matched by similarity search
type SearchResult struct {
	Segment Segment
	Score   float64
}

// IndexStats index statistics
type IndexStats struct {
	TotalSegments int `json:"total_segments"`
	Dimension     int `json:"dimension"`
}

// SQLiteVectorIndex stores document segments and their embeddings in
// SQLite, with vectors kept as BLOBs and cosine similarity computed at
// query time. Suited for small corpora (< 10000 segments); larger ones
// want the sqlite-vec extension or an external vector database.
type SQLiteVectorIndex struct {
	db        *sql.DB
	dbPath    string
	dimension int
}

// NewSQLiteVectorIndex opens (or creates) a vector index
func NewSQLiteVectorIndex(dbPath string, dimension int) (*SQLiteVectorIndex, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}

	index := &SQLiteVectorIndex{
		db:        db,
		dbPath:    dbPath,
		dimension: dimension,
	}

	if err := index.initTables(); err != nil {
		db.Close()
		return nil, err
	}

	return index, nil
}

// initTables initializes database tables
func (s *SQLiteVectorIndex) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS document_segments (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			content TEXT NOT NULL,
			vector BLOB NOT NULL,
			dimension INTEGER NOT NULL,
			norm REAL NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_segments_source ON document_segments(source)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to initialize segment table: %w", err)
		}
	}

	return nil
}

// Store stores a segment with its embedding
func (s *SQLiteVectorIndex) Store(seg Segment, vector []float32) error {
	if len(vector) != s.dimension {
		return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(vector))
	}

	norm := calculateNorm(vector)
	blob := vectorToBlob(vector)
	now := time.Now()

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO document_segments (id, source, content, vector, dimension, norm, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		seg.ID, seg.Source, seg.Content, blob, len(vector), norm, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to store segment: %w", err)
	}

	return nil
}

// StoreBatch stores multiple segments in a single transaction
func (s *SQLiteVectorIndex) StoreBatch(segments []Segment, vectors [][]float32) error {
	if len(segments) != len(vectors) {
		return fmt.Errorf("segment/vector count mismatch: %d vs %d", len(segments), len(vectors))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO document_segments (id, source, content, vector, dimension, norm, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()

	for i, seg := range segments {
		vector := vectors[i]
		if len(vector) != s.dimension {
			continue
		}

		norm := calculateNorm(vector)
		blob := vectorToBlob(vector)

		if _, err := stmt.Exec(seg.ID, seg.Source, seg.Content, blob, len(vector), norm, now, now); err != nil {
			return fmt.Errorf("failed to store segment batch: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Get retrieves a stored segment
func (s *SQLiteVectorIndex) Get(id string) (*Segment, error) {
	var seg Segment
	err := s.db.QueryRow(
		"SELECT id, source, content FROM document_segments WHERE id = ?", id,
	).Scan(&seg.ID, &seg.Source, &seg.Content)
	if err == sql.ErrNoRows {
		return nil, ErrSegmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get segment: %w", err)
	}
	return &seg, nil
}

// DeleteSource removes all segments loaded from one source document
func (s *SQLiteVectorIndex) DeleteSource(source string) error {
	_, err := s.db.Exec("DELETE FROM document_segments WHERE source = ?", source)
	if err != nil {
		return fmt.Errorf("failed to delete segments: %w", err)
	}
	return nil
}

// SearchSimilar returns the topK segments most similar to the query
// vector, ranked by cosine similarity, filtered by minSimilarity
func (s *SQLiteVectorIndex) SearchSimilar(queryVector []float32, topK int, minSimilarity float64) ([]*SearchResult, error) {
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("query vector dimension mismatch: expected %d, got %d", s.dimension, len(queryVector))
	}

	queryNorm := calculateNorm(queryVector)
	if queryNorm == 0 {
		return nil, fmt.Errorf("query vector has zero norm")
	}

	// Full scan; fine at this scale
	rows, err := s.db.Query("SELECT id, source, content, vector, norm FROM document_segments")
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	var results []*SearchResult

	for rows.Next() {
		var seg Segment
		var blob []byte
		var norm float64

		if err := rows.Scan(&seg.ID, &seg.Source, &seg.Content, &blob, &norm); err != nil {
			continue
		}

		if norm == 0 {
			continue
		}

		vector := blobToVector(blob)
		similarity := calculateDotProduct(queryVector, vector) / (queryNorm * norm)

		if similarity >= minSimilarity {
			results = append(results, &SearchResult{Segment: seg, Score: similarity})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

// Count returns the number of stored segments
func (s *SQLiteVectorIndex) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM document_segments").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count segments: %w", err)
	}
	return count, nil
}

// Stats returns index statistics
func (s *SQLiteVectorIndex) Stats() (*IndexStats, error) {
	count, err := s.Count()
	if err != nil {
		return nil, err
	}
	return &IndexStats{TotalSegments: count, Dimension: s.dimension}, nil
}

// Close closes the database connection
func (s *SQLiteVectorIndex) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// vectorToBlob converts a float32 slice to a little-endian BLOB
func vectorToBlob(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// blobToVector converts a BLOB back to a float32 slice
func blobToVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// calculateNorm computes the L2 norm
func calculateNorm(vector []float32) float64 {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// calculateDotProduct computes the dot product
func calculateDotProduct(a []float32, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// NormalizeVector scales a vector to unit length
func NormalizeVector(vector []float32) []float32 {
	norm := calculateNorm(vector)
	if norm == 0 {
		return vector
	}

	normalized := make([]float32, len(vector))
	for i, v := range vector {
		normalized[i] = float32(float64(v) / norm)
	}
	return normalized
}

// CosineSimilarity computes the cosine similarity of two vectors
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	normA := calculateNorm(a)
	normB := calculateNorm(b)
	if normA == 0 || normB == 0 {
		return 0
	}

	return calculateDotProduct(a, b) / (normA * normB)
}
