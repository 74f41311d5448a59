// Package vectorstore persists embedded chunks in an embedded SQLite
// database and ranks them by cosine similarity in Go.
package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"
	"sort"

	_ "modernc.org/sqlite"

	"analyst-backend/application/ports"
	pkgerrors "analyst-backend/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id        TEXT PRIMARY KEY,
	text      TEXT NOT NULL,
	embedding BLOB NOT NULL
);`

// Store is a SQLite-backed vector index.
type Store struct {
	db *sql.DB
}

// Open opens or creates the vector store at path
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pkgerrors.NewExternal("opening vector store: " + err.Error())
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pkgerrors.NewExternal("initializing vector store: " + err.Error())
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert stores the chunk and its embedding under the given id
func (s *Store) Upsert(ctx context.Context, id, text string, embedding []float32) error {
	if id == "" {
		return pkgerrors.NewValidation("chunk id cannot be empty")
	}
	if len(embedding) == 0 {
		return pkgerrors.NewValidation("embedding cannot be empty")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (id, text, embedding) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET text = excluded.text, embedding = excluded.embedding`,
		id, text, encode(embedding))
	if err != nil {
		return pkgerrors.NewExternal("writing chunk: " + err.Error())
	}
	return nil
}

// Search returns the limit nearest chunks to the query embedding
func (s *Store) Search(ctx context.Context, embedding []float32, limit int) ([]ports.VectorMatch, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, text, embedding FROM chunks`)
	if err != nil {
		return nil, pkgerrors.NewExternal("reading chunks: " + err.Error())
	}
	defer rows.Close()

	var matches []ports.VectorMatch
	for rows.Next() {
		var id, text string
		var blob []byte
		if err := rows.Scan(&id, &text, &blob); err != nil {
			return nil, pkgerrors.NewExternal("scanning chunk: " + err.Error())
		}
		stored := decode(blob)
		score := cosine(embedding, stored)
		if math.IsNaN(score) {
			continue
		}
		matches = append(matches, ports.VectorMatch{ID: id, Text: text, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewExternal("iterating chunks: " + err.Error())
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func encode(embedding []float32) []byte {
	buf := make([]byte, 4*len(embedding))
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decode(blob []byte) []float32 {
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out
}

// cosine computes cosine similarity; NaN when either vector is degenerate
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.NaN()
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return math.NaN()
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
