package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"archi/internal/logging"
)

// MemoryEntry is one row of the vector-memory stand-in table: a piece
// of free-text content plus an optional embedding for similarity
// search. spec.md keeps a real semantic memory store out of scope;
// this exists to give the Typed Persistent Store abstraction a
// concrete body and a place for future components to extend.
type MemoryEntry struct {
	ID        int64
	Kind      string
	Content   string
	Embedding []float32
	Metadata  map[string]any
}

// PutMemory inserts a new memory entry and returns its row ID.
func (s *Store) PutMemory(e MemoryEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return 0, fmt.Errorf("marshal memory metadata: %w", err)
	}
	embBlob := encodeFloat32(e.Embedding)

	kind := e.Kind
	if kind == "" {
		kind = "note"
	}
	res, err := s.db.Exec(`
		INSERT INTO memory_entries (kind, content, embedding, metadata) VALUES (?, ?, ?, ?)
	`, kind, e.Content, embBlob, string(meta))
	if err != nil {
		return 0, fmt.Errorf("insert memory entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("memory entry row id: %w", err)
	}

	if len(e.Embedding) > 0 {
		if _, err := s.db.Exec(`INSERT INTO vec_index (rowid, embedding, content, metadata) VALUES (?, ?, ?, ?)`,
			id, embBlob, e.Content, string(meta)); err != nil {
			logging.StoreDebug("vec_index insert skipped for memory %d: %v", id, err)
		}
	}
	return id, nil
}

// SearchMemory returns the top-k memory entries ranked by cosine
// similarity to query, computed in Go against memory_entries directly
// so results are identical whether or not vec_index is available.
func (s *Store) SearchMemory(query []float32, k int) ([]MemoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT id, kind, content, embedding, metadata FROM memory_entries WHERE embedding IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("scan memory entries: %w", err)
	}
	defer rows.Close()

	type scored struct {
		entry MemoryEntry
		score float64
	}
	var candidates []scored
	for rows.Next() {
		var e MemoryEntry
		var embBlob []byte
		var metaJSON string
		if err := rows.Scan(&e.ID, &e.Kind, &e.Content, &embBlob, &metaJSON); err != nil {
			continue
		}
		e.Embedding = decodeFloat32Slice(embBlob)
		_ = json.Unmarshal([]byte(metaJSON), &e.Metadata)
		candidates = append(candidates, scored{entry: e, score: cosineSimilarity(query, e.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]MemoryEntry, k)
	for i := 0; i < k; i++ {
		out[i] = candidates[i].entry
	}
	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return -1
	}
	var dot, na, nb float64
	for i := range a {
		af, bf := float64(a[i]), float64(b[i])
		dot += af * bf
		na += af * af
		nb += bf * bf
	}
	if na == 0 || nb == 0 {
		return -1
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func encodeFloat32(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// ParseEmbeddingJSON parses a JSON float array (as stored in a
// preference value or passed from a CLI seed command) into an
// embedding usable by PutMemory/SearchMemory.
func ParseEmbeddingJSON(data []byte) ([]float32, error) {
	return fastParseVectorJSON(data, nil)
}

func decodeFloat32Slice(b []byte) []float32 {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
