package store

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	sqlite "modernc.org/sqlite"
	"modernc.org/sqlite/vtab"
)

func init() {
	// Register the memory-index compat layer: vec0 virtual table +
	// vector_distance_cos function, so the Typed Persistent Store's
	// vec_index table works on the pure-Go sqlite build without cgo.
	registerMemoryIndexCompat()
}

// registerMemoryIndexCompat installs the vec0 virtual table module and the
// cosine distance function memory_entries similarity search relies on when
// the real sqlite-vec extension isn't linked in (modernc.org/sqlite is
// pure Go; sqlite-vec is a cgo extension).
func registerMemoryIndexCompat() {
	_ = vtab.RegisterModule(nil, "vec0", &memoryIndexModule{})
	// Deterministic: same pair of embedding blobs always yields the same distance.
	_ = sqlite.RegisterDeterministicScalarFunction("vector_distance_cos", 2, memoryIndexDistanceCos)
}

// memoryIndexModule implements a minimal vec0 virtual table over the
// Typed Persistent Store's vec_index. Rows live in process memory only
// and nothing repopulates them on open; memory_entries holds the durable
// copy, and SearchMemory ranks from memory_entries rather than this table.
type memoryIndexModule struct {
}

// process-wide table registry keyed by virtual table name (there's
// normally just one: vec_index).
var (
	memoryIndexTablesMu sync.RWMutex
	memoryIndexTables   = make(map[string]*memoryIndexTable)
)

type memoryIndexTable struct {
	name string
	mu   sync.RWMutex
	rows []memoryIndexRow
	// next rowid to allocate (monotonic)
	nextRowID int64
}

type memoryIndexRow struct {
	rowid     int64
	embedding []byte
	content   string
	metadata  string
}

func (m *memoryIndexModule) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

func (m *memoryIndexModule) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

func (m *memoryIndexModule) connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("vec0: insufficient args")
	}
	// args: [module, db, table, ...]
	name := args[2]
	if err := ctx.Declare("CREATE TABLE x(embedding BLOB, content TEXT, metadata TEXT)"); err != nil {
		return nil, err
	}

	memoryIndexTablesMu.Lock()
	defer memoryIndexTablesMu.Unlock()
	tbl, ok := memoryIndexTables[name]
	if !ok {
		tbl = &memoryIndexTable{name: name, nextRowID: 1}
		memoryIndexTables[name] = tbl
	}
	return tbl, nil
}

// BestIndex: no pushdowns; SearchMemory does the ranking in Go, so a
// full scan here is fine.
func (t *memoryIndexTable) BestIndex(info *vtab.IndexInfo) error {
	info.EstimatedRows = int64(len(t.rows))
	return nil
}

func (t *memoryIndexTable) Open() (vtab.Cursor, error) {
	return &memoryIndexCursor{tbl: t, idx: -1}, nil
}

func (t *memoryIndexTable) Disconnect() error { return nil }
func (t *memoryIndexTable) Destroy() error    { return nil }

// Updater interface
func (t *memoryIndexTable) Insert(cols []vtab.Value, rowid *int64) error {
	if len(cols) < 3 {
		return fmt.Errorf("vec0: insert expects 3 columns")
	}
	emb, err := coerceEmbeddingBlob(cols[0])
	if err != nil {
		return err
	}
	content := vtabValueToString(cols[1])
	meta := vtabValueToString(cols[2])

	t.mu.Lock()
	defer t.mu.Unlock()
	rid := *rowid
	if rid <= 0 {
		rid = t.nextRowID
		t.nextRowID++
	}
	// Replace if a row with this rowid already exists.
	replaced := false
	for i := range t.rows {
		if t.rows[i].rowid == rid {
			t.rows[i] = memoryIndexRow{rowid: rid, embedding: emb, content: content, metadata: meta}
			replaced = true
			break
		}
	}
	if !replaced {
		t.rows = append(t.rows, memoryIndexRow{rowid: rid, embedding: emb, content: content, metadata: meta})
	}
	*rowid = rid
	return nil
}

func (t *memoryIndexTable) Update(oldRowid int64, cols []vtab.Value, newRowid *int64) error {
	if len(cols) < 3 {
		return fmt.Errorf("vec0: update expects 3 columns")
	}
	emb, err := coerceEmbeddingBlob(cols[0])
	if err != nil {
		return err
	}
	content := vtabValueToString(cols[1])
	meta := vtabValueToString(cols[2])

	t.mu.Lock()
	defer t.mu.Unlock()
	target := oldRowid
	if newRowid != nil && *newRowid > 0 {
		target = *newRowid
	}
	for i := range t.rows {
		if t.rows[i].rowid == oldRowid {
			t.rows[i] = memoryIndexRow{rowid: target, embedding: emb, content: content, metadata: meta}
			if target != oldRowid {
				t.rows[i].rowid = target
			}
			return nil
		}
	}
	// If not found, append.
	t.rows = append(t.rows, memoryIndexRow{rowid: target, embedding: emb, content: content, metadata: meta})
	if target >= t.nextRowID {
		t.nextRowID = target + 1
	}
	return nil
}

func (t *memoryIndexTable) Delete(oldRowid int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.rows {
		if t.rows[i].rowid == oldRowid {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			break
		}
	}
	return nil
}

// memoryIndexCursor scans a memoryIndexTable's rows in insertion order.
type memoryIndexCursor struct {
	tbl *memoryIndexTable
	idx int
}

func (c *memoryIndexCursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.idx = -1
	return c.Next()
}

func (c *memoryIndexCursor) Next() error {
	c.idx++
	return nil
}

func (c *memoryIndexCursor) Eof() bool {
	c.tbl.mu.RLock()
	defer c.tbl.mu.RUnlock()
	return c.idx >= len(c.tbl.rows)
}

func (c *memoryIndexCursor) Column(col int) (vtab.Value, error) {
	c.tbl.mu.RLock()
	defer c.tbl.mu.RUnlock()
	if c.idx < 0 || c.idx >= len(c.tbl.rows) {
		return nil, fmt.Errorf("vec0: cursor out of range")
	}
	row := c.tbl.rows[c.idx]
	switch col {
	case 0:
		return row.embedding, nil
	case 1:
		return row.content, nil
	case 2:
		return row.metadata, nil
	default:
		return nil, fmt.Errorf("vec0: invalid column %d", col)
	}
}

func (c *memoryIndexCursor) Rowid() (int64, error) {
	c.tbl.mu.RLock()
	defer c.tbl.mu.RUnlock()
	if c.idx < 0 || c.idx >= len(c.tbl.rows) {
		return 0, fmt.Errorf("vec0: cursor out of range")
	}
	return c.tbl.rows[c.idx].rowid, nil
}

func (c *memoryIndexCursor) Close() error { return nil }

// memoryIndexDistanceCos backs the vector_distance_cos SQL function.
// SearchMemory doesn't call this directly (it ranks in Go against
// memory_entries), but the function is registered so ad-hoc queries
// against vec_index behave the same as against a real sqlite-vec build.
func memoryIndexDistanceCos(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vector_distance_cos expects 2 arguments")
	}
	a, err := decodeEmbeddingFloat32(args[0])
	if err != nil {
		return nil, err
	}
	b, err := decodeEmbeddingFloat32(args[1])
	if err != nil {
		return nil, err
	}
	if len(a) == 0 || len(b) == 0 {
		return float64(1), nil
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("vector_distance_cos: dimension mismatch %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		af := float64(a[i])
		bf := float64(b[i])
		dot += af * bf
		na += af * af
		nb += bf * bf
	}
	if na == 0 || nb == 0 {
		return float64(1), nil
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return float64(1 - cos), nil
}

// decodeEmbeddingFloat32 converts supported driver.Value types into a
// float32 slice, matching encodeFloat32's little-endian blob layout.
func decodeEmbeddingFloat32(v driver.Value) ([]float32, error) {
	if v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case []byte:
		if len(x)%4 != 0 {
			return nil, fmt.Errorf("vector_distance_cos: blob length %d not multiple of 4", len(x))
		}
		out := make([]float32, len(x)/4)
		for i := 0; i < len(out); i++ {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(x[i*4:]))
		}
		return out, nil
	case string:
		// treat as raw bytes
		return decodeEmbeddingFloat32([]byte(x))
	case []float32:
		return x, nil
	case []float64:
		out := make([]float32, len(x))
		for i, f := range x {
			out[i] = float32(f)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("vector_distance_cos: unsupported type %T", v)
	}
}

func coerceEmbeddingBlob(v vtab.Value) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		cp := make([]byte, len(x))
		copy(cp, x)
		return cp, nil
	case string:
		b := []byte(x)
		return b, nil
	default:
		return nil, fmt.Errorf("vec0: unsupported embedding type %T", v)
	}
}

func vtabValueToString(v vtab.Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
