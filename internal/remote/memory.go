package remote

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Client used by tests and as the default
// backend until a hosted store is wired. The clock is injectable so
// tests control the server-assigned timestamps.
type Memory struct {
	mu    sync.RWMutex
	docs  map[string]Doc
	clock func() int64
	fail  error
}

// NewMemory creates an empty in-memory document store.
func NewMemory() *Memory {
	return &Memory{
		docs:  make(map[string]Doc),
		clock: func() int64 { return time.Now().UnixMilli() },
	}
}

// SetClock overrides the server clock.
func (m *Memory) SetClock(fn func() int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = fn
}

// SetErr makes every subsequent operation fail with err until called
// again with nil. Simulates network loss.
func (m *Memory) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Len returns the number of stored documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *Memory) Set(ctx context.Context, docPath string, doc Doc) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}

	now := m.clock()
	existing, ok := m.docs[docPath]
	if !ok {
		existing = make(Doc, len(doc)+1)
		m.docs[docPath] = existing
	}
	for k, v := range doc {
		existing[k] = v
	}
	existing["updated_at"] = now
	return now, nil
}

func (m *Memory) Get(ctx context.Context, docPath string) (Doc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fail != nil {
		return nil, m.fail
	}

	doc, ok := m.docs[docPath]
	if !ok {
		return nil, ErrDocNotFound
	}
	return copyDoc(doc), nil
}

func (m *Memory) Delete(ctx context.Context, docPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}

	// Absent doc is a no-op success.
	delete(m.docs, docPath)
	return nil
}

func (m *Memory) List(ctx context.Context, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fail != nil {
		return nil, m.fail
	}

	prefix := collection + "/"
	var docs []Document
	for p, d := range m.docs {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		if strings.Contains(p[len(prefix):], "/") {
			continue // doc in a nested collection
		}
		docs = append(docs, Document{Path: p, Data: copyDoc(d)})
	}
	return docs, nil
}

func (m *Memory) QueryCollectionGroup(ctx context.Context, name, field string, value any) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fail != nil {
		return nil, m.fail
	}

	var docs []Document
	for p, d := range m.docs {
		segs := strings.Split(p, "/")
		if len(segs) < 2 || segs[len(segs)-2] != name {
			continue
		}
		if d[field] != value {
			continue
		}
		docs = append(docs, Document{Path: p, Data: copyDoc(d)})
	}
	return docs, nil
}

func copyDoc(d Doc) Doc {
	out := make(Doc, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
