package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store, standing in for the external artifact
// store this module treats as an interface-only dependency. It lets the
// orchestrator run standalone in development without a real backend.
type MemStore struct {
	mu    sync.RWMutex
	rows  map[string]*memRow
	blobs map[string][]byte
}

type memRow struct {
	ownerRef, sourceRef string
	createdAt           time.Time
	fields              map[string]any
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		rows:  make(map[string]*memRow),
		blobs: make(map[string][]byte),
	}
}

func (m *MemStore) CreateJobRow(ctx context.Context, ownerRef, sourceRef string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := "hist_" + uuid.New().String()[:12]
	m.rows[id] = &memRow{
		ownerRef:  ownerRef,
		sourceRef: sourceRef,
		createdAt: time.Now(),
		fields:    make(map[string]any),
	}
	return id, nil
}

func (m *MemStore) WriteField(ctx context.Context, historyID, key string, document any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[historyID]
	if !ok {
		return fmt.Errorf("memstore: unknown history id %q", historyID)
	}
	row.fields[key] = document
	return nil
}

func (m *MemStore) ReadStructured(ctx context.Context, historyID string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[historyID]
	if !ok {
		return nil, fmt.Errorf("memstore: unknown history id %q", historyID)
	}
	merged := make(map[string]any, len(row.fields))
	for k, v := range row.fields {
		merged[k] = v
	}
	return merged, nil
}

func (m *MemStore) ListByOwner(ctx context.Context, ownerRef string) ([]HistoryRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []HistoryRow
	for id, row := range m.rows {
		if row.ownerRef != ownerRef {
			continue
		}
		data := make(map[string]any, len(row.fields))
		for k, v := range row.fields {
			data[k] = v
		}
		out = append(out, HistoryRow{
			HistoryID: id,
			CreatedAt: row.createdAt.Unix(),
			Data:      data,
		})
	}
	return out, nil
}

func (m *MemStore) FetchBlob(ctx context.Context, handle string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[handle]
	if !ok {
		return nil, fmt.Errorf("memstore: unknown blob handle %q", handle)
	}
	return data, nil
}

func (m *MemStore) DeleteBlob(ctx context.Context, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, handle)
	return nil
}

func (m *MemStore) UploadBlob(ctx context.Context, name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	handle := name + "-" + uuid.New().String()[:8]
	m.blobs[handle] = data
	return "mem://" + handle, nil
}
