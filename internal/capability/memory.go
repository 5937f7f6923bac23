package capability

import (
	"context"
	"sync"
)

// MemoryStore keeps verification records in process memory. It is the
// fallback when Redis is not configured; grants do not survive a restart,
// which for a single-owner site just means verifying again.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func recordKey(clientKey, capability string) string {
	return clientKey + "/" + capability
}

func (m *MemoryStore) Get(_ context.Context, clientKey, capability string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[recordKey(clientKey, capability)]
	return record, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, clientKey, capability string, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[recordKey(clientKey, capability)] = record
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, clientKey, capability string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, recordKey(clientKey, capability))
	return nil
}
