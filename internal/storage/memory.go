package storage

import (
	"context"
	"sync"

	"github.com/starford/cogninote/internal/models"
)

// Memory implements Provider in process memory. It keeps the encoded form
// so callers observe the same round trip as the durable backends.
type Memory struct {
	mu       sync.Mutex
	data     []byte
	saves    int
	failSave error
}

// NewMemory creates an empty in-memory provider.
func NewMemory() *Memory {
	return &Memory{}
}

// FailSaves makes every later Save return err without storing; nil
// restores normal saves. It exists so tests can exercise persistence
// failures and has no production caller.
func (m *Memory) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSave = err
}

// Load decodes the last saved collection.
func (m *Memory) Load(_ context.Context) ([]models.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return decode(m.data)
}

// Save stores the encoded collection.
func (m *Memory) Save(_ context.Context, notes []models.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	data, err := encode(notes)
	if err != nil {
		return err
	}
	m.data = data
	m.saves++
	return nil
}

// Saves returns how many successful saves happened.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
