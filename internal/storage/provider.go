// Package storage persists the whole note collection as a single value
// under a fixed key.
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/starford/cogninote/internal/models"
)

// DefaultKey is the key the collection is stored under.
const DefaultKey = "cogninote_v4_data"

// Provider is the interface for durable collection storage.
//
// Save always receives the full collection and overwrites the previous
// value; there is no incremental persistence.
type Provider interface {
	// Load returns the stored collection, or an empty one when nothing was saved yet.
	Load(ctx context.Context) ([]models.Note, error)
	// Save replaces the stored collection with notes.
	Save(ctx context.Context, notes []models.Note) error
	// Close releases underlying resources.
	Close() error
}

func encode(notes []models.Note) ([]byte, error) {
	out := make([]models.Note, len(notes))
	for i, n := range notes {
		n.Normalize()
		out[i] = n
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("storage: encode: %w", err)
	}
	return data, nil
}

func decode(data []byte) ([]models.Note, error) {
	if len(data) == 0 {
		return []models.Note{}, nil
	}
	var notes []models.Note
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, fmt.Errorf("storage: decode: %w", err)
	}
	if notes == nil {
		notes = []models.Note{}
	}
	return notes, nil
}
