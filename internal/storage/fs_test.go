package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/cogninote/internal/models"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir, DefaultKey)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func sampleNotes() []models.Note {
	now := models.At(time.UnixMilli(1700000000000))
	return []models.Note{
		{
			ID:           "b",
			Title:        "Neural Plasticity",
			RawInput:     "raw b",
			Category:     models.CategoryStudy,
			Tags:         []string{"brain"},
			Cornell:      models.Cornell{Notes: "n", Cues: []string{"why?"}, Summary: "s"},
			Connections:  []models.Connection{{ID: "c1", Title: "Memory", Relation: "supports"}},
			MasteryScore: 20,
			CreatedAt:    now,
			UpdatedAt:    now,
			LastReviewed: now,
		},
		{ID: "a", Title: "Cooking Basics", Category: models.CategoryPersonal, IsSeed: true},
	}
}

func TestLoadEmpty(t *testing.T) {
	s := tempStore(t)
	notes, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if notes == nil || len(notes) != 0 {
		t.Errorf("notes = %#v, want empty non-nil", notes)
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	if err := s.Save(ctx, sampleNotes()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("order = %s,%s", got[0].ID, got[1].ID)
	}
	if got[0].Connections[0].Title != "Memory" {
		t.Errorf("connections = %+v", got[0].Connections)
	}
	if got[0].CreatedAt.UnixMilli() != 1700000000000 {
		t.Errorf("createdAt = %v", got[0].CreatedAt)
	}
	// Nil slices are stored as empty arrays.
	if got[1].Tags == nil {
		t.Error("tags should decode as empty slice")
	}
}

func TestSaveOverwritesWholeCollection(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, sampleNotes())
	if err := s.Save(ctx, sampleNotes()[:1]); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ := s.Load(ctx)
	if len(got) != 1 {
		t.Errorf("len = %d, want 1", len(got))
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.root, ".cogninote-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestLoadCorrupt(t *testing.T) {
	s := tempStore(t)
	if err := os.WriteFile(s.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Load(context.Background()); err == nil {
		t.Error("expected decode error")
	}
}

func TestInvalidKey(t *testing.T) {
	dir := t.TempDir()
	for _, key := range []string{"", "../escape", "a/b"} {
		if _, err := NewFS(dir, key); err == nil {
			t.Errorf("expected error for key %q", key)
		}
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/cogninote-does-not-exist-"+t.Name(), DefaultKey)
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "cogninote-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name(), DefaultKey)
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("redis", t.TempDir(), DefaultKey); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestMemoryFailKeepsPrevious(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Save(ctx, sampleNotes())
	m.FailSaves(os.ErrPermission)
	if err := m.Save(ctx, nil); err == nil {
		t.Fatal("expected failure")
	}
	got, _ := m.Load(ctx)
	if len(got) != 2 {
		t.Errorf("len = %d, want previous 2", len(got))
	}
	if m.Saves() != 1 {
		t.Errorf("saves = %d, want 1", m.Saves())
	}

	m.FailSaves(nil)
	if err := m.Save(ctx, nil); err != nil {
		t.Fatalf("save after recovery: %v", err)
	}
}
