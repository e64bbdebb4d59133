package search

import (
	"testing"

	"github.com/starford/cogninote/internal/models"
)

func fixture() []models.Note {
	return []models.Note{
		{ID: "1", Title: "Neural Plasticity", Category: models.CategoryStudy},
		{ID: "2", Title: "Cooking Basics", Category: models.CategoryPersonal, Tags: []string{"kitchen"}},
		{ID: "3", Title: "Sprint Review", Category: models.CategoryWork, Tags: []string{"NeuralNets"}},
		{ID: "4", Title: "Sleep", Category: models.CategoryStudy, Cornell: models.Cornell{Summary: "Sleep consolidates neural pathways."}},
	}
}

func ids(notes []models.Note) string {
	s := ""
	for _, n := range notes {
		s += n.ID
	}
	return s
}

func TestFilterEmptyQueryReturnsAll(t *testing.T) {
	got := Filter(fixture(), "", nil)
	if ids(got) != "1234" {
		t.Errorf("ids = %q, want 1234", ids(got))
	}
}

func TestFilterMatchesTitleTagsSummary(t *testing.T) {
	got := Filter(fixture(), "neural", nil)
	if ids(got) != "134" {
		t.Errorf("ids = %q, want 134", ids(got))
	}
	for _, n := range got {
		if n.Title == "Cooking Basics" {
			t.Error("Cooking Basics must not match")
		}
	}
}

func TestFilterCaseInsensitive(t *testing.T) {
	if got := Filter(fixture(), "KITCHEN", nil); ids(got) != "2" {
		t.Errorf("ids = %q, want 2", ids(got))
	}
}

func TestFilterCategory(t *testing.T) {
	study := models.CategoryStudy
	if got := Filter(fixture(), "", &study); ids(got) != "14" {
		t.Errorf("ids = %q, want 14", ids(got))
	}
	if got := Filter(fixture(), "neural", &study); ids(got) != "14" {
		t.Errorf("intersection ids = %q, want 14", ids(got))
	}
	ideas := models.CategoryIdeas
	if got := Filter(fixture(), "", &ideas); len(got) != 0 {
		t.Errorf("ideas = %d notes, want 0", len(got))
	}
}

func TestFilterDoesNotMutateInput(t *testing.T) {
	in := fixture()
	_ = Filter(in, "sleep", nil)
	if ids(in) != "1234" {
		t.Errorf("input reordered: %q", ids(in))
	}
}
