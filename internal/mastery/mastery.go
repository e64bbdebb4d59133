// Package mastery tracks the bounded 0..100 proficiency score of notes.
package mastery

import (
	"fmt"
	"math"
	"time"

	"github.com/starford/cogninote/internal/apperr"
	"github.com/starford/cogninote/internal/models"
)

// Score bounds and canonical values.
const (
	Min = 0
	Max = 100

	InitialSeed    = 0
	InitialCapture = 20
)

// Outcome is a self-assessment recorded at the end of a review session.
type Outcome string

// Review outcomes.
const (
	Struggled Outcome = "struggled"
	Mastered  Outcome = "mastered"
)

// Delta returns the score change for o.
func (o Outcome) Delta() (int, error) {
	switch o {
	case Struggled:
		return -5, nil
	case Mastered:
		return 10, nil
	default:
		return 0, fmt.Errorf("outcome %q: %w", o, apperr.ErrInvalid)
	}
}

// Initial returns the starting score for a new note.
func Initial(isSeed bool) int {
	if isSeed {
		return InitialSeed
	}
	return InitialCapture
}

// Clamp bounds score to [Min, Max].
func Clamp(score int) int {
	return min(max(score, Min), Max)
}

// Adjust applies delta to the note's score and stamps lastReviewed.
func Adjust(n models.Note, delta int, now time.Time) models.Note {
	n.MasteryScore = Clamp(addSaturating(n.MasteryScore, delta))
	n.LastReviewed = models.At(now)
	return n
}

// Vitality is the rounded mean mastery over all notes, 0 when empty.
func Vitality(notes []models.Note) int {
	if len(notes) == 0 {
		return 0
	}
	var sum float64
	for _, n := range notes {
		sum += float64(Clamp(n.MasteryScore))
	}
	return int(math.Round(sum / float64(len(notes))))
}

func addSaturating(a, b int) int {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return math.MaxInt
	case b < 0 && a < math.MinInt-b:
		return math.MinInt
	}
	return a + b
}
