package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/starford/cogninote/internal/apperr"
	"github.com/starford/cogninote/internal/checksum"
	"github.com/starford/cogninote/internal/knowledge"
	"github.com/starford/cogninote/internal/links"
	"github.com/starford/cogninote/internal/models"
	"github.com/starford/cogninote/internal/parser"
	"github.com/starford/cogninote/internal/repository"
)

// CaptureState is the lifecycle of one capture action.
type CaptureState string

// Capture states. Idle is implicit for keys never submitted.
const (
	CaptureIdle      CaptureState = "idle"
	CapturePending   CaptureState = "pending"
	CaptureCommitted CaptureState = "committed"
	CaptureFailed    CaptureState = "failed"
)

// maxTrackedCaptures bounds how many finished actions are remembered.
const maxTrackedCaptures = 256

// CaptureRequest is a structuring request.
type CaptureRequest struct {
	Input string
	Seed  bool
	// Related titles are sent ahead of the recent-note context.
	Related []string
}

// CaptureStatus is the observable state of a capture action.
type CaptureStatus struct {
	Key       string       `json:"key"`
	State     CaptureState `json:"state"`
	Input     string       `json:"input,omitempty"`
	Seed      bool         `json:"seed"`
	NoteID    string       `json:"note_id,omitempty"`
	Error     string       `json:"error,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// CaptureError reports a failed capture. Input is the preserved draft so
// the caller can offer a retry.
type CaptureError struct {
	Key   string
	Input string
	Err   error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Key, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// FileRequest builds the capture request for a parsed capture file. A seed
// file whose body is empty, or only repeats its title as a heading, asks to
// research the frontmatter title. Wikilinks become related context titles.
func FileRequest(c *parser.Capture) CaptureRequest {
	req := CaptureRequest{Input: c.Input, Seed: c.Seed, Related: c.Links}
	if c.Seed && c.Title != "" && (req.Input == "" || strings.TrimSpace(strings.TrimPrefix(req.Input, "# ")) == c.Title) {
		req.Input = links.SeedPrompt(c.Title)
	}
	return req
}

// CaptureKey identifies a capture action by its content.
func CaptureKey(input string, seed bool) string {
	flag := "capture"
	if seed {
		flag = "seed"
	}
	return checksum.Key(flag, strings.TrimSpace(input))
}

// CaptureTracker holds the per-action state machine
// Idle → Pending → (Committed | Failed). A Pending action blocks only its
// own resubmission; finished actions may be submitted again.
type CaptureTracker struct {
	mu      sync.Mutex
	now     func() time.Time
	actions map[string]*CaptureStatus
}

// NewCaptureTracker creates an empty tracker.
func NewCaptureTracker(now func() time.Time) *CaptureTracker {
	return &CaptureTracker{now: now, actions: make(map[string]*CaptureStatus)}
}

// Begin moves key to Pending. It fails with apperr.ErrConflict when the
// action is already Pending.
func (t *CaptureTracker) Begin(key, input string, seed bool) (CaptureStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st, ok := t.actions[key]; ok && st.State == CapturePending {
		return *st, fmt.Errorf("noteservice: capture %s already pending: %w", key, apperr.ErrConflict)
	}
	t.prune()
	st := &CaptureStatus{
		Key:       key,
		State:     CapturePending,
		Input:     input,
		Seed:      seed,
		UpdatedAt: t.now(),
	}
	t.actions[key] = st
	return *st, nil
}

// Commit moves a Pending key to Committed.
func (t *CaptureTracker) Commit(key, noteID string) CaptureStatus {
	return t.finish(key, func(st *CaptureStatus) {
		st.State = CaptureCommitted
		st.NoteID = noteID
		st.Error = ""
	})
}

// Fail moves a Pending key to Failed.
func (t *CaptureTracker) Fail(key string, err error) CaptureStatus {
	return t.finish(key, func(st *CaptureStatus) {
		st.State = CaptureFailed
		st.Error = err.Error()
	})
}

// Status returns the state of key; unknown keys are Idle.
func (t *CaptureTracker) Status(key string) CaptureStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.actions[key]; ok {
		return *st
	}
	return CaptureStatus{Key: key, State: CaptureIdle}
}

func (t *CaptureTracker) finish(key string, apply func(*CaptureStatus)) CaptureStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.actions[key]
	if !ok {
		st = &CaptureStatus{Key: key}
		t.actions[key] = st
	}
	apply(st)
	st.UpdatedAt = t.now()
	return *st
}

// prune drops the oldest finished actions once the tracker is full.
// Callers hold t.mu.
func (t *CaptureTracker) prune() {
	if len(t.actions) < maxTrackedCaptures {
		return
	}
	finished := make([]*CaptureStatus, 0, len(t.actions))
	for _, st := range t.actions {
		if st.State != CapturePending {
			finished = append(finished, st)
		}
	}
	slices.SortFunc(finished, func(a, b *CaptureStatus) int { return a.UpdatedAt.Compare(b.UpdatedAt) })
	for _, st := range finished[:len(finished)/2] {
		delete(t.actions, st.Key)
	}
}

// Capture structures req through the knowledge service and creates the
// note. On failure nothing is written and the returned error is a
// *CaptureError carrying the draft input.
func (s *Service) Capture(ctx context.Context, req CaptureRequest) (models.Note, error) {
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return models.Note{}, fmt.Errorf("noteservice: capture: empty input: %w", apperr.ErrInvalid)
	}

	key := CaptureKey(input, req.Seed)
	st, err := s.captures.Begin(key, input, req.Seed)
	if err != nil {
		return models.Note{}, err
	}
	s.notifier.Notify(EventCapturePending, st)

	titles := s.contextTitles(req.Related)
	structured, err := s.know.Structure(ctx, input, titles, req.Seed)
	if err != nil {
		if !errors.Is(err, apperr.ErrService) && !errors.Is(err, apperr.ErrMalformed) {
			err = fmt.Errorf("%w: %v", apperr.ErrService, err)
		}
		return models.Note{}, s.failCapture(key, input, err)
	}

	n, err := s.repo.Create(ctx, draftFrom(structured, input, req.Seed))
	if err != nil {
		return models.Note{}, s.failCapture(key, input, err)
	}

	st = s.captures.Commit(key, n.ID)
	s.notifier.Notify(EventCaptureCommitted, st)
	s.notifier.Notify(EventNoteCreated, noteRef(n))
	s.logger.Info("note captured",
		slog.String("id", n.ID),
		slog.String("title", n.Title),
		slog.Bool("seed", n.IsSeed),
	)
	return n, nil
}

// CaptureStatus returns the state of the capture action key.
func (s *Service) CaptureStatus(key string) CaptureStatus {
	return s.captures.Status(key)
}

func (s *Service) failCapture(key, input string, err error) error {
	st := s.captures.Fail(key, err)
	s.notifier.Notify(EventCaptureFailed, st)
	s.logger.Warn("capture failed",
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
	return &CaptureError{Key: key, Input: input, Err: err}
}

// contextTitles returns related titles first, then the most recent note
// titles, without duplicates and capped at ContextTitles.
func (s *Service) contextTitles(related []string) []string {
	limit := s.cfg.ContextTitles
	if limit <= 0 {
		return []string{}
	}
	out := make([]string, 0, limit)
	seen := make(map[string]struct{}, limit)
	add := func(t string) {
		t = strings.TrimSpace(t)
		k := strings.ToLower(t)
		if t == "" || len(out) >= limit {
			return
		}
		if _, dup := seen[k]; dup {
			return
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	for _, t := range related {
		add(t)
	}
	for _, t := range s.repo.Titles(limit) {
		add(t)
	}
	return out
}

func draftFrom(st *knowledge.Structured, input string, seed bool) repository.Draft {
	return repository.Draft{
		Title:       st.Title,
		RawInput:    input,
		Category:    st.Category,
		Tags:        st.Tags,
		Cornell:     st.Cornell,
		Validation:  st.Validation,
		Connections: st.Connections,
		IsSeed:      seed,
	}
}

// LinkResult is the outcome of following a connection title.
type LinkResult struct {
	Query             string       `json:"query"`
	Found             bool         `json:"found"`
	Note              *models.Note `json:"note,omitempty"`
	Created           bool         `json:"created"`
	NeedsConfirmation bool         `json:"needs_confirmation"`
	Prompt            string       `json:"prompt,omitempty"`
}

// ResolveLink follows a title. An unresolved title yields a confirmation
// prompt and no action unless createSeed is set, in which case a seed note
// is structured and created.
func (s *Service) ResolveLink(ctx context.Context, title string, createSeed bool) (LinkResult, error) {
	res := links.Resolve(s.repo.All(), title)
	out := LinkResult{Query: title, Found: res.Found}
	if res.Found {
		out.Note = &res.Note
		return out, nil
	}
	if strings.TrimSpace(title) == "" {
		return out, fmt.Errorf("noteservice: resolve link: empty title: %w", apperr.ErrInvalid)
	}
	if !createSeed {
		out.NeedsConfirmation = true
		out.Prompt = links.ConfirmPrompt(title)
		return out, nil
	}

	n, err := s.Capture(ctx, CaptureRequest{Input: links.SeedPrompt(title), Seed: true})
	if err != nil {
		return out, err
	}
	out.Note = &n
	out.Created = true
	return out, nil
}
