package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/cogninote/internal/knowledge"
	"github.com/starford/cogninote/internal/models"
	"github.com/starford/cogninote/internal/noteservice"
	"github.com/starford/cogninote/internal/testutil"
)

type env struct {
	svc    *noteservice.Service
	know   *testutil.Knowledge
	router http.Handler
}

// testEnv builds a service over a memory store. A non-empty token enables auth.
func testEnv(t *testing.T, token string) *env {
	t.Helper()
	repo, _ := testutil.Repo(t)
	know := &testutil.Knowledge{}
	cfg := noteservice.DefaultConfig()
	cfg.Debounce = 10 * time.Millisecond
	svc := noteservice.NewService(repo, know, cfg, nil, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	t.Cleanup(svc.Close)
	return &env{svc: svc, know: know, router: NewRouter(svc, token != "", token, nil)}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *env) capture(t *testing.T, input string) models.Note {
	t.Helper()
	w := e.do(t, http.MethodPost, "/notes", CaptureRequest{Input: input})
	if w.Code != http.StatusCreated {
		t.Fatalf("capture status = %d, body = %s", w.Code, w.Body.String())
	}
	var n models.Note
	if err := json.Unmarshal(w.Body.Bytes(), &n); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestCaptureAndGetNote(t *testing.T) {
	e := testEnv(t, "")
	n := e.capture(t, "Neural Plasticity")
	if n.ID == "" || n.MasteryScore != 20 {
		t.Fatalf("note = %+v", n)
	}

	w := e.do(t, http.MethodGet, "/notes/"+n.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var got map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got["title"] != "Neural Plasticity" {
		t.Errorf("title = %v", got["title"])
	}
	if _, ok := got["createdAt"].(float64); !ok {
		t.Errorf("createdAt is not epoch millis: %T", got["createdAt"])
	}
}

func TestCaptureValidation(t *testing.T) {
	e := testEnv(t, "")
	if w := e.do(t, http.MethodPost, "/notes", CaptureRequest{Input: ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty input = %d, want 400", w.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("{"))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}
}

func TestCaptureServiceFailure(t *testing.T) {
	e := testEnv(t, "")
	e.know.FailStructure()

	w := e.do(t, http.MethodPost, "/notes", CaptureRequest{Input: "draft text"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	var body errResponse
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Input != "draft text" || body.Key == "" {
		t.Errorf("body = %+v, want preserved draft", body)
	}

	w = e.do(t, http.MethodGet, "/captures/"+body.Key, nil)
	var st noteservice.CaptureStatus
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st.State != noteservice.CaptureFailed {
		t.Errorf("capture state = %q", st.State)
	}

	w = e.do(t, http.MethodGet, "/notes", nil)
	var list NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 0 {
		t.Errorf("notes after failure = %d", list.Total)
	}
}

func TestListNotesFilters(t *testing.T) {
	e := testEnv(t, "")
	e.capture(t, "Neural Plasticity")
	e.capture(t, "Cooking Basics")

	w := e.do(t, http.MethodGet, "/notes?q=NEURAL", nil)
	var list NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 1 || list.Notes[0].Title != "Neural Plasticity" {
		t.Errorf("list = %+v", list)
	}

	w = e.do(t, http.MethodGet, "/notes", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 2 || list.Notes[0].Title != "Cooking Basics" {
		t.Errorf("newest first violated: %+v", list.Notes)
	}

	if w := e.do(t, http.MethodGet, "/notes?category=Hobby", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad category = %d, want 400", w.Code)
	}
	w = e.do(t, http.MethodGet, "/notes?category=work", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if list.Total != 0 {
		t.Errorf("work notes = %d", list.Total)
	}
}

func TestPatchAndDelete(t *testing.T) {
	e := testEnv(t, "")
	n := e.capture(t, "Entropy")

	w := e.do(t, http.MethodPatch, "/notes/"+n.ID, map[string]any{"title": "Thermodynamic Entropy", "category": "reference"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d %s", w.Code, w.Body.String())
	}
	var got models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Title != "Thermodynamic Entropy" || got.Category != models.CategoryReference || got.RawInput != "Entropy" {
		t.Errorf("patched = %+v", got)
	}

	if w := e.do(t, http.MethodPatch, "/notes/"+n.ID, map[string]any{"category": "Hobby"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad category patch = %d", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/notes/"+n.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/notes/"+n.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/notes/"+n.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d, want 404", w.Code)
	}
}

func TestReview(t *testing.T) {
	e := testEnv(t, "")
	n := e.capture(t, "Entropy")

	w := e.do(t, http.MethodPost, "/notes/"+n.ID+"/review", ReviewRequest{Outcome: "mastered"})
	var got models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if w.Code != http.StatusOK || got.MasteryScore != 30 {
		t.Fatalf("mastered = %d %d", w.Code, got.MasteryScore)
	}

	delta := -1000
	w = e.do(t, http.MethodPost, "/notes/"+n.ID+"/review", ReviewRequest{Delta: &delta})
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.MasteryScore != 0 {
		t.Errorf("after -1000 = %d", got.MasteryScore)
	}

	for _, body := range []ReviewRequest{{}, {Outcome: "bored"}, {Delta: &delta, Outcome: "mastered"}} {
		if w := e.do(t, http.MethodPost, "/notes/"+n.ID+"/review", body); w.Code != http.StatusBadRequest {
			t.Errorf("review %+v = %d, want 400", body, w.Code)
		}
	}
}

func TestAskAndConversation(t *testing.T) {
	e := testEnv(t, "")
	n := e.capture(t, "Entropy")
	e.know.Reply = "It measures disorder."

	w := e.do(t, http.MethodPost, "/notes/"+n.ID+"/ask", AskRequest{Prompt: "What is it?"})
	if w.Code != http.StatusOK {
		t.Fatalf("ask = %d %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/notes/"+n.ID+"/conversation", nil)
	var conv ConversationResponse
	_ = json.Unmarshal(w.Body.Bytes(), &conv)
	if len(conv.Messages) != 2 || conv.Messages[1].Text != "It measures disorder." {
		t.Errorf("conversation = %+v", conv)
	}

	if w := e.do(t, http.MethodPost, "/notes/missing/ask", AskRequest{Prompt: "?"}); w.Code != http.StatusNotFound {
		t.Errorf("ask missing = %d", w.Code)
	}
}

func TestShareAndExport(t *testing.T) {
	e := testEnv(t, "")
	n := e.capture(t, "Entropy")

	w := e.do(t, http.MethodGet, "/notes/"+n.ID+"/share", nil)
	if !strings.HasPrefix(w.Body.String(), "CogniNote: Entropy\n") {
		t.Errorf("share = %q", w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/notes/"+n.ID+"/export", nil)
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "Entropy.md") {
		t.Errorf("disposition = %q", cd)
	}
}

func TestResolveLink(t *testing.T) {
	e := testEnv(t, "")
	e.capture(t, "Neural Plasticity")

	w := e.do(t, http.MethodPost, "/links/resolve", ResolveLinkRequest{Title: "plasticity"})
	var res noteservice.LinkResult
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if w.Code != http.StatusOK || !res.Found {
		t.Errorf("resolve = %d %+v", w.Code, res)
	}

	w = e.do(t, http.MethodPost, "/links/resolve", ResolveLinkRequest{Title: "Entropy"})
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if w.Code != http.StatusOK || res.Found || !res.NeedsConfirmation {
		t.Errorf("unresolved = %d %+v", w.Code, res)
	}

	w = e.do(t, http.MethodPost, "/links/resolve", ResolveLinkRequest{Title: "Entropy", CreateSeed: true})
	res = noteservice.LinkResult{}
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if w.Code != http.StatusCreated || res.Note == nil || !res.Note.IsSeed || res.Note.MasteryScore != 0 {
		t.Errorf("seed = %d %+v", w.Code, res)
	}
}

func TestGraphAndStats(t *testing.T) {
	e := testEnv(t, "")
	e.know.StructureFn = func(_ context.Context, input string, _ []string, _ bool) (*knowledge.Structured, error) {
		return testutil.Structured(input, "Other"), nil
	}
	e.capture(t, "A")
	e.capture(t, "B")

	w := e.do(t, http.MethodGet, "/graph", nil)
	var g GraphResponse
	_ = json.Unmarshal(w.Body.Bytes(), &g)
	if len(g.Nodes) != 2 || g.TotalConnections != 2 || g.Nodes[0].ConnectionCount != 1 {
		t.Errorf("graph = %+v", g)
	}

	w = e.do(t, http.MethodGet, "/stats", nil)
	var st noteservice.Stats
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st.Notes != 2 || st.Vitality != 20 || st.TotalConnections != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestKeywords(t *testing.T) {
	e := testEnv(t, "")
	e.know.Keywords = map[string][]string{"neural": {"synapse"}}

	w := e.do(t, http.MethodGet, "/keywords?q=neural", nil)
	var kw KeywordsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &kw)
	if w.Code != http.StatusOK || len(kw.Keywords) != 1 {
		t.Errorf("keywords = %d %+v", w.Code, kw)
	}

	w = e.do(t, http.MethodGet, "/keywords?q=zz", nil)
	if !strings.Contains(w.Body.String(), `"keywords":[]`) {
		t.Errorf("short query body = %s", w.Body.String())
	}

	w = e.do(t, http.MethodPost, "/keywords/expand", ExpandRequest{Session: "tab", Query: "neural"})
	var ack ExpandResponse
	_ = json.Unmarshal(w.Body.Bytes(), &ack)
	if w.Code != http.StatusAccepted || ack.Seq != 1 {
		t.Errorf("expand = %d %+v", w.Code, ack)
	}
	if w := e.do(t, http.MethodPost, "/keywords/expand", ExpandRequest{Query: "x"}); w.Code != http.StatusBadRequest {
		t.Errorf("expand without session = %d", w.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		w = e.do(t, http.MethodGet, "/keywords/expand/tab", nil)
		if w.Code == http.StatusOK && strings.Contains(w.Body.String(), `"synapse"`) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("latest expansion = %d %s", w.Code, w.Body.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if w := e.do(t, http.MethodGet, "/keywords/expand/unknown", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown session = %d", w.Code)
	}
}

func TestUploadCapture(t *testing.T) {
	e := testEnv(t, "")

	upload := func(name, content string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", name)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(content))
		mw.Close()
		req := httptest.NewRequest(http.MethodPost, "/captures/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		e.router.ServeHTTP(w, req)
		return w
	}

	w := upload("entropy.md", "---\nseed: true\n---\nI want to learn about: Entropy\n")
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d %s", w.Code, w.Body.String())
	}
	var n models.Note
	_ = json.Unmarshal(w.Body.Bytes(), &n)
	if !n.IsSeed || n.MasteryScore != 0 {
		t.Errorf("uploaded = %+v", n)
	}

	w = upload("thermo.md", "---\nseed: true\ntitle: Thermodynamics\n---\n")
	if w.Code != http.StatusCreated {
		t.Fatalf("title-only seed upload = %d %s", w.Code, w.Body.String())
	}
	calls := e.know.StructureCalls()
	if last := calls[len(calls)-1]; last.Input != "I want to learn about: Thermodynamics" || !last.Seed {
		t.Errorf("structure call = %+v", last)
	}

	if w := upload("image.png", "x"); w.Code != http.StatusBadRequest {
		t.Errorf("png upload = %d, want 400", w.Code)
	}
}

func TestAuth(t *testing.T) {
	e := testEnv(t, "secret")

	if w := e.do(t, http.MethodGet, "/notes", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}
