package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/notecommits/internal/commits"
	"github.com/starford/notecommits/internal/noteservice"
	"github.com/starford/notecommits/internal/spotlight"
	"github.com/starford/notecommits/internal/testutil"
	"github.com/starford/notecommits/internal/tracker"
)

type apiEnv struct {
	vault   string
	tracker *tracker.Tracker
	router  http.Handler
}

// testEnv sets up a temp vault, SQLite DB, services, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string, notes map[string]string) *apiEnv {
	t.Helper()
	return testEnvWithSSE(t, authToken, notes, nil)
}

func testEnvWithSSE(t *testing.T, authToken string, notes map[string]string, sseHandler http.Handler) *apiEnv {
	t.Helper()

	vault, store := testutil.TestVault(t)
	for p, content := range notes {
		testutil.WriteNote(t, vault, p, content)
	}
	db := testutil.TestDB(t)
	logger := testutil.Logger()

	svc := noteservice.NewService(store, db, logger)
	if _, err := svc.ObserveAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	tr := tracker.New(svc, db, nil, logger, commits.DefaultSettings())
	if err := tr.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	spot := spotlight.NewService(svc, db, rand.New(rand.NewPCG(7, 7)))

	router := NewRouter(tr, spot, authToken != "", authToken, sseHandler)
	return &apiEnv{vault: vault, tracker: tr, router: router}
}

func (e *apiEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestTrackListUntrack(t *testing.T) {
	env := testEnv(t, "", map[string]string{"Proj/a.md": "a"})

	w := env.do(t, http.MethodPost, "/projects", TrackProjectRequest{Path: "Proj/"})
	if w.Code != http.StatusCreated {
		t.Fatalf("track status = %d, body = %s", w.Code, w.Body.String())
	}
	var created ProjectResponse
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.Project != "Proj" {
		t.Errorf("project = %q", created.Project)
	}

	w = env.do(t, http.MethodGet, "/projects", nil)
	var list ProjectListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Projects) != 2 || list.Projects[0] != "/" || list.Projects[1] != "Proj" {
		t.Errorf("projects = %v", list.Projects)
	}

	w = env.do(t, http.MethodDelete, "/projects/Proj", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("untrack status = %d", w.Code)
	}
	w = env.do(t, http.MethodDelete, "/projects/Proj", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second untrack status = %d, want 404", w.Code)
	}
}

func TestTrackRejections(t *testing.T) {
	env := testEnv(t, "", map[string]string{"Proj/a.md": "a"})

	tests := []struct {
		path string
		want int
	}{
		{"/", http.StatusBadRequest},
		{"Empty", http.StatusBadRequest},
		{"", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := env.do(t, http.MethodPost, "/projects", TrackProjectRequest{Path: tt.path}); w.Code != tt.want {
			t.Errorf("track %q = %d, want %d", tt.path, w.Code, tt.want)
		}
	}

	_ = env.do(t, http.MethodPost, "/projects", TrackProjectRequest{Path: "Proj"})
	if w := env.do(t, http.MethodPost, "/projects", TrackProjectRequest{Path: "Proj"}); w.Code != http.StatusConflict {
		t.Errorf("duplicate track = %d, want 409", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/projects/%2F", nil); w.Code != http.StatusBadRequest {
		t.Errorf("untrack root = %d, want 400", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/projects", "{"); w.Code != http.StatusBadRequest {
		t.Errorf("bad JSON = %d, want 400", w.Code)
	}
}

func TestActivity(t *testing.T) {
	env := testEnv(t, "", map[string]string{"a.md": "a"})
	testutil.WriteNote(t, env.vault, "b.md", "b")
	if err := env.tracker.Reconcile(context.Background()); err != nil {
		t.Fatal(err)
	}

	w := env.do(t, http.MethodGet, "/activity", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("activity status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"Create":1`) || !strings.Contains(body, `"Created":[`) {
		t.Errorf("activity body = %s", body)
	}

	if w := env.do(t, http.MethodGet, "/activity?project=Nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("untracked activity = %d, want 404", w.Code)
	}
}

func TestRenderCommitBlocks(t *testing.T) {
	env := testEnv(t, "", map[string]string{"a.md": "a"})

	w := env.do(t, http.MethodPost, "/render/commit-weekly", "width=70")
	if w.Code != http.StatusOK {
		t.Fatalf("render status = %d, body = %s", w.Code, w.Body.String())
	}
	var res RenderResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.View == nil || len(res.View.Points) != 7 || res.View.Points[0].Label != "Mon" || res.View.Style.Width != 70 {
		t.Errorf("view = %+v", res.View)
	}

	w = env.do(t, http.MethodPost, "/render/commit-types", "project=Nope")
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.View.Message != `Project "Nope" is not tracked` {
		t.Errorf("message = %q", res.View.Message)
	}

	if w := env.do(t, http.MethodPost, "/render/commit-pie", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown kind = %d, want 404", w.Code)
	}
}

func TestRenderSpotlight(t *testing.T) {
	env := testEnv(t, "", map[string]string{
		"quotes.md":  "Opening line ^first\n",
		"current.md": "#quote here",
	})

	req := httptest.NewRequest(http.MethodPost, "/render/spotlight-block", strings.NewReader(""))
	req.Header.Set("X-Source-Path", "current.md")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res RenderResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Spotlight == nil || res.Spotlight.Path != "quotes.md" || res.Spotlight.BlockID != "first" {
		t.Errorf("spotlight = %+v", res.Spotlight)
	}

	w = env.do(t, http.MethodPost, "/render/spotlight-note", "tags=missing")
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Spotlight.Message != spotlight.NoMatch {
		t.Errorf("spotlight = %+v", res.Spotlight)
	}
}

func TestSettings(t *testing.T) {
	env := testEnv(t, "", nil)

	w := env.do(t, http.MethodPatch, "/settings", map[string]any{
		"commits":   map[string]any{"commitThreshold": 500},
		"spotlight": map[string]any{"divHeight": 250},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body = %s", w.Code, w.Body.String())
	}
	var got SettingsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Commits.CommitThreshold != 500 || got.Commits.CommitPerc != 15 {
		t.Errorf("commits = %+v", got.Commits)
	}
	if got.Spotlight.DivHeight != 250 || got.Spotlight.DivWidth != 50 {
		t.Errorf("spotlight = %+v", got.Spotlight)
	}

	w = env.do(t, http.MethodPatch, "/settings", map[string]any{
		"commits": map[string]any{"divAlign": "diagonal"},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid patch = %d, want 400", w.Code)
	}
	if env.tracker.Settings().DivAlign != "left" {
		t.Error("rejected patch must not change settings")
	}
}

func TestSettings_RejectedHalfSavesNothing(t *testing.T) {
	env := testEnv(t, "", nil)
	before := env.tracker.Settings()

	w := env.do(t, http.MethodPatch, "/settings", map[string]any{
		"commits":   map[string]any{"commitThreshold": 10},
		"spotlight": map[string]any{"divWidth": 0},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if got := env.tracker.Settings().CommitThreshold; got != before.CommitThreshold {
		t.Errorf("commitThreshold = %d, want %d", got, before.CommitThreshold)
	}

	w = env.do(t, http.MethodGet, "/settings", nil)
	var got SettingsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Spotlight.DivWidth != 50 {
		t.Errorf("spotlight = %+v", got.Spotlight)
	}
}

func TestIgnoreLists(t *testing.T) {
	env := testEnv(t, "", nil)

	if w := env.do(t, http.MethodPost, "/ignore", IgnoreRequest{Path: "daily/today.md"}); w.Code != http.StatusNoContent {
		t.Fatalf("ignore status = %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/ignore", IgnoreRequest{Path: "daily/today.md"}); w.Code != http.StatusConflict {
		t.Errorf("duplicate ignore = %d, want 409", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/ignore", IgnoreRequest{Path: "x.md", Feature: "spotlight"}); w.Code != http.StatusNoContent {
		t.Errorf("spotlight ignore = %d", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/ignore", IgnoreRequest{Path: "/"}); w.Code != http.StatusBadRequest {
		t.Errorf("root ignore = %d, want 400", w.Code)
	}
	if w := env.do(t, http.MethodPost, "/ignore", IgnoreRequest{Path: "x.md", Feature: "graph"}); w.Code != http.StatusBadRequest {
		t.Errorf("unknown feature = %d, want 400", w.Code)
	}

	w := env.do(t, http.MethodGet, "/ignore", nil)
	var list IgnoreListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Commits) != 1 || len(list.Spotlight) != 1 {
		t.Errorf("lists = %+v", list)
	}

	if w := env.do(t, http.MethodDelete, "/ignore/daily/today.md", nil); w.Code != http.StatusNoContent {
		t.Errorf("unignore = %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/ignore/x.md?feature=spotlight", nil); w.Code != http.StatusNoContent {
		t.Errorf("spotlight unignore = %d", w.Code)
	}
	if w := env.do(t, http.MethodDelete, "/ignore/x.md", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing unignore = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	env := testEnv(t, "secret123", nil)

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	env := testEnv(t, "secret123", nil)

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	env := testEnv(t, "secret123", nil)

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	env := testEnv(t, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE is a minimal SSE handler stub that writes headers and blocks
// until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	env := testEnvWithSSE(t, "secret", nil, blockingSSE)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	env := testEnvWithSSE(t, "", nil, blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	env := testEnvWithSSE(t, "tok", nil, blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}

func TestBodyTooLarge(t *testing.T) {
	env := testEnv(t, "", nil)
	body := `{"path":"` + strings.Repeat("a", maxBody+10) + `"}`
	if w := env.do(t, http.MethodPost, "/ignore", body); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body = %d, want 413", w.Code)
	}
}

func TestSSEEvents_QueryToken(t *testing.T) {
	env := testEnvWithSSE(t, "tok", nil, blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events?access_token=tok", nil).WithContext(ctx)
	req.Header.Set("Accept", "text/event-stream")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("event stream with query token should not 401")
	}

	// Plain API calls must use the header.
	req = httptest.NewRequest(http.MethodGet, "/projects?access_token=tok", nil)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("query token on API call = %d, want 401", w.Code)
	}
}
