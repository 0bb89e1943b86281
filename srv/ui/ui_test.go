package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/opd-ai/storybook/history"
	storybook "github.com/opd-ai/storybook/src"
	"github.com/opd-ai/storybook/srv/generator"
)

type fakeImages struct {
	image []byte
}

func (f *fakeImages) StartGeneration(ctx context.Context, req storybook.GenerationRequest) (string, error) {
	if err := storybook.ValidateGenerationRequest(req); err != nil {
		return "", err
	}
	return uuid.New().String(), nil
}

func (f *fakeImages) PollGeneration(ctx context.Context, id string) (*storybook.Generation, error) {
	return &storybook.Generation{ID: id, Status: "COMPLETE", State: storybook.JobComplete, ImageURLs: []string{"https://cdn.example.com/" + id}}, nil
}

func (f *fakeImages) DownloadImage(ctx context.Context, url string) ([]byte, error) {
	return f.image, nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < 16; i++ {
		img.Set(i%4, i/4, color.RGBA{R: 200, G: uint8(i * 10), B: 90, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newTestUI(t *testing.T, limit int) *GeneratorUI {
	t.Helper()
	cat, err := storybook.LoadCatalog(filepath.Join("..", "..", "config", "storybook.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	poller := &storybook.Poller{
		Interval: time.Millisecond,
		Timeout:  time.Minute,
		Sleep:    func(ctx context.Context, d time.Duration) error { return ctx.Err() },
	}
	gen := storybook.NewGenerator(cat, &fakeImages{image: testPNG(t)}, poller, t.TempDir())
	gen.KeepImages = false
	gen.History = history.NewMemoryStore(10)
	return NewGeneratorUI(Options{Generator: gen, History: gen.History, GenerateLimit: limit})
}

func postGenerate(ui http.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	ui.ServeHTTP(rec, req)
	return rec
}

func get(ui http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ui.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Invalid JSON %q: %v", rec.Body.String(), err)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	ui := newTestUI(t, 10)

	rec := get(ui, "/api/templates")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var templates struct {
		Templates []templateView `json:"templates"`
	}
	decode(t, rec, &templates)
	if len(templates.Templates) != 2 || templates.Templates[0].Key != "dragons_20" || templates.Templates[0].Pages != 20 {
		t.Errorf("Unexpected templates %+v", templates.Templates)
	}

	var models struct {
		Models []modelView `json:"models"`
	}
	decode(t, get(ui, "/api/models"), &models)
	if len(models.Models) != 2 || models.Models[0].Key != "boy_model" || models.Models[0].ModelID == "" {
		t.Errorf("Unexpected models %+v", models.Models)
	}

	if rec := get(ui, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("Expected healthz 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("Expected nosniff header, got %q", got)
	}
	if rec := get(ui, "/"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "generate-form") {
		t.Errorf("Expected index page, got %d", rec.Code)
	}
}

func TestGenerateEndpoint(t *testing.T) {
	ui := newTestUI(t, 10)
	sessionID := uuid.New().String()

	rec := postGenerate(ui, url.Values{
		"story":      {"dragons_20"},
		"model":      {"boy_model"},
		"child_name": {"Alex"},
		"session_id": {sessionID},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res generateResponse
	decode(t, rec, &res)
	if !res.OK || res.Pages != 20 || res.SessionID != sessionID {
		t.Errorf("Unexpected response %+v", res)
	}
	if res.Download != "/download/Alex_dragons_20.pdf" {
		t.Errorf("Unexpected download link %q", res.Download)
	}

	dl := get(ui, res.Download)
	if dl.Code != http.StatusOK || !bytes.HasPrefix(dl.Body.Bytes(), []byte("%PDF")) {
		t.Errorf("Expected PDF download, got %d", dl.Code)
	}

	var snap generator.Snapshot
	decode(t, get(ui, "/api/progress/"+sessionID), &snap)
	if snap.State != string(generator.StateCompleted) || snap.Percent != 100 || snap.Total != 20 {
		t.Errorf("Unexpected progress %+v", snap)
	}

	var stories struct {
		Stories []storyView `json:"stories"`
	}
	decode(t, get(ui, "/api/stories"), &stories)
	if len(stories.Stories) != 1 || stories.Stories[0].Title != "Alex and the Dragon Valley" {
		t.Errorf("Unexpected stories %+v", stories.Stories)
	}
	if stories.Stories[0].Download != res.Download {
		t.Errorf("Expected story download %s, got %s", res.Download, stories.Stories[0].Download)
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		form    url.Values
		status  int
		message string
	}{
		{"missing fields", url.Values{"story": {"dragons_20"}}, http.StatusBadRequest, "child_name"},
		{"no model", url.Values{"story": {"dragons_20"}, "child_name": {"Alex"}}, http.StatusBadRequest, "no model selected"},
		{"empty model id", url.Values{"story": {"dragons_20"}, "child_name": {"Mia"}, "model": {"girl_model"}}, http.StatusBadRequest, "girl_model"},
		{"unknown story", url.Values{"story": {"pirates"}, "child_name": {"Alex"}, "model": {"boy_model"}}, http.StatusBadRequest, "pirates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ui := newTestUI(t, 10)
			rec := postGenerate(ui, tt.form)
			if rec.Code != tt.status {
				t.Fatalf("Expected %d, got %d", tt.status, rec.Code)
			}
			var body map[string]string
			decode(t, rec, &body)
			if !strings.Contains(body["error"], tt.message) {
				t.Errorf("Expected %q in %q", tt.message, body["error"])
			}
		})
	}
}

func TestGenerateFailureUpdatesSession(t *testing.T) {
	ui := newTestUI(t, 10)
	sessionID := uuid.New().String()
	postGenerate(ui, url.Values{"story": {"dragons_20"}, "child_name": {"Alex"}, "session_id": {sessionID}})

	var snap generator.Snapshot
	decode(t, get(ui, "/api/progress/"+sessionID), &snap)
	if snap.State != string(generator.StateError) || snap.ErrorKind != "config" {
		t.Errorf("Unexpected progress %+v", snap)
	}
	if rec := get(ui, "/api/progress/"+uuid.New().String()); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown session, got %d", rec.Code)
	}
}

func TestGenerateRejectsBusySession(t *testing.T) {
	ui := newTestUI(t, 10)
	sessionID := uuid.New().String()
	running, ok := ui.newSession(sessionID)
	if !ok {
		t.Fatalf("Expected to claim a fresh session")
	}
	running.UpdateState(generator.StateGenerating)

	form := url.Values{"story": {"dragons_20"}, "child_name": {"Alex"}, "model": {"boy_model"}, "session_id": {sessionID}}
	if rec := postGenerate(ui, form); rec.Code != http.StatusConflict {
		t.Fatalf("Expected 409, got %d", rec.Code)
	}
	if got, _ := ui.session(sessionID); got != running {
		t.Errorf("Expected the running session to be kept")
	}

	running.Complete("/download/Alex_dragons_20.pdf")
	if _, ok := ui.newSession(sessionID); !ok {
		t.Errorf("Expected a finished session to be replaceable")
	}
}

func TestNewSessionClaimsOnce(t *testing.T) {
	ui := newTestUI(t, 10)
	sessionID := uuid.New().String()

	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := ui.newSession(sessionID); ok {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if claimed != 1 {
		t.Errorf("Expected exactly 1 claim, got %d", claimed)
	}
}

func TestGenerateRateLimit(t *testing.T) {
	ui := newTestUI(t, 1)
	form := url.Values{"story": {"dragons_20"}}
	if rec := postGenerate(ui, form); rec.Code == http.StatusTooManyRequests {
		t.Fatalf("First request was rate limited")
	}
	if rec := postGenerate(ui, form); rec.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", rec.Code)
	}
}

func TestDownloadOnlyServesPDFs(t *testing.T) {
	ui := newTestUI(t, 10)
	for _, p := range []string{"/download/", "/download/alex_dragons_20/page_01.png"} {
		if rec := get(ui, p); rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", p, rec.Code)
		}
	}
}

func TestWebSocketReplaysHistory(t *testing.T) {
	ui := newTestUI(t, 10)
	srv := httptest.NewServer(ui)
	defer srv.Close()

	sessionID := uuid.New().String()
	rec := postGenerate(ui, url.Values{"story": {"vacation_20"}, "child_name": {"Alex"}, "session_id": {sessionID}})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first generator.WSMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatal(err)
	}
	if first.Status != string(generator.StateGenerating) {
		t.Errorf("Expected replay to start with generating, got %s", first.Status)
	}
	for {
		var msg generator.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Did not see the completed message: %v", err)
		}
		if msg.Status == string(generator.StateCompleted) {
			if msg.Percent != 100 || msg.Download == "" {
				t.Errorf("Unexpected final message %+v", msg)
			}
			break
		}
	}

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/"+uuid.New().String(), nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown session, got %v", err)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: x", storybook.ErrConfig), http.StatusBadRequest},
		{fmt.Errorf("%w: x", storybook.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: x", storybook.ErrAuth), http.StatusUnauthorized},
		{&storybook.RemoteError{StatusCode: 500}, http.StatusBadGateway},
		{fmt.Errorf("%w: x", storybook.ErrTimeout), http.StatusGatewayTimeout},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.want, got)
		}
	}
}
