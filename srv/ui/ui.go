// Package ui serves the storybook HTTP API and the browser front end.
package ui

import (
	"embed"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/patrickmn/go-cache"
	secure "github.com/srikrsna/security-headers"

	"github.com/opd-ai/storybook/history"
	storybook "github.com/opd-ai/storybook/src"
	"github.com/opd-ai/storybook/srv/generator"
	"github.com/opd-ai/storybook/srv/util"
)

//go:embed static
var staticFiles embed.FS

const (
	sessionExpiry   = time.Hour
	sessionCleanup  = 10 * time.Minute
	defaultRate     = 6
	maxFormBytes    = 1 << 20
	downloadPrefix  = "/download/"
	defaultListSize = 50
)

// Options wires the UI to the rest of the application.
type Options struct {
	Generator *storybook.Generator
	History   history.Store
	OutputDir string
	// GenerateLimit is the number of generate requests allowed per client IP
	// per minute.
	GenerateLimit int
}

type GeneratorUI struct {
	router    chi.Router
	gen       *storybook.Generator
	catalog   *storybook.Catalog
	history   history.Store
	outputDir string
	sessions  *cache.Cache
	claimMu   sync.Mutex
	limit     int
}

func NewGeneratorUI(opts Options) *GeneratorUI {
	ui := &GeneratorUI{
		router:    chi.NewRouter(),
		gen:       opts.Generator,
		catalog:   opts.Generator.Catalog,
		history:   opts.History,
		outputDir: opts.OutputDir,
		sessions:  cache.New(sessionExpiry, sessionCleanup),
		limit:     opts.GenerateLimit,
	}
	if ui.outputDir == "" {
		ui.outputDir = opts.Generator.OutputDir
	}
	if ui.limit <= 0 {
		ui.limit = defaultRate
	}
	ui.sessions.OnEvicted(func(sessionID string, v interface{}) {
		if progress, ok := v.(*generator.GenerationProgress); ok {
			log.Printf("[Session %s] Session expired", sessionID)
			progress.Close()
		}
	})
	ui.setupRoutes()
	return ui
}

func (ui *GeneratorUI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ui.router.ServeHTTP(w, r)
}

// newSession registers a fresh progress tracker under sessionID. It reports
// false when a book is still being generated for that session.
func (ui *GeneratorUI) newSession(sessionID string) (*generator.GenerationProgress, bool) {
	progress := generator.NewGenerationProgress(sessionID)
	ui.claimMu.Lock()
	defer ui.claimMu.Unlock()
	if err := ui.sessions.Add(sessionID, progress, cache.DefaultExpiration); err == nil {
		return progress, true
	}
	existing, ok := ui.session(sessionID)
	if ok && !existing.IsDone() {
		return nil, false
	}
	if ok {
		existing.Close()
	}
	ui.sessions.Set(sessionID, progress, cache.DefaultExpiration)
	return progress, true
}

func (ui *GeneratorUI) session(sessionID string) (*generator.GenerationProgress, bool) {
	v, ok := ui.sessions.Get(sessionID)
	if !ok {
		return nil, false
	}
	progress, ok := v.(*generator.GenerationProgress)
	return progress, ok
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Requested-With")
		w.Header().Set("Access-Control-Expose-Headers", "X-Session-Id")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (ui *GeneratorUI) setupRoutes() {
	headers := &secure.Secure{
		ContentTypeNoSniff: true,
		XSSFilterBlock:     true,
	}

	ui.router.Use(middleware.RequestID)
	ui.router.Use(util.LoggingMiddleware)
	ui.router.Use(util.RecoveryMiddleware)
	ui.router.Use(corsMiddleware)
	ui.router.Use(headers.Middleware())

	ui.router.Get("/healthz", ui.handleHealth)
	ui.router.Get("/api/templates", ui.handleTemplates)
	ui.router.Get("/api/models", ui.handleModels)
	ui.router.With(httprate.LimitByIP(ui.limit, time.Minute)).Post("/api/generate", ui.handleGenerate)
	ui.router.Get("/api/progress/{sessionID}", ui.handleProgress)
	ui.router.Get("/api/stories", ui.handleStories)
	ui.router.Get("/ws/{sessionID}", ui.handleWebSocket)

	outputServer := http.FileServer(http.Dir(ui.outputDir))
	ui.router.Handle(downloadPrefix+"*", http.StripPrefix(downloadPrefix, pdfOnly(outputServer)))

	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("embedded static files: %v", err)
	}
	ui.router.Handle("/*", http.FileServer(http.FS(static)))
}
