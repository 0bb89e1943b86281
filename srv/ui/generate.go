package ui

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	storybook "github.com/opd-ai/storybook/src"
	"github.com/opd-ai/storybook/srv/generator"
)

type generateResponse struct {
	OK        bool   `json:"ok"`
	PDF       string `json:"pdf"`
	Title     string `json:"title"`
	Pages     int    `json:"pages"`
	SessionID string `json:"session_id"`
	Download  string `json:"download"`
}

func parseGenerateForm(r *http.Request) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(maxFormBytes)
	}
	return r.ParseForm()
}

// handleGenerate builds one book while the request is open. Progress goes to
// the session named by session_id (or a new one), so the page can follow it
// over /ws/{sessionID} or /api/progress/{sessionID}.
func (ui *GeneratorUI) handleGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := parseGenerateForm(r); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to parse form"})
		return
	}

	req := storybook.Request{
		StoryKey:  strings.TrimSpace(r.FormValue("story")),
		ChildName: strings.TrimSpace(r.FormValue("child_name")),
		ModelKey:  strings.TrimSpace(r.FormValue("model")),
		ModelID:   strings.TrimSpace(r.FormValue("model_id")),
	}
	if req.StoryKey == "" || req.ChildName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "story and child_name are required"})
		return
	}

	sessionID := r.FormValue("session_id")
	if !isValidSession(sessionID) {
		sessionID = uuid.New().String()
	}
	progress, ok := ui.newSession(sessionID)
	if !ok {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a book is already being generated for this session"})
		return
	}
	w.Header().Set("X-Session-Id", sessionID)

	progress.UpdateState(generator.StateGenerating)
	log.Printf("[Session %s] Starting %s for %q", sessionID, req.StoryKey, req.ChildName)

	res, err := ui.gen.CreateBook(r.Context(), req, progress)
	if err != nil {
		log.Printf("[Session %s] Generation error: %v", sessionID, err)
		progress.Fail(storybook.Kind(err), err)
		writeJSON(w, statusFor(err), map[string]string{
			"error":      err.Error(),
			"kind":       storybook.Kind(err),
			"session_id": sessionID,
		})
		return
	}

	download := downloadURL(ui.outputDir, res.PDFPath)
	progress.UpdateOutput(fmt.Sprintf("Saved %s (%d pages)", res.Title, res.PageCount))
	progress.Complete(download)
	writeJSON(w, http.StatusOK, generateResponse{
		OK:        true,
		PDF:       res.PDFPath,
		Title:     res.Title,
		Pages:     res.PageCount,
		SessionID: sessionID,
		Download:  download,
	})
}

func (ui *GeneratorUI) handleProgress(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	progress, ok := ui.session(sessionID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, progress.Snapshot())
}
