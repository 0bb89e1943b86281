package ui

import (
	"log"
	"net/http"
	"strconv"

	"github.com/opd-ai/storybook/history"
)

type storyView struct {
	history.Record
	Download string `json:"download,omitempty"`
}

// handleStories lists generated books, newest first.
func (ui *GeneratorUI) handleStories(w http.ResponseWriter, r *http.Request) {
	limit := defaultListSize
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	if ui.history == nil {
		writeJSON(w, http.StatusOK, map[string]any{"stories": []storyView{}})
		return
	}
	records, err := ui.history.List(r.Context(), limit)
	if err != nil {
		log.Printf("Error listing stories: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not list stories"})
		return
	}
	out := make([]storyView, 0, len(records))
	for _, rec := range records {
		out = append(out, storyView{Record: rec, Download: downloadURL(ui.outputDir, rec.PDFPath)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"stories": out})
}
