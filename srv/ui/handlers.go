package ui

import (
	"net/http"
)

type templateView struct {
	Key          string `json:"key"`
	Title        string `json:"title"`
	Pages        int    `json:"pages"`
	DefaultModel string `json:"default_model,omitempty"`
}

type modelView struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	ModelID string `json:"model_id"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

func (ui *GeneratorUI) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (ui *GeneratorUI) handleTemplates(w http.ResponseWriter, r *http.Request) {
	stories := ui.catalog.Stories()
	out := make([]templateView, 0, len(stories))
	for _, s := range stories {
		out = append(out, templateView{Key: s.Key, Title: s.Title, Pages: len(s.Pages), DefaultModel: s.DefaultModel})
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": out})
}

func (ui *GeneratorUI) handleModels(w http.ResponseWriter, r *http.Request) {
	models := ui.catalog.Models()
	out := make([]modelView, 0, len(models))
	for _, m := range models {
		out = append(out, modelView{Key: m.Key, Title: m.Title, ModelID: m.ModelID(), Width: m.Width, Height: m.Height})
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": out})
}
