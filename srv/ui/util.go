package ui

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	storybook "github.com/opd-ai/storybook/src"
)

func isValidSession(sessionID string) bool {
	if sessionID == "" {
		return false
	}
	_, err := uuid.Parse(sessionID)
	return err == nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// statusFor maps an error category onto an HTTP status.
func statusFor(err error) int {
	switch storybook.Kind(err) {
	case "config", "validation":
		return http.StatusBadRequest
	case "auth":
		return http.StatusUnauthorized
	case "remote", "connectivity":
		return http.StatusBadGateway
	case "timeout":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// downloadURL returns the /download link for a file under outputDir, or ""
// when the file lies outside it.
func downloadURL(outputDir, file string) string {
	rel, err := filepath.Rel(outputDir, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	u := url.URL{Path: path.Join(downloadPrefix, filepath.ToSlash(rel))}
	return u.EscapedPath()
}

// pdfOnly keeps the download route from listing directories or serving the
// cached page images.
func pdfOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.EqualFold(path.Ext(r.URL.Path), ".pdf") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
