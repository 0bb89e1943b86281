package storybook

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/opd-ai/storybook/bookcompiler"
)

var (
	unsafeNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
	nameSpaces      = regexp.MustCompile(`[\s_]+`)
)

// CleanName turns a child name or story key into a safe file name fragment.
func CleanName(s string) string {
	s = unsafeNameChars.ReplaceAllString(strings.TrimSpace(s), "_")
	s = nameSpaces.ReplaceAllString(s, "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return "book"
	}
	return s
}

// BookPath is the deterministic PDF location for a child and story.
func BookPath(outputDir, childName, storyKey string) string {
	return filepath.Join(outputDir, CleanName(childName)+"_"+CleanName(storyKey)+".pdf")
}

// AssetDir is where page images for a book are cached.
func AssetDir(outputDir, childName, storyKey string) string {
	return filepath.Join(outputDir, strings.ToLower(CleanName(childName))+"_"+CleanName(storyKey))
}

func savePageImage(dir string, number int, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating image directory: %v", ErrIO, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("page_%02d%s", number, bookcompiler.Extension(data)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: saving page image: %v", ErrIO, err)
	}
	return path, nil
}
