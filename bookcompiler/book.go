package bookcompiler

import (
	"regexp"
	"strings"
)

var spaceRun = regexp.MustCompile(`\s+`)

// NewBookCompiler creates a new instance of BookCompiler
func NewBookCompiler(outputPath string) *BookCompiler {
	return &BookCompiler{
		OutputPath:   outputPath,
		headingStyle: TextStyle{FontFamily: "Arial", Style: "B", Size: 14},
		textStyle:    TextStyle{FontFamily: "Times", Style: "", Size: 14},
		pageWidth:    210, // A4 width in mm
		pageHeight:   297, // A4 height in mm
		margin:       12,
		panelRatio:   0.26,
		panelColor:   [3]int{235, 242, 252},
	}
}

// SetCompression toggles stream compression. Uncompressed output keeps page
// text searchable in the raw file.
func (bc *BookCompiler) SetCompression(on bool) {
	bc.uncompressed = !on
}

// captionSize shrinks long captions so they stay inside the panel.
func (bc *BookCompiler) captionSize(caption string) float64 {
	n := len([]rune(caption))
	switch {
	case n > 420:
		return bc.textStyle.Size - 4
	case n > 260:
		return bc.textStyle.Size - 2
	default:
		return bc.textStyle.Size
	}
}

func (bc *BookCompiler) cleanText(text string) string {
	// Core fonts only cover cp1252
	text = strings.ReplaceAll(text, "“", "\"")
	text = strings.ReplaceAll(text, "”", "\"")
	text = strings.ReplaceAll(text, "‘", "'")
	text = strings.ReplaceAll(text, "’", "'")
	text = strings.ReplaceAll(text, "…", "...")
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = spaceRun.ReplaceAllString(text, " ")
	if bc.tr != nil {
		text = bc.tr(text)
	}
	return text
}
