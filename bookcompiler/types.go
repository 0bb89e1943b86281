package bookcompiler

import (
	"errors"

	"github.com/jung-kurt/gofpdf"
)

// ErrOutput is returned when the PDF cannot be written to the output path.
var ErrOutput = errors.New("output path not writable")

// BookCompiler lays out illustrated pages into a PDF, one page per illustration
type BookCompiler struct {
	OutputPath   string
	pdf          *gofpdf.Fpdf
	tr           func(string) string
	imageCount   int
	headingStyle TextStyle
	textStyle    TextStyle
	pageWidth    float64
	pageHeight   float64
	margin       float64
	panelRatio   float64
	panelColor   [3]int
	uncompressed bool
}

// Book is the input of a compilation: ordered pages plus document metadata
type Book struct {
	Title  string
	Author string
	Pages  []Page
}

// Page pairs an encoded image (PNG, JPEG, GIF or WebP) with its caption.
// Captions may use inline markdown.
type Page struct {
	Number  int
	Caption string
	Image   []byte
}

// TextStyle holds current text formatting state
type TextStyle struct {
	FontFamily string
	Style      string
	Size       float64
}
