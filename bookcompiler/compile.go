package bookcompiler

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
)

// Compile writes book to outputPath and returns the number of PDF pages.
func Compile(book Book, outputPath string) (int, error) {
	return NewBookCompiler(outputPath).Compile(book)
}

// Compile lays out every page and writes the PDF. The file only appears at
// OutputPath once it is complete.
func (bc *BookCompiler) Compile(book Book) (int, error) {
	if len(book.Pages) == 0 {
		return 0, errors.New("book has no pages")
	}

	// Initialize PDF
	bc.pdf = gofpdf.New("P", "mm", "A4", "")
	bc.pdf.SetMargins(bc.margin, bc.margin, bc.margin)
	bc.pdf.SetAutoPageBreak(false, 0)
	bc.pdf.SetCompression(!bc.uncompressed)
	bc.tr = bc.pdf.UnicodeTranslatorFromDescriptor("")
	bc.imageCount = 0

	bc.pdf.SetTitle(book.Title, true)
	bc.pdf.SetAuthor(book.Author, true)
	bc.pdf.SetCreator("storybook", true)

	for i, page := range book.Pages {
		if err := bc.addPage(i, page); err != nil {
			return 0, fmt.Errorf("error adding page %d: %w", i+1, err)
		}
	}
	if err := bc.pdf.Error(); err != nil {
		return 0, fmt.Errorf("error building PDF: %w", err)
	}

	pages := bc.pdf.PageNo()
	if err := bc.writeFile(); err != nil {
		return 0, err
	}
	return pages, nil
}

func (bc *BookCompiler) addPage(i int, page Page) error {
	number := page.Number
	if number <= 0 {
		number = i + 1
	}
	bc.pdf.AddPage()

	panelHeight := bc.pageHeight * bc.panelRatio
	imageBottom := bc.pageHeight - panelHeight

	// Illustration, scaled to fit and centered above the panel
	name, info, err := bc.registerImage(page.Image)
	if err != nil {
		return err
	}
	areaW := bc.pageWidth - 2*bc.margin
	areaH := imageBottom - 2*bc.margin
	w, h := fit(info.Width(), info.Height(), areaW, areaH)
	x := bc.margin + (areaW-w)/2
	y := bc.margin + (areaH-h)/2
	bc.pdf.ImageOptions(name, x, y, w, h, false, gofpdf.ImageOptions{}, 0, "")

	// Caption panel
	pad := 8.0
	bc.pdf.SetFillColor(bc.panelColor[0], bc.panelColor[1], bc.panelColor[2])
	bc.pdf.Rect(0, imageBottom, bc.pageWidth, panelHeight, "F")
	bc.pdf.SetLeftMargin(bc.margin + pad)
	bc.pdf.SetRightMargin(bc.margin + pad)
	bc.pdf.SetXY(bc.margin+pad, imageBottom+pad)
	bc.pdf.SetTextColor(40, 40, 60)

	bc.pdf.SetFont(bc.headingStyle.FontFamily, bc.headingStyle.Style, bc.headingStyle.Size)
	bc.pdf.CellFormat(0, 7, bc.cleanText(fmt.Sprintf("Page %d", number)), "", 1, "L", false, 0, "")
	bc.pdf.Ln(2)

	if err := bc.renderCaption(page.Caption, bc.captionSize(page.Caption)); err != nil {
		return err
	}

	bc.pdf.SetLeftMargin(bc.margin)
	bc.pdf.SetRightMargin(bc.margin)
	return bc.pdf.Error()
}

func fit(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return maxW, maxH
	}
	s := math.Min(maxW/w, maxH/h)
	return w * s, h * s
}

func (bc *BookCompiler) writeFile() error {
	dir := filepath.Dir(bc.OutputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrOutput, dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".book-*.pdf.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutput, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := bc.pdf.Output(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing PDF: %v", ErrOutput, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrOutput, err)
	}
	if err := os.Rename(tmpName, bc.OutputPath); err != nil {
		return fmt.Errorf("%w: %v", ErrOutput, err)
	}
	return nil
}
