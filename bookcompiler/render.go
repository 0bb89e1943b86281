package bookcompiler

import (
	"strings"

	"golang.org/x/net/html"
)

// renderCaption writes caption into the panel at the current position.
func (bc *BookCompiler) renderCaption(caption string, size float64) error {
	doc, err := parseCaption(caption)
	if err != nil {
		return err
	}
	r := &captionRenderer{bc: bc, size: size, lineHeight: size * 0.46}
	bc.pdf.SetFont(bc.textStyle.FontFamily, "", size)
	r.render(doc)
	return bc.pdf.Error()
}

type captionRenderer struct {
	bc         *BookCompiler
	size       float64
	lineHeight float64
	bold       int
	italic     int
	paragraphs int
}

func (r *captionRenderer) style() string {
	s := ""
	if r.bold > 0 {
		s += "B"
	}
	if r.italic > 0 {
		s += "I"
	}
	return s
}

func (r *captionRenderer) setFont() {
	r.bc.pdf.SetFont(r.bc.textStyle.FontFamily, r.style(), r.size)
}

func (r *captionRenderer) render(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if strings.TrimSpace(n.Data) == "" && !inline(n.Parent) {
			return
		}
		r.bc.pdf.Write(r.lineHeight, r.bc.cleanText(n.Data))
		return
	case html.ElementNode:
		switch n.Data {
		case "p":
			if r.paragraphs > 0 {
				r.bc.pdf.Ln(r.lineHeight * 1.5)
			}
			r.paragraphs++
			r.renderChildren(n)
			return
		case "strong", "b":
			r.bold++
			r.setFont()
			r.renderChildren(n)
			r.bold--
			r.setFont()
			return
		case "em", "i":
			r.italic++
			r.setFont()
			r.renderChildren(n)
			r.italic--
			r.setFont()
			return
		case "br":
			r.bc.pdf.Ln(r.lineHeight)
			return
		case "li":
			r.bc.pdf.Ln(r.lineHeight)
			r.bc.pdf.Write(r.lineHeight, r.bc.cleanText("• "))
			r.renderChildren(n)
			return
		case "img", "script", "style":
			return
		}
	}
	r.renderChildren(n)
}

func (r *captionRenderer) renderChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		r.render(c)
	}
}

func inline(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "p", "em", "i", "strong", "b", "li", "a", "code":
		return true
	}
	return false
}
