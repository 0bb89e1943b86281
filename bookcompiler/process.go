package bookcompiler

import (
	"bytes"
	"fmt"

	"github.com/russross/blackfriday/v2"
	"golang.org/x/net/html"
)

// parseCaption converts caption markdown to an HTML DOM.
func parseCaption(caption string) (*html.Node, error) {
	htmlContent := blackfriday.Run([]byte(caption))

	doc, err := html.Parse(bytes.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}
	return doc, nil
}
