package storybook

import (
	"fmt"
	"strings"
)

// FillName substitutes the child's name for every {name} in text.
func FillName(text, childName string) string {
	return strings.ReplaceAll(text, NamePlaceholder, childName)
}

// BuildPagePrompt combines the model's style prompt, the page scene (or its
// caption when no scene is given) and the child's name.
func BuildPagePrompt(childName string, model ModelConfig, page Page) string {
	scene := strings.TrimSpace(page.Scene)
	if scene == "" {
		scene = strings.TrimSpace(page.Text)
	}
	scene = strings.TrimRight(FillName(scene, childName), ". ")

	var b strings.Builder
	fmt.Fprintf(&b, "3D storybook illustration of a child named %s", childName)
	if style := strings.TrimSpace(FillName(model.StylePrompt, childName)); style != "" {
		b.WriteString(", ")
		b.WriteString(strings.TrimRight(style, ". "))
	}
	fmt.Fprintf(&b, ", in this scene: %s. ", scene)
	b.WriteString("Soft cinematic lighting, pastel colors, gentle depth of field, ")
	b.WriteString("charming children's picture book style, high detail, no text, no logo.")
	return b.String()
}
