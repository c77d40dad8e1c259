package application

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

const (
	maxSnippetLength = 120
	untitledPhoto    = "Untitled Photo"
)

// DescriptionResult contains a photo description prepared for display
type DescriptionResult struct {
	Snippet string
	HTML    []byte
}

// DescriptionRenderer converts photo descriptions written in markdown to HTML.
type DescriptionRenderer interface {
	Render(description string) (*DescriptionResult, error)
}

type MarkdownRendererImpl struct {
	renderer goldmark.Markdown
}

// NewMarkdownRenderer returns a renderer that escapes raw HTML in descriptions
func NewMarkdownRenderer() DescriptionRenderer {
	renderer := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Strikethrough,
			extension.Linkify,
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	return &MarkdownRendererImpl{
		renderer: renderer,
	}
}

func (r *MarkdownRendererImpl) Render(description string) (*DescriptionResult, error) {
	var buf bytes.Buffer
	if err := r.renderer.Convert([]byte(description), &buf); err != nil {
		return nil, fmt.Errorf("failed to convert description to HTML: %w", err)
	}

	return &DescriptionResult{
		Snippet: extractSnippet(description),
		HTML:    buf.Bytes(),
	}, nil
}

// displayTitle is the title shown for a photo in lists
func displayTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return untitledPhoto
	}
	return title
}

// extractSnippet returns the first paragraph of a description as plain text,
// shortened on a word boundary for list cards
func extractSnippet(description string) string {
	var paragraphLines []string

	for _, line := range strings.Split(description, "\n") {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			if len(paragraphLines) > 0 {
				break
			}
			continue
		}

		// Skip markdown structure before we find content
		if strings.HasPrefix(trimmed, "```") ||
			strings.HasPrefix(trimmed, "---") ||
			strings.HasPrefix(trimmed, "|") {
			if len(paragraphLines) > 0 {
				break
			}
			continue
		}

		trimmed = strings.TrimSpace(strings.TrimLeft(trimmed, "#>"))
		for _, bullet := range []string{"- ", "* ", "+ "} {
			trimmed = strings.TrimPrefix(trimmed, bullet)
		}
		if trimmed == "" {
			continue
		}
		paragraphLines = append(paragraphLines, trimmed)
	}

	if len(paragraphLines) == 0 {
		return ""
	}

	snippet := strings.Join(paragraphLines, " ")

	if runes := []rune(snippet); len(runes) > maxSnippetLength {
		snippet = string(runes[:maxSnippetLength])
		if lastSpace := strings.LastIndexAny(snippet, " \t"); lastSpace > 0 {
			snippet = snippet[:lastSpace]
		}
		snippet += "..."
	}

	return snippet
}
