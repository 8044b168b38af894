package processor

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

// DefaultMaxChars bounds how much document text is sent to the model.
const DefaultMaxChars = 20000

var blankLines = regexp.MustCompile(`\n{3,}`)

// Processor prepares Paperless document content for prompting.
// HTML content (e-mail imports, web clips) is converted to Markdown;
// everything else is passed through with whitespace tidied.
type Processor struct {
	maxChars int
}

// New creates a Processor that truncates to maxChars runes (0 uses DefaultMaxChars).
func New(maxChars int) *Processor {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Processor{maxChars: maxChars}
}

// Normalize returns content ready for the prompt.
func (p *Processor) Normalize(content string) string {
	text := strings.TrimSpace(content)
	if text == "" {
		return ""
	}

	if LooksLikeHTML(text) {
		if md, err := p.Convert(text); err == nil && md != "" {
			text = md
		}
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return truncate(text, p.maxChars)
}

// Convert transforms HTML content into Markdown.
func (p *Processor) Convert(htmlContent string) (string, error) {
	if htmlContent == "" {
		return "", nil
	}

	markdown, err := htmltomarkdown.ConvertString(htmlContent)
	if err != nil {
		return "", err
	}

	// Clean up excessive whitespace
	markdown = strings.TrimSpace(markdown)
	return markdown, nil
}

// LooksLikeHTML reports whether content is an HTML document or fragment.
// OCR text routinely contains stray "<" characters, so a structural
// element has to appear before the check succeeds.
func LooksLikeHTML(content string) bool {
	lower := strings.ToLower(strings.TrimSpace(content))
	if strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html") {
		return true
	}

	z := html.NewTokenizer(strings.NewReader(content))
	for range 200 {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "html", "head", "body", "div", "p", "table", "br", "span":
				return true
			}
		}
	}
	return false
}

func truncate(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return strings.TrimSpace(string(runes[:maxChars]))
}
