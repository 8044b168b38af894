package analysis

import (
	"fmt"
	"strings"
)

// BuildPrompt renders the instruction sent to the model for one document.
// Existing tag names are listed so the model reuses them where they fit.
func BuildPrompt(content string, existingTags []string) string {
	return fmt.Sprintf(`You are a personal document analyser. Your task is to analyse documents and extract relevant information.

Reply ONLY in JSON using exactly this schema:
{
  "title": "The generated title",
  "tags": ["Tag1", "Tag2", "Tag3"]
}

The following tags are already in use. Prefer them whenever they match the content.

Existing tags: %s

Rules:
1. The title must be concise and meaningful, in the language of the document.
2. Choose 1-4 relevant topical tags.
3. Prefer existing tags.
4. Only create new tags when no existing tag fits.

Document content: %s`, strings.Join(existingTags, ", "), content)
}
