package llm

import (
	"codegen-app/internal/codegen"
	"embed"
	"fmt"
	"strings"
)

//go:embed prompts/*.md
var promptFS embed.FS

// SystemPrompt returns the built-in system prompt for a generation type
func SystemPrompt(t codegen.Type) (string, error) {
	data, err := promptFS.ReadFile("prompts/" + t.String() + ".md")
	if err != nil {
		return "", fmt.Errorf("no system prompt for generation type %q: %w", t, err)
	}
	return strings.TrimSpace(string(data)), nil
}
