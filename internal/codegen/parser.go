package codegen

import (
	"bufio"
	"codegen-app/internal/apperr"
	"fmt"
	"path"
	"strings"
)

const (
	SingleFileName = "index.html"
	styleFileName  = "style.css"
	scriptFileName = "script.js"
	packageJSON    = "package.json"
)

// block is one fenced code block of model output.
type block struct {
	lang string
	path string
	body string
}

// Parse turns the full assistant text into a result of the given type.
func Parse(t Type, text string) (Result, error) {
	blocks := scanBlocks(text)

	switch t {
	case TypeSingleFile:
		return parseSingleFile(text, blocks)
	case TypeMultiFile:
		return parseMultiFile(blocks)
	case TypeFramework:
		return parseFramework(blocks)
	default:
		return nil, fmt.Errorf("%w: unknown generation type %q", apperr.ErrValidation, t)
	}
}

func parseSingleFile(text string, blocks []block) (Result, error) {
	for _, b := range blocks {
		if b.lang == "html" || strings.HasSuffix(b.path, ".html") {
			return &SingleFile{Content: b.body}, nil
		}
	}

	// Models sometimes answer with a bare document and no fence.
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "<!doctype html") || strings.HasPrefix(lower, "<html") {
		return &SingleFile{Content: trimmed}, nil
	}

	return nil, fmt.Errorf("%w: no html code block in response", apperr.ErrValidation)
}

func parseMultiFile(blocks []block) (Result, error) {
	var files []File
	for _, b := range blocks {
		name := b.path
		if name == "" {
			name = defaultFileName(b.lang)
		}
		if name == "" {
			continue
		}
		files = append(files, File{Path: name, Content: b.body})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no html, css or js code blocks in response", apperr.ErrValidation)
	}
	return &MultiFile{Files: files}, nil
}

func parseFramework(blocks []block) (Result, error) {
	var files []File
	hasManifest := false
	for _, b := range blocks {
		if b.path == "" {
			continue
		}
		if path.Clean(b.path) == packageJSON {
			hasManifest = true
		}
		files = append(files, File{Path: b.path, Content: b.body})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no file blocks in response", apperr.ErrValidation)
	}
	if !hasManifest {
		return nil, fmt.Errorf("%w: project has no %s", apperr.ErrValidation, packageJSON)
	}
	return &FrameworkProject{Files: files}, nil
}

func defaultFileName(lang string) string {
	switch lang {
	case "html":
		return SingleFileName
	case "css":
		return styleFileName
	case "js", "javascript":
		return scriptFileName
	default:
		return ""
	}
}

// scanBlocks extracts fenced blocks in order. An unterminated final block runs to the end of
// the text, which happens when generation is cut short.
func scanBlocks(text string) []block {
	var (
		blocks  []block
		current *block
		body    strings.Builder
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if current == nil {
			if strings.HasPrefix(trimmed, "```") {
				lang, p := parseInfo(strings.TrimPrefix(trimmed, "```"))
				current = &block{lang: lang, path: p}
				body.Reset()
			}
			continue
		}

		if trimmed == "```" {
			current.body = body.String()
			blocks = append(blocks, *current)
			current = nil
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}

	if current != nil && body.Len() > 0 {
		current.body = body.String()
		blocks = append(blocks, *current)
	}
	return blocks
}

// parseInfo splits a fence info string like "css assets/site.css" or "src/App.vue".
func parseInfo(info string) (lang, filePath string) {
	fields := strings.Fields(info)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		if strings.ContainsAny(fields[0], "./") {
			return strings.TrimPrefix(path.Ext(fields[0]), "."), fields[0]
		}
		return strings.ToLower(fields[0]), ""
	default:
		return strings.ToLower(fields[0]), fields[1]
	}
}
