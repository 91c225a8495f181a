// Package pdfdoc extracts text from local PDF documents such as loss
// runs, dec pages, and ACORD forms.
package pdfdoc

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/coverbridge/coverbridge/internal/agent"
)

// Extractor reads PDFs from a restricted directory.
type Extractor struct {
	dir      string
	maxPages int
}

// NewExtractor creates an extractor rooted at dir. maxPages bounds
// how much text one call can pull.
func NewExtractor(dir string, maxPages int) *Extractor {
	if maxPages <= 0 {
		maxPages = 50
	}
	return &Extractor{dir: dir, maxPages: maxPages}
}

// resolve maps a document name to a path inside the root directory.
func (e *Extractor) resolve(name string) (string, error) {
	if strings.Contains(name, "..") || filepath.IsAbs(name) {
		return "", fmt.Errorf("invalid document name: %s", name)
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return "", fmt.Errorf("not a PDF document: %s", name)
	}
	return filepath.Join(e.dir, name), nil
}

// PageCount returns the number of pages in a document.
func (e *Extractor) PageCount(name string) (int, error) {
	path, err := e.resolve(name)
	if err != nil {
		return 0, err
	}
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()
	return r.NumPage(), nil
}

// ExtractText extracts plain text from a page range. Pages are
// 1-based and inclusive; from/to of 0 mean the whole document.
func (e *Extractor) ExtractText(name string, from, to int) (string, error) {
	path, err := e.resolve(name)
	if err != nil {
		return "", err
	}
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	total := r.NumPage()
	if from <= 0 {
		from = 1
	}
	if to <= 0 || to > total {
		to = total
	}
	if from > to {
		return "", fmt.Errorf("invalid page range %d-%d (document has %d pages)", from, to, total)
	}
	if to-from+1 > e.maxPages {
		to = from + e.maxPages - 1
	}

	var b strings.Builder
	for i := from; i <= to; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to extract page %d of %s: %w", i, name, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// Tool exposes the extractor to the agent.
type Tool struct {
	extractor *Extractor
}

// NewTool creates the document tool.
func NewTool(extractor *Extractor) *Tool {
	return &Tool{extractor: extractor}
}

func (t *Tool) Name() string {
	return "documents"
}

func (t *Tool) Description() string {
	return "Read text out of PDF documents in the agency's document folder, such as loss runs and dec pages."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"action": {
				"type": "string",
				"enum": ["extract_text", "page_count", "extract_pages"],
				"description": "The document operation to perform"
			},
			"file": {
				"type": "string",
				"description": "Document file name, relative to the document folder"
			},
			"from_page": {
				"type": "integer",
				"description": "First page for extract_pages (1-based)"
			},
			"to_page": {
				"type": "integer",
				"description": "Last page for extract_pages (inclusive)"
			}
		},
		"required": ["action", "file"]
	}`)
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p struct {
		Action   string `json:"action"`
		File     string `json:"file"`
		FromPage int    `json:"from_page"`
		ToPage   int    `json:"to_page"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("invalid parameters: %v", err), IsError: true}, nil
	}
	if p.File == "" {
		return &agent.ToolResult{Content: "Error: file is required", IsError: true}, nil
	}

	switch p.Action {
	case "extract_text":
		text, err := t.extractor.ExtractText(p.File, 0, 0)
		if err != nil {
			return &agent.ToolResult{Content: fmt.Sprintf("Extraction failed: %v", err), IsError: true}, nil
		}
		return &agent.ToolResult{Content: text}, nil

	case "page_count":
		n, err := t.extractor.PageCount(p.File)
		if err != nil {
			return &agent.ToolResult{Content: fmt.Sprintf("Page count failed: %v", err), IsError: true}, nil
		}
		return &agent.ToolResult{Content: fmt.Sprintf("%s has %d page(s).", p.File, n)}, nil

	case "extract_pages":
		if p.FromPage <= 0 {
			return &agent.ToolResult{Content: "Error: from_page is required for extract_pages", IsError: true}, nil
		}
		text, err := t.extractor.ExtractText(p.File, p.FromPage, p.ToPage)
		if err != nil {
			return &agent.ToolResult{Content: fmt.Sprintf("Extraction failed: %v", err), IsError: true}, nil
		}
		return &agent.ToolResult{Content: text}, nil

	default:
		return &agent.ToolResult{Content: fmt.Sprintf("unknown action: %s", p.Action), IsError: true}, nil
	}
}
