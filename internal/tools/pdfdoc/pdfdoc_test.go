package pdfdoc

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

// The extraction paths need real PDF fixtures, so these tests cover
// the name validation and parameter handling that run before any file
// is opened.

func TestResolveRejectsTraversal(t *testing.T) {
	e := NewExtractor(t.TempDir(), 50)

	cases := []string{"../secrets.pdf", "/etc/passwd.pdf", "a/../../b.pdf"}
	for _, name := range cases {
		if _, err := e.resolve(name); err == nil {
			t.Errorf("resolve(%q) should fail", name)
		}
	}
}

func TestResolveRejectsNonPDF(t *testing.T) {
	e := NewExtractor(t.TempDir(), 50)

	if _, err := e.resolve("lossruns.docx"); err == nil {
		t.Error("non-PDF name should fail")
	}
	if _, err := e.resolve("lossruns.pdf"); err != nil {
		t.Errorf("valid name failed: %v", err)
	}
}

func TestToolRequiresFile(t *testing.T) {
	tool := NewTool(NewExtractor(t.TempDir(), 50))

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"action":"page_count"}`))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !res.IsError || !strings.Contains(res.Content, "file is required") {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestExtractPagesRequiresFromPage(t *testing.T) {
	tool := NewTool(NewExtractor(t.TempDir(), 50))

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"action":"extract_pages","file":"decpage.pdf"}`))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !res.IsError || !strings.Contains(res.Content, "from_page is required") {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestMissingDocumentReported(t *testing.T) {
	tool := NewTool(NewExtractor(t.TempDir(), 50))

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"action":"page_count","file":"missing.pdf"}`))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !res.IsError {
		t.Error("expected error result for missing document")
	}
}
