package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestRegistryRegisterGet(t *testing.T) {
	r := NewToolRegistry()
	tool := &echoTool{}
	r.Register(tool)

	got, ok := r.Get("echo")
	if !ok {
		t.Fatal("expected to find echo tool")
	}
	if got.Name() != "echo" {
		t.Errorf("Name = %s, want echo", got.Name())
	}

	r.Unregister("echo")
	if _, ok := r.Get("echo"); ok {
		t.Error("tool should be gone after Unregister")
	}
}

func TestRegistryExecuteNotFound(t *testing.T) {
	r := NewToolRegistry()
	res, err := r.Execute(context.Background(), "nope", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !res.IsError {
		t.Error("expected error result")
	}
	if res.Content != "tool not found: nope" {
		t.Errorf("Content = %q", res.Content)
	}
}

func TestRegistryExecuteLimits(t *testing.T) {
	r := NewToolRegistry()
	r.Register(&echoTool{})

	longName := strings.Repeat("x", MaxToolNameLength+1)
	res, err := r.Execute(context.Background(), longName, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !res.IsError {
		t.Error("expected error result for oversized name")
	}

	bigParams := json.RawMessage(`"` + strings.Repeat("a", MaxToolParamsSize) + `"`)
	res, err = r.Execute(context.Background(), "echo", bigParams)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !res.IsError {
		t.Error("expected error result for oversized params")
	}
}

func TestRegistryAsLLMTools(t *testing.T) {
	r := NewToolRegistry()
	if len(r.AsLLMTools()) != 0 {
		t.Error("expected empty tool list")
	}
	r.Register(&echoTool{})
	if len(r.AsLLMTools()) != 1 {
		t.Error("expected one tool")
	}
}
