package tools

import (
	"context"
	"testing"
)

type stubTool struct {
	name string
	desc string
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return s.desc }
func (s *stubTool) Execute(ctx context.Context, args Args) Outcome {
	return ok("%s ran", s.name)
}

func TestArgsString(t *testing.T) {
	args := Args{
		"url":      "https://example.com",
		"count":    float64(2500),
		"fraction": float64(2.5),
		"flag":     true,
		"empty":    nil,
	}

	tests := []struct {
		key  string
		want string
	}{
		{"url", "https://example.com"},
		{"count", "2500"},
		{"fraction", "2.5"},
		{"flag", "true"},
		{"empty", ""},
		{"missing", ""},
	}
	for _, tt := range tests {
		if got := args.String(tt.key); got != tt.want {
			t.Errorf("String(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestArgsInt(t *testing.T) {
	args := Args{
		"timeout": float64(5000),
		"retries": 3,
		"port":    "8080",
		"bad":     "not-a-number",
		"flag":    true,
	}

	tests := []struct {
		key  string
		def  int
		want int
	}{
		{"timeout", 10000, 5000},
		{"retries", 0, 3},
		{"port", 0, 8080},
		{"bad", 99, 99},
		{"flag", 7, 7},
		{"missing", 10000, 10000},
	}
	for _, tt := range tests {
		if got := args.Int(tt.key, tt.def); got != tt.want {
			t.Errorf("Int(%q, %d) = %d, want %d", tt.key, tt.def, got, tt.want)
		}
	}
}

func TestArgsBool(t *testing.T) {
	args := Args{
		"headless": false,
		"visible":  "true",
		"bad":      "maybe",
	}

	tests := []struct {
		key  string
		def  bool
		want bool
	}{
		{"headless", true, false},
		{"visible", false, true},
		{"bad", true, true},
		{"missing", false, false},
	}
	for _, tt := range tests {
		if got := args.Bool(tt.key, tt.def); got != tt.want {
			t.Errorf("Bool(%q, %v) = %v, want %v", tt.key, tt.def, got, tt.want)
		}
	}
}

func TestOutcomeHelpers(t *testing.T) {
	success := ok("did %d things", 3)
	if !success.OK || success.Report != "✅ did 3 things" {
		t.Errorf("ok() = %+v", success)
	}

	failure := fail("lost %s", "the page")
	if failure.OK || failure.Report != "❌ lost the page" {
		t.Errorf("fail() = %+v", failure)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "alpha"})
	r.Register(&stubTool{name: "beta"})
	r.Register(&stubTool{name: "gamma"})

	wantNames := []string{"alpha", "beta", "gamma"}
	names := r.Names()
	if len(names) != len(wantNames) {
		t.Fatalf("Names() = %v, want %v", names, wantNames)
	}
	for i, name := range wantNames {
		if names[i] != name {
			t.Errorf("Names()[%d] = %s, want %s", i, names[i], name)
		}
	}

	if _, found := r.Get("beta"); !found {
		t.Error("Get(beta) not found")
	}
	if _, found := r.Get("delta"); found {
		t.Error("Get(delta) found unregistered tool")
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("List() returned %d tools, want 3", len(list))
	}
	for i, tl := range list {
		if tl.Name() != wantNames[i] {
			t.Errorf("List()[%d] = %s, want %s", i, tl.Name(), wantNames[i])
		}
	}
}

func TestRegistryReplaceKeepsPosition(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "alpha", desc: "old"})
	r.Register(&stubTool{name: "beta"})
	r.Register(&stubTool{name: "alpha", desc: "new"})

	names := r.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Fatalf("Names() = %v, want [alpha beta]", names)
	}
	got, _ := r.Get("alpha")
	if got.Description() != "new" {
		t.Errorf("Description() = %q, want %q after replace", got.Description(), "new")
	}
}

func TestRegistryNamesIsCopy(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubTool{name: "alpha"})

	names := r.Names()
	names[0] = "mutated"

	if got := r.Names()[0]; got != "alpha" {
		t.Errorf("Names()[0] = %s after caller mutation, want alpha", got)
	}
}
