package bookmarks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MrSnakeDoc/bkmeta/internal/domain"
)

func writeTree(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bookmarks.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test YAML file: %v", err)
	}
	return path
}

func TestLoaderLoad(t *testing.T) {
	path := writeTree(t, `---
- id: "1"
  title: Toolbar
  children:
    - id: "2"
      title: Go
      url: https://go.dev/
    - id: "3"
      title: Dev
      children:
        - id: "4"
          title: Example
          url: https://example.com/
`)

	nodes, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("Load() returned %d roots, want 1", len(nodes))
	}
	if got := len(nodes[0].Children); got != 2 {
		t.Errorf("children = %d, want 2", got)
	}
}

func TestLoaderLoadJSON(t *testing.T) {
	path := writeTree(t, `[{"id":"1","title":"Go","url":"https://go.dev/"}]`)

	nodes, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(nodes) != 1 || nodes[0].URL != "https://go.dev/" {
		t.Errorf("Load() = %+v", nodes)
	}
}

func TestLoaderLoadWithTemplateVariables(t *testing.T) {
	path := writeTree(t, `---
- title: Secret
  url: {{BOOKMARK_VAR_URL}}
- title: Go
  url: https://go.dev/
`)

	nodes, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	flat := Flatten(nodes)
	if len(flat) != 1 || flat[0].URL != "https://go.dev/" {
		t.Errorf("Flatten() = %+v, want only go.dev", flat)
	}
}

func TestLoaderLoadErrors(t *testing.T) {
	if _, err := NewLoader(filepath.Join(t.TempDir(), "missing.yaml")).Load(); err == nil {
		t.Error("Load() on missing file should fail")
	}

	path := writeTree(t, "- title: [unclosed\n")
	if _, err := NewLoader(path).Load(); err == nil {
		t.Error("Load() on invalid yaml should fail")
	}
}

func TestFlatten(t *testing.T) {
	tree := []domain.BookmarkNode{
		{ID: "1", Title: "Folder", Children: []domain.BookmarkNode{
			{ID: "2", Title: "Go", URL: "https://go.dev/"},
			{ID: "3", Title: "Nested", Children: []domain.BookmarkNode{
				{ID: "4", Title: "Example", URL: "https://example.com/"},
				{ID: "5", Title: "Go again", URL: "https://go.dev/"},
			}},
		}},
		{ID: "6", Title: "Top", URL: "https://top.example/"},
	}

	got := Flatten(tree)
	want := []string{"https://go.dev/", "https://example.com/", "https://top.example/"}
	if len(got) != len(want) {
		t.Fatalf("Flatten() len = %d, want %d", len(got), len(want))
	}
	for i, u := range want {
		if got[i].URL != u {
			t.Errorf("Flatten()[%d].URL = %q, want %q", i, got[i].URL, u)
		}
	}
	if got[0].Title != "Go" {
		t.Errorf("first occurrence should win, got title %q", got[0].Title)
	}
	if got[0].Children != nil {
		t.Error("flattened nodes should not carry children")
	}
}

func TestFlattenEmpty(t *testing.T) {
	if got := Flatten(nil); len(got) != 0 {
		t.Errorf("Flatten(nil) = %v", got)
	}
}
