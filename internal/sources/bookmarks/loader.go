// Package bookmarks reads a browser bookmark-tree export.
//
// The file is YAML: a list of nodes with id, title, url and children.
// JSON exports parse as well since JSON is valid YAML.
package bookmarks

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/bkmeta/internal/domain"
)

// Loader handles loading and parsing of a bookmark tree file
type Loader struct {
	filePath string
}

// NewLoader creates a new bookmark tree loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Path returns the watched file
func (l *Loader) Path() string { return l.filePath }

// Load reads and parses the tree
func (l *Loader) Load() ([]domain.BookmarkNode, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read bookmarks file: %w", err)
	}

	data = stripTemplateVariables(data)

	var nodes []domain.BookmarkNode
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("failed to parse bookmarks yaml: %w", err)
	}

	return nodes, nil
}

var templateVar = regexp.MustCompile(`\{\{[^}]+\}\}`)

// stripTemplateVariables blanks {{...}} placeholders left by generators
func stripTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAll(data, []byte(`""`))
}

// Flatten walks the tree depth-first and returns the nodes that carry a
// URL. Folders are skipped; the first occurrence of a URL wins.
func Flatten(nodes []domain.BookmarkNode) []domain.BookmarkNode {
	seen := make(map[string]bool)
	var out []domain.BookmarkNode

	var walk func([]domain.BookmarkNode)
	walk = func(level []domain.BookmarkNode) {
		for _, n := range level {
			if n.URL != "" && !seen[n.URL] {
				seen[n.URL] = true
				out = append(out, domain.BookmarkNode{ID: n.ID, Title: n.Title, URL: n.URL})
			}
			walk(n.Children)
		}
	}
	walk(nodes)

	return out
}
