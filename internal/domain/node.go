package domain

// BookmarkNode is a node of the browser bookmark tree. Folders have no URL.
// Only URL and Title matter to this module; the tree structure is walked
// by the source and never stored.
type BookmarkNode struct {
	ID       string         `json:"id,omitempty" yaml:"id"`
	Title    string         `json:"title,omitempty" yaml:"title"`
	URL      string         `json:"url,omitempty" yaml:"url"`
	Children []BookmarkNode `json:"children,omitempty" yaml:"children"`
}
