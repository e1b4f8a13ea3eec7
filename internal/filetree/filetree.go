// Package filetree groups a flat file list into a nested directory tree for
// display.
package filetree

import (
	"sort"
	"strings"

	"github.com/pendergraft/contractlens/internal/artifact"
)

// NodeType is file or directory
type NodeType string

const (
	TypeFile      NodeType = "file"
	TypeDirectory NodeType = "directory"
)

// Node is one entry of the tree. A directory whose only child is a
// directory is merged with it, so Name may span several segments ("a/b").
// A file and a directory may share a name; they are kept as two siblings.
type Node struct {
	Name     string   `json:"name"`
	Type     NodeType `json:"type"`
	Path     string   `json:"path"`
	Content  *string  `json:"content,omitempty"`
	Children []*Node  `json:"children,omitempty"`
}

// Build returns the children of the root directory for files
func Build(files []artifact.File) []*Node {
	root := &Node{Type: TypeDirectory}

	for _, f := range files {
		segments := splitPath(f.Path)
		if len(segments) == 0 {
			continue
		}

		dir := root
		for i, seg := range segments[:len(segments)-1] {
			dir = dir.childDir(seg, strings.Join(segments[:i+1], "/"))
		}

		content := f.Content
		name := segments[len(segments)-1]
		if dir.child(name, TypeFile) != nil {
			continue
		}
		dir.Children = append(dir.Children, &Node{
			Name:    name,
			Type:    TypeFile,
			Path:    strings.Join(segments, "/"),
			Content: &content,
		})
	}

	for i, c := range root.Children {
		root.Children[i] = compress(c)
	}
	sortTree(root)
	return root.Children
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" && seg != "." {
			out = append(out, seg)
		}
	}
	return out
}

func (n *Node) child(name string, typ NodeType) *Node {
	for _, c := range n.Children {
		if c.Name == name && c.Type == typ {
			return c
		}
	}
	return nil
}

func (n *Node) childDir(name, path string) *Node {
	if c := n.child(name, TypeDirectory); c != nil {
		return c
	}
	d := &Node{Name: name, Type: TypeDirectory, Path: path}
	n.Children = append(n.Children, d)
	return d
}

// compress merges single-child directory chains bottom-up
func compress(n *Node) *Node {
	if n.Type != TypeDirectory {
		return n
	}
	for i, c := range n.Children {
		n.Children[i] = compress(c)
	}
	if len(n.Children) == 1 && n.Children[0].Type == TypeDirectory {
		only := n.Children[0]
		return &Node{
			Name:     n.Name + "/" + only.Name,
			Type:     TypeDirectory,
			Path:     only.Path,
			Children: only.Children,
		}
	}
	return n
}

// sortTree orders directories before files, then by name
func sortTree(n *Node) {
	sort.SliceStable(n.Children, func(i, j int) bool {
		a, b := n.Children[i], n.Children[j]
		if a.Type != b.Type {
			return a.Type == TypeDirectory
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	for _, c := range n.Children {
		sortTree(c)
	}
}
