// Package tree builds an ordered file tree from a byte store listing.
package tree

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"summeriq/internal/bytestore"
)

// FileNode is one file or directory. Path is relative to the build root
// and '/'-joined.
type FileNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	IsDir    bool        `json:"is_dir"`
	Children []*FileNode `json:"children,omitempty"`
}

// Lister is the part of bytestore.Store the builder needs.
type Lister interface {
	ListChildren(ctx context.Context, dirKey string) ([]bytestore.Entry, error)
}

// IOError wraps a listing failure with the directory that failed.
type IOError struct {
	Dir string
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("tree: list %q: %v", e.Dir, e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

type Limits struct {
	MaxDepth int // number of levels listed; deeper directories have no children
	MaxNodes int
}

func DefaultLimits() Limits { return Limits{MaxDepth: 32, MaxNodes: 20_000} }

// Result is a built tree plus how much of it was kept.
type Result struct {
	Nodes     []*FileNode
	Count     int
	Truncated bool
}

// Build walks root breadth first with an explicit queue. Each sibling list is
// sorted as soon as it is read, so truncation by MaxNodes keeps the
// shallowest, first-ordered nodes.
func Build(ctx context.Context, l Lister, root string, limits Limits) (*Result, error) {
	type frame struct {
		key   string // store key
		rel   string // path relative to root
		depth int
		slot  *[]*FileNode
	}

	res := &Result{}
	queue := []frame{{key: root, rel: "", depth: 0, slot: &res.Nodes}}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fr := queue[0]
		queue = queue[1:]

		entries, err := l.ListChildren(ctx, fr.key)
		if err != nil {
			return nil, &IOError{Dir: fr.key, Err: err}
		}
		SortEntries(entries)

		children := make([]*FileNode, 0, len(entries))
		for _, e := range entries {
			if limits.MaxNodes > 0 && res.Count >= limits.MaxNodes {
				res.Truncated = true
				break
			}
			p := e.Name
			if fr.rel != "" {
				p = fr.rel + "/" + e.Name
			}
			n := &FileNode{Name: e.Name, Path: p, IsDir: e.IsDir}
			children = append(children, n)
			res.Count++
			if !e.IsDir {
				continue
			}
			if limits.MaxDepth > 0 && fr.depth+1 >= limits.MaxDepth {
				res.Truncated = true
				continue
			}
			queue = append(queue, frame{
				key:   bytestore.JoinKey(fr.key, e.Name),
				rel:   p,
				depth: fr.depth + 1,
				slot:  &n.Children,
			})
		}
		*fr.slot = children
		if res.Truncated && limits.MaxNodes > 0 && res.Count >= limits.MaxNodes {
			break
		}
	}
	return res, nil
}

// BuildTree is Build with default limits, returning only the nodes.
func BuildTree(ctx context.Context, l Lister, root string) ([]*FileNode, error) {
	res, err := Build(ctx, l, root, DefaultLimits())
	if err != nil {
		return nil, err
	}
	return res.Nodes, nil
}

// SortEntries orders directories before files, then by name.
func SortEntries(entries []bytestore.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})
}

// Item is one row of a flattened tree.
type Item struct {
	Path  string
	IsDir bool
}

// Depth counts path separators.
func (it Item) Depth() int { return strings.Count(it.Path, "/") }

// Flatten lists nodes in pre-order: a directory is emitted, then its
// contents.
func Flatten(nodes []*FileNode) []Item {
	var out []Item
	stack := make([]*FileNode, 0, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, nodes[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, Item{Path: n.Path, IsDir: n.IsDir})
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return out
}

// Render draws the flattened tree as an indented listing, two spaces per
// level, directories suffixed with '/'.
func Render(nodes []*FileNode) string {
	var b strings.Builder
	for _, it := range Flatten(nodes) {
		name := it.Path
		if i := strings.LastIndexByte(name, '/'); i >= 0 {
			name = name[i+1:]
		}
		b.WriteString(strings.Repeat("  ", it.Depth()))
		b.WriteString(name)
		if it.IsDir {
			b.WriteByte('/')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderLines is Render split into one string per row.
func RenderLines(nodes []*FileNode) []string {
	if len(nodes) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(Render(nodes), "\n"), "\n")
}
