package tree

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"summeriq/internal/bytestore"
	"summeriq/internal/tester"
)

func write(t *testing.T, st bytestore.Store, key, content string) {
	t.Helper()
	tester.NoErr(t, st.Write(context.Background(), key, []byte(content)), "write "+key)
}

func names(nodes []*FileNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name)
	}
	return out
}

func TestBuildTreeOrdersDirectoriesFirst(t *testing.T) {
	st := bytestore.NewMemoryStore()
	write(t, st, "src/main.ext", "main")
	write(t, st, "README.md", "readme")
	write(t, st, "pkg/util.ext", "util")

	nodes, err := BuildTree(context.Background(), st, "")
	tester.NoErr(t, err)
	tester.Eq(t, names(nodes), []string{"pkg", "src", "README.md"})
	tester.Eq(t, nodes[0].Children[0].Path, "pkg/util.ext")
	tester.Eq(t, nodes[1].Children[0].Path, "src/main.ext")
}

func TestBuildTreeSiblingInvariantHolds(t *testing.T) {
	st := bytestore.NewMemoryStore()
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("d%d/e%d/f%d.txt", r.Intn(4), r.Intn(5), r.Intn(30))
		if r.Intn(3) == 0 {
			key = fmt.Sprintf("f%d.txt", r.Intn(30))
		}
		write(t, st, key, "x")
	}
	nodes, err := BuildTree(context.Background(), st, "")
	tester.NoErr(t, err)

	var check func(level []*FileNode)
	check = func(level []*FileNode) {
		var dirs, files []string
		seenFile := false
		for _, n := range level {
			if n.IsDir {
				tester.True(t, !seenFile, "directory %s after a file", n.Path)
				dirs = append(dirs, n.Name)
				check(n.Children)
			} else {
				seenFile = true
				files = append(files, n.Name)
			}
		}
		tester.True(t, sort.StringsAreSorted(dirs), "dirs unsorted: %v", dirs)
		tester.True(t, sort.StringsAreSorted(files), "files unsorted: %v", files)
	}
	check(nodes)
}

func TestFlattenIsPreOrder(t *testing.T) {
	st := bytestore.NewMemoryStore()
	write(t, st, "a/b/c.txt", "")
	write(t, st, "a/d.txt", "")
	write(t, st, "z.txt", "")

	nodes, err := BuildTree(context.Background(), st, "")
	tester.NoErr(t, err)
	tester.Eq(t, Flatten(nodes), []Item{
		{Path: "a", IsDir: true},
		{Path: "a/b", IsDir: true},
		{Path: "a/b/c.txt"},
		{Path: "a/d.txt"},
		{Path: "z.txt"},
	})
	tester.Eq(t, Render(nodes), "a/\n  b/\n    c.txt\n  d.txt\nz.txt\n")
}

func TestBuildRespectsDepthLimit(t *testing.T) {
	st := bytestore.NewMemoryStore()
	write(t, st, "l1/l2/l3/l4/deep.txt", "")

	res, err := Build(context.Background(), st, "", Limits{MaxDepth: 2})
	tester.NoErr(t, err)
	tester.True(t, res.Truncated, "expected truncation")
	tester.Eq(t, res.Nodes[0].Children[0].Path, "l1/l2")
	tester.Eq(t, len(res.Nodes[0].Children[0].Children), 0)
}

func TestBuildRespectsNodeLimit(t *testing.T) {
	st := bytestore.NewMemoryStore()
	for i := 0; i < 50; i++ {
		write(t, st, fmt.Sprintf("dir/f%02d.txt", i), "")
	}
	res, err := Build(context.Background(), st, "", Limits{MaxNodes: 10})
	tester.NoErr(t, err)
	tester.True(t, res.Truncated, "expected truncation")
	tester.Eq(t, res.Count, 10)
	tester.Eq(t, len(Flatten(res.Nodes)), 10)
}

type failingLister struct{}

func (failingLister) ListChildren(context.Context, string) ([]bytestore.Entry, error) {
	return nil, errors.New("disk on fire")
}

func TestBuildWrapsListingErrors(t *testing.T) {
	_, err := BuildTree(context.Background(), failingLister{}, "root")
	var ioErr *IOError
	tester.True(t, errors.As(err, &ioErr), "want IOError, got %v", err)
	tester.Eq(t, ioErr.Dir, "root")
}

func TestBuildUnderSubtree(t *testing.T) {
	st := bytestore.NewMemoryStore()
	write(t, st, "projects/x/files/main.go", "")
	nodes, err := BuildTree(context.Background(), st, "projects/x/files")
	tester.NoErr(t, err)
	tester.Eq(t, names(nodes), []string{"main.go"})
	tester.Eq(t, nodes[0].Path, "main.go")
}
