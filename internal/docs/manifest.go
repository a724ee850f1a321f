package docs

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/modfile"

	"summeriq/internal/selector"
	"summeriq/internal/tree"
)

type manifestParser func(content []byte) ([]string, error)

var manifestParsers = map[string]manifestParser{
	"package.json":     parsePackageJSON,
	"Cargo.toml":       parseCargoToml,
	"go.mod":           parseGoMod,
	"requirements.txt": parseRequirements,
}

// IsManifest reports whether the base name of p is a dependency manifest.
func IsManifest(p string) bool {
	_, ok := manifestParsers[path.Base(p)]
	return ok
}

// ParseManifest returns the dependency names declared in a manifest, in
// declaration order where the format has one.
func ParseManifest(p string, content []byte) ([]string, error) {
	parse, ok := manifestParsers[path.Base(p)]
	if !ok {
		return nil, fmt.Errorf("docs: %s is not a known manifest", p)
	}
	deps, err := parse(content)
	if err != nil {
		return nil, fmt.Errorf("docs: parse %s: %w", p, err)
	}
	return deps, nil
}

// findManifests returns up to MaxManifests manifest paths from flat that the
// selector does not ignore, shallowest first.
func findManifests(flat []tree.Item, sel *selector.Selector) []string {
	var out []string
	for _, it := range flat {
		if it.IsDir || !IsManifest(it.Path) || sel.Ignored(it.Path) {
			continue
		}
		out = append(out, it.Path)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return selector.Depth(out[i]) < selector.Depth(out[j])
	})
	if len(out) > MaxManifests {
		out = out[:MaxManifests]
	}
	return out
}

func parsePackageJSON(content []byte) ([]string, error) {
	var pkg struct {
		Dependencies    map[string]json.RawMessage `json:"dependencies"`
		DevDependencies map[string]json.RawMessage `json:"devDependencies"`
	}
	if err := json.Unmarshal(content, &pkg); err != nil {
		return nil, err
	}
	deps := sortedKeys(pkg.Dependencies)
	return append(deps, sortedKeys(pkg.DevDependencies)...), nil
}

func sortedKeys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var cargoDependencyTables = map[string]bool{
	"dependencies":       true,
	"dev-dependencies":   true,
	"build-dependencies": true,
}

// parseCargoToml returns crate names from the dependency tables, including
// the per-target ones under [target.<cfg>], in declaration order.
func parseCargoToml(content []byte) ([]string, error) {
	var doc map[string]any
	md, err := toml.Decode(string(content), &doc)
	if err != nil {
		return nil, err
	}
	var (
		deps []string
		seen = make(map[string]bool)
	)
	for _, key := range md.Keys() {
		name, ok := cargoDependencyName(key)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		deps = append(deps, name)
	}
	return deps, nil
}

// cargoDependencyName matches dependencies.<name> and
// target.<cfg>.dependencies.<name> (and the dev/build variants).
func cargoDependencyName(key toml.Key) (string, bool) {
	switch {
	case len(key) == 2 && cargoDependencyTables[key[0]]:
		return key[1], true
	case len(key) == 4 && key[0] == "target" && cargoDependencyTables[key[2]]:
		return key[3], true
	}
	return "", false
}

func parseGoMod(content []byte) ([]string, error) {
	f, err := modfile.ParseLax("go.mod", content, nil)
	if err != nil {
		return nil, err
	}
	var deps []string
	for _, r := range f.Require {
		if r.Indirect {
			continue
		}
		deps = append(deps, r.Mod.Path)
	}
	return deps, nil
}

func parseRequirements(content []byte) ([]string, error) {
	var deps []string
	sc := bufio.NewScanner(bytes.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if i := strings.Index(line, " #"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if i := strings.IndexAny(line, "=<>!~;[ @"); i >= 0 {
			line = line[:i]
		}
		if line != "" {
			deps = append(deps, line)
		}
	}
	return deps, sc.Err()
}

// mergeDependencies returns the sorted set union of lists.
func mergeDependencies(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, l := range lists {
		for _, d := range l {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}
