// Package hoist converts a logical dependency tree into a hoisted tree
// that simulates flattening packages into a shared installation root.
package hoist

import (
	"log/slog"
	"maps"
	"slices"

	"github.com/denghongcai/npm-dep-tree-analyzer/semver"
	"github.com/denghongcai/npm-dep-tree-analyzer/tree"
)

// Dependency is a record placed somewhere in the hoisted tree.
type Dependency struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	// Dependencies maps each directly declared dependency name to the
	// version it resolved to. Recursion happens by lookup through the
	// hoisted tree, not through nested objects.
	Dependencies     map[string]string `json:"dependencies"`
	PeerDependencies map[string]string `json:"peerDependencies"`
	// Parent is the logical parent key this entry nests under; empty
	// means the entry sits at the root level.
	Parent string `json:"parent,omitempty"`
}

// Tree is the result of hoisting. Names are unique at the root level
// and within each nested bucket.
type Tree struct {
	Root   map[string]Dependency            `json:"root"`
	Nested map[string]map[string]Dependency `json:"nested"`
}

func NewTree() *Tree {
	return &Tree{
		Root:   map[string]Dependency{},
		Nested: map[string]map[string]Dependency{},
	}
}

// Planner places the nodes of a logical tree into a hoisted tree.
type Planner struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Planner {
	return &Planner{log: log}
}

// Plan walks the logical tree depth-first and places each node either
// at the root level or nested under its logical parent. The root node
// itself is placed at root unconditionally. Placement decisions are
// never revisited: the first node to reach a name keeps the root slot.
func (p *Planner) Plan(root *tree.Node) *Tree {
	t := NewTree()
	t.Root[root.Name] = newDependency(root, "")
	p.walk(t, root)
	return t
}

func (p *Planner) walk(t *Tree, parent *tree.Node) {
	parentKey := parent.Key()
	for _, name := range slices.Sorted(maps.Keys(parent.Dependencies)) {
		d := parent.Dependencies[name]
		existing, atRoot := t.Root[d.Name]
		switch {
		case !atRoot && p.canHoist(t, d):
			t.Root[d.Name] = newDependency(d, "")
		case atRoot && !versionConflict(existing.Version, d.Version) && p.canHoist(t, d):
			// Already hoisted; reuse the root placement.
		default:
			p.log.Debug("nesting dependency", slog.String("package", d.Key()), slog.String("parent", parentKey))
			bucket, ok := t.Nested[parentKey]
			if !ok {
				bucket = map[string]Dependency{}
				t.Nested[parentKey] = bucket
			}
			bucket[d.Name] = newDependency(d, parentKey)
		}
		p.walk(t, d)
	}
}

// canHoist reports whether the candidate may be placed at the root
// level: every peer declaration already at root that names the
// candidate must be satisfied by the candidate's version, and every
// peer the candidate declares must be satisfied by the root package of
// that name, if one exists. A peer with no root package yet is
// deferred, not a violation.
func (p *Planner) canHoist(t *Tree, candidate *tree.Node) bool {
	for _, placed := range t.Root {
		for peerName, peerRange := range placed.PeerDependencies {
			if peerName != candidate.Name {
				continue
			}
			if !semver.Satisfies(candidate.Version, peerRange) {
				return false
			}
		}
	}
	for peerName, peerRange := range candidate.PeerDependencies {
		placed, ok := t.Root[peerName]
		if !ok {
			continue
		}
		if !semver.Satisfies(placed.Version, peerRange) {
			return false
		}
	}
	return true
}

// versionConflict reports whether an existing root placement and a
// candidate for the same name cannot share one installation. Two ranges
// are conservatively treated as conflicting rather than attempting
// range intersection.
func versionConflict(existing, candidate string) bool {
	if existing == candidate {
		return false
	}
	existingConcrete := semver.Valid(existing)
	candidateConcrete := semver.Valid(candidate)
	switch {
	case existingConcrete && candidateConcrete:
		return true
	case existingConcrete && semver.ValidRange(candidate):
		return !semver.Satisfies(existing, candidate)
	case candidateConcrete && semver.ValidRange(existing):
		return !semver.Satisfies(candidate, existing)
	default:
		return true
	}
}

func newDependency(n *tree.Node, parent string) Dependency {
	deps := make(map[string]string, len(n.Dependencies))
	for name, child := range n.Dependencies {
		deps[name] = child.Version
	}
	peers := map[string]string{}
	maps.Copy(peers, n.PeerDependencies)
	return Dependency{
		Name:             n.Name,
		Version:          n.Version,
		Dependencies:     deps,
		PeerDependencies: peers,
		Parent:           parent,
	}
}
