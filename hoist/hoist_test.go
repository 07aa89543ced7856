package hoist

import (
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/denghongcai/npm-dep-tree-analyzer/tree"
)

var testLog = slog.New(slog.DiscardHandler)

func node(name, version string, peers map[string]string, children ...*tree.Node) *tree.Node {
	n := &tree.Node{
		Name:             name,
		Version:          version,
		Dependencies:     map[string]*tree.Node{},
		PeerDependencies: map[string]string{},
	}
	for k, v := range peers {
		n.PeerDependencies[k] = v
	}
	for _, child := range children {
		n.Dependencies[child.Name] = child
	}
	return n
}

func TestPlan(t *testing.T) {
	t.Run("conflict-free trees flatten entirely to root", func(t *testing.T) {
		root := node("app", "1.0.0", nil,
			node("a", "1.0.0", nil,
				node("shared", "2.0.0", nil)),
			node("b", "1.0.0", nil,
				node("shared", "2.0.0", nil)))

		plan := New(testLog).Plan(root)

		if len(plan.Nested) != 0 {
			t.Errorf("expected nothing nested, got %v", plan.Nested)
		}
		names := []string{"app", "a", "b", "shared"}
		if len(plan.Root) != len(names) {
			t.Fatalf("expected %d root entries, got %d", len(names), len(plan.Root))
		}
		for _, name := range names {
			if _, ok := plan.Root[name]; !ok {
				t.Errorf("expected %s at root", name)
			}
		}
		if plan.Root["shared"].Version != "2.0.0" {
			t.Errorf("unexpected shared version: %q", plan.Root["shared"].Version)
		}
	})

	t.Run("version conflicts nest under the logical parent key", func(t *testing.T) {
		root := node("app", "1.0.0", nil,
			node("a", "1.0.0", nil,
				node("dup", "1.0.0", nil)),
			node("b", "1.0.0", nil,
				node("dup", "2.0.0", nil)))

		plan := New(testLog).Plan(root)

		// Sorted walk order: a's dup reaches root first.
		if plan.Root["dup"].Version != "1.0.0" {
			t.Errorf("expected dup@1.0.0 at root, got %q", plan.Root["dup"].Version)
		}
		nested, ok := plan.Nested["b@1.0.0"]
		if !ok {
			t.Fatalf("expected a nested bucket under b@1.0.0, got %v", plan.Nested)
		}
		expected := Dependency{
			Name:             "dup",
			Version:          "2.0.0",
			Dependencies:     map[string]string{},
			PeerDependencies: map[string]string{},
			Parent:           "b@1.0.0",
		}
		if diff := cmp.Diff(expected, nested["dup"]); diff != "" {
			t.Error(diff)
		}
	})

	t.Run("identical versions reuse the root placement", func(t *testing.T) {
		root := node("app", "1.0.0", nil,
			node("a", "1.0.0", nil,
				node("shared", "3.1.0", nil)),
			node("b", "1.0.0", nil,
				node("shared", "3.1.0", nil)))

		plan := New(testLog).Plan(root)

		if len(plan.Nested) != 0 {
			t.Errorf("expected the duplicate to reuse root, got %v", plan.Nested)
		}
	})

	t.Run("root peer declarations veto unsatisfying candidates", func(t *testing.T) {
		// a declares a peer on react@^18; b pulls react@17.0.2 as a
		// regular dependency. One react lands at root, the other nests.
		root := node("app", "1.0.0", nil,
			node("a", "1.0.0", map[string]string{"react": "^18.0.0"}),
			node("b", "1.0.0", nil,
				node("react", "17.0.2", nil)))

		plan := New(testLog).Plan(root)

		if _, ok := plan.Root["react"]; ok {
			t.Error("react@17.0.2 must not hoist past a's peer on ^18")
		}
		nested, ok := plan.Nested["b@1.0.0"]
		if !ok || nested["react"].Version != "17.0.2" {
			t.Fatalf("expected react@17.0.2 nested under b@1.0.0, got %v", plan.Nested)
		}
	})

	t.Run("candidate peers must be satisfied by existing root packages", func(t *testing.T) {
		root := node("app", "1.0.0", nil,
			node("react", "17.0.2", nil),
			node("ui-kit", "1.0.0", map[string]string{"react": "^18.0.0"}))

		plan := New(testLog).Plan(root)

		if _, ok := plan.Root["ui-kit"]; ok {
			t.Error("ui-kit must not hoist next to an unsatisfying react")
		}
		nested, ok := plan.Nested["app@1.0.0"]
		if !ok || nested["ui-kit"].Version != "1.0.0" {
			t.Fatalf("expected ui-kit nested under app@1.0.0, got %v", plan.Nested)
		}
	})

	t.Run("a peer with no root package yet is deferred, not a violation", func(t *testing.T) {
		root := node("app", "1.0.0", nil,
			node("ui-kit", "1.0.0", map[string]string{"react": "^18.0.0"}))

		plan := New(testLog).Plan(root)

		if _, ok := plan.Root["ui-kit"]; !ok {
			t.Error("expected ui-kit to hoist when its peer is absent")
		}
	})

	t.Run("hoisted records carry resolved dependency versions", func(t *testing.T) {
		root := node("app", "1.0.0", nil,
			node("a", "1.0.0", nil,
				node("leaf", "2.0.0", nil)))

		plan := New(testLog).Plan(root)

		if diff := cmp.Diff(map[string]string{"leaf": "2.0.0"}, plan.Root["a"].Dependencies); diff != "" {
			t.Error(diff)
		}
		if diff := cmp.Diff(map[string]string{"a": "1.0.0"}, plan.Root["app"].Dependencies); diff != "" {
			t.Error(diff)
		}
	})
}

func TestVersionConflict(t *testing.T) {
	tests := []struct {
		name      string
		existing  string
		candidate string
		expected  bool
	}{
		{"equal strings", "1.2.3", "1.2.3", false},
		{"differing concrete versions", "1.2.3", "1.2.4", true},
		{"concrete satisfies range", "4.18.2", "^4.0.0", false},
		{"concrete outside range", "4.18.2", "^5.0.0", true},
		{"range vs satisfying concrete", "^4.0.0", "4.18.2", false},
		{"range vs outside concrete", "^4.0.0", "5.0.0", true},
		{"two ranges are conservatively a conflict", "^4.0.0", "^4.1.0", true},
		{"equal ranges are not a conflict", "^4.0.0", "^4.0.0", false},
		{"unparseable input is a conflict", "garbage!!", "1.2.3", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if actual := versionConflict(tt.existing, tt.candidate); actual != tt.expected {
				t.Errorf("versionConflict(%q, %q): got %v, want %v", tt.existing, tt.candidate, actual, tt.expected)
			}
		})
	}
}
