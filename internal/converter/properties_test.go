package converter

import (
	"context"
	"testing"

	"dnaconverter/pkg/plugin"

	"pgregory.net/rapid"
)

// TestController_Properties drives a controller through random add, remove,
// rename and validate sequences and checks the dispatch and naming rules
// after every step.
func TestController_Properties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h := newHarness(t)
		kinds := []string{"pre", "std", "foo"}
		dnaNames := []string{"height", "weight", "width", "arm", ""}

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 3).Draw(rt, "op") {
			case 0:
				kind := rapid.SampledFrom(kinds).Draw(rt, "kind")
				declared := rapid.SliceOfN(rapid.SampledFrom(dnaNames), 0, 3).Draw(rt, "names")
				p, err := h.c.Add(kind)
				if err != nil {
					rt.Fatalf("add %s: %v", kind, err)
				}
				fp := p.(*fakePlugin)
				fp.names = make(map[string][]int)
				for j, name := range declared {
					fp.names[name] = append(fp.names[name], j)
				}
			case 1:
				if h.c.Count() == 0 {
					continue
				}
				idx := rapid.IntRange(0, h.c.Count()-1).Draw(rt, "remove")
				p, _ := h.c.PluginAt(idx)
				if !h.c.Remove(p) {
					rt.Fatalf("remove of member %s returned false", p.Name())
				}
			case 2:
				if h.c.Count() == 0 {
					continue
				}
				idx := rapid.IntRange(0, h.c.Count()-1).Draw(rt, "rename")
				p, _ := h.c.PluginAt(idx)
				desired := rapid.SampledFrom([]string{"Pre", "Std", "Foo", "Foo1", "Bar"}).Draw(rt, "desired")
				if _, err := h.c.Rename(p, desired); err != nil {
					rt.Fatalf("rename: %v", err)
				}
			case 3:
				h.c.Validate()
			}

			checkInvariants(rt, h)
		}
	})
}

func checkInvariants(rt *rapid.T, h *harness) {
	plugins := h.c.Plugins()

	// Names are unique at every instant.
	seen := make(map[string]bool)
	for _, p := range plugins {
		if seen[p.Name()] {
			rt.Fatalf("duplicate name %q in %v", p.Name(), names(plugins))
		}
		seen[p.Name()] = true
	}

	// Each pass runs exactly its members, in insertion order.
	var wantPre, wantStd []string
	for _, p := range plugins {
		if p.ApplyPass() == plugin.PassPrePass {
			wantPre = append(wantPre, p.Name())
		} else {
			wantStd = append(wantStd, p.Name())
		}
	}
	gotPre, gotStd := h.dispatchRapid(rt)
	if !equalNames(wantPre, gotPre) || !equalNames(wantStd, gotStd) {
		rt.Fatalf("dispatch order: want %v/%v, got %v/%v", wantPre, wantStd, gotPre, gotStd)
	}

	// Validate twice leaves the same list and index.
	h.c.Validate()
	afterOnce, indexOnce := names(h.c.Plugins()), h.c.UsedNames(false)
	h.c.Validate()
	if !equalNames(afterOnce, names(h.c.Plugins())) || !equalNames(indexOnce, h.c.UsedNames(false)) {
		rt.Fatalf("validate is not idempotent")
	}

	// The index holds each declared non-empty name once.
	declared := make(map[string]bool)
	for _, p := range h.c.Plugins() {
		for name := range p.IndexesForDNANames() {
			if name != "" {
				declared[name] = true
			}
		}
	}
	index := h.c.UsedNames(true)
	if len(index) != len(declared) {
		rt.Fatalf("used names %v, declared %v", index, declared)
	}
	for _, name := range index {
		if !declared[name] {
			rt.Fatalf("used name %q is not declared", name)
		}
	}
}

func (h *harness) dispatchRapid(rt *rapid.T) (prePass, standard []string) {
	h.log = nil
	if err := h.c.DispatchPrePass(context.Background(), plugin.NewApplyContext(nil, 0, nil)); err != nil {
		rt.Fatalf("pre-pass: %v", err)
	}
	prePass = h.log
	h.log = nil
	if err := h.c.DispatchStandard(context.Background(), plugin.NewApplyContext(nil, 0, nil)); err != nil {
		rt.Fatalf("standard: %v", err)
	}
	standard = h.log
	h.log = nil
	return prePass, standard
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
