package converter

import (
	"strconv"

	"dnaconverter/pkg/plugin"
)

// UniqueName returns a name for a plugin that asks for desired, ignoring
// excluding (the plugin being renamed, if any).
//
// If no other plugin is called desired it is returned unchanged. Otherwise
// the number of plugins sharing the name is appended ("Foo" becomes "Foo1"),
// counting upward from there until the result is free. Names freed by a
// removal can be handed out again.
func (c *Controller) UniqueName(desired string, excluding plugin.Plugin) string {
	taken := func(name string) bool {
		for _, p := range c.plugins {
			if p != nil && p != excluding && p.Name() == name {
				return true
			}
		}
		return false
	}

	count := 0
	for _, p := range c.plugins {
		if p != nil && p != excluding && p.Name() == desired {
			count++
		}
	}
	if count == 0 {
		return desired
	}

	candidate := desired + strconv.Itoa(count)
	for taken(candidate) {
		count++
		candidate = desired + strconv.Itoa(count)
	}
	return candidate
}

// nextFree appends the smallest positive suffix to base that taken rejects.
func nextFree(base string, taken func(string) bool) string {
	for i := 1; ; i++ {
		candidate := base + strconv.Itoa(i)
		if !taken(candidate) {
			return candidate
		}
	}
}
