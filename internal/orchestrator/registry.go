package orchestrator

import (
	"context"
	"sort"
	"strings"

	"pulseops.app/pulse/internal/model"
)

// HandlerFunc processes one routed event.
type HandlerFunc func(ctx context.Context, event *model.Event) error

type Registration struct {
	Name     string
	Module   string
	Priority int
	Handler  HandlerFunc
}

type registration struct {
	Registration
	pattern string
	order   int
}

// Registry maps event-name patterns to handlers. Patterns are either
// exact names or wildcard-suffixed ("finance.*", "*"). Registration
// happens at startup; Match is read-only afterwards.
type Registry struct {
	entries []registration
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(pattern string, reg Registration) {
	r.entries = append(r.entries, registration{
		Registration: reg,
		pattern:      pattern,
		order:        len(r.entries),
	})
}

// Match returns every registration whose pattern matches name, ordered
// by descending priority, then registration order.
func (r *Registry) Match(name string) []Registration {
	var matched []registration
	for _, entry := range r.entries {
		if patternMatches(entry.pattern, name) {
			matched = append(matched, entry)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		return matched[i].order < matched[j].order
	})

	result := make([]Registration, len(matched))
	for i, entry := range matched {
		result[i] = entry.Registration
	}
	return result
}

func patternMatches(pattern, name string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
		return strings.HasPrefix(name, prefix+".")
	}
	return pattern == name
}
