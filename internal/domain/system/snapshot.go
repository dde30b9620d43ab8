package system

import (
	"fmt"
	"sort"
	"strings"

	"github.com/turtacn/KappaForge/internal/domain/pattern"
)

// Snapshot renders the system's current state as surface-language text:
// variable declarations, rule declarations, observable declarations, then
// `%init:` lines built by grouping the mixture's connected components into
// isomorphism classes and emitting one representative per class with its
// multiplicity.  The text is the persistence and exchange format — an
// external reference simulator can consume it, and its answer comes back
// through ReplaceMixture.
func (s *System) Snapshot() string {
	var sb strings.Builder

	for _, name := range s.varOrder {
		fmt.Fprintf(&sb, "%%var: '%s' %s\n", name, s.variables[name].KappaString())
	}
	for _, r := range s.rules {
		sb.WriteString(r.KappaString())
		sb.WriteByte('\n')
	}
	for _, name := range s.obsOrder {
		fmt.Fprintf(&sb, "%%obs: '%s' %s\n", name, s.observables[name].KappaString())
	}

	for _, group := range groupByIsomorphism(s.mix.SnapshotComponents()) {
		fmt.Fprintf(&sb, "%%init: %d %s\n", group.count, group.rep.KappaString())
	}
	return sb.String()
}

// isoGroup is one isomorphism class of mixture components.
type isoGroup struct {
	rep   *pattern.Component
	count int
}

// groupByIsomorphism buckets components into isomorphism classes, keeping
// first-seen order.  Agent-type multisets partition the candidates first so
// the quadratic isomorphism checks only run within matching compositions.
func groupByIsomorphism(components []*pattern.Component) []*isoGroup {
	var groups []*isoGroup
	byComposition := make(map[string][]*isoGroup)

	for _, c := range components {
		key := compositionKey(c)
		matched := false
		for _, g := range byComposition[key] {
			if g.rep.Isomorphic(c) {
				g.count++
				matched = true
				break
			}
		}
		if !matched {
			g := &isoGroup{rep: c, count: 1}
			groups = append(groups, g)
			byComposition[key] = append(byComposition[key], g)
		}
	}
	return groups
}

// compositionKey renders a component's agent-type multiset canonically.
func compositionKey(c *pattern.Component) string {
	counts := make(map[string]int)
	var order []string
	for _, a := range c.Agents() {
		if counts[a.Type()] == 0 {
			order = append(order, a.Type())
		}
		counts[a.Type()]++
	}
	sort.Strings(order)
	var sb strings.Builder
	for _, typ := range order {
		fmt.Fprintf(&sb, "%s:%d;", typ, counts[typ])
	}
	return sb.String()
}
