package pattern

import (
	"fmt"
	"strings"
)

// bondNumbering assigns consecutive integer labels to concrete bonds as a
// rendering walks over sites, so that both endpoints of a bond print the same
// number.  Numbers are local to one rendering.
type bondNumbering struct {
	next   int
	bySite map[*Site]int
}

func newBondNumbering() *bondNumbering {
	return &bondNumbering{next: 1, bySite: make(map[*Site]int)}
}

// number returns the label for the bond anchored at s, allocating one and
// registering both endpoints on first sight.
func (bn *bondNumbering) number(s *Site) int {
	if n, ok := bn.bySite[s]; ok {
		return n
	}
	n := bn.next
	bn.next++
	bn.bySite[s] = n
	bn.bySite[s.Partner()] = n
	return n
}

// renderSite renders one site: label, partner clause, state clause.  An
// undetermined clause is omitted, matching the surface syntax.
func renderSite(s *Site, bn *bondNumbering) string {
	var sb strings.Builder
	sb.WriteString(s.Label)

	switch {
	case s.Link.IsEmpty():
		sb.WriteString("[.]")
	case s.Link.IsWildcard():
		sb.WriteString("[#]")
	case s.Link.IsBoundPredicate():
		sb.WriteString("[_]")
	default:
		if _, bond := s.Link.Site(); bond {
			fmt.Fprintf(&sb, "[%d]", bn.number(s))
		} else if n, ok := s.Link.Label(); ok {
			fmt.Fprintf(&sb, "[%d]", n)
		} else if siteName, agentType, ok := s.Link.SiteType(); ok {
			fmt.Fprintf(&sb, "[%s.%s]", siteName, agentType)
		}
	}

	if tag, ok := s.State.Tag(); ok {
		fmt.Fprintf(&sb, "{%s}", tag)
	} else if s.State.IsWildcard() {
		sb.WriteString("{#}")
	}
	return sb.String()
}

// renderAgent renders one agent literal: Type(site, site, ...).
func renderAgent(a *Agent, bn *bondNumbering) string {
	parts := make([]string, 0, a.NSites())
	for _, s := range a.Sites() {
		parts = append(parts, renderSite(s, bn))
	}
	return fmt.Sprintf("%s(%s)", a.Type(), strings.Join(parts, ", "))
}

// KappaString renders the component with numeric bond labels assigned in
// agent order, suitable for snapshot `%init:` lines.
func (c *Component) KappaString() string {
	bn := newBondNumbering()
	parts := make([]string, 0, len(c.agents))
	for _, a := range c.agents {
		parts = append(parts, renderAgent(a, bn))
	}
	return strings.Join(parts, ", ")
}

// KappaString renders the pattern, holes printed as ".".
func (p *Pattern) KappaString() string {
	bn := newBondNumbering()
	parts := make([]string, 0, len(p.slots))
	for _, a := range p.slots {
		if a == nil {
			parts = append(parts, ".")
			continue
		}
		parts = append(parts, renderAgent(a, bn))
	}
	return strings.Join(parts, ", ")
}
