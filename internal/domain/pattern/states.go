// Package pattern provides the site-graph data model of the engine: sites with
// predicate-valued states, typed agents, connected components, patterns with
// bond-label resolution, and the embedding machinery (subgraph matching with
// site-state predicates, isomorphism, traversal, diameter).
//
// The same types describe both match templates and the concrete agents living
// in a mixture: a concrete agent is simply one whose site states carry no
// predicates.  This mirrors the surface language, where `A(a[1]{u})` is a
// pattern or an initial-condition molecule depending on where it appears.
package pattern

// ─────────────────────────────────────────────────────────────────────────────
// Internal (site) state
// ─────────────────────────────────────────────────────────────────────────────

type internalKind uint8

const (
	internalUndetermined internalKind = iota
	internalTag
	internalWildcard
)

// InternalState is the internal state of a site: a concrete tag from a finite
// domain, the wildcard predicate `{#}`, or undetermined (no clause, or `{?}`).
// The zero value is undetermined.
type InternalState struct {
	kind internalKind
	tag  string
}

// StateTag returns a concrete internal state.
func StateTag(tag string) InternalState { return InternalState{kind: internalTag, tag: tag} }

// StateWildcard returns the `{#}` predicate, which matches any internal state.
func StateWildcard() InternalState { return InternalState{kind: internalWildcard} }

// StateUndetermined returns the undetermined internal state.  In rules and
// observables it matches anything; in an instantiation it stands for "no
// tracked state".
func StateUndetermined() InternalState { return InternalState{} }

// Tag returns the concrete tag and whether the state is concrete.
func (s InternalState) Tag() (string, bool) { return s.tag, s.kind == internalTag }

// IsWildcard reports whether the state is the `{#}` predicate.
func (s InternalState) IsWildcard() bool { return s.kind == internalWildcard }

// IsUndetermined reports whether the state carries no clause.
func (s InternalState) IsUndetermined() bool { return s.kind == internalUndetermined }

// Equal reports exact state equality, predicate kinds included.  Used by
// isomorphism, where `{#}` only matches `{#}`.
func (s InternalState) Equal(o InternalState) bool {
	return s.kind == o.kind && s.tag == o.tag
}

// EmbedsIn reports whether a site carrying s as a match predicate accepts a
// host site carrying c.  A concrete tag requires equality; wildcard and
// undetermined accept anything.
func (s InternalState) EmbedsIn(c InternalState) bool {
	switch s.kind {
	case internalTag:
		return c.kind == internalTag && c.tag == s.tag
	default:
		return true
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Link (partner) state
// ─────────────────────────────────────────────────────────────────────────────

type linkKind uint8

const (
	linkUndetermined linkKind = iota
	linkEmpty
	linkSite
	linkLabel
	linkWildcard
	linkBound
	linkSiteType
)

// LinkState is the partner state of a site.  Concrete forms: empty `[.]` or a
// cross-reference to another site (a bond).  Predicate forms: wildcard `[#]`,
// bound-anywhere `[_]`, site-type `[x.A]`, and undetermined (no clause).
// Integer bond labels `[n]` exist only while a pattern is under construction;
// NewPattern resolves them into site cross-references, and the live mixture
// never holds one.  The zero value is undetermined.
type LinkState struct {
	kind      linkKind
	site      *Site
	label     int
	siteName  string
	agentType string
}

// LinkEmpty returns the concrete empty partner `[.]`.
func LinkEmpty() LinkState { return LinkState{kind: linkEmpty} }

// LinkWildcard returns the `[#]` predicate, which matches any partner.
func LinkWildcard() LinkState { return LinkState{kind: linkWildcard} }

// LinkBound returns the `[_]` predicate, which matches any bond.
func LinkBound() LinkState { return LinkState{kind: linkBound} }

// LinkUndetermined returns the undetermined partner state.
func LinkUndetermined() LinkState { return LinkState{} }

// LinkSiteType returns the `[siteName.agentType]` predicate, which matches a
// bond to a site with the given label on an agent of the given type.
func LinkSiteType(siteName, agentType string) LinkState {
	return LinkState{kind: linkSiteType, siteName: siteName, agentType: agentType}
}

// LinkLabel returns the pattern-construction-time integer bond label `[n]`.
func LinkLabel(n int) LinkState { return LinkState{kind: linkLabel, label: n} }

// linkTo returns a concrete bond to the given site.
func linkTo(s *Site) LinkState { return LinkState{kind: linkSite, site: s} }

// Site returns the concrete partner site and whether the link is a bond.
func (l LinkState) Site() (*Site, bool) { return l.site, l.kind == linkSite }

// Label returns the integer bond label and whether the link is an unresolved
// label.
func (l LinkState) Label() (int, bool) { return l.label, l.kind == linkLabel }

// SiteType returns the site-type predicate fields and whether the link is a
// site-type predicate.
func (l LinkState) SiteType() (siteName, agentType string, ok bool) {
	return l.siteName, l.agentType, l.kind == linkSiteType
}

// IsEmpty reports whether the link is the concrete empty partner.
func (l LinkState) IsEmpty() bool { return l.kind == linkEmpty }

// IsWildcard reports whether the link is the `[#]` predicate.
func (l LinkState) IsWildcard() bool { return l.kind == linkWildcard }

// IsBoundPredicate reports whether the link is the `[_]` predicate.
func (l LinkState) IsBoundPredicate() bool { return l.kind == linkBound }

// IsUndetermined reports whether the link carries no clause.
func (l LinkState) IsUndetermined() bool { return l.kind == linkUndetermined }

// equalShape reports predicate-kind equality for isomorphism: `[#]` only
// matches `[#]`, `[_]` only `[_]`, a site-type predicate only the same
// site-type predicate, and a bond only a bond (whose endpoint correspondence
// the traversal enforces separately).
func (l LinkState) equalShape(o LinkState) bool {
	if l.kind != o.kind {
		return false
	}
	if l.kind == linkSiteType {
		return l.siteName == o.siteName && l.agentType == o.agentType
	}
	return true
}

// EmbedsIn reports whether a site carrying l as a match predicate accepts a
// host site carrying c.  Bond labels must be resolved before matching; a label
// on either side never matches.
func (l LinkState) EmbedsIn(c LinkState) bool {
	switch l.kind {
	case linkUndetermined, linkWildcard:
		return true
	case linkEmpty:
		return c.kind == linkEmpty
	case linkBound:
		return c.kind == linkSite
	case linkSiteType:
		return c.kind == linkSite &&
			c.site.Label == l.siteName &&
			c.site.Agent().Type() == l.agentType
	case linkSite:
		// Structural agreement between the two bonds (that the host partner
		// agent is the image of the pattern partner agent) is enforced by the
		// embedding traversal; here only the local shape is checked.
		return c.kind == linkSite &&
			c.site.Label == l.site.Label &&
			c.site.Agent().Type() == l.site.Agent().Type()
	default: // linkLabel
		return false
	}
}
