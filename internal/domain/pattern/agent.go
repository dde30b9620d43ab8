package pattern

import (
	"sync/atomic"

	"github.com/turtacn/KappaForge/pkg/errors"
)

// uidCounter hands out process-wide unique identities for agents and
// components.  Identity, not the counter value, is what matters: embedding
// keys and edge canonicalisation need a stable total order over agents.
var uidCounter atomic.Int64

func nextUID() int64 { return uidCounter.Add(1) }

// ─────────────────────────────────────────────────────────────────────────────
// Site
// ─────────────────────────────────────────────────────────────────────────────

// Site is a labeled port on an agent, carrying an internal state and a partner
// link.  A site belongs to exactly one agent; the back-pointer is set when the
// site is attached via NewAgent.
type Site struct {
	Label string
	State InternalState
	Link  LinkState

	agent *Agent
}

// NewSite constructs a detached site with undetermined state and link.  Attach
// it to an agent with NewAgent; configure it with the chainable With* setters:
//
//	pattern.NewSite("x").WithState("u").WithBond(1)
func NewSite(label string) *Site {
	return &Site{Label: label}
}

// WithState sets a concrete internal state tag and returns the site.
func (s *Site) WithState(tag string) *Site {
	s.State = StateTag(tag)
	return s
}

// WithStateWildcard sets the `{#}` internal-state predicate and returns the site.
func (s *Site) WithStateWildcard() *Site {
	s.State = StateWildcard()
	return s
}

// WithEmpty sets the concrete empty partner `[.]` and returns the site.
func (s *Site) WithEmpty() *Site {
	s.Link = LinkEmpty()
	return s
}

// WithBond sets an integer bond label `[n]` and returns the site.  NewPattern
// resolves labels into site cross-references.
func (s *Site) WithBond(label int) *Site {
	s.Link = LinkLabel(label)
	return s
}

// WithBound sets the `[_]` bound-anywhere predicate and returns the site.
func (s *Site) WithBound() *Site {
	s.Link = LinkBound()
	return s
}

// WithLinkWildcard sets the `[#]` partner predicate and returns the site.
func (s *Site) WithLinkWildcard() *Site {
	s.Link = LinkWildcard()
	return s
}

// WithSiteType sets the `[siteName.agentType]` partner predicate and returns
// the site.
func (s *Site) WithSiteType(siteName, agentType string) *Site {
	s.Link = LinkSiteType(siteName, agentType)
	return s
}

// Agent returns the owning agent, nil while the site is detached.
func (s *Site) Agent() *Agent { return s.agent }

// Bound reports whether the site holds a concrete bond.
func (s *Site) Bound() bool {
	_, ok := s.Link.Site()
	return ok
}

// Partner returns the concrete partner site, nil if the site holds no bond.
func (s *Site) Partner() *Site {
	p, _ := s.Link.Site()
	return p
}

// BindTo installs a reciprocal concrete bond between s and other.  It is the
// only way concrete bonds come into existence; the mixture calls it when
// applying edge additions, and pattern construction calls it when resolving
// bond labels.
func (s *Site) BindTo(other *Site) {
	s.Link = linkTo(other)
	other.Link = linkTo(s)
}

// Unbind clears a reciprocal bond from both endpoints.
func (s *Site) Unbind() {
	if p := s.Partner(); p != nil {
		p.Link = LinkEmpty()
	}
	s.Link = LinkEmpty()
}

// Undetermined reports whether the site constrains nothing: both its state and
// its link are undetermined.  A host site missing from a pattern's interface
// and a pattern site in this condition are treated identically by matching.
func (s *Site) Undetermined() bool {
	return s.State.IsUndetermined() && s.Link.IsUndetermined()
}

// EmbedsIn reports whether this site, read as a match predicate, accepts the
// concrete host site c.
func (s *Site) EmbedsIn(c *Site) bool {
	return s.State.EmbedsIn(c.State) && s.Link.EmbedsIn(c.Link)
}

// ordKey is the total order used to canonicalise unordered site pairs (edges).
func (s *Site) ordKey() (int64, string) { return s.agent.uid, s.Label }

// Before reports whether s precedes other in the canonical site order.
func (s *Site) Before(other *Site) bool {
	au, al := s.ordKey()
	bu, bl := other.ordKey()
	if au != bu {
		return au < bu
	}
	return al < bl
}

// ─────────────────────────────────────────────────────────────────────────────
// Agent
// ─────────────────────────────────────────────────────────────────────────────

// Agent is a typed node of the site graph with an ordered interface of named
// sites.  Every site in the interface back-points to its agent.
type Agent struct {
	uid    int64
	typ    string
	labels []string
	sites  map[string]*Site
}

// NewAgent constructs an agent owning the given sites.  Site labels must be
// unique within the agent.
func NewAgent(typ string, sites ...*Site) *Agent {
	a := &Agent{
		uid:   nextUID(),
		typ:   typ,
		sites: make(map[string]*Site, len(sites)),
	}
	for _, s := range sites {
		if _, dup := a.sites[s.Label]; dup {
			panic(errors.Newf(errors.CodeInvalidParam,
				"agent %s declares site %q twice", typ, s.Label))
		}
		s.agent = a
		a.labels = append(a.labels, s.Label)
		a.sites[s.Label] = s
	}
	return a
}

// UID returns the agent's process-wide unique identity.
func (a *Agent) UID() int64 { return a.uid }

// Type returns the agent type name.
func (a *Agent) Type() string { return a.typ }

// Site returns the site with the given label, nil if the interface lacks it.
func (a *Agent) Site(label string) *Site { return a.sites[label] }

// Sites returns the interface sites in declaration order.
func (a *Agent) Sites() []*Site {
	out := make([]*Site, len(a.labels))
	for i, label := range a.labels {
		out[i] = a.sites[label]
	}
	return out
}

// NSites returns the interface size.
func (a *Agent) NSites() int { return len(a.labels) }

// Neighbors returns the agents reachable over one concrete bond, in interface
// order.  An agent bonded twice to the same partner appears twice.
func (a *Agent) Neighbors() []*Agent {
	var out []*Agent
	for _, label := range a.labels {
		if p := a.sites[label].Partner(); p != nil {
			out = append(out, p.agent)
		}
	}
	return out
}

// Detached reports whether no site of the agent holds a concrete bond.
func (a *Agent) Detached() bool {
	for _, s := range a.sites {
		if s.Bound() {
			return false
		}
	}
	return true
}

// EmbedsIn reports whether this agent, read as a match predicate, locally
// accepts the host agent: same type, and every mentioned site's predicates
// hold on the host's corresponding site (a missing host site only passes for
// a fully undetermined pattern site).  Bond-structure agreement across agents
// is the embedding traversal's concern, not this check's.
func (a *Agent) EmbedsIn(host *Agent) bool {
	if a.typ != host.typ {
		return false
	}
	for _, label := range a.labels {
		s := a.sites[label]
		hostSite := host.Site(label)
		if hostSite == nil {
			if s.Undetermined() {
				continue
			}
			return false
		}
		if !s.EmbedsIn(hostSite) {
			return false
		}
	}
	return true
}

// Instantiate produces a detached concrete clone of the agent: same type and
// site labels, concrete or undetermined internal states carried over, every
// link empty.  Predicate states make the agent uninstantiable.
func (a *Agent) Instantiate() (*Agent, error) {
	sites := make([]*Site, 0, len(a.labels))
	for _, label := range a.labels {
		src := a.sites[label]

		if src.State.IsWildcard() {
			return nil, errors.Newf(errors.CodePatternUnderspecified,
				"site %s.%s has a wildcard internal state", a.typ, label)
		}
		switch {
		case src.Link.IsWildcard(), src.Link.IsBoundPredicate():
			return nil, errors.Newf(errors.CodePatternUnderspecified,
				"site %s.%s has a predicate partner", a.typ, label)
		}
		if _, _, ok := src.Link.SiteType(); ok {
			return nil, errors.Newf(errors.CodePatternUnderspecified,
				"site %s.%s has a site-type partner predicate", a.typ, label)
		}
		if _, ok := src.Link.Label(); ok {
			return nil, errors.Newf(errors.CodeInternal,
				"site %s.%s carries an unresolved bond label", a.typ, label)
		}

		clone := NewSite(label)
		clone.State = src.State
		clone.Link = LinkEmpty()
		sites = append(sites, clone)
	}
	return NewAgent(a.typ, sites...), nil
}

// String renders the agent in Kappa notation.
func (a *Agent) String() string {
	return renderAgent(a, newBondNumbering())
}
