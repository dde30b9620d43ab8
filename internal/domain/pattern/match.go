package pattern

// Host is the target of an embedding search: the whole mixture, a single
// component, or a restricted agent set (the mixture's post-update rescan
// region).  CandidatesOfType seeds the search with root candidates;
// ContainsAgent fences the traversal, so a search into a restricted host fails
// as soon as a bond leads outside it.
type Host interface {
	CandidatesOfType(typ string) []*Agent
	ContainsAgent(a *Agent) bool
}

// AgentSet is a Host over an explicit agent collection, preserving the order
// agents were supplied in so that candidate enumeration stays deterministic.
type AgentSet struct {
	member map[*Agent]struct{}
	byType map[string][]*Agent
}

// NewAgentSet constructs an AgentSet over the given agents.
func NewAgentSet(agents []*Agent) *AgentSet {
	s := &AgentSet{
		member: make(map[*Agent]struct{}, len(agents)),
		byType: make(map[string][]*Agent),
	}
	for _, a := range agents {
		if _, dup := s.member[a]; dup {
			continue
		}
		s.member[a] = struct{}{}
		s.byType[a.Type()] = append(s.byType[a.Type()], a)
	}
	return s
}

// CandidatesOfType implements Host.
func (s *AgentSet) CandidatesOfType(typ string) []*Agent { return s.byType[typ] }

// ContainsAgent implements Host.
func (s *AgentSet) ContainsAgent(a *Agent) bool {
	_, ok := s.member[a]
	return ok
}

// Len returns the number of member agents.
func (s *AgentSet) Len() int { return len(s.member) }

// ─────────────────────────────────────────────────────────────────────────────
// Embedding search
// ─────────────────────────────────────────────────────────────────────────────

// EmbeddingsInto enumerates the embeddings of the pattern component c into the
// host.  With exact=false a host agent may carry extra sites and each pattern
// site is read as a predicate; with exact=true site states must be equal
// (predicate kinds included) and every host site must either appear in the
// pattern or be undetermined, which makes the exact embeddings of equal-sized
// components exactly their isomorphisms.
func (c *Component) EmbeddingsInto(host Host, exact bool) []*Embedding {
	root := c.Root()
	var found []*Embedding
	for _, candidate := range host.CandidatesOfType(root.Type()) {
		if images, ok := c.matchFrom(host, candidate, exact); ok {
			found = append(found, NewEmbedding(c, images))
		}
	}
	return found
}

// matchFrom grows a partial embedding rooted at root ↦ hostRoot by traversing
// the component's bonds, verifying predicates site by site.  It returns the
// total image map on success.
func (c *Component) matchFrom(host Host, hostRoot *Agent, exact bool) (map[*Agent]*Agent, bool) {
	root := c.Root()
	images := map[*Agent]*Agent{root: hostRoot}
	used := map[*Agent]*Agent{hostRoot: root}
	frontier := []*Agent{root}

	for len(frontier) > 0 {
		a := frontier[0]
		frontier = frontier[1:]
		b := images[a]

		if a.Type() != b.Type() {
			return nil, false
		}
		if exact {
			// Every host site must be mentioned by the pattern or constrain
			// nothing; a missing pattern site only matches an undetermined one.
			for _, bSite := range b.Sites() {
				if a.Site(bSite.Label) == nil && !bSite.Undetermined() {
					return nil, false
				}
			}
		}

		for _, aSite := range a.Sites() {
			bSite := b.Site(aSite.Label)
			if bSite == nil {
				if aSite.Undetermined() {
					continue
				}
				return nil, false
			}

			if exact {
				if !aSite.State.Equal(bSite.State) || !aSite.Link.equalShape(bSite.Link) {
					return nil, false
				}
			} else if !aSite.EmbedsIn(bSite) {
				return nil, false
			}

			aPartner, isBond := aSite.Link.Site()
			if !isBond {
				continue
			}
			bPartner, ok := bSite.Link.Site()
			if !ok {
				return nil, false
			}
			if bPartner.Label != aPartner.Label || bPartner.Agent().Type() != aPartner.Agent().Type() {
				return nil, false
			}

			aNext, bNext := aPartner.Agent(), bPartner.Agent()
			if mapped, seen := images[aNext]; seen {
				if mapped != bNext {
					return nil, false
				}
				continue
			}
			if prior, taken := used[bNext]; taken && prior != aNext {
				return nil, false
			}
			if !host.ContainsAgent(bNext) {
				return nil, false
			}
			images[aNext] = bNext
			used[bNext] = aNext
			frontier = append(frontier, aNext)
		}
	}
	return images, true
}
