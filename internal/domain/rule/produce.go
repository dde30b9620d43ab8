package rule

import (
	"github.com/turtacn/KappaForge/internal/domain/mixture"
	"github.com/turtacn/KappaForge/internal/domain/pattern"
	"github.com/turtacn/KappaForge/pkg/errors"
)

// produceUpdate translates a concrete left-pattern selection into a mixture
// update by walking the paired left/right slots in order:
//
//	(hole,  agent) — create the right agent at this slot
//	(agent, hole ) — remove the selected host agent
//	(agent, agent) — different types: remove and recreate; same type:
//	                 overwrite the host's internal states where the right
//	                 mentions a concrete one, registering the agent as
//	                 changed when the new state differs from the left's
//
// then wiring the right pattern's partners: a concrete pattern bond connects
// the corresponding host sites, an empty partner disconnects, an undetermined
// partner leaves the site alone, and any other predicate is a rule
// construction defect surfacing late.
//
// Internal-state overwrites mutate host agents in place before the update is
// applied; the update's changed-agent registry is what keeps the embedding
// indices honest about them.
func (r *KappaRule) produceUpdate(selection map[*pattern.Agent]*pattern.Agent) (*mixture.Update, error) {
	u := mixture.NewUpdate()
	leftSlots := r.left.Slots()
	rightSlots := r.right.Slots()

	// The concrete agent standing at each slot after the rewrite, used to
	// resolve the right pattern's bonds.
	newSelection := make([]*pattern.Agent, len(leftSlots))

	for i := range leftSlots {
		lAgent, rAgent := leftSlots[i], rightSlots[i]

		switch {
		case lAgent == nil && rAgent != nil:
			created, err := u.CreateAgent(rAgent)
			if err != nil {
				return nil, err
			}
			newSelection[i] = created

		case lAgent != nil && rAgent == nil:
			u.RemoveAgent(selection[lAgent])

		case lAgent != nil && rAgent != nil && lAgent.Type() != rAgent.Type():
			u.RemoveAgent(selection[lAgent])
			created, err := u.CreateAgent(rAgent)
			if err != nil {
				return nil, err
			}
			newSelection[i] = created

		case lAgent != nil && rAgent != nil:
			host := selection[lAgent]
			for _, rSite := range rAgent.Sites() {
				tag, concrete := rSite.State.Tag()
				if !concrete {
					continue
				}
				hostSite := host.Site(rSite.Label)
				if hostSite == nil {
					return nil, errors.Newf(errors.CodeInternal,
						"rule %s writes state of site %s.%s absent from the selected agent",
						r.name, rAgent.Type(), rSite.Label)
				}
				hostSite.State = pattern.StateTag(tag)
				lSite := lAgent.Site(rSite.Label)
				if lSite == nil || !lSite.State.Equal(rSite.State) {
					u.RegisterChanged(host)
				}
			}
			newSelection[i] = host
		}
	}

	// Wire the bonds the right-hand side declares.
	for i, rAgent := range rightSlots {
		if rAgent == nil {
			continue
		}
		agent := newSelection[i]
		for _, rSite := range rAgent.Sites() {
			site := agent.Site(rSite.Label)
			if site == nil {
				return nil, errors.Newf(errors.CodeInternal,
					"rule %s wires site %s.%s absent from the rewritten agent",
					r.name, rAgent.Type(), rSite.Label)
			}
			switch {
			case rSite.Link.IsUndetermined():
				// Partner untouched.
			case rSite.Link.IsEmpty():
				u.DisconnectSite(site)
			default:
				rPartner, bond := rSite.Link.Site()
				if !bond {
					return nil, errors.Newf(errors.CodeRuleRightIllegal,
						"rule %s: site %s.%s carries a partner predicate on the right-hand side",
						r.name, rAgent.Type(), rSite.Label)
				}
				j, ok := r.right.SlotOf(rPartner.Agent())
				if !ok {
					return nil, errors.Newf(errors.CodeInternal,
						"rule %s: right-hand bond partner outside the pattern", r.name)
				}
				partnerSite := newSelection[j].Site(rPartner.Label)
				if partnerSite == nil {
					return nil, errors.Newf(errors.CodeInternal,
						"rule %s wires site %s.%s absent from the rewritten agent",
						r.name, rPartner.Agent().Type(), rPartner.Label)
				}
				u.ConnectSites(site, partnerSite)
			}
		}
	}
	return u, nil
}
