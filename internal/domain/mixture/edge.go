// Package mixture provides the live state of a simulation: the concrete site
// graph, the agents-by-type index, one incrementally-maintained embedding
// index per tracked pattern component, and (optionally) the partition of the
// graph into connected components.  All mutation funnels through ApplyUpdate,
// which applies a MixtureUpdate atomically and repairs every index before
// returning.
package mixture

import (
	"fmt"

	"github.com/turtacn/KappaForge/internal/domain/pattern"
)

// Edge is an unordered pair of concrete sites representing one bond.  On the
// live graph bonds exist only as reciprocal site.Partner cross-references;
// Edge is a value type used as an update/set key.  NewEdge canonicalises
// endpoint order so that Edge(x,y) and Edge(y,x) compare equal.
type Edge struct {
	S1, S2 *pattern.Site
}

// NewEdge constructs the canonical Edge over two sites.
func NewEdge(s1, s2 *pattern.Site) Edge {
	if s2.Before(s1) {
		s1, s2 = s2, s1
	}
	return Edge{S1: s1, S2: s2}
}

// Sites returns both endpoints.
func (e Edge) Sites() (*pattern.Site, *pattern.Site) { return e.S1, e.S2 }

// Agents returns the two endpoint owners.
func (e Edge) Agents() (*pattern.Agent, *pattern.Agent) {
	return e.S1.Agent(), e.S2.Agent()
}

// String renders the edge for diagnostics.
func (e Edge) String() string {
	return fmt.Sprintf("%s.%s—%s.%s",
		e.S1.Agent().Type(), e.S1.Label, e.S2.Agent().Type(), e.S2.Label)
}
