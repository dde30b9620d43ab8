package pattern

import (
	"strconv"
	"strings"
)

// Embedding is an injective, type- and structure-respecting map from the
// agents of a pattern component to host agents.  Two enumerations of the same
// logical embedding are equal: identity is the frozen set of (pattern agent,
// host agent) pairs, realised as a key string over the component's agent
// order.  The mixture's embedding indices use that key as set identity.
type Embedding struct {
	component *Component
	images    map[*Agent]*Agent
	key       string
}

// NewEmbedding freezes an image map for the given pattern component.  The map
// must be total over the component's agents.
func NewEmbedding(component *Component, images map[*Agent]*Agent) *Embedding {
	var sb strings.Builder
	sb.WriteString(strconv.FormatInt(component.uid, 10))
	for _, a := range component.agents {
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatInt(images[a].uid, 10))
	}
	frozen := make(map[*Agent]*Agent, len(images))
	for p, h := range images {
		frozen[p] = h
	}
	return &Embedding{component: component, images: frozen, key: sb.String()}
}

// Component returns the pattern component this embedding maps from.
func (e *Embedding) Component() *Component { return e.component }

// Key returns the embedding's frozen identity.
func (e *Embedding) Key() string { return e.key }

// Image returns the host agent the pattern agent p maps to, nil if p is not in
// the component.
func (e *Embedding) Image(p *Agent) *Agent { return e.images[p] }

// RootImage returns the image of the component's root agent, the anchor under
// which the mixture's per-component embedding index files this embedding.
func (e *Embedding) RootImage() *Agent { return e.images[e.component.Root()] }

// HostAgents returns the image agents in the component's agent order.
func (e *Embedding) HostAgents() []*Agent {
	out := make([]*Agent, len(e.component.agents))
	for i, a := range e.component.agents {
		out[i] = e.images[a]
	}
	return out
}

// Len returns the number of mapped agents.
func (e *Embedding) Len() int { return len(e.images) }
