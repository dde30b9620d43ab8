package system

import (
	"github.com/turtacn/KappaForge/internal/domain/algebra"
	"github.com/turtacn/KappaForge/internal/domain/mixture"
	"github.com/turtacn/KappaForge/internal/domain/pattern"
	"github.com/turtacn/KappaForge/pkg/errors"
)

// InitEntry is one `%init:` line of a parsed snapshot: a fully concrete
// pattern and its copy count.
type InitEntry struct {
	Count   int
	Pattern *pattern.Pattern
}

// ExternalSimulator is the collaborator contract for delegating a stretch of
// simulated time to a reference implementation: it consumes the system's
// snapshot text, advances it by dt, and returns the resulting mixture as
// instantiable init entries.  Parsing the returned snapshot back into
// patterns is the collaborator's concern.
type ExternalSimulator interface {
	Advance(snapshot string, dt float64) ([]InitEntry, error)
}

// ExchangeVia hands the current state to the external simulator for dt time
// units and replaces the mixture wholesale with what comes back, advancing
// the clock by dt.  Tallies are untouched: events executed externally are not
// this scheduler's events.
func (s *System) ExchangeVia(ext ExternalSimulator, dt float64) error {
	if dt < 0 {
		return errors.Newf(errors.CodeInvalidParam, "negative exchange interval %g", dt)
	}
	entries, err := ext.Advance(s.Snapshot(), dt)
	if err != nil {
		return errors.Wrap(err, errors.CodeUnknown, "external simulator failed")
	}
	if err := s.ReplaceMixture(entries); err != nil {
		return err
	}
	s.clock += dt
	return nil
}

// ReplaceMixture discards the current mixture and rebuilds one of the same
// tracking mode from init entries, re-registering every component the rules
// and expressions need.  Cached reactivities are invalidated.
func (s *System) ReplaceMixture(entries []InitEntry) error {
	var fresh *mixture.Mixture
	if s.mix.TracksComponents() {
		fresh = mixture.NewWithComponents()
	} else {
		fresh = mixture.New()
	}

	for _, r := range s.rules {
		for _, c := range r.LeftComponents() {
			fresh.TrackComponent(c)
		}
	}
	for _, name := range s.varOrder {
		for _, c := range algebra.Components(s.variables[name]) {
			fresh.TrackComponent(c)
		}
	}
	for _, name := range s.obsOrder {
		for _, c := range algebra.Components(s.observables[name]) {
			fresh.TrackComponent(c)
		}
	}

	for _, entry := range entries {
		if err := fresh.Instantiate(entry.Pattern, entry.Count); err != nil {
			return err
		}
	}

	s.mix = fresh
	s.reactivitiesValid = false
	return nil
}
