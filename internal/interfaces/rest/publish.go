package rest

import (
	"github.com/turtacn/KappaForge/internal/domain/system"
)

// SnapshotOf builds a publishable snapshot from a system between steps.  The
// caller owns the timing: it must not run concurrently with System.Update.
func SnapshotOf(s *system.System, model string) StatusSnapshot {
	obs := make(map[string]float64, len(s.ObservableNames()))
	for _, name := range s.ObservableNames() {
		if v, err := s.Lookup(name); err == nil {
			obs[name] = v
		}
	}
	rules := make([]RuleStatus, 0, len(s.Rules()))
	for _, r := range s.Rules() {
		tally, _ := s.TallyOf(r.Name())
		rules = append(rules, RuleStatus{
			Name:    r.Name(),
			Applied: tally.Applied,
			Failed:  tally.Failed,
		})
	}
	return StatusSnapshot{
		RunID:       s.RunID(),
		Model:       model,
		Time:        s.Time(),
		Events:      s.EventCount(),
		Agents:      s.Mixture().NAgents(),
		Observables: obs,
		Rules:       rules,
	}
}
