// Package system provides the stochastic scheduler that drives a simulation:
// a mixture, a rule list, named variables and observables, a simulated clock,
// per-rule tallies, and the Gillespie direct-method step (sample the waiting
// time from total propensity, pick a rule by propensity, concretise one
// embedding, apply the rewrite).  The System is also the evaluation
// environment for algebraic expressions.
package system

import (
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/KappaForge/internal/domain/algebra"
	"github.com/turtacn/KappaForge/internal/domain/mixture"
	"github.com/turtacn/KappaForge/internal/domain/pattern"
	"github.com/turtacn/KappaForge/internal/domain/rule"
	"github.com/turtacn/KappaForge/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KappaForge/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KappaForge/internal/random"
	"github.com/turtacn/KappaForge/pkg/errors"
)

// Declaration binds a name to an algebraic expression; the order of
// declarations is preserved in snapshots.
type Declaration struct {
	Name string
	Expr algebra.Expr
}

// Tally counts one rule's outcomes.
type Tally struct {
	Applied int64
	Failed  int64
}

// System owns the full simulation state.  It is single-threaded: no method is
// safe to call while Update is in progress, and all mixture mutation funnels
// through the updates its rules produce.
type System struct {
	runID   string
	mix     *mixture.Mixture
	rules   []rule.Rule
	tallies map[string]*Tally

	variables   map[string]algebra.Expr
	observables map[string]algebra.Expr
	varOrder    []string
	obsOrder    []string

	clock float64
	rng   *random.Source

	logger  logging.Logger
	metrics *prometheus.Metrics
	monitor *Monitor

	// reactivities caches the per-rule propensities; a successful rule
	// application invalidates it, null events do not.
	reactivities      []float64
	reactivitiesValid bool

	consecutiveNulls  int
	nullWarnThreshold int
}

// Option configures a System at construction.
type Option func(*System)

// WithLogger injects the structured logger; the default discards entries.
func WithLogger(l logging.Logger) Option {
	return func(s *System) { s.logger = l }
}

// WithRandom injects the pseudorandom source; the default is seed 1.
func WithRandom(src *random.Source) Option {
	return func(s *System) { s.rng = src }
}

// WithMetrics attaches a simulation metrics set.
func WithMetrics(m *prometheus.Metrics) Option {
	return func(s *System) { s.metrics = m }
}

// WithMonitor attaches an in-memory observable monitor that snapshots every
// observable after each step.
func WithMonitor() Option {
	return func(s *System) { s.monitor = newMonitor() }
}

// WithVariables declares named variables.
func WithVariables(decls ...Declaration) Option {
	return func(s *System) {
		for _, d := range decls {
			s.variables[d.Name] = d.Expr
			s.varOrder = append(s.varOrder, d.Name)
		}
	}
}

// WithObservables declares named observables.
func WithObservables(decls ...Declaration) Option {
	return func(s *System) {
		for _, d := range decls {
			s.observables[d.Name] = d.Expr
			s.obsOrder = append(s.obsOrder, d.Name)
		}
	}
}

// WithNullEventWarnThreshold sets how many consecutive null events trigger a
// warning log; zero disables the check.  Default 20.
func WithNullEventWarnThreshold(n int) Option {
	return func(s *System) { s.nullWarnThreshold = n }
}

// New constructs a System over a prepopulated (or empty) mixture and a fixed
// rule list.  Construction tracks every rule-left component and every
// component mentioned in a declared expression, and rejects rules whose
// molecularity discipline the mixture cannot serve, duplicate rule names, and
// expressions referencing undefined names.  From here on the only legal
// mutation of the mixture is through Update.
func New(mix *mixture.Mixture, rules []rule.Rule, opts ...Option) (*System, error) {
	s := &System{
		runID:             uuid.NewString(),
		mix:               mix,
		rules:             rules,
		tallies:           make(map[string]*Tally, len(rules)),
		variables:         make(map[string]algebra.Expr),
		observables:       make(map[string]algebra.Expr),
		rng:               random.NewSource(1),
		logger:            logging.NewNopLogger(),
		nullWarnThreshold: 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("system")

	for _, r := range rules {
		if _, dup := s.tallies[r.Name()]; dup {
			return nil, errors.Newf(errors.CodeInvalidParam, "duplicate rule name %q", r.Name())
		}
		s.tallies[r.Name()] = &Tally{}
		if r.RequiresComponents() && !mix.TracksComponents() {
			return nil, errors.Newf(errors.CodeInvalidParam,
				"rule %q needs a component-tracking mixture", r.Name())
		}
		for _, c := range r.LeftComponents() {
			mix.TrackComponent(c)
		}
	}

	for _, name := range s.varOrder {
		if err := s.registerExpression(s.variables[name]); err != nil {
			return nil, err
		}
	}
	for _, name := range s.obsOrder {
		if err := s.registerExpression(s.observables[name]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// registerExpression tracks the expression's component references and rejects
// undefined variable names.
func (s *System) registerExpression(e algebra.Expr) error {
	for _, name := range algebra.VariableNames(e) {
		if _, ok := s.variables[name]; ok {
			continue
		}
		if _, ok := s.observables[name]; ok {
			continue
		}
		return errors.Newf(errors.CodeExprUndefinedName,
			"expression references undefined name %q", name)
	}
	for _, c := range algebra.Components(e) {
		s.mix.TrackComponent(c)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Accessors
// ─────────────────────────────────────────────────────────────────────────────

// RunID returns the run's unique identifier.
func (s *System) RunID() string { return s.runID }

// Mixture returns the live mixture.
func (s *System) Mixture() *mixture.Mixture { return s.mix }

// Rules returns the rule list in declaration order.
func (s *System) Rules() []rule.Rule { return s.rules }

// Time returns the simulated clock.
func (s *System) Time() float64 { return s.clock }

// TallyOf returns the outcome counters of a rule.
func (s *System) TallyOf(name string) (Tally, bool) {
	t, ok := s.tallies[name]
	if !ok {
		return Tally{}, false
	}
	return *t, true
}

// EventCount returns the total number of events executed, null events
// included.
func (s *System) EventCount() int64 {
	var n int64
	for _, t := range s.tallies {
		n += t.Applied + t.Failed
	}
	return n
}

// Monitor returns the attached monitor, nil when none was requested.
func (s *System) Monitor() *Monitor { return s.monitor }

// ObservableNames returns the declared observable names in order.
func (s *System) ObservableNames() []string { return s.obsOrder }

// ─────────────────────────────────────────────────────────────────────────────
// Expression environment
// ─────────────────────────────────────────────────────────────────────────────

// Variable implements algebra.Env: observables shadow variables, matching the
// declaration surface where both share one namespace.
func (s *System) Variable(name string) (float64, error) {
	if e, ok := s.observables[name]; ok {
		return e.Evaluate(s)
	}
	if e, ok := s.variables[name]; ok {
		return e.Evaluate(s)
	}
	return 0, errors.Newf(errors.CodeExprUndefinedName, "name %q is not defined", name)
}

// ComponentCount implements algebra.Env, resolving untracked components
// through isomorphism to their tracked counterparts.
func (s *System) ComponentCount(c *pattern.Component) (float64, error) {
	n, err := s.mix.EmbeddingCount(c)
	if err != nil {
		return 0, err
	}
	return float64(n), nil
}

// Lookup evaluates the named observable or variable.
func (s *System) Lookup(name string) (float64, error) { return s.Variable(name) }

// CountObservable returns the embedding count of the component, resolving
// isomorphic lookups exactly like `|…|` expressions do.
func (s *System) CountObservable(c *pattern.Component) (int, error) {
	return s.mix.EmbeddingCount(c)
}

// ─────────────────────────────────────────────────────────────────────────────
// Gillespie step
// ─────────────────────────────────────────────────────────────────────────────

// ruleReactivities returns the per-rule propensities and their sum, computing
// and caching them on demand.  NEmbeddings runs for every rule on each
// recomputation, which also refreshes the molecular variants' per-component
// weight caches.
func (s *System) ruleReactivities() ([]float64, float64, error) {
	if !s.reactivitiesValid {
		rs := make([]float64, len(s.rules))
		for i, r := range s.rules {
			v, err := rule.Reactivity(r, s.mix, s)
			if err != nil {
				return nil, 0, errors.Wrap(err, errors.CodeUnknown,
					"computing reactivity of rule "+r.Name())
			}
			rs[i] = v
			if s.metrics != nil {
				s.metrics.RuleReactivity.WithLabelValues(r.Name()).Set(v)
			}
		}
		s.reactivities = rs
		s.reactivitiesValid = true
	}
	var total float64
	for _, v := range s.reactivities {
		total += v
	}
	return s.reactivities, total, nil
}

// Reactivity returns the current total propensity.
func (s *System) Reactivity() (float64, error) {
	_, total, err := s.ruleReactivities()
	return total, err
}

// Wait advances the clock by an exponentially distributed increment at the
// total-propensity rate.  A zero total leaves the clock unchanged, warns, and
// returns CodeZeroReactivity.
func (s *System) Wait() error {
	_, total, err := s.ruleReactivities()
	if err != nil {
		return err
	}
	if total <= 0 {
		s.logger.Warn("system has no reactivity: infinite wait time",
			logging.Float64("time", s.clock))
		return errors.New(errors.CodeZeroReactivity, "system has no reactivity")
	}
	wait, err := s.rng.ExpVariate(total)
	if err != nil {
		return err
	}
	s.clock += wait
	return nil
}

// ChooseRule draws one rule weighted by the current per-rule propensities.
// All-zero weights warn and return CodeZeroReactivity.
func (s *System) ChooseRule() (rule.Rule, error) {
	reactivities, _, err := s.ruleReactivities()
	if err != nil {
		return nil, err
	}
	idx, err := s.rng.WeightedIndex(reactivities)
	if err != nil {
		s.logger.Warn("system has no reactivity: no rule applied",
			logging.Float64("time", s.clock))
		return nil, errors.New(errors.CodeZeroReactivity, "no rule could be chosen")
	}
	return s.rules[idx], nil
}

// ApplyRule concretises one embedding of the rule and applies the resulting
// update, bumping the applied tally and invalidating the propensity cache; a
// null selection bumps the failure tally instead.  It returns whether an
// update was applied.
func (s *System) ApplyRule(chosen rule.Rule) (bool, error) {
	upd, err := chosen.Select(s.mix, s.rng)
	if err != nil {
		return false, errors.Wrap(err, errors.CodeUnknown, "selecting rule "+chosen.Name())
	}

	if upd == nil {
		s.tallies[chosen.Name()].Failed++
		s.consecutiveNulls++
		if s.nullWarnThreshold > 0 && s.consecutiveNulls >= s.nullWarnThreshold {
			s.logger.Warn("consecutive null events",
				logging.Int("count", s.consecutiveNulls),
				logging.String("rule", chosen.Name()))
			s.consecutiveNulls = 0
		}
		return false, nil
	}

	if err := s.mix.ApplyUpdate(upd); err != nil {
		return false, errors.Wrap(err, errors.CodeUnknown, "applying rule "+chosen.Name())
	}
	s.tallies[chosen.Name()].Applied++
	s.consecutiveNulls = 0
	s.reactivitiesValid = false
	return true, nil
}

// Update executes one Gillespie step — Wait, ChooseRule, ApplyRule — then
// snapshots the monitor.  A zero total propensity leaves the clock unchanged,
// warns, and returns CodeZeroReactivity so driving loops can stop.  Null
// events advance the clock and the failure tally but not the graph.
func (s *System) Update() error {
	started := time.Now()

	if err := s.Wait(); err != nil {
		return err
	}
	chosen, err := s.ChooseRule()
	if err != nil {
		return err
	}
	applied, err := s.ApplyRule(chosen)
	if err != nil {
		return err
	}

	if s.monitor != nil {
		if err := s.monitor.record(s); err != nil {
			return err
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveStep(time.Since(started), s.clock, !applied, chosen.Name())
		s.metrics.AgentCount.Set(float64(s.mix.NAgents()))
		if s.mix.TracksComponents() {
			s.metrics.ComponentCount.Set(float64(s.mix.NComponents()))
		}
	}
	return nil
}

// RunUntil drives Update until the simulated clock passes deadline, stopping
// early (without error) when reactivity hits zero.
func (s *System) RunUntil(deadline float64) error {
	for s.clock < deadline {
		if err := s.Update(); err != nil {
			if errors.IsCode(err, errors.CodeZeroReactivity) {
				return nil
			}
			return err
		}
	}
	return nil
}

// RunEvents drives Update for n events, stopping early (without error) when
// reactivity hits zero.
func (s *System) RunEvents(n int64) error {
	for i := int64(0); i < n; i++ {
		if err := s.Update(); err != nil {
			if errors.IsCode(err, errors.CodeZeroReactivity) {
				return nil
			}
			return err
		}
	}
	return nil
}
