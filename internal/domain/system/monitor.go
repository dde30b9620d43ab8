package system

// Monitor keeps the in-memory time series of every declared observable,
// appending one sample per scheduler step.  It is reached through
// System.Monitor; the status API and the CLI's end-of-run report evaluate
// observables through System.Lookup instead, and nothing in the engine
// depends on it.
type Monitor struct {
	times  []float64
	series map[string][]float64
}

func newMonitor() *Monitor {
	return &Monitor{series: make(map[string][]float64)}
}

// record appends the current time and one sample per observable.
func (m *Monitor) record(s *System) error {
	m.times = append(m.times, s.clock)
	for _, name := range s.obsOrder {
		v, err := s.Lookup(name)
		if err != nil {
			return err
		}
		m.series[name] = append(m.series[name], v)
	}
	return nil
}

// Len returns the number of recorded samples.
func (m *Monitor) Len() int { return len(m.times) }

// Times returns the sample times.  The slice is shared; callers must not
// modify it.
func (m *Monitor) Times() []float64 { return m.times }

// Series returns the sample values of one observable, nil when the name is
// unknown.  The slice is shared; callers must not modify it.
func (m *Monitor) Series(name string) []float64 { return m.series[name] }

// MeanOver averages an observable's samples over the simulated-time window
// (from, to].  The second return is false when no sample falls inside.
func (m *Monitor) MeanOver(name string, from, to float64) (float64, bool) {
	values := m.series[name]
	var sum float64
	var n int
	for i, t := range m.times {
		if t > from && t <= to {
			sum += values[i]
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
