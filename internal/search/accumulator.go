package search

// accumulator carries the running best through the search phases. Phases
// take it by value and return the updated copy.
type accumulator struct {
	target   int64
	best     *Candidate
	diff     int64
	attempts []Attempt
}

func newAccumulator(target int64) accumulator {
	return accumulator{target: target}
}

// offer records a successful evaluation. The first candidate reaching a
// given distance wins; later ties do not replace it.
func (a accumulator) offer(c Candidate) accumulator {
	a.attempts = append(a.attempts, Attempt{Family: c.Family, Params: c.Params, Size: c.Size})
	d := absDiff(c.Size, a.target)
	if a.best == nil || d < a.diff {
		a.best = &c
		a.diff = d
	}
	return a
}

// fail records an evaluation that could not be encoded.
func (a accumulator) fail(f Family, p Parameters, err error) accumulator {
	a.attempts = append(a.attempts, Attempt{Family: f, Params: p, Err: err})
	return a
}

func (a accumulator) bestSize() (int64, bool) {
	if a.best == nil {
		return 0, false
	}
	return a.best.Size, true
}
