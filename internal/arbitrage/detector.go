package arbitrage

import (
	"sync/atomic"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// PathResult is the outcome of walking one path with StartingCapital. OK is
// false when a required best price was missing.
type PathResult struct {
	Path         domain.Path
	OK           bool
	Input        float64
	Output       float64
	ProfitAmount float64
	ProfitBps    float64
	Legs         [3]domain.LegQuote
}

// Opportunity converts the result into the reported shape.
func (r PathResult) Opportunity() domain.Opportunity {
	return domain.Opportunity{
		Path:         r.Path,
		ProfitAmount: r.ProfitAmount,
		ProfitBps:    r.ProfitBps,
		InputAmount:  r.Input,
		OutputAmount: r.Output,
	}
}

// Evaluation holds both path results for one read of the books.
type Evaluation struct {
	Forward PathResult
	Reverse PathResult
}

// Best picks the qualifying path with the higher profit. Forward wins ties.
func (e Evaluation) Best(minProfitBps float64) (PathResult, bool) {
	fwd := e.Forward.OK && e.Forward.ProfitBps >= minProfitBps
	rev := e.Reverse.OK && e.Reverse.ProfitBps >= minProfitBps
	switch {
	case fwd && rev:
		if e.Reverse.ProfitBps > e.Forward.ProfitBps {
			return e.Reverse, true
		}
		return e.Forward, true
	case fwd:
		return e.Forward, true
	case rev:
		return e.Reverse, true
	default:
		return PathResult{}, false
	}
}

// Evaluate reads the current best prices of t's books and computes both
// paths. It never mutates the books.
func Evaluate(t *Triangle) Evaluation {
	return Evaluation{
		Forward: t.forward(),
		Reverse: t.reverse(),
	}
}

// forward: quote -> A at pair1 ask, A -> B on pair3, B -> quote at pair2 bid.
func (t *Triangle) forward() PathResult {
	r := PathResult{Path: domain.Forward, Input: t.cfg.StartingCapital}

	leg1, ok := t.quote(0, domain.Ask)
	if !ok {
		return r
	}
	crossSide := domain.Bid
	if t.cfg.Cross == CrossBaseB {
		crossSide = domain.Ask
	}
	leg2, ok := t.quote(2, crossSide)
	if !ok {
		return r
	}
	leg3, ok := t.quote(1, domain.Bid)
	if !ok {
		return r
	}

	a := r.Input / leg1.Price * t.keep
	var b float64
	if crossSide == domain.Bid {
		b = a * leg2.Price * t.keep
	} else {
		b = a / leg2.Price * t.keep
	}
	out := b * leg3.Price * t.keep

	r.Legs = [3]domain.LegQuote{leg1, leg2, leg3}
	return t.finish(r, out)
}

// reverse: quote -> B at pair2 ask, B -> A on pair3, A -> quote at pair1 bid.
func (t *Triangle) reverse() PathResult {
	r := PathResult{Path: domain.Reverse, Input: t.cfg.StartingCapital}

	leg1, ok := t.quote(1, domain.Ask)
	if !ok {
		return r
	}
	crossSide := domain.Ask
	if t.cfg.Cross == CrossBaseB {
		crossSide = domain.Bid
	}
	leg2, ok := t.quote(2, crossSide)
	if !ok {
		return r
	}
	leg3, ok := t.quote(0, domain.Bid)
	if !ok {
		return r
	}

	b := r.Input / leg1.Price * t.keep
	var a float64
	if crossSide == domain.Ask {
		a = b / leg2.Price * t.keep
	} else {
		a = b * leg2.Price * t.keep
	}
	out := a * leg3.Price * t.keep

	r.Legs = [3]domain.LegQuote{leg1, leg2, leg3}
	return t.finish(r, out)
}

func (t *Triangle) finish(r PathResult, out float64) PathResult {
	r.OK = true
	r.Output = out
	r.ProfitAmount = out - r.Input
	r.ProfitBps = r.ProfitAmount / r.Input * 10_000
	return r
}

// Detector evaluates triangles and remembers the last evaluation keyed on
// the books' generations, so an unchanged triangle is not recomputed. A
// Detector belongs to one goroutine; only Stats may be called from others.
type Detector struct {
	tri    *Triangle
	gens   [3]uint64
	eval   Evaluation
	valid  bool
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewDetector returns a Detector with an empty memo.
func NewDetector() *Detector {
	return &Detector{}
}

// Evaluate returns both path results, reusing the memo when none of t's
// books changed since the last call.
func (d *Detector) Evaluate(t *Triangle) Evaluation {
	// Generations are read before prices: a racing write can only make the
	// stored evaluation newer than its key, never older.
	gens := t.generations()
	if d.valid && d.tri == t && d.gens == gens {
		d.hits.Add(1)
		return d.eval
	}
	d.misses.Add(1)
	d.eval = Evaluate(t)
	d.tri, d.gens, d.valid = t, gens, true
	return d.eval
}

// DetectResult is Detect with the leg prices attached.
func (d *Detector) DetectResult(t *Triangle) (PathResult, bool) {
	return d.Evaluate(t).Best(t.cfg.MinProfitBps)
}

// Detect reports the better qualifying path, if any.
func (d *Detector) Detect(t *Triangle) (domain.Opportunity, bool) {
	r, ok := d.DetectResult(t)
	if !ok {
		return domain.Opportunity{}, false
	}
	return r.Opportunity(), true
}

// Stats returns memo hit and miss counts.
func (d *Detector) Stats() (hits, misses uint64) {
	return d.hits.Load(), d.misses.Load()
}
