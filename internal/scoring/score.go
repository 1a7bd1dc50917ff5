// Package scoring computes weighted composite scores for race entries and
// assigns rank marks from the sorted order.
package scoring

import (
	"math"

	"github.com/KaramelBytes/keiba-ai/internal/apperr"
	"github.com/KaramelBytes/keiba-ai/internal/racecard"
)

// Unscored is the composite of an entry with no recognized metrics. It sorts
// below every real score.
const Unscored = -math.MaxFloat64

// MarkBonus is credited per grade column holding a favourable mark. It breaks
// ties between equal composites and never changes the composite itself.
const MarkBonus = 1.5

var bonusMarks = map[string]bool{"◎": true, "○": true, "▲": true, "A": true, "B": true}

// Result is the score of one entry, in input order.
type Result struct {
	Entry racecard.Entry
	// Composite is the weighted mean of the catalog metrics present.
	Composite float64
	// Used counts the catalog metrics present for this entry.
	Used  int
	Bonus float64
}

// Incomplete reports whether the entry had no usable metrics.
func (r Result) Incomplete() bool { return r.Used == 0 }

// Scorer holds the metric-weight table.
type Scorer struct {
	catalog []racecard.Metric
}

// New returns a scorer over the given catalog; nil means racecard.Catalog.
func New(catalog []racecard.Metric) *Scorer {
	if catalog == nil {
		catalog = racecard.Catalog
	}
	return &Scorer{catalog: catalog}
}

// Score computes one result per entry. The composite is the weighted mean over
// the metrics the entry actually has, so absent columns do not drag it down.
func (s *Scorer) Score(entries []racecard.Entry) []Result {
	out := make([]Result, len(entries))
	for i, e := range entries {
		out[i] = s.scoreOne(e)
	}
	return out
}

func (s *Scorer) scoreOne(e racecard.Entry) Result {
	var weights float64
	used := 0
	for _, m := range s.catalog {
		if v, ok := e.Metrics[m.Key]; ok && m.Weight > 0 && finite(v) {
			weights += m.Weight
			used++
		}
	}
	if used == 0 {
		return Result{Entry: e, Composite: Unscored}
	}
	// Summing v*(w/total) keeps the mean within the range of the values,
	// so extreme cells cannot overflow. Catalog order fixes summation order.
	var composite float64
	for _, m := range s.catalog {
		if v, ok := e.Metrics[m.Key]; ok && m.Weight > 0 && finite(v) {
			composite += v * (m.Weight / weights)
		}
	}
	r := Result{Entry: e, Composite: composite, Used: used}
	for _, mc := range racecard.MarkColumns {
		if bonusMarks[e.Marks[mc.Key]] {
			r.Bonus += MarkBonus
		}
	}
	return r
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Incomplete returns a KindScoringIncomplete error naming the unscored
// entries, or nil when every entry was scored.
func Incomplete(results []Result) error {
	var names []string
	for _, r := range results {
		if r.Incomplete() {
			names = append(names, r.Entry.Name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return apperr.Errorf(apperr.KindScoringIncomplete, "score", "%d entries without usable metrics: %v", len(names), names)
}
