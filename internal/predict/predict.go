// Package predict runs the load, score, label and narrate pipeline behind
// each of the three views.
package predict

import (
	"context"
	"errors"
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/KaramelBytes/keiba-ai/internal/ai"
	"github.com/KaramelBytes/keiba-ai/internal/apperr"
	"github.com/KaramelBytes/keiba-ai/internal/metrics"
	"github.com/KaramelBytes/keiba-ai/internal/prompt"
	"github.com/KaramelBytes/keiba-ai/internal/racecard"
	"github.com/KaramelBytes/keiba-ai/internal/scoring"
	"github.com/KaramelBytes/keiba-ai/internal/signtheory"
)

// Source yields a dataset; *racecard.Loader implements it.
type Source interface {
	Load(ctx context.Context) (*racecard.Dataset, error)
}

// Service wires the scorer and the gateway. Gateway may be nil, in which
// case only local results are produced.
type Service struct {
	Gateway ai.Gateway
	Prompts prompt.Builder
	Scorer  *scoring.Scorer
	Log     logrus.FieldLogger
}

// Row is one ranked entry in a flat, serializable form.
type Row struct {
	Position  int      `json:"position"`
	Mark      string   `json:"mark"`
	Label     string   `json:"label"`
	Number    int      `json:"number"`
	Name      string   `json:"name"`
	Composite *float64 `json:"composite"`
	Bonus     float64  `json:"bonus,omitempty"`
	Metrics   int      `json:"metrics_used"`
}

// Meta is common to every view.
type Meta struct {
	Source    string   `json:"source"`
	Fallback  bool     `json:"fallback"`
	Narrative string   `json:"narrative,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// OverallView is the full-field prediction.
type OverallView struct {
	Meta
	Rows      []Row  `json:"rows"`
	Formation string `json:"formation,omitempty"`
}

// SingleView is a single-entry evaluation.
type SingleView struct {
	Meta
	Evaluation scoring.Evaluation `json:"evaluation"`
	Summary    string             `json:"summary"`
}

// SignView is the sign-theory plan.
type SignView struct {
	Meta
	Plan signtheory.Result `json:"plan"`
	// Matches are entries whose number appears in the plan.
	Matches []Row `json:"matches,omitempty"`
}

var errNoData = errors.New("no race card loaded")

func (s *Service) scorer() *scoring.Scorer {
	if s.Scorer == nil {
		return scoring.New(nil)
	}
	return s.Scorer
}

func (s *Service) logger() logrus.FieldLogger {
	if s.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return l
	}
	return s.Log
}

func newMeta(ds *racecard.Dataset) Meta {
	m := Meta{Source: ds.Source, Fallback: ds.Fallback}
	m.Warnings = append(m.Warnings, ds.Warnings...)
	if sum := ds.MissingSummary(); sum != "" {
		m.Warnings = append(m.Warnings, sum)
	}
	return m
}

// Rank scores and labels every entry of ds.
func (s *Service) Rank(ds *racecard.Dataset) ([]scoring.Ranked, error) {
	results := s.scorer().Score(ds.Entries)
	unscored := 0
	for _, r := range results {
		if r.Incomplete() {
			unscored++
		}
	}
	metrics.RecordScored(len(results)-unscored, unscored)
	return scoring.Rank(results), scoring.Incomplete(results)
}

// Overall scores the field and asks the gateway for a marked prediction.
func (s *Service) Overall(ctx context.Context, ds *racecard.Dataset) (*OverallView, error) {
	if ds == nil {
		return nil, apperr.New(apperr.KindDataUnavailable, "overall", errNoData)
	}
	v := &OverallView{Meta: newMeta(ds)}
	ranked, err := s.Rank(ds)
	if err != nil {
		v.warn(err)
	}
	v.Rows = Rows(ranked)
	v.Formation = scoring.Formation(ranked)
	req := s.Prompts.Overall(ds, ranked)
	v.Narrative = s.narrate(ctx, &v.Meta, req)
	return v, nil
}

// Single evaluates one entry by number. An unknown number is reported in the
// view, not as an error.
func (s *Service) Single(ctx context.Context, ds *racecard.Dataset, number int) (*SingleView, error) {
	if ds == nil {
		return nil, apperr.New(apperr.KindDataUnavailable, "single", errNoData)
	}
	v := &SingleView{Meta: newMeta(ds)}
	v.Evaluation = scoring.Evaluate(ds, number)
	v.Summary = v.Evaluation.Summary()
	if !v.Evaluation.Found {
		v.Warnings = append(v.Warnings, v.Summary)
		return v, nil
	}
	req := s.Prompts.Single(ds, v.Evaluation)
	v.Narrative = s.narrate(ctx, &v.Meta, req)
	return v, nil
}

// Sign builds the sign-theory plan. ds may be nil; the plan then uses the
// full-field number range and no entry matches.
func (s *Service) Sign(ctx context.Context, ds *racecard.Dataset, events []signtheory.Event) (*SignView, error) {
	v := &SignView{}
	maxNumber := signtheory.DefaultMaxNumber
	if ds != nil {
		v.Meta = newMeta(ds)
		if n := fieldSize(ds); n > 0 {
			maxNumber = n
		}
	}
	v.Plan = signtheory.Plan(events, maxNumber)
	if ds != nil {
		ranked, _ := s.Rank(ds)
		want := make(map[int]bool, len(v.Plan.Numbers))
		for _, n := range v.Plan.Numbers {
			want[n] = true
		}
		for _, r := range Rows(ranked) {
			if want[r.Number] {
				v.Matches = append(v.Matches, r)
			}
		}
	}
	req := s.Prompts.Sign(v.Plan, ds)
	v.Narrative = s.narrate(ctx, &v.Meta, req)
	return v, nil
}

func fieldSize(ds *racecard.Dataset) int {
	n := 0
	for _, e := range ds.Entries {
		if e.Number > n {
			n = e.Number
		}
	}
	return n
}

// narrate calls the gateway; failures become warnings.
func (s *Service) narrate(ctx context.Context, m *Meta, req prompt.Request) string {
	if s.Gateway == nil {
		return ""
	}
	text, err := s.Gateway.Generate(ctx, req.User, req.Excerpt)
	if err != nil {
		s.logger().WithError(err).Warn("narrative unavailable")
		m.warn(err)
		return ""
	}
	return text
}

func (m *Meta) warn(err error) {
	msg := err.Error()
	if h := ai.Hint(err); h != "" {
		msg += " (" + h + ")"
	}
	m.Warnings = append(m.Warnings, msg)
}

// Rows flattens ranked results. Unscored entries have a nil Composite.
func Rows(ranked []scoring.Ranked) []Row {
	out := make([]Row, len(ranked))
	for i, r := range ranked {
		row := Row{
			Position: r.Position + 1,
			Mark:     r.Label.Mark(),
			Label:    r.Label.String(),
			Number:   r.Entry.Number,
			Name:     r.Entry.Name,
			Bonus:    r.Bonus,
			Metrics:  r.Used,
		}
		if !r.Incomplete() {
			c := math.Round(r.Composite*100) / 100
			row.Composite = &c
		}
		out[i] = row
	}
	return out
}
