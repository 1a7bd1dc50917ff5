package scoring

import (
	"math/rand"
	"testing"

	"github.com/KaramelBytes/keiba-ai/internal/apperr"
	"github.com/KaramelBytes/keiba-ai/internal/racecard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(num int, name string, metrics map[string]float64) racecard.Entry {
	if metrics == nil {
		metrics = map[string]float64{}
	}
	return racecard.Entry{Number: num, Name: name, Metrics: metrics, Marks: map[string]string{}, Row: num - 1}
}

func allMetrics(v float64) map[string]float64 {
	m := map[string]float64{}
	for _, c := range racecard.Catalog {
		m[c.Key] = v
	}
	return m
}

func TestScoreWeightedMeanOverPresentMetrics(t *testing.T) {
	e := entry(1, "A", map[string]float64{"overall": 80, "training": 50})
	r := New(nil).Score([]racecard.Entry{e})[0]
	// (80*1 + 50*0.5) / 1.5
	assert.InDelta(t, 70.0, r.Composite, 1e-9)
	assert.Equal(t, 2, r.Used)
	assert.False(t, r.Incomplete())
}

func TestScoreMissingColumnsDoNotPenalize(t *testing.T) {
	full := entry(1, "full", allMetrics(70))
	partial := entry(2, "partial", map[string]float64{"speed": 70})
	rs := New(nil).Score([]racecard.Entry{full, partial})
	assert.InDelta(t, rs[0].Composite, rs[1].Composite, 1e-9)
}

func TestScoreNoMetricsIsSentinel(t *testing.T) {
	e := entry(1, "empty", nil)
	e.Marks["graded_record"] = "◎"
	r := New(nil).Score([]racecard.Entry{e})[0]
	assert.Equal(t, Unscored, r.Composite)
	assert.True(t, r.Incomplete())
	assert.Zero(t, r.Bonus, "marks never lift an unscored entry")

	err := Incomplete([]Result{r})
	assert.Equal(t, apperr.KindScoringIncomplete, apperr.KindOf(err))
	assert.False(t, apperr.Fatal(err))
	assert.NoError(t, Incomplete(nil))
}

func TestScoreMarkBonus(t *testing.T) {
	e := entry(1, "A", map[string]float64{"overall": 60})
	e.Marks = map[string]string{"graded_record": "◎", "venue_record": "A", "turf": "C"}
	r := New(nil).Score([]racecard.Entry{e})[0]
	assert.Equal(t, 2*MarkBonus, r.Bonus)
	assert.InDelta(t, 60.0, r.Composite, 1e-9, "marks do not change the weighted mean")
}

func TestMarksDoNotOutrankHigherComposite(t *testing.T) {
	a := entry(1, "A", map[string]float64{"overall": 80, "recent_form": 80, "speed": 80})
	c := entry(2, "C", map[string]float64{"overall": 78})
	c.Marks = map[string]string{"graded_record": "◎", "venue_record": "◎", "turf": "A"}

	ranked := Rank(New(nil).Score([]racecard.Entry{c, a}))
	assert.Equal(t, "A", ranked[0].Entry.Name)
	assert.InDelta(t, 80.0, ranked[0].Composite, 1e-9)
	assert.Equal(t, "C", ranked[1].Entry.Name)
	assert.InDelta(t, 78.0, ranked[1].Composite, 1e-9)
	assert.Equal(t, 3*MarkBonus, ranked[1].Bonus)
}

func TestMarkBonusBreaksTies(t *testing.T) {
	plain := entry(1, "plain", map[string]float64{"overall": 70})
	marked := entry(2, "marked", map[string]float64{"speed": 70})
	marked.Marks = map[string]string{"turf": "○"}

	ranked := Rank(New(nil).Score([]racecard.Entry{plain, marked}))
	assert.Equal(t, "marked", ranked[0].Entry.Name)
	assert.Equal(t, "plain", ranked[1].Entry.Name)
}

func TestScoreExtremeValuesStayFinite(t *testing.T) {
	scored := entry(1, "scored", map[string]float64{"overall": -1e308, "recent_form": -1e308})
	unscored := entry(2, "unscored", nil)

	rs := New(nil).Score([]racecard.Entry{scored, unscored})
	assert.InDelta(t, -1e308, rs[0].Composite, 1e293)

	ranked := Rank(rs)
	assert.Equal(t, "scored", ranked[0].Entry.Name)
	assert.Equal(t, "unscored", ranked[1].Entry.Name, "unscored entries rank last")
	assert.Equal(t, LabelDanger, ranked[1].Label)
}

func TestScoreIgnoresUnknownMetrics(t *testing.T) {
	e := entry(1, "A", map[string]float64{"overall": 60, "odds": 1000})
	r := New(nil).Score([]racecard.Entry{e})[0]
	assert.InDelta(t, 60.0, r.Composite, 1e-9)
	assert.Equal(t, 1, r.Used)
}

func TestScoreDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var entries []racecard.Entry
	for i := 1; i <= 18; i++ {
		m := map[string]float64{}
		for _, c := range racecard.Catalog {
			if rng.Intn(3) > 0 {
				m[c.Key] = rng.Float64() * 100
			}
		}
		entries = append(entries, entry(i, "h", m))
	}
	s := New(nil)
	first := Rank(s.Score(entries))
	second := Rank(s.Score(entries))
	assert.Equal(t, first, second)
}

func TestScenarioFullHalfNone(t *testing.T) {
	half := map[string]float64{}
	for i, c := range racecard.Catalog {
		if i%2 == 0 {
			half[c.Key] = 60
		}
	}
	a := entry(1, "A", allMetrics(90))
	b := entry(2, "B", nil)
	c := entry(3, "C", half)

	ranked := Rank(New(nil).Score([]racecard.Entry{a, b, c}))
	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"A", "C", "B"}, []string{ranked[0].Entry.Name, ranked[1].Entry.Name, ranked[2].Entry.Name})
	assert.Equal(t, Unscored, ranked[2].Composite)
	assert.Equal(t, LabelTop, ranked[0].Label)
	assert.Equal(t, LabelDanger, ranked[2].Label)
}

func TestRankStableOnTies(t *testing.T) {
	rs := New(nil).Score([]racecard.Entry{
		entry(4, "first", map[string]float64{"overall": 50}),
		entry(2, "second", map[string]float64{"overall": 50}),
		entry(9, "third", map[string]float64{"overall": 50}),
	})
	ranked := Rank(rs)
	assert.Equal(t, "first", ranked[0].Entry.Name)
	assert.Equal(t, "second", ranked[1].Entry.Name)
	assert.Equal(t, "third", ranked[2].Entry.Name)
}

func TestUnscoredEntriesAllDanger(t *testing.T) {
	ranked := Rank(New(nil).Score([]racecard.Entry{
		entry(1, "x", nil),
		entry(2, "a", map[string]float64{"overall": 70}),
		entry(3, "y", nil),
		entry(4, "b", map[string]float64{"overall": 60}),
		entry(5, "c", map[string]float64{"overall": 50}),
	}))
	assert.Equal(t, "x", ranked[3].Entry.Name, "unscored ties keep input order")
	assert.Equal(t, "y", ranked[4].Entry.Name)
	assert.Equal(t, LabelDanger, ranked[3].Label)
	assert.Equal(t, LabelDanger, ranked[4].Label)
}

func TestLabelForSmallFields(t *testing.T) {
	cases := map[int][]Label{
		1: {LabelTop},
		2: {LabelTop, LabelDanger},
		3: {LabelTop, LabelContender, LabelDanger},
		4: {LabelTop, LabelContender, LabelDarkHorse, LabelDanger},
		5: {LabelTop, LabelContender, LabelDarkHorse, LabelLongshot, LabelDanger},
	}
	for n, want := range cases {
		got := make([]Label, n)
		for pos := 0; pos < n; pos++ {
			got[pos] = LabelFor(pos, n)
		}
		assert.Equal(t, want, got, "n=%d", n)
	}
}

func TestLabelsNonIncreasingQuality(t *testing.T) {
	for n := 1; n <= 30; n++ {
		prev := LabelTop
		for pos := 0; pos < n; pos++ {
			l := LabelFor(pos, n)
			require.GreaterOrEqual(t, l, prev, "n=%d pos=%d", n, pos)
			prev = l
		}
		assert.Equal(t, LabelTop, LabelFor(0, n))
		if n > 1 {
			assert.Equal(t, LabelDanger, LabelFor(n-1, n))
		}
	}
}

func TestLabelStrings(t *testing.T) {
	assert.Equal(t, "◎本命", LabelTop.String())
	assert.Equal(t, "✕危険馬", LabelDanger.String())
	assert.Equal(t, "▲", LabelDarkHorse.Mark())
	assert.Equal(t, "?", Label(9).String())
}

func TestEvaluate(t *testing.T) {
	ds := &racecard.Dataset{Entries: []racecard.Entry{
		entry(5, "E", map[string]float64{
			"potential": 80, "training": 70,
			"jockey": 60, "jockey_win_rate": 15,
			"course": 50, "venue": 90,
		}),
		entry(6, "F", map[string]float64{"course": 40}),
	}}

	ev := Evaluate(ds, 5)
	require.True(t, ev.Found)
	assert.Equal(t, 150.0, ev.Horse)
	assert.Equal(t, 75.0, ev.Jockey)
	assert.Equal(t, 90.0, ev.Course, "venue index wins over course aptitude")
	assert.Equal(t, 115.5, ev.Overall)
	assert.Contains(t, ev.Summary(), "E (馬番 5)")

	f := Evaluate(ds, 6)
	assert.Equal(t, 40.0, f.Course)
	assert.Equal(t, 8.0, f.Overall)
	assert.Equal(t, []string{"course"}, f.Present)

	missing := Evaluate(ds, 12)
	assert.False(t, missing.Found)
	assert.Zero(t, missing.Overall)
	assert.Contains(t, missing.Summary(), "存在しません")
}

func TestFormation(t *testing.T) {
	ranked := Rank(New(nil).Score([]racecard.Entry{
		entry(3, "a", map[string]float64{"overall": 90}),
		entry(8, "b", map[string]float64{"overall": 80}),
		entry(1, "c", map[string]float64{"overall": 70}),
		entry(4, "d", map[string]float64{"overall": 60}),
	}))
	assert.Equal(t, "三連複フォーメーション: 1列目 3, 2列目 3・8, 3列目 3・8・1〜人気薄を網羅", Formation(ranked))

	short := Rank(New(nil).Score([]racecard.Entry{
		entry(2, "a", map[string]float64{"overall": 90}),
		entry(5, "b", nil),
	}))
	assert.Equal(t, "三連複フォーメーション: 1列目 2, 2列目 2, 3列目 2〜人気薄を網羅", Formation(short))
	assert.Empty(t, Formation(nil))
}
