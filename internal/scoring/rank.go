package scoring

import "sort"

// Label is a rank mark. Lower values are better.
type Label int

const (
	LabelTop Label = iota
	LabelContender
	LabelDarkHorse
	LabelLongshot
	LabelDanger
)

// Labels is the fixed gradient, best first.
var Labels = []struct {
	Label Label
	Mark  string
	Text  string
}{
	{LabelTop, "◎", "本命"},
	{LabelContender, "○", "対抗"},
	{LabelDarkHorse, "▲", "単穴"},
	{LabelLongshot, "☆", "穴馬"},
	{LabelDanger, "✕", "危険馬"},
}

// String returns the mark and its name, e.g. "◎本命".
func (l Label) String() string {
	if int(l) < 0 || int(l) >= len(Labels) {
		return "?"
	}
	return Labels[l].Mark + Labels[l].Text
}

// Mark returns only the symbol.
func (l Label) Mark() string {
	if int(l) < 0 || int(l) >= len(Labels) {
		return "?"
	}
	return Labels[l].Mark
}

// LabelFor maps a 0-based rank position among n entries to a label. The first
// position is always the top mark and the last the danger mark; positions in
// between spread over the three middle marks by integer division, so small
// fields skip the later middle marks.
//
//	n=1: ◎      n=2: ◎ ✕      n=3: ◎ ○ ✕      n=4: ◎ ○ ▲ ✕      n=5: ◎ ○ ▲ ☆ ✕
func LabelFor(pos, n int) Label {
	switch {
	case n <= 1 || pos <= 0:
		return LabelTop
	case pos >= n-1:
		return LabelDanger
	}
	middle := int(LabelDanger) - 1
	return Label(1 + (pos-1)*middle/(n-2))
}

// Ranked is a scored entry with its position and label.
type Ranked struct {
	Result
	Position int
	Label    Label
}

// Rank sorts results by composite descending and labels them. Equal
// composites are ordered by mark bonus, then input order. Unscored entries
// always rank after every scored entry and carry the danger mark.
func Rank(results []Result) []Ranked {
	out := make([]Ranked, len(results))
	for i, r := range results {
		out[i] = Ranked{Result: r}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Incomplete() != b.Incomplete() {
			return b.Incomplete()
		}
		if a.Composite != b.Composite {
			return a.Composite > b.Composite
		}
		return a.Bonus > b.Bonus
	})
	for i := range out {
		out[i].Position = i
		out[i].Label = LabelFor(i, len(out))
		if out[i].Incomplete() {
			out[i].Label = LabelDanger
		}
	}
	return out
}

// Pick returns the highest-ranked entry carrying label, if any.
func Pick(ranked []Ranked, label Label) (Ranked, bool) {
	for _, r := range ranked {
		if r.Label == label {
			return r, true
		}
	}
	return Ranked{}, false
}
