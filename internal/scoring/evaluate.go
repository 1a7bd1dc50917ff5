package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/keiba-ai/internal/racecard"
)

// Weights of the three facets in a single-entry evaluation.
const (
	horseWeight  = 0.5
	jockeyWeight = 0.3
	courseWeight = 0.2
)

// Evaluation breaks one entry down into horse, jockey and course facets.
type Evaluation struct {
	Number  int     `json:"number"`
	Name    string  `json:"name"`
	Found   bool    `json:"found"`
	Horse   float64 `json:"horse"`
	Jockey  float64 `json:"jockey"`
	Course  float64 `json:"course"`
	Overall float64 `json:"overall"`
	// Present lists the facet metrics that were read for this entry.
	Present []string `json:"present,omitempty"`
}

// Evaluate scores the entry numbered n in ds. A missing number yields
// Found=false and zero scores rather than an error.
func Evaluate(ds *racecard.Dataset, n int) Evaluation {
	e, ok := ds.Lookup(n)
	if !ok {
		return Evaluation{Number: n}
	}
	return EvaluateEntry(e)
}

// EvaluateEntry computes the facet scores for e. Absent metrics count as zero;
// the course facet prefers the venue index over general course aptitude.
func EvaluateEntry(e racecard.Entry) Evaluation {
	ev := Evaluation{Number: e.Number, Name: e.Name, Found: true}
	get := func(key string) float64 {
		v, ok := e.Metrics[key]
		if ok {
			ev.Present = append(ev.Present, key)
		}
		return v
	}
	ev.Horse = get("potential") + get("training")
	ev.Jockey = get("jockey") + get("jockey_win_rate")
	if _, ok := e.Metrics["venue"]; ok {
		ev.Course = get("venue")
	} else {
		ev.Course = get("course")
	}
	ev.Overall = round2(ev.Horse*horseWeight + ev.Jockey*jockeyWeight + ev.Course*courseWeight)
	ev.Horse = round2(ev.Horse)
	ev.Jockey = round2(ev.Jockey)
	ev.Course = round2(ev.Course)
	return ev
}

// Summary is a one-line description of the evaluation.
func (ev Evaluation) Summary() string {
	if !ev.Found {
		return fmt.Sprintf("馬番 %d はデータに存在しません。", ev.Number)
	}
	return fmt.Sprintf("%s (馬番 %d): 総合 %.2f 点 / 馬 %.2f・騎手 %.2f・コース %.2f",
		ev.Name, ev.Number, ev.Overall, ev.Horse, ev.Jockey, ev.Course)
}

// Formation builds a trio formation from the top three scored entries:
// first leg the top pick, second leg the top two, third leg the top three.
func Formation(ranked []Ranked) string {
	var nums []string
	for _, r := range ranked {
		if r.Incomplete() || len(nums) == 3 {
			break
		}
		nums = append(nums, fmt.Sprint(r.Entry.Number))
	}
	if len(nums) == 0 {
		return ""
	}
	return fmt.Sprintf("三連複フォーメーション: 1列目 %s, 2列目 %s, 3列目 %s〜人気薄を網羅",
		nums[0], strings.Join(nums[:min(2, len(nums))], "・"), strings.Join(nums, "・"))
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
