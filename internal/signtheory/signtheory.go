// Package signtheory derives "sign" numbers from notable events of the year
// and turns them into betting pairs. The result only feeds LLM prompt context.
package signtheory

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MaxPairings caps the number of suggested pairs.
const MaxPairings = 10

// DefaultMaxNumber is the largest horse number in a full field.
const DefaultMaxNumber = 18

// Event is a headline and the numbers associated with it.
type Event struct {
	Title   string `json:"title" yaml:"title"`
	Numbers []int  `json:"numbers" yaml:"numbers"`
}

// DefaultEvents are used when no events are supplied.
var DefaultEvents = []Event{
	{Title: "阪神淡路大震災から30年", Numbers: []int{1, 7, 30}},
	{Title: "エリザベス女王生誕99周年からの節目", Numbers: []int{9, 9, 12}},
	{Title: "阪神優勝関連の数字", Numbers: []int{6, 18}},
	{Title: "東京オリンピック開催から4年", Numbers: []int{2, 4, 20}},
}

// Result is a sign-theory plan.
type Result struct {
	Steps    []string `json:"steps"`
	Numbers  []int    `json:"numbers"`
	Pairings []string `json:"pairings"`
}

// Plan collects the event numbers within [1, maxNumber], de-duplicated and
// sorted, and pairs them in ascending order.
func Plan(events []Event, maxNumber int) Result {
	if len(events) == 0 {
		events = DefaultEvents
	}
	if maxNumber <= 0 {
		maxNumber = DefaultMaxNumber
	}
	var res Result
	seen := map[int]bool{}
	for _, ev := range events {
		strs := make([]string, len(ev.Numbers))
		for i, n := range ev.Numbers {
			strs[i] = fmt.Sprint(n)
			if n >= 1 && n <= maxNumber && !seen[n] {
				seen[n] = true
				res.Numbers = append(res.Numbers, n)
			}
		}
		res.Steps = append(res.Steps, fmt.Sprintf("・%s: %s が浮上", ev.Title, strings.Join(strs, ", ")))
	}
	sort.Ints(res.Numbers)
	for i, a := range res.Numbers {
		for _, b := range res.Numbers[i+1:] {
			if len(res.Pairings) == MaxPairings {
				return res
			}
			res.Pairings = append(res.Pairings, fmt.Sprintf("%d-%d", a, b))
		}
	}
	return res
}

// Text renders the plan the way it is shown to users and the LLM.
func (r Result) Text() string {
	nums := make([]string, len(r.Numbers))
	for i, n := range r.Numbers {
		nums[i] = fmt.Sprint(n)
	}
	return "サイン有力数字: " + strings.Join(nums, ", ") +
		"\n買い目案 (ワイド/三連複): " + strings.Join(r.Pairings, ", ")
}

// ParseEvents reads "title: 1 7 30" lines; blank lines are skipped.
func ParseEvents(text string) ([]Event, error) {
	var out []Event
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sep := strings.LastIndexAny(line, ":：")
		if sep < 0 {
			return nil, fmt.Errorf("line %d: expected \"title: numbers\"", i+1)
		}
		title := strings.TrimSpace(line[:sep])
		_, w := firstRune(line[sep:])
		fields := strings.FieldsFunc(line[sep+w:], func(r rune) bool {
			return r == ' ' || r == ',' || r == '、' || r == '\t'
		})
		ev := Event{Title: title}
		for _, f := range fields {
			n, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad number %q", i+1, f)
			}
			ev.Numbers = append(ev.Numbers, n)
		}
		if title == "" || len(ev.Numbers) == 0 {
			return nil, fmt.Errorf("line %d: expected \"title: numbers\"", i+1)
		}
		out = append(out, ev)
	}
	return out, nil
}

func firstRune(s string) (rune, int) {
	for _, r := range s {
		return r, len(string(r))
	}
	return 0, 0
}
