// Package prompt formats race data and local scores into LLM requests.
package prompt

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/keiba-ai/internal/racecard"
	"github.com/KaramelBytes/keiba-ai/internal/scoring"
	"github.com/KaramelBytes/keiba-ai/internal/sheet"
	"github.com/KaramelBytes/keiba-ai/internal/signtheory"
	"github.com/KaramelBytes/keiba-ai/internal/utils"
)

// System is the persona sent with every request.
const System = "あなたは中央競馬の予想家です。与えられた出馬表データとローカル指数を根拠に、" +
	"日本語で簡潔に回答してください。データにない情報は推測であると明記してください。"

const defaultMaxRows = 20

// DefaultExcerptTokens is the excerpt cap when none is configured.
const DefaultExcerptTokens = 6000

// Request is the prompt text plus the data excerpt sent alongside it.
type Request struct {
	User    string
	Excerpt string
}

// Builder holds excerpt limits. The zero value uses the defaults.
type Builder struct {
	// MaxRows caps the table rows copied into the excerpt.
	MaxRows int
	// ExcerptTokens caps the estimated excerpt size.
	ExcerptTokens int
}

func (b Builder) excerpt(ds *racecard.Dataset, extra string) string {
	rows := b.MaxRows
	if rows <= 0 {
		rows = defaultMaxRows
	}
	budget := b.ExcerptTokens
	if budget <= 0 {
		budget = DefaultExcerptTokens
	}
	var sb strings.Builder
	if extra != "" {
		sb.WriteString(extra)
		sb.WriteString("\n\n")
	}
	if ds != nil && ds.Table != nil {
		sb.WriteString(ds.Table.Markdown(rows))
	}
	out := sb.String()
	if utils.CountTokens(out) > budget {
		out = utils.TruncateToTokenLimit(out, budget) + "\n…(truncated)"
	}
	return out
}

// Overall asks for a marked prediction over the whole field.
func (b Builder) Overall(ds *racecard.Dataset, ranked []scoring.Ranked) Request {
	var user strings.Builder
	user.WriteString("以下の出馬表とローカル指数をもとに、◎本命・○対抗・▲単穴・☆穴馬・✕危険馬の印と、その根拠を述べてください。")
	user.WriteString("最後に推奨する買い方(券種と買い目)を提示してください。\n")
	if top, ok := scoring.Pick(ranked, scoring.LabelTop); ok {
		fmt.Fprintf(&user, "参考: ローカル指数の1位は%d番 %s (指数 %.1f)\n", top.Entry.Number, top.Entry.Name, top.Composite)
	}
	if f := scoring.Formation(ranked); f != "" {
		fmt.Fprintf(&user, "参考: ローカル指数による%s\n", f)
	}
	return Request{User: user.String(), Excerpt: b.excerpt(ds, ScoreTable(ranked))}
}

// Single asks for a horse/jockey/course breakdown of one entry.
func (b Builder) Single(ds *racecard.Dataset, ev scoring.Evaluation) Request {
	var user strings.Builder
	fmt.Fprintf(&user, "馬番 %d", ev.Number)
	if ev.Name != "" {
		fmt.Fprintf(&user, " (%s)", ev.Name)
	}
	user.WriteString(" について、馬・騎手・コースの3観点で個別に分析し、最後に統合評価をまとめてください。\n")
	if ev.Found {
		fmt.Fprintf(&user, "ローカル評価: 馬 %.2f / 騎手 %.2f / コース %.2f / 総合 %.2f\n",
			ev.Horse, ev.Jockey, ev.Course, ev.Overall)
	}
	var row string
	if ds != nil {
		if e, ok := ds.Lookup(ev.Number); ok {
			row = entryLine(e)
		}
	}
	return Request{User: user.String(), Excerpt: b.excerpt(ds, row)}
}

// Sign asks for a sign-theory buying plan from the extracted numbers.
func (b Builder) Sign(plan signtheory.Result, ds *racecard.Dataset) Request {
	var user strings.Builder
	user.WriteString("今年の出来事から抽出したサイン数字をもとに、遊び心のある買い目プランを提案してください。")
	user.WriteString("出走馬の馬番と名前に触れ、データ上の評価との兼ね合いも一言添えてください。\n\n")
	user.WriteString(strings.Join(plan.Steps, "\n"))
	user.WriteString("\n")
	user.WriteString(plan.Text())
	return Request{User: user.String(), Excerpt: b.excerpt(ds, "")}
}

// ScoreTable renders ranked results as a pipe table.
func ScoreTable(ranked []scoring.Ranked) string {
	if len(ranked) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("| 順位 | 印 | 馬番 | 馬名 | 指数 |\n|---|---|---|---|---|\n")
	for _, r := range ranked {
		score := "-"
		if !r.Incomplete() {
			score = fmt.Sprintf("%.2f", r.Composite)
		}
		fmt.Fprintf(&sb, "| %d | %s | %d | %s | %s |\n",
			r.Position+1, r.Label.Mark(), r.Entry.Number, sheet.EscapeCell(r.Entry.Name), score)
	}
	return sb.String()
}

func entryLine(e racecard.Entry) string {
	parts := []string{fmt.Sprintf("馬番 %d %s", e.Number, e.Name)}
	for _, m := range racecard.Catalog {
		if v, ok := e.Metrics[m.Key]; ok {
			parts = append(parts, fmt.Sprintf("%s %g", m.Label, v))
		}
	}
	for _, mc := range racecard.MarkColumns {
		if v, ok := e.Marks[mc.Key]; ok {
			parts = append(parts, fmt.Sprintf("%s %s", mc.Label, v))
		}
	}
	return strings.Join(parts, " / ")
}
