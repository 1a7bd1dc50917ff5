package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/keiba-ai/internal/racecard"
	"github.com/KaramelBytes/keiba-ai/internal/scoring"
	"github.com/KaramelBytes/keiba-ai/internal/sheet"
	"github.com/KaramelBytes/keiba-ai/internal/signtheory"
	"github.com/KaramelBytes/keiba-ai/internal/utils"
)

func fixture(t *testing.T) (*racecard.Dataset, []scoring.Ranked) {
	t.Helper()
	csv := "馬番,馬名,総合評価,騎手評価,重賞実績\n1,アルファ,80,70,◎\n2,ブラボー,,,\n3,チャーリー,60,50,\n"
	tbl, err := sheet.ReadCSV("card.csv", []byte(csv))
	require.NoError(t, err)
	ds, err := racecard.Build("card.csv", tbl)
	require.NoError(t, err)
	return ds, scoring.Rank(scoring.New(nil).Score(ds.Entries))
}

func TestOverallIncludesScoresAndTable(t *testing.T) {
	ds, ranked := fixture(t)
	req := Builder{}.Overall(ds, ranked)
	assert.Contains(t, req.User, "◎本命")
	assert.Contains(t, req.User, "三連複フォーメーション")
	assert.Contains(t, req.User, "ローカル指数の1位は1番 アルファ")
	assert.Contains(t, req.Excerpt, "| 1 | ◎ | 1 | アルファ |")
	assert.Contains(t, req.Excerpt, "| 3 | ✕ | 2 | ブラボー | - |")
	assert.Contains(t, req.Excerpt, "File: card.csv")
}

func TestScoreTableEscapesNames(t *testing.T) {
	ds := &racecard.Dataset{Entries: []racecard.Entry{
		{Number: 4, Name: "デルタ|エコー", Metrics: map[string]float64{"overall": 70}},
	}}
	table := ScoreTable(scoring.Rank(scoring.New(nil).Score(ds.Entries)))
	assert.Contains(t, table, "| 1 | ◎ | 4 | デルタ/エコー | 70.00 |")
	for _, line := range strings.Split(strings.TrimSpace(table), "\n") {
		assert.Equal(t, 6, strings.Count(line, "|"), line)
	}
}

func TestSingleIncludesEntryLine(t *testing.T) {
	ds, _ := fixture(t)
	req := Builder{}.Single(ds, scoring.Evaluate(ds, 1))
	assert.Contains(t, req.User, "馬番 1 (アルファ)")
	assert.Contains(t, req.User, "ローカル評価")
	assert.Contains(t, req.Excerpt, "総合評価 80")
	assert.Contains(t, req.Excerpt, "重賞実績 ◎")

	missing := Builder{}.Single(ds, scoring.Evaluate(ds, 9))
	assert.NotContains(t, missing.User, "ローカル評価")
}

func TestSignIncludesPlan(t *testing.T) {
	ds, _ := fixture(t)
	req := Builder{}.Sign(signtheory.Plan(nil, 0), ds)
	assert.Contains(t, req.User, "阪神淡路大震災から30年")
	assert.Contains(t, req.User, "サイン有力数字")
}

func TestExcerptRespectsBudget(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("馬番,馬名,総合評価\n")
	for i := 1; i <= 18; i++ {
		sb.WriteString(strings.Repeat("9", 3) + ",とても長い名前の競走馬ですよ,50\n")
	}
	tbl, err := sheet.ReadCSV("big.csv", []byte(sb.String()))
	require.NoError(t, err)
	ds, err := racecard.Build("big.csv", tbl)
	require.NoError(t, err)

	req := Builder{ExcerptTokens: 100}.Overall(ds, nil)
	assert.True(t, strings.HasSuffix(req.Excerpt, "…(truncated)"))
	assert.LessOrEqual(t, utils.CountTokens(strings.TrimSuffix(req.Excerpt, "\n…(truncated)")), 100)
}
