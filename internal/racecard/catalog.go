package racecard

// Metric is one recognized numeric column of a race card.
type Metric struct {
	Key     string
	Label   string
	Weight  float64
	Aliases []string
}

// Catalog is the fixed metric table. Columns not listed here are ignored.
// The three core form metrics carry full weight; supporting metrics half.
var Catalog = []Metric{
	{Key: "overall", Label: "総合評価", Weight: 1.0, Aliases: []string{"総合評価", "overall", "overall_rating", "rating"}},
	{Key: "recent_form", Label: "近走指数", Weight: 1.0, Aliases: []string{"近走指数", "recent_form", "form", "form_index"}},
	{Key: "speed", Label: "スピード指数", Weight: 1.0, Aliases: []string{"スピード指数", "speed", "speed_index", "speed_figure"}},
	{Key: "training", Label: "調教評価", Weight: 0.5, Aliases: []string{"調教評価", "training", "training_eval", "workout"}},
	{Key: "potential", Label: "馬ポテンシャル", Weight: 0.5, Aliases: []string{"馬ポテンシャル", "馬力指数", "potential", "horse_potential"}},
	{Key: "jockey", Label: "騎手評価", Weight: 0.5, Aliases: []string{"騎手評価", "jockey", "jockey_rating"}},
	{Key: "jockey_win_rate", Label: "騎手勝率", Weight: 0.5, Aliases: []string{"騎手勝率", "jockey_win_rate", "jockey_win_pct"}},
	{Key: "course", Label: "コース適性", Weight: 0.5, Aliases: []string{"コース適性", "course", "course_aptitude"}},
	{Key: "venue", Label: "中山実績指数", Weight: 0.5, Aliases: []string{"中山実績指数", "venue", "venue_index", "nakayama_index"}},
}

// MarkColumn is a categorical column holding ◎/○/▲ or A/B style grades.
type MarkColumn struct {
	Key     string
	Label   string
	Aliases []string
}

// MarkColumns lists the grade columns that earn a scoring bonus.
var MarkColumns = []MarkColumn{
	{Key: "graded_record", Label: "重賞実績", Aliases: []string{"重賞実績", "graded_record", "graded_stakes"}},
	{Key: "venue_record", Label: "中山実績", Aliases: []string{"中山実績", "venue_record", "nakayama_record"}},
	{Key: "turf", Label: "芝適性", Aliases: []string{"芝適性", "turf", "turf_aptitude"}},
}

var (
	numberAliases = []string{"馬番", "number", "no", "horse_number", "#"}
	nameAliases   = []string{"馬名", "name", "horse", "horse_name"}
)
