package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/keiba-ai/internal/ai"
	cfgpkg "github.com/KaramelBytes/keiba-ai/internal/config"
	"github.com/KaramelBytes/keiba-ai/internal/logging"
	"github.com/KaramelBytes/keiba-ai/internal/predict"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const samplePath = "../data/sample_racecard.csv"

// runCmd executes the root command with args and returns stdout.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// flag values bound to package vars persist across executions
	predictFlags, evaluateFlags, signFlags = pipelineFlags{}, pipelineFlags{}, pipelineFlags{}
	signEvents, signEventsFile = nil, ""
	fetchURL, fetchOutput = "", ""
	for _, c := range []*cobra.Command{predictCmd, evaluateCmd, signCmd, fetchCmd} {
		c.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	}
	cfg = cfgpkg.Defaults()
	log = logging.Discard()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestBuildGatewaySelection(t *testing.T) {
	log = logging.Discard()
	c := cfgpkg.Defaults()

	gw, _, err := buildGateway(c, "", "", true)
	if err != nil || gw != nil {
		t.Fatalf("disabled: got %v, %v", gw, err)
	}

	gw, _, err = buildGateway(c, "", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := gw.(ai.DisabledGateway); !ok {
		t.Fatalf("expected DisabledGateway without api key, got %T", gw)
	}

	gw, budget, err := buildGateway(c, "local", "llama3.1:8b", false)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := gw.(*ai.RuntimeGateway); !ok {
		t.Fatalf("expected RuntimeGateway for ollama, got %T", gw)
	}
	if budget != 2048 {
		t.Fatalf("budget = %d, want 2048", budget)
	}

	c.APIKey = "sk-test"
	if gw, _, _ = buildGateway(c, "", "", false); gw == nil {
		t.Fatalf("expected gateway with api key")
	}
	if _, _, err := buildGateway(c, "anthropic", "", false); err == nil {
		t.Fatalf("expected unknown provider error")
	}
}

func TestPredictLocalFileJSON(t *testing.T) {
	out, err := runCmd(t, "predict", "--file", samplePath, "--no-llm", "--json")
	if err != nil {
		t.Fatalf("predict: %v\n%s", err, out)
	}
	var v predict.OverallView
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(v.Rows) != 16 {
		t.Fatalf("rows = %d, want 16", len(v.Rows))
	}
	if v.Rows[0].Position != 1 || v.Rows[0].Label != "◎本命" {
		t.Fatalf("unexpected top row: %+v", v.Rows[0])
	}
	if v.Narrative != "" {
		t.Fatalf("narrative with --no-llm: %q", v.Narrative)
	}
}

func TestPredictWithoutKeyWarns(t *testing.T) {
	out, err := runCmd(t, "predict", "--file", samplePath)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !strings.Contains(out, "⚠ Warning:") || !strings.Contains(out, "llm disabled") {
		t.Fatalf("expected llm warning, got:\n%s", out)
	}
	if !strings.Contains(out, "◎本命") {
		t.Fatalf("expected ranking table, got:\n%s", out)
	}
}

func TestPredictMissingFileIsFatal(t *testing.T) {
	if _, err := runCmd(t, "predict", "--file", filepath.Join(t.TempDir(), "none.csv"), "--no-llm"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestEvaluate(t *testing.T) {
	if _, err := runCmd(t, "evaluate", "x"); err == nil {
		t.Fatalf("expected invalid number error")
	}
	out, err := runCmd(t, "evaluate", "1", "--file", samplePath, "--no-llm")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !strings.Contains(out, "シンボリクリスエス") || !strings.Contains(out, "overall:") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	out, err = runCmd(t, "evaluate", "99", "--file", samplePath, "--no-llm")
	if err != nil {
		t.Fatalf("unknown number must not fail: %v", err)
	}
	if !strings.Contains(out, "⚠ Warning:") {
		t.Fatalf("expected warning for unknown number:\n%s", out)
	}
}

func TestSignInlineEvents(t *testing.T) {
	out, err := runCmd(t, "sign", "--file", samplePath, "--no-llm", "--json", "--events", "記念: 3 5 40")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	var v predict.SignView
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(v.Plan.Numbers) != 2 || v.Plan.Numbers[0] != 3 || v.Plan.Numbers[1] != 5 {
		t.Fatalf("numbers = %v", v.Plan.Numbers)
	}
	if len(v.Plan.Pairings) != 1 || v.Plan.Pairings[0] != "3-5" {
		t.Fatalf("pairings = %v", v.Plan.Pairings)
	}
	if len(v.Matches) != 2 {
		t.Fatalf("matches = %d", len(v.Matches))
	}
}

func TestReadEventsFile(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "events.yaml")
	if err := os.WriteFile(yml, []byte("- title: 震災から30年\n  numbers: [1, 7, 30]\n- title: 五輪\n  numbers: [2, 4]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	evs, err := readEvents([]string{"追加: 9"}, yml)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 3 || evs[0].Title != "震災から30年" || evs[2].Numbers[0] != 9 {
		t.Fatalf("unexpected events: %+v", evs)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("- title: no numbers\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readEvents(nil, bad); err == nil {
		t.Fatalf("expected error for event without numbers")
	}

	txt := filepath.Join(dir, "events.txt")
	if err := os.WriteFile(txt, []byte("A: 1 2\n\nB：3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if evs, err = readEvents(nil, txt); err != nil || len(evs) != 2 {
		t.Fatalf("text events: %v %+v", err, evs)
	}
}

func TestConfigShowMasksKey(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	cfgFile = filepath.Join(home, "config.yaml")
	defer func() { cfgFile = "" }()

	if _, err := runCmd(t, "config", "set", "api_key", "sk-or-1234567890"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		t.Fatal(err)
	}
	if c.APIKey != "sk-or-1234567890" {
		t.Fatalf("api_key not saved: %q", c.APIKey)
	}
	if _, err := runCmd(t, "config", "set", "temperature", "5"); err == nil {
		t.Fatalf("expected validation error")
	}

	cfg = &cfgpkg.Global{APIKey: "sk-or-1234567890"}
	var out bytes.Buffer
	configShowCmd.SetOut(&out)
	if err := configShowCmd.RunE(configShowCmd, nil); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out.String(), "1234567890") || !strings.Contains(out.String(), "api_key: sk-****890") {
		t.Fatalf("key not masked:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "log_format:") {
		t.Fatalf("missing keys in show output:\n%s", out.String())
	}
}

func TestFetchSavesDownload(t *testing.T) {
	data, err := os.ReadFile(samplePath)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	dst := filepath.Join(t.TempDir(), "card.csv")
	out, err := runCmd(t, "fetch", "--url", srv.URL+"/card.csv", "--output", dst)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !strings.Contains(out, "16 entries") {
		t.Fatalf("unexpected output: %s", out)
	}
	got, err := os.ReadFile(dst)
	if err != nil || !bytes.Equal(got, data) {
		t.Fatalf("saved file mismatch: %v", err)
	}

	if _, err := runCmd(t, "fetch", "--url", srv.URL+"/card.csv", "--output", filepath.Join(t.TempDir(), "card.xlsx")); err == nil {
		t.Fatalf("expected format mismatch error")
	}
}
