// Package web serves the three-tab prediction UI and its JSON endpoints.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/KaramelBytes/keiba-ai/internal/ai"
	"github.com/KaramelBytes/keiba-ai/internal/apperr"
	"github.com/KaramelBytes/keiba-ai/internal/metrics"
	"github.com/KaramelBytes/keiba-ai/internal/predict"
	"github.com/KaramelBytes/keiba-ai/internal/racecard"
	"github.com/KaramelBytes/keiba-ai/internal/signtheory"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTmpl = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"score": func(p *float64) string {
		if p == nil {
			return "-"
		}
		return strconv.FormatFloat(*p, 'f', 2, 64)
	},
}).ParseFS(templateFS, "templates/index.html"))

const (
	defaultUploadLimit = 10 << 20
	previewRows        = 10
)

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	Service  *predict.Service
	Source   predict.Source
	Sessions *Sessions
	// UploadLimit caps multipart bodies in bytes.
	UploadLimit int64
	Log         logrus.FieldLogger
}

// page is the template model.
type page struct {
	Tab     string
	Dataset *datasetInfo
	Overall *predict.OverallView
	Single  *predict.SingleView
	Sign    *predict.SignView
	Number  int
	Events  string
	Notice  string
	Error   string
	Columns []string
	// Preview is the head of an uploaded table.
	PreviewHeader []string
	PreviewRows   [][]string
	Generated     time.Time
}

type datasetInfo struct {
	Source   string `json:"source"`
	Entries  int    `json:"entries"`
	Fallback bool   `json:"fallback"`
	Uploaded bool   `json:"uploaded"`
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	if s.Sessions == nil {
		s.Sessions = NewSessions(time.Hour)
	}
	r := mux.NewRouter()
	r.Use(instrument(s.log()))
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/upload", s.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/predict", s.handlePredict).Methods(http.MethodPost)
	r.HandleFunc("/evaluate", s.handleEvaluate).Methods(http.MethodPost)
	r.HandleFunc("/sign", s.handleSign).Methods(http.MethodPost)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/scores", s.handleScores).Methods(http.MethodGet)
	api.HandleFunc("/evaluate/{number:[0-9]+}", s.handleEvaluateAPI).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

func (s *Server) log() logrus.FieldLogger {
	if s.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return l
	}
	return s.Log
}

func (s *Server) sessions() *Sessions { return s.Sessions }

// dataset returns the session upload, else whatever the Source yields.
func (s *Server) dataset(ctx context.Context, r *http.Request) (*racecard.Dataset, bool, error) {
	if ds, ok := s.sessions().Get(existingSessionID(r)); ok {
		return ds, true, nil
	}
	if s.Source == nil {
		return nil, false, apperr.Errorf(apperr.KindDataUnavailable, "load race card", "no upload and no data source configured")
	}
	ds, err := s.Source.Load(ctx)
	return ds, false, err
}

func info(ds *racecard.Dataset, uploaded bool) *datasetInfo {
	if ds == nil {
		return nil
	}
	return &datasetInfo{Source: ds.Source, Entries: len(ds.Entries), Fallback: ds.Fallback, Uploaded: uploaded}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") || r.URL.Query().Get("format") == "json"
}

func (s *Server) newPage(tab string) *page {
	cols := make([]string, 0, len(racecard.Catalog)+2)
	cols = append(cols, "馬番", "馬名")
	for _, m := range racecard.Catalog {
		cols = append(cols, m.Label)
	}
	for _, mc := range racecard.MarkColumns {
		cols = append(cols, mc.Label)
	}
	return &page{Tab: tab, Number: 1, Events: eventsText(signtheory.DefaultEvents), Columns: cols, Generated: time.Now()}
}

func eventsText(evs []signtheory.Event) string {
	lines := make([]string, len(evs))
	for i, ev := range evs {
		nums := make([]string, len(ev.Numbers))
		for j, n := range ev.Numbers {
			nums[j] = strconv.Itoa(n)
		}
		lines[i] = ev.Title + ": " + strings.Join(nums, " ")
	}
	return strings.Join(lines, "\n")
}

func (s *Server) render(w http.ResponseWriter, status int, p *page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTmpl.Execute(w, p); err != nil {
		s.log().WithError(err).Error("render page")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log().WithError(err).Error("encode response")
	}
}

// fail reports err in the format the client asked for.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, tab string, err error) {
	if wantsJSON(r) {
		s.writeJSON(w, status, map[string]string{"error": err.Error(), "kind": apperr.KindOf(err).String()})
		return
	}
	p := s.newPage(tab)
	p.Error = err.Error()
	s.render(w, status, p)
}

// statusFor maps a pipeline error to an HTTP status.
func statusFor(err error) int {
	if apperr.Is(err, apperr.KindDataUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	p := s.newPage(r.URL.Query().Get("tab"))
	if ds, ok := s.sessions().Get(existingSessionID(r)); ok {
		p.Dataset = info(ds, true)
	}
	s.render(w, http.StatusOK, p)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.UploadLimit
	if limit <= 0 {
		limit = defaultUploadLimit
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large") {
			s.fail(w, r, http.StatusRequestEntityTooLarge, "", fmt.Errorf("file exceeds %d MB limit", limit>>20))
			return
		}
		s.fail(w, r, http.StatusBadRequest, "", fmt.Errorf("read upload: %w", err))
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, "", fmt.Errorf("no file in upload: %w", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, "", fmt.Errorf("read upload: %w", err))
		return
	}
	ds, err := racecard.FromUpload(hdr.Filename, data)
	if err != nil {
		s.fail(w, r, http.StatusUnprocessableEntity, "", err)
		return
	}
	metrics.RecordDataLoad(metrics.SourceUpload)
	id := sessionID(w, r)
	s.sessions().Put(id, ds)
	s.log().WithFields(logrus.Fields{"file": hdr.Filename, "entries": len(ds.Entries)}).Info("race card uploaded")

	if wantsJSON(r) {
		s.writeJSON(w, http.StatusOK, struct {
			*datasetInfo
			Warnings []string `json:"warnings,omitempty"`
		}{info(ds, true), ds.Warnings})
		return
	}
	p := s.newPage("")
	p.Dataset = info(ds, true)
	p.Notice = fmt.Sprintf("%s を読み込みました (%d頭)", hdr.Filename, len(ds.Entries))
	if ds.Table != nil {
		p.PreviewHeader = ds.Table.Header
		p.PreviewRows = ds.Table.Rows[:min(previewRows, len(ds.Table.Rows))]
	}
	s.render(w, http.StatusOK, p)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.sessions().Delete(existingSessionID(r))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	ds, uploaded, err := s.dataset(r.Context(), r)
	if err != nil {
		s.fail(w, r, statusFor(err), "overall", err)
		return
	}
	v, err := s.Service.Overall(r.Context(), ds)
	if err != nil {
		s.fail(w, r, statusFor(err), "overall", err)
		return
	}
	if wantsJSON(r) {
		s.writeJSON(w, http.StatusOK, v)
		return
	}
	p := s.newPage("overall")
	p.Dataset = info(ds, uploaded)
	p.Overall = v
	s.render(w, http.StatusOK, p)
}

func parseNumber(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid horse number %q", raw)
	}
	return n, nil
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	n, err := parseNumber(r.FormValue("number"))
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, "single", err)
		return
	}
	s.evaluate(w, r, n)
}

func (s *Server) handleEvaluateAPI(w http.ResponseWriter, r *http.Request) {
	n, err := parseNumber(mux.Vars(r)["number"])
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	r.Header.Set("Accept", "application/json")
	s.evaluate(w, r, n)
}

func (s *Server) evaluate(w http.ResponseWriter, r *http.Request, n int) {
	ds, uploaded, err := s.dataset(r.Context(), r)
	if err != nil {
		s.fail(w, r, statusFor(err), "single", err)
		return
	}
	v, err := s.Service.Single(r.Context(), ds, n)
	if err != nil {
		s.fail(w, r, statusFor(err), "single", err)
		return
	}
	if wantsJSON(r) {
		s.writeJSON(w, http.StatusOK, v)
		return
	}
	p := s.newPage("single")
	p.Dataset = info(ds, uploaded)
	p.Single = v
	p.Number = n
	s.render(w, http.StatusOK, p)
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	raw := r.FormValue("events")
	var events []signtheory.Event
	if strings.TrimSpace(raw) != "" {
		evs, err := signtheory.ParseEvents(raw)
		if err != nil {
			s.fail(w, r, http.StatusBadRequest, "sign", err)
			return
		}
		events = evs
	}
	// the plan works without a race card, so a load failure only drops matches
	ds, uploaded, err := s.dataset(r.Context(), r)
	if err != nil {
		s.log().WithError(err).Warn("sign theory without race card")
	}
	v, err := s.Service.Sign(r.Context(), ds, events)
	if err != nil {
		s.fail(w, r, statusFor(err), "sign", err)
		return
	}
	if wantsJSON(r) {
		s.writeJSON(w, http.StatusOK, v)
		return
	}
	p := s.newPage("sign")
	p.Dataset = info(ds, uploaded)
	p.Sign = v
	if raw != "" {
		p.Events = raw
	}
	s.render(w, http.StatusOK, p)
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	ds, uploaded, err := s.dataset(r.Context(), r)
	if err != nil {
		s.writeJSON(w, statusFor(err), map[string]string{"error": err.Error(), "kind": apperr.KindOf(err).String()})
		return
	}
	ranked, incErr := s.Service.Rank(ds)
	warnings := append([]string(nil), ds.Warnings...)
	if incErr != nil {
		warnings = append(warnings, incErr.Error())
	}
	s.writeJSON(w, http.StatusOK, struct {
		Dataset  *datasetInfo  `json:"dataset"`
		Rows     []predict.Row `json:"rows"`
		Missing  []string      `json:"missing,omitempty"`
		Warnings []string      `json:"warnings,omitempty"`
	}{info(ds, uploaded), predict.Rows(ranked), ds.Missing, warnings})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"status": "ok", "sessions": s.sessions().Len(), "llm": "disabled"}
	if s.Service != nil {
		switch g := s.Service.Gateway.(type) {
		case *ai.RuntimeGateway:
			body["llm"] = g.State().String()
		case nil, ai.DisabledGateway:
		default:
			body["llm"] = "enabled"
		}
	}
	s.writeJSON(w, http.StatusOK, body)
}
